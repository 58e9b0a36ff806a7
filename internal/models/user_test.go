package models

import "testing"

func TestRoleRanks(t *testing.T) {
	order := []string{RoleAdmin, RoleHead, RoleUnitHead, RoleTeamLeader, RoleSupervisor, RoleEmployee}
	for i, role := range order {
		if got := RoleRank(role); got != i {
			t.Fatalf("RoleRank(%q) = %d, want %d", role, got, i)
		}
	}
	if RoleRank("manager") != -1 {
		t.Fatal("unknown role must rank -1")
	}
}

func TestCanManage(t *testing.T) {
	pairs := [][2]string{
		{RoleAdmin, RoleHead},
		{RoleHead, RoleUnitHead},
		{RoleUnitHead, RoleTeamLeader},
		{RoleTeamLeader, RoleSupervisor},
		{RoleSupervisor, RoleEmployee},
	}
	for _, p := range pairs {
		if !CanManage(p[0], p[1]) {
			t.Fatalf("CanManage(%q, %q) = false, want true", p[0], p[1])
		}
	}

	// Skipping a level, inverting, or self-managing is never allowed
	bad := [][2]string{
		{RoleHead, RoleTeamLeader},
		{RoleEmployee, RoleSupervisor},
		{RoleSupervisor, RoleSupervisor},
		{RoleAdmin, RoleEmployee},
	}
	for _, p := range bad {
		if CanManage(p[0], p[1]) {
			t.Fatalf("CanManage(%q, %q) = true, want false", p[0], p[1])
		}
	}
}

func TestValidRole(t *testing.T) {
	for _, role := range []string{RoleAdmin, RoleHead, RoleUnitHead, RoleTeamLeader, RoleSupervisor, RoleEmployee} {
		if !ValidRole(role) {
			t.Fatalf("ValidRole(%q) = false", role)
		}
	}
	if ValidRole("ceo") {
		t.Fatal("ValidRole(ceo) = true")
	}
}
