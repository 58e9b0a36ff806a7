package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role hierarchy, top to bottom. Admin sits above every reporting level
// and never receives tasks.
const (
	RoleAdmin      = "admin"
	RoleHead       = "head"
	RoleUnitHead   = "unithead"
	RoleTeamLeader = "teamleader"
	RoleSupervisor = "supervisor"
	RoleEmployee   = "employee"
)

var roleRanks = map[string]int{
	RoleAdmin:      0,
	RoleHead:       1,
	RoleUnitHead:   2,
	RoleTeamLeader: 3,
	RoleSupervisor: 4,
	RoleEmployee:   5,
}

func ValidRole(role string) bool {
	_, ok := roleRanks[role]
	return ok
}

// RoleRank returns the hierarchy depth of a role (admin = 0, employee = 5),
// or -1 for unknown roles.
func RoleRank(role string) int {
	rank, ok := roleRanks[role]
	if !ok {
		return -1
	}
	return rank
}

// CanManage reports whether a superior of role `superior` directly manages
// people of role `subordinate`, i.e. the subordinate sits exactly one
// level below.
func CanManage(superior, subordinate string) bool {
	sup, ok1 := roleRanks[superior]
	sub, ok2 := roleRanks[subordinate]
	return ok1 && ok2 && sub == sup+1
}

type User struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Email     string         `json:"email" gorm:"uniqueIndex;not null"`
	Password  string         `json:"-"`
	Name      string         `json:"name"`
	Role      string         `json:"role" gorm:"index;not null;default:employee"`
	Phone     string         `json:"phone"`
	Address   string         `json:"address"`
	AvatarURL string         `json:"avatarUrl"`
	BossID    *uuid.UUID     `json:"bossId" gorm:"type:uuid;index"`
	FCMToken  string         `json:"-" gorm:"column:fcm_token"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations (for preloading)
	Boss *User `json:"boss,omitempty" gorm:"foreignKey:BossID"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Auth DTOs
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name"`
	Role     string `json:"role" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UpdateProfileRequest struct {
	Name      *string `json:"name"`
	Phone     *string `json:"phone"`
	Address   *string `json:"address"`
	AvatarURL *string `json:"avatarUrl"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// AssignRequest links subordinates to their boss one level up.
type AssignRequest struct {
	SuperiorID     uuid.UUID   `json:"superiorId" validate:"required"`
	SubordinateIDs []uuid.UUID `json:"subordinateIds" validate:"required"`
}
