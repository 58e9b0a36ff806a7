package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahulsv/taskchain-api/internal/config"
	"github.com/rahulsv/taskchain-api/internal/database"
	"github.com/rahulsv/taskchain-api/internal/models"
	"github.com/rahulsv/taskchain-api/internal/routes"
	"github.com/rahulsv/taskchain-api/internal/services"
)

const adminEmail = "admin@taskchain.local"

func setupApp(t *testing.T) *fiber.App {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("ADMIN_EMAIL", adminEmail)

	cfg := &config.Config{DatabaseURL: filepath.Join(t.TempDir(), "taskchain_test.db")}
	require.NoError(t, database.Connect(cfg))
	require.NoError(t, database.Migrate())

	app := fiber.New()
	routes.Setup(app)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func register(t *testing.T, app *fiber.App, email, role string) (string, uuid.UUID) {
	t.Helper()
	resp := doJSON(t, app, "POST", "/api/auth/register", "", fiber.Map{
		"email":    email,
		"password": "secret123",
		"name":     email,
		"role":     role,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var auth models.AuthResponse
	decode(t, resp, &auth)
	return auth.Token, auth.User.ID
}

func assignBoss(t *testing.T, app *fiber.App, adminToken string, superiorID uuid.UUID, subordinateIDs ...uuid.UUID) *http.Response {
	t.Helper()
	return doJSON(t, app, "POST", "/api/assignments", adminToken, fiber.Map{
		"superiorId":     superiorID,
		"subordinateIds": subordinateIDs,
	})
}

func createTask(t *testing.T, app *fiber.App, token string, assigneeIDs ...uuid.UUID) models.Task {
	t.Helper()
	resp := doJSON(t, app, "POST", "/api/tasks", token, fiber.Map{
		"project":     "Billing",
		"task":        "Reconcile invoices",
		"subtask":     "March batch",
		"endDate":     services.Today(time.Now().AddDate(0, 0, 7)),
		"priority":    "high",
		"taskType":    "daily",
		"assigneeIds": assigneeIDs,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var task models.Task
	decode(t, resp, &task)
	return task
}

func lookupUser(id uuid.UUID, out *models.User) error {
	// Reset the destination so a previously looked-up primary key is not
	// added to the query conditions by GORM.
	*out = models.User{}
	return database.DB.First(out, id).Error
}

func myTasks(t *testing.T, app *fiber.App, token string) models.TaskListResponse {
	t.Helper()
	resp := doJSON(t, app, "GET", "/api/me/tasks", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var list models.TaskListResponse
	decode(t, resp, &list)
	return list
}

func TestRegisterAndLogin(t *testing.T) {
	app := setupApp(t)

	token, _ := register(t, app, "priya@example.com", "employee")
	assert.NotEmpty(t, token)

	resp := doJSON(t, app, "POST", "/api/auth/login", "", fiber.Map{
		"email":    "priya@example.com",
		"password": "secret123",
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var auth models.AuthResponse
	decode(t, resp, &auth)
	assert.Equal(t, "employee", auth.User.Role)
}

func TestAdminRoleFromConfiguredEmail(t *testing.T) {
	app := setupApp(t)

	resp := doJSON(t, app, "POST", "/api/auth/register", "", fiber.Map{
		"email":    adminEmail,
		"password": "secret123",
		"role":     "employee",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var auth models.AuthResponse
	decode(t, resp, &auth)
	assert.Equal(t, models.RoleAdmin, auth.User.Role)
}

func TestCreateTaskFansOutToAllAssignees(t *testing.T) {
	app := setupApp(t)
	adminToken, _ := register(t, app, adminEmail, "")
	emp1Token, emp1 := register(t, app, "emp1@example.com", "employee")
	emp2Token, emp2 := register(t, app, "emp2@example.com", "employee")

	task := createTask(t, app, adminToken, emp1, emp2)
	assert.Equal(t, models.StatusPending, task.Status)
	assert.Equal(t, services.Today(time.Now()), task.LastReset)

	for _, token := range []string{emp1Token, emp2Token} {
		list := myTasks(t, app, token)
		require.Len(t, list.Tasks, 1)
		assert.Equal(t, task.ID, list.Tasks[0].ID)
		assert.Equal(t, 1, list.Assigned)
		assert.Equal(t, 1, list.Pending)
	}
}

func TestCreateTaskPastDueRejectedWithZeroWrites(t *testing.T) {
	app := setupApp(t)
	adminToken, _ := register(t, app, adminEmail, "")
	_, emp := register(t, app, "emp@example.com", "employee")

	resp := doJSON(t, app, "POST", "/api/tasks", adminToken, fiber.Map{
		"project":     "Billing",
		"task":        "Reconcile invoices",
		"subtask":     "March batch",
		"endDate":     services.Today(time.Now().AddDate(0, 0, -1)),
		"priority":    "high",
		"taskType":    "daily",
		"assigneeIds": []uuid.UUID{emp},
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var taskCount, assignmentCount int64
	database.DB.Model(&models.Task{}).Count(&taskCount)
	database.DB.Model(&models.TaskAssignment{}).Count(&assignmentCount)
	assert.Zero(t, taskCount)
	assert.Zero(t, assignmentCount)
}

func TestCreateTaskRequiresRecipients(t *testing.T) {
	app := setupApp(t)
	adminToken, _ := register(t, app, adminEmail, "")

	resp := doJSON(t, app, "POST", "/api/tasks", adminToken, fiber.Map{
		"project":     "Billing",
		"task":        "Reconcile invoices",
		"subtask":     "March batch",
		"endDate":     services.Today(time.Now()),
		"priority":    "high",
		"taskType":    "daily",
		"assigneeIds": []uuid.UUID{},
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreateTaskRejectsPlaceholderFields(t *testing.T) {
	app := setupApp(t)
	adminToken, _ := register(t, app, adminEmail, "")
	_, emp := register(t, app, "emp@example.com", "employee")

	resp := doJSON(t, app, "POST", "/api/tasks", adminToken, fiber.Map{
		"project":     "Billing",
		"task":        "Reconcile invoices",
		"subtask":     "March batch",
		"endDate":     services.Today(time.Now()),
		"priority":    "Select Priority",
		"taskType":    "daily",
		"assigneeIds": []uuid.UUID{emp},
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSupervisorAssignsOnlyOwnSubordinates(t *testing.T) {
	app := setupApp(t)
	adminToken, _ := register(t, app, adminEmail, "")
	supToken, sup := register(t, app, "sup@example.com", "supervisor")
	_, emp := register(t, app, "emp@example.com", "employee")

	resp := doJSON(t, app, "POST", "/api/tasks", supToken, fiber.Map{
		"project":     "Ops",
		"task":        "Shift report",
		"subtask":     "Night shift",
		"endDate":     services.Today(time.Now()),
		"priority":    "medium",
		"taskType":    "daily",
		"assigneeIds": []uuid.UUID{emp},
	})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	require.Equal(t, fiber.StatusOK, assignBoss(t, app, adminToken, sup, emp).StatusCode)

	task := createTask(t, app, supToken, emp)
	assert.Equal(t, models.StatusPending, task.Status)
}

func TestStatusConvergenceAcrossAssignees(t *testing.T) {
	app := setupApp(t)
	adminToken, _ := register(t, app, adminEmail, "")
	emp1Token, emp1 := register(t, app, "emp1@example.com", "employee")
	emp2Token, emp2 := register(t, app, "emp2@example.com", "employee")

	task := createTask(t, app, adminToken, emp1, emp2)

	resp := doJSON(t, app, "PUT", "/api/tasks/"+task.ID.String()+"/status", emp1Token, fiber.Map{
		"status": "Completed",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// Every assignee sees the same canonical record
	for _, token := range []string{emp1Token, emp2Token} {
		list := myTasks(t, app, token)
		require.Len(t, list.Tasks, 1)
		got := list.Tasks[0]
		assert.Equal(t, models.StatusCompleted, got.Status)
		require.NotNil(t, got.CompletedBy)
		assert.Equal(t, "emp1@example.com", *got.CompletedBy)
		require.NotNil(t, got.StatusChangedBy)
	}
}

func TestWorkInProgressRequiresNote(t *testing.T) {
	app := setupApp(t)
	adminToken, _ := register(t, app, adminEmail, "")
	empToken, emp := register(t, app, "emp@example.com", "employee")

	task := createTask(t, app, adminToken, emp)

	resp := doJSON(t, app, "PUT", "/api/tasks/"+task.ID.String()+"/status", empToken, fiber.Map{
		"status": "work in progress",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	list := myTasks(t, app, empToken)
	assert.Equal(t, models.StatusPending, list.Tasks[0].Status)
}

func TestAddNoteMovesTaskToWorkInProgress(t *testing.T) {
	app := setupApp(t)
	adminToken, _ := register(t, app, adminEmail, "")
	empToken, emp := register(t, app, "emp@example.com", "employee")

	task := createTask(t, app, adminToken, emp)

	resp := doJSON(t, app, "POST", "/api/tasks/"+task.ID.String()+"/notes", empToken, fiber.Map{
		"text": "Started on the March batch",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	list := myTasks(t, app, empToken)
	require.Len(t, list.Tasks, 1)
	assert.Equal(t, models.StatusWorkInProgress, list.Tasks[0].Status)
	require.Len(t, list.Tasks[0].Notes, 1)
	assert.Equal(t, "emp@example.com", list.Tasks[0].Notes[0].AddedBy)
}

func TestEditNoteRecordsEditAudit(t *testing.T) {
	app := setupApp(t)
	adminToken, _ := register(t, app, adminEmail, "")
	empToken, emp := register(t, app, "emp@example.com", "employee")

	task := createTask(t, app, adminToken, emp)
	notesPath := "/api/tasks/" + task.ID.String() + "/notes"

	resp := doJSON(t, app, "POST", notesPath, empToken, fiber.Map{"text": "first draft"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var note models.TaskNote
	decode(t, resp, &note)
	assert.Nil(t, note.EditedBy)
	assert.Nil(t, note.LastEdited)

	resp = doJSON(t, app, "PUT", notesPath+"/"+note.ID.String(), empToken, fiber.Map{
		"text": "second draft",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var edited models.TaskNote
	decode(t, resp, &edited)
	assert.Equal(t, "second draft", edited.Text)
	require.NotNil(t, edited.EditedBy)
	assert.Equal(t, "emp@example.com", *edited.EditedBy)
	assert.NotNil(t, edited.LastEdited)
}

func TestCompletedNoteCannotBeEdited(t *testing.T) {
	app := setupApp(t)
	adminToken, _ := register(t, app, adminEmail, "")
	empToken, emp := register(t, app, "emp@example.com", "employee")

	task := createTask(t, app, adminToken, emp)
	notesPath := "/api/tasks/" + task.ID.String() + "/notes"

	resp := doJSON(t, app, "POST", notesPath, empToken, fiber.Map{"text": "install racks"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var note models.TaskNote
	decode(t, resp, &note)

	resp = doJSON(t, app, "POST", notesPath+"/"+note.ID.String()+"/complete", empToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var done models.TaskNote
	decode(t, resp, &done)
	assert.True(t, done.Completed)
	require.NotNil(t, done.CompletedBy)
	assert.Equal(t, "emp@example.com", *done.CompletedBy)
	assert.NotNil(t, done.CompletedAt)

	resp = doJSON(t, app, "PUT", notesPath+"/"+note.ID.String(), empToken, fiber.Map{
		"text": "rewrite",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, "POST", notesPath+"/"+note.ID.String()+"/complete", empToken, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRemovingLastNoteForcesPending(t *testing.T) {
	app := setupApp(t)
	adminToken, _ := register(t, app, adminEmail, "")
	empToken, emp := register(t, app, "emp@example.com", "employee")

	task := createTask(t, app, adminToken, emp)

	resp := doJSON(t, app, "POST", "/api/tasks/"+task.ID.String()+"/notes", empToken, fiber.Map{
		"text": "Started on the March batch",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var note models.TaskNote
	decode(t, resp, &note)

	// Note removal is admin-only
	resp = doJSON(t, app, "DELETE", "/api/tasks/"+task.ID.String()+"/notes/"+note.ID.String(), empToken, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, app, "DELETE", "/api/tasks/"+task.ID.String()+"/notes/"+note.ID.String(), adminToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	list := myTasks(t, app, empToken)
	require.Len(t, list.Tasks, 1)
	assert.Equal(t, models.StatusPending, list.Tasks[0].Status)
	assert.Empty(t, list.Tasks[0].Notes)
}

func TestRemovingLastNoteFromCompletedTaskForcesPending(t *testing.T) {
	app := setupApp(t)
	adminToken, _ := register(t, app, adminEmail, "")
	empToken, emp := register(t, app, "emp@example.com", "employee")

	task := createTask(t, app, adminToken, emp)
	taskPath := "/api/tasks/" + task.ID.String()

	resp := doJSON(t, app, "POST", taskPath+"/notes", empToken, fiber.Map{"text": "done, see report"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var note models.TaskNote
	decode(t, resp, &note)

	require.Equal(t, fiber.StatusOK,
		doJSON(t, app, "PUT", taskPath+"/status", empToken, fiber.Map{"status": "completed"}).StatusCode)

	resp = doJSON(t, app, "DELETE", taskPath+"/notes/"+note.ID.String(), adminToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	list := myTasks(t, app, empToken)
	require.Len(t, list.Tasks, 1)
	got := list.Tasks[0]
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Nil(t, got.CompletedBy)
	assert.Nil(t, got.CompletedDate)
}

func TestReopeningCompletedTaskNeedsHeadOrAdmin(t *testing.T) {
	app := setupApp(t)
	adminToken, _ := register(t, app, adminEmail, "")
	empToken, emp := register(t, app, "emp@example.com", "employee")

	task := createTask(t, app, adminToken, emp)
	statusPath := "/api/tasks/" + task.ID.String() + "/status"

	require.Equal(t, fiber.StatusOK,
		doJSON(t, app, "PUT", statusPath, empToken, fiber.Map{"status": "completed"}).StatusCode)

	resp := doJSON(t, app, "PUT", statusPath, empToken, fiber.Map{"status": "pending"})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, app, "PUT", statusPath, adminToken, fiber.Map{"status": "pending"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	list := myTasks(t, app, empToken)
	got := list.Tasks[0]
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Nil(t, got.CompletedBy)
	assert.Nil(t, got.CompletedDate)
}

func TestRecurringTaskResetsOnListing(t *testing.T) {
	app := setupApp(t)
	adminToken, _ := register(t, app, adminEmail, "")
	empToken, emp := register(t, app, "emp@example.com", "employee")

	task := createTask(t, app, adminToken, emp)
	empPath := "/api/tasks/" + task.ID.String()

	resp := doJSON(t, app, "POST", empPath+"/notes", empToken, fiber.Map{"text": "progress"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, fiber.StatusOK,
		doJSON(t, app, "PUT", empPath+"/status", empToken, fiber.Map{"status": "completed"}).StatusCode)

	// Age the task by a day so the daily cycle is due
	yesterday := services.Today(time.Now().AddDate(0, 0, -1))
	require.NoError(t, database.DB.Model(&models.Task{}).
		Where("id = ?", task.ID).
		Update("last_reset", yesterday).Error)

	list := myTasks(t, app, empToken)
	require.Len(t, list.Tasks, 1)
	got := list.Tasks[0]
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, services.Today(time.Now()), got.LastReset)
	assert.Nil(t, got.CompletedBy)
	assert.Nil(t, got.StatusChangedBy)

	var noteCount int64
	database.DB.Model(&models.TaskNote{}).Where("task_id = ?", task.ID).Count(&noteCount)
	assert.Zero(t, noteCount)

	// A second listing in the same period must not rewrite anything
	again := myTasks(t, app, empToken)
	assert.Equal(t, got.LastReset, again.Tasks[0].LastReset)
	assert.Equal(t, got.Status, again.Tasks[0].Status)
}

func TestDeleteTaskRemovesItForEveryAssignee(t *testing.T) {
	app := setupApp(t)
	adminToken, _ := register(t, app, adminEmail, "")
	emp1Token, emp1 := register(t, app, "emp1@example.com", "employee")
	emp2Token, emp2 := register(t, app, "emp2@example.com", "employee")

	task := createTask(t, app, adminToken, emp1, emp2)

	// Non-admin callers cannot delete
	resp := doJSON(t, app, "DELETE", "/api/tasks/"+task.ID.String(), emp1Token, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, app, "DELETE", "/api/tasks/"+task.ID.String(), adminToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	for _, token := range []string{emp1Token, emp2Token} {
		list := myTasks(t, app, token)
		assert.Empty(t, list.Tasks)
	}

	var assignmentCount int64
	database.DB.Model(&models.TaskAssignment{}).Where("task_id = ?", task.ID).Count(&assignmentCount)
	assert.Zero(t, assignmentCount)
}

func TestBossViewsSubordinateTasks(t *testing.T) {
	app := setupApp(t)
	adminToken, _ := register(t, app, adminEmail, "")
	supToken, sup := register(t, app, "sup@example.com", "supervisor")
	otherToken, _ := register(t, app, "other@example.com", "supervisor")
	_, emp := register(t, app, "emp@example.com", "employee")

	require.Equal(t, fiber.StatusOK, assignBoss(t, app, adminToken, sup, emp).StatusCode)
	task := createTask(t, app, adminToken, emp)

	resp := doJSON(t, app, "GET", "/api/users/"+emp.String()+"/tasks", supToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var list models.TaskListResponse
	decode(t, resp, &list)
	require.Len(t, list.Tasks, 1)
	assert.Equal(t, task.ID, list.Tasks[0].ID)

	// An unrelated supervisor gets rejected
	resp = doJSON(t, app, "GET", "/api/users/"+emp.String()+"/tasks", otherToken, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestTaskActivityTrail(t *testing.T) {
	app := setupApp(t)
	adminToken, _ := register(t, app, adminEmail, "")
	empToken, emp := register(t, app, "emp@example.com", "employee")

	task := createTask(t, app, adminToken, emp)
	require.Equal(t, fiber.StatusCreated,
		doJSON(t, app, "POST", "/api/tasks/"+task.ID.String()+"/notes", empToken, fiber.Map{"text": "progress"}).StatusCode)

	resp := doJSON(t, app, "GET", "/api/tasks/"+task.ID.String()+"/activity", empToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Activities []models.Activity `json:"activities"`
		Total      int64             `json:"total"`
	}
	decode(t, resp, &payload)
	require.GreaterOrEqual(t, payload.Total, int64(2))

	types := make(map[string]bool)
	for _, a := range payload.Activities {
		types[a.ActionType] = true
	}
	assert.True(t, types["task_created"])
	assert.True(t, types["note_added"])
}
