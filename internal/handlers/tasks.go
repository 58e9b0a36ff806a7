package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rahulsv/taskchain-api/internal/database"
	"github.com/rahulsv/taskchain-api/internal/middleware"
	"github.com/rahulsv/taskchain-api/internal/models"
	"github.com/rahulsv/taskchain-api/internal/services"
)

// CreateTask fans a new task out to every selected assignee. The task row and
// all assignment rows commit in one transaction, so a failure leaves nothing
// behind.
func CreateTask(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	role := middleware.GetRole(c)

	var req models.CreateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	// Placeholder values come straight from unchanged form selects
	requiredFields := []string{req.Project, req.Task, req.Subtask, req.EndDate, req.Priority, req.TaskType}
	for _, f := range requiredFields {
		if f == "" || f == "Select Priority" || f == "Select Task Type" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "All fields are compulsory",
			})
		}
	}

	priority := strings.ToLower(req.Priority)
	if !models.ValidPriority(priority) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid priority",
		})
	}

	taskType := strings.ToLower(req.TaskType)
	if !models.ValidTaskType(taskType) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid task type",
		})
	}

	endDate, err := time.ParseInLocation(models.DateLayout, req.EndDate, services.IST)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid due date",
		})
	}

	now := time.Now()
	today, _ := time.ParseInLocation(models.DateLayout, services.Today(now), services.IST)
	if endDate.Before(today) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Due date cannot be in the past. Please select today or a future date.",
		})
	}

	if len(req.AssigneeIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Please select at least one recipient",
		})
	}

	var assignees []models.User
	database.DB.Where("id IN ?", req.AssigneeIDs).Find(&assignees)
	if len(assignees) != len(req.AssigneeIDs) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "One or more recipients not found",
		})
	}

	for _, a := range assignees {
		if a.Role == models.RoleAdmin {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Tasks cannot be assigned to an admin",
			})
		}
		// Non-admins may only target their own direct reports
		if role != models.RoleAdmin && (a.BossID == nil || *a.BossID != userID) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "You can only assign tasks to your direct subordinates",
			})
		}
	}

	task := models.Task{
		Project:   strings.TrimSpace(req.Project),
		Title:     strings.TrimSpace(req.Task),
		Subtask:   strings.TrimSpace(req.Subtask),
		Status:    models.StatusPending,
		Priority:  priority,
		TaskType:  taskType,
		EndDate:   &endDate,
		LastReset: services.Today(now),
		CreatedBy: userID,
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&task).Error; err != nil {
			return err
		}
		for _, a := range assignees {
			assignment := models.TaskAssignment{TaskID: task.ID, UserID: a.ID}
			if err := tx.Create(&assignment).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to assign task",
		})
	}

	logActivity(task.ID, userID, "task_created", map[string]interface{}{
		"project": task.Project,
		"task":    task.Title,
	})

	for _, a := range assignees {
		if a.ID == userID {
			continue
		}
		CreateNotification(a.ID, "task_assigned", "New task assigned",
			task.Project+": "+task.Title, map[string]interface{}{"taskId": task.ID.String()})
		WS.Broadcast(a.ID, userID, WSEvent{
			Type:   EventTaskAssigned,
			TaskID: task.ID.String(),
			UserID: userID.String(),
			Data:   task,
		})
	}

	return c.Status(fiber.StatusCreated).JSON(task)
}

// GetMyTasks returns the caller's tasks after running the recurring-task
// reset sweep, sorted the way the dashboards display them.
func GetMyTasks(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	tasks, err := loadUserTasks(userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch tasks",
		})
	}

	tasks, err = sweepTasks(tasks, time.Now(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to reset recurring tasks",
		})
	}

	return c.JSON(buildTaskList(tasks, c.Query("status"), c.Query("taskType")))
}

// GetUserTasks lets a boss (or admin) view a subordinate's task list.
// No reset sweep runs here; recurring resets belong to the owner's own reads.
func GetUserTasks(c *fiber.Ctx) error {
	callerID := middleware.GetUserID(c)
	role := middleware.GetRole(c)

	targetID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid user ID",
		})
	}

	var target models.User
	if err := database.DB.First(&target, targetID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}

	if role != models.RoleAdmin && targetID != callerID &&
		(target.BossID == nil || *target.BossID != callerID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You can only view tasks of your direct subordinates",
		})
	}

	tasks, err := loadUserTasks(targetID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch tasks",
		})
	}

	return c.JSON(buildTaskList(tasks, c.Query("status"), c.Query("taskType")))
}

// ChangeTaskStatus rewrites the status of the canonical task record. Every
// assignee and superior sees the same record, so one write is the whole sync.
func ChangeTaskStatus(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	role := middleware.GetRole(c)

	taskID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid task ID",
		})
	}

	var req models.ChangeStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	newStatus := models.NormalizeStatus(req.Status)
	if !models.ValidStatus(newStatus) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid status. Must be: pending, work in progress, or completed",
		})
	}

	var task models.Task
	if err := database.DB.Preload("Notes").First(&task, taskID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Task not found",
		})
	}

	if !canModifyTask(taskID, userID, role) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You do not have access to this task",
		})
	}

	previous := models.NormalizeStatus(task.Status)
	if previous == models.StatusCompleted && newStatus != models.StatusCompleted &&
		role != models.RoleHead && role != models.RoleAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Only a head can reopen a completed task",
		})
	}

	// A task cannot be work in progress without a progress note
	if newStatus == models.StatusWorkInProgress && len(task.Notes) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Add a work in progress note before setting this status",
		})
	}

	actor := actorName(userID, c)
	if err := task.ApplyStatus(newStatus, actor, time.Now()); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid status",
		})
	}

	if err := database.DB.Save(&task).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update task status",
		})
	}

	logActivity(task.ID, userID, "status_changed", map[string]interface{}{
		"from": previous,
		"to":   newStatus,
	})
	notifyTaskAssignees(task.ID, userID, "task_status_changed", "Task status updated",
		task.Title+" is now "+newStatus, EventTaskStatusChanged, task)

	return c.JSON(task)
}

// DeleteTask removes the task for every role-holder at once. Admin only.
func DeleteTask(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	taskID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid task ID",
		})
	}

	var task models.Task
	if err := database.DB.First(&task, taskID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Task not found",
		})
	}

	assigneeIDs := taskAssigneeIDs(taskID)

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", taskID).Delete(&models.TaskAssignment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", taskID).Delete(&models.TaskNote{}).Error; err != nil {
			return err
		}
		return tx.Delete(&task).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete task",
		})
	}

	for _, id := range assigneeIDs {
		if id == userID {
			continue
		}
		CreateNotification(id, "task_deleted", "Task removed",
			task.Project+": "+task.Title, map[string]interface{}{"taskId": taskID.String()})
		WS.Broadcast(id, userID, WSEvent{
			Type:   EventTaskDeleted,
			TaskID: taskID.String(),
			UserID: userID.String(),
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

// loadUserTasks fetches all tasks assigned to a user with their notes.
func loadUserTasks(userID uuid.UUID) ([]models.Task, error) {
	var tasks []models.Task
	err := database.DB.
		Joins("JOIN task_assignments ON task_assignments.task_id = tasks.id").
		Where("task_assignments.user_id = ?", userID).
		Preload("Notes").
		Find(&tasks).Error
	return tasks, err
}

// sweepTasks applies the recurring reset to every due task and persists the
// changed ones in a single transaction. No write happens when nothing is due.
func sweepTasks(tasks []models.Task, now time.Time, actorID uuid.UUID) ([]models.Task, error) {
	var changed []*models.Task
	for i := range tasks {
		if services.ResetDue(&tasks[i], now) {
			changed = append(changed, &tasks[i])
		}
	}
	if len(changed) == 0 {
		return tasks, nil
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		for _, t := range changed {
			updates := map[string]interface{}{
				"status":              t.Status,
				"last_reset":          t.LastReset,
				"status_changed_by":   nil,
				"status_changed_date": nil,
				"completed_by":        nil,
				"completed_date":      nil,
				"end_date":            t.EndDate,
			}
			if err := tx.Model(&models.Task{}).Where("id = ?", t.ID).Updates(updates).Error; err != nil {
				return err
			}
			if err := tx.Where("task_id = ?", t.ID).Delete(&models.TaskNote{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return tasks, err
	}

	for _, t := range changed {
		logActivity(t.ID, actorID, "task_reset", map[string]interface{}{
			"taskType":  t.TaskType,
			"lastReset": t.LastReset,
		})
	}
	return tasks, nil
}

// buildTaskList sorts, filters and counts tasks for a dashboard response.
// Counters always cover the unfiltered set.
func buildTaskList(tasks []models.Task, statusFilter, typeFilter string) models.TaskListResponse {
	resp := models.TaskListResponse{Assigned: len(tasks)}
	for _, t := range tasks {
		switch models.NormalizeStatus(t.Status) {
		case models.StatusPending:
			resp.Pending++
		case models.StatusWorkInProgress:
			resp.WorkInProgress++
		case models.StatusCompleted:
			resp.Completed++
		}
	}

	filtered := tasks
	if statusFilter != "" {
		want := models.NormalizeStatus(statusFilter)
		filtered = nil
		for _, t := range tasks {
			if models.NormalizeStatus(t.Status) == want {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}
	if typeFilter != "" {
		want := strings.ToLower(typeFilter)
		filtered = nil
		for _, t := range tasks {
			if t.TaskType == want {
				filtered = append(filtered, t)
			}
		}
	}

	models.SortTasks(filtered)
	if filtered == nil {
		filtered = []models.Task{}
	}
	resp.Tasks = filtered
	return resp
}

// canModifyTask allows the admin, any assignee, and the direct boss of any
// assignee to act on a task.
func canModifyTask(taskID, userID uuid.UUID, role string) bool {
	if role == models.RoleAdmin {
		return true
	}

	var count int64
	database.DB.Model(&models.TaskAssignment{}).
		Where("task_id = ? AND user_id = ?", taskID, userID).
		Count(&count)
	if count > 0 {
		return true
	}

	database.DB.Model(&models.TaskAssignment{}).
		Joins("JOIN users ON users.id = task_assignments.user_id").
		Where("task_assignments.task_id = ? AND users.boss_id = ?", taskID, userID).
		Count(&count)
	return count > 0
}

func taskAssigneeIDs(taskID uuid.UUID) []uuid.UUID {
	var ids []uuid.UUID
	database.DB.Model(&models.TaskAssignment{}).
		Where("task_id = ?", taskID).
		Pluck("user_id", &ids)
	return ids
}

// notifyTaskAssignees fans a notification and a live event out to every
// assignee except the acting user.
func notifyTaskAssignees(taskID, excludeUserID uuid.UUID, notifType, title, body, eventType string, data interface{}) {
	for _, id := range taskAssigneeIDs(taskID) {
		if id == excludeUserID {
			continue
		}
		CreateNotification(id, notifType, title, body, map[string]interface{}{"taskId": taskID.String()})
		WS.Broadcast(id, excludeUserID, WSEvent{
			Type:   eventType,
			TaskID: taskID.String(),
			UserID: excludeUserID.String(),
			Data:   data,
		})
	}
}

// actorName resolves the display name recorded in status and note audits.
func actorName(userID uuid.UUID, c *fiber.Ctx) string {
	var user models.User
	if err := database.DB.Select("name", "email").First(&user, userID).Error; err == nil {
		if user.Name != "" {
			return user.Name
		}
		if user.Email != "" {
			return user.Email
		}
	}
	if email := middleware.GetEmail(c); email != "" {
		return email
	}
	return "Unknown"
}
