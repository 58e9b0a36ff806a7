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
)

// AddNote attaches a work-in-progress note and moves the task to
// "work in progress" in the same transaction.
func AddNote(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	role := middleware.GetRole(c)

	taskID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid task ID",
		})
	}

	var req models.CreateNoteRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Note text is required",
		})
	}

	var task models.Task
	if err := database.DB.First(&task, taskID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Task not found",
		})
	}

	if !canModifyTask(taskID, userID, role) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You do not have access to this task",
		})
	}

	if models.NormalizeStatus(task.Status) == models.StatusCompleted {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Task is already completed",
		})
	}

	actor := actorName(userID, c)
	now := time.Now()
	note := models.TaskNote{
		TaskID:  taskID,
		Text:    strings.TrimSpace(req.Text),
		AddedBy: actor,
		AddedAt: now,
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&note).Error; err != nil {
			return err
		}
		if err := task.ApplyStatus(models.StatusWorkInProgress, actor, now); err != nil {
			return err
		}
		return tx.Save(&task).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to add note",
		})
	}

	logActivity(taskID, userID, "note_added", nil)
	notifyTaskAssignees(taskID, userID, "note_added", "Progress note added",
		task.Title+": "+note.Text, EventNoteAdded, note)

	return c.Status(fiber.StatusCreated).JSON(note)
}

// UpdateNote edits the text of an active note and records the edit audit.
func UpdateNote(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	role := middleware.GetRole(c)

	taskID, noteID, ok := parseNoteParams(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid task or note ID",
		})
	}

	var req models.UpdateNoteRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Note text is required",
		})
	}

	if !canModifyTask(taskID, userID, role) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You do not have access to this task",
		})
	}

	var note models.TaskNote
	if err := database.DB.Where("id = ? AND task_id = ?", noteID, taskID).First(&note).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Note not found",
		})
	}

	if note.Completed {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Completed notes cannot be edited",
		})
	}

	actor := actorName(userID, c)
	now := time.Now()
	note.Text = strings.TrimSpace(req.Text)
	note.EditedBy = &actor
	note.LastEdited = &now

	if err := database.DB.Save(&note).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update note",
		})
	}

	notifyTaskAssignees(taskID, userID, "note_updated", "Progress note edited",
		note.Text, EventNoteUpdated, note)

	return c.JSON(note)
}

// CompleteNote marks a note as done with its completion audit.
func CompleteNote(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	role := middleware.GetRole(c)

	taskID, noteID, ok := parseNoteParams(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid task or note ID",
		})
	}

	if !canModifyTask(taskID, userID, role) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You do not have access to this task",
		})
	}

	var note models.TaskNote
	if err := database.DB.Where("id = ? AND task_id = ?", noteID, taskID).First(&note).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Note not found",
		})
	}

	if note.Completed {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Note is already completed",
		})
	}

	actor := actorName(userID, c)
	now := time.Now()
	note.Completed = true
	note.CompletedBy = &actor
	note.CompletedAt = &now

	if err := database.DB.Save(&note).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to complete note",
		})
	}

	logActivity(taskID, userID, "note_completed", nil)
	notifyTaskAssignees(taskID, userID, "note_completed", "Progress note completed",
		note.Text, EventNoteCompleted, note)

	return c.JSON(note)
}

// RemoveNote deletes a note; admin only, matching the original. A task left
// without notes always drops back to pending, whatever its status was.
func RemoveNote(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	taskID, noteID, ok := parseNoteParams(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid task or note ID",
		})
	}

	var task models.Task
	if err := database.DB.First(&task, taskID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Task not found",
		})
	}

	var note models.TaskNote
	if err := database.DB.Where("id = ? AND task_id = ?", noteID, taskID).First(&note).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Note not found",
		})
	}

	actor := actorName(userID, c)
	now := time.Now()

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&note).Error; err != nil {
			return err
		}

		var remaining int64
		if err := tx.Model(&models.TaskNote{}).Where("task_id = ?", taskID).Count(&remaining).Error; err != nil {
			return err
		}

		if remaining == 0 && models.NormalizeStatus(task.Status) != models.StatusPending {
			if err := task.ApplyStatus(models.StatusPending, actor, now); err != nil {
				return err
			}
			return tx.Save(&task).Error
		}
		return nil
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to remove note",
		})
	}

	logActivity(taskID, userID, "note_removed", nil)
	notifyTaskAssignees(taskID, userID, "note_removed", "Progress note removed",
		task.Title, EventNoteRemoved, fiber.Map{"noteId": noteID, "status": task.Status})

	return c.JSON(fiber.Map{"success": true, "status": task.Status})
}

func parseNoteParams(c *fiber.Ctx) (uuid.UUID, uuid.UUID, bool) {
	taskID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	noteID, err := uuid.Parse(c.Params("noteId"))
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	return taskID, noteID, true
}
