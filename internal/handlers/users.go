package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rahulsv/taskchain-api/internal/database"
	"github.com/rahulsv/taskchain-api/internal/middleware"
	"github.com/rahulsv/taskchain-api/internal/models"
)

var errBossTaken = errors.New("subordinate already has a superior")

// GetUsers lists the role directory, optionally narrowed to one role or to
// people without a boss (the assignment pickers). Admin only.
func GetUsers(c *fiber.Ctx) error {
	query := database.DB.Model(&models.User{}).Where("role != ?", models.RoleAdmin)

	if role := strings.ToLower(c.Query("role")); role != "" {
		if !models.ValidRole(role) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid role",
			})
		}
		query = query.Where("role = ?", role)
	}

	if c.Query("unassigned") == "true" {
		query = query.Where("boss_id IS NULL")
	}

	var users []models.User
	if err := query.Order("name").Find(&users).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch users",
		})
	}

	return c.JSON(fiber.Map{"users": users})
}

// GetSubordinates returns a user's direct reports. Visible to admin and to
// the user themself.
func GetSubordinates(c *fiber.Ctx) error {
	callerID := middleware.GetUserID(c)
	role := middleware.GetRole(c)

	targetID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid user ID",
		})
	}

	if role != models.RoleAdmin && targetID != callerID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You can only view your own subordinates",
		})
	}

	var subordinates []models.User
	if err := database.DB.Where("boss_id = ?", targetID).Order("name").Find(&subordinates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch subordinates",
		})
	}

	return c.JSON(fiber.Map{"subordinates": subordinates})
}

// AssignSubordinates links subordinates to a superior one level up the
// hierarchy. A person already reporting to someone is rejected outright, so
// no two superiors ever share a report. Admin only.
func AssignSubordinates(c *fiber.Ctx) error {
	var req models.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.SuperiorID == uuid.Nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Please select a superior",
		})
	}
	if len(req.SubordinateIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Please select at least one subordinate",
		})
	}

	var superior models.User
	if err := database.DB.First(&superior, req.SuperiorID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Superior not found",
		})
	}

	var subordinates []models.User
	database.DB.Where("id IN ?", req.SubordinateIDs).Find(&subordinates)
	if len(subordinates) != len(req.SubordinateIDs) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "One or more subordinates not found",
		})
	}

	for _, sub := range subordinates {
		if !models.CanManage(superior.Role, sub.Role) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Subordinates must sit exactly one level below the superior",
			})
		}
	}

	// The boss link is claimed with a guarded update so two concurrent
	// requests can never both take the same subordinate. Any conflict rolls
	// the whole batch back.
	var taken string
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		for _, sub := range subordinates {
			res := tx.Model(&models.User{}).
				Where("id = ? AND boss_id IS NULL", sub.ID).
				Update("boss_id", superior.ID)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				taken = sub.Name
				return errBossTaken
			}
		}
		return nil
	})
	if errors.Is(err, errBossTaken) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": taken + " is already assigned to a superior",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to assign subordinates",
		})
	}

	return c.JSON(fiber.Map{"success": true, "assigned": len(subordinates)})
}
