package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/rahulsv/taskchain-api/internal/handlers"
	"github.com/rahulsv/taskchain-api/internal/middleware"
)

func Setup(app *fiber.App) {
	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", handlers.Register)
	auth.Post("/login", handlers.Login)

	protected := api.Group("/", middleware.Protected())

	protected.Get("/me", handlers.GetMe)
	protected.Put("/me", handlers.UpdateProfile)
	protected.Put("/me/password", handlers.ChangePassword)
	protected.Post("/me/avatar", handlers.UploadAvatar)
	protected.Get("/me/tasks", handlers.GetMyTasks)

	// Role directory & hierarchy
	protected.Get("/users", middleware.AdminOnly(), handlers.GetUsers)
	protected.Get("/users/:id/subordinates", handlers.GetSubordinates)
	protected.Get("/users/:id/tasks", handlers.GetUserTasks)
	protected.Post("/assignments", middleware.AdminOnly(), handlers.AssignSubordinates)

	// Tasks
	tasks := protected.Group("/tasks")
	tasks.Post("/", handlers.CreateTask)
	tasks.Put("/:id/status", handlers.ChangeTaskStatus)
	tasks.Delete("/:id", middleware.AdminOnly(), handlers.DeleteTask)
	tasks.Get("/:id/activity", handlers.GetTaskActivity)

	// Work-in-progress notes
	tasks.Post("/:id/notes", handlers.AddNote)
	tasks.Put("/:id/notes/:noteId", handlers.UpdateNote)
	tasks.Post("/:id/notes/:noteId/complete", handlers.CompleteNote)
	tasks.Delete("/:id/notes/:noteId", middleware.AdminOnly(), handlers.RemoveNote)

	// Notifications
	notifications := protected.Group("/notifications")
	notifications.Get("/", handlers.GetNotifications)
	notifications.Put("/:id/read", handlers.MarkNotificationRead)
	notifications.Post("/read-all", handlers.MarkAllRead)

	// Device token for push notifications
	protected.Post("/device-token", handlers.RegisterDeviceToken)

	// WebSocket for real-time task updates
	app.Use("/ws", handlers.WebSocketUpgrade())
	app.Get("/ws/tasks", websocket.New(handlers.HandleWebSocket))
}
