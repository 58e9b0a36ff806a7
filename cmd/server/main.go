package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/rahulsv/taskchain-api/internal/config"
	"github.com/rahulsv/taskchain-api/internal/database"
	"github.com/rahulsv/taskchain-api/internal/routes"
	"github.com/rahulsv/taskchain-api/internal/services"
)

func main() {
	// .env is optional; real deployments set env vars directly
	_ = godotenv.Load()

	cfg := config.Load()

	if err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	services.InitPush(cfg.FCMServiceAccount)

	app := fiber.New(fiber.Config{
		AppName: "TaskChain API",
	})

	app.Use(recover.New())
	app.Use(cors.New())
	app.Static("/uploads", "./uploads")

	routes.Setup(app)

	log.Printf("TaskChain API listening on :%s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
