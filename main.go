package main

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"

	"leadpilot/config"
	"leadpilot/middleware"
	"leadpilot/queue"
	"leadpilot/routes"
	"leadpilot/utils"
	"leadpilot/worker"
)

func main() {
	logger := log.New(os.Stdout, "SERVER: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Redis backs the send/scrape rate counters
	config.ConnectRedis()

	// Error reporting
	utils.InitSentry(config.AppConfig.SentryDSN, config.AppConfig.Environment)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName: "leadpilot",
	})

	// Add CORS middleware
	app.Use(middleware.CORS())

	// Shared services
	mailer := utils.NewMailer(config.AppConfig)
	limiter := utils.NewRateLimiter(config.Redis)

	dispatcher := queue.NewDispatcher(config.AppConfig.Queue, config.AppConfig.BaseURL,
		log.New(os.Stdout, "QUEUE: ", log.Ldate|log.Ltime|log.Lshortfile))

	campaignDispatcher := worker.NewCampaignDispatcher(config.DB, limiter, dispatcher,
		log.New(os.Stdout, "DISPATCH: ", log.Ldate|log.Ltime|log.Lshortfile))
	warmupWorker := worker.NewWarmupWorker(config.DB,
		log.New(os.Stdout, "WARMUP: ", log.Ldate|log.Ltime|log.Lshortfile))

	// Recurring jobs: nightly dispatch sweep and warm-up progression
	if err := dispatcher.Schedule("dispatch", "0 8 * * *", "/jobs/dispatch"); err != nil {
		logger.Printf("Failed to register dispatch schedule: %v", err)
	}
	if err := dispatcher.Schedule("warmup", "30 0 * * *", "/jobs/warmup"); err != nil {
		logger.Printf("Failed to register warmup schedule: %v", err)
	}
	dispatcher.Start()
	defer dispatcher.Stop()

	// Setup routes
	routes.SetupRoutes(app, routes.Deps{
		DB:       config.DB,
		Queue:    dispatcher,
		Mailer:   mailer,
		Limiter:  limiter,
		Dispatch: campaignDispatcher,
		Warmup:   warmupWorker,
	})

	// Start server
	logger.Printf("Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
