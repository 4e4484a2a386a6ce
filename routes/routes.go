package routes

import (
	"log"
	"os"

	controller "leadpilot/controllers"
	"leadpilot/middleware"
	"leadpilot/queue"
	"leadpilot/utils"
	"leadpilot/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"gorm.io/gorm"
)

// Deps carries the shared services the route handlers need
type Deps struct {
	DB       *gorm.DB
	Queue    *queue.Dispatcher
	Mailer   *utils.Mailer
	Limiter  *utils.RateLimiter
	Dispatch *worker.CampaignDispatcher
	Warmup   *worker.WarmupWorker
}

func SetupRoutes(app *fiber.App, deps Deps) {
	routeLogger := log.New(os.Stdout, "ROUTES: ", log.Ldate|log.Ltime|log.Lshortfile)

	leadLogger := log.New(os.Stdout, "LEAD: ", log.Ldate|log.Ltime|log.Lshortfile)
	templateLogger := log.New(os.Stdout, "TEMPLATE: ", log.Ldate|log.Ltime|log.Lshortfile)
	campaignLogger := log.New(os.Stdout, "CAMPAIGN: ", log.Ldate|log.Ltime|log.Lshortfile)
	scrapeLogger := log.New(os.Stdout, "SCRAPER: ", log.Ldate|log.Ltime|log.Lshortfile)
	warmupLogger := log.New(os.Stdout, "WARMUP: ", log.Ldate|log.Ltime|log.Lshortfile)
	sendLogger := log.New(os.Stdout, "SEND: ", log.Ldate|log.Ltime|log.Lshortfile)
	trackLogger := log.New(os.Stdout, "TRACK: ", log.Ldate|log.Ltime|log.Lshortfile)
	webhookLogger := log.New(os.Stdout, "WEBHOOK: ", log.Ldate|log.Ltime|log.Lshortfile)
	settingsLogger := log.New(os.Stdout, "SETTINGS: ", log.Ldate|log.Ltime|log.Lshortfile)

	leadController := controller.NewLeadController(deps.DB, leadLogger)
	templateController := controller.NewTemplateController(deps.DB, templateLogger)
	campaignController := controller.NewCampaignController(deps.DB, campaignLogger, deps.Dispatch, deps.Queue)
	scrapeController := controller.NewScrapeController(deps.DB, scrapeLogger, deps.Queue, deps.Limiter)
	warmupController := controller.NewWarmupController(deps.DB, warmupLogger, deps.Warmup)
	sendController := controller.NewSendController(deps.DB, sendLogger, deps.Mailer, deps.Limiter)
	trackingController := controller.NewTrackingController(deps.DB, trackLogger)
	webhookController := controller.NewWebhookController(deps.DB, webhookLogger)
	settingsController := controller.NewSettingsController(deps.DB, settingsLogger)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Public endpoints hit from inside emails; no auth, no API prefix
	app.Get("/track/open/:id", trackingController.HandleOpenTracking)
	app.Get("/track/click/:id", trackingController.HandleClickTracking)
	app.Get("/unsubscribe/:token", trackingController.HandleUnsubscribe)

	// Provider delivery events
	app.Post("/webhooks/email", webhookController.HandleEmailWebhook)

	// Queue job callbacks, HMAC-verified
	jobs := app.Group("/jobs", middleware.QueueAuth())
	jobs.Post("/send", sendController.HandleSendJob)
	jobs.Post("/dispatch", campaignController.HandleDispatchAll)
	jobs.Post("/dispatch/:id", campaignController.HandleDispatchCampaign)
	jobs.Post("/warmup", warmupController.HandleWarmupJob)
	jobs.Post("/scrape", scrapeController.HandleScrapeJob)

	api := app.Group("/api/v1", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	leads := api.Group("/leads")
	leads.Post("/", leadController.CreateLead)
	leads.Get("/", leadController.GetLeads)
	leads.Post("/import", leadController.ImportLeads)
	leads.Get("/export", leadController.ExportLeads)
	leads.Get("/:id", leadController.GetLead)
	leads.Put("/:id", leadController.UpdateLead)
	leads.Delete("/:id", leadController.DeleteLead)
	leads.Post("/:id/verify", leadController.VerifyLead)

	templates := api.Group("/templates")
	templates.Post("/", templateController.CreateTemplate)
	templates.Get("/", templateController.GetTemplates)
	templates.Get("/:id", templateController.GetTemplate)
	templates.Put("/:id", templateController.UpdateTemplate)
	templates.Delete("/:id", templateController.DeleteTemplate)
	templates.Get("/:id/preview", templateController.PreviewTemplate)

	campaigns := api.Group("/campaigns")
	campaigns.Post("/", campaignController.CreateCampaign)
	campaigns.Get("/", campaignController.GetCampaigns)
	campaigns.Get("/:id", campaignController.GetCampaign)
	campaigns.Put("/:id", campaignController.UpdateCampaign)
	campaigns.Delete("/:id", campaignController.DeleteCampaign)
	campaigns.Post("/:id/recipients", campaignController.AddRecipients)
	campaigns.Get("/:id/stats", campaignController.GetCampaignStats)
	campaigns.Post("/:id/start", campaignController.StartCampaign)
	campaigns.Post("/:id/pause", campaignController.PauseCampaign)
	campaigns.Post("/:id/resume", campaignController.ResumeCampaign)
	campaigns.Post("/:id/cancel", campaignController.CancelCampaign)

	scrapes := api.Group("/scrape-jobs")
	scrapes.Post("/", scrapeController.CreateScrapeJob)
	scrapes.Get("/", scrapeController.GetScrapeJobs)
	scrapes.Get("/:id", scrapeController.GetScrapeJob)

	warmups := api.Group("/warmups")
	warmups.Post("/", warmupController.StartWarmup)
	warmups.Get("/", warmupController.GetWarmups)
	warmups.Get("/:domain", warmupController.GetWarmup)
	warmups.Post("/:domain/resume", warmupController.ResumeWarmup)
	warmups.Delete("/:domain", warmupController.DeleteWarmup)

	settings := api.Group("/settings")
	settings.Get("/", settingsController.GetSettings)
	settings.Put("/", settingsController.UpdateSettings)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Route not found",
		})
	})

	routeLogger.Println("Routes initialized successfully")
}
