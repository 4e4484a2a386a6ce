package controller

import (
	"context"
	"log"
	"strings"
	"time"

	"leadpilot/config"
	"leadpilot/models"
	"leadpilot/queue"
	"leadpilot/scraper"
	"leadpilot/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type ScrapeController struct {
	DB      *gorm.DB
	Logger  *log.Logger
	Queue   *queue.Dispatcher
	Limiter *utils.RateLimiter
}

func NewScrapeController(db *gorm.DB, logger *log.Logger, q *queue.Dispatcher, limiter *utils.RateLimiter) *ScrapeController {
	return &ScrapeController{DB: db, Logger: logger, Queue: q, Limiter: limiter}
}

type scrapeJobPayload struct {
	ScrapeJobID uint `json:"scrape_job_id"`
}

type scrapeInput struct {
	Source     string `json:"source" validate:"required,oneof=maps serp places"`
	Query      string `json:"query" validate:"required,min=2"`
	MaxResults int    `json:"max_results" validate:"omitempty,min=1,max=500"`
}

// CreateScrapeJob records the job and hands it to the queue; the actual
// scraping happens in the job callback so API latency stays flat
func (sc *ScrapeController) CreateScrapeJob(c *fiber.Ctx) error {
	var input scrapeInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
	}
	if err := utils.ValidateStruct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Validation failed",
			"details": err.Error(),
		})
	}

	job := models.ScrapeJob{
		Source: input.Source,
		Query:  input.Query,
		Status: "pending",
	}
	if input.MaxResults > 0 {
		job.MaxResults = input.MaxResults
	}
	if err := sc.DB.Create(&job).Error; err != nil {
		sc.Logger.Printf("SCRAPER: failed to create job: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create scrape job",
		})
	}

	if err := sc.Queue.Publish("/jobs/scrape", scrapeJobPayload{ScrapeJobID: job.ID}, 0); err != nil {
		sc.DB.Model(&job).Updates(map[string]interface{}{
			"status":     "failed",
			"last_error": "failed to enqueue: " + err.Error(),
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to enqueue scrape job",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Scrape job queued",
		"job":     job,
	})
}

func (sc *ScrapeController) GetScrapeJobs(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := sc.DB.Model(&models.ScrapeJob{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)

	var jobs []models.ScrapeJob
	if err := query.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch scrape jobs",
		})
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  jobs,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

func (sc *ScrapeController) GetScrapeJob(c *fiber.Ctx) error {
	var job models.ScrapeJob
	if err := sc.DB.First(&job, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Scrape job not found",
		})
	}
	return c.JSON(job)
}

// HandleScrapeJob is the queue callback running one scrape end to end
func (sc *ScrapeController) HandleScrapeJob(c *fiber.Ctx) error {
	var payload scrapeJobPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid job payload",
		})
	}

	var job models.ScrapeJob
	if err := sc.DB.First(&job, payload.ScrapeJobID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Scrape job not found",
		})
	}

	// Re-delivered jobs that already ran are acknowledged, not re-run
	if job.Status != "pending" {
		return c.JSON(fiber.Map{"message": "Job already processed"})
	}

	ctx := context.Background()

	allowed, err := sc.Limiter.CanScrape(ctx, job.Source, config.AppConfig.Scraper.DailyLimit)
	if err != nil {
		sc.Logger.Printf("SCRAPER: rate check failed for job %d: %v", job.ID, err)
	}
	if !allowed {
		sc.failJob(&job, "daily scrape limit reached for source "+job.Source)
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "Daily scrape limit reached",
		})
	}

	now := time.Now()
	sc.DB.Model(&job).Updates(map[string]interface{}{
		"status":     "running",
		"started_at": now,
	})

	adapter, err := scraper.New(job.Source, config.AppConfig.Scraper)
	if err != nil {
		sc.failJob(&job, err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	results, err := adapter.Scrape(ctx, job.Query, job.MaxResults)
	if err != nil {
		utils.LogError("scrape_failed", err, map[string]interface{}{
			"scrape_job_id": job.ID,
			"source":        job.Source,
		})
		sc.failJob(&job, err.Error())
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Scrape failed",
		})
	}

	if err := sc.Limiter.IncrementScrapeCount(ctx, job.Source); err != nil {
		sc.Logger.Printf("SCRAPER: rate counter increment failed: %v", err)
	}

	imported, skipped := sc.importResults(&job, results)

	sc.DB.Model(&job).Updates(map[string]interface{}{
		"status":         "completed",
		"completed_at":   time.Now(),
		"found_count":    len(results),
		"imported_count": imported,
		"skipped_count":  skipped,
	})

	sc.Logger.Printf("SCRAPER: job %d (%s %q) found %d, imported %d, skipped %d",
		job.ID, job.Source, job.Query, len(results), imported, skipped)

	return c.JSON(fiber.Map{
		"message":  "Scrape completed",
		"found":    len(results),
		"imported": imported,
		"skipped":  skipped,
	})
}

// importResults turns scraper results into leads, skipping entries without a
// usable email and addresses already in the store
func (sc *ScrapeController) importResults(job *models.ScrapeJob, results []scraper.Result) (imported, skipped int) {
	for _, result := range results {
		email := strings.ToLower(strings.TrimSpace(result.Email))
		if email == "" || !utils.ValidateEmailSyntax(email) {
			skipped++
			continue
		}

		lead := models.Lead{
			Email:       email,
			FirstName:   result.FirstName,
			LastName:    result.LastName,
			Company:     result.Company,
			City:        result.City,
			State:       result.State,
			Phone:       result.Phone,
			Website:     result.Website,
			Status:      "new",
			Source:      job.Source,
			SourceURL:   result.SourceURL,
			ScrapeJobID: &job.ID,
		}
		if err := sc.DB.Create(&lead).Error; err != nil {
			// duplicate email
			skipped++
			continue
		}
		imported++
	}
	return imported, skipped
}

func (sc *ScrapeController) failJob(job *models.ScrapeJob, reason string) {
	sc.DB.Model(job).Updates(map[string]interface{}{
		"status":       "failed",
		"completed_at": time.Now(),
		"last_error":   reason,
	})
}
