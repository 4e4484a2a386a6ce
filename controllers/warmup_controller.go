package controller

import (
	"log"
	"strings"
	"time"

	"leadpilot/models"
	"leadpilot/utils"
	"leadpilot/worker"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type WarmupController struct {
	DB     *gorm.DB
	Logger *log.Logger
	Worker *worker.WarmupWorker
}

func NewWarmupController(db *gorm.DB, logger *log.Logger, w *worker.WarmupWorker) *WarmupController {
	return &WarmupController{DB: db, Logger: logger, Worker: w}
}

type warmupInput struct {
	Domain           string `json:"domain" validate:"required,fqdn"`
	TargetDailyLimit int    `json:"target_daily_limit" validate:"omitempty,min=10,max=10000"`
}

// StartWarmup begins the ramp-up schedule for a sending domain
func (wc *WarmupController) StartWarmup(c *fiber.Ctx) error {
	var input warmupInput
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

	domain := strings.ToLower(strings.TrimSpace(input.Domain))

	var existing models.DomainWarmup
	if err := wc.DB.Where("domain = ?", domain).First(&existing).Error; err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":  "A warm-up already exists for this domain",
			"warmup": existing,
		})
	}

	now := time.Now()
	warmup := models.DomainWarmup{
		Domain:            domain,
		WarmupDay:         1,
		CurrentDailyLimit: worker.PlanLimitForDay(1),
		Status:            models.WarmupStatusActive,
		IsHealthy:         true,
		WarmupStartedAt:   &now,
	}
	if input.TargetDailyLimit > 0 {
		warmup.TargetDailyLimit = input.TargetDailyLimit
	}

	if err := wc.DB.Create(&warmup).Error; err != nil {
		wc.Logger.Printf("WARMUP: failed to create warm-up for %s: %v", domain, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to start warm-up",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Warm-up started",
		"warmup":  warmup,
	})
}

func (wc *WarmupController) GetWarmups(c *fiber.Ctx) error {
	var warmups []models.DomainWarmup
	query := wc.DB.Model(&models.DomainWarmup{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Order("domain").Find(&warmups).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch warm-ups",
		})
	}
	return c.JSON(fiber.Map{"warmups": warmups})
}

func (wc *WarmupController) GetWarmup(c *fiber.Ctx) error {
	var warmup models.DomainWarmup
	if err := wc.DB.Where("domain = ?", strings.ToLower(c.Params("domain"))).
		First(&warmup).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No warm-up for this domain",
		})
	}

	deliverability := 0.0
	bounceRate := 0.0
	if warmup.TotalSent > 0 {
		deliverability = float64(warmup.TotalDelivered) / float64(warmup.TotalSent)
		bounceRate = float64(warmup.TotalBounced) / float64(warmup.TotalSent)
	}

	return c.JSON(fiber.Map{
		"warmup":         warmup,
		"deliverability": deliverability,
		"bounce_rate":    bounceRate,
	})
}

// ResumeWarmup re-activates a warm-up paused for poor deliverability
func (wc *WarmupController) ResumeWarmup(c *fiber.Ctx) error {
	var warmup models.DomainWarmup
	if err := wc.DB.Where("domain = ?", strings.ToLower(c.Params("domain"))).
		First(&warmup).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No warm-up for this domain",
		})
	}

	if warmup.Status != models.WarmupStatusPaused {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Warm-up is not paused",
		})
	}

	if err := wc.DB.Model(&warmup).Updates(map[string]interface{}{
		"status":     models.WarmupStatusActive,
		"is_healthy": true,
	}).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to resume warm-up",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Warm-up resumed",
	})
}

func (wc *WarmupController) DeleteWarmup(c *fiber.Ctx) error {
	var warmup models.DomainWarmup
	if err := wc.DB.Where("domain = ?", strings.ToLower(c.Params("domain"))).
		First(&warmup).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No warm-up for this domain",
		})
	}

	if err := wc.DB.Delete(&warmup).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete warm-up",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Warm-up deleted",
	})
}

// HandleWarmupJob is the nightly cron callback advancing every active warm-up
func (wc *WarmupController) HandleWarmupJob(c *fiber.Ctx) error {
	wc.Worker.RunDaily()
	return c.JSON(fiber.Map{
		"message": "Warm-up run completed",
	})
}
