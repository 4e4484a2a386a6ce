package controller

import (
	"log"

	"leadpilot/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type SettingsController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewSettingsController(db *gorm.DB, logger *log.Logger) *SettingsController {
	return &SettingsController{DB: db, Logger: logger}
}

var knownSettingKeys = []string{
	models.SettingFromName,
	models.SettingFromEmail,
	models.SettingReplyTo,
	models.SettingTimezone,
	models.SettingSendWindowStart,
	models.SettingSendWindowEnd,
	models.SettingComplianceFooter,
}

func (sc *SettingsController) GetSettings(c *fiber.Ctx) error {
	settings := map[string]string{}
	for _, key := range knownSettingKeys {
		settings[key] = models.GetSetting(sc.DB, key, "")
	}
	return c.JSON(fiber.Map{"settings": settings})
}

// UpdateSettings upserts the provided keys; unknown keys are rejected so
// typos don't silently create dead settings
func (sc *SettingsController) UpdateSettings(c *fiber.Ctx) error {
	var input map[string]string
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
	}

	known := map[string]bool{}
	for _, key := range knownSettingKeys {
		known[key] = true
	}

	for key := range input {
		if !known[key] {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unknown setting key: " + key,
			})
		}
	}

	for key, value := range input {
		if err := models.SetSetting(sc.DB, key, value); err != nil {
			sc.Logger.Printf("SETTINGS: failed to update %s: %v", key, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to update setting " + key,
			})
		}
	}

	return c.JSON(fiber.Map{
		"message": "Settings updated",
	})
}
