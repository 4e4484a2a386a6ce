package controller

import (
	"context"
	"log"
	"time"

	"leadpilot/config"
	"leadpilot/models"
	"leadpilot/utils"
	"leadpilot/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SendController struct {
	DB      *gorm.DB
	Logger  *log.Logger
	Mailer  *utils.Mailer
	Limiter *utils.RateLimiter
}

func NewSendController(db *gorm.DB, logger *log.Logger, mailer *utils.Mailer, limiter *utils.RateLimiter) *SendController {
	return &SendController{DB: db, Logger: logger, Mailer: mailer, Limiter: limiter}
}

// HandleSendJob consumes one send-job payload delivered by the queue.
// Delivery is at-least-once, so a recipient already past queued is a no-op.
func (sc *SendController) HandleSendJob(c *fiber.Ctx) error {
	var payload worker.SendJobPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid job payload",
			"details": err.Error(),
		})
	}

	var recipient models.CampaignLead
	if err := sc.DB.Preload("Lead").First(&recipient, payload.CampaignLeadID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Recipient not found",
		})
	}

	switch recipient.Status {
	case models.RecipientStatusQueued, models.RecipientStatusFailed:
		// proceed
	default:
		return c.JSON(fiber.Map{"message": "Recipient already processed"})
	}

	var campaign models.Campaign
	if err := sc.DB.First(&campaign, recipient.CampaignID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	// Opt-outs recorded after queueing still win
	var unsub models.Unsubscribe
	if err := sc.DB.Where("email = ?", payload.Email).First(&unsub).Error; err == nil {
		sc.DB.Model(&recipient).Update("status", models.RecipientStatusSkipped)
		sc.Logger.Printf("Recipient %d skipped: %s is unsubscribed", recipient.ID, payload.Email)
		return c.JSON(fiber.Map{"message": "Recipient skipped"})
	}

	token := uuid.New().String()
	footer := models.GetSetting(sc.DB, models.SettingComplianceFooter, "")
	html := utils.ProcessEmailForSending(payload.HTMLBody, footer, config.AppConfig.BaseURL, recipient.ID, token)

	fromEmail := campaign.FromEmail
	if fromEmail == "" {
		fromEmail = models.GetSetting(sc.DB, models.SettingFromEmail, "")
	}
	fromName := campaign.FromName
	if fromName == "" {
		fromName = models.GetSetting(sc.DB, models.SettingFromName, "")
	}
	replyTo := campaign.ReplyTo
	if replyTo == "" {
		replyTo = models.GetSetting(sc.DB, models.SettingReplyTo, "")
	}

	messageID, err := sc.Mailer.Send(utils.OutgoingEmail{
		FromName: fromName,
		From:     fromEmail,
		To:       payload.Email,
		ReplyTo:  replyTo,
		Subject:  payload.Subject,
		HTML:     html,
		Text:     payload.TextBody,
		Headers:  map[string]string{"X-Campaign-ID": campaignScheduleName(campaign.ID)},
	})
	if err != nil {
		utils.LogError("send_failed", err, map[string]interface{}{
			"campaign_id":      campaign.ID,
			"campaign_lead_id": recipient.ID,
		})
		sc.DB.Model(&recipient).Updates(map[string]interface{}{
			"status":      models.RecipientStatusFailed,
			"last_error":  err.Error(),
			"retry_count": gorm.Expr("retry_count + ?", 1),
		})
		// Re-delivery, if any, is the queue's decision via its retry count
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Provider send failed",
		})
	}

	now := time.Now()
	// The token is persisted with the sent mark so it resolves before any
	// tracking link or pixel can be hit
	if err := sc.DB.Model(&recipient).Updates(map[string]interface{}{
		"status":            models.RecipientStatusSent,
		"sent_at":           now,
		"message_id":        messageID,
		"unsubscribe_token": token,
	}).Error; err != nil {
		utils.LogError("send_record_failed", err, map[string]interface{}{
			"campaign_lead_id": recipient.ID,
			"message_id":       messageID,
		})
	}

	sc.DB.Model(&campaign).Update("sent_count", gorm.Expr("sent_count + ?", 1))
	sc.DB.Model(&models.Lead{}).Where("id = ?", recipient.LeadID).
		Updates(map[string]interface{}{"status": "contacted", "last_contact": now})

	if domain := worker.DomainFromEmail(fromEmail); domain != "" {
		sc.DB.Model(&models.DomainWarmup{}).Where("domain = ?", domain).
			Update("total_sent", gorm.Expr("total_sent + ?", 1))
	}

	if err := sc.Limiter.IncrementEmailCount(context.Background()); err != nil {
		sc.Logger.Printf("Rate counter increment failed: %v", err)
	}

	return c.JSON(fiber.Map{
		"message":    "Email sent",
		"message_id": messageID,
	})
}
