package controller

import (
	"encoding/json"
	"log"
	"time"

	"leadpilot/config"
	"leadpilot/models"
	"leadpilot/queue"
	"leadpilot/utils"
	"leadpilot/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type WebhookController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewWebhookController(db *gorm.DB, logger *log.Logger) *WebhookController {
	return &WebhookController{DB: db, Logger: logger}
}

type providerEvent struct {
	Type string `json:"type"`
	Data struct {
		EmailID   string `json:"email_id"`
		To        string `json:"to"`
		URL       string `json:"url"`
		BounceType string `json:"bounce_type"`
		CreatedAt string `json:"created_at"`
	} `json:"data"`
}

// HandleEmailWebhook ingests provider delivery events. Signature enforcement
// only kicks in when a webhook secret is configured and the service runs in
// production, so local provider simulators stay usable.
func (wc *WebhookController) HandleEmailWebhook(c *fiber.Ctx) error {
	body := c.Body()

	secret := config.AppConfig.Provider.WebhookSecret
	if secret != "" && config.AppConfig.Environment == "production" {
		signature := c.Get("X-Provider-Signature")
		if !queue.VerifySignature(secret, body, signature) {
			utils.LogEvent("webhook_signature_rejected", map[string]interface{}{
				"ip": c.IP(),
			})
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid webhook signature",
			})
		}
	}

	var event providerEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	eventType := normalizeEventType(event.Type)
	if eventType == "" {
		// Unknown event types are acknowledged so the provider stops retrying
		wc.Logger.Printf("WEBHOOK: ignoring unknown event type %q", event.Type)
		return c.JSON(fiber.Map{"message": "Event ignored"})
	}

	occurredAt := time.Now()
	if event.Data.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, event.Data.CreatedAt); err == nil {
			occurredAt = t
		}
	}

	// Events may arrive for messages we no longer know about; they are still
	// logged, just without recipient linkage
	var recipient *models.CampaignLead
	if event.Data.EmailID != "" {
		var found models.CampaignLead
		if err := wc.DB.Where("message_id = ?", event.Data.EmailID).First(&found).Error; err == nil {
			recipient = &found
		}
	}

	logged := models.EmailEvent{
		MessageID:  event.Data.EmailID,
		EventType:  eventType,
		Email:      event.Data.To,
		URL:        event.Data.URL,
		OccurredAt: occurredAt,
		Payload:    string(body),
	}
	if recipient != nil {
		logged.CampaignLeadID = &recipient.ID
		logged.CampaignID = &recipient.CampaignID
	}
	if err := wc.DB.Create(&logged).Error; err != nil {
		wc.Logger.Printf("WEBHOOK: failed to log %s event: %v", eventType, err)
	}

	if recipient != nil {
		wc.applyEvent(recipient, eventType, event.Data.To)
	}

	return c.JSON(fiber.Map{"message": "Event processed"})
}

func normalizeEventType(providerType string) string {
	switch providerType {
	case "email.sent":
		return "sent"
	case "email.delivered":
		return "delivered"
	case "email.opened":
		return "opened"
	case "email.clicked":
		return "clicked"
	case "email.bounced":
		return "bounced"
	case "email.complained":
		return "complained"
	default:
		return ""
	}
}

// applyEvent updates recipient status, campaign aggregates, and related
// records. Campaign counters only move on the first occurrence per recipient.
func (wc *WebhookController) applyEvent(recipient *models.CampaignLead, eventType, email string) {
	now := time.Now()

	switch eventType {
	case "delivered":
		if recipient.DeliveredAt == nil {
			wc.DB.Model(recipient).Updates(map[string]interface{}{
				"delivered_at": now,
				"status":       models.RecipientStatusDelivered,
			})
			wc.bumpCampaign(recipient.CampaignID, "delivered_count")
			wc.bumpWarmup(recipient, "total_delivered")
		}

	case "opened":
		if recipient.OpenedAt == nil {
			wc.DB.Model(recipient).Updates(map[string]interface{}{
				"opened_at":  now,
				"status":     models.RecipientStatusOpened,
				"open_count": gorm.Expr("open_count + ?", 1),
			})
			wc.bumpCampaign(recipient.CampaignID, "opened_count")
		} else {
			wc.DB.Model(recipient).Update("open_count", gorm.Expr("open_count + ?", 1))
		}

	case "clicked":
		if recipient.ClickedAt == nil {
			wc.DB.Model(recipient).Updates(map[string]interface{}{
				"clicked_at":  now,
				"status":      models.RecipientStatusClicked,
				"click_count": gorm.Expr("click_count + ?", 1),
			})
			wc.bumpCampaign(recipient.CampaignID, "clicked_count")
		} else {
			wc.DB.Model(recipient).Update("click_count", gorm.Expr("click_count + ?", 1))
		}

	case "bounced":
		if recipient.BouncedAt == nil {
			wc.DB.Model(recipient).Updates(map[string]interface{}{
				"bounced_at": now,
				"status":     models.RecipientStatusBounced,
			})
			wc.bumpCampaign(recipient.CampaignID, "bounced_count")
			wc.bumpWarmup(recipient, "total_bounced")
			// Bounced addresses are excluded from future campaigns
			wc.DB.Model(&models.Lead{}).Where("id = ?", recipient.LeadID).
				Update("status", "bounced")
		}

	case "complained":
		// Spam complaints are treated as opt-outs
		leadEmail := email
		if leadEmail == "" {
			var lead models.Lead
			if err := wc.DB.First(&lead, recipient.LeadID).Error; err == nil {
				leadEmail = lead.Email
			}
		}
		if leadEmail == "" {
			return
		}
		unsub := models.Unsubscribe{
			Email:      leadEmail,
			Token:      uuid.New().String(),
			CampaignID: &recipient.CampaignID,
			Reason:     "complaint",
		}
		created := wc.DB.Where("email = ?", leadEmail).FirstOrCreate(&unsub)
		if created.Error == nil && created.RowsAffected > 0 {
			wc.bumpCampaign(recipient.CampaignID, "unsubscribed_count")
		}
		wc.DB.Model(&models.Lead{}).Where("id = ?", recipient.LeadID).
			Update("status", "unsubscribed")
	}
}

func (wc *WebhookController) bumpCampaign(campaignID uint, column string) {
	wc.DB.Model(&models.Campaign{}).Where("id = ?", campaignID).
		Update(column, gorm.Expr(column+" + ?", 1))
}

func (wc *WebhookController) bumpWarmup(recipient *models.CampaignLead, column string) {
	var campaign models.Campaign
	if err := wc.DB.First(&campaign, recipient.CampaignID).Error; err != nil {
		return
	}
	fromEmail := campaign.FromEmail
	if fromEmail == "" {
		fromEmail = models.GetSetting(wc.DB, models.SettingFromEmail, "")
	}
	domain := worker.DomainFromEmail(fromEmail)
	if domain == "" {
		return
	}
	wc.DB.Model(&models.DomainWarmup{}).Where("domain = ?", domain).
		Update(column, gorm.Expr(column+" + ?", 1))
}
