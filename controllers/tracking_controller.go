package controller

import (
	"log"
	"net/url"
	"time"

	"leadpilot/models"
	"leadpilot/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type TrackingController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewTrackingController(db *gorm.DB, logger *log.Logger) *TrackingController {
	return &TrackingController{DB: db, Logger: logger}
}

// HandleOpenTracking records an open and returns the 1x1 pixel. Internal
// failures never surface to the email client.
func (tc *TrackingController) HandleOpenTracking(c *fiber.Ctx) error {
	recipientID := utils.ParseUint(c.Params("id"))
	if recipientID != 0 {
		tc.recordOpen(recipientID, c.IP(), c.Get("User-Agent"))
	}
	return c.Type("gif").Send(transparentPixel())
}

// HandleClickTracking records a click and redirects to the original URL,
// degrading to the raw query value and finally to the root path
func (tc *TrackingController) HandleClickTracking(c *fiber.Ctx) error {
	recipientID := utils.ParseUint(c.Params("id"))
	rawURL := c.Query("url")

	target := rawURL
	if decoded, err := url.QueryUnescape(rawURL); err == nil {
		target = decoded
	}
	if target == "" {
		target = "/"
	}

	if recipientID != 0 {
		tc.recordClick(recipientID, target, c.IP(), c.Get("User-Agent"))
	}

	return c.Redirect(target, fiber.StatusFound)
}

// HandleUnsubscribe is the opt-out landing flow: resolve the per-send token,
// record the opt-out, and mark the lead
func (tc *TrackingController) HandleUnsubscribe(c *fiber.Ctx) error {
	token := c.Params("token")

	var recipient models.CampaignLead
	if err := tc.DB.Where("unsubscribe_token = ?", token).First(&recipient).Error; err != nil {
		return c.Status(fiber.StatusNotFound).SendString("This unsubscribe link is not valid.")
	}

	var lead models.Lead
	if err := tc.DB.First(&lead, recipient.LeadID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).SendString("This unsubscribe link is not valid.")
	}

	unsub := models.Unsubscribe{
		Email:      lead.Email,
		Token:      token,
		CampaignID: &recipient.CampaignID,
		Reason:     "link",
		IPAddress:  c.IP(),
		UserAgent:  c.Get("User-Agent"),
	}
	created := tc.DB.Where("email = ?", lead.Email).FirstOrCreate(&unsub)

	if created.Error == nil && created.RowsAffected > 0 {
		// First opt-out for this address
		tc.DB.Model(&lead).Update("status", "unsubscribed")
		tc.DB.Model(&models.Campaign{}).Where("id = ?", recipient.CampaignID).
			Update("unsubscribed_count", gorm.Expr("unsubscribed_count + ?", 1))
	}

	tc.logEvent(&recipient, "unsubscribed", lead.Email, "", c.IP(), c.Get("User-Agent"))

	return c.Type("html").SendString(
		`<html><body style="font-family:sans-serif;text-align:center;margin-top:80px">` +
			`<h2>You have been unsubscribed.</h2>` +
			`<p>You will not receive further emails from us.</p></body></html>`)
}

func (tc *TrackingController) recordOpen(recipientID uint, ip, userAgent string) {
	var recipient models.CampaignLead
	if err := tc.DB.First(&recipient, recipientID).Error; err != nil {
		tc.Logger.Printf("Open tracking: recipient %d not found", recipientID)
		return
	}

	tc.logEvent(&recipient, "opened", "", "", ip, userAgent)

	if recipient.OpenedAt == nil {
		// First open: stamp the recipient and bump the campaign aggregate once
		tc.DB.Model(&recipient).Updates(map[string]interface{}{
			"opened_at":  time.Now(),
			"status":     models.RecipientStatusOpened,
			"open_count": gorm.Expr("open_count + ?", 1),
		})
		tc.DB.Model(&models.Campaign{}).Where("id = ?", recipient.CampaignID).
			Update("opened_count", gorm.Expr("opened_count + ?", 1))
		return
	}

	tc.DB.Model(&recipient).Update("open_count", gorm.Expr("open_count + ?", 1))
}

func (tc *TrackingController) recordClick(recipientID uint, target, ip, userAgent string) {
	var recipient models.CampaignLead
	if err := tc.DB.First(&recipient, recipientID).Error; err != nil {
		tc.Logger.Printf("Click tracking: recipient %d not found", recipientID)
		return
	}

	tc.logEvent(&recipient, "clicked", "", target, ip, userAgent)

	if recipient.ClickedAt == nil {
		tc.DB.Model(&recipient).Updates(map[string]interface{}{
			"clicked_at":  time.Now(),
			"status":      models.RecipientStatusClicked,
			"click_count": gorm.Expr("click_count + ?", 1),
		})
		tc.DB.Model(&models.Campaign{}).Where("id = ?", recipient.CampaignID).
			Update("clicked_count", gorm.Expr("clicked_count + ?", 1))
		return
	}

	tc.DB.Model(&recipient).Update("click_count", gorm.Expr("click_count + ?", 1))
}

func (tc *TrackingController) logEvent(recipient *models.CampaignLead, eventType, email, target, ip, userAgent string) {
	event := models.EmailEvent{
		CampaignLeadID: &recipient.ID,
		CampaignID:     &recipient.CampaignID,
		MessageID:      recipient.MessageID,
		EventType:      eventType,
		Email:          email,
		URL:            target,
		IPAddress:      ip,
		UserAgent:      userAgent,
		OccurredAt:     time.Now(),
	}
	if err := tc.DB.Create(&event).Error; err != nil {
		tc.Logger.Printf("Failed to log %s event for recipient %d: %v", eventType, recipient.ID, err)
	}
}

func transparentPixel() []byte {
	// 1x1 transparent GIF
	return []byte{
		0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
		0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x21,
		0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00,
		0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44,
		0x01, 0x00, 0x3b,
	}
}
