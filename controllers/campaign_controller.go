package controller

import (
	"log"

	"leadpilot/models"
	"leadpilot/queue"
	"leadpilot/utils"
	"leadpilot/worker"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CampaignController struct {
	DB         *gorm.DB
	Logger     *log.Logger
	Dispatcher *worker.CampaignDispatcher
	Queue      *queue.Dispatcher
}

func NewCampaignController(db *gorm.DB, logger *log.Logger, dispatcher *worker.CampaignDispatcher, q *queue.Dispatcher) *CampaignController {
	return &CampaignController{
		DB:         db,
		Logger:     logger,
		Dispatcher: dispatcher,
		Queue:      q,
	}
}

type campaignInput struct {
	Name              string `json:"name" validate:"required,min=1,max=200"`
	TemplateID        *uint  `json:"template_id"`
	FromName          string `json:"from_name"`
	FromEmail         string `json:"from_email" validate:"omitempty,email"`
	ReplyTo           string `json:"reply_to" validate:"omitempty,email"`
	DailyLimit        int    `json:"daily_limit" validate:"omitempty,min=1,max=2000"`
	SendWindowStart   string `json:"send_window_start"`
	SendWindowEnd     string `json:"send_window_end"`
	SendDays          string `json:"send_days"`
	DelayBetweenSends int    `json:"delay_between_sends" validate:"omitempty,min=0,max=3600"`
	Timezone          string `json:"timezone"`
}

func (cc *CampaignController) CreateCampaign(c *fiber.Ctx) error {
	var input campaignInput
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

	campaign := models.Campaign{
		Name:       input.Name,
		TemplateID: input.TemplateID,
		FromName:   input.FromName,
		FromEmail:  input.FromEmail,
		ReplyTo:    input.ReplyTo,
		Status:     models.CampaignStatusDraft,
	}
	if input.DailyLimit > 0 {
		campaign.DailyLimit = input.DailyLimit
	}
	if input.SendWindowStart != "" {
		campaign.SendWindowStart = input.SendWindowStart
	}
	if input.SendWindowEnd != "" {
		campaign.SendWindowEnd = input.SendWindowEnd
	}
	if input.SendDays != "" {
		campaign.SendDays = input.SendDays
	}
	if input.DelayBetweenSends > 0 {
		campaign.DelayBetweenSends = input.DelayBetweenSends
	}
	if input.Timezone != "" {
		campaign.Timezone = input.Timezone
	}

	if err := cc.DB.Create(&campaign).Error; err != nil {
		cc.Logger.Printf("Failed to create campaign: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create campaign",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Campaign created successfully",
		"campaign": campaign,
	})
}

func (cc *CampaignController) GetCampaigns(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := cc.DB.Model(&models.Campaign{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)

	var campaigns []models.Campaign
	if err := query.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&campaigns).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch campaigns",
		})
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  campaigns,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

func (cc *CampaignController) GetCampaign(c *fiber.Ctx) error {
	var campaign models.Campaign
	if err := cc.DB.Preload("Template").First(&campaign, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}
	return c.JSON(campaign)
}

func (cc *CampaignController) UpdateCampaign(c *fiber.Ctx) error {
	var campaign models.Campaign
	if err := cc.DB.First(&campaign, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	if campaign.Status == models.CampaignStatusCompleted || campaign.Status == models.CampaignStatusCancelled {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Cannot edit a finished campaign",
		})
	}

	var input campaignInput
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

	updates := map[string]interface{}{}
	if input.Name != "" {
		updates["name"] = input.Name
	}
	if input.TemplateID != nil {
		updates["template_id"] = *input.TemplateID
	}
	if input.FromName != "" {
		updates["from_name"] = input.FromName
	}
	if input.FromEmail != "" {
		updates["from_email"] = input.FromEmail
	}
	if input.ReplyTo != "" {
		updates["reply_to"] = input.ReplyTo
	}
	if input.DailyLimit > 0 {
		updates["daily_limit"] = input.DailyLimit
	}
	if input.SendWindowStart != "" {
		updates["send_window_start"] = input.SendWindowStart
	}
	if input.SendWindowEnd != "" {
		updates["send_window_end"] = input.SendWindowEnd
	}
	if input.SendDays != "" {
		updates["send_days"] = input.SendDays
	}
	if input.DelayBetweenSends > 0 {
		updates["delay_between_sends"] = input.DelayBetweenSends
	}
	if input.Timezone != "" {
		updates["timezone"] = input.Timezone
	}

	if err := cc.DB.Model(&campaign).Updates(updates).Error; err != nil {
		cc.Logger.Printf("Failed to update campaign %d: %v", campaign.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update campaign",
		})
	}

	return c.JSON(fiber.Map{
		"message":  "Campaign updated successfully",
		"campaign": campaign,
	})
}

func (cc *CampaignController) DeleteCampaign(c *fiber.Ctx) error {
	var campaign models.Campaign
	if err := cc.DB.First(&campaign, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	if campaign.Status == models.CampaignStatusActive {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Pause or cancel the campaign before deleting it",
		})
	}

	cc.Queue.Unschedule(campaignScheduleName(campaign.ID))

	tx := cc.DB.Begin()
	if err := tx.Where("campaign_id = ?", campaign.ID).Delete(&models.CampaignLead{}).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete campaign recipients",
		})
	}
	if err := tx.Delete(&campaign).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete campaign",
		})
	}
	tx.Commit()

	return c.JSON(fiber.Map{
		"message": "Campaign deleted successfully",
	})
}

// AddRecipients assigns leads to a campaign, skipping duplicates and leads
// that already opted out or bounced
func (cc *CampaignController) AddRecipients(c *fiber.Ctx) error {
	var campaign models.Campaign
	if err := cc.DB.First(&campaign, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	var input struct {
		LeadIDs []uint `json:"lead_ids" validate:"required,min=1"`
	}
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

	added := 0
	skipped := 0
	for _, leadID := range input.LeadIDs {
		var lead models.Lead
		if err := cc.DB.First(&lead, leadID).Error; err != nil {
			skipped++
			continue
		}
		if lead.Status == "unsubscribed" || lead.Status == "bounced" {
			skipped++
			continue
		}

		recipient := models.CampaignLead{
			CampaignID: campaign.ID,
			LeadID:     lead.ID,
			Status:     models.RecipientStatusPending,
		}
		if err := cc.DB.Create(&recipient).Error; err != nil {
			// unique (campaign, lead) pair violated; already assigned
			skipped++
			continue
		}
		added++
	}

	if added > 0 {
		cc.DB.Model(&campaign).Update("total_recipients", gorm.Expr("total_recipients + ?", added))
	}

	return c.JSON(fiber.Map{
		"message": "Recipients updated",
		"added":   added,
		"skipped": skipped,
	})
}

// GetCampaignStats returns the aggregate counters with derived rates
func (cc *CampaignController) GetCampaignStats(c *fiber.Ctx) error {
	var campaign models.Campaign
	if err := cc.DB.First(&campaign, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	var pending int64
	cc.DB.Model(&models.CampaignLead{}).
		Where("campaign_id = ? AND status = ?", campaign.ID, models.RecipientStatusPending).
		Count(&pending)

	rate := func(count int) float64 {
		if campaign.SentCount == 0 {
			return 0
		}
		return float64(count) / float64(campaign.SentCount) * 100
	}

	return c.JSON(fiber.Map{
		"campaign_id":        campaign.ID,
		"status":             campaign.Status,
		"total_recipients":   campaign.TotalRecipients,
		"pending_count":      pending,
		"sent_count":         campaign.SentCount,
		"delivered_count":    campaign.DeliveredCount,
		"opened_count":       campaign.OpenedCount,
		"clicked_count":      campaign.ClickedCount,
		"bounced_count":      campaign.BouncedCount,
		"unsubscribed_count": campaign.UnsubscribedCount,
		"open_rate":          rate(campaign.OpenedCount),
		"click_rate":         rate(campaign.ClickedCount),
		"bounce_rate":        rate(campaign.BouncedCount),
	})
}
