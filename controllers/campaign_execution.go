package controller

import (
	"fmt"
	"time"

	"leadpilot/models"
	"leadpilot/utils"

	"github.com/gofiber/fiber/v2"
)

// Recurring dispatch runs once a day at 08:00 in the service clock; the
// pipeline's own send-window check decides whether anything actually goes out
const campaignCronExpr = "0 8 * * *"

func campaignScheduleName(campaignID uint) string {
	return fmt.Sprintf("campaign:%d", campaignID)
}

func campaignDispatchPath(campaignID uint) string {
	return fmt.Sprintf("/jobs/dispatch/%d", campaignID)
}

// StartCampaign activates a draft/scheduled campaign, registers its daily
// dispatch schedule, and triggers an immediate dispatch run
func (cc *CampaignController) StartCampaign(c *fiber.Ctx) error {
	var campaign models.Campaign
	if err := cc.DB.First(&campaign, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	if campaign.Status != models.CampaignStatusDraft && campaign.Status != models.CampaignStatusScheduled {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": fmt.Sprintf("Cannot start a %s campaign", campaign.Status),
		})
	}

	if campaign.TemplateID == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Campaign needs a template before starting",
		})
	}

	var recipientCount int64
	cc.DB.Model(&models.CampaignLead{}).Where("campaign_id = ?", campaign.ID).Count(&recipientCount)
	if recipientCount == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Campaign needs at least one recipient before starting",
		})
	}

	if err := cc.DB.Model(&campaign).Updates(map[string]interface{}{
		"status":     models.CampaignStatusActive,
		"started_at": time.Now(),
	}).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to start campaign",
		})
	}

	if err := cc.Queue.Schedule(campaignScheduleName(campaign.ID), campaignCronExpr, campaignDispatchPath(campaign.ID)); err != nil {
		cc.Logger.Printf("Failed to schedule campaign %d: %v", campaign.ID, err)
	}

	go cc.runDispatch(campaign.ID)

	return c.JSON(fiber.Map{
		"message": "Campaign started successfully",
	})
}

// PauseCampaign cancels the recurring schedule. Send jobs already enqueued
// for the current batch are not retracted; in-flight sends complete.
func (cc *CampaignController) PauseCampaign(c *fiber.Ctx) error {
	var campaign models.Campaign
	if err := cc.DB.First(&campaign, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	if campaign.Status != models.CampaignStatusActive {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Campaign is not active",
		})
	}

	if err := cc.DB.Model(&campaign).Update("status", models.CampaignStatusPaused).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to pause campaign",
		})
	}

	cc.Queue.Unschedule(campaignScheduleName(campaign.ID))

	return c.JSON(fiber.Map{
		"message": "Campaign paused successfully",
	})
}

// ResumeCampaign reactivates a paused campaign and triggers a dispatch run
func (cc *CampaignController) ResumeCampaign(c *fiber.Ctx) error {
	var campaign models.Campaign
	if err := cc.DB.First(&campaign, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	if campaign.Status != models.CampaignStatusPaused {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Campaign is not paused",
		})
	}

	if err := cc.DB.Model(&campaign).Update("status", models.CampaignStatusActive).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to resume campaign",
		})
	}

	if err := cc.Queue.Schedule(campaignScheduleName(campaign.ID), campaignCronExpr, campaignDispatchPath(campaign.ID)); err != nil {
		cc.Logger.Printf("Failed to reschedule campaign %d: %v", campaign.ID, err)
	}

	go cc.runDispatch(campaign.ID)

	return c.JSON(fiber.Map{
		"message": "Campaign resumed successfully",
	})
}

// CancelCampaign terminates a campaign permanently
func (cc *CampaignController) CancelCampaign(c *fiber.Ctx) error {
	var campaign models.Campaign
	if err := cc.DB.First(&campaign, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	switch campaign.Status {
	case models.CampaignStatusCompleted, models.CampaignStatusCancelled:
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Campaign is already finished",
		})
	}

	if err := cc.DB.Model(&campaign).Updates(map[string]interface{}{
		"status":       models.CampaignStatusCancelled,
		"completed_at": time.Now(),
	}).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to cancel campaign",
		})
	}

	cc.Queue.Unschedule(campaignScheduleName(campaign.ID))

	return c.JSON(fiber.Map{
		"message": "Campaign cancelled successfully",
	})
}

// HandleDispatchAll is the nightly cron callback dispatching every active campaign
func (cc *CampaignController) HandleDispatchAll(c *fiber.Ctx) error {
	cc.Dispatcher.RunAll()
	return c.JSON(fiber.Map{
		"message": "Dispatch run completed",
	})
}

// HandleDispatchCampaign is the per-campaign schedule callback
func (cc *CampaignController) HandleDispatchCampaign(c *fiber.Ctx) error {
	campaignID := utils.ParseUint(c.Params("id"))
	if campaignID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid campaign id",
		})
	}

	queued, err := cc.Dispatcher.RunCampaign(campaignID)
	if err != nil {
		utils.LogError("campaign_dispatch_failed", err, map[string]interface{}{
			"campaign_id": campaignID,
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Dispatch failed",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Dispatch run completed",
		"queued":  queued,
	})
}

func (cc *CampaignController) runDispatch(campaignID uint) {
	queued, err := cc.Dispatcher.RunCampaign(campaignID)
	if err != nil {
		cc.Logger.Printf("Dispatch for campaign %d failed: %v", campaignID, err)
		return
	}
	cc.Logger.Printf("Dispatch for campaign %d queued %d recipients", campaignID, queued)
}
