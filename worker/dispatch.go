package worker

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"leadpilot/models"
	"leadpilot/queue"
	"leadpilot/utils"

	"gorm.io/gorm"
)

// Default per-campaign cap when the sending domain has no warm-up row
const defaultDailyCap = 50

// SendJobPayload is the per-recipient job enqueued by the dispatch pipeline
// and consumed by the send handler
type SendJobPayload struct {
	CampaignLeadID uint   `json:"campaign_lead_id"`
	CampaignID     uint   `json:"campaign_id"`
	Email          string `json:"email"`
	Subject        string `json:"subject"`
	HTMLBody       string `json:"html_body"`
	TextBody       string `json:"text_body"`
}

// CampaignDispatcher advances pending campaign recipients to queued and
// schedules their individual send jobs with staggered delays
type CampaignDispatcher struct {
	DB      *gorm.DB
	Limiter *utils.RateLimiter
	Queue   *queue.Dispatcher
	Logger  *log.Logger
}

func NewCampaignDispatcher(db *gorm.DB, limiter *utils.RateLimiter, q *queue.Dispatcher, logger *log.Logger) *CampaignDispatcher {
	return &CampaignDispatcher{DB: db, Limiter: limiter, Queue: q, Logger: logger}
}

// RunAll dispatches every active campaign once. Called by the daily cron job.
func (cd *CampaignDispatcher) RunAll() {
	var campaigns []models.Campaign
	if err := cd.DB.Where("status = ?", models.CampaignStatusActive).Find(&campaigns).Error; err != nil {
		utils.LogError("dispatch_load_failed", err, nil)
		return
	}

	for _, campaign := range campaigns {
		queued, err := cd.RunCampaign(campaign.ID)
		if err != nil {
			cd.Logger.Printf("Campaign %d dispatch failed: %v", campaign.ID, err)
			continue
		}
		cd.Logger.Printf("Campaign %d: queued %d recipients", campaign.ID, queued)
	}
}

// RunCampaign runs the eligibility chain for one campaign and queues sends.
// Any failing check skips the whole invocation without mutating state.
// Returns the number of recipients queued.
func (cd *CampaignDispatcher) RunCampaign(campaignID uint) (int, error) {
	var campaign models.Campaign
	if err := cd.DB.First(&campaign, campaignID).Error; err != nil {
		return 0, fmt.Errorf("campaign not found: %w", err)
	}

	if campaign.Status != models.CampaignStatusActive {
		cd.Logger.Printf("Campaign %d is %s, skipping", campaign.ID, campaign.Status)
		return 0, nil
	}

	now := cd.campaignNow(&campaign)

	inWindow, err := withinSendWindow(&campaign, now)
	if err != nil {
		return 0, err
	}
	if !inWindow {
		cd.Logger.Printf("Campaign %d outside send window (%s-%s), skipping",
			campaign.ID, campaign.SendWindowStart, campaign.SendWindowEnd)
		return 0, nil
	}

	if !sendDayAllowed(&campaign, now) {
		cd.Logger.Printf("Campaign %d not scheduled for weekday %d, skipping", campaign.ID, isoWeekday(now))
		return 0, nil
	}

	effectiveCap := cd.effectiveDailyCap(&campaign)

	canSend, err := cd.Limiter.CanSendEmail(context.Background(), effectiveCap)
	if err != nil {
		return 0, fmt.Errorf("rate limit check failed: %w", err)
	}
	if !canSend {
		cd.Logger.Printf("Campaign %d rate limit reached (cap %d), skipping", campaign.ID, effectiveCap)
		return 0, nil
	}

	var recipients []models.CampaignLead
	if err := cd.DB.Preload("Lead").
		Where("campaign_id = ? AND status = ?", campaign.ID, models.RecipientStatusPending).
		Order("id").
		Limit(effectiveCap).
		Find(&recipients).Error; err != nil {
		return 0, fmt.Errorf("failed to fetch pending recipients: %w", err)
	}

	if len(recipients) == 0 {
		// No pending recipients remain anywhere in the campaign; it is done
		if err := cd.DB.Model(&campaign).Updates(map[string]interface{}{
			"status":       models.CampaignStatusCompleted,
			"completed_at": time.Now(),
		}).Error; err != nil {
			return 0, fmt.Errorf("failed to complete campaign: %w", err)
		}
		cd.Logger.Printf("Campaign %d completed", campaign.ID)
		return 0, nil
	}

	var template models.EmailTemplate
	if campaign.TemplateID == nil {
		return 0, fmt.Errorf("campaign %d has no template", campaign.ID)
	}
	if err := cd.DB.First(&template, *campaign.TemplateID).Error; err != nil {
		return 0, fmt.Errorf("campaign template not found: %w", err)
	}

	queued := 0
	for i := range recipients {
		recipient := &recipients[i]

		// A failure for one recipient leaves it pending and moves on
		if err := cd.queueRecipient(&campaign, &template, recipient, i); err != nil {
			cd.Logger.Printf("Campaign %d recipient %d not queued: %v", campaign.ID, recipient.ID, err)
			continue
		}
		queued++
	}

	return queued, nil
}

func (cd *CampaignDispatcher) queueRecipient(campaign *models.Campaign, template *models.EmailTemplate, recipient *models.CampaignLead, index int) error {
	vars := utils.BuildVariables(&recipient.Lead)
	subject, html, text := utils.PersonalizeTemplate(template, vars)

	payload := SendJobPayload{
		CampaignLeadID: recipient.ID,
		CampaignID:     campaign.ID,
		Email:          recipient.Lead.Email,
		Subject:        subject,
		HTMLBody:       html,
		TextBody:       text,
	}

	delay := time.Duration(index*campaign.DelayBetweenSends) * time.Second
	if err := cd.Queue.Publish("/jobs/send", payload, delay); err != nil {
		return fmt.Errorf("enqueue failed: %w", err)
	}

	return cd.DB.Model(recipient).Updates(map[string]interface{}{
		"status":               models.RecipientStatusQueued,
		"queued_at":            time.Now(),
		"personalized_subject": subject,
		"personalized_body":    html,
	}).Error
}

// effectiveDailyCap is min(campaign limit, active warm-up limit), with a
// conservative default when the sending domain has no warm-up row
func (cd *CampaignDispatcher) effectiveDailyCap(campaign *models.Campaign) int {
	cap := campaign.DailyLimit

	fromEmail := campaign.FromEmail
	if fromEmail == "" {
		fromEmail = models.GetSetting(cd.DB, models.SettingFromEmail, "")
	}
	domain := DomainFromEmail(fromEmail)
	if domain == "" {
		return minInt(cap, defaultDailyCap)
	}

	var warmup models.DomainWarmup
	err := cd.DB.Where("domain = ? AND status = ?", domain, models.WarmupStatusActive).First(&warmup).Error
	if err != nil {
		return minInt(cap, defaultDailyCap)
	}
	return minInt(cap, warmup.CurrentDailyLimit)
}

// campaignNow returns the current time in the campaign's clock: its own
// timezone, else the global default, else UTC
func (cd *CampaignDispatcher) campaignNow(campaign *models.Campaign) time.Time {
	tz := campaign.Timezone
	if tz == "" {
		tz = models.GetSetting(cd.DB, models.SettingTimezone, "UTC")
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return time.Now().In(loc)
}

func withinSendWindow(campaign *models.Campaign, now time.Time) (bool, error) {
	start, err := utils.ParseClock(campaign.SendWindowStart)
	if err != nil {
		return false, err
	}
	end, err := utils.ParseClock(campaign.SendWindowEnd)
	if err != nil {
		return false, err
	}
	minute := now.Hour()*60 + now.Minute()
	return minute >= start && minute <= end, nil
}

func sendDayAllowed(campaign *models.Campaign, now time.Time) bool {
	today := fmt.Sprintf("%d", isoWeekday(now))
	for _, day := range strings.Split(campaign.SendDays, ",") {
		if strings.TrimSpace(day) == today {
			return true
		}
	}
	return false
}

// isoWeekday maps time.Weekday to 1=Monday..7=Sunday
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// DomainFromEmail extracts the domain part of an address
func DomainFromEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}
	return strings.ToLower(parts[1])
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
