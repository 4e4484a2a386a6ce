package worker

import (
	"log"
	"time"

	"leadpilot/models"
	"leadpilot/utils"

	"gorm.io/gorm"
)

// warmupPlan maps days-since-start to a daily-limit ceiling. Monotonically
// non-decreasing; the entry with the greatest day threshold <= the current
// warm-up day applies.
var warmupPlan = []struct {
	Day   int
	Limit int
}{
	{1, 10},
	{3, 20},
	{7, 50},
	{14, 100},
	{21, 200},
	{30, 500},
	{45, 1000},
}

// Deliverability health thresholds
const (
	warmupMinSample        = 50
	minDeliverabilityRate  = 0.95
	maxBounceRate          = 0.02
)

// PlanLimitForDay returns the scheduled daily limit for a warm-up day
func PlanLimitForDay(day int) int {
	limit := warmupPlan[0].Limit
	for _, stage := range warmupPlan {
		if stage.Day <= day {
			limit = stage.Limit
		}
	}
	return limit
}

// WarmupWorker runs the daily warm-up progression over every active domain
type WarmupWorker struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewWarmupWorker(db *gorm.DB, logger *log.Logger) *WarmupWorker {
	return &WarmupWorker{DB: db, Logger: logger}
}

// RunDaily processes every domain currently warming up
func (ww *WarmupWorker) RunDaily() {
	var domains []models.DomainWarmup
	if err := ww.DB.Where("status = ?", models.WarmupStatusActive).Find(&domains).Error; err != nil {
		utils.LogError("warmup_load_failed", err, nil)
		return
	}

	for i := range domains {
		if err := ww.ProcessDomain(&domains[i]); err != nil {
			ww.Logger.Printf("Warmup progression failed for %s: %v", domains[i].Domain, err)
		}
	}
}

// ProcessDomain advances one domain's warm-up state. Decision precedence:
// unhealthy -> pause, at target -> complete, plan raises limit -> raise,
// otherwise no change. Every branch persists the refreshed day/health fields.
func (ww *WarmupWorker) ProcessDomain(domain *models.DomainWarmup) error {
	now := time.Now()

	elapsed := 0
	if domain.WarmupStartedAt != nil {
		elapsed = int(now.Sub(*domain.WarmupStartedAt).Hours() / 24)
	}
	warmupDay := elapsed + 1

	healthy := true
	if domain.TotalSent >= warmupMinSample {
		deliverability := float64(domain.TotalDelivered) / float64(domain.TotalSent)
		bounceRate := float64(domain.TotalBounced) / float64(domain.TotalSent)
		healthy = deliverability >= minDeliverabilityRate && bounceRate <= maxBounceRate
	}

	updates := map[string]interface{}{
		"warmup_day":      warmupDay,
		"is_healthy":      healthy,
		"last_checked_at": now,
	}

	planLimit := PlanLimitForDay(warmupDay)
	if planLimit > domain.TargetDailyLimit {
		planLimit = domain.TargetDailyLimit
	}

	switch {
	case !healthy:
		updates["status"] = models.WarmupStatusPaused
		ww.Logger.Printf("Domain %s paused: deliverability below threshold (%d sent, %d delivered, %d bounced)",
			domain.Domain, domain.TotalSent, domain.TotalDelivered, domain.TotalBounced)

	case domain.CurrentDailyLimit >= domain.TargetDailyLimit:
		updates["status"] = models.WarmupStatusCompleted
		ww.Logger.Printf("Domain %s warm-up completed at limit %d", domain.Domain, domain.CurrentDailyLimit)

	case planLimit > domain.CurrentDailyLimit:
		updates["current_daily_limit"] = planLimit
		ww.Logger.Printf("Domain %s raised to %d (day %d)", domain.Domain, planLimit, warmupDay)

	default:
		// Holding at the current limit until the plan's next step
	}

	return ww.DB.Model(domain).Updates(updates).Error
}

// RecordSendOutcome bumps a domain's cumulative counters from webhook events
func (ww *WarmupWorker) RecordSendOutcome(domainName, outcome string) error {
	column := ""
	switch outcome {
	case "sent":
		column = "total_sent"
	case "delivered":
		column = "total_delivered"
	case "bounced":
		column = "total_bounced"
	default:
		return nil
	}
	return ww.DB.Model(&models.DomainWarmup{}).
		Where("domain = ?", domainName).
		Update(column, gorm.Expr(column+" + ?", 1)).Error
}
