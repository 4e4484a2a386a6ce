package worker

import (
	"testing"
	"time"

	"leadpilot/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestPlanLimitForDay(t *testing.T) {
	assert.Equal(t, 10, PlanLimitForDay(1))
	assert.Equal(t, 10, PlanLimitForDay(2))
	assert.Equal(t, 20, PlanLimitForDay(3))
	assert.Equal(t, 50, PlanLimitForDay(7))
	assert.Equal(t, 50, PlanLimitForDay(13))
	assert.Equal(t, 100, PlanLimitForDay(14))
	assert.Equal(t, 1000, PlanLimitForDay(45))
	assert.Equal(t, 1000, PlanLimitForDay(400))
}

func newWarmupDomain(t *testing.T, db *gorm.DB, daysAgo int, mutate func(*models.DomainWarmup)) *models.DomainWarmup {
	t.Helper()

	started := time.Now().AddDate(0, 0, -daysAgo)
	domain := &models.DomainWarmup{
		Domain:            "warm.test",
		WarmupDay:         daysAgo,
		CurrentDailyLimit: 10,
		TargetDailyLimit:  1000,
		IsHealthy:         true,
		Status:            models.WarmupStatusActive,
		WarmupStartedAt:   &started,
	}
	if mutate != nil {
		mutate(domain)
	}
	require.NoError(t, db.Create(domain).Error)
	return domain
}

func TestProcessDomainRaisesLimitPerPlan(t *testing.T) {
	db := setupTestDB(t)
	ww := NewWarmupWorker(db, discardLogger())

	// Day 7 of the plan allows 50/day
	domain := newWarmupDomain(t, db, 6, nil)
	require.NoError(t, ww.ProcessDomain(domain))

	var reloaded models.DomainWarmup
	require.NoError(t, db.First(&reloaded, domain.ID).Error)
	assert.Equal(t, 7, reloaded.WarmupDay)
	assert.Equal(t, 50, reloaded.CurrentDailyLimit)
	assert.Equal(t, models.WarmupStatusActive, reloaded.Status)
	assert.True(t, reloaded.IsHealthy)
	assert.NotNil(t, reloaded.LastCheckedAt)
}

func TestProcessDomainHoldsBetweenPlanSteps(t *testing.T) {
	db := setupTestDB(t)
	ww := NewWarmupWorker(db, discardLogger())

	// Day 2 still sits on the day-1 step
	domain := newWarmupDomain(t, db, 1, nil)
	require.NoError(t, ww.ProcessDomain(domain))

	var reloaded models.DomainWarmup
	require.NoError(t, db.First(&reloaded, domain.ID).Error)
	assert.Equal(t, 10, reloaded.CurrentDailyLimit)
	assert.Equal(t, models.WarmupStatusActive, reloaded.Status)
}

func TestProcessDomainPausesOnHighBounceRate(t *testing.T) {
	db := setupTestDB(t)
	ww := NewWarmupWorker(db, discardLogger())

	domain := newWarmupDomain(t, db, 6, func(d *models.DomainWarmup) {
		d.TotalSent = 100
		d.TotalDelivered = 97
		d.TotalBounced = 3 // 3% > 2% threshold
	})
	require.NoError(t, ww.ProcessDomain(domain))

	var reloaded models.DomainWarmup
	require.NoError(t, db.First(&reloaded, domain.ID).Error)
	assert.Equal(t, models.WarmupStatusPaused, reloaded.Status)
	assert.False(t, reloaded.IsHealthy)
	// A paused domain never gets a raise in the same run
	assert.Equal(t, 10, reloaded.CurrentDailyLimit)
}

func TestProcessDomainPausesOnLowDeliverability(t *testing.T) {
	db := setupTestDB(t)
	ww := NewWarmupWorker(db, discardLogger())

	domain := newWarmupDomain(t, db, 6, func(d *models.DomainWarmup) {
		d.TotalSent = 100
		d.TotalDelivered = 90 // 90% < 95% threshold
		d.TotalBounced = 1
	})
	require.NoError(t, ww.ProcessDomain(domain))

	var reloaded models.DomainWarmup
	require.NoError(t, db.First(&reloaded, domain.ID).Error)
	assert.Equal(t, models.WarmupStatusPaused, reloaded.Status)
}

func TestProcessDomainIgnoresHealthBelowSample(t *testing.T) {
	db := setupTestDB(t)
	ww := NewWarmupWorker(db, discardLogger())

	// Terrible rates, but under the minimum sample size
	domain := newWarmupDomain(t, db, 2, func(d *models.DomainWarmup) {
		d.TotalSent = 10
		d.TotalDelivered = 2
		d.TotalBounced = 5
	})
	require.NoError(t, ww.ProcessDomain(domain))

	var reloaded models.DomainWarmup
	require.NoError(t, db.First(&reloaded, domain.ID).Error)
	assert.Equal(t, models.WarmupStatusActive, reloaded.Status)
	assert.True(t, reloaded.IsHealthy)
}

func TestProcessDomainCompletesAtTarget(t *testing.T) {
	db := setupTestDB(t)
	ww := NewWarmupWorker(db, discardLogger())

	domain := newWarmupDomain(t, db, 50, func(d *models.DomainWarmup) {
		d.CurrentDailyLimit = 500
		d.TargetDailyLimit = 500
	})
	require.NoError(t, ww.ProcessDomain(domain))

	var reloaded models.DomainWarmup
	require.NoError(t, db.First(&reloaded, domain.ID).Error)
	assert.Equal(t, models.WarmupStatusCompleted, reloaded.Status)
}

func TestProcessDomainCapsPlanAtTarget(t *testing.T) {
	db := setupTestDB(t)
	ww := NewWarmupWorker(db, discardLogger())

	// Plan says 1000 at day 45, but the target is lower
	domain := newWarmupDomain(t, db, 44, func(d *models.DomainWarmup) {
		d.CurrentDailyLimit = 200
		d.TargetDailyLimit = 300
	})
	require.NoError(t, ww.ProcessDomain(domain))

	var reloaded models.DomainWarmup
	require.NoError(t, db.First(&reloaded, domain.ID).Error)
	assert.Equal(t, 300, reloaded.CurrentDailyLimit)
	assert.Equal(t, models.WarmupStatusActive, reloaded.Status)
}

func TestRunDailySkipsPausedDomains(t *testing.T) {
	db := setupTestDB(t)
	ww := NewWarmupWorker(db, discardLogger())

	domain := newWarmupDomain(t, db, 6, func(d *models.DomainWarmup) {
		d.Status = models.WarmupStatusPaused
	})
	ww.RunDaily()

	var reloaded models.DomainWarmup
	require.NoError(t, db.First(&reloaded, domain.ID).Error)
	assert.Equal(t, 10, reloaded.CurrentDailyLimit, "paused domains are not advanced")
}

func TestRecordSendOutcome(t *testing.T) {
	db := setupTestDB(t)
	ww := NewWarmupWorker(db, discardLogger())

	domain := newWarmupDomain(t, db, 1, nil)

	require.NoError(t, ww.RecordSendOutcome("warm.test", "sent"))
	require.NoError(t, ww.RecordSendOutcome("warm.test", "sent"))
	require.NoError(t, ww.RecordSendOutcome("warm.test", "delivered"))
	require.NoError(t, ww.RecordSendOutcome("warm.test", "bounced"))
	require.NoError(t, ww.RecordSendOutcome("warm.test", "complained"), "unknown outcomes are ignored")

	var reloaded models.DomainWarmup
	require.NoError(t, db.First(&reloaded, domain.ID).Error)
	assert.Equal(t, 2, reloaded.TotalSent)
	assert.Equal(t, 1, reloaded.TotalDelivered)
	assert.Equal(t, 1, reloaded.TotalBounced)
}
