package models

import (
	"time"

	"gorm.io/gorm"
)

// DomainWarmup statuses
const (
	WarmupStatusActive    = "active"
	WarmupStatusPaused    = "paused"
	WarmupStatusCompleted = "completed"
)

// DomainWarmup tracks the gradual volume ramp-up for one sending domain
type DomainWarmup struct {
	gorm.Model
	Domain string `gorm:"not null;uniqueIndex" json:"domain"`

	WarmupDay         int `gorm:"default:0" json:"warmup_day"`
	CurrentDailyLimit int `gorm:"default:10" json:"current_daily_limit"`
	TargetDailyLimit  int `gorm:"default:1000" json:"target_daily_limit"`

	// Cumulative deliverability sample
	TotalSent      int `gorm:"default:0" json:"total_sent"`
	TotalDelivered int `gorm:"default:0" json:"total_delivered"`
	TotalBounced   int `gorm:"default:0" json:"total_bounced"`

	IsHealthy bool   `gorm:"default:true" json:"is_healthy"`
	Status    string `gorm:"default:'active';index" json:"status"` // active, paused, completed

	WarmupStartedAt *time.Time `json:"warmup_started_at"`
	LastCheckedAt   *time.Time `json:"last_checked_at"`
}
