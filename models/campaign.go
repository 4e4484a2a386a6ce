package models

import (
	"time"

	"gorm.io/gorm"
)

// Campaign statuses
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusScheduled = "scheduled"
	CampaignStatusActive    = "active"
	CampaignStatusPaused    = "paused"
	CampaignStatusCompleted = "completed"
	CampaignStatusCancelled = "cancelled"
)

// CampaignLead statuses
const (
	RecipientStatusPending   = "pending"
	RecipientStatusQueued    = "queued"
	RecipientStatusSent      = "sent"
	RecipientStatusDelivered = "delivered"
	RecipientStatusOpened    = "opened"
	RecipientStatusClicked   = "clicked"
	RecipientStatusBounced   = "bounced"
	RecipientStatusFailed    = "failed"
	RecipientStatusSkipped   = "skipped"
)

// Campaign represents an email outreach run
type Campaign struct {
	gorm.Model
	Name       string `gorm:"not null" json:"name"`
	TemplateID *uint  `gorm:"index" json:"template_id"`

	// Sender identity (falls back to Settings when empty)
	FromName  string `json:"from_name"`
	FromEmail string `json:"from_email"`
	ReplyTo   string `json:"reply_to"`

	// Scheduling constraints
	DailyLimit        int    `gorm:"default:50" json:"daily_limit"`
	SendWindowStart   string `gorm:"default:'09:00'" json:"send_window_start"` // HH:MM
	SendWindowEnd     string `gorm:"default:'17:00'" json:"send_window_end"`   // HH:MM
	SendDays          string `gorm:"default:'1,2,3,4,5'" json:"send_days"`     // 1=Monday..7=Sunday
	DelayBetweenSends int    `gorm:"default:60" json:"delay_between_sends"`    // seconds
	Timezone          string `json:"timezone"`

	// State machine: draft -> (scheduled |) active <-> paused -> completed | cancelled
	Status      string     `gorm:"default:'draft';index" json:"status"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`

	// Aggregate counters (denormalized, monotonically updated)
	TotalRecipients   int `gorm:"default:0" json:"total_recipients"`
	SentCount         int `gorm:"default:0" json:"sent_count"`
	DeliveredCount    int `gorm:"default:0" json:"delivered_count"`
	OpenedCount       int `gorm:"default:0" json:"opened_count"`
	ClickedCount      int `gorm:"default:0" json:"clicked_count"`
	BouncedCount      int `gorm:"default:0" json:"bounced_count"`
	UnsubscribedCount int `gorm:"default:0" json:"unsubscribed_count"`

	// Relations
	Template   *EmailTemplate `gorm:"foreignKey:TemplateID" json:"template,omitempty"`
	Recipients []CampaignLead `gorm:"foreignKey:CampaignID" json:"recipients,omitempty"`
}

// CampaignLead joins one lead to one campaign and tracks its send state
type CampaignLead struct {
	gorm.Model
	CampaignID uint `gorm:"not null;uniqueIndex:idx_campaign_lead" json:"campaign_id"`
	LeadID     uint `gorm:"not null;uniqueIndex:idx_campaign_lead" json:"lead_id"`

	// pending -> queued -> sent -> delivered -> opened -> clicked,
	// or terminal: bounced, failed, skipped
	Status string `gorm:"default:'pending';index" json:"status"`

	// Personalized snapshot taken when the recipient is queued
	PersonalizedSubject string `gorm:"type:text" json:"personalized_subject"`
	PersonalizedBody    string `gorm:"type:text" json:"personalized_body"`

	// Provider correlation
	MessageID string `gorm:"index" json:"message_id"`

	// Credential for this recipient's unsubscribe link, issued at send time
	UnsubscribeToken string `gorm:"index" json:"-"`

	QueuedAt    *time.Time `json:"queued_at"`
	SentAt      *time.Time `json:"sent_at"`
	DeliveredAt *time.Time `json:"delivered_at"`
	OpenedAt    *time.Time `json:"opened_at"`
	ClickedAt   *time.Time `json:"clicked_at"`
	BouncedAt   *time.Time `json:"bounced_at"`

	// Per-recipient counters accumulate independently of status
	OpenCount  int `gorm:"default:0" json:"open_count"`
	ClickCount int `gorm:"default:0" json:"click_count"`

	RetryCount int    `gorm:"default:0" json:"retry_count"`
	LastError  string `json:"last_error"`

	// Relations
	Campaign Campaign `json:"-"`
	Lead     Lead     `json:"lead,omitempty"`
}
