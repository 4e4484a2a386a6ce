package models

import (
	"time"

	"gorm.io/gorm"
)

// EmailTemplate represents reusable subject/body content with {{variable}} placeholders
type EmailTemplate struct {
	gorm.Model
	Name        string `gorm:"not null" json:"name"`
	Subject     string `gorm:"not null" json:"subject"`
	HTMLContent string `gorm:"type:text" json:"html_content"`
	TextContent string `gorm:"type:text" json:"text_content"`

	// Comma-separated placeholder names extracted from subject and body
	Variables string `json:"variables"`

	TemplateType string `gorm:"default:'campaign'" json:"template_type"` // campaign, follow-up, warm-up
	IsActive     bool   `gorm:"default:true" json:"is_active"`
}

// EmailEvent is the append-only log of provider and tracking events
type EmailEvent struct {
	gorm.Model
	CampaignLeadID *uint  `gorm:"index" json:"campaign_lead_id,omitempty"`
	CampaignID     *uint  `gorm:"index" json:"campaign_id,omitempty"`
	MessageID      string `gorm:"index" json:"message_id"`

	EventType string    `gorm:"not null;index" json:"event_type"` // sent, delivered, opened, clicked, bounced, complained, unsubscribed
	Email     string    `json:"email"`
	URL       string    `json:"url"` // clicked link, when applicable
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	OccurredAt time.Time `gorm:"not null" json:"occurred_at"`

	// Raw provider payload for audit
	Payload string `gorm:"type:text" json:"payload"`
}

// Unsubscribe holds one opt-out row per email address
type Unsubscribe struct {
	gorm.Model
	Email string `gorm:"not null;uniqueIndex" json:"email"`
	Token string `gorm:"not null;uniqueIndex" json:"token"`

	CampaignID *uint  `json:"campaign_id,omitempty"`
	Reason     string `json:"reason"` // link, complaint, manual
	IPAddress  string `json:"ip_address"`
	UserAgent  string `json:"user_agent"`
}
