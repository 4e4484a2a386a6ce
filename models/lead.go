package models

import (
	"time"

	"gorm.io/gorm"
)

// Lead represents a single prospect contact
type Lead struct {
	gorm.Model
	Email     string `gorm:"not null;uniqueIndex" json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Industry  string `json:"industry"`
	City      string `json:"city"`
	State     string `json:"state"`
	Position  string `json:"position"`
	Phone     string `json:"phone"`
	Website   string `json:"website"`

	// Lifecycle: new, verified, contacted, converted, unsubscribed, bounced
	Status string `gorm:"default:'new';index" json:"status"`

	// Verification
	IsVerified         bool       `gorm:"default:false" json:"is_verified"`
	VerificationStatus string     `json:"verification_status"` // valid, invalid, risky, unknown
	VerifiedAt         *time.Time `json:"verified_at"`

	// Provenance
	Source      string `gorm:"index" json:"source"` // manual, csv, maps, serp, places
	SourceURL   string `json:"source_url"`
	ScrapeJobID *uint  `gorm:"index" json:"scrape_job_id,omitempty"`

	LastContact *time.Time `json:"last_contact"`

	// Relations
	LeadTags     []LeadTag         `gorm:"foreignKey:LeadID" json:"tags,omitempty"`
	CustomFields []LeadCustomField `gorm:"foreignKey:LeadID" json:"custom_fields,omitempty"`
}

// LeadTag represents tags for leads (normalized)
type LeadTag struct {
	gorm.Model
	LeadID uint   `gorm:"not null;index" json:"lead_id"`
	Tag    string `gorm:"not null;index" json:"tag"`
}

// LeadCustomField represents enrichment/custom fields for leads
type LeadCustomField struct {
	gorm.Model
	LeadID uint   `gorm:"not null;index" json:"lead_id"`
	Name   string `gorm:"not null;index" json:"name"`
	Value  string `gorm:"type:text" json:"value"`
}

// ScrapeJob tracks one scraper run and the leads it produced
type ScrapeJob struct {
	gorm.Model
	Source     string `gorm:"not null;index" json:"source"` // maps, serp, places
	Query      string `gorm:"not null" json:"query"`
	MaxResults int    `gorm:"default:50" json:"max_results"`

	Status      string     `gorm:"default:'pending';index" json:"status"` // pending, running, completed, failed
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`

	FoundCount    int    `gorm:"default:0" json:"found_count"`
	ImportedCount int    `gorm:"default:0" json:"imported_count"`
	SkippedCount  int    `gorm:"default:0" json:"skipped_count"`
	LastError     string `json:"last_error"`
}
