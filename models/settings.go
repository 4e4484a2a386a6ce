package models

import (
	"encoding/json"

	"gorm.io/gorm"
)

// Setting is a flat key -> JSON value store for global defaults
// (sender identity, send window, timezone, compliance footer)
type Setting struct {
	gorm.Model
	Key   string `gorm:"not null;uniqueIndex" json:"key"`
	Value string `gorm:"type:text" json:"value"` // JSON-encoded
}

// Well-known setting keys
const (
	SettingFromName         = "from_name"
	SettingFromEmail        = "from_email"
	SettingReplyTo          = "reply_to"
	SettingTimezone         = "timezone"
	SettingSendWindowStart  = "send_window_start"
	SettingSendWindowEnd    = "send_window_end"
	SettingComplianceFooter = "compliance_footer"
)

// GetSetting returns the decoded string value for key, or fallback when absent
func GetSetting(db *gorm.DB, key, fallback string) string {
	var setting Setting
	if err := db.Where("key = ?", key).First(&setting).Error; err != nil {
		return fallback
	}
	var value string
	if err := json.Unmarshal([]byte(setting.Value), &value); err != nil {
		// Value was stored as a raw string rather than JSON
		return setting.Value
	}
	return value
}

// SetSetting upserts a JSON-encoded string value for key
func SetSetting(db *gorm.DB, key, value string) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	var setting Setting
	if err := db.Where("key = ?", key).First(&setting).Error; err != nil {
		return db.Create(&Setting{Key: key, Value: string(encoded)}).Error
	}
	setting.Value = string(encoded)
	return db.Save(&setting).Error
}
