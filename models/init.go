package models

import (
	"encoding/json"

	"gorm.io/gorm"
)

// CreateDefaultSettings seeds the global defaults consulted when a campaign
// does not override a value
func CreateDefaultSettings(db *gorm.DB) error {
	defaults := map[string]string{
		SettingFromName:        "Outreach Team",
		SettingFromEmail:       "outreach@example.com",
		SettingReplyTo:         "",
		SettingTimezone:        "UTC",
		SettingSendWindowStart: "09:00",
		SettingSendWindowEnd:   "17:00",
		SettingComplianceFooter: "You are receiving this email because your business contact " +
			"information is publicly listed. If you'd rather not hear from us, " +
			"use the unsubscribe link below.",
	}

	for key, value := range defaults {
		encoded, err := json.Marshal(value)
		if err != nil {
			return err
		}
		setting := Setting{Key: key, Value: string(encoded)}
		if err := db.FirstOrCreate(&setting, "key = ?", key).Error; err != nil {
			return err
		}
	}
	return nil
}
