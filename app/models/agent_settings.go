package models

import (
	"time"

	"gorm.io/gorm"
)

// AgentSettings stores per-user receptionist configuration and preferences.
type AgentSettings struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	UserID             string         `gorm:"type:char(36);uniqueIndex" json:"user_id"`
	Greeting           string         `gorm:"type:text" json:"greeting"`
	BusinessHoursJSON  string         `gorm:"type:text" json:"business_hours_json"`
	VoiceID            string         `gorm:"type:varchar(100);default:''" json:"voice_id"`
	EmailNotifications bool           `gorm:"default:true" json:"email_notifications"`
	SMSNotifications   bool           `gorm:"default:false" json:"sms_notifications"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}

// GetOrCreateAgentSettings returns existing settings or creates defaults
func GetOrCreateAgentSettings(db *gorm.DB, userID string) (*AgentSettings, error) {
	var as AgentSettings
	if err := db.Where("user_id = ?", userID).First(&as).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			as = AgentSettings{UserID: userID, EmailNotifications: true}
			if err := db.Create(&as).Error; err != nil {
				return nil, err
			}
			return &as, nil
		}
		return nil, err
	}
	return &as, nil
}
