package models

import "time"

const (
	PhoneNumberStatusProvisioning = "provisioning"
	PhoneNumberStatusActive       = "active"
	PhoneNumberStatusReleased     = "released"
)

// PhoneNumber is an allocated receptionist number plus its voice-AI assistant
// binding. Rows are written by the external provisioning function; this app
// only reads them (the provisioning guard checks for an active row).
type PhoneNumber struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserID          string     `gorm:"type:char(36);not null;index:idx_phone_numbers_user_status,priority:1" json:"user_id"`
	E164            string     `gorm:"type:varchar(20);not null;uniqueIndex" json:"e164"`
	Status          string     `gorm:"type:varchar(20);not null;default:'provisioning';index:idx_phone_numbers_user_status,priority:2" json:"status"`
	VapiAssistantID string     `gorm:"type:varchar(191);default:''" json:"vapi_assistant_id"`
	ReleasedAt      *time.Time `gorm:"type:timestamp;default:null" json:"released_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
