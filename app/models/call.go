package models

import "time"

const (
	CallSentimentPositive = "positive"
	CallSentimentNeutral  = "neutral"
	CallSentimentNegative = "negative"
)

// Call is one handled receptionist call shown on the dashboard. Summary and
// sentiment come from the voice-AI platform's analysis; the recording lives
// in object storage under RecordingKey.
type Call struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       string    `gorm:"type:char(36);not null;index:idx_calls_user_started,priority:1" json:"user_id"`
	VapiCallID   string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"vapi_call_id"`
	CallerNumber string    `gorm:"type:varchar(20);not null" json:"caller_number"`
	StartedAt    time.Time `gorm:"type:timestamp;not null;index:idx_calls_user_started,priority:2" json:"started_at"`
	DurationSecs int       `gorm:"not null;default:0" json:"duration_secs"`
	Summary      string    `gorm:"type:text" json:"summary"`
	Sentiment    string    `gorm:"type:varchar(16);default:'neutral'" json:"sentiment"`
	RecordingKey string    `gorm:"type:varchar(255);default:''" json:"-"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}
