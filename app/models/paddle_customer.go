package models

import "time"

// PaddleCustomer mirrors a Paddle customer record. Created and updated only
// by the webhook processor's customer-event handler; the email is what links
// a customer back to a Profile when no explicit id link exists yet.
type PaddleCustomer struct {
	ID        string    `gorm:"primaryKey;type:varchar(191)" json:"id"`
	Email     string    `gorm:"type:varchar(200);not null;index" json:"email"`
	Name      string    `gorm:"type:varchar(150);default:''" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
