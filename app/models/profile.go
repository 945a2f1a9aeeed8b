package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Profile is the local user identity record. The account itself lives at the
// auth provider; this row carries the paddle_customer_id back-reference the
// billing resolver depends on, plus dashboard-facing profile fields.
type Profile struct {
	ID                string     `gorm:"primaryKey;type:char(36)" json:"id" validate:"required,uuid4"`
	Email             string     `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,max=200"`
	FullName          string     `gorm:"type:varchar(150);default:''" json:"full_name" validate:"max=150"`
	BrokerageName     string     `gorm:"type:varchar(150);default:''" json:"brokerage_name" validate:"max=150"`
	PaddleCustomerID  *string    `gorm:"type:varchar(191);index" json:"paddle_customer_id,omitempty"`
	LastTransactionID *string    `gorm:"type:varchar(191)" json:"last_transaction_id,omitempty"`
	OnboardedAt       *time.Time `gorm:"type:timestamp;default:null" json:"onboarded_at,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Profile) Validate() error {
	v := validator.New()

	return v.Struct(p)
}
