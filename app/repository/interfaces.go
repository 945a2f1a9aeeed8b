package repository

import (
	"github.com/spoqen/spoqen/app/models"
)

// CallRepository defines the interface for call-related database operations
type CallRepository interface {
	Create(call *models.Call) error
	GetByID(id uint) (*models.Call, error)
	GetByVapiCallID(vapiCallID string) (*models.Call, error)
	ListByUserID(userID string, offset, limit int) ([]models.Call, error)
	CountByUserID(userID string) (int64, error)
}

// PhoneNumberRepository defines the interface for phone-number reads. Rows
// are written by the external provisioning function, so there is no create
// or update path here.
type PhoneNumberRepository interface {
	GetActiveByUserID(userID string) (*models.PhoneNumber, error)
}

// Repositories holds all repository instances
type Repositories struct {
	Call        CallRepository
	PhoneNumber PhoneNumberRepository
}
