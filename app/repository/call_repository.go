package repository

import (
	"gorm.io/gorm"

	"github.com/spoqen/spoqen/app/models"
)

// callRepository implements the CallRepository interface
type callRepository struct {
	db *gorm.DB
}

// NewCallRepository creates a new call repository instance
func NewCallRepository(db *gorm.DB) CallRepository {
	return &callRepository{db: db}
}

func (r *callRepository) Create(call *models.Call) error {
	return r.db.Create(call).Error
}

func (r *callRepository) GetByID(id uint) (*models.Call, error) {
	var call models.Call
	err := r.db.First(&call, id).Error
	if err != nil {
		return nil, err
	}
	return &call, nil
}

func (r *callRepository) GetByVapiCallID(vapiCallID string) (*models.Call, error) {
	var call models.Call
	err := r.db.Where("vapi_call_id = ?", vapiCallID).First(&call).Error
	if err != nil {
		return nil, err
	}
	return &call, nil
}

// ListByUserID returns the user's calls newest-first.
func (r *callRepository) ListByUserID(userID string, offset, limit int) ([]models.Call, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var calls []models.Call
	err := r.db.
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&calls).Error
	return calls, err
}

func (r *callRepository) CountByUserID(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Call{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// phoneNumberRepository implements the PhoneNumberRepository interface
type phoneNumberRepository struct {
	db *gorm.DB
}

// NewPhoneNumberRepository creates a new phone number repository instance
func NewPhoneNumberRepository(db *gorm.DB) PhoneNumberRepository {
	return &phoneNumberRepository{db: db}
}

func (r *phoneNumberRepository) GetActiveByUserID(userID string) (*models.PhoneNumber, error) {
	var number models.PhoneNumber
	err := r.db.
		Where("user_id = ? AND status = ?", userID, models.PhoneNumberStatusActive).
		First(&number).Error
	if err != nil {
		return nil, err
	}
	return &number, nil
}
