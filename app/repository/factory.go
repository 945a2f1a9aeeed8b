package repository

import (
	"sync"

	"gorm.io/gorm"
)

// NewRepositories creates all repository instances with the given database connection
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Call:        NewCallRepository(db),
		PhoneNumber: NewPhoneNumberRepository(db),
	}
}

// Factory provides a centralized way to access repositories
type Factory struct {
	db           *gorm.DB
	repositories *Repositories
	once         sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{db: db}
}

// GetRepositories returns the repositories, initializing them lazily
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repositories = NewRepositories(f.db)
	})
	return f.repositories
}

// Global factory instance for the application
var globalFactory *Factory
var factoryOnce sync.Once

// InitializeFactory initializes the global repository factory
func InitializeFactory(db *gorm.DB) {
	factoryOnce.Do(func() {
		globalFactory = NewFactory(db)
	})
}

// GetGlobalFactory returns the global repository factory
func GetGlobalFactory() *Factory {
	if globalFactory == nil {
		panic("Repository factory not initialized. Call InitializeFactory first.")
	}
	return globalFactory
}

// GetGlobalRepositories returns the global repositories
func GetGlobalRepositories() *Repositories {
	return GetGlobalFactory().GetRepositories()
}
