package repository

import (
	"time"

	"github.com/snapboxhq/snapbox/app/models"
	"gorm.io/gorm"
)

// LocationRepository defines the interface for location-related database operations
type LocationRepository interface {
	Create(location *models.Location) error
	GetByID(id uint) (*models.Location, error)
	GetByMachineCode(machineCode string) (*models.Location, error)
	Update(location *models.Location) error
	List(isActive *bool, search string, offset, limit int) ([]models.Location, int64, error)
}

// PricePlanRepository defines the interface for price-plan database operations
type PricePlanRepository interface {
	Create(plan *models.PricePlan) error
	GetByID(id string) (*models.PricePlan, error)
	GetAll() ([]models.PricePlan, error)
	Update(plan *models.PricePlan) error
}

// TransactionRepository serves the collaborators around the payment engine:
// photo upload, delivery bookkeeping and housekeeping reads. All status
// mutations go through the payments engine, never through this interface.
type TransactionRepository interface {
	GetByExternalID(externalID string) (*models.Transaction, error)
	MarkEmailSent(id uint, email string, sentAt time.Time) error
	ListDeliveredBefore(cutoff time.Time) ([]models.Transaction, error)
}

// PhotoRepository defines the interface for photo-related database operations
type PhotoRepository interface {
	Create(photo *models.Photo) error
	GetByTransactionID(transactionID uint) ([]models.Photo, error)
	CountByTransactionID(transactionID uint) (int64, error)
	DeleteByTransactionID(transactionID uint) error
}

// Repositories bundles all repository implementations
type Repositories struct {
	Location    LocationRepository
	PricePlan   PricePlanRepository
	Transaction TransactionRepository
	Photo       PhotoRepository
}

// NewRepositories creates all repositories on a shared GORM handle
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Location:    NewLocationRepository(db),
		PricePlan:   NewPricePlanRepository(db),
		Transaction: NewTransactionRepository(db),
		Photo:       NewPhotoRepository(db),
	}
}
