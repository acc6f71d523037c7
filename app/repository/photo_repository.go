package repository

import (
	"github.com/snapboxhq/snapbox/app/models"
	"gorm.io/gorm"
)

// photoRepository implements the PhotoRepository interface
type photoRepository struct {
	db *gorm.DB
}

// NewPhotoRepository creates a new photo repository instance
func NewPhotoRepository(db *gorm.DB) PhotoRepository {
	return &photoRepository{db: db}
}

func (r *photoRepository) Create(photo *models.Photo) error {
	return r.db.Create(photo).Error
}

func (r *photoRepository) GetByTransactionID(transactionID uint) ([]models.Photo, error) {
	var photos []models.Photo
	err := r.db.Where("transaction_id = ?", transactionID).Order("created_at ASC").Find(&photos).Error
	return photos, err
}

func (r *photoRepository) CountByTransactionID(transactionID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Photo{}).Where("transaction_id = ?", transactionID).Count(&count).Error
	return count, err
}

func (r *photoRepository) DeleteByTransactionID(transactionID uint) error {
	return r.db.Where("transaction_id = ?", transactionID).Delete(&models.Photo{}).Error
}
