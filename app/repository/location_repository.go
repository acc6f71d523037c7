package repository

import (
	"github.com/snapboxhq/snapbox/app/models"
	"gorm.io/gorm"
)

// locationRepository implements the LocationRepository interface
type locationRepository struct {
	db *gorm.DB
}

// NewLocationRepository creates a new location repository instance
func NewLocationRepository(db *gorm.DB) LocationRepository {
	return &locationRepository{db: db}
}

func (r *locationRepository) Create(location *models.Location) error {
	return r.db.Create(location).Error
}

func (r *locationRepository) GetByID(id uint) (*models.Location, error) {
	var location models.Location
	err := r.db.First(&location, id).Error
	if err != nil {
		return nil, err
	}
	return &location, nil
}

func (r *locationRepository) GetByMachineCode(machineCode string) (*models.Location, error) {
	var location models.Location
	err := r.db.Where("machine_code = ?", machineCode).First(&location).Error
	if err != nil {
		return nil, err
	}
	return &location, nil
}

func (r *locationRepository) Update(location *models.Location) error {
	return r.db.Save(location).Error
}

func (r *locationRepository) List(isActive *bool, search string, offset, limit int) ([]models.Location, int64, error) {
	query := r.db.Model(&models.Location{})
	if isActive != nil {
		query = query.Where("is_active = ?", *isActive)
	}
	if search != "" {
		term := "%" + search + "%"
		query = query.Where("machine_code LIKE ? OR name LIKE ? OR address LIKE ?", term, term, term)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var locations []models.Location
	err := query.Order("machine_code ASC").Offset(offset).Limit(limit).Find(&locations).Error
	if err != nil {
		return nil, 0, err
	}
	return locations, total, nil
}
