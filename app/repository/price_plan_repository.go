package repository

import (
	"github.com/snapboxhq/snapbox/app/models"
	"gorm.io/gorm"
)

// pricePlanRepository implements the PricePlanRepository interface
type pricePlanRepository struct {
	db *gorm.DB
}

// NewPricePlanRepository creates a new price-plan repository instance
func NewPricePlanRepository(db *gorm.DB) PricePlanRepository {
	return &pricePlanRepository{db: db}
}

func (r *pricePlanRepository) Create(plan *models.PricePlan) error {
	return r.db.Create(plan).Error
}

func (r *pricePlanRepository) GetByID(id string) (*models.PricePlan, error) {
	var plan models.PricePlan
	err := r.db.First(&plan, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *pricePlanRepository) GetAll() ([]models.PricePlan, error) {
	var plans []models.PricePlan
	err := r.db.Order("created_at DESC").Find(&plans).Error
	return plans, err
}

func (r *pricePlanRepository) Update(plan *models.PricePlan) error {
	return r.db.Save(plan).Error
}
