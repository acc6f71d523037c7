package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PricePlan is a sellable photobox session price. Quota is optional: a nil
// quota means unlimited sessions. Used quota is always derived from the
// transactions table, never stored as a counter, so failed and expired
// sessions release their slot automatically.
type PricePlan struct {
	ID          string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	Amount      decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount" validate:"required"`
	Description string          `gorm:"type:varchar(255)" json:"description" validate:"max=255"`
	Quota       *int            `gorm:"default:null" json:"quota,omitempty"`
	IsActive    bool            `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key when none is set.
func (p *PricePlan) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
