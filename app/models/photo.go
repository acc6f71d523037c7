package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Photo is a single uploaded image belonging to a completed transaction.
// Objects live in S3 under a per-transaction folder keyed by external id.
type Photo struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UUID          string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"uuid"`
	TransactionID uint      `gorm:"not null;index" json:"transaction_id"`
	FileName      string    `gorm:"type:varchar(255);not null" json:"file_name"`
	ObjectKey     string    `gorm:"type:varchar(512);not null" json:"object_key"`
	ContentType   string    `gorm:"type:varchar(100);not null" json:"content_type"`
	Size          int64     `gorm:"not null;default:0" json:"size"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// BeforeCreate assigns the photo UUID when none is set.
func (p *Photo) BeforeCreate(tx *gorm.DB) error {
	if p.UUID == "" {
		p.UUID = uuid.NewString()
	}
	return nil
}
