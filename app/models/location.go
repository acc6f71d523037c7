package models

import "time"

// Location represents a physical photobox machine. Every transaction is
// created against exactly one location, and only active locations may start
// new payment sessions.
type Location struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	MachineCode string    `gorm:"type:varchar(50);not null;uniqueIndex" json:"machine_code" validate:"required,min=1,max=50"`
	Name        string    `gorm:"type:varchar(100);not null" json:"name" validate:"required,max=100"`
	Address     string    `gorm:"type:text" json:"address"`
	IsActive    bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
