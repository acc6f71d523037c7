package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionStatusPending   = "PENDING"
	TransactionStatusCompleted = "COMPLETED"
	TransactionStatusFailed    = "FAILED"
	TransactionStatusExpired   = "EXPIRED"
)

// Transaction is one photobox payment session. The external id is the only
// handle shared between the kiosk (polling) and the payment provider
// (webhook); it is immutable and unique for the lifetime of the system.
//
// Status is monotonic: PENDING is the only non-terminal state, and once a
// terminal state (COMPLETED, FAILED, EXPIRED) is written the row never
// changes status again. All status writes happen under a row lock.
type Transaction struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	LocationID  uint            `gorm:"not null;index" json:"location_id"`
	Location    *Location       `gorm:"foreignKey:LocationID" json:"location,omitempty"`
	PricePlanID string          `gorm:"type:varchar(36);not null;index" json:"price_plan_id"`
	PricePlan   *PricePlan      `gorm:"foreignKey:PricePlanID" json:"price_plan,omitempty"`
	ExternalID  string          `gorm:"type:varchar(255);not null;uniqueIndex" json:"external_id"`
	ProviderRef string          `gorm:"type:varchar(255)" json:"provider_ref"`
	Status      string          `gorm:"type:varchar(50);not null;default:'PENDING';index" json:"status"`
	Amount      decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	QRString    string          `gorm:"type:text" json:"qr_string"`
	PaidAt      *time.Time      `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`

	// Delivery metadata owned by the photo/email collaborator.
	CustomerEmail string     `gorm:"type:varchar(255)" json:"customer_email,omitempty"`
	EmailSentAt   *time.Time `gorm:"type:timestamp;default:null" json:"email_sent_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminalStatus reports whether a status permits no further transition.
func IsTerminalStatus(status string) bool {
	switch status {
	case TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusExpired:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the transaction has reached a final state.
func (t *Transaction) IsTerminal() bool {
	return IsTerminalStatus(t.Status)
}
