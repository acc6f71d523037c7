package payments

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// CreateTransactionInput carries the kiosk's reservation request.
type CreateTransactionInput struct {
	LocationID  uint   `json:"location_id" validate:"required"`
	PricePlanID string `json:"price_plan_id" validate:"required,uuid4"`
}

// WebhookEvent is the normalized provider callback. CallbackToken is the
// shared-secret header value; it is checked before any database access.
type WebhookEvent struct {
	CallbackToken string
	ExternalID    string
	Status        string
	ProviderRef   string
	PaidAt        *time.Time
}

// QRISRequest is the provider-side payment request created during a
// reservation.
type QRISRequest struct {
	ExternalID  string
	Amount      decimal.Decimal
	CallbackURL string
	// ExpiresAt stamps the QR code so the provider stops accepting scans
	// when the local session expires.
	ExpiresAt time.Time
}

// QRISResult is what the engine persists from the provider response.
type QRISResult struct {
	QRString    string
	ProviderRef string
}

// QRISProvider creates scannable payment requests. The engine calls it once
// per reservation, before the transaction row is committed; tests inject a
// fake.
type QRISProvider interface {
	CreateQRIS(ctx context.Context, req QRISRequest) (*QRISResult, error)
}

// ListFilter narrows the admin transaction listing. DateFrom and DateTo are
// required and may span at most 365 days.
type ListFilter struct {
	LocationIDs []uint
	Statuses    []string
	DateFrom    time.Time
	DateTo      time.Time
	Search      string
	SortBy      string
	SortOrder   string
	Page        int
	Limit       int
}
