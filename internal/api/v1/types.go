package apiv1

import (
	"time"

	"github.com/snapboxhq/snapbox/app/models"
)

// Pong is the health-check response
type Pong struct {
	Ping string `json:"ping"`
}

// CreateTransactionRequest opens a new payment session at a kiosk
type CreateTransactionRequest struct {
	LocationID  uint   `json:"location_id" validate:"required"`
	PricePlanID string `json:"price_plan_id" validate:"required,uuid4"`
}

// TransactionResponse is the public shape of a payment session
type TransactionResponse struct {
	ID          uint       `json:"id"`
	ExternalID  string     `json:"external_id"`
	Status      string     `json:"status"`
	Amount      string     `json:"amount"`
	QRString    string     `json:"qr_string,omitempty"`
	ProviderRef string     `json:"provider_ref,omitempty"`
	LocationID  uint       `json:"location_id"`
	Location    string     `json:"location,omitempty"`
	PricePlanID string     `json:"price_plan_id"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	ExpiresAt   time.Time  `json:"expires_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TransactionListResponse is one page of the admin listing
type TransactionListResponse struct {
	Items      []TransactionResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	Limit      int                   `json:"limit"`
	TotalPages int                   `json:"total_pages"`
}

// PricePlanRequest creates or updates a price plan
type PricePlanRequest struct {
	Amount      string `json:"amount" validate:"required"`
	Description string `json:"description" validate:"required,min=3,max=255"`
	Quota       *int   `json:"quota" validate:"omitempty,min=1"`
}

// PricePlanResponse is the public shape of a price plan
type PricePlanResponse struct {
	ID             string    `json:"id"`
	Amount         string    `json:"amount"`
	Description    string    `json:"description"`
	Quota          *int      `json:"quota,omitempty"`
	RemainingQuota *int      `json:"remaining_quota,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// LocationRequest creates or updates a photobox location
type LocationRequest struct {
	MachineCode string `json:"machine_code" validate:"required,min=3,max=50"`
	Name        string `json:"name" validate:"required,min=3,max=100"`
	Address     string `json:"address" validate:"max=255"`
	IsActive    *bool  `json:"is_active"`
}

// LocationResponse is the public shape of a location
type LocationResponse struct {
	ID          uint      `json:"id"`
	MachineCode string    `json:"machine_code"`
	Name        string    `json:"name"`
	Address     string    `json:"address,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// LocationListResponse is one page of the location listing
type LocationListResponse struct {
	Items []LocationResponse `json:"items"`
	Total int64              `json:"total"`
}

// DeliverRequest asks for the gallery email of a finished session
type DeliverRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// PhotoResponse is the public shape of a stored photo
type PhotoResponse struct {
	UUID        string    `json:"uuid"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// GalleryResponse lists all photos of a session
type GalleryResponse struct {
	ExternalID string          `json:"external_id"`
	Photos     []PhotoResponse `json:"photos"`
}

// CleanupResponse reports the result of a maintenance run
type CleanupResponse struct {
	SessionsCleaned int `json:"sessions_cleaned"`
	ObjectsDeleted  int `json:"objects_deleted"`
}

// xenditWebhookRequest is the QR payment callback body sent by Xendit.
// Deliveries come in two shapes: the nested qr_code object and a flat one
// carrying xendit_id/paid_at; both are accepted.
type xenditWebhookRequest struct {
	Event      string `json:"event"`
	ExternalID string `json:"external_id"`
	XenditID   string `json:"xendit_id"`
	Status     string `json:"status"`
	Created    string `json:"created"`
	PaidAt     string `json:"paid_at"`
	QRCode     struct {
		ID         string `json:"id"`
		ExternalID string `json:"external_id"`
	} `json:"qr_code"`
}

// QueueStatsResponse reports the delivery queue depth
type QueueStatsResponse struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
}

func transactionToResponse(txn *models.Transaction, expiresAfter time.Duration) TransactionResponse {
	resp := TransactionResponse{
		ID:          txn.ID,
		ExternalID:  txn.ExternalID,
		Status:      txn.Status,
		Amount:      txn.Amount.String(),
		QRString:    txn.QRString,
		ProviderRef: txn.ProviderRef,
		LocationID:  txn.LocationID,
		PricePlanID: txn.PricePlanID,
		PaidAt:      txn.PaidAt,
		ExpiresAt:   txn.CreatedAt.Add(expiresAfter),
		CreatedAt:   txn.CreatedAt,
	}
	if txn.Location != nil {
		resp.Location = txn.Location.Name
	}
	return resp
}

func pricePlanToResponse(plan *models.PricePlan, remaining *int) PricePlanResponse {
	return PricePlanResponse{
		ID:             plan.ID,
		Amount:         plan.Amount.String(),
		Description:    plan.Description,
		Quota:          plan.Quota,
		RemainingQuota: remaining,
		IsActive:       plan.IsActive,
		CreatedAt:      plan.CreatedAt,
	}
}

func locationToResponse(location *models.Location) LocationResponse {
	return LocationResponse{
		ID:          location.ID,
		MachineCode: location.MachineCode,
		Name:        location.Name,
		Address:     location.Address,
		IsActive:    location.IsActive,
		CreatedAt:   location.CreatedAt,
	}
}

func photoToResponse(photo *models.Photo) PhotoResponse {
	return PhotoResponse{
		UUID:        photo.UUID,
		FileName:    photo.FileName,
		ContentType: photo.ContentType,
		Size:        photo.Size,
		CreatedAt:   photo.CreatedAt,
	}
}
