package payments

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/snapboxhq/snapbox/app/models"
)

// DefaultExpiryWindow is how long a PENDING transaction stays payable. It
// matches the expires_at the provider stamps on the QR code.
const DefaultExpiryWindow = 15 * time.Minute

// Config carries the engine's runtime settings.
type Config struct {
	// CallbackToken is the shared secret the provider sends in the
	// x-callback-token webhook header.
	CallbackToken string
	// WebhookURL is handed to the provider when creating a QR code.
	WebhookURL string
	// ExpiryWindow defaults to DefaultExpiryWindow when zero.
	ExpiryWindow time.Duration
}

// Service is the transaction lifecycle engine: reservation with quota
// accounting, webhook reconciliation and lazy expiry. All state lives in the
// database; multiple instances may run against the same store.
type Service struct {
	db       *gorm.DB
	provider QRISProvider
	cfg      Config
	now      func() time.Time
}

// NewService creates a payment engine on an injected DB handle and provider
// client.
func NewService(db *gorm.DB, provider QRISProvider, cfg Config) *Service {
	if cfg.ExpiryWindow <= 0 {
		cfg.ExpiryWindow = DefaultExpiryWindow
	}
	return &Service{
		db:       db,
		provider: provider,
		cfg:      cfg,
		now:      time.Now,
	}
}

// ExpiryWindow returns the configured session lifetime.
func (s *Service) ExpiryWindow() time.Duration {
	return s.cfg.ExpiryWindow
}

// CreateTransaction reserves a quota slot and opens a PENDING payment
// session. The provider is called before the database transaction so the
// plan row lock never spans network I/O; the authoritative quota check
// happens inside the locked section, so a reservation that loses the race
// fails with ErrQuotaExceeded and persists nothing.
func (s *Service) CreateTransaction(ctx context.Context, in CreateTransactionInput) (*models.Transaction, error) {
	var location models.Location
	if err := s.db.WithContext(ctx).First(&location, in.LocationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLocationNotFound
		}
		return nil, translateDBError(err)
	}
	if !location.IsActive {
		return nil, ErrLocationInactive
	}

	var plan models.PricePlan
	if err := s.db.WithContext(ctx).First(&plan, "id = ?", in.PricePlanID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, translateDBError(err)
	}
	if !plan.IsActive {
		return nil, ErrPlanInactive
	}

	// Cheap unlocked pre-check so an exhausted plan fails before we create a
	// provider-side payment request. The locked re-check below decides.
	if exceeded, err := s.quotaExceeded(ctx, s.db, &plan); err != nil {
		return nil, err
	} else if exceeded {
		return nil, ErrQuotaExceeded
	}

	externalID, err := NewExternalID(location.ID, s.now())
	if err != nil {
		return nil, err
	}

	qr, err := s.provider.CreateQRIS(ctx, QRISRequest{
		ExternalID:  externalID,
		Amount:      plan.Amount,
		CallbackURL: s.cfg.WebhookURL,
		ExpiresAt:   s.now().Add(s.cfg.ExpiryWindow),
	})
	if err != nil {
		return nil, fmt.Errorf("create payment request: %w", err)
	}

	txn := &models.Transaction{
		LocationID:  location.ID,
		PricePlanID: plan.ID,
		ExternalID:  externalID,
		ProviderRef: qr.ProviderRef,
		Status:      models.TransactionStatusPending,
		Amount:      plan.Amount,
		QRString:    qr.QRString,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Pessimistic lock on the plan row for the count-then-insert
		// sequence; this is the one place the engine locks beyond a single
		// transaction row.
		var locked models.PricePlan
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&locked, "id = ?", plan.ID).Error; err != nil {
			return err
		}
		if exceeded, err := s.quotaExceeded(ctx, tx, &locked); err != nil {
			return err
		} else if exceeded {
			return ErrQuotaExceeded
		}
		return tx.Create(txn).Error
	})
	if err != nil {
		return nil, translateDBError(err)
	}

	log.Infof("[Payments] transaction created: %s location=%d plan=%s amount=%s",
		txn.ExternalID, txn.LocationID, txn.PricePlanID, txn.Amount.StringFixed(2))
	txn.Location = &location
	txn.PricePlan = &plan
	return txn, nil
}

// HandleWebhook reconciles a provider callback onto the state machine.
// Authenticity is checked before any database lookup. Replays of an
// identical terminal outcome succeed as no-ops; conflicting outcomes and
// reattributed provider references are rejected and logged.
func (s *Service) HandleWebhook(ctx context.Context, ev WebhookEvent) error {
	if err := s.authorizeCallback(ev.CallbackToken); err != nil {
		return err
	}

	target, err := mapOutcome(ev.Status)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txn models.Transaction
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("external_id = ?", ev.ExternalID).
			First(&txn).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTransactionNotFound
			}
			return err
		}

		if txn.ProviderRef != "" && ev.ProviderRef != "" && txn.ProviderRef != ev.ProviderRef {
			return ErrProviderRefMismatch
		}

		changed, err := Transition(txn.Status, target)
		if err != nil {
			return err
		}
		if !changed {
			// Identical redelivery; the state machine is the idempotency key.
			return nil
		}

		txn.Status = target
		if txn.ProviderRef == "" {
			txn.ProviderRef = ev.ProviderRef
		}
		if target == models.TransactionStatusCompleted {
			paidAt := s.now()
			if ev.PaidAt != nil {
				paidAt = *ev.PaidAt
			}
			if paidAt.Before(txn.CreatedAt) {
				paidAt = txn.CreatedAt
			}
			txn.PaidAt = &paidAt
		}
		return tx.Save(&txn).Error
	})
	if err != nil {
		if errors.Is(err, ErrProviderRefMismatch) || errors.Is(err, ErrAlreadyTerminal) {
			// Integrity anomaly: a misbehaving provider or a very late
			// webhook racing lazy expiry. Needs manual reconciliation.
			log.Errorf("[Payments] webhook conflict for %s (status=%s ref=%s): %v",
				ev.ExternalID, ev.Status, ev.ProviderRef, err)
		}
		return translateDBError(err)
	}

	log.Infof("[Payments] transaction updated via webhook: %s -> %s", ev.ExternalID, target)
	return nil
}

// GetByExternalID is the polling path. It applies lazy expiry before
// returning: a PENDING transaction past its window is transitioned to
// EXPIRED under the same row lock as any other transition, so a racing
// webhook and expiry can never both win.
func (s *Service) GetByExternalID(ctx context.Context, externalID string) (*models.Transaction, error) {
	txn, err := s.loadByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}

	if txn.Status == models.TransactionStatusPending && s.expired(txn) {
		if err := s.expire(ctx, txn.ID); err != nil {
			return nil, err
		}
		return s.loadByExternalID(ctx, externalID)
	}
	return txn, nil
}

// GetDetail returns a transaction by internal id with its location and plan
// loaded, applying the same lazy expiry as the polling path.
func (s *Service) GetDetail(ctx context.Context, id uint) (*models.Transaction, error) {
	var txn models.Transaction
	err := s.db.WithContext(ctx).
		Preload("Location").
		Preload("PricePlan").
		First(&txn, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, translateDBError(err)
	}
	if txn.Status == models.TransactionStatusPending && s.expired(&txn) {
		if err := s.expire(ctx, txn.ID); err != nil {
			return nil, err
		}
		return s.GetDetail(ctx, id)
	}
	return &txn, nil
}

// ListResult is one page of the admin transaction listing.
type ListResult struct {
	Items      []models.Transaction
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

var listSortColumns = map[string]string{
	"created_at":  "transactions.created_at",
	"status":      "transactions.status",
	"amount":      "transactions.amount",
	"paid_at":     "transactions.paid_at",
	"external_id": "transactions.external_id",
}

// List returns a filtered, paginated transaction page for reporting. The
// date range is required and capped at 365 days.
func (s *Service) List(ctx context.Context, f ListFilter) (*ListResult, error) {
	if f.Page < 1 {
		return nil, fmt.Errorf("page must be at least 1")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return nil, fmt.Errorf("limit must be between 1 and 100")
	}
	if f.DateFrom.IsZero() || f.DateTo.IsZero() {
		return nil, fmt.Errorf("date_from and date_to are required")
	}
	if f.DateTo.Before(f.DateFrom) {
		return nil, fmt.Errorf("date_to must be after date_from")
	}
	if f.DateTo.Sub(f.DateFrom) > 365*24*time.Hour {
		return nil, fmt.Errorf("date range cannot exceed 365 days")
	}

	query := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Preload("Location").
		Where("transactions.created_at >= ?", f.DateFrom).
		// End date is inclusive.
		Where("transactions.created_at < ?", f.DateTo.AddDate(0, 0, 1))

	if len(f.LocationIDs) > 0 {
		query = query.Where("transactions.location_id IN ?", f.LocationIDs)
	}
	if len(f.Statuses) > 0 {
		query = query.Where("transactions.status IN ?", f.Statuses)
	}
	if f.Search != "" {
		term := "%" + f.Search + "%"
		query = query.
			Joins("LEFT JOIN locations ON locations.id = transactions.location_id").
			Where("transactions.external_id LIKE ? OR transactions.provider_ref LIKE ? OR locations.name LIKE ?",
				term, term, term)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, translateDBError(err)
	}

	sortColumn, ok := listSortColumns[f.SortBy]
	if !ok {
		sortColumn = "transactions.created_at"
	}
	order := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		order = "ASC"
	}

	var items []models.Transaction
	err := query.
		Order(sortColumn + " " + order).
		Offset((f.Page - 1) * f.Limit).
		Limit(f.Limit).
		Find(&items).Error
	if err != nil {
		return nil, translateDBError(err)
	}

	totalPages := 0
	if total > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(f.Limit)))
	}
	return &ListResult{
		Items:      items,
		Total:      total,
		Page:       f.Page,
		Limit:      f.Limit,
		TotalPages: totalPages,
	}, nil
}

// RemainingQuota derives the open slot count for a plan, or nil for
// unlimited plans. Only PENDING and COMPLETED transactions consume quota.
func (s *Service) RemainingQuota(ctx context.Context, plan *models.PricePlan) (*int, error) {
	if plan.Quota == nil {
		return nil, nil
	}
	used, err := s.countQuotaUsage(ctx, s.db, plan.ID)
	if err != nil {
		return nil, err
	}
	remaining := *plan.Quota - int(used)
	return &remaining, nil
}

func (s *Service) authorizeCallback(token string) error {
	expected := s.cfg.CallbackToken
	if expected == "" {
		return ErrCallbackTokenUnset
	}
	if token == "" {
		return ErrMissingCallbackToken
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		return ErrInvalidCallbackToken
	}
	return nil
}

// mapOutcome converts the provider's reported outcome to a local terminal
// state. EXPIRED is never provider-driven locally; a provider-side expiry
// means the payment will not arrive, which is FAILED here.
func mapOutcome(status string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case models.TransactionStatusCompleted:
		return models.TransactionStatusCompleted, nil
	case models.TransactionStatusFailed, models.TransactionStatusExpired:
		return models.TransactionStatusFailed, nil
	default:
		return "", ErrUnknownOutcome
	}
}

func (s *Service) loadByExternalID(ctx context.Context, externalID string) (*models.Transaction, error) {
	var txn models.Transaction
	err := s.db.WithContext(ctx).
		Preload("Location").
		Preload("PricePlan").
		Where("external_id = ?", externalID).
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, translateDBError(err)
	}
	return &txn, nil
}

func (s *Service) expired(txn *models.Transaction) bool {
	return s.now().Sub(txn.CreatedAt) > s.cfg.ExpiryWindow
}

// expire persists the lazy PENDING -> EXPIRED transition. The locked
// re-check makes losing a race against a webhook harmless: if the row is no
// longer PENDING, there is nothing left to do.
func (s *Service) expire(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txn models.Transaction
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&txn, id).Error; err != nil {
			return err
		}
		if txn.Status != models.TransactionStatusPending || !s.expired(&txn) {
			return nil
		}
		changed, err := Transition(txn.Status, models.TransactionStatusExpired)
		if err != nil || !changed {
			return err
		}
		txn.Status = models.TransactionStatusExpired
		return tx.Save(&txn).Error
	})
	if err != nil {
		return translateDBError(err)
	}
	log.Infof("[Payments] transaction lazily expired: id=%d", id)
	return nil
}

func (s *Service) quotaExceeded(ctx context.Context, tx *gorm.DB, plan *models.PricePlan) (bool, error) {
	if plan.Quota == nil {
		return false, nil
	}
	used, err := s.countQuotaUsage(ctx, tx, plan.ID)
	if err != nil {
		return false, err
	}
	return used >= int64(*plan.Quota), nil
}

func (s *Service) countQuotaUsage(ctx context.Context, tx *gorm.DB, planID string) (int64, error) {
	var used int64
	err := tx.WithContext(ctx).Model(&models.Transaction{}).
		Where("price_plan_id = ? AND status IN ?", planID,
			[]string{models.TransactionStatusPending, models.TransactionStatusCompleted}).
		Count(&used).Error
	if err != nil {
		return 0, translateDBError(err)
	}
	return used, nil
}

// translateDBError maps driver failures onto the engine's taxonomy. Lock
// wait timeouts and deadlocks become the retryable ErrContention; duplicate
// keys on the external id unique index become ErrExternalIDTaken.
func translateDBError(err error) error {
	if err == nil {
		return nil
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1205, 1213: // lock wait timeout, deadlock
			return ErrContention
		case 1062:
			return ErrExternalIDTaken
		}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrExternalIDTaken
	}
	return err
}
