package payments

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/snapboxhq/snapbox/app/models"
	"github.com/snapboxhq/snapbox/internal/pkg/testutil"
)

const testCallbackToken = "cb-secret"

// fakeProvider records QR requests and serves canned responses.
type fakeProvider struct {
	mu    sync.Mutex
	calls []QRISRequest
	ref   string
	err   error
}

func (f *fakeProvider) CreateQRIS(_ context.Context, req QRISRequest) (*QRISResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, req)
	ref := f.ref
	if ref == "" {
		ref = "qr_test_ref"
	}
	return &QRISResult{QRString: "qris-payload-" + req.ExternalID, ProviderRef: ref}, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type testEnv struct {
	db       *gorm.DB
	svc      *Service
	provider *fakeProvider
	location models.Location
	plan     models.PricePlan
}

func newTestEnv(t *testing.T, quota *int) *testEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	provider := &fakeProvider{}
	svc := NewService(db, provider, Config{
		CallbackToken: testCallbackToken,
		WebhookURL:    "https://snapbox.test/api/v1/webhooks/xendit",
	})

	location := models.Location{MachineCode: "BOX-001", Name: "Mall Kiosk", IsActive: true}
	require.NoError(t, db.Create(&location).Error)

	plan := models.PricePlan{
		Amount:      decimal.NewFromInt(50000),
		Description: "Standard session",
		Quota:       quota,
		IsActive:    true,
	}
	require.NoError(t, db.Create(&plan).Error)

	return &testEnv{db: db, svc: svc, provider: provider, location: location, plan: plan}
}

func (e *testEnv) createInput() CreateTransactionInput {
	return CreateTransactionInput{LocationID: e.location.ID, PricePlanID: e.plan.ID}
}

func (e *testEnv) reload(t *testing.T, externalID string) *models.Transaction {
	t.Helper()
	var txn models.Transaction
	require.NoError(t, e.db.Where("external_id = ?", externalID).First(&txn).Error)
	return &txn
}

func intPtr(v int) *int { return &v }

func TestCreateTransaction(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	txn, err := env.svc.CreateTransaction(ctx, env.createInput())
	require.NoError(t, err)

	assert.Equal(t, models.TransactionStatusPending, txn.Status)
	assert.True(t, strings.HasPrefix(txn.ExternalID, "TRX-"))
	assert.Equal(t, "qr_test_ref", txn.ProviderRef)
	assert.Equal(t, "qris-payload-"+txn.ExternalID, txn.QRString)
	assert.True(t, txn.Amount.Equal(env.plan.Amount))
	assert.Nil(t, txn.PaidAt)

	require.Equal(t, 1, env.provider.callCount())
	assert.Equal(t, "https://snapbox.test/api/v1/webhooks/xendit", env.provider.calls[0].CallbackURL)
}

func TestCreateTransaction_LocationGuards(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.svc.CreateTransaction(ctx, CreateTransactionInput{LocationID: 9999, PricePlanID: env.plan.ID})
	assert.ErrorIs(t, err, ErrLocationNotFound)

	env.location.IsActive = false
	require.NoError(t, env.db.Save(&env.location).Error)

	_, err = env.svc.CreateTransaction(ctx, env.createInput())
	assert.ErrorIs(t, err, ErrLocationInactive)

	// Guards fire before any provider call is made.
	assert.Equal(t, 0, env.provider.callCount())
}

func TestCreateTransaction_PlanGuards(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.svc.CreateTransaction(ctx, CreateTransactionInput{
		LocationID:  env.location.ID,
		PricePlanID: "00000000-0000-0000-0000-000000000000",
	})
	assert.ErrorIs(t, err, ErrPlanNotFound)

	env.plan.IsActive = false
	require.NoError(t, env.db.Save(&env.plan).Error)

	_, err = env.svc.CreateTransaction(ctx, env.createInput())
	assert.ErrorIs(t, err, ErrPlanInactive)
	assert.Equal(t, 0, env.provider.callCount())
}

func TestCreateTransaction_QuotaBounded(t *testing.T) {
	env := newTestEnv(t, intPtr(2))
	ctx := context.Background()

	_, err := env.svc.CreateTransaction(ctx, env.createInput())
	require.NoError(t, err)
	_, err = env.svc.CreateTransaction(ctx, env.createInput())
	require.NoError(t, err)

	_, err = env.svc.CreateTransaction(ctx, env.createInput())
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	// The exhausted attempt is rejected before reaching the provider and
	// persists nothing.
	assert.Equal(t, 2, env.provider.callCount())
	var count int64
	require.NoError(t, env.db.Model(&models.Transaction{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestCreateTransaction_ConcurrentQuota(t *testing.T) {
	const quota = 3
	const attempts = 8

	env := newTestEnv(t, intPtr(quota))
	ctx := context.Background()

	// All attempts race through the unlocked pre-check; only the locked
	// re-check decides who gets a slot.
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.CreateTransaction(ctx, env.createInput())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes, rejected := 0, 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrQuotaExceeded):
			rejected++
		default:
			t.Fatalf("unexpected reservation error: %v", err)
		}
	}
	assert.Equal(t, quota, successes)
	assert.Equal(t, attempts-quota, rejected)

	var count int64
	require.NoError(t, env.db.Model(&models.Transaction{}).Count(&count).Error)
	assert.EqualValues(t, quota, count)
}

func TestCreateTransaction_FailureReleasesQuota(t *testing.T) {
	env := newTestEnv(t, intPtr(1))
	ctx := context.Background()

	first, err := env.svc.CreateTransaction(ctx, env.createInput())
	require.NoError(t, err)

	_, err = env.svc.CreateTransaction(ctx, env.createInput())
	require.ErrorIs(t, err, ErrQuotaExceeded)

	require.NoError(t, env.svc.HandleWebhook(ctx, WebhookEvent{
		CallbackToken: testCallbackToken,
		ExternalID:    first.ExternalID,
		Status:        "FAILED",
		ProviderRef:   first.ProviderRef,
	}))

	remaining, err := env.svc.RemainingQuota(ctx, &env.plan)
	require.NoError(t, err)
	require.NotNil(t, remaining)
	assert.Equal(t, 1, *remaining)

	// The freed slot is immediately reservable again.
	_, err = env.svc.CreateTransaction(ctx, env.createInput())
	assert.NoError(t, err)
}

func TestHandleWebhook_Completed(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	txn, err := env.svc.CreateTransaction(ctx, env.createInput())
	require.NoError(t, err)

	paidAt := time.Now().Add(2 * time.Minute)
	require.NoError(t, env.svc.HandleWebhook(ctx, WebhookEvent{
		CallbackToken: testCallbackToken,
		ExternalID:    txn.ExternalID,
		Status:        "COMPLETED",
		ProviderRef:   txn.ProviderRef,
		PaidAt:        &paidAt,
	}))

	got := env.reload(t, txn.ExternalID)
	assert.Equal(t, models.TransactionStatusCompleted, got.Status)
	require.NotNil(t, got.PaidAt)
	assert.False(t, got.PaidAt.Before(got.CreatedAt))
}

func TestHandleWebhook_ReplayIsNoOp(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	txn, err := env.svc.CreateTransaction(ctx, env.createInput())
	require.NoError(t, err)

	ev := WebhookEvent{
		CallbackToken: testCallbackToken,
		ExternalID:    txn.ExternalID,
		Status:        "COMPLETED",
		ProviderRef:   txn.ProviderRef,
	}
	require.NoError(t, env.svc.HandleWebhook(ctx, ev))
	firstPaidAt := env.reload(t, txn.ExternalID).PaidAt
	require.NotNil(t, firstPaidAt)

	// Identical redelivery succeeds without touching the row.
	require.NoError(t, env.svc.HandleWebhook(ctx, ev))
	got := env.reload(t, txn.ExternalID)
	assert.Equal(t, models.TransactionStatusCompleted, got.Status)
	assert.True(t, got.PaidAt.Equal(*firstPaidAt))
}

func TestHandleWebhook_ProviderRefMismatch(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	txn, err := env.svc.CreateTransaction(ctx, env.createInput())
	require.NoError(t, err)

	err = env.svc.HandleWebhook(ctx, WebhookEvent{
		CallbackToken: testCallbackToken,
		ExternalID:    txn.ExternalID,
		Status:        "COMPLETED",
		ProviderRef:   "qr_other_ref",
	})
	assert.ErrorIs(t, err, ErrProviderRefMismatch)
	assert.Equal(t, models.TransactionStatusPending, env.reload(t, txn.ExternalID).Status)
}

func TestHandleWebhook_ConflictingOutcome(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	txn, err := env.svc.CreateTransaction(ctx, env.createInput())
	require.NoError(t, err)

	require.NoError(t, env.svc.HandleWebhook(ctx, WebhookEvent{
		CallbackToken: testCallbackToken,
		ExternalID:    txn.ExternalID,
		Status:        "COMPLETED",
		ProviderRef:   txn.ProviderRef,
	}))

	err = env.svc.HandleWebhook(ctx, WebhookEvent{
		CallbackToken: testCallbackToken,
		ExternalID:    txn.ExternalID,
		Status:        "FAILED",
		ProviderRef:   txn.ProviderRef,
	})
	assert.ErrorIs(t, err, ErrAlreadyTerminal)
	assert.Equal(t, models.TransactionStatusCompleted, env.reload(t, txn.ExternalID).Status)
}

func TestHandleWebhook_ProviderExpiryMapsToFailed(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	txn, err := env.svc.CreateTransaction(ctx, env.createInput())
	require.NoError(t, err)

	require.NoError(t, env.svc.HandleWebhook(ctx, WebhookEvent{
		CallbackToken: testCallbackToken,
		ExternalID:    txn.ExternalID,
		Status:        "expired",
		ProviderRef:   txn.ProviderRef,
	}))

	assert.Equal(t, models.TransactionStatusFailed, env.reload(t, txn.ExternalID).Status)
}

func TestHandleWebhook_Authorization(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	err := env.svc.HandleWebhook(ctx, WebhookEvent{ExternalID: "TRX-1-x", Status: "COMPLETED"})
	assert.ErrorIs(t, err, ErrMissingCallbackToken)

	err = env.svc.HandleWebhook(ctx, WebhookEvent{
		CallbackToken: "wrong-token",
		ExternalID:    "TRX-1-x",
		Status:        "COMPLETED",
	})
	assert.ErrorIs(t, err, ErrInvalidCallbackToken)

	unconfigured := NewService(env.db, env.provider, Config{})
	err = unconfigured.HandleWebhook(ctx, WebhookEvent{
		CallbackToken: testCallbackToken,
		ExternalID:    "TRX-1-x",
		Status:        "COMPLETED",
	})
	assert.ErrorIs(t, err, ErrCallbackTokenUnset)
}

func TestHandleWebhook_UnknownOutcome(t *testing.T) {
	env := newTestEnv(t, nil)

	err := env.svc.HandleWebhook(context.Background(), WebhookEvent{
		CallbackToken: testCallbackToken,
		ExternalID:    "TRX-1-x",
		Status:        "ON_HOLD",
	})
	assert.ErrorIs(t, err, ErrUnknownOutcome)
}

func TestHandleWebhook_UnknownTransaction(t *testing.T) {
	env := newTestEnv(t, nil)

	err := env.svc.HandleWebhook(context.Background(), WebhookEvent{
		CallbackToken: testCallbackToken,
		ExternalID:    "TRX-1-20250101000000-DEADBEEF",
		Status:        "COMPLETED",
	})
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestLazyExpiry(t *testing.T) {
	env := newTestEnv(t, intPtr(1))
	ctx := context.Background()

	txn, err := env.svc.CreateTransaction(ctx, env.createInput())
	require.NoError(t, err)

	// Reading within the window leaves the session payable.
	got, err := env.svc.GetByExternalID(ctx, txn.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, got.Status)

	env.svc.now = func() time.Time { return time.Now().Add(DefaultExpiryWindow + time.Minute) }

	got, err = env.svc.GetByExternalID(ctx, txn.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusExpired, got.Status)
	assert.Nil(t, got.PaidAt)

	// Expiry released the quota slot.
	remaining, err := env.svc.RemainingQuota(ctx, &env.plan)
	require.NoError(t, err)
	require.NotNil(t, remaining)
	assert.Equal(t, 1, *remaining)

	// A very late success callback cannot resurrect the session.
	err = env.svc.HandleWebhook(ctx, WebhookEvent{
		CallbackToken: testCallbackToken,
		ExternalID:    txn.ExternalID,
		Status:        "COMPLETED",
		ProviderRef:   txn.ProviderRef,
	})
	assert.ErrorIs(t, err, ErrAlreadyTerminal)
	assert.Equal(t, models.TransactionStatusExpired, env.reload(t, txn.ExternalID).Status)
}

func TestGetDetail(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	txn, err := env.svc.CreateTransaction(ctx, env.createInput())
	require.NoError(t, err)

	got, err := env.svc.GetDetail(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, txn.ExternalID, got.ExternalID)
	require.NotNil(t, got.Location)
	assert.Equal(t, env.location.Name, got.Location.Name)

	_, err = env.svc.GetDetail(ctx, 424242)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestList(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	var completed *models.Transaction
	for i := 0; i < 3; i++ {
		txn, err := env.svc.CreateTransaction(ctx, env.createInput())
		require.NoError(t, err)
		if i == 0 {
			completed = txn
		}
	}
	require.NoError(t, env.svc.HandleWebhook(ctx, WebhookEvent{
		CallbackToken: testCallbackToken,
		ExternalID:    completed.ExternalID,
		Status:        "COMPLETED",
		ProviderRef:   completed.ProviderRef,
	}))

	today := time.Now().Truncate(24 * time.Hour)

	page, err := env.svc.List(ctx, ListFilter{
		DateFrom: today.AddDate(0, 0, -1),
		DateTo:   today,
		Page:     1,
		Limit:    10,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	assert.Equal(t, 1, page.TotalPages)

	page, err = env.svc.List(ctx, ListFilter{
		DateFrom: today.AddDate(0, 0, -1),
		DateTo:   today,
		Statuses: []string{models.TransactionStatusCompleted},
		Page:     1,
		Limit:    10,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, completed.ExternalID, page.Items[0].ExternalID)

	// Search matches the external id.
	page, err = env.svc.List(ctx, ListFilter{
		DateFrom: today.AddDate(0, 0, -1),
		DateTo:   today,
		Search:   completed.ExternalID,
		Page:     1,
		Limit:    10,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
}

func TestList_Validation(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	today := time.Now()

	_, err := env.svc.List(ctx, ListFilter{Page: 0, Limit: 10, DateFrom: today, DateTo: today})
	assert.Error(t, err)

	_, err = env.svc.List(ctx, ListFilter{Page: 1, Limit: 1000, DateFrom: today, DateTo: today})
	assert.Error(t, err)

	_, err = env.svc.List(ctx, ListFilter{Page: 1, Limit: 10})
	assert.Error(t, err)

	_, err = env.svc.List(ctx, ListFilter{Page: 1, Limit: 10, DateFrom: today, DateTo: today.AddDate(-2, 0, 0)})
	assert.Error(t, err)

	_, err = env.svc.List(ctx, ListFilter{Page: 1, Limit: 10, DateFrom: today.AddDate(-2, 0, 0), DateTo: today})
	assert.Error(t, err)
}

func TestRemainingQuota_Unlimited(t *testing.T) {
	env := newTestEnv(t, nil)

	remaining, err := env.svc.RemainingQuota(context.Background(), &env.plan)
	require.NoError(t, err)
	assert.Nil(t, remaining)
}
