package apiv1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/snapboxhq/snapbox/app/models"
	"github.com/snapboxhq/snapbox/app/repository"
	"github.com/snapboxhq/snapbox/internal/pkg/payments"
	"github.com/snapboxhq/snapbox/internal/pkg/testutil"
)

const testCallbackToken = "cb-secret"

type fakeProvider struct{}

func (fakeProvider) CreateQRIS(_ context.Context, req payments.QRISRequest) (*payments.QRISResult, error) {
	return &payments.QRISResult{
		QRString:    "qris-payload-" + req.ExternalID,
		ProviderRef: "qr_test_ref",
	}, nil
}

type testApp struct {
	app      *fiber.App
	db       *gorm.DB
	location models.Location
	plan     models.PricePlan
}

func newTestApp(t *testing.T, quota *int) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	svc := payments.NewService(db, fakeProvider{}, payments.Config{
		CallbackToken: testCallbackToken,
	})
	repos := repository.NewRepositories(db)
	server := NewAPIServer(svc, repos, nil, nil)

	location := models.Location{MachineCode: "BOX-001", Name: "Mall Kiosk", IsActive: true}
	require.NoError(t, db.Create(&location).Error)
	plan := models.PricePlan{
		Amount:      decimal.NewFromInt(50000),
		Description: "Standard session",
		Quota:       quota,
		IsActive:    true,
	}
	require.NoError(t, db.Create(&plan).Error)

	app := fiber.New()
	app.Get("/api/v1/ping", server.GetPing)
	app.Post("/api/v1/webhooks/xendit", server.PostPaymentWebhook)
	app.Post("/api/v1/transactions", server.PostTransaction)
	app.Get("/api/v1/transactions", server.GetTransactions)
	app.Get("/api/v1/transactions/status/:external_id", server.GetTransactionStatus)
	app.Get("/api/v1/transactions/:external_id/gallery", server.GetGallery)
	app.Get("/api/v1/transactions/:id", server.GetTransaction)
	app.Get("/api/v1/maintenance/queue-stats", server.GetQueueStats)
	app.Post("/api/v1/prices", server.PostPricePlan)
	app.Get("/api/v1/prices", server.GetPricePlans)
	app.Get("/api/v1/prices/:id", server.GetPricePlan)
	app.Post("/api/v1/prices/:id/deactivate", server.PostPricePlanDeactivate)
	app.Post("/api/v1/locations", server.PostLocation)
	app.Get("/api/v1/locations", server.GetLocations)

	return &testApp{app: app, db: db, location: location, plan: plan}
}

func (ta *testApp) request(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, raw
}

func (ta *testApp) createSession(t *testing.T) TransactionResponse {
	t.Helper()

	resp, body := ta.request(t, "POST", "/api/v1/transactions", CreateTransactionRequest{
		LocationID:  ta.location.ID,
		PricePlanID: ta.plan.ID,
	}, nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(body))

	var txn TransactionResponse
	require.NoError(t, json.Unmarshal(body, &txn))
	return txn
}

func TestGetPing(t *testing.T) {
	ta := newTestApp(t, nil)

	resp, body := ta.request(t, "GET", "/api/v1/ping", nil, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ping":"pong"}`, string(body))
}

func TestPostTransaction(t *testing.T) {
	ta := newTestApp(t, nil)

	txn := ta.createSession(t)
	assert.Equal(t, models.TransactionStatusPending, txn.Status)
	assert.NotEmpty(t, txn.ExternalID)
	assert.NotEmpty(t, txn.QRString)
	assert.Equal(t, "50000", txn.Amount)
	assert.True(t, txn.ExpiresAt.After(txn.CreatedAt))
}

func TestPostTransaction_Validation(t *testing.T) {
	ta := newTestApp(t, nil)

	resp, _ := ta.request(t, "POST", "/api/v1/transactions", fiber.Map{"location_id": ta.location.ID}, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = ta.request(t, "POST", "/api/v1/transactions", CreateTransactionRequest{
		LocationID:  9999,
		PricePlanID: ta.plan.ID,
	}, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestPostTransaction_QuotaExhausted(t *testing.T) {
	ta := newTestApp(t, intPtr(1))

	ta.createSession(t)

	resp, body := ta.request(t, "POST", "/api/v1/transactions", CreateTransactionRequest{
		LocationID:  ta.location.ID,
		PricePlanID: ta.plan.ID,
	}, nil)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), "quota_exceeded")
}

func TestGetTransactionStatus(t *testing.T) {
	ta := newTestApp(t, nil)
	txn := ta.createSession(t)

	resp, body := ta.request(t, "GET", "/api/v1/transactions/status/"+txn.ExternalID, nil, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var got TransactionResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, txn.ExternalID, got.ExternalID)
	assert.Equal(t, models.TransactionStatusPending, got.Status)

	resp, _ = ta.request(t, "GET", "/api/v1/transactions/status/TRX-1-20250101000000-DEADBEEF", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestWebhookFlow(t *testing.T) {
	ta := newTestApp(t, nil)
	txn := ta.createSession(t)

	payload := fiber.Map{
		"event":       "qr.payment",
		"external_id": txn.ExternalID,
		"status":      "COMPLETED",
		"created":     time.Now().Format(time.RFC3339),
		"qr_code":     fiber.Map{"id": txn.ProviderRef},
	}

	// Missing token
	resp, _ := ta.request(t, "POST", "/api/v1/webhooks/xendit", payload, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	// Wrong token
	resp, _ = ta.request(t, "POST", "/api/v1/webhooks/xendit", payload, map[string]string{
		CallbackTokenHeader: "wrong",
	})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// Valid delivery settles the session
	resp, _ = ta.request(t, "POST", "/api/v1/webhooks/xendit", payload, map[string]string{
		CallbackTokenHeader: testCallbackToken,
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body := ta.request(t, "GET", "/api/v1/transactions/status/"+txn.ExternalID, nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var got TransactionResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, models.TransactionStatusCompleted, got.Status)
	assert.NotNil(t, got.PaidAt)

	// Replay is accepted as a no-op
	resp, _ = ta.request(t, "POST", "/api/v1/webhooks/xendit", payload, map[string]string{
		CallbackTokenHeader: testCallbackToken,
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// A conflicting outcome is rejected
	payload["status"] = "FAILED"
	resp, _ = ta.request(t, "POST", "/api/v1/webhooks/xendit", payload, map[string]string{
		CallbackTokenHeader: testCallbackToken,
	})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestWebhook_UnknownOutcome(t *testing.T) {
	ta := newTestApp(t, nil)
	txn := ta.createSession(t)

	resp, _ := ta.request(t, "POST", "/api/v1/webhooks/xendit", fiber.Map{
		"external_id": txn.ExternalID,
		"status":      "ON_HOLD",
	}, map[string]string{CallbackTokenHeader: testCallbackToken})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestWebhook_FlatPayload(t *testing.T) {
	ta := newTestApp(t, nil)
	txn := ta.createSession(t)

	paidAt := time.Now().Add(time.Minute).UTC().Truncate(time.Second)
	resp, _ := ta.request(t, "POST", "/api/v1/webhooks/xendit", fiber.Map{
		"external_id": txn.ExternalID,
		"status":      "COMPLETED",
		"xendit_id":   txn.ProviderRef,
		"paid_at":     paidAt.Format(time.RFC3339),
	}, map[string]string{CallbackTokenHeader: testCallbackToken})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body := ta.request(t, "GET", "/api/v1/transactions/status/"+txn.ExternalID, nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var got TransactionResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, models.TransactionStatusCompleted, got.Status)
	require.NotNil(t, got.PaidAt)
	assert.True(t, got.PaidAt.Equal(paidAt), "paid_at %s != %s", got.PaidAt, paidAt)
}

func TestWebhook_FlatPayloadRefMismatch(t *testing.T) {
	ta := newTestApp(t, nil)
	txn := ta.createSession(t)

	// The flat xendit_id feeds the reattribution guard like qr_code.id does.
	resp, _ := ta.request(t, "POST", "/api/v1/webhooks/xendit", fiber.Map{
		"external_id": txn.ExternalID,
		"status":      "COMPLETED",
		"xendit_id":   "qr_other_ref",
	}, map[string]string{CallbackTokenHeader: testCallbackToken})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestGetGallery_DeliveryGate(t *testing.T) {
	ta := newTestApp(t, nil)
	txn := ta.createSession(t)

	resp, _ := ta.request(t, "POST", "/api/v1/webhooks/xendit", fiber.Map{
		"external_id": txn.ExternalID,
		"status":      "COMPLETED",
		"qr_code":     fiber.Map{"id": txn.ProviderRef},
	}, map[string]string{CallbackTokenHeader: testCallbackToken})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.NoError(t, ta.db.Create(&models.Photo{
		UUID:          uuid.NewString(),
		TransactionID: txn.ID,
		FileName:      "shot-1.jpg",
		ObjectKey:     "photos/" + txn.ExternalID + "/shot-1.jpg",
		ContentType:   "image/jpeg",
		Size:          1024,
	}).Error)

	// Paid but not yet delivered: the gallery does not exist.
	resp, _ = ta.request(t, "GET", "/api/v1/transactions/"+txn.ExternalID+"/gallery", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	now := time.Now()
	require.NoError(t, ta.db.Model(&models.Transaction{}).
		Where("id = ?", txn.ID).
		Updates(map[string]any{"customer_email": "guest@example.com", "email_sent_at": now}).Error)

	resp, body := ta.request(t, "GET", "/api/v1/transactions/"+txn.ExternalID+"/gallery", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var gallery GalleryResponse
	require.NoError(t, json.Unmarshal(body, &gallery))
	assert.Equal(t, txn.ExternalID, gallery.ExternalID)
	assert.Len(t, gallery.Photos, 1)
}

func TestGetQueueStats_Unavailable(t *testing.T) {
	ta := newTestApp(t, nil)

	resp, _ := ta.request(t, "GET", "/api/v1/maintenance/queue-stats", nil, nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestGetTransactions(t *testing.T) {
	ta := newTestApp(t, nil)
	ta.createSession(t)
	ta.createSession(t)

	// Date range is mandatory
	resp, _ := ta.request(t, "GET", "/api/v1/transactions", nil, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	from := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	to := time.Now().Format("2006-01-02")
	resp, body := ta.request(t, "GET",
		fmt.Sprintf("/api/v1/transactions?date_from=%s&date_to=%s", from, to), nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var page TransactionListResponse
	require.NoError(t, json.Unmarshal(body, &page))
	assert.EqualValues(t, 2, page.Total)
	assert.Len(t, page.Items, 2)
}

func TestPricePlanLifecycle(t *testing.T) {
	ta := newTestApp(t, nil)

	resp, body := ta.request(t, "POST", "/api/v1/prices", PricePlanRequest{
		Amount:      "75000",
		Description: "Premium session",
		Quota:       intPtr(5),
	}, nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(body))

	var plan PricePlanResponse
	require.NoError(t, json.Unmarshal(body, &plan))
	assert.True(t, plan.IsActive)

	resp, body = ta.request(t, "GET", "/api/v1/prices/"+plan.ID, nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &plan))
	require.NotNil(t, plan.RemainingQuota)
	assert.Equal(t, 5, *plan.RemainingQuota)

	resp, _ = ta.request(t, "POST", "/api/v1/prices/"+plan.ID+"/deactivate", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// A withdrawn plan rejects new sessions
	resp, _ = ta.request(t, "POST", "/api/v1/transactions", CreateTransactionRequest{
		LocationID:  ta.location.ID,
		PricePlanID: plan.ID,
	}, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestPricePlan_InvalidAmount(t *testing.T) {
	ta := newTestApp(t, nil)

	resp, _ := ta.request(t, "POST", "/api/v1/prices", PricePlanRequest{
		Amount:      "-100",
		Description: "Broken plan",
	}, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestLocationConflict(t *testing.T) {
	ta := newTestApp(t, nil)

	resp, _ := ta.request(t, "POST", "/api/v1/locations", LocationRequest{
		MachineCode: "BOX-001",
		Name:        "Duplicate Kiosk",
	}, nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp, body := ta.request(t, "POST", "/api/v1/locations", LocationRequest{
		MachineCode: "BOX-002",
		Name:        "Airport Kiosk",
	}, nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var loc LocationResponse
	require.NoError(t, json.Unmarshal(body, &loc))
	assert.True(t, loc.IsActive)

	resp, body = ta.request(t, "GET", "/api/v1/locations?search=Airport", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var list LocationListResponse
	require.NoError(t, json.Unmarshal(body, &list))
	assert.EqualValues(t, 1, list.Total)
}

func intPtr(v int) *int { return &v }
