package payments

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/snapboxhq/snapbox/internal/pkg/env"
)

const defaultXenditBaseURL = "https://api.xendit.co"

// XenditClient creates QRIS payment requests against the Xendit API. The
// QR code is stamped with an expires_at matching the engine's expiry window
// so the provider and the lazy expiry agree on the payable period.
type XenditClient struct {
	APIKey  string
	BaseURL string

	HTTPClient *http.Client
}

type xenditQRCodeResponse struct {
	ID       string `json:"id"`
	QRString string `json:"qr_string"`
	Status   string `json:"status"`
}

func NewXenditClientFromEnv() *XenditClient {
	return &XenditClient{
		APIKey:  strings.TrimSpace(env.GetEnv("XENDIT_API_KEY", "")),
		BaseURL: strings.TrimRight(env.GetEnv("XENDIT_BASE_URL", defaultXenditBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateQRIS creates a dynamic QRIS payment request and returns the
// scannable payload together with the provider's id for it.
func (c *XenditClient) CreateQRIS(ctx context.Context, req QRISRequest) (*QRISResult, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, errors.New("XENDIT_API_KEY is not configured")
	}

	expiresAt := req.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(DefaultExpiryWindow)
	}

	amount, _ := req.Amount.Float64()
	payload := map[string]any{
		"external_id":  req.ExternalID,
		"type":         "DYNAMIC",
		"amount":       amount,
		"callback_url": req.CallbackURL,
		"expires_at":   expiresAt.UTC().Format("2006-01-02T15:04:05.000Z"),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/qr_codes", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	c.setHeaders(httpReq)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("xendit request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		log.Errorf("[Xendit] create QRIS failed: status=%d body=%s", resp.StatusCode, string(respBody))
		return nil, fmt.Errorf("xendit returned status %d", resp.StatusCode)
	}

	var qr xenditQRCodeResponse
	if err := json.Unmarshal(respBody, &qr); err != nil {
		return nil, fmt.Errorf("decode xendit response: %w", err)
	}

	log.Infof("[Xendit] QRIS created for external_id %s", req.ExternalID)
	return &QRISResult{
		QRString:    qr.QRString,
		ProviderRef: qr.ID,
	}, nil
}

// GetQRISStatus fetches the provider-side state of a QR code. Used for
// manual reconciliation, never by the engine's own state decisions.
func (c *XenditClient) GetQRISStatus(ctx context.Context, providerRef string) (string, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return "", errors.New("XENDIT_API_KEY is not configured")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/qr_codes/"+providerRef, nil)
	if err != nil {
		return "", err
	}
	c.setHeaders(httpReq)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("xendit request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("xendit returned status %d", resp.StatusCode)
	}

	var qr xenditQRCodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return "", fmt.Errorf("decode xendit response: %w", err)
	}
	return qr.Status, nil
}

func (c *XenditClient) setHeaders(req *http.Request) {
	// Basic auth with the API key as username and an empty password,
	// per the Xendit API documentation.
	credentials := base64.StdEncoding.EncodeToString([]byte(c.APIKey + ":"))
	req.Header.Set("Authorization", "Basic "+credentials)
	req.Header.Set("Content-Type", "application/json")
}
