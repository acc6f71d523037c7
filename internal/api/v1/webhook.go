package apiv1

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/snapboxhq/snapbox/internal/pkg/payments"
)

// CallbackTokenHeader carries the shared secret Xendit sends with every
// webhook delivery.
const CallbackTokenHeader = "x-callback-token"

// PostPaymentWebhook receives QR payment callbacks from Xendit. Replays of
// an already-applied outcome answer 200 so the provider stops retrying.
func (s *APIServer) PostPaymentWebhook(c *fiber.Ctx) error {
	var req xenditWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid webhook body")
	}

	externalID := req.ExternalID
	if externalID == "" {
		externalID = req.QRCode.ExternalID
	}
	if externalID == "" {
		return badRequest(c, "external_id missing")
	}

	providerRef := req.QRCode.ID
	if providerRef == "" {
		providerRef = req.XenditID
	}

	ev := payments.WebhookEvent{
		CallbackToken: c.Get(CallbackTokenHeader),
		ExternalID:    externalID,
		Status:        req.Status,
		ProviderRef:   providerRef,
	}

	paidRaw := req.PaidAt
	if paidRaw == "" {
		paidRaw = req.Created
	}
	if paidRaw != "" {
		if paidAt, err := time.Parse(time.RFC3339, paidRaw); err == nil {
			ev.PaidAt = &paidAt
		} else {
			log.Warnf("[Webhook] Unparseable payment timestamp %q for %s", paidRaw, externalID)
		}
	}

	if err := s.payments.HandleWebhook(c.Context(), ev); err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{"status": "ok"})
}
