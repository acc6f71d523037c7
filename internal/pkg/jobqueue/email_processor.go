package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/snapboxhq/snapbox/app/repository"
	"github.com/snapboxhq/snapbox/internal/pkg/mail"
)

// EnqueueEmailDeliveryJob queues the gallery email for a finished session
func (q *Queue) EnqueueEmailDeliveryJob(transactionID uint, externalID, email string, photoCount int) (*Job, error) {
	payload := EmailDeliveryJobPayload{
		TransactionID: transactionID,
		ExternalID:    externalID,
		Email:         email,
		PhotoCount:    photoCount,
	}
	return q.EnqueueJob(JobTypeEmailDelivery, payload.ToMap())
}

// processEmailDeliveryJob sends the gallery email and records the delivery
func (q *Queue) processEmailDeliveryJob(ctx context.Context, job *Job) error {
	payload, err := EmailDeliveryJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("failed to parse email delivery payload: %w", err)
	}

	txnRepo := repository.GetGlobalFactory().GetTransactionRepository()

	txn, err := txnRepo.GetByExternalID(payload.ExternalID)
	if err != nil {
		return fmt.Errorf("failed to load transaction %s: %w", payload.ExternalID, err)
	}

	if txn.EmailSentAt != nil {
		log.Infof("[EmailDeliveryJob] Gallery for %s already delivered at %s, skipping", payload.ExternalID, txn.EmailSentAt)
		return nil
	}

	if err := mail.SendGalleryMail(payload.Email, payload.ExternalID, payload.PhotoCount); err != nil {
		return fmt.Errorf("failed to send gallery mail for %s: %w", payload.ExternalID, err)
	}

	if err := txnRepo.MarkEmailSent(txn.ID, payload.Email, time.Now()); err != nil {
		// The mail is out; a bookkeeping failure must not trigger a resend
		log.Errorf("[EmailDeliveryJob] Failed to record delivery for %s: %v", payload.ExternalID, err)
		return nil
	}

	log.Infof("[EmailDeliveryJob] Delivered gallery for %s to %s", payload.ExternalID, payload.Email)
	return nil
}
