package apiv1

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/snapboxhq/snapbox/internal/pkg/env"
)

// DefaultRetentionDays is how long delivered galleries stay in storage
const DefaultRetentionDays = 14

// DeleteMaintenanceCleanup removes storage folders of galleries delivered
// longer than the retention window ago. The endpoint is idempotent, a rerun
// finds nothing left to clean.
func (s *APIServer) DeleteMaintenanceCleanup(c *fiber.Ctx) error {
	if s.storage == nil {
		return storageUnavailable(c)
	}

	retentionDays := DefaultRetentionDays
	if v, err := strconv.Atoi(env.GetEnv("MAINTENANCE_RETENTION_DAYS", "")); err == nil && v > 0 {
		retentionDays = v
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	txns, err := s.repos.Transaction.ListDeliveredBefore(cutoff)
	if err != nil {
		return errorResponse(c, err)
	}

	sessionsCleaned := 0
	objectsDeleted := 0
	for i := range txns {
		count, err := s.repos.Photo.CountByTransactionID(txns[i].ID)
		if err != nil {
			return errorResponse(c, err)
		}
		if count == 0 {
			continue
		}

		prefix := s.storage.Config().FolderPrefix(txns[i].ExternalID)
		deleted, err := s.storage.DeleteFolder(c.Context(), prefix)
		if err != nil {
			log.Errorf("[Maintenance] Failed to clean %s: %v", txns[i].ExternalID, err)
			continue
		}

		if err := s.repos.Photo.DeleteByTransactionID(txns[i].ID); err != nil {
			log.Errorf("[Maintenance] Failed to drop photo records for %s: %v", txns[i].ExternalID, err)
			continue
		}

		sessionsCleaned++
		objectsDeleted += deleted
	}

	log.Infof("[Maintenance] Cleanup done: %d session(s), %d object(s)", sessionsCleaned, objectsDeleted)
	return c.JSON(CleanupResponse{SessionsCleaned: sessionsCleaned, ObjectsDeleted: objectsDeleted})
}

// GetQueueStats reports how many delivery jobs are waiting and in flight
func (s *APIServer) GetQueueStats(c *fiber.Ctx) error {
	if s.queue == nil {
		return queueUnavailable(c)
	}

	pending, err := s.queue.GetQueueSize(c.Context())
	if err != nil {
		return errorResponse(c, err)
	}
	processing, err := s.queue.GetProcessingSize(c.Context())
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(QueueStatsResponse{Pending: pending, Processing: processing})
}

// GetDeliveryJob returns the state of a queued delivery job by the id
// handed out at enqueue time. Completed jobs are removed from Redis, so
// they answer 404 like unknown ones.
func (s *APIServer) GetDeliveryJob(c *fiber.Ctx) error {
	if s.queue == nil {
		return queueUnavailable(c)
	}

	job, err := s.queue.GetJob(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Job not found"})
		}
		return errorResponse(c, err)
	}

	return c.JSON(job)
}
