package apiv1

import (
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/snapboxhq/snapbox/app/models"
	"github.com/snapboxhq/snapbox/internal/pkg/s3storage"
)

// MaxPhotoSize caps a single upload at 10 MB
const MaxPhotoSize = 10 << 20

// PostPhotos stores the session's photos. Uploads are only accepted for a
// paid session whose gallery has not been delivered yet.
func (s *APIServer) PostPhotos(c *fiber.Ctx) error {
	if s.storage == nil {
		return storageUnavailable(c)
	}

	txn, err := s.repos.Transaction.GetByExternalID(c.Params("external_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	if txn.Status != models.TransactionStatusCompleted {
		return badRequest(c, "Photos can only be uploaded for a completed session")
	}
	if txn.EmailSentAt != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   "conflict",
			"message": "Gallery already delivered, uploads are closed",
		})
	}

	form, err := c.MultipartForm()
	if err != nil {
		return badRequest(c, "Invalid multipart form")
	}
	files := form.File["photos"]
	if len(files) == 0 {
		return badRequest(c, "No photos provided, use the 'photos' form field")
	}

	uploaded := make([]PhotoResponse, 0, len(files))
	for _, fh := range files {
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
			return badRequest(c, "Only JPG and PNG photos are accepted: "+fh.Filename)
		}
		if fh.Size > MaxPhotoSize {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
				"error":   "payload_too_large",
				"message": "Photo exceeds the 10 MB limit: " + fh.Filename,
			})
		}

		file, err := fh.Open()
		if err != nil {
			return errorResponse(c, err)
		}

		photoUUID := uuid.NewString()
		objectKey := s.storage.Config().GetObjectKey(txn.ExternalID, photoUUID, ext)
		contentType := s3storage.ContentTypeForExt(ext)

		if _, err := s.storage.UploadObject(c.Context(), objectKey, file, fh.Size, contentType); err != nil {
			file.Close()
			log.Errorf("[Photos] Upload failed for %s: %v", txn.ExternalID, err)
			return errorResponse(c, err)
		}
		file.Close()

		photo := &models.Photo{
			UUID:          photoUUID,
			TransactionID: txn.ID,
			FileName:      fh.Filename,
			ObjectKey:     objectKey,
			ContentType:   contentType,
			Size:          fh.Size,
		}
		if err := s.repos.Photo.Create(photo); err != nil {
			return errorResponse(c, err)
		}

		uploaded = append(uploaded, photoToResponse(photo))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"photos": uploaded})
}

// GetGallery lists the photos of a delivered session. The gallery only
// exists once the delivery email is out; before that the session answers
// 404 just like an unknown one.
func (s *APIServer) GetGallery(c *fiber.Ctx) error {
	txn, err := s.repos.Transaction.GetByExternalID(c.Params("external_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	if txn.EmailSentAt == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "not_found",
			"message": "Gallery not available",
		})
	}

	photos, err := s.repos.Photo.GetByTransactionID(txn.ID)
	if err != nil {
		return errorResponse(c, err)
	}

	items := make([]PhotoResponse, 0, len(photos))
	for i := range photos {
		items = append(items, photoToResponse(&photos[i]))
	}

	return c.JSON(GalleryResponse{ExternalID: txn.ExternalID, Photos: items})
}

// GetPhoto streams one photo from storage
func (s *APIServer) GetPhoto(c *fiber.Ctx) error {
	if s.storage == nil {
		return storageUnavailable(c)
	}

	txn, err := s.repos.Transaction.GetByExternalID(c.Params("external_id"))
	if err != nil {
		return errorResponse(c, err)
	}

	photos, err := s.repos.Photo.GetByTransactionID(txn.ID)
	if err != nil {
		return errorResponse(c, err)
	}

	photoUUID := c.Params("uuid")
	for i := range photos {
		if photos[i].UUID != photoUUID {
			continue
		}
		// A missing object (cleaned up out of band) is a 404, not a
		// storage failure.
		exists, err := s.storage.ObjectExists(c.Context(), photos[i].ObjectKey)
		if err != nil {
			return errorResponse(c, err)
		}
		if !exists {
			break
		}
		body, contentType, err := s.storage.DownloadObject(c.Context(), photos[i].ObjectKey)
		if err != nil {
			return errorResponse(c, err)
		}
		c.Set(fiber.HeaderContentType, contentType)
		return c.SendStream(body)
	}

	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Photo not found"})
}

// PostDeliver queues the gallery email for a paid session with photos
func (s *APIServer) PostDeliver(c *fiber.Ctx) error {
	if s.queue == nil {
		return queueUnavailable(c)
	}

	var req DeliverRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := s.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	txn, err := s.repos.Transaction.GetByExternalID(c.Params("external_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	if txn.Status != models.TransactionStatusCompleted {
		return badRequest(c, "Gallery delivery requires a completed session")
	}
	if txn.EmailSentAt != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   "conflict",
			"message": "Gallery already delivered",
		})
	}

	count, err := s.repos.Photo.CountByTransactionID(txn.ID)
	if err != nil {
		return errorResponse(c, err)
	}
	if count == 0 {
		return badRequest(c, "Session has no photos to deliver")
	}

	job, err := s.queue.EnqueueEmailDeliveryJob(txn.ID, txn.ExternalID, req.Email, int(count))
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "queued", "job_id": job.ID})
}

func storageUnavailable(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error":   "service_unavailable",
		"message": "Photo storage is not configured",
	})
}

func queueUnavailable(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error":   "service_unavailable",
		"message": "Job queue is not available",
	})
}
