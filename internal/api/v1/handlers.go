package apiv1

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/snapboxhq/snapbox/app/repository"
	"github.com/snapboxhq/snapbox/internal/pkg/jobqueue"
	"github.com/snapboxhq/snapbox/internal/pkg/payments"
	"github.com/snapboxhq/snapbox/internal/pkg/s3storage"
)

// APIServer holds the wiring for all v1 endpoints
type APIServer struct {
	payments *payments.Service
	repos    *repository.Repositories
	storage  *s3storage.Client
	queue    *jobqueue.Queue
	validate *validator.Validate
}

// NewAPIServer creates a new API server instance. storage may be nil when
// photo storage is disabled; the photo endpoints then answer 503.
func NewAPIServer(svc *payments.Service, repos *repository.Repositories, storage *s3storage.Client, queue *jobqueue.Queue) *APIServer {
	return &APIServer{
		payments: svc,
		repos:    repos,
		storage:  storage,
		queue:    queue,
		validate: validator.New(),
	}
}

// GetPing handles the health-check endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(Pong{Ping: "pong"})
}

// errorResponse maps engine errors onto HTTP status codes. The conflict
// family (replayed webhooks with a different reference, late callbacks for
// settled sessions, duplicate external IDs) all answer 409.
func errorResponse(c *fiber.Ctx, err error) error {
	var code int
	var name string

	switch {
	case errors.Is(err, payments.ErrLocationNotFound),
		errors.Is(err, payments.ErrPlanNotFound),
		errors.Is(err, payments.ErrTransactionNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		code, name = fiber.StatusNotFound, "not_found"
	case errors.Is(err, payments.ErrLocationInactive),
		errors.Is(err, payments.ErrPlanInactive),
		errors.Is(err, payments.ErrUnknownOutcome):
		code, name = fiber.StatusBadRequest, "bad_request"
	case errors.Is(err, payments.ErrQuotaExceeded):
		code, name = fiber.StatusUnprocessableEntity, "quota_exceeded"
	case errors.Is(err, payments.ErrMissingCallbackToken):
		code, name = fiber.StatusUnauthorized, "unauthorized"
	case errors.Is(err, payments.ErrInvalidCallbackToken):
		code, name = fiber.StatusForbidden, "forbidden"
	case errors.Is(err, payments.ErrProviderRefMismatch),
		errors.Is(err, payments.ErrAlreadyTerminal),
		errors.Is(err, payments.ErrExternalIDTaken):
		code, name = fiber.StatusConflict, "conflict"
	case errors.Is(err, payments.ErrContention):
		code, name = fiber.StatusServiceUnavailable, "service_unavailable"
	default:
		code, name = fiber.StatusInternalServerError, "internal_server_error"
	}

	return c.Status(code).JSON(fiber.Map{"error": name, "message": err.Error()})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": message})
}
