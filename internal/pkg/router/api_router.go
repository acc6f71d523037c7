package router

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"

	apiv1 "github.com/snapboxhq/snapbox/internal/api/v1"
	"github.com/snapboxhq/snapbox/internal/pkg/cache"
	"github.com/snapboxhq/snapbox/internal/pkg/encryption"
	"github.com/snapboxhq/snapbox/internal/pkg/env"
	"github.com/snapboxhq/snapbox/internal/pkg/middleware"
)

// ApiRouter wires the versioned JSON API
type ApiRouter struct {
	server *apiv1.APIServer
}

// NewApiRouter creates the API router around a configured server
func NewApiRouter(server *apiv1.APIServer) *ApiRouter {
	return &ApiRouter{server: server}
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		Storage:    newLimiterStorage(),
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")
	v1.Get("/ping", h.server.GetPing)

	// Provider callbacks and housekeeping stay unencrypted.
	webhookGroup := v1.Group("/webhooks")
	webhookGroup.Post("/xendit", h.server.PostPaymentWebhook)

	maintenanceGroup := v1.Group("/maintenance", middleware.MaintenanceAuthMiddleware())
	maintenanceGroup.Delete("/cleanup-old-folders", h.server.DeleteMaintenanceCleanup)
	maintenanceGroup.Get("/queue-stats", h.server.GetQueueStats)
	maintenanceGroup.Get("/jobs/:id", h.server.GetDeliveryJob)

	// Kiosk and admin surfaces share the response encryption envelope.
	enc := encryption.ResponseMiddleware()

	txGroup := v1.Group("/transactions", enc)
	txGroup.Post("/", h.server.PostTransaction)
	txGroup.Get("/", h.server.GetTransactions)
	txGroup.Get("/status/:external_id", h.server.GetTransactionStatus)
	txGroup.Post("/:external_id/photos", h.server.PostPhotos)
	txGroup.Get("/:external_id/photos/:uuid", h.server.GetPhoto)
	txGroup.Get("/:external_id/gallery", h.server.GetGallery)
	txGroup.Post("/:external_id/deliver", h.server.PostDeliver)
	txGroup.Get("/:id", h.server.GetTransaction)

	priceGroup := v1.Group("/prices", enc)
	priceGroup.Post("/", h.server.PostPricePlan)
	priceGroup.Get("/", h.server.GetPricePlans)
	priceGroup.Get("/:id", h.server.GetPricePlan)
	priceGroup.Put("/:id", h.server.PutPricePlan)
	priceGroup.Post("/:id/activate", h.server.PostPricePlanActivate)
	priceGroup.Post("/:id/deactivate", h.server.PostPricePlanDeactivate)

	locationGroup := v1.Group("/locations", enc)
	locationGroup.Post("/", h.server.PostLocation)
	locationGroup.Get("/", h.server.GetLocations)
	locationGroup.Get("/:id", h.server.GetLocation)
	locationGroup.Put("/:id", h.server.PutLocation)
	locationGroup.Post("/:id/activate", h.server.PostLocationActivate)
	locationGroup.Post("/:id/deactivate", h.server.PostLocationDeactivate)
}

// newLimiterStorage backs the rate limiter with Redis so the counters
// survive restarts and are shared between instances. Falls back to the
// limiter's in-memory store when the cache is unavailable.
func newLimiterStorage() fiber.Storage {
	client := cache.GetClient()
	if client == nil {
		return nil
	}

	host := "localhost"
	port := 6379
	if h, p, err := net.SplitHostPort(client.Options().Addr); err == nil {
		host = h
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	password := env.GetEnv("CACHE_PASSWORD", "")
	if p := client.Options().Password; p != "" {
		password = p
	}

	// Separate database for limiter counters (cache uses DB 0)
	return redisstorage.New(redisstorage.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1,
		Reset:    false,
	})
}
