package main

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/snapboxhq/snapbox/app/repository"
	apiv1 "github.com/snapboxhq/snapbox/internal/api/v1"
	"github.com/snapboxhq/snapbox/internal/pkg/cache"
	"github.com/snapboxhq/snapbox/internal/pkg/database"
	"github.com/snapboxhq/snapbox/internal/pkg/env"
	"github.com/snapboxhq/snapbox/internal/pkg/jobqueue"
	"github.com/snapboxhq/snapbox/internal/pkg/payments"
	"github.com/snapboxhq/snapbox/internal/pkg/router"
	"github.com/snapboxhq/snapbox/internal/pkg/s3storage"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()
	repository.InitializeFactory(db)
	repos := repository.GetGlobalFactory().GetRepositories()

	expiryWindow := payments.DefaultExpiryWindow
	if v, err := strconv.Atoi(env.GetEnv("PAYMENT_EXPIRY_MINUTES", "")); err == nil && v > 0 {
		expiryWindow = time.Duration(v) * time.Minute
	}

	paymentService := payments.NewService(db, payments.NewXenditClientFromEnv(), payments.Config{
		CallbackToken: env.GetEnv("XENDIT_CALLBACK_TOKEN", ""),
		WebhookURL:    env.GetEnv("XENDIT_WEBHOOK_URL", ""),
		ExpiryWindow:  expiryWindow,
	})

	var storage *s3storage.Client
	if cfg, err := s3storage.LoadConfig(); err != nil {
		fiberlog.Errorf("[App] Invalid S3 configuration: %v", err)
	} else if cfg.IsEnabled() {
		storage, err = s3storage.NewClient(cfg)
		if err != nil {
			fiberlog.Errorf("[App] Photo storage unavailable: %v", err)
		}
	} else {
		fiberlog.Info("[App] Photo storage disabled")
	}

	queueManager := jobqueue.GetManager()
	queueManager.Start()

	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024, // room for a full photo session upload
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	apiServer := apiv1.NewAPIServer(paymentService, repos, storage, queueManager.GetQueue())
	router.InstallRouter(app, router.NewApiRouter(apiServer))

	return app
}
