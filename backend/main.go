package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"academy/backend/cache"
	"academy/backend/config"
	"academy/backend/controllers"
	"academy/backend/enrollment"
	"academy/backend/events"
	"academy/backend/mail"
	"academy/backend/middleware"
	"academy/backend/notify"
	"academy/backend/payments"
	"academy/backend/purchase"
	"academy/backend/repository"
	"academy/backend/routes"
	"academy/backend/storage"
	"academy/backend/utils"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// Initialize logger
	format := cfg.LogFormat
	if format == "" && cfg.IsProduction() {
		format = "json"
	}
	logger := utils.InitLogger(utils.LoggerConfig{
		Format:       format,
		EnableColors: !cfg.IsProduction(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := utils.InitDB(cfg, logger)
	if err != nil {
		log.Fatalf("Error initializing database: %v", err)
	}
	if created, err := utils.SeedAdmin(ctx, db, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		logger.Error("admin seed failed", "error", err)
	} else if created {
		logger.Info("admin user created", "email", cfg.AdminEmail)
	}

	lockout, deduper := newCaches(ctx, cfg, logger)
	publisher, closePublisher := newPublisher(cfg, logger)
	defer closePublisher()

	templates, err := mail.LoadTemplates(cfg.AppName, cfg.AppURL)
	if err != nil {
		log.Fatalf("Error loading mail templates: %v", err)
	}

	mediaStore, err := storage.NewLocal(cfg.MediaDir, strings.TrimRight(cfg.ServerURL, "/")+"/media")
	if err != nil {
		log.Fatalf("Error preparing media storage: %v", err)
	}

	store := repository.New(db)
	jobs := repository.NewJobQueue(db)
	ledger := enrollment.NewLedger(store, publisher, logger)
	stripe := payments.NewStripe(cfg.StripeAPIKey, cfg.StripeWebhookSecret)
	purchases := purchase.NewService(store, ledger, stripe, publisher, logger, purchase.Config{
		Currency: cfg.DefaultCurrency,
		AppURL:   cfg.AppURL,
	})
	dispatcher := notify.NewDispatcher(jobs, cfg.JobMaxRetries, logger)

	// Background email delivery
	handlers := notify.EmailHandlers(newSender(cfg, logger), templates, cfg.AppName, cfg.AppURL, cfg.ServerURL)
	worker := notify.NewWorker(logger, jobs, handlers, cfg.JobPollInterval, cfg.JobBatchSize)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("job worker stopped", "error", err)
		}
	}()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:   cfg.AppName,
		BodyLimit: controllers.MaxUploadSize + 1<<20,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.CORSOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(middleware.LoggingMiddleware(logger))

	// Setup routes
	routes.SetupRoutes(app, db, cfg, routes.Services{
		Store:      store,
		Jobs:       jobs,
		Ledger:     ledger,
		Purchases:  purchases,
		Dispatcher: dispatcher,
		Webhooks:   stripe,
		Deduper:    deduper,
		Lockout:    lockout,
		Events:     publisher,
		Storage:    mediaStore,
		Logger:     logger,
	})

	// Start server
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server started", "port", cfg.ServerPort)
		if err := app.Listen(":" + cfg.ServerPort); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server failure", "error", err)
		stop()
	}

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	<-workerDone
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// newCaches uses Redis when REDIS_URL is set and in-process stores
// otherwise.
func newCaches(ctx context.Context, cfg *config.Config, logger *slog.Logger) (cache.LockoutStore, cache.Deduper) {
	if cfg.RedisURL == "" {
		logger.Warn("REDIS_URL not set, using in-memory lockout and webhook dedup")
		return cache.NewMemoryLockoutStore(), cache.NewMemoryDeduper()
	}
	client, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Error connecting to redis: %v", err)
	}
	return cache.NewRedisLockoutStore(client), cache.NewRedisDeduper(client, 0)
}

func newPublisher(cfg *config.Config, logger *slog.Logger) (events.Publisher, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NewLoggingPublisher(logger), func() {}
	}
	kp, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopicPrefix)
	if err != nil {
		log.Fatalf("Error creating kafka publisher: %v", err)
	}
	return kp, func() {
		if err := kp.Close(); err != nil {
			logger.Error("close kafka publisher", "error", err)
		}
	}
}

func newSender(cfg *config.Config, logger *slog.Logger) mail.Sender {
	if cfg.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set, emails are logged instead of sent")
		return mail.NewLogSender(logger)
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.MailFrom,
		FromName: cfg.MailFromName,
	})
}
