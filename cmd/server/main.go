package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ciptatunaskarya/ppdb-backend/config"
	"github.com/ciptatunaskarya/ppdb-backend/internal/app/controller"
	"github.com/ciptatunaskarya/ppdb-backend/internal/app/repository"
	"github.com/ciptatunaskarya/ppdb-backend/internal/app/service"
	"github.com/ciptatunaskarya/ppdb-backend/internal/db"
	"github.com/ciptatunaskarya/ppdb-backend/internal/middleware"
	"github.com/ciptatunaskarya/ppdb-backend/internal/router"
	"github.com/ciptatunaskarya/ppdb-backend/internal/scheduler"
	"github.com/ciptatunaskarya/ppdb-backend/internal/storage"
	ws "github.com/ciptatunaskarya/ppdb-backend/internal/websocket"
	"github.com/ciptatunaskarya/ppdb-backend/pkg/logger"
	"github.com/ciptatunaskarya/ppdb-backend/pkg/payment/midtrans"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	// Initialize logger
	logLevel := "info"
	if cfg.Server.Environment == "development" {
		logLevel = "debug"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      "console", // Use "json" for production
		EnableColor: true,
	})

	logger.Info("Starting PPDB Backend Server", map[string]interface{}{
		"environment":   cfg.Server.Environment,
		"port":          cfg.Server.Port,
		"academic_year": cfg.Registration.AcademicYear,
		"log_level":     logLevel,
	})

	// Initialize database
	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	// Run migrations
	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	// Seed the initial staff account when configured
	if adminEmail := os.Getenv("ADMIN_EMAIL"); adminEmail != "" {
		if err := db.SeedAdminUser(adminEmail, os.Getenv("ADMIN_PASSWORD"), os.Getenv("ADMIN_NAME")); err != nil {
			logger.Warn("Failed to seed admin user", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	// Redis backs the public endpoint rate limiter. The limiter fails open,
	// so a missing Redis degrades rather than breaks the public flow.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Payment gateway client
	gateway, err := midtrans.NewClient(midtrans.Config{
		ServerKey:    cfg.Midtrans.ServerKey,
		ClientKey:    cfg.Midtrans.ClientKey,
		BaseURL:      cfg.Midtrans.BaseURL,
		IsProduction: cfg.Midtrans.IsProduction,
	})
	if err != nil {
		logger.Fatal("Failed to initialize payment gateway client", err)
	}

	// Document object storage
	store := storage.NewS3Storage(
		cfg.S3.Region,
		cfg.S3.Bucket,
		cfg.S3.AccessKeyID,
		cfg.S3.SecretAccessKey,
		cfg.S3.BaseURL,
	)

	// Staff event feed
	hub := ws.NewHub()
	go hub.Run()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.GetDB())
	registrationRepo := repository.NewRegistrationRepository(db.GetDB())
	documentRepo := repository.NewDocumentRepository(db.GetDB())
	paymentRepo := repository.NewPaymentRepository(db.GetDB())
	paymentLogRepo := repository.NewPaymentLogRepository(db.GetDB())
	notificationRepo := repository.NewNotificationRepository(db.GetDB())

	// Initialize services
	authService := service.NewAuthService(userRepo, cfg)
	notificationService := service.NewNotificationService(notificationRepo, hub)
	registrationService := service.NewRegistrationService(
		registrationRepo,
		documentRepo,
		notificationRepo,
		notificationService,
		cfg,
		db.GetDB(),
	)
	documentService := service.NewDocumentService(documentRepo, registrationRepo, store)
	paymentService := service.NewPaymentService(
		registrationRepo,
		paymentRepo,
		paymentLogRepo,
		gateway,
		notificationService,
		cfg,
		db.GetDB(),
	)
	exportService := service.NewExportService(registrationRepo)

	// Initialize controllers
	authController := controller.NewAuthController(authService)
	registrationController := controller.NewRegistrationController(registrationService, documentService)
	paymentController := controller.NewPaymentController(paymentService)
	adminController := controller.NewAdminController(
		registrationService,
		paymentService,
		documentService,
		notificationService,
		exportService,
		hub,
	)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	rateLimiter := middleware.NewRateLimiter(redisClient, "public", 30, time.Minute)

	// Background jobs
	admissionScheduler := scheduler.NewAdmissionScheduler(paymentService, registrationService)
	if err := admissionScheduler.Start(); err != nil {
		logger.Fatal("Failed to start admission scheduler", err)
	}
	defer admissionScheduler.Stop()

	// Setup router
	r := router.NewRouter(
		authController,
		registrationController,
		paymentController,
		adminController,
		authMiddleware,
		rateLimiter,
		cfg,
	)
	engine := r.Setup()

	// Start server in a goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server started successfully", map[string]interface{}{
			"address": addr,
			"pid":     os.Getpid(),
		})
		if err := engine.Run(addr); err != nil {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")
	logger.Info("Server stopped successfully")
}
