package main

import (
	"time"

	"github.com/ciptatunaskarya/ppdb-backend/config"
	"github.com/ciptatunaskarya/ppdb-backend/internal/app/repository"
	"github.com/ciptatunaskarya/ppdb-backend/internal/app/service"
	"github.com/ciptatunaskarya/ppdb-backend/internal/db"
	ws "github.com/ciptatunaskarya/ppdb-backend/internal/websocket"
	"github.com/ciptatunaskarya/ppdb-backend/pkg/logger"
	"github.com/ciptatunaskarya/ppdb-backend/pkg/payment/midtrans"
)

// One-shot housekeeping run: expire overdue payments and purge stale drafts.
// Meant for operators and external cron; the server runs the same jobs on
// its own schedule.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	logger.Initialize(logger.Config{
		Level:  "info",
		Format: "console",
	})

	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	gateway, err := midtrans.NewClient(midtrans.Config{
		ServerKey:    cfg.Midtrans.ServerKey,
		ClientKey:    cfg.Midtrans.ClientKey,
		BaseURL:      cfg.Midtrans.BaseURL,
		IsProduction: cfg.Midtrans.IsProduction,
	})
	if err != nil {
		logger.Fatal("Failed to initialize payment gateway client", err)
	}

	registrationRepo := repository.NewRegistrationRepository(db.GetDB())
	documentRepo := repository.NewDocumentRepository(db.GetDB())
	paymentRepo := repository.NewPaymentRepository(db.GetDB())
	paymentLogRepo := repository.NewPaymentLogRepository(db.GetDB())
	notificationRepo := repository.NewNotificationRepository(db.GetDB())

	notificationService := service.NewNotificationService(notificationRepo, ws.NewHub())
	registrationService := service.NewRegistrationService(
		registrationRepo,
		documentRepo,
		notificationRepo,
		notificationService,
		cfg,
		db.GetDB(),
	)
	paymentService := service.NewPaymentService(
		registrationRepo,
		paymentRepo,
		paymentLogRepo,
		gateway,
		notificationService,
		cfg,
		db.GetDB(),
	)

	expired, err := paymentService.ExpireOverduePayments(time.Now())
	if err != nil {
		logger.Fatal("Payment expiry run failed", err)
	}

	deleted, err := registrationService.CleanupStaleDrafts()
	if err != nil {
		logger.Fatal("Draft cleanup run failed", err)
	}

	logger.Info("Housekeeping run finished", map[string]interface{}{
		"payments_expired": expired,
		"drafts_deleted":   deleted,
	})
}
