package scheduler

import (
	"time"

	"github.com/ciptatunaskarya/ppdb-backend/internal/app/service"
	"github.com/ciptatunaskarya/ppdb-backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

// AdmissionScheduler runs the recurring admission housekeeping jobs:
// expiring overdue payments and purging abandoned drafts.
type AdmissionScheduler struct {
	cron                *cron.Cron
	paymentService      service.PaymentService
	registrationService service.RegistrationService
}

func NewAdmissionScheduler(
	paymentService service.PaymentService,
	registrationService service.RegistrationService,
) *AdmissionScheduler {
	return &AdmissionScheduler{
		cron:                cron.New(),
		paymentService:      paymentService,
		registrationService: registrationService,
	}
}

func (s *AdmissionScheduler) Start() error {
	// Every 10 minutes: move overdue pending payments to EXPIRED so the
	// applicant sees the lapse promptly and can resubmit.
	if _, err := s.cron.AddFunc("*/10 * * * *", s.expireOverduePayments); err != nil {
		logger.Error("Failed to add payment expiry cron job", err)
		return err
	}

	// Daily at 02:00: delete drafts untouched past the retention window.
	if _, err := s.cron.AddFunc("0 2 * * *", s.cleanupStaleDrafts); err != nil {
		logger.Error("Failed to add draft cleanup cron job", err)
		return err
	}

	s.cron.Start()
	logger.Info("Admission scheduler started (payment expiry every 10m, draft cleanup daily at 02:00)", nil)

	return nil
}

func (s *AdmissionScheduler) Stop() {
	logger.Info("Stopping admission scheduler...", nil)
	s.cron.Stop()
	logger.Info("Admission scheduler stopped", nil)
}

func (s *AdmissionScheduler) expireOverduePayments() {
	expired, err := s.paymentService.ExpireOverduePayments(time.Now())
	if err != nil {
		logger.Error("Scheduled payment expiry failed", err)
		return
	}
	if expired > 0 {
		logger.Info("Expired overdue payments", map[string]interface{}{
			"count": expired,
		})
	}
}

func (s *AdmissionScheduler) cleanupStaleDrafts() {
	deleted, err := s.registrationService.CleanupStaleDrafts()
	if err != nil {
		logger.Error("Scheduled draft cleanup failed", err)
		return
	}
	logger.Info("Stale draft cleanup finished", map[string]interface{}{
		"deleted": deleted,
	})
}
