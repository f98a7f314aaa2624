package repository

import (
	"github.com/ciptatunaskarya/ppdb-backend/internal/app/model"
	"github.com/ciptatunaskarya/ppdb-backend/pkg/logger"
	"gorm.io/gorm"
)

// PaymentLogRepository is append-only. Logs are never updated or deleted.
type PaymentLogRepository interface {
	Create(log *model.PaymentLog) error
	FindByPaymentID(paymentID string) ([]model.PaymentLog, error)
}

type paymentLogRepository struct {
	db *gorm.DB
}

func NewPaymentLogRepository(db *gorm.DB) PaymentLogRepository {
	return &paymentLogRepository{db: db}
}

func (r *paymentLogRepository) Create(log *model.PaymentLog) error {
	if err := r.db.Create(log).Error; err != nil {
		logger.Error("Failed to create payment log in database", err, map[string]interface{}{
			"payment_id": log.PaymentID,
			"event_type": log.EventType,
		})
		return err
	}
	return nil
}

func (r *paymentLogRepository) FindByPaymentID(paymentID string) ([]model.PaymentLog, error) {
	var logs []model.PaymentLog
	if err := r.db.Where("payment_id = ?", paymentID).
		Order("created_at ASC").
		Find(&logs).Error; err != nil {
		logger.Error("Failed to find payment logs in database", err, map[string]interface{}{
			"payment_id": paymentID,
		})
		return nil, err
	}
	return logs, nil
}
