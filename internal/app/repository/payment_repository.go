package repository

import (
	"time"

	"github.com/ciptatunaskarya/ppdb-backend/internal/app/model"
	"github.com/ciptatunaskarya/ppdb-backend/pkg/logger"
	"gorm.io/gorm"
)

type PaymentRepository interface {
	Create(payment *model.Payment) error
	FindByID(id string) (*model.Payment, error)
	FindByRegistrationID(registrationID string) (*model.Payment, error)
	FindByGatewayOrderID(orderID string) (*model.Payment, error)
	Update(payment *model.Payment) error
	FindExpiredPending(now time.Time) ([]model.Payment, error)
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(payment *model.Payment) error {
	logger.Debug("Creating payment in database", map[string]interface{}{
		"registration_id":  payment.RegistrationID,
		"gateway_order_id": payment.GatewayOrderID,
		"total_amount":     payment.TotalAmount,
	})

	if err := r.db.Create(payment).Error; err != nil {
		logger.Error("Failed to create payment in database", err, map[string]interface{}{
			"registration_id":  payment.RegistrationID,
			"gateway_order_id": payment.GatewayOrderID,
		})
		return err
	}

	return nil
}

func (r *paymentRepository) FindByID(id string) (*model.Payment, error) {
	var payment model.Payment
	if err := r.db.Where("id = ?", id).First(&payment).Error; err != nil {
		logger.Error("Failed to find payment by ID in database", err, map[string]interface{}{
			"payment_id": id,
		})
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) FindByRegistrationID(registrationID string) (*model.Payment, error) {
	var payment model.Payment
	if err := r.db.Where("registration_id = ?", registrationID).First(&payment).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			logger.Error("Failed to find payment by registration ID in database", err, map[string]interface{}{
				"registration_id": registrationID,
			})
		}
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) FindByGatewayOrderID(orderID string) (*model.Payment, error) {
	var payment model.Payment
	if err := r.db.Where("gateway_order_id = ?", orderID).First(&payment).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			logger.Error("Failed to find payment by gateway order ID in database", err, map[string]interface{}{
				"gateway_order_id": orderID,
			})
		}
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) Update(payment *model.Payment) error {
	logger.Debug("Updating payment in database", map[string]interface{}{
		"payment_id": payment.ID,
		"status":     payment.Status,
	})

	if err := r.db.Save(payment).Error; err != nil {
		logger.Error("Failed to update payment in database", err, map[string]interface{}{
			"payment_id": payment.ID,
		})
		return err
	}

	return nil
}

// FindExpiredPending returns pending payments whose deadline has passed.
// Payments without a deadline never expire.
func (r *paymentRepository) FindExpiredPending(now time.Time) ([]model.Payment, error) {
	var payments []model.Payment
	if err := r.db.Where(
		"status = ? AND expires_at IS NOT NULL AND expires_at < ?",
		model.PaymentStatusPending, now,
	).Find(&payments).Error; err != nil {
		logger.Error("Failed to find expired pending payments in database", err, nil)
		return nil, err
	}
	return payments, nil
}
