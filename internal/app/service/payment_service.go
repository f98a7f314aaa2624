package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ciptatunaskarya/ppdb-backend/config"
	"github.com/ciptatunaskarya/ppdb-backend/internal/app/model"
	"github.com/ciptatunaskarya/ppdb-backend/internal/app/repository"
	"github.com/ciptatunaskarya/ppdb-backend/pkg/logger"
	"github.com/ciptatunaskarya/ppdb-backend/pkg/payment/midtrans"
	"github.com/ciptatunaskarya/ppdb-backend/pkg/util"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrInvalidSignature       = errors.New("invalid webhook signature")
	ErrRegistrationNotPayable = errors.New("registration is not awaiting payment")
)

// PaymentGateway abstracts the Midtrans Core API client so tests can stub
// gateway behavior, including outages.
type PaymentGateway interface {
	Charge(ctx context.Context, req midtrans.ChargeRequest) (*midtrans.ChargeResponse, error)
	VerifySignature(orderID, statusCode, grossAmount, signatureKey string) bool
}

// WebhookNotification is the parsed body of a Midtrans HTTP notification.
type WebhookNotification struct {
	OrderID           string              `json:"order_id" binding:"required"`
	StatusCode        string              `json:"status_code" binding:"required"`
	GrossAmount       string              `json:"gross_amount" binding:"required"`
	SignatureKey      string              `json:"signature_key" binding:"required"`
	TransactionStatus string              `json:"transaction_status" binding:"required"`
	FraudStatus       string              `json:"fraud_status"`
	TransactionID     string              `json:"transaction_id"`
	PaymentType       string              `json:"payment_type"`
	VANumbers         []midtrans.VANumber `json:"va_numbers"`
	SettlementTime    string              `json:"settlement_time"`
}

// WebhookMeta carries request forensics persisted with every webhook log row.
type WebhookMeta struct {
	RawBody   []byte
	IPAddress string
	UserAgent string
}

// WebhookResult reports what reconciliation decided. Applied is false for
// replays, unknown orders and bad signatures; Reason says which.
type WebhookResult struct {
	PaymentID string
	OldStatus model.PaymentStatus
	NewStatus model.PaymentStatus
	Applied   bool
	Reason    string
}

const (
	WebhookReasonApplied          = "applied"
	WebhookReasonDuplicate        = "duplicate"
	WebhookReasonNoChange         = "no_change"
	WebhookReasonUnknownOrder     = "unknown_order"
	WebhookReasonInvalidSignature = "invalid_signature"
)

type PaymentService interface {
	GetOrCreatePayment(ctx context.Context, registrationID string) (*model.Payment, error)
	GetPaymentByRegistration(registrationID string) (*model.Payment, error)
	GetPaymentLogs(paymentID string) ([]model.PaymentLog, error)
	HandleNotification(ctx context.Context, notif *WebhookNotification, meta WebhookMeta) (*WebhookResult, error)
	ExpireOverduePayments(now time.Time) (int, error)
}

type paymentService struct {
	regRepo  repository.RegistrationRepository
	repo     repository.PaymentRepository
	logRepo  repository.PaymentLogRepository
	gateway  PaymentGateway
	notifier NotificationService
	cfg      *config.Config
	db       *gorm.DB
}

func NewPaymentService(
	regRepo repository.RegistrationRepository,
	repo repository.PaymentRepository,
	logRepo repository.PaymentLogRepository,
	gateway PaymentGateway,
	notifier NotificationService,
	cfg *config.Config,
	db *gorm.DB,
) PaymentService {
	return &paymentService{
		regRepo:  regRepo,
		repo:     repo,
		logRepo:  logRepo,
		gateway:  gateway,
		notifier: notifier,
		cfg:      cfg,
		db:       db,
	}
}

// GetOrCreatePayment returns the registration's payment, creating it on first
// call. Repeated calls return the same row with the same virtual account, so
// refreshing the payment page never produces a second bill.
func (s *paymentService) GetOrCreatePayment(ctx context.Context, registrationID string) (*model.Payment, error) {
	// Fast path: payment already exists
	if existing, err := s.repo.FindByRegistrationID(registrationID); err == nil {
		// After a resubmission the old bill is dead; issue a fresh one on
		// the same payment row so the audit trail stays attached
		if existing.Status == model.PaymentStatusExpired || existing.Status == model.PaymentStatusFailed {
			return s.refreshPayment(ctx, existing)
		}
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up payment: %w", err)
	}

	reg, err := s.regRepo.FindByID(registrationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to load registration: %w", err)
	}

	if reg.Status != model.StatusSubmitted {
		return nil, ErrRegistrationNotPayable
	}

	payment := &model.Payment{
		RegistrationID: reg.ID,
		GatewayOrderID: fmt.Sprintf("%s-%d", reg.RegistrationNumber, time.Now().Unix()),
		Amount:         s.cfg.Registration.Fee,
		AdminFee:       s.cfg.Registration.AdminFee,
		Status:         model.PaymentStatusPending,
	}

	if s.cfg.Registration.PaymentExpiryHours > 0 {
		deadline := time.Now().Add(time.Duration(s.cfg.Registration.PaymentExpiryHours) * time.Hour)
		payment.ExpiresAt = &deadline
	}

	// The row is persisted before the gateway is called. A concurrent
	// request then loses on the unique index instead of opening its own
	// Midtrans transaction, and an insert failure never strands one.
	if err := s.repo.Create(payment); err != nil {
		// The unique index on registration_id guarantees a single winner;
		// losers return the winner's row.
		if existing, lookupErr := s.repo.FindByRegistrationID(registrationID); lookupErr == nil {
			logger.Info("Concurrent payment creation resolved to existing row", map[string]interface{}{
				"registration_id": registrationID,
				"payment_id":      existing.ID,
			})
			return existing, nil
		}
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	s.appendLog(&model.PaymentLog{
		PaymentID: payment.ID,
		EventType: model.EventCreated,
		NewStatus: string(payment.Status),
	})

	// Gateway call stays outside any DB transaction; it can take seconds
	if gwErr := s.chargeGateway(ctx, reg, payment); gwErr != nil {
		s.appendLog(&model.PaymentLog{
			PaymentID:    payment.ID,
			EventType:    model.EventError,
			ErrorMessage: gwErr.Error(),
		})
	}

	if err := s.repo.Update(payment); err != nil {
		return nil, fmt.Errorf("failed to store gateway details: %w", err)
	}

	logger.Info("Payment created", map[string]interface{}{
		"payment_id":       payment.ID,
		"registration_id":  reg.ID,
		"gateway_order_id": payment.GatewayOrderID,
		"total_amount":     payment.TotalAmount,
		"va_number":        payment.VANumber,
	})

	return payment, nil
}

// refreshPayment re-bills an expired or failed payment under a new gateway
// order, keeping the row and its log history. Only legal once the
// registration has been resubmitted.
func (s *paymentService) refreshPayment(ctx context.Context, payment *model.Payment) (*model.Payment, error) {
	reg, err := s.regRepo.FindByID(payment.RegistrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load registration: %w", err)
	}
	if reg.Status != model.StatusSubmitted {
		return nil, ErrRegistrationNotPayable
	}

	oldStatus := payment.Status

	payment.GatewayOrderID = fmt.Sprintf("%s-%d", reg.RegistrationNumber, time.Now().Unix())
	payment.Status = model.PaymentStatusPending
	payment.PaidAt = nil
	payment.ExpiresAt = nil
	if s.cfg.Registration.PaymentExpiryHours > 0 {
		deadline := time.Now().Add(time.Duration(s.cfg.Registration.PaymentExpiryHours) * time.Hour)
		payment.ExpiresAt = &deadline
	}

	// Same ordering as first-time creation: the new bill is on record
	// before the gateway is asked to open it
	if err := s.repo.Update(payment); err != nil {
		return nil, fmt.Errorf("failed to refresh payment: %w", err)
	}

	s.appendLog(&model.PaymentLog{
		PaymentID: payment.ID,
		EventType: model.EventStatusChanged,
		OldStatus: string(oldStatus),
		NewStatus: string(payment.Status),
	})

	if gwErr := s.chargeGateway(ctx, reg, payment); gwErr != nil {
		s.appendLog(&model.PaymentLog{
			PaymentID:    payment.ID,
			EventType:    model.EventError,
			ErrorMessage: gwErr.Error(),
		})
	}

	if err := s.repo.Update(payment); err != nil {
		return nil, fmt.Errorf("failed to store gateway details: %w", err)
	}

	logger.Info("Payment refreshed after resubmission", map[string]interface{}{
		"payment_id":       payment.ID,
		"gateway_order_id": payment.GatewayOrderID,
	})

	return payment, nil
}

// chargeGateway asks Midtrans for a virtual account. A gateway failure does
// not block the applicant: the payment falls back to a marked test-mode VA so
// the flow stays usable and staff can reconcile manually. The gateway error
// is returned so callers can audit the fallback.
func (s *paymentService) chargeGateway(ctx context.Context, reg *model.Registration, payment *model.Payment) error {
	req := midtrans.ChargeRequest{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:     payment.GatewayOrderID,
			GrossAmount: payment.Amount + payment.AdminFee,
		},
		CustomerDetails: midtrans.CustomerDetails{
			FirstName: reg.FullName,
			Email:     reg.ContactEmail,
			Phone:     reg.ContactPhone,
		},
		ItemDetails: []midtrans.ItemDetail{
			{
				ID:       "registration-fee",
				Price:    payment.Amount + payment.AdminFee,
				Quantity: 1,
				Name:     fmt.Sprintf("Biaya Pendaftaran %s", reg.Program),
			},
		},
	}
	if s.cfg.Registration.PaymentExpiryHours > 0 {
		req.CustomExpiry = &midtrans.CustomExpiry{
			ExpiryDuration: s.cfg.Registration.PaymentExpiryHours,
			Unit:           "hour",
		}
	}

	resp, err := s.gateway.Charge(ctx, req)
	if err != nil {
		logger.Warn("Gateway charge failed, issuing fallback virtual account", map[string]interface{}{
			"gateway_order_id": payment.GatewayOrderID,
			"error":            err.Error(),
		})

		payment.VANumber = util.GenerateFallbackVANumber()
		payment.PaymentMethod = model.MethodVABCA
		fallback, _ := json.Marshal(map[string]string{
			"mode":  "TESTING_MODE",
			"error": err.Error(),
		})
		payment.GatewayResponse = string(fallback)
		return err
	}

	payment.GatewayTransactionID = resp.TransactionID
	if len(resp.VANumbers) > 0 {
		payment.VANumber = resp.VANumbers[0].VANumber
		payment.PaymentMethod = mapPaymentMethod(resp.PaymentType, resp.VANumbers[0].Bank)
	} else {
		payment.PaymentMethod = mapPaymentMethod(resp.PaymentType, "")
	}
	if raw, err := json.Marshal(resp); err == nil {
		payment.GatewayResponse = string(raw)
	}
	return nil
}

func (s *paymentService) GetPaymentByRegistration(registrationID string) (*model.Payment, error) {
	payment, err := s.repo.FindByRegistrationID(registrationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}

func (s *paymentService) GetPaymentLogs(paymentID string) ([]model.PaymentLog, error) {
	return s.logRepo.FindByPaymentID(paymentID)
}

// HandleNotification reconciles one gateway webhook. Replays, unknown orders
// and forged signatures are absorbed without state changes; a valid
// status-advancing notification updates the payment and, on settlement,
// moves the registration to PAID in the same transaction.
func (s *paymentService) HandleNotification(ctx context.Context, notif *WebhookNotification, meta WebhookMeta) (*WebhookResult, error) {
	log := logger.Get()

	payment, err := s.repo.FindByGatewayOrderID(notif.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("Webhook for unknown order", map[string]interface{}{
				"order_id": notif.OrderID,
			})
			return &WebhookResult{Reason: WebhookReasonUnknownOrder}, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to look up payment: %w", err)
	}

	signatureValid := s.gateway.VerifySignature(notif.OrderID, notif.StatusCode, notif.GrossAmount, notif.SignatureKey)

	s.appendLog(&model.PaymentLog{
		PaymentID:      payment.ID,
		EventType:      model.EventWebhookReceived,
		OldStatus:      string(payment.Status),
		SignatureValid: &signatureValid,
		RequestData:    string(meta.RawBody),
		IPAddress:      meta.IPAddress,
		UserAgent:      meta.UserAgent,
	})

	if !signatureValid {
		log.Warn("Webhook signature verification failed", map[string]interface{}{
			"order_id":   notif.OrderID,
			"payment_id": payment.ID,
			"ip_address": meta.IPAddress,
		})
		return &WebhookResult{
			PaymentID: payment.ID,
			OldStatus: payment.Status,
			Reason:    WebhookReasonInvalidSignature,
		}, ErrInvalidSignature
	}

	newStatus := mapTransactionStatus(notif.TransactionStatus, notif.FraudStatus)

	var result *WebhookResult
	var paidReg *model.Registration

	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		// Re-read under lock; the row may have changed since the lookup
		var locked model.Payment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", payment.ID).
			First(&locked).Error; err != nil {
			return fmt.Errorf("failed to lock payment: %w", err)
		}

		if locked.Status.IsTerminal() {
			result = &WebhookResult{
				PaymentID: locked.ID,
				OldStatus: locked.Status,
				NewStatus: locked.Status,
				Reason:    WebhookReasonDuplicate,
			}
			return nil
		}

		oldStatus := locked.Status

		locked.Status = newStatus
		if notif.TransactionID != "" {
			locked.GatewayTransactionID = notif.TransactionID
		}
		if notif.PaymentType != "" {
			bank := ""
			if len(notif.VANumbers) > 0 {
				if locked.VANumber == "" {
					locked.VANumber = notif.VANumbers[0].VANumber
				}
				bank = notif.VANumbers[0].Bank
			}
			if method := mapPaymentMethod(notif.PaymentType, bank); method != "" {
				locked.PaymentMethod = method
			}
		}
		locked.GatewayResponse = string(meta.RawBody)

		if newStatus == model.PaymentStatusPaid && locked.PaidAt == nil {
			paidAt := parseGatewayTime(notif.SettlementTime)
			locked.PaidAt = &paidAt
		}

		if err := tx.Save(&locked).Error; err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}

		// Settlement cascades to the registration atomically: either both
		// aggregates advance or neither does
		if newStatus == model.PaymentStatusPaid {
			var reg model.Registration
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ?", locked.RegistrationID).
				First(&reg).Error; err != nil {
				return fmt.Errorf("failed to lock registration: %w", err)
			}

			if reg.Status == model.StatusSubmitted || reg.Status == model.StatusPaymentExpired {
				reg.Status = model.StatusPaid
				if err := tx.Save(&reg).Error; err != nil {
					return fmt.Errorf("failed to update registration: %w", err)
				}
			}
			paidReg = &reg
		}

		if oldStatus != newStatus {
			statusLog := &model.PaymentLog{
				PaymentID: locked.ID,
				EventType: model.EventStatusChanged,
				OldStatus: string(oldStatus),
				NewStatus: string(newStatus),
				IPAddress: meta.IPAddress,
			}
			if err := tx.Create(statusLog).Error; err != nil {
				return fmt.Errorf("failed to append status log: %w", err)
			}
		}

		reason := WebhookReasonApplied
		if oldStatus == newStatus {
			reason = WebhookReasonNoChange
		}
		result = &WebhookResult{
			PaymentID: locked.ID,
			OldStatus: oldStatus,
			NewStatus: newStatus,
			Applied:   oldStatus != newStatus,
			Reason:    reason,
		}
		return nil
	})
	if txErr != nil {
		s.appendLog(&model.PaymentLog{
			PaymentID:    payment.ID,
			EventType:    model.EventError,
			ErrorMessage: txErr.Error(),
			IPAddress:    meta.IPAddress,
		})
		return nil, txErr
	}

	log.Info("Webhook processed", map[string]interface{}{
		"order_id":   notif.OrderID,
		"payment_id": result.PaymentID,
		"old_status": result.OldStatus,
		"new_status": result.NewStatus,
		"reason":     result.Reason,
	})

	if result.Applied && result.NewStatus == model.PaymentStatusPaid && paidReg != nil && s.notifier != nil {
		s.notifier.NotifyPaymentReceived(paidReg, payment)
	}

	return result, nil
}

// ExpireOverduePayments moves pending payments past their deadline to EXPIRED
// and their registrations back to PAYMENT_EXPIRED. Run from the scheduler.
func (s *paymentService) ExpireOverduePayments(now time.Time) (int, error) {
	overdue, err := s.repo.FindExpiredPending(now)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, candidate := range overdue {
		err := s.db.Transaction(func(tx *gorm.DB) error {
			var locked model.Payment
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ?", candidate.ID).
				First(&locked).Error; err != nil {
				return err
			}

			// A webhook may have settled the payment between the scan and
			// this lock
			if locked.Status != model.PaymentStatusPending ||
				locked.ExpiresAt == nil || locked.ExpiresAt.After(now) {
				return nil
			}

			locked.Status = model.PaymentStatusExpired
			if err := tx.Save(&locked).Error; err != nil {
				return err
			}

			var reg model.Registration
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ?", locked.RegistrationID).
				First(&reg).Error; err != nil {
				return err
			}
			if reg.Status == model.StatusSubmitted {
				reg.Status = model.StatusPaymentExpired
				if err := tx.Save(&reg).Error; err != nil {
					return err
				}
			}

			return tx.Create(&model.PaymentLog{
				PaymentID: locked.ID,
				EventType: model.EventStatusChanged,
				OldStatus: string(model.PaymentStatusPending),
				NewStatus: string(model.PaymentStatusExpired),
			}).Error
		})
		if err != nil {
			logger.Error("Failed to expire payment", err, map[string]interface{}{
				"payment_id": candidate.ID,
			})
			continue
		}
		expired++
	}

	if expired > 0 {
		logger.Info("Overdue payments expired", map[string]interface{}{
			"count": expired,
		})
	}
	return expired, nil
}

// appendLog writes an audit row outside any transaction. Audit failures are
// logged but never fail the payment operation itself.
func (s *paymentService) appendLog(entry *model.PaymentLog) {
	if err := s.logRepo.Create(entry); err != nil {
		logger.Error("Failed to append payment log", err, map[string]interface{}{
			"payment_id": entry.PaymentID,
			"event_type": entry.EventType,
		})
	}
}

// mapTransactionStatus translates gateway transaction and fraud status into
// the local payment status. Unrecognized statuses stay PENDING rather than
// guessing.
func mapTransactionStatus(transactionStatus, fraudStatus string) model.PaymentStatus {
	switch transactionStatus {
	case "capture":
		if fraudStatus == "accept" {
			return model.PaymentStatusPaid
		}
		return model.PaymentStatusPending
	case "settlement":
		return model.PaymentStatusPaid
	case "cancel", "deny":
		return model.PaymentStatusFailed
	case "expire":
		return model.PaymentStatusExpired
	case "pending":
		return model.PaymentStatusPending
	case "refund", "partial_refund":
		return model.PaymentStatusRefunded
	default:
		return model.PaymentStatusPending
	}
}

// mapPaymentMethod translates the gateway payment type and VA bank into the
// local method enum. Returns "" when nothing matches.
func mapPaymentMethod(paymentType, bank string) model.PaymentMethod {
	switch paymentType {
	case "bank_transfer":
		switch strings.ToLower(bank) {
		case "bca":
			return model.MethodVABCA
		case "bni":
			return model.MethodVABNI
		case "bri":
			return model.MethodVABRI
		case "permata":
			return model.MethodVAPermata
		}
		return model.MethodVABCA
	case "echannel":
		return model.MethodVAMandiri
	}
	return ""
}

// parseGatewayTime parses Midtrans timestamps ("2006-01-02 15:04:05" in
// Jakarta time). Falls back to now when the field is missing or malformed.
func parseGatewayTime(value string) time.Time {
	if value == "" {
		return time.Now()
	}
	loc, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		loc = time.FixedZone("WIB", 7*3600)
	}
	parsed, err := time.ParseInLocation("2006-01-02 15:04:05", value, loc)
	if err != nil {
		return time.Now()
	}
	return parsed
}
