package controller

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/ciptatunaskarya/ppdb-backend/internal/app/service"
	apierrors "github.com/ciptatunaskarya/ppdb-backend/internal/errors"
	"github.com/ciptatunaskarya/ppdb-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

type PaymentController struct {
	paymentService service.PaymentService
}

func NewPaymentController(paymentService service.PaymentService) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
	}
}

// CreatePayment returns the registration's payment, creating (or re-billing)
// it when needed. Safe to call repeatedly; the same pending payment comes back.
// POST /api/v1/registrations/:id/payment
func (ctrl *PaymentController) CreatePayment(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	payment, err := ctrl.paymentService.GetOrCreatePayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRegistrationNotFound):
			apierrors.NotFound(c, apierrors.RegistrationNotFound, "Data pendaftaran tidak ditemukan")
		case errors.Is(err, service.ErrRegistrationNotPayable):
			apierrors.Conflict(c, apierrors.PaymentInvalidState, "Pendaftaran belum dapat dibayar")
		default:
			log.Error("Failed to create payment", err, map[string]interface{}{
				"registration_id": c.Param("id"),
			})
			apierrors.InternalError(c, "Gagal membuat tagihan pembayaran")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Tagihan pembayaran siap",
		"data":    payment,
	})
}

// GetPayment returns the registration's current payment
// GET /api/v1/registrations/:id/payment
func (ctrl *PaymentController) GetPayment(c *gin.Context) {
	payment, err := ctrl.paymentService.GetPaymentByRegistration(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrPaymentNotFound) {
			apierrors.NotFound(c, apierrors.PaymentNotFound, "Tagihan pembayaran tidak ditemukan")
			return
		}
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": payment,
	})
}

// HandleNotification receives Midtrans HTTP notifications.
//
// Midtrans retries on any non-2xx response, so only a body that cannot be
// parsed gets a 400. Unknown orders and bad signatures are acknowledged with
// 200 after being recorded; retrying them would never succeed.
// POST /api/v1/payments/webhook/midtrans
func (ctrl *PaymentController) HandleNotification(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		apierrors.BadRequest(c, apierrors.ValidationInvalidInput, "Notifikasi tidak dapat dibaca")
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(rawBody))

	var notification service.WebhookNotification
	if err := c.ShouldBindJSON(&notification); err != nil {
		log.Warn("Malformed gateway notification", map[string]interface{}{
			"error": err.Error(),
			"ip":    c.ClientIP(),
		})
		apierrors.BadRequest(c, apierrors.ValidationInvalidInput, "Notifikasi tidak valid")
		return
	}

	meta := service.WebhookMeta{
		RawBody:   rawBody,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}

	result, err := ctrl.paymentService.HandleNotification(c.Request.Context(), &notification, meta)
	if err != nil {
		// Every parseable notification is acknowledged with 200, internal
		// failures included. The audit trail and the expiry job pick up
		// anything that was not applied; a non-2xx would only make the
		// gateway hammer an endpoint that already has the payload.
		switch {
		case errors.Is(err, service.ErrInvalidSignature):
			log.Warn("Gateway notification rejected: invalid signature", map[string]interface{}{
				"order_id": notification.OrderID,
				"ip":       c.ClientIP(),
			})
		case errors.Is(err, service.ErrPaymentNotFound):
			log.Warn("Gateway notification for unknown order", map[string]interface{}{
				"order_id": notification.OrderID,
			})
		default:
			log.Error("Failed to process gateway notification", err, map[string]interface{}{
				"order_id": notification.OrderID,
			})
		}
	}

	response := gin.H{"status": "ok"}
	if result != nil {
		response["applied"] = result.Applied
	}
	c.JSON(http.StatusOK, response)
}
