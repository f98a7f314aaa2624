package controller

import (
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ciptatunaskarya/ppdb-backend/config"
	"github.com/ciptatunaskarya/ppdb-backend/internal/app/model"
	"github.com/ciptatunaskarya/ppdb-backend/internal/app/repository"
	"github.com/ciptatunaskarya/ppdb-backend/internal/app/service"
	"github.com/ciptatunaskarya/ppdb-backend/internal/db"
	"github.com/ciptatunaskarya/ppdb-backend/internal/middleware"
	"github.com/ciptatunaskarya/ppdb-backend/pkg/payment/midtrans"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const controllerTestServerKey = "SB-Mid-server-controllertest"

func controllerSignature(orderID, statusCode, grossAmount string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + controllerTestServerKey))
	return hex.EncodeToString(sum[:])
}

// fakeGateway answers every charge with a fixed BCA virtual account.
type fakeGateway struct {
	failCharges bool
}

func (g *fakeGateway) Charge(ctx context.Context, req midtrans.ChargeRequest) (*midtrans.ChargeResponse, error) {
	if g.failCharges {
		return nil, fmt.Errorf("gateway unreachable")
	}
	return &midtrans.ChargeResponse{
		TransactionID:     "txn-" + req.TransactionDetails.OrderID,
		OrderID:           req.TransactionDetails.OrderID,
		TransactionStatus: "pending",
		PaymentType:       "bank_transfer",
		VANumbers: []midtrans.VANumber{
			{Bank: "bca", VANumber: "98765432101"},
		},
	}, nil
}

func (g *fakeGateway) VerifySignature(orderID, statusCode, grossAmount, signatureKey string) bool {
	return signatureKey == controllerSignature(orderID, statusCode, grossAmount)
}

type paymentControllerEnv struct {
	router              *gin.Engine
	db                  *gorm.DB
	registrationService service.RegistrationService
	paymentService      service.PaymentService
}

func setupPaymentControllerTest(t *testing.T) *paymentControllerEnv {
	gin.SetMode(gin.TestMode)

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	cfg := &config.Config{
		Registration: config.RegistrationConfig{
			NumberPrefix:       "PPDB",
			AcademicYear:       "2025/2026",
			Fee:                500000,
			PaymentExpiryHours: 0,
			DraftRetentionDays: 3,
		},
		JWT: config.JWTConfig{
			Secret:             "test-secret",
			AccessTokenExpiry:  15 * time.Minute,
			RefreshTokenExpiry: 168 * time.Hour,
		},
		Midtrans: config.MidtransConfig{
			ServerKey: controllerTestServerKey,
		},
	}

	registrationRepo := repository.NewRegistrationRepository(testDB)
	registrationService := service.NewRegistrationService(
		registrationRepo,
		repository.NewDocumentRepository(testDB),
		repository.NewNotificationRepository(testDB),
		nil,
		cfg,
		testDB,
	)
	paymentService := service.NewPaymentService(
		registrationRepo,
		repository.NewPaymentRepository(testDB),
		repository.NewPaymentLogRepository(testDB),
		&fakeGateway{},
		nil,
		cfg,
		testDB,
	)

	ctrl := NewPaymentController(paymentService)

	router := gin.New()
	router.Use(middleware.LoggingMiddleware())
	router.POST("/registrations/:id/payment", ctrl.CreatePayment)
	router.GET("/registrations/:id/payment", ctrl.GetPayment)
	router.POST("/payments/webhook/midtrans", ctrl.HandleNotification)

	return &paymentControllerEnv{
		router:              router,
		db:                  testDB,
		registrationService: registrationService,
		paymentService:      paymentService,
	}
}

func (env *paymentControllerEnv) submittedRegistration(t *testing.T) *model.Registration {
	t.Helper()

	reg, err := env.registrationService.CreateDraft(&service.RegistrationInput{
		Program:           model.ProgramPaketC,
		FullName:          "Budi Santoso",
		NIK:               "3174091201050001",
		ContactEmail:      "budi@example.com",
		ContactPhone:      "081234567890",
		DeclarationAgreed: true,
	})
	require.NoError(t, err)

	for _, docType := range model.MandatoryDocumentTypes {
		require.NoError(t, env.db.Create(&model.Document{
			RegistrationID:   reg.ID,
			DocumentType:     docType,
			StorageKey:       fmt.Sprintf("documents/%s/%s/file.pdf", reg.ID, docType),
			OriginalFilename: "file.pdf",
			FileSize:         1024,
			MimeType:         "application/pdf",
		}).Error)
	}

	reg, err = env.registrationService.Submit(reg.ID)
	require.NoError(t, err)
	return reg
}

func (env *paymentControllerEnv) postJSON(path string, payload interface{}) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest("POST", path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func TestPaymentController_CreatePayment(t *testing.T) {
	env := setupPaymentControllerTest(t)
	reg := env.submittedRegistration(t)

	w := env.postJSON("/registrations/"+reg.ID+"/payment", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Data model.Payment `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, model.PaymentStatusPending, response.Data.Status)
	assert.Equal(t, int64(500000), response.Data.TotalAmount)
	assert.NotEmpty(t, response.Data.VANumber)

	// Calling again returns the same pending payment.
	w2 := env.postJSON("/registrations/"+reg.ID+"/payment", nil)
	assert.Equal(t, http.StatusOK, w2.Code)

	var second struct {
		Data model.Payment `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &second))
	assert.Equal(t, response.Data.ID, second.Data.ID)
	assert.Equal(t, response.Data.GatewayOrderID, second.Data.GatewayOrderID)
}

func TestPaymentController_CreatePayment_DraftNotPayable(t *testing.T) {
	env := setupPaymentControllerTest(t)

	reg, err := env.registrationService.CreateDraft(&service.RegistrationInput{
		Program:  model.ProgramPaketC,
		FullName: "Siti Rahma",
	})
	require.NoError(t, err)

	w := env.postJSON("/registrations/"+reg.ID+"/payment", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPaymentController_CreatePayment_UnknownRegistration(t *testing.T) {
	env := setupPaymentControllerTest(t)

	w := env.postJSON("/registrations/does-not-exist/payment", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaymentController_GetPayment_NotFound(t *testing.T) {
	env := setupPaymentControllerTest(t)
	reg := env.submittedRegistration(t)

	req := httptest.NewRequest("GET", "/registrations/"+reg.ID+"/payment", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaymentController_Webhook_Settlement(t *testing.T) {
	env := setupPaymentControllerTest(t)
	reg := env.submittedRegistration(t)

	payment, err := env.paymentService.GetOrCreatePayment(context.Background(), reg.ID)
	require.NoError(t, err)

	grossAmount := fmt.Sprintf("%d.00", payment.TotalAmount)
	w := env.postJSON("/payments/webhook/midtrans", map[string]interface{}{
		"order_id":           payment.GatewayOrderID,
		"status_code":        "200",
		"gross_amount":       grossAmount,
		"signature_key":      controllerSignature(payment.GatewayOrderID, "200", grossAmount),
		"transaction_status": "settlement",
		"transaction_id":     "txn-settled",
		"payment_type":       "bank_transfer",
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ok", response["status"])
	assert.Equal(t, true, response["applied"])

	updated, err := env.paymentService.GetPaymentByRegistration(reg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, updated.Status)

	refreshed, err := env.registrationService.GetRegistration(reg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, refreshed.Status)
}

func TestPaymentController_Webhook_MalformedBody(t *testing.T) {
	env := setupPaymentControllerTest(t)

	req := httptest.NewRequest("POST", "/payments/webhook/midtrans", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentController_Webhook_MissingFields(t *testing.T) {
	env := setupPaymentControllerTest(t)

	w := env.postJSON("/payments/webhook/midtrans", map[string]interface{}{
		"order_id": "PPDB-2026-00001-123",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentController_Webhook_InvalidSignature(t *testing.T) {
	env := setupPaymentControllerTest(t)
	reg := env.submittedRegistration(t)

	payment, err := env.paymentService.GetOrCreatePayment(context.Background(), reg.ID)
	require.NoError(t, err)

	grossAmount := fmt.Sprintf("%d.00", payment.TotalAmount)
	w := env.postJSON("/payments/webhook/midtrans", map[string]interface{}{
		"order_id":           payment.GatewayOrderID,
		"status_code":        "200",
		"gross_amount":       grossAmount,
		"signature_key":      "forged",
		"transaction_status": "settlement",
	})

	// Acknowledged so the gateway stops retrying, but nothing moved.
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, false, response["applied"])

	updated, err := env.paymentService.GetPaymentByRegistration(reg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPending, updated.Status)
}

func TestPaymentController_Webhook_UnknownOrder(t *testing.T) {
	env := setupPaymentControllerTest(t)

	grossAmount := "500000.00"
	w := env.postJSON("/payments/webhook/midtrans", map[string]interface{}{
		"order_id":           "PPDB-2026-99999-1",
		"status_code":        "200",
		"gross_amount":       grossAmount,
		"signature_key":      controllerSignature("PPDB-2026-99999-1", "200", grossAmount),
		"transaction_status": "settlement",
	})

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPaymentController_Webhook_InternalErrorStillAcknowledged(t *testing.T) {
	env := setupPaymentControllerTest(t)
	reg := env.submittedRegistration(t)

	payment, err := env.paymentService.GetOrCreatePayment(context.Background(), reg.ID)
	require.NoError(t, err)

	// Refuse the payment write so handling fails inside the transaction
	var refusePaymentWrites bool
	require.NoError(t, env.db.Callback().Update().Before("gorm:update").
		Register("refuse_payment_writes", func(tx *gorm.DB) {
			if refusePaymentWrites && tx.Statement.Table == "payments" {
				tx.AddError(errors.New("disk full"))
			}
		}))

	grossAmount := fmt.Sprintf("%d.00", payment.TotalAmount)
	refusePaymentWrites = true
	w := env.postJSON("/payments/webhook/midtrans", map[string]interface{}{
		"order_id":           payment.GatewayOrderID,
		"status_code":        "200",
		"gross_amount":       grossAmount,
		"signature_key":      controllerSignature(payment.GatewayOrderID, "200", grossAmount),
		"transaction_status": "settlement",
	})
	refusePaymentWrites = false

	// The payload is already on record, so the gateway gets a 200 even
	// when applying it failed; nothing moved
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ok", response["status"])

	updated, err := env.paymentService.GetPaymentByRegistration(reg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPending, updated.Status)
}
