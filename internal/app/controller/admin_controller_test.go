package controller

import (
	"bytes"
	"encoding/json"
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
	ws "github.com/ciptatunaskarya/ppdb-backend/internal/websocket"
	"github.com/ciptatunaskarya/ppdb-backend/pkg/util"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type adminControllerEnv struct {
	router              *gin.Engine
	db                  *gorm.DB
	registrationService service.RegistrationService
	staff               *model.User
	token               string
}

func setupAdminControllerTest(t *testing.T) *adminControllerEnv {
	gin.SetMode(gin.TestMode)

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	cfg := &config.Config{
		Registration: config.RegistrationConfig{
			NumberPrefix:       "PPDB",
			AcademicYear:       "2025/2026",
			Fee:                500000,
			DraftRetentionDays: 3,
		},
		JWT: config.JWTConfig{
			Secret:             "test-secret",
			AccessTokenExpiry:  15 * time.Minute,
			RefreshTokenExpiry: 168 * time.Hour,
		},
		Midtrans: config.MidtransConfig{ServerKey: controllerTestServerKey},
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
	notificationService := service.NewNotificationService(
		repository.NewNotificationRepository(testDB),
		ws.NewHub(),
	)
	exportService := service.NewExportService(registrationRepo)

	ctrl := NewAdminController(
		registrationService,
		paymentService,
		nil,
		notificationService,
		exportService,
		ws.NewHub(),
	)
	authMiddleware := middleware.NewAuthMiddleware("test-secret")

	router := gin.New()
	admin := router.Group("/admin")
	admin.Use(authMiddleware.Authenticate())
	admin.Use(authMiddleware.RequireRole("staff", "admin"))
	{
		admin.GET("/registrations", ctrl.ListRegistrations)
		admin.GET("/registrations/export", ctrl.ExportRegistrations)
		admin.GET("/registrations/:id", ctrl.GetRegistration)
		admin.POST("/registrations/:id/verify", ctrl.VerifyRegistration)
		admin.POST("/registrations/bulk-verify", ctrl.BulkVerifyRegistrations)
		admin.GET("/dashboard", ctrl.GetDashboardStats)
		admin.GET("/notifications", ctrl.ListNotifications)
	}

	staff := createStaffAccount(t, testDB, "panitia@sekolah.sch.id", "rahasia123")
	tokens, err := util.GenerateTokenPair(staff.ID, staff.Email, string(staff.Role), "test-secret", 15*time.Minute, 168*time.Hour)
	require.NoError(t, err)

	return &adminControllerEnv{
		router:              router,
		db:                  testDB,
		registrationService: registrationService,
		staff:               staff,
		token:               tokens.AccessToken,
	}
}

func (env *adminControllerEnv) do(t *testing.T, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if payload != nil {
		body, err := json.Marshal(payload)
		require.NoError(t, err)
		buf.Write(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+env.token)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

// paidRegistration seeds a registration that already went through payment.
func (env *adminControllerEnv) paidRegistration(t *testing.T, name string) *model.Registration {
	t.Helper()

	reg, err := env.registrationService.CreateDraft(&service.RegistrationInput{
		Program:           model.ProgramPaketC,
		FullName:          name,
		DeclarationAgreed: true,
	})
	require.NoError(t, err)

	require.NoError(t, env.db.Model(&model.Registration{}).
		Where("id = ?", reg.ID).
		Updates(map[string]interface{}{
			"status":              model.StatusPaid,
			"registration_number": "PPDB-2026-" + reg.ID[:5],
		}).Error)

	refreshed, err := env.registrationService.GetRegistration(reg.ID)
	require.NoError(t, err)
	return refreshed
}

func TestAdminController_RequiresAuth(t *testing.T) {
	env := setupAdminControllerTest(t)

	req := httptest.NewRequest("GET", "/admin/registrations", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminController_ListRegistrations(t *testing.T) {
	env := setupAdminControllerTest(t)
	env.paidRegistration(t, "Budi Santoso")
	env.paidRegistration(t, "Siti Rahma")

	w := env.do(t, "GET", "/admin/registrations?status=PAID", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Data       []model.Registration `json:"data"`
		Pagination struct {
			Total int64 `json:"total"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(t, response.Data, 2)
	assert.Equal(t, int64(2), response.Pagination.Total)
}

func TestAdminController_VerifyRegistration_Approve(t *testing.T) {
	env := setupAdminControllerTest(t)
	reg := env.paidRegistration(t, "Budi Santoso")

	w := env.do(t, "POST", "/admin/registrations/"+reg.ID+"/verify", map[string]interface{}{
		"approve": true,
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Data model.Registration `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, model.StatusVerified, response.Data.Status)
	require.NotNil(t, response.Data.VerifiedByID)
	assert.Equal(t, env.staff.ID, *response.Data.VerifiedByID)
}

func TestAdminController_VerifyRegistration_RejectNeedsNotes(t *testing.T) {
	env := setupAdminControllerTest(t)
	reg := env.paidRegistration(t, "Budi Santoso")

	w := env.do(t, "POST", "/admin/registrations/"+reg.ID+"/verify", map[string]interface{}{
		"approve": false,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, "POST", "/admin/registrations/"+reg.ID+"/verify", map[string]interface{}{
		"approve": false,
		"notes":   "Dokumen KK tidak terbaca",
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminController_VerifyRegistration_NotPaid(t *testing.T) {
	env := setupAdminControllerTest(t)

	reg, err := env.registrationService.CreateDraft(&service.RegistrationInput{
		Program:  model.ProgramPaketC,
		FullName: "Budi Santoso",
	})
	require.NoError(t, err)

	w := env.do(t, "POST", "/admin/registrations/"+reg.ID+"/verify", map[string]interface{}{
		"approve": true,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAdminController_BulkVerify(t *testing.T) {
	env := setupAdminControllerTest(t)
	first := env.paidRegistration(t, "Budi Santoso")
	second := env.paidRegistration(t, "Siti Rahma")

	w := env.do(t, "POST", "/admin/registrations/bulk-verify", map[string]interface{}{
		"ids":     []string{first.ID, second.ID, "missing-id"},
		"approve": true,
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Data service.BulkVerifyResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 2, response.Data.Processed)
	assert.Equal(t, 1, response.Data.Skipped)
}

func TestAdminController_BulkVerify_RejectNeedsNotes(t *testing.T) {
	env := setupAdminControllerTest(t)
	reg := env.paidRegistration(t, "Budi Santoso")

	w := env.do(t, "POST", "/admin/registrations/bulk-verify", map[string]interface{}{
		"ids":     []string{reg.ID},
		"approve": false,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, "POST", "/admin/registrations/bulk-verify", map[string]interface{}{
		"ids":     []string{reg.ID},
		"approve": false,
		"notes":   "Dokumen tidak lengkap",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var updated model.Registration
	require.NoError(t, env.db.Where("id = ?", reg.ID).First(&updated).Error)
	assert.Equal(t, model.StatusRejected, updated.Status)
	assert.Equal(t, "Dokumen tidak lengkap", updated.VerificationNotes)
}

func TestAdminController_BulkVerify_EmptyIDs(t *testing.T) {
	env := setupAdminControllerTest(t)

	w := env.do(t, "POST", "/admin/registrations/bulk-verify", map[string]interface{}{
		"ids": []string{},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminController_Dashboard(t *testing.T) {
	env := setupAdminControllerTest(t)
	env.paidRegistration(t, "Budi Santoso")

	w := env.do(t, "GET", "/admin/dashboard", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Data service.DashboardStats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, int64(1), response.Data.TotalRegistrations)
	assert.Equal(t, int64(1), response.Data.AwaitingReview)
}

func TestAdminController_Export(t *testing.T) {
	env := setupAdminControllerTest(t)
	env.paidRegistration(t, "Budi Santoso")

	w := env.do(t, "GET", "/admin/registrations/export", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "pendaftar-")
	assert.NotZero(t, w.Body.Len())
}

func TestAdminController_Notifications(t *testing.T) {
	env := setupAdminControllerTest(t)

	w := env.do(t, "GET", "/admin/notifications", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
