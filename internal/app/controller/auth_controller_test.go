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
	"github.com/ciptatunaskarya/ppdb-backend/pkg/util"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupAuthControllerTest(t *testing.T) (*gin.Engine, *gorm.DB) {
	gin.SetMode(gin.TestMode)

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	cfg := &config.Config{
		JWT: config.JWTConfig{
			Secret:             "test-secret",
			AccessTokenExpiry:  15 * time.Minute,
			RefreshTokenExpiry: 168 * time.Hour,
		},
	}

	authService := service.NewAuthService(repository.NewUserRepository(testDB), cfg)
	ctrl := NewAuthController(authService)
	authMiddleware := middleware.NewAuthMiddleware("test-secret")

	router := gin.New()
	router.POST("/auth/login", ctrl.Login)
	router.POST("/auth/refresh", ctrl.Refresh)
	router.GET("/auth/me", authMiddleware.Authenticate(), ctrl.Me)

	return router, testDB
}

func createStaffAccount(t *testing.T, testDB *gorm.DB, email, password string) *model.User {
	t.Helper()

	hash, err := util.HashPassword(password)
	require.NoError(t, err)

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		Name:         "Panitia PPDB",
		Role:         model.RoleStaff,
		IsActive:     true,
	}
	require.NoError(t, testDB.Create(user).Error)
	return user
}

func TestAuthController_Login_Success(t *testing.T) {
	router, testDB := setupAuthControllerTest(t)
	createStaffAccount(t, testDB, "panitia@sekolah.sch.id", "rahasia123")

	body, _ := json.Marshal(map[string]string{
		"email":    "panitia@sekolah.sch.id",
		"password": "rahasia123",
	})
	req := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Data struct {
			AccessToken  string     `json:"access_token"`
			RefreshToken string     `json:"refresh_token"`
			User         model.User `json:"user"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.NotEmpty(t, response.Data.AccessToken)
	assert.NotEmpty(t, response.Data.RefreshToken)
	assert.Equal(t, "panitia@sekolah.sch.id", response.Data.User.Email)
}

func TestAuthController_Login_WrongPassword(t *testing.T) {
	router, testDB := setupAuthControllerTest(t)
	createStaffAccount(t, testDB, "panitia@sekolah.sch.id", "rahasia123")

	body, _ := json.Marshal(map[string]string{
		"email":    "panitia@sekolah.sch.id",
		"password": "salah",
	})
	req := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthController_Login_MissingFields(t *testing.T) {
	router, _ := setupAuthControllerTest(t)

	req := httptest.NewRequest("POST", "/auth/login", bytes.NewBufferString(`{"email":"x@y.id"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthController_Me(t *testing.T) {
	router, testDB := setupAuthControllerTest(t)
	user := createStaffAccount(t, testDB, "panitia@sekolah.sch.id", "rahasia123")

	tokens, err := util.GenerateTokenPair(user.ID, user.Email, string(user.Role), "test-secret", 15*time.Minute, 168*time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Data model.User `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, user.ID, response.Data.ID)
}

func TestAuthController_Me_NoToken(t *testing.T) {
	router, _ := setupAuthControllerTest(t)

	req := httptest.NewRequest("GET", "/auth/me", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthController_Refresh(t *testing.T) {
	router, testDB := setupAuthControllerTest(t)
	user := createStaffAccount(t, testDB, "panitia@sekolah.sch.id", "rahasia123")

	tokens, err := util.GenerateTokenPair(user.ID, user.Email, string(user.Role), "test-secret", 15*time.Minute, 168*time.Hour)
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]string{"refresh_token": tokens.RefreshToken})
	req := httptest.NewRequest("POST", "/auth/refresh", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.NotEmpty(t, response.Data.AccessToken)
}

func TestAuthController_Refresh_InvalidToken(t *testing.T) {
	router, _ := setupAuthControllerTest(t)

	body, _ := json.Marshal(map[string]string{"refresh_token": "garbage"})
	req := httptest.NewRequest("POST", "/auth/refresh", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
