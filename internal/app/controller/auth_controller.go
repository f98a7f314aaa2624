package controller

import (
	"errors"
	"net/http"

	"github.com/ciptatunaskarya/ppdb-backend/internal/app/service"
	apierrors "github.com/ciptatunaskarya/ppdb-backend/internal/errors"
	"github.com/ciptatunaskarya/ppdb-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

type AuthController struct {
	authService service.AuthService
}

func NewAuthController(authService service.AuthService) *AuthController {
	return &AuthController{
		authService: authService,
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Login authenticates a staff account and issues a token pair
// POST /api/v1/auth/login
func (ctrl *AuthController) Login(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, apierrors.ValidationInvalidInput, "Email dan kata sandi wajib diisi")
		return
	}

	user, tokens, err := ctrl.authService.Login(req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			log.Warn("Login failed", map[string]interface{}{
				"email": req.Email,
				"ip":    c.ClientIP(),
			})
			apierrors.RespondWithError(c, http.StatusUnauthorized, apierrors.AuthInvalidCredentials, "Email atau kata sandi salah")
		case errors.Is(err, service.ErrAccountInactive):
			apierrors.RespondWithError(c, http.StatusForbidden, apierrors.AuthAccountInactive, "Akun tidak aktif")
		default:
			log.Error("Login error", err, nil)
			apierrors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login berhasil",
		"data": gin.H{
			"user":          user,
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
		},
	})
}

// Refresh exchanges a refresh token for a new token pair
// POST /api/v1/auth/refresh
func (ctrl *AuthController) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, apierrors.ValidationInvalidInput, "Refresh token wajib diisi")
		return
	}

	tokens, err := ctrl.authService.RefreshTokens(req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrAccountInactive) {
			apierrors.RespondWithError(c, http.StatusForbidden, apierrors.AuthAccountInactive, "Akun tidak aktif")
			return
		}
		apierrors.RespondWithError(c, http.StatusUnauthorized, apierrors.AuthTokenInvalid, "Refresh token tidak valid")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
		},
	})
}

// Me returns the authenticated staff profile
// GET /api/v1/auth/me
func (ctrl *AuthController) Me(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		apierrors.Unauthorized(c, "")
		return
	}

	user, err := ctrl.authService.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			apierrors.Unauthorized(c, "")
			return
		}
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": user,
	})
}
