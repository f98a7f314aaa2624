package router

import (
	"github.com/ciptatunaskarya/ppdb-backend/config"
	"github.com/ciptatunaskarya/ppdb-backend/internal/app/controller"
	"github.com/ciptatunaskarya/ppdb-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

type Router struct {
	authController         *controller.AuthController
	registrationController *controller.RegistrationController
	paymentController      *controller.PaymentController
	adminController        *controller.AdminController
	authMiddleware         *middleware.AuthMiddleware
	rateLimiter            *middleware.RateLimiter
	config                 *config.Config
}

func NewRouter(
	authController *controller.AuthController,
	registrationController *controller.RegistrationController,
	paymentController *controller.PaymentController,
	adminController *controller.AdminController,
	authMiddleware *middleware.AuthMiddleware,
	rateLimiter *middleware.RateLimiter,
	cfg *config.Config,
) *Router {
	return &Router{
		authController:         authController,
		registrationController: registrationController,
		paymentController:      paymentController,
		adminController:        adminController,
		authMiddleware:         authMiddleware,
		rateLimiter:            rateLimiter,
		config:                 cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"message": "PPDB API is running",
		})
	})

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/login", r.authController.Login)
			auth.POST("/refresh", r.authController.Refresh)
			auth.GET("/me", r.authMiddleware.Authenticate(), r.authController.Me)
		}

		registrations := v1.Group("/registrations")
		{
			registrations.POST("", r.rateLimiter.Limit(), r.registrationController.CreateRegistration)
			registrations.POST("/check-status", r.rateLimiter.Limit(), r.registrationController.CheckStatus)
			registrations.GET("/:id", r.registrationController.GetRegistration)
			registrations.PUT("/:id", r.registrationController.UpdateRegistration)
			registrations.POST("/:id/submit", r.registrationController.SubmitRegistration)
			registrations.POST("/:id/resubmit", r.registrationController.ResubmitRegistration)

			registrations.POST("/:id/documents", r.registrationController.UploadDocument)
			registrations.GET("/:id/documents", r.registrationController.ListDocuments)
			registrations.DELETE("/:id/documents/:documentId", r.registrationController.DeleteDocument)

			registrations.POST("/:id/payment", r.paymentController.CreatePayment)
			registrations.GET("/:id/payment", r.paymentController.GetPayment)
		}

		// The gateway posts here; signature verification happens in the
		// service, not in middleware.
		v1.POST("/payments/webhook/midtrans", r.paymentController.HandleNotification)

		admin := v1.Group("/admin")
		admin.Use(r.authMiddleware.Authenticate())
		admin.Use(r.authMiddleware.RequireRole("staff", "admin"))
		{
			admin.GET("/registrations", r.adminController.ListRegistrations)
			admin.GET("/registrations/export", r.adminController.ExportRegistrations)
			admin.GET("/registrations/:id", r.adminController.GetRegistration)
			admin.POST("/registrations/:id/verify", r.adminController.VerifyRegistration)
			admin.POST("/registrations/bulk-verify", r.adminController.BulkVerifyRegistrations)

			admin.GET("/dashboard", r.adminController.GetDashboardStats)

			admin.GET("/notifications", r.adminController.ListNotifications)
			admin.POST("/notifications/read", r.adminController.MarkNotificationsRead)

			admin.GET("/documents/:documentId/url", r.adminController.PresignDocument)

			admin.GET("/ws", r.adminController.ServeFeed)
		}
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
