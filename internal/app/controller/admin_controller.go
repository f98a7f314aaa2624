package controller

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ciptatunaskarya/ppdb-backend/internal/app/model"
	"github.com/ciptatunaskarya/ppdb-backend/internal/app/repository"
	"github.com/ciptatunaskarya/ppdb-backend/internal/app/service"
	apierrors "github.com/ciptatunaskarya/ppdb-backend/internal/errors"
	"github.com/ciptatunaskarya/ppdb-backend/internal/middleware"
	ws "github.com/ciptatunaskarya/ppdb-backend/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// AdminController serves the staff dashboard: review queues, verification,
// exports and the live event feed.
type AdminController struct {
	registrationService service.RegistrationService
	paymentService      service.PaymentService
	documentService     service.DocumentService
	notificationService service.NotificationService
	exportService       service.ExportService
	hub                 *ws.Hub
	upgrader            websocket.Upgrader
}

func NewAdminController(
	registrationService service.RegistrationService,
	paymentService service.PaymentService,
	documentService service.DocumentService,
	notificationService service.NotificationService,
	exportService service.ExportService,
	hub *ws.Hub,
) *AdminController {
	return &AdminController{
		registrationService: registrationService,
		paymentService:      paymentService,
		documentService:     documentService,
		notificationService: notificationService,
		exportService:       exportService,
		hub:                 hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Auth happens in the middleware chain before the upgrade.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

type verifyRequest struct {
	Approve bool   `json:"approve"`
	Notes   string `json:"notes"`
}

type bulkVerifyRequest struct {
	IDs     []string `json:"ids" binding:"required,min=1"`
	Approve bool     `json:"approve"`
	Notes   string   `json:"notes"`
}

func listFilterFromQuery(c *gin.Context) repository.RegistrationListFilter {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	return repository.RegistrationListFilter{
		Status:       model.RegistrationStatus(c.Query("status")),
		Program:      model.Program(c.Query("program")),
		AcademicYear: c.Query("academic_year"),
		Search:       c.Query("search"),
		Page:         page,
		Limit:        limit,
	}
}

// ListRegistrations returns a filtered, paginated registration list
// GET /api/v1/admin/registrations
func (ctrl *AdminController) ListRegistrations(c *gin.Context) {
	filter := listFilterFromQuery(c)

	regs, total, err := ctrl.registrationService.List(filter)
	if err != nil {
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": regs,
		"pagination": gin.H{
			"page":  filter.Page,
			"limit": filter.Limit,
			"total": total,
		},
	})
}

// GetRegistration returns one registration with documents, payment and
// audit trail
// GET /api/v1/admin/registrations/:id
func (ctrl *AdminController) GetRegistration(c *gin.Context) {
	reg, err := ctrl.registrationService.GetRegistration(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrRegistrationNotFound) {
			apierrors.NotFound(c, apierrors.RegistrationNotFound, "Data pendaftaran tidak ditemukan")
			return
		}
		apierrors.InternalError(c, "")
		return
	}

	response := gin.H{"registration": reg}
	if reg.Payment != nil {
		logs, err := ctrl.paymentService.GetPaymentLogs(reg.Payment.ID)
		if err == nil {
			response["payment_logs"] = logs
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"data": response,
	})
}

// VerifyRegistration approves or rejects a paid registration
// POST /api/v1/admin/registrations/:id/verify
func (ctrl *AdminController) VerifyRegistration(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	staffID, ok := middleware.GetUserID(c)
	if !ok {
		apierrors.Unauthorized(c, "")
		return
	}

	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, apierrors.ValidationInvalidInput, "Data verifikasi tidak valid")
		return
	}

	reg, err := ctrl.registrationService.Verify(c.Param("id"), staffID, req.Approve, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRegistrationNotFound):
			apierrors.NotFound(c, apierrors.RegistrationNotFound, "Data pendaftaran tidak ditemukan")
		case errors.Is(err, service.ErrRegistrationNotPaid):
			apierrors.Conflict(c, apierrors.RegistrationInvalidState, "Pendaftaran belum dibayar")
		case errors.Is(err, service.ErrVerificationNotesNeeded):
			apierrors.BadRequest(c, apierrors.RegistrationNotesRequired, "Catatan wajib diisi saat menolak pendaftaran")
		default:
			log.Error("Verification failed", err, map[string]interface{}{
				"registration_id": c.Param("id"),
			})
			apierrors.InternalError(c, "")
		}
		return
	}

	message := "Pendaftaran berhasil diverifikasi"
	if !req.Approve {
		message = "Pendaftaran ditolak"
	}

	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"data":    reg,
	})
}

// BulkVerifyRegistrations applies one decision to every listed registration
// that is paid
// POST /api/v1/admin/registrations/bulk-verify
func (ctrl *AdminController) BulkVerifyRegistrations(c *gin.Context) {
	staffID, ok := middleware.GetUserID(c)
	if !ok {
		apierrors.Unauthorized(c, "")
		return
	}

	var req bulkVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, apierrors.ValidationInvalidInput, "Daftar ID pendaftaran wajib diisi")
		return
	}

	result, err := ctrl.registrationService.BulkVerify(req.IDs, staffID, req.Approve, req.Notes)
	if err != nil {
		if errors.Is(err, service.ErrVerificationNotesNeeded) {
			apierrors.BadRequest(c, apierrors.RegistrationNotesRequired, "Catatan wajib diisi saat menolak pendaftaran")
			return
		}
		apierrors.InternalError(c, "")
		return
	}

	message := fmt.Sprintf("%d pendaftaran diverifikasi, %d dilewati", result.Processed, result.Skipped)
	if !req.Approve {
		message = fmt.Sprintf("%d pendaftaran ditolak, %d dilewati", result.Processed, result.Skipped)
	}

	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"data":    result,
	})
}

// GetDashboardStats returns the dashboard counters
// GET /api/v1/admin/dashboard
func (ctrl *AdminController) GetDashboardStats(c *gin.Context) {
	stats, err := ctrl.registrationService.GetDashboardStats()
	if err != nil {
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": stats,
	})
}

// ExportRegistrations streams the registration list as an xlsx download
// GET /api/v1/admin/registrations/export
func (ctrl *AdminController) ExportRegistrations(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	buf, filename, err := ctrl.exportService.ExportRegistrations(listFilterFromQuery(c))
	if err != nil {
		log.Error("Export failed", err, nil)
		apierrors.InternalError(c, "Gagal membuat file ekspor")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// ListNotifications returns recent admission events
// GET /api/v1/admin/notifications
func (ctrl *AdminController) ListNotifications(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	notifications, unread, err := ctrl.notificationService.GetRecent(limit)
	if err != nil {
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"notifications": notifications,
			"unread_count":  unread,
		},
	})
}

// MarkNotificationsRead marks every notification as read
// POST /api/v1/admin/notifications/read
func (ctrl *AdminController) MarkNotificationsRead(c *gin.Context) {
	if err := ctrl.notificationService.MarkAllRead(); err != nil {
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Semua notifikasi ditandai terbaca",
	})
}

// PresignDocument returns a short-lived download URL for a stored document
// GET /api/v1/admin/documents/:documentId/url
func (ctrl *AdminController) PresignDocument(c *gin.Context) {
	url, err := ctrl.documentService.PresignDownload(c.Request.Context(), c.Param("documentId"))
	if err != nil {
		if errors.Is(err, service.ErrDocumentNotFound) {
			apierrors.NotFound(c, apierrors.DocumentNotFound, "Dokumen tidak ditemukan")
			return
		}
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"url": url,
		},
	})
}

// ServeFeed upgrades the connection to the staff websocket event feed
// GET /api/v1/admin/ws
func (ctrl *AdminController) ServeFeed(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	staffID, ok := middleware.GetUserID(c)
	if !ok {
		apierrors.Unauthorized(c, "")
		return
	}

	conn, err := ctrl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("Websocket upgrade failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	client := &ws.Client{
		Hub:    ctrl.hub,
		Conn:   &ws.Conn{Conn: conn},
		UserID: staffID,
		Send:   make(chan []byte, 64),
	}
	ctrl.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
