package controller

import (
	"errors"
	"io"
	"net/http"

	"github.com/ciptatunaskarya/ppdb-backend/internal/app/model"
	"github.com/ciptatunaskarya/ppdb-backend/internal/app/service"
	apierrors "github.com/ciptatunaskarya/ppdb-backend/internal/errors"
	"github.com/ciptatunaskarya/ppdb-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

// RegistrationController serves the public applicant flow. No authentication;
// drafts are addressed by their unguessable UUID.
type RegistrationController struct {
	registrationService service.RegistrationService
	documentService     service.DocumentService
}

func NewRegistrationController(
	registrationService service.RegistrationService,
	documentService service.DocumentService,
) *RegistrationController {
	return &RegistrationController{
		registrationService: registrationService,
		documentService:     documentService,
	}
}

// CreateRegistration starts a new draft
// POST /api/v1/registrations
func (ctrl *RegistrationController) CreateRegistration(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var input service.RegistrationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		log.Warn("Invalid registration payload", map[string]interface{}{
			"error": err.Error(),
		})
		apierrors.BadRequest(c, apierrors.ValidationInvalidInput, "Data pendaftaran tidak valid")
		return
	}

	reg, err := ctrl.registrationService.CreateDraft(&input)
	if err != nil {
		log.Error("Failed to create registration", err, nil)
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Pendaftaran berhasil dibuat",
		"data":    reg,
	})
}

// GetRegistration returns one registration with documents and payment
// GET /api/v1/registrations/:id
func (ctrl *RegistrationController) GetRegistration(c *gin.Context) {
	reg, err := ctrl.registrationService.GetRegistration(c.Param("id"))
	if err != nil {
		ctrl.respondRegistrationError(c, err, "get registration")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": reg,
	})
}

// UpdateRegistration updates a draft
// PUT /api/v1/registrations/:id
func (ctrl *RegistrationController) UpdateRegistration(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var input service.RegistrationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		log.Warn("Invalid registration payload", map[string]interface{}{
			"error": err.Error(),
		})
		apierrors.BadRequest(c, apierrors.ValidationInvalidInput, "Data pendaftaran tidak valid")
		return
	}

	reg, err := ctrl.registrationService.UpdateDraft(c.Param("id"), &input)
	if err != nil {
		ctrl.respondRegistrationError(c, err, "update registration")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Pendaftaran berhasil diperbarui",
		"data":    reg,
	})
}

// SubmitRegistration finalizes a draft and assigns its number
// POST /api/v1/registrations/:id/submit
func (ctrl *RegistrationController) SubmitRegistration(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	reg, err := ctrl.registrationService.Submit(c.Param("id"))
	if err != nil {
		ctrl.respondRegistrationError(c, err, "submit registration")
		return
	}

	log.Info("Registration submitted", map[string]interface{}{
		"registration_id":     reg.ID,
		"registration_number": reg.RegistrationNumber,
	})

	c.JSON(http.StatusOK, gin.H{
		"message": "Pendaftaran berhasil dikirim",
		"data":    reg,
	})
}

// ResubmitRegistration reopens a registration whose payment lapsed
// POST /api/v1/registrations/:id/resubmit
func (ctrl *RegistrationController) ResubmitRegistration(c *gin.Context) {
	reg, err := ctrl.registrationService.Resubmit(c.Param("id"))
	if err != nil {
		ctrl.respondRegistrationError(c, err, "resubmit registration")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Pendaftaran berhasil dikirim ulang",
		"data":    reg,
	})
}

type checkStatusRequest struct {
	RegistrationNumber string `json:"registration_number" binding:"required"`
	Identifier         string `json:"identifier" binding:"required"` // NIK, NISN, email or phone
}

// CheckStatus looks a registration up by number plus a matching personal
// identifier (NIK, NISN, email or phone)
// POST /api/v1/registrations/check-status
func (ctrl *RegistrationController) CheckStatus(c *gin.Context) {
	var req checkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, apierrors.ValidationRequired, "Nomor pendaftaran dan identitas wajib diisi")
		return
	}

	result, err := ctrl.registrationService.CheckStatus(req.RegistrationNumber, req.Identifier)
	if err != nil {
		if errors.Is(err, service.ErrRegistrationNotFound) {
			apierrors.NotFound(c, apierrors.RegistrationNotFound, "Data pendaftaran tidak ditemukan")
			return
		}
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": result,
	})
}

// UploadDocument receives one document file (multipart form)
// POST /api/v1/registrations/:id/documents
func (ctrl *RegistrationController) UploadDocument(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	docType := model.DocumentType(c.PostForm("document_type"))
	fileHeader, err := c.FormFile("file")
	if err != nil {
		apierrors.BadRequest(c, apierrors.ValidationRequired, "File dokumen wajib dilampirkan")
		return
	}
	if fileHeader.Size > service.MaxDocumentSize {
		apierrors.BadRequest(c, apierrors.DocumentFileTooLarge, "Ukuran file maksimal 2MB")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		apierrors.InternalError(c, "")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, service.MaxDocumentSize+1))
	if err != nil {
		apierrors.InternalError(c, "")
		return
	}

	doc, err := ctrl.documentService.Upload(c.Request.Context(), c.Param("id"), &service.DocumentUpload{
		DocumentType: docType,
		Filename:     fileHeader.Filename,
		Size:         int64(len(content)),
		Content:      content,
	})
	if err != nil {
		ctrl.respondDocumentError(c, err)
		return
	}

	log.Info("Document uploaded", map[string]interface{}{
		"registration_id": c.Param("id"),
		"document_type":   docType,
	})

	c.JSON(http.StatusCreated, gin.H{
		"message": "Dokumen berhasil diunggah",
		"data":    doc,
	})
}

// ListDocuments lists a registration's uploaded documents together with the
// mandatory types still missing
// GET /api/v1/registrations/:id/documents
func (ctrl *RegistrationController) ListDocuments(c *gin.Context) {
	reg, err := ctrl.registrationService.GetRegistration(c.Param("id"))
	if err != nil {
		ctrl.respondRegistrationError(c, err, "list documents")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"documents": reg.Documents,
			"missing":   ctrl.registrationService.MissingDocumentTypes(reg),
		},
	})
}

// DeleteDocument removes an uploaded document from a draft
// DELETE /api/v1/registrations/:id/documents/:documentId
func (ctrl *RegistrationController) DeleteDocument(c *gin.Context) {
	err := ctrl.documentService.Delete(c.Request.Context(), c.Param("id"), c.Param("documentId"))
	if err != nil {
		ctrl.respondDocumentError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Dokumen berhasil dihapus",
	})
}

func (ctrl *RegistrationController) respondRegistrationError(c *gin.Context, err error, context string) {
	log := middleware.GetLoggerFromContext(c)

	switch {
	case errors.Is(err, service.ErrRegistrationNotFound):
		apierrors.NotFound(c, apierrors.RegistrationNotFound, "Data pendaftaran tidak ditemukan")
	case errors.Is(err, service.ErrRegistrationNotDraft):
		apierrors.Conflict(c, apierrors.RegistrationInvalidState, "Pendaftaran sudah dikirim dan tidak dapat diubah")
	case errors.Is(err, service.ErrDocumentsIncomplete):
		apierrors.BadRequest(c, apierrors.RegistrationDocumentsIncomplete, "Dokumen wajib belum lengkap")
	case errors.Is(err, service.ErrDeclarationNotAgreed):
		apierrors.BadRequest(c, apierrors.RegistrationDeclarationRequired, "Pernyataan kebenaran data harus disetujui")
	case errors.Is(err, service.ErrRegistrationNotExpired):
		apierrors.Conflict(c, apierrors.RegistrationInvalidState, "Pendaftaran tidak dalam status kedaluwarsa pembayaran")
	case errors.Is(err, service.ErrNumberingExhausted):
		apierrors.Conflict(c, apierrors.RegistrationNumberConflict, "Gagal membuat nomor pendaftaran, silakan coba lagi")
	default:
		log.Error("Registration operation failed", err, map[string]interface{}{
			"context": context,
		})
		info := apierrors.ParseError(err, context)
		apierrors.RespondWithError(c, http.StatusInternalServerError, info.Code, info.Message)
	}
}

func (ctrl *RegistrationController) respondDocumentError(c *gin.Context, err error) {
	log := middleware.GetLoggerFromContext(c)

	switch {
	case errors.Is(err, service.ErrRegistrationNotFound):
		apierrors.NotFound(c, apierrors.RegistrationNotFound, "Data pendaftaran tidak ditemukan")
	case errors.Is(err, service.ErrDocumentNotFound):
		apierrors.NotFound(c, apierrors.DocumentNotFound, "Dokumen tidak ditemukan")
	case errors.Is(err, service.ErrInvalidDocumentType):
		apierrors.BadRequest(c, apierrors.DocumentInvalidType, "Jenis dokumen tidak dikenal")
	case errors.Is(err, service.ErrFileTooLarge):
		apierrors.BadRequest(c, apierrors.DocumentFileTooLarge, "Ukuran file maksimal 2MB")
	case errors.Is(err, service.ErrUnsupportedFileType):
		apierrors.BadRequest(c, apierrors.DocumentInvalidFileType, "Format file harus JPG, PNG, atau PDF")
	case errors.Is(err, service.ErrDocumentsLocked):
		apierrors.Conflict(c, apierrors.DocumentLocked, "Dokumen tidak dapat diubah setelah pendaftaran dikirim")
	default:
		log.Error("Document operation failed", err, nil)
		apierrors.InternalError(c, "")
	}
}
