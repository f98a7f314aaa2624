package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ciptatunaskarya/ppdb-backend/internal/app/model"
	"github.com/ciptatunaskarya/ppdb-backend/internal/app/repository"
	"github.com/ciptatunaskarya/ppdb-backend/internal/storage"
	"github.com/ciptatunaskarya/ppdb-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrDocumentNotFound    = errors.New("document not found")
	ErrInvalidDocumentType = errors.New("invalid document type")
	ErrFileTooLarge        = errors.New("file exceeds the maximum size")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrDocumentsLocked     = errors.New("documents can no longer be changed")
)

const (
	// MaxDocumentSize bounds uploads. Scans of identity cards comfortably
	// fit in 2MB.
	MaxDocumentSize = 2 * 1024 * 1024

	presignExpiry = 15 * time.Minute

	// sniffLen is how many leading bytes http.DetectContentType needs.
	sniffLen = 512
)

var allowedMimeTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"application/pdf": true,
}

// DocumentUpload is one incoming file.
type DocumentUpload struct {
	DocumentType model.DocumentType
	Filename     string
	Size         int64
	Content      []byte
}

type DocumentService interface {
	Upload(ctx context.Context, registrationID string, upload *DocumentUpload) (*model.Document, error)
	ListByRegistration(registrationID string) ([]model.Document, error)
	Delete(ctx context.Context, registrationID, documentID string) error
	PresignDownload(ctx context.Context, documentID string) (string, error)
}

type documentService struct {
	repo    repository.DocumentRepository
	regRepo repository.RegistrationRepository
	store   storage.ObjectStorage
}

func NewDocumentService(
	repo repository.DocumentRepository,
	regRepo repository.RegistrationRepository,
	store storage.ObjectStorage,
) DocumentService {
	return &documentService{
		repo:    repo,
		regRepo: regRepo,
		store:   store,
	}
}

// Upload stores a document file and its metadata. Re-uploading a type the
// registration already has replaces both the object and the row. Only drafts
// accept uploads; everything is frozen at submission.
func (s *documentService) Upload(ctx context.Context, registrationID string, upload *DocumentUpload) (*model.Document, error) {
	if !isValidDocumentType(upload.DocumentType) {
		return nil, ErrInvalidDocumentType
	}
	if upload.Size > MaxDocumentSize || int64(len(upload.Content)) > MaxDocumentSize {
		return nil, ErrFileTooLarge
	}

	// Trust the bytes, not the client's Content-Type header
	mimeType := detectMimeType(upload.Content)
	if !allowedMimeTypes[mimeType] {
		return nil, ErrUnsupportedFileType
	}

	reg, err := s.regRepo.FindByID(registrationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, err
	}
	if reg.Status != model.StatusDraft {
		return nil, ErrDocumentsLocked
	}

	key := storage.BuildKey(registrationID, string(upload.DocumentType), upload.Filename)
	if err := s.store.Put(ctx, key, bytes.NewReader(upload.Content), mimeType); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	existing, err := s.repo.FindByRegistrationAndType(registrationID, upload.DocumentType)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if existing != nil {
		oldKey := existing.StorageKey
		existing.StorageKey = key
		existing.OriginalFilename = upload.Filename
		existing.FileSize = int64(len(upload.Content))
		existing.MimeType = mimeType
		existing.FileURL = s.store.PublicURL(key)
		if err := s.repo.Update(existing); err != nil {
			return nil, err
		}

		if err := s.store.Delete(ctx, oldKey); err != nil {
			// The row already points at the new object; a leaked old object
			// is harmless
			logger.Warn("Failed to delete replaced document object", map[string]interface{}{
				"storage_key": oldKey,
				"error":       err.Error(),
			})
		}

		logger.Info("Document replaced", map[string]interface{}{
			"registration_id": registrationID,
			"document_type":   upload.DocumentType,
			"document_id":     existing.ID,
		})
		return existing, nil
	}

	doc := &model.Document{
		RegistrationID:   registrationID,
		DocumentType:     upload.DocumentType,
		StorageKey:       key,
		OriginalFilename: upload.Filename,
		FileSize:         int64(len(upload.Content)),
		MimeType:         mimeType,
		FileURL:          s.store.PublicURL(key),
	}
	if err := s.repo.Create(doc); err != nil {
		return nil, err
	}

	logger.Info("Document uploaded", map[string]interface{}{
		"registration_id": registrationID,
		"document_type":   upload.DocumentType,
		"document_id":     doc.ID,
		"mime_type":       mimeType,
		"file_size":       doc.FileSize,
	})
	return doc, nil
}

func (s *documentService) ListByRegistration(registrationID string) ([]model.Document, error) {
	return s.repo.FindByRegistrationID(registrationID)
}

func (s *documentService) Delete(ctx context.Context, registrationID, documentID string) error {
	reg, err := s.regRepo.FindByID(registrationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRegistrationNotFound
		}
		return err
	}
	if reg.Status != model.StatusDraft {
		return ErrDocumentsLocked
	}

	doc, err := s.repo.FindByID(documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDocumentNotFound
		}
		return err
	}
	if doc.RegistrationID != registrationID {
		return ErrDocumentNotFound
	}

	if err := s.repo.Delete(doc.ID); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, doc.StorageKey); err != nil {
		logger.Warn("Failed to delete document object", map[string]interface{}{
			"storage_key": doc.StorageKey,
			"error":       err.Error(),
		})
	}

	logger.Info("Document deleted", map[string]interface{}{
		"registration_id": registrationID,
		"document_id":     documentID,
	})
	return nil
}

// PresignDownload issues a short-lived URL for staff to view a document.
func (s *documentService) PresignDownload(ctx context.Context, documentID string) (string, error) {
	doc, err := s.repo.FindByID(documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrDocumentNotFound
		}
		return "", err
	}
	return s.store.PresignGet(ctx, doc.StorageKey, presignExpiry)
}

func detectMimeType(content []byte) string {
	n := len(content)
	if n > sniffLen {
		n = sniffLen
	}
	mimeType := http.DetectContentType(content[:n])
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return mimeType
}

func isValidDocumentType(docType model.DocumentType) bool {
	for _, valid := range model.MandatoryDocumentTypes {
		if docType == valid {
			return true
		}
	}
	return false
}
