package repository

import (
	"github.com/ciptatunaskarya/ppdb-backend/internal/app/model"
	"github.com/ciptatunaskarya/ppdb-backend/pkg/logger"
	"gorm.io/gorm"
)

type DocumentRepository interface {
	Create(doc *model.Document) error
	FindByID(id string) (*model.Document, error)
	FindByRegistrationID(registrationID string) ([]model.Document, error)
	FindByRegistrationAndType(registrationID string, docType model.DocumentType) (*model.Document, error)
	Update(doc *model.Document) error
	Delete(id string) error
}

type documentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(doc *model.Document) error {
	logger.Debug("Creating document in database", map[string]interface{}{
		"registration_id": doc.RegistrationID,
		"document_type":   doc.DocumentType,
	})

	if err := r.db.Create(doc).Error; err != nil {
		logger.Error("Failed to create document in database", err, map[string]interface{}{
			"registration_id": doc.RegistrationID,
			"document_type":   doc.DocumentType,
		})
		return err
	}

	return nil
}

func (r *documentRepository) FindByID(id string) (*model.Document, error) {
	logger.Debug("Finding document by ID in database", map[string]interface{}{
		"document_id": id,
	})

	var doc model.Document
	if err := r.db.Where("id = ?", id).First(&doc).Error; err != nil {
		logger.Error("Failed to find document by ID in database", err, map[string]interface{}{
			"document_id": id,
		})
		return nil, err
	}

	return &doc, nil
}

func (r *documentRepository) FindByRegistrationID(registrationID string) ([]model.Document, error) {
	logger.Debug("Finding documents by registration ID in database", map[string]interface{}{
		"registration_id": registrationID,
	})

	var docs []model.Document
	if err := r.db.Where("registration_id = ?", registrationID).
		Order("document_type ASC").
		Find(&docs).Error; err != nil {
		logger.Error("Failed to find documents by registration ID in database", err, map[string]interface{}{
			"registration_id": registrationID,
		})
		return nil, err
	}

	return docs, nil
}

func (r *documentRepository) FindByRegistrationAndType(registrationID string, docType model.DocumentType) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("registration_id = ? AND document_type = ?", registrationID, docType).
		First(&doc).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			logger.Error("Failed to find document by registration and type in database", err, map[string]interface{}{
				"registration_id": registrationID,
				"document_type":   docType,
			})
		}
		return nil, err
	}

	return &doc, nil
}

func (r *documentRepository) Update(doc *model.Document) error {
	logger.Debug("Updating document in database", map[string]interface{}{
		"document_id":   doc.ID,
		"document_type": doc.DocumentType,
	})

	if err := r.db.Save(doc).Error; err != nil {
		logger.Error("Failed to update document in database", err, map[string]interface{}{
			"document_id": doc.ID,
		})
		return err
	}

	return nil
}

func (r *documentRepository) Delete(id string) error {
	logger.Debug("Deleting document in database", map[string]interface{}{
		"document_id": id,
	})

	if err := r.db.Where("id = ?", id).Delete(&model.Document{}).Error; err != nil {
		logger.Error("Failed to delete document in database", err, map[string]interface{}{
			"document_id": id,
		})
		return err
	}

	return nil
}
