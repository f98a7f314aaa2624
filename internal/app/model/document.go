package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DocumentType string

const (
	DocumentKTP  DocumentType = "KTP"  // applicant/parent identity card
	DocumentKK   DocumentType = "KK"   // family card
	DocumentAKTA DocumentType = "AKTA" // birth certificate
)

// MandatoryDocumentTypes is the set a registration must have before submit.
var MandatoryDocumentTypes = []DocumentType{DocumentKTP, DocumentKK, DocumentAKTA}

// Document is one uploaded file attached to a registration. At most one per
// type; replaceable only while the registration is still a draft.
type Document struct {
	ID             string       `gorm:"type:char(36);primarykey" json:"id"`
	RegistrationID string       `gorm:"type:char(36);not null;uniqueIndex:idx_documents_reg_type" json:"registration_id"`
	DocumentType   DocumentType `gorm:"type:varchar(20);not null;uniqueIndex:idx_documents_reg_type" json:"document_type"`

	StorageKey       string `gorm:"type:varchar(500);not null" json:"-"`
	OriginalFilename string `gorm:"type:varchar(255)" json:"original_filename"`
	FileSize         int64  `json:"file_size"`
	MimeType         string `gorm:"type:varchar(100)" json:"mime_type"`
	FileURL          string `gorm:"type:varchar(500)" json:"file_url"`

	UploadedAt time.Time `gorm:"autoCreateTime" json:"uploaded_at"`

	Registration Registration `gorm:"foreignKey:RegistrationID" json:"-"`
}

func (Document) TableName() string {
	return "documents"
}

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
