package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RegistrationStatus string // admission lifecycle state
type Program string            // equivalency program choice
type Gender string

const (
	StatusDraft          RegistrationStatus = "DRAFT"           // editable, not yet submitted
	StatusSubmitted      RegistrationStatus = "SUBMITTED"       // awaiting payment
	StatusPaymentExpired RegistrationStatus = "PAYMENT_EXPIRED" // payment lapsed, must resubmit
	StatusPaid           RegistrationStatus = "PAID"            // awaiting staff verification
	StatusVerified       RegistrationStatus = "VERIFIED"        // accepted
	StatusRejected       RegistrationStatus = "REJECTED"        // terminal, no resubmission

	ProgramPaketA Program = "PAKET_A" // SD equivalency
	ProgramPaketB Program = "PAKET_B" // SMP equivalency
	ProgramPaketC Program = "PAKET_C" // SMA equivalency

	GenderMale   Gender = "L"
	GenderFemale Gender = "P"
)

// Registration is one applicant's PPDB enrollment. Applicants have no user
// account; the row is tracked publicly by its UUID and, after submission, by
// its registration number plus a contact identifier.
type Registration struct {
	ID                 string             `gorm:"type:char(36);primarykey" json:"id"`
	RegistrationNumber string             `gorm:"type:varchar(30);uniqueIndex:idx_registrations_number,where:registration_number <> ''" json:"registration_number"` // empty until submitted
	AcademicYear       string             `gorm:"type:varchar(9)" json:"academic_year"` // format: 2025/2026
	Status             RegistrationStatus `gorm:"type:varchar(20);default:'DRAFT';index:idx_registrations_status" json:"status"`
	Program            Program            `gorm:"type:varchar(20)" json:"program"`

	FullName   string     `gorm:"type:varchar(255);not null" json:"full_name"`
	NIK        string     `gorm:"type:varchar(16);index" json:"nik,omitempty"`  // 16-digit national id
	NISN       string     `gorm:"type:varchar(10);index" json:"nisn,omitempty"` // 10-digit student id
	BirthPlace string     `gorm:"type:varchar(100)" json:"birth_place"`
	BirthDate  *time.Time `json:"birth_date,omitempty"`
	Gender     Gender     `gorm:"type:varchar(1)" json:"gender"`
	Religion   string     `gorm:"type:varchar(20)" json:"religion,omitempty"`

	ContactEmail string `gorm:"type:varchar(255);index" json:"contact_email"`
	ContactPhone string `gorm:"type:varchar(20);index" json:"contact_phone"`

	PreviousSchool     string `gorm:"type:varchar(255)" json:"previous_school"`
	PreviousSchoolNPSN string `gorm:"type:varchar(8)" json:"previous_school_npsn,omitempty"`
	GraduationYear     int    `json:"graduation_year"`

	Address    string `gorm:"type:text" json:"address"`
	City       string `gorm:"type:varchar(100)" json:"city"`
	Province   string `gorm:"type:varchar(100)" json:"province"`
	PostalCode string `gorm:"type:varchar(5)" json:"postal_code,omitempty"`

	FatherName       string `gorm:"type:varchar(255)" json:"father_name,omitempty"`
	FatherOccupation string `gorm:"type:varchar(255)" json:"father_occupation,omitempty"`
	MotherName       string `gorm:"type:varchar(255)" json:"mother_name,omitempty"`
	MotherOccupation string `gorm:"type:varchar(255)" json:"mother_occupation,omitempty"`
	ParentPhone      string `gorm:"type:varchar(20);index" json:"parent_phone"`

	DeclarationAgreed   bool       `json:"declaration_agreed"`
	DeclarationAgreedAt *time.Time `json:"declaration_agreed_at,omitempty"`

	SubmittedAt       *time.Time `json:"submitted_at,omitempty"`
	VerifiedAt        *time.Time `json:"verified_at,omitempty"`
	VerifiedByID      *uint      `gorm:"index" json:"verified_by_id,omitempty"`
	VerifiedBy        *User      `gorm:"foreignKey:VerifiedByID;constraint:OnDelete:SET NULL" json:"verified_by,omitempty"`
	VerificationNotes string     `gorm:"type:text" json:"verification_notes,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Documents []Document `gorm:"foreignKey:RegistrationID;constraint:OnDelete:CASCADE" json:"documents,omitempty"`
	Payment   *Payment   `gorm:"foreignKey:RegistrationID" json:"payment,omitempty"`
}

func (Registration) TableName() string {
	return "student_registrations"
}

func (r *Registration) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// RegistrationCounter serializes registration-number assignment. One row per
// admission year, locked FOR UPDATE while the next number is taken.
type RegistrationCounter struct {
	Year       int  `gorm:"primarykey" json:"year"`
	LastNumber int  `gorm:"not null;default:0" json:"last_number"`
}

func (RegistrationCounter) TableName() string {
	return "registration_counters"
}
