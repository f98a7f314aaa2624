package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ciptatunaskarya/ppdb-backend/config"
	"github.com/ciptatunaskarya/ppdb-backend/internal/app/model"
	"github.com/ciptatunaskarya/ppdb-backend/internal/app/repository"
	"github.com/ciptatunaskarya/ppdb-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrRegistrationNotFound    = errors.New("registration not found")
	ErrRegistrationNotDraft    = errors.New("registration is not editable")
	ErrDocumentsIncomplete     = errors.New("mandatory documents are missing")
	ErrDeclarationNotAgreed    = errors.New("declaration has not been agreed")
	ErrRegistrationNotExpired  = errors.New("registration payment has not expired")
	ErrRegistrationNotPaid     = errors.New("registration is not awaiting verification")
	ErrVerificationNotesNeeded = errors.New("rejection requires notes")
	ErrNumberingExhausted      = errors.New("could not assign a registration number")
)

// numberingAttempts bounds retries when the unique index on the registration
// number catches a counter collision.
const numberingAttempts = 3

// RegistrationInput carries the applicant-editable biodata fields. Pointers
// distinguish "leave unchanged" from "clear" on updates.
type RegistrationInput struct {
	Program      model.Program `json:"program" binding:"required,oneof=PAKET_A PAKET_B PAKET_C"`
	FullName     string        `json:"full_name" binding:"required,max=255"`
	NIK          string        `json:"nik" binding:"omitempty,len=16,numeric"`
	NISN         string        `json:"nisn" binding:"omitempty,len=10,numeric"`
	BirthPlace   string        `json:"birth_place" binding:"max=100"`
	BirthDate    *time.Time    `json:"birth_date"`
	Gender       model.Gender  `json:"gender" binding:"omitempty,oneof=L P"`
	Religion     string        `json:"religion" binding:"max=20"`
	ContactEmail string        `json:"contact_email" binding:"omitempty,email"`
	ContactPhone string        `json:"contact_phone" binding:"omitempty,max=20"`

	PreviousSchool     string `json:"previous_school" binding:"max=255"`
	PreviousSchoolNPSN string `json:"previous_school_npsn" binding:"omitempty,len=8,numeric"`
	GraduationYear     int    `json:"graduation_year"`

	Address    string `json:"address"`
	City       string `json:"city" binding:"max=100"`
	Province   string `json:"province" binding:"max=100"`
	PostalCode string `json:"postal_code" binding:"omitempty,len=5,numeric"`

	FatherName       string `json:"father_name" binding:"max=255"`
	FatherOccupation string `json:"father_occupation" binding:"max=255"`
	MotherName       string `json:"mother_name" binding:"max=255"`
	MotherOccupation string `json:"mother_occupation" binding:"max=255"`
	ParentPhone      string `json:"parent_phone" binding:"omitempty,max=20"`

	DeclarationAgreed bool `json:"declaration_agreed"`
}

// StatusCheckResult is the public view returned by the status lookup. It
// intentionally omits everything except what the applicant needs to see.
type StatusCheckResult struct {
	RegistrationNumber string                   `json:"registration_number"`
	FullName           string                   `json:"full_name"`
	Program            model.Program            `json:"program"`
	Status             model.RegistrationStatus `json:"status"`
	SubmittedAt        *time.Time               `json:"submitted_at,omitempty"`
	VerificationNotes  string                   `json:"verification_notes,omitempty"`
	MissingDocuments   []model.DocumentType     `json:"missing_documents,omitempty"`
	Payment            *StatusCheckPayment      `json:"payment,omitempty"`
}

// StatusCheckPayment is the payment summary inside a status lookup.
type StatusCheckPayment struct {
	Status        model.PaymentStatus `json:"status"`
	VANumber      string              `json:"va_number,omitempty"`
	PaymentMethod model.PaymentMethod `json:"payment_method,omitempty"`
	TotalAmount   int64               `json:"total_amount"`
	ExpiresAt     *time.Time          `json:"expires_at,omitempty"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
}

// DashboardStats aggregates admission progress for the staff dashboard.
type DashboardStats struct {
	TotalRegistrations int64                              `json:"total_registrations"`
	ByStatus           map[model.RegistrationStatus]int64 `json:"by_status"`
	AwaitingPayment    int64                              `json:"awaiting_payment"`
	AwaitingReview     int64                              `json:"awaiting_review"`
	UnreadNotifications int64                             `json:"unread_notifications"`
}

// BulkVerifyResult reports per-outcome counts of a bulk verification.
type BulkVerifyResult struct {
	Processed int      `json:"processed"`
	Skipped   int      `json:"skipped"`
	Failed    []string `json:"failed,omitempty"`
}

type RegistrationService interface {
	CreateDraft(input *RegistrationInput) (*model.Registration, error)
	UpdateDraft(id string, input *RegistrationInput) (*model.Registration, error)
	GetRegistration(id string) (*model.Registration, error)
	Submit(id string) (*model.Registration, error)
	Resubmit(id string) (*model.Registration, error)
	CheckStatus(number, identifier string) (*StatusCheckResult, error)

	List(filter repository.RegistrationListFilter) ([]model.Registration, int64, error)
	Verify(id string, staffID uint, approve bool, notes string) (*model.Registration, error)
	BulkVerify(ids []string, staffID uint, approve bool, notes string) (*BulkVerifyResult, error)
	GetDashboardStats() (*DashboardStats, error)

	MissingDocumentTypes(reg *model.Registration) []model.DocumentType
	CleanupStaleDrafts() (int64, error)
}

type registrationService struct {
	repo      repository.RegistrationRepository
	docRepo   repository.DocumentRepository
	notifRepo repository.NotificationRepository
	notifier  NotificationService
	cfg       *config.Config
	db        *gorm.DB
}

func NewRegistrationService(
	repo repository.RegistrationRepository,
	docRepo repository.DocumentRepository,
	notifRepo repository.NotificationRepository,
	notifier NotificationService,
	cfg *config.Config,
	db *gorm.DB,
) RegistrationService {
	return &registrationService{
		repo:      repo,
		docRepo:   docRepo,
		notifRepo: notifRepo,
		notifier:  notifier,
		cfg:       cfg,
		db:        db,
	}
}

func (s *registrationService) CreateDraft(input *RegistrationInput) (*model.Registration, error) {
	reg := &model.Registration{
		Status:       model.StatusDraft,
		AcademicYear: s.cfg.Registration.AcademicYear,
	}
	applyInput(reg, input)

	if err := s.repo.Create(reg); err != nil {
		return nil, fmt.Errorf("failed to create registration: %w", err)
	}

	logger.Info("Registration draft created", map[string]interface{}{
		"registration_id": reg.ID,
		"program":         reg.Program,
	})
	return reg, nil
}

func (s *registrationService) UpdateDraft(id string, input *RegistrationInput) (*model.Registration, error) {
	reg, err := s.repo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, err
	}

	if reg.Status != model.StatusDraft {
		return nil, ErrRegistrationNotDraft
	}

	applyInput(reg, input)
	if err := s.repo.Update(reg); err != nil {
		return nil, fmt.Errorf("failed to update registration: %w", err)
	}

	return reg, nil
}

func (s *registrationService) GetRegistration(id string) (*model.Registration, error) {
	reg, err := s.repo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, err
	}
	return reg, nil
}

// Submit moves a draft to SUBMITTED and assigns its registration number. The
// per-year counter row is locked for the duration of the transaction, so
// numbers are gapless and strictly sequential even under concurrent submits.
// The unique index on the number is the backstop; collisions retry.
func (s *registrationService) Submit(id string) (*model.Registration, error) {
	year := s.admissionYear()

	var submitted *model.Registration
	var lastErr error

	for attempt := 0; attempt < numberingAttempts; attempt++ {
		submitted = nil
		lastErr = s.db.Transaction(func(tx *gorm.DB) error {
			var reg model.Registration
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Preload("Documents").
				Where("id = ?", id).
				First(&reg).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrRegistrationNotFound
				}
				return err
			}

			if reg.Status != model.StatusDraft {
				return ErrRegistrationNotDraft
			}
			if !reg.DeclarationAgreed {
				return ErrDeclarationNotAgreed
			}
			if missing := missingDocuments(reg.Documents); len(missing) > 0 {
				return ErrDocumentsIncomplete
			}

			number, err := nextRegistrationNumber(tx, s.cfg.Registration.NumberPrefix, year)
			if err != nil {
				return err
			}

			now := time.Now()
			reg.RegistrationNumber = number
			reg.Status = model.StatusSubmitted
			reg.SubmittedAt = &now
			if reg.DeclarationAgreedAt == nil {
				reg.DeclarationAgreedAt = &now
			}

			if err := tx.Save(&reg).Error; err != nil {
				return err
			}

			submitted = &reg
			return nil
		})

		if lastErr == nil {
			break
		}
		if !isDuplicateKeyError(lastErr) {
			return nil, lastErr
		}
		logger.Warn("Registration number collision, retrying", map[string]interface{}{
			"registration_id": id,
			"attempt":         attempt + 1,
		})
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrNumberingExhausted, lastErr)
	}

	logger.Info("Registration submitted", map[string]interface{}{
		"registration_id":     submitted.ID,
		"registration_number": submitted.RegistrationNumber,
	})

	if s.notifier != nil {
		s.notifier.NotifyRegistrationSubmitted(submitted)
	}
	return submitted, nil
}

// Resubmit reopens a registration whose payment lapsed. The number assigned
// at first submission is kept.
func (s *registrationService) Resubmit(id string) (*model.Registration, error) {
	var resubmitted *model.Registration

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var reg model.Registration
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&reg).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRegistrationNotFound
			}
			return err
		}

		if reg.Status != model.StatusPaymentExpired {
			return ErrRegistrationNotExpired
		}

		now := time.Now()
		reg.Status = model.StatusSubmitted
		reg.SubmittedAt = &now
		if err := tx.Save(&reg).Error; err != nil {
			return err
		}

		resubmitted = &reg
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Registration resubmitted", map[string]interface{}{
		"registration_id":     resubmitted.ID,
		"registration_number": resubmitted.RegistrationNumber,
	})
	return resubmitted, nil
}

func (s *registrationService) CheckStatus(number, identifier string) (*StatusCheckResult, error) {
	number = strings.TrimSpace(number)
	identifier = strings.TrimSpace(identifier)
	if number == "" || identifier == "" {
		return nil, ErrRegistrationNotFound
	}

	// Both pieces must match the same row. Registration numbers are
	// sequential, so a number alone must never expose applicant data.
	reg, err := s.repo.FindByNumberAndIdentity(number, identifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, err
	}

	result := &StatusCheckResult{
		RegistrationNumber: reg.RegistrationNumber,
		FullName:           reg.FullName,
		Program:            reg.Program,
		Status:             reg.Status,
		SubmittedAt:        reg.SubmittedAt,
	}
	if reg.Status == model.StatusRejected {
		result.VerificationNotes = reg.VerificationNotes
	}
	if reg.Status == model.StatusDraft {
		result.MissingDocuments = missingDocuments(reg.Documents)
	}
	if reg.Payment != nil {
		result.Payment = &StatusCheckPayment{
			Status:        reg.Payment.Status,
			VANumber:      reg.Payment.VANumber,
			PaymentMethod: reg.Payment.PaymentMethod,
			TotalAmount:   reg.Payment.TotalAmount,
			ExpiresAt:     reg.Payment.ExpiresAt,
			PaidAt:        reg.Payment.PaidAt,
		}
	}
	return result, nil
}

func (s *registrationService) List(filter repository.RegistrationListFilter) ([]model.Registration, int64, error) {
	return s.repo.List(filter)
}

// Verify records a staff decision on a PAID registration. Rejection requires
// notes telling the applicant why.
func (s *registrationService) Verify(id string, staffID uint, approve bool, notes string) (*model.Registration, error) {
	if !approve && strings.TrimSpace(notes) == "" {
		return nil, ErrVerificationNotesNeeded
	}

	var verified *model.Registration

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var reg model.Registration
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&reg).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRegistrationNotFound
			}
			return err
		}

		if reg.Status != model.StatusPaid {
			return ErrRegistrationNotPaid
		}

		now := time.Now()
		if approve {
			reg.Status = model.StatusVerified
		} else {
			reg.Status = model.StatusRejected
		}
		reg.VerifiedAt = &now
		reg.VerifiedByID = &staffID
		reg.VerificationNotes = strings.TrimSpace(notes)

		if err := tx.Save(&reg).Error; err != nil {
			return err
		}

		verified = &reg
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Registration verification recorded", map[string]interface{}{
		"registration_id":     verified.ID,
		"registration_number": verified.RegistrationNumber,
		"status":              verified.Status,
		"staff_id":            staffID,
	})

	if verified.Status == model.StatusVerified && s.notifier != nil {
		s.notifier.NotifyRegistrationVerified(verified)
	}
	return verified, nil
}

// BulkVerify applies one decision to every PAID registration in the list.
// Rejection carries the same no-notes-no-reject rule as a single
// verification. Registrations in any other state are skipped, not failed.
func (s *registrationService) BulkVerify(ids []string, staffID uint, approve bool, notes string) (*BulkVerifyResult, error) {
	if !approve && strings.TrimSpace(notes) == "" {
		return nil, ErrVerificationNotesNeeded
	}

	result := &BulkVerifyResult{}

	for _, id := range ids {
		_, err := s.Verify(id, staffID, approve, notes)
		switch {
		case err == nil:
			result.Processed++
		case errors.Is(err, ErrRegistrationNotPaid), errors.Is(err, ErrRegistrationNotFound):
			result.Skipped++
		default:
			result.Failed = append(result.Failed, id)
			logger.Error("Bulk verification failed for registration", err, map[string]interface{}{
				"registration_id": id,
			})
		}
	}

	logger.Info("Bulk verification finished", map[string]interface{}{
		"approve":   approve,
		"processed": result.Processed,
		"skipped":   result.Skipped,
		"failed":    len(result.Failed),
		"staff_id":  staffID,
	})
	return result, nil
}

func (s *registrationService) GetDashboardStats() (*DashboardStats, error) {
	counts, err := s.repo.CountByStatus()
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{ByStatus: counts}
	for _, count := range counts {
		stats.TotalRegistrations += count
	}
	stats.AwaitingPayment = counts[model.StatusSubmitted]
	stats.AwaitingReview = counts[model.StatusPaid]

	if s.notifRepo != nil {
		unread, err := s.notifRepo.CountUnread()
		if err != nil {
			return nil, err
		}
		stats.UnreadNotifications = unread
	}
	return stats, nil
}

func (s *registrationService) MissingDocumentTypes(reg *model.Registration) []model.DocumentType {
	return missingDocuments(reg.Documents)
}

// CleanupStaleDrafts deletes drafts untouched past the retention window. Run
// from the scheduler.
func (s *registrationService) CleanupStaleDrafts() (int64, error) {
	retention := time.Duration(s.cfg.Registration.DraftRetentionDays) * 24 * time.Hour
	return s.repo.DeleteStaleDrafts(time.Now().Add(-retention))
}

// admissionYear derives the numbering year from the configured academic
// year. Admission is for the year the intake starts, so "2025/2026" numbers
// as 2026. Falls back to next calendar year when the config is unusable.
func (s *registrationService) admissionYear() int {
	if parts := strings.SplitN(s.cfg.Registration.AcademicYear, "/", 2); len(parts) == 2 {
		if year, err := strconv.Atoi(parts[1]); err == nil && year > 2000 {
			return year
		}
	}
	return time.Now().Year() + 1
}

// nextRegistrationNumber takes the next number from the year's counter row,
// held under a FOR UPDATE lock until the caller's transaction commits.
func nextRegistrationNumber(tx *gorm.DB, prefix string, year int) (string, error) {
	var counter model.RegistrationCounter
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("year = ?", year).
		First(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		counter = model.RegistrationCounter{Year: year}
		if err := tx.Create(&counter).Error; err != nil {
			return "", fmt.Errorf("failed to create counter: %w", err)
		}
	} else if err != nil {
		return "", fmt.Errorf("failed to lock counter: %w", err)
	}

	counter.LastNumber++
	if err := tx.Model(&model.RegistrationCounter{}).
		Where("year = ?", year).
		Update("last_number", counter.LastNumber).Error; err != nil {
		return "", fmt.Errorf("failed to advance counter: %w", err)
	}

	return fmt.Sprintf("%s-%d-%05d", prefix, year, counter.LastNumber), nil
}

func missingDocuments(docs []model.Document) []model.DocumentType {
	present := make(map[model.DocumentType]bool, len(docs))
	for _, doc := range docs {
		present[doc.DocumentType] = true
	}

	var missing []model.DocumentType
	for _, required := range model.MandatoryDocumentTypes {
		if !present[required] {
			missing = append(missing, required)
		}
	}
	return missing
}

func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique failed")
}

func applyInput(reg *model.Registration, input *RegistrationInput) {
	reg.Program = input.Program
	reg.FullName = input.FullName
	reg.NIK = input.NIK
	reg.NISN = input.NISN
	reg.BirthPlace = input.BirthPlace
	reg.BirthDate = input.BirthDate
	reg.Gender = input.Gender
	reg.Religion = input.Religion
	reg.ContactEmail = input.ContactEmail
	reg.ContactPhone = input.ContactPhone
	reg.PreviousSchool = input.PreviousSchool
	reg.PreviousSchoolNPSN = input.PreviousSchoolNPSN
	reg.GraduationYear = input.GraduationYear
	reg.Address = input.Address
	reg.City = input.City
	reg.Province = input.Province
	reg.PostalCode = input.PostalCode
	reg.FatherName = input.FatherName
	reg.FatherOccupation = input.FatherOccupation
	reg.MotherName = input.MotherName
	reg.MotherOccupation = input.MotherOccupation
	reg.ParentPhone = input.ParentPhone

	if input.DeclarationAgreed && !reg.DeclarationAgreed {
		now := time.Now()
		reg.DeclarationAgreedAt = &now
	}
	reg.DeclarationAgreed = input.DeclarationAgreed
}
