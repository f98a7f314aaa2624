package repository

import (
	"time"

	"github.com/ciptatunaskarya/ppdb-backend/internal/app/model"
	"github.com/ciptatunaskarya/ppdb-backend/pkg/logger"
	"gorm.io/gorm"
)

// RegistrationListFilter narrows admin list queries.
type RegistrationListFilter struct {
	Status       model.RegistrationStatus
	Program      model.Program
	AcademicYear string
	Search       string // matched against registration number, full name, NIK
	Page         int
	Limit        int
}

type RegistrationRepository interface {
	Create(reg *model.Registration) error
	FindByID(id string) (*model.Registration, error)
	FindByRegistrationNumber(number string) (*model.Registration, error)
	FindByNumberAndIdentity(number, identifier string) (*model.Registration, error)
	List(filter RegistrationListFilter) ([]model.Registration, int64, error)
	Update(reg *model.Registration) error
	CountByStatus() (map[model.RegistrationStatus]int64, error)
	DeleteStaleDrafts(before time.Time) (int64, error)
}

type registrationRepository struct {
	db *gorm.DB
}

func NewRegistrationRepository(db *gorm.DB) RegistrationRepository {
	return &registrationRepository{db: db}
}

func (r *registrationRepository) preloadRegistration() *gorm.DB {
	return r.db.Preload("Documents").Preload("Payment").Preload("VerifiedBy")
}

func (r *registrationRepository) Create(reg *model.Registration) error {
	logger.Debug("Creating registration in database", map[string]interface{}{
		"full_name": reg.FullName,
		"program":   reg.Program,
	})

	if err := r.db.Create(reg).Error; err != nil {
		logger.Error("Failed to create registration in database", err, map[string]interface{}{
			"full_name": reg.FullName,
			"program":   reg.Program,
		})
		return err
	}

	logger.Debug("Registration created in database", map[string]interface{}{
		"registration_id": reg.ID,
		"status":          reg.Status,
	})
	return nil
}

func (r *registrationRepository) FindByID(id string) (*model.Registration, error) {
	logger.Debug("Finding registration by ID in database", map[string]interface{}{
		"registration_id": id,
	})

	var reg model.Registration
	if err := r.preloadRegistration().Where("id = ?", id).First(&reg).Error; err != nil {
		logger.Error("Failed to find registration by ID in database", err, map[string]interface{}{
			"registration_id": id,
		})
		return nil, err
	}

	return &reg, nil
}

func (r *registrationRepository) FindByRegistrationNumber(number string) (*model.Registration, error) {
	logger.Debug("Finding registration by number in database", map[string]interface{}{
		"registration_number": number,
	})

	var reg model.Registration
	if err := r.preloadRegistration().
		Where("registration_number = ?", number).
		First(&reg).Error; err != nil {
		logger.Error("Failed to find registration by number in database", err, map[string]interface{}{
			"registration_number": number,
		})
		return nil, err
	}

	return &reg, nil
}

// FindByNumberAndIdentity resolves a registration only when the number and a
// personal identifier (NIK, NISN, email or phone) match the same row. Email
// matching is case-insensitive.
func (r *registrationRepository) FindByNumberAndIdentity(number, identifier string) (*model.Registration, error) {
	logger.Debug("Finding registration by number and identity in database", map[string]interface{}{
		"registration_number": number,
	})

	var reg model.Registration
	err := r.preloadRegistration().
		Where(
			"registration_number = ? AND (nik = ? OR nisn = ? OR LOWER(contact_email) = LOWER(?) OR contact_phone = ? OR parent_phone = ?)",
			number, identifier, identifier, identifier, identifier, identifier,
		).
		First(&reg).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			logger.Error("Failed to find registration by number and identity in database", err, map[string]interface{}{
				"registration_number": number,
			})
		}
		return nil, err
	}

	return &reg, nil
}

func (r *registrationRepository) List(filter RegistrationListFilter) ([]model.Registration, int64, error) {
	logger.Debug("Listing registrations in database", map[string]interface{}{
		"status":  filter.Status,
		"program": filter.Program,
		"page":    filter.Page,
	})

	query := r.db.Model(&model.Registration{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Program != "" {
		query = query.Where("program = ?", filter.Program)
	}
	if filter.AcademicYear != "" {
		query = query.Where("academic_year = ?", filter.AcademicYear)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where(
			"registration_number LIKE ? OR full_name LIKE ? OR nik LIKE ?",
			like, like, like,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		logger.Error("Failed to count registrations in database", err, nil)
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var regs []model.Registration
	if err := query.
		Preload("Documents").Preload("Payment").Preload("VerifiedBy").
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&regs).Error; err != nil {
		logger.Error("Failed to list registrations in database", err, nil)
		return nil, 0, err
	}

	logger.Debug("Registrations listed in database", map[string]interface{}{
		"count": len(regs),
		"total": total,
	})
	return regs, total, nil
}

func (r *registrationRepository) Update(reg *model.Registration) error {
	logger.Debug("Updating registration in database", map[string]interface{}{
		"registration_id": reg.ID,
		"status":          reg.Status,
	})

	if err := r.db.Save(reg).Error; err != nil {
		logger.Error("Failed to update registration in database", err, map[string]interface{}{
			"registration_id": reg.ID,
		})
		return err
	}

	return nil
}

func (r *registrationRepository) CountByStatus() (map[model.RegistrationStatus]int64, error) {
	logger.Debug("Counting registrations by status in database", nil)

	rows := []struct {
		Status model.RegistrationStatus
		Count  int64
	}{}
	if err := r.db.Model(&model.Registration{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		logger.Error("Failed to count registrations by status in database", err, nil)
		return nil, err
	}

	counts := make(map[model.RegistrationStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// DeleteStaleDrafts removes draft registrations untouched since the cutoff.
// Dependent documents and payments are removed by the cascade constraints.
func (r *registrationRepository) DeleteStaleDrafts(before time.Time) (int64, error) {
	logger.Debug("Deleting stale draft registrations in database", map[string]interface{}{
		"before": before,
	})

	result := r.db.Where("status = ? AND updated_at < ?", model.StatusDraft, before).
		Delete(&model.Registration{})
	if result.Error != nil {
		logger.Error("Failed to delete stale draft registrations in database", result.Error, nil)
		return 0, result.Error
	}

	logger.Info("Stale draft registrations deleted", map[string]interface{}{
		"count": result.RowsAffected,
	})
	return result.RowsAffected, nil
}
