package service

import (
	"bytes"
	"fmt"
	"time"

	"github.com/ciptatunaskarya/ppdb-backend/internal/app/model"
	"github.com/ciptatunaskarya/ppdb-backend/internal/app/repository"
	"github.com/ciptatunaskarya/ppdb-backend/pkg/logger"
	"github.com/xuri/excelize/v2"
)

// ExportService produces the registrations spreadsheet staff download from
// the dashboard.
type ExportService interface {
	ExportRegistrations(filter repository.RegistrationListFilter) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo repository.RegistrationRepository
}

func NewExportService(repo repository.RegistrationRepository) ExportService {
	return &exportService{repo: repo}
}

var exportHeaders = []string{
	"No",
	"Nomor Pendaftaran",
	"Nama Lengkap",
	"NIK",
	"NISN",
	"Program",
	"Jenis Kelamin",
	"Tempat Lahir",
	"Tanggal Lahir",
	"Email",
	"No. HP",
	"No. HP Orang Tua",
	"Sekolah Asal",
	"Kota",
	"Provinsi",
	"Status",
	"Status Pembayaran",
	"Tanggal Daftar",
	"Tanggal Verifikasi",
	"Catatan",
}

// ExportRegistrations writes every registration matching the filter into an
// xlsx workbook. Pagination is bypassed; an export is always complete.
func (s *exportService) ExportRegistrations(filter repository.RegistrationListFilter) (*bytes.Buffer, string, error) {
	filter.Page = 1
	filter.Limit = 100

	var all []model.Registration
	for {
		page, total, err := s.repo.List(filter)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load registrations: %w", err)
		}
		all = append(all, page...)
		if int64(len(all)) >= total || len(page) == 0 {
			break
		}
		filter.Page++
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Pendaftar"
	f.SetSheetName(f.GetSheetName(0), sheet)

	for col, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	for i, reg := range all {
		row := i + 2
		values := []interface{}{
			i + 1,
			reg.RegistrationNumber,
			reg.FullName,
			reg.NIK,
			reg.NISN,
			string(reg.Program),
			string(reg.Gender),
			reg.BirthPlace,
			formatDate(reg.BirthDate),
			reg.ContactEmail,
			reg.ContactPhone,
			reg.ParentPhone,
			reg.PreviousSchool,
			reg.City,
			reg.Province,
			string(reg.Status),
			paymentStatusCell(reg.Payment),
			formatDate(reg.SubmittedAt),
			formatDate(reg.VerifiedAt),
			reg.VerificationNotes,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(sheet, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("failed to write workbook: %w", err)
	}

	filename := fmt.Sprintf("pendaftar-%s.xlsx", time.Now().Format("20060102-150405"))

	logger.Info("Registrations exported", map[string]interface{}{
		"count":    len(all),
		"filename": filename,
	})
	return buf, filename, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func paymentStatusCell(payment *model.Payment) string {
	if payment == nil {
		return ""
	}
	return string(payment.Status)
}
