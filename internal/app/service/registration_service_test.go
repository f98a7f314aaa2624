package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ciptatunaskarya/ppdb-backend/config"
	"github.com/ciptatunaskarya/ppdb-backend/internal/app/model"
	"github.com/ciptatunaskarya/ppdb-backend/internal/app/repository"
	"github.com/ciptatunaskarya/ppdb-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestConfig() *config.Config {
	return &config.Config{
		Registration: config.RegistrationConfig{
			NumberPrefix:       "PPDB",
			AcademicYear:       "2025/2026",
			Fee:                500000,
			AdminFee:           0,
			PaymentExpiryHours: 0,
			DraftRetentionDays: 3,
		},
		JWT: config.JWTConfig{
			Secret:             "test-secret",
			AccessTokenExpiry:  15 * time.Minute,
			RefreshTokenExpiry: 168 * time.Hour,
		},
	}
}

func setupRegistrationServiceTest(t *testing.T) (*gorm.DB, RegistrationService) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	svc := NewRegistrationService(
		repository.NewRegistrationRepository(testDB),
		repository.NewDocumentRepository(testDB),
		repository.NewNotificationRepository(testDB),
		nil,
		newTestConfig(),
		testDB,
	)
	return testDB, svc
}

func validInput() *RegistrationInput {
	return &RegistrationInput{
		Program:           model.ProgramPaketC,
		FullName:          "Budi Santoso",
		NIK:               "3174091201050001",
		NISN:              "0051234567",
		Gender:            model.GenderMale,
		ContactEmail:      "budi@example.com",
		ContactPhone:      "081234567890",
		ParentPhone:       "081298765432",
		City:              "Jakarta Timur",
		Province:          "DKI Jakarta",
		DeclarationAgreed: true,
	}
}

func attachMandatoryDocuments(t *testing.T, testDB *gorm.DB, registrationID string) {
	t.Helper()
	for _, docType := range model.MandatoryDocumentTypes {
		require.NoError(t, testDB.Create(&model.Document{
			RegistrationID:   registrationID,
			DocumentType:     docType,
			StorageKey:       fmt.Sprintf("documents/%s/%s/file.pdf", registrationID, docType),
			OriginalFilename: "file.pdf",
			FileSize:         1024,
			MimeType:         "application/pdf",
		}).Error)
	}
}

func createSubmittable(t *testing.T, testDB *gorm.DB, svc RegistrationService, input *RegistrationInput) *model.Registration {
	t.Helper()
	reg, err := svc.CreateDraft(input)
	require.NoError(t, err)
	attachMandatoryDocuments(t, testDB, reg.ID)
	return reg
}

func TestRegistrationService_CreateDraft(t *testing.T) {
	_, svc := setupRegistrationServiceTest(t)

	reg, err := svc.CreateDraft(validInput())
	require.NoError(t, err)
	assert.NotEmpty(t, reg.ID)
	assert.Equal(t, model.StatusDraft, reg.Status)
	assert.Empty(t, reg.RegistrationNumber)
	assert.Equal(t, "2025/2026", reg.AcademicYear)
	assert.NotNil(t, reg.DeclarationAgreedAt)
}

func TestRegistrationService_UpdateDraft_OnlyWhileDraft(t *testing.T) {
	testDB, svc := setupRegistrationServiceTest(t)

	reg := createSubmittable(t, testDB, svc, validInput())

	input := validInput()
	input.FullName = "Budi S. Santoso"
	updated, err := svc.UpdateDraft(reg.ID, input)
	require.NoError(t, err)
	assert.Equal(t, "Budi S. Santoso", updated.FullName)

	_, err = svc.Submit(reg.ID)
	require.NoError(t, err)

	_, err = svc.UpdateDraft(reg.ID, input)
	assert.ErrorIs(t, err, ErrRegistrationNotDraft)
}

func TestRegistrationService_Submit_AssignsSequentialNumbers(t *testing.T) {
	testDB, svc := setupRegistrationServiceTest(t)

	for i := 1; i <= 3; i++ {
		input := validInput()
		input.NIK = fmt.Sprintf("317409120105%04d", i)
		input.ContactEmail = fmt.Sprintf("applicant%d@example.com", i)
		reg := createSubmittable(t, testDB, svc, input)

		submitted, err := svc.Submit(reg.ID)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("PPDB-2026-%05d", i), submitted.RegistrationNumber)
		assert.Equal(t, model.StatusSubmitted, submitted.Status)
		assert.NotNil(t, submitted.SubmittedAt)
	}

	// The counter row reflects the last issued number
	var counter model.RegistrationCounter
	require.NoError(t, testDB.Where("year = ?", 2026).First(&counter).Error)
	assert.Equal(t, 3, counter.LastNumber)
}

func TestRegistrationService_Submit_ConcurrentSubmissions(t *testing.T) {
	testDB, svc := setupRegistrationServiceTest(t)

	const workers = 5
	ids := make([]string, workers)
	for i := range ids {
		input := validInput()
		input.NIK = fmt.Sprintf("317409120109%04d", i+1)
		input.ContactEmail = fmt.Sprintf("race%d@example.com", i+1)
		reg := createSubmittable(t, testDB, svc, input)
		ids[i] = reg.ID
	}

	// Simultaneous submissions must each get their own number with no gaps
	// and no duplicates
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Submit(ids[i])
		}(i)
	}
	wg.Wait()

	numbers := make(map[string]bool, workers)
	for i, id := range ids {
		require.NoError(t, errs[i])
		var reg model.Registration
		require.NoError(t, testDB.Where("id = ?", id).First(&reg).Error)
		numbers[reg.RegistrationNumber] = true
	}
	require.Len(t, numbers, workers)
	for i := 1; i <= workers; i++ {
		assert.True(t, numbers[fmt.Sprintf("PPDB-2026-%05d", i)], "number %05d missing", i)
	}

	var counter model.RegistrationCounter
	require.NoError(t, testDB.Where("year = ?", 2026).First(&counter).Error)
	assert.Equal(t, workers, counter.LastNumber)
}

func TestRegistrationService_AdmissionYear(t *testing.T) {
	svc := &registrationService{cfg: newTestConfig()}

	// Numbers carry the year the intake starts, the second half of the
	// academic year
	svc.cfg.Registration.AcademicYear = "2025/2026"
	assert.Equal(t, 2026, svc.admissionYear())
	svc.cfg.Registration.AcademicYear = "2026/2027"
	assert.Equal(t, 2027, svc.admissionYear())

	// Unusable config falls back to the next calendar year
	for _, raw := range []string{"", "2026", "abcd/efgh"} {
		svc.cfg.Registration.AcademicYear = raw
		assert.Equal(t, time.Now().Year()+1, svc.admissionYear(), "config %q", raw)
	}
}

func TestRegistrationService_Submit_RequiresMandatoryDocuments(t *testing.T) {
	testDB, svc := setupRegistrationServiceTest(t)

	reg, err := svc.CreateDraft(validInput())
	require.NoError(t, err)

	// No documents at all
	_, err = svc.Submit(reg.ID)
	assert.ErrorIs(t, err, ErrDocumentsIncomplete)

	// Two out of three is still incomplete
	for _, docType := range []model.DocumentType{model.DocumentKTP, model.DocumentKK} {
		require.NoError(t, testDB.Create(&model.Document{
			RegistrationID: reg.ID,
			DocumentType:   docType,
			StorageKey:     "documents/x",
		}).Error)
	}
	_, err = svc.Submit(reg.ID)
	assert.ErrorIs(t, err, ErrDocumentsIncomplete)

	loaded, err := svc.GetRegistration(reg.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.DocumentType{model.DocumentAKTA}, svc.MissingDocumentTypes(loaded))

	require.NoError(t, testDB.Create(&model.Document{
		RegistrationID: reg.ID,
		DocumentType:   model.DocumentAKTA,
		StorageKey:     "documents/y",
	}).Error)
	_, err = svc.Submit(reg.ID)
	assert.NoError(t, err)
}

func TestRegistrationService_Submit_RequiresDeclaration(t *testing.T) {
	testDB, svc := setupRegistrationServiceTest(t)

	input := validInput()
	input.DeclarationAgreed = false
	reg := createSubmittable(t, testDB, svc, input)

	_, err := svc.Submit(reg.ID)
	assert.ErrorIs(t, err, ErrDeclarationNotAgreed)
}

func TestRegistrationService_Submit_OnlyFromDraft(t *testing.T) {
	testDB, svc := setupRegistrationServiceTest(t)

	reg := createSubmittable(t, testDB, svc, validInput())
	_, err := svc.Submit(reg.ID)
	require.NoError(t, err)

	// A second submit must not consume another number
	_, err = svc.Submit(reg.ID)
	assert.ErrorIs(t, err, ErrRegistrationNotDraft)

	var counter model.RegistrationCounter
	require.NoError(t, testDB.Where("year = ?", 2026).First(&counter).Error)
	assert.Equal(t, 1, counter.LastNumber)
}

func TestRegistrationService_Verify(t *testing.T) {
	testDB, svc := setupRegistrationServiceTest(t)

	staff := &model.User{Email: "staff@pkbm.sch.id", PasswordHash: "hash", Name: "Staff", Role: model.RoleStaff}
	require.NoError(t, testDB.Create(staff).Error)

	reg := createSubmittable(t, testDB, svc, validInput())
	_, err := svc.Submit(reg.ID)
	require.NoError(t, err)

	// Verification is only legal once paid
	_, err = svc.Verify(reg.ID, staff.ID, true, "")
	assert.ErrorIs(t, err, ErrRegistrationNotPaid)

	require.NoError(t, testDB.Model(&model.Registration{}).
		Where("id = ?", reg.ID).
		Update("status", model.StatusPaid).Error)

	verified, err := svc.Verify(reg.ID, staff.ID, true, "dokumen lengkap")
	require.NoError(t, err)
	assert.Equal(t, model.StatusVerified, verified.Status)
	assert.NotNil(t, verified.VerifiedAt)
	require.NotNil(t, verified.VerifiedByID)
	assert.Equal(t, staff.ID, *verified.VerifiedByID)
}

func TestRegistrationService_Verify_RejectRequiresNotes(t *testing.T) {
	testDB, svc := setupRegistrationServiceTest(t)

	staff := &model.User{Email: "staff@pkbm.sch.id", PasswordHash: "hash", Name: "Staff", Role: model.RoleStaff}
	require.NoError(t, testDB.Create(staff).Error)

	reg := createSubmittable(t, testDB, svc, validInput())
	_, err := svc.Submit(reg.ID)
	require.NoError(t, err)
	require.NoError(t, testDB.Model(&model.Registration{}).
		Where("id = ?", reg.ID).
		Update("status", model.StatusPaid).Error)

	_, err = svc.Verify(reg.ID, staff.ID, false, "  ")
	assert.ErrorIs(t, err, ErrVerificationNotesNeeded)

	rejected, err := svc.Verify(reg.ID, staff.ID, false, "dokumen KK tidak terbaca")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, rejected.Status)
	assert.Equal(t, "dokumen KK tidak terbaca", rejected.VerificationNotes)

	// REJECTED is terminal
	_, err = svc.Verify(reg.ID, staff.ID, true, "")
	assert.ErrorIs(t, err, ErrRegistrationNotPaid)
}

func TestRegistrationService_BulkVerify(t *testing.T) {
	testDB, svc := setupRegistrationServiceTest(t)

	staff := &model.User{Email: "admin@pkbm.sch.id", PasswordHash: "hash", Name: "Admin", Role: model.RoleAdmin}
	require.NoError(t, testDB.Create(staff).Error)

	var ids []string
	for i := 1; i <= 3; i++ {
		input := validInput()
		input.NIK = fmt.Sprintf("317409120106%04d", i)
		input.ContactEmail = fmt.Sprintf("bulk%d@example.com", i)
		reg := createSubmittable(t, testDB, svc, input)
		_, err := svc.Submit(reg.ID)
		require.NoError(t, err)
		ids = append(ids, reg.ID)
	}

	// Only the first two are paid; the third is still awaiting payment
	for _, id := range ids[:2] {
		require.NoError(t, testDB.Model(&model.Registration{}).
			Where("id = ?", id).
			Update("status", model.StatusPaid).Error)
	}
	ids = append(ids, "00000000-0000-0000-0000-000000000000")

	result, err := svc.BulkVerify(ids, staff.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 2, result.Skipped)
	assert.Empty(t, result.Failed)
}

func TestRegistrationService_BulkVerify_Reject(t *testing.T) {
	testDB, svc := setupRegistrationServiceTest(t)

	staff := &model.User{Email: "admin@pkbm.sch.id", PasswordHash: "hash", Name: "Admin", Role: model.RoleAdmin}
	require.NoError(t, testDB.Create(staff).Error)

	var ids []string
	for i := 1; i <= 2; i++ {
		input := validInput()
		input.NIK = fmt.Sprintf("317409120108%04d", i)
		input.ContactEmail = fmt.Sprintf("bulkreject%d@example.com", i)
		reg := createSubmittable(t, testDB, svc, input)
		_, err := svc.Submit(reg.ID)
		require.NoError(t, err)
		require.NoError(t, testDB.Model(&model.Registration{}).
			Where("id = ?", reg.ID).
			Update("status", model.StatusPaid).Error)
		ids = append(ids, reg.ID)
	}

	// Rejection without notes is refused before anything is touched
	_, err := svc.BulkVerify(ids, staff.ID, false, "  ")
	assert.ErrorIs(t, err, ErrVerificationNotesNeeded)

	result, err := svc.BulkVerify(ids, staff.ID, false, "Dokumen tidak terbaca")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 0, result.Skipped)

	for _, id := range ids {
		var reg model.Registration
		require.NoError(t, testDB.Where("id = ?", id).First(&reg).Error)
		assert.Equal(t, model.StatusRejected, reg.Status)
		assert.Equal(t, "Dokumen tidak terbaca", reg.VerificationNotes)
	}
}

func TestRegistrationService_Resubmit(t *testing.T) {
	testDB, svc := setupRegistrationServiceTest(t)

	reg := createSubmittable(t, testDB, svc, validInput())
	submitted, err := svc.Submit(reg.ID)
	require.NoError(t, err)

	// Not legal while still awaiting payment
	_, err = svc.Resubmit(reg.ID)
	assert.ErrorIs(t, err, ErrRegistrationNotExpired)

	require.NoError(t, testDB.Model(&model.Registration{}).
		Where("id = ?", reg.ID).
		Update("status", model.StatusPaymentExpired).Error)

	resubmitted, err := svc.Resubmit(reg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSubmitted, resubmitted.Status)
	// The original number is kept
	assert.Equal(t, submitted.RegistrationNumber, resubmitted.RegistrationNumber)
}

func TestRegistrationService_CheckStatus(t *testing.T) {
	testDB, svc := setupRegistrationServiceTest(t)

	reg := createSubmittable(t, testDB, svc, validInput())
	submitted, err := svc.Submit(reg.ID)
	require.NoError(t, err)

	require.NoError(t, testDB.Create(&model.Payment{
		RegistrationID: reg.ID,
		GatewayOrderID: "order-1",
		Amount:         500000,
		VANumber:       "8808123456789012",
		PaymentMethod:  model.MethodVABCA,
		Status:         model.PaymentStatusPending,
	}).Error)

	for _, identifier := range []string{
		"3174091201050001",
		"budi@example.com",
		"081234567890",
		"081298765432",
	} {
		result, err := svc.CheckStatus(submitted.RegistrationNumber, identifier)
		require.NoError(t, err, "identifier %q", identifier)
		assert.Equal(t, submitted.RegistrationNumber, result.RegistrationNumber)
		assert.Equal(t, model.StatusSubmitted, result.Status)
		require.NotNil(t, result.Payment)
		assert.Equal(t, "8808123456789012", result.Payment.VANumber)
		assert.EqualValues(t, 500000, result.Payment.TotalAmount)
	}

	// A correct number with a mismatched identifier reveals nothing
	_, err = svc.CheckStatus(submitted.RegistrationNumber, "nobody")
	assert.ErrorIs(t, err, ErrRegistrationNotFound)
	// Neither half works on its own
	_, err = svc.CheckStatus(submitted.RegistrationNumber, "  ")
	assert.ErrorIs(t, err, ErrRegistrationNotFound)
	_, err = svc.CheckStatus("", "3174091201050001")
	assert.ErrorIs(t, err, ErrRegistrationNotFound)
}

func TestRegistrationService_DashboardStats(t *testing.T) {
	testDB, svc := setupRegistrationServiceTest(t)

	for i := 1; i <= 2; i++ {
		input := validInput()
		input.NIK = fmt.Sprintf("317409120107%04d", i)
		input.ContactEmail = fmt.Sprintf("stats%d@example.com", i)
		reg := createSubmittable(t, testDB, svc, input)
		_, err := svc.Submit(reg.ID)
		require.NoError(t, err)
	}
	draft, err := svc.CreateDraft(validInput())
	require.NoError(t, err)
	_ = draft

	stats, err := svc.GetDashboardStats()
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.TotalRegistrations)
	assert.EqualValues(t, 2, stats.AwaitingPayment)
	assert.EqualValues(t, 0, stats.AwaitingReview)
	assert.EqualValues(t, 2, stats.ByStatus[model.StatusSubmitted])
	assert.EqualValues(t, 1, stats.ByStatus[model.StatusDraft])
}

func TestRegistrationService_CleanupStaleDrafts(t *testing.T) {
	testDB, svc := setupRegistrationServiceTest(t)

	stale, err := svc.CreateDraft(validInput())
	require.NoError(t, err)
	require.NoError(t, testDB.Model(&model.Registration{}).
		Where("id = ?", stale.ID).
		Update("updated_at", time.Now().Add(-96*time.Hour)).Error)

	fresh, err := svc.CreateDraft(validInput())
	require.NoError(t, err)

	deleted, err := svc.CleanupStaleDrafts()
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	_, err = svc.GetRegistration(stale.ID)
	assert.ErrorIs(t, err, ErrRegistrationNotFound)
	_, err = svc.GetRegistration(fresh.ID)
	assert.NoError(t, err)
}
