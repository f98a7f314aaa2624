package service

import (
	"testing"

	"github.com/ciptatunaskarya/ppdb-backend/internal/app/model"
	"github.com/ciptatunaskarya/ppdb-backend/internal/app/repository"
	"github.com/ciptatunaskarya/ppdb-backend/internal/db"
	"github.com/ciptatunaskarya/ppdb-backend/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupAuthServiceTest(t *testing.T) (*gorm.DB, AuthService) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	return testDB, NewAuthService(repository.NewUserRepository(testDB), newTestConfig())
}

func createStaff(t *testing.T, testDB *gorm.DB, email, password string, active bool) *model.User {
	t.Helper()
	hash, err := util.HashPassword(password)
	require.NoError(t, err)

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		Name:         "Petugas PPDB",
		Role:         model.RoleStaff,
		IsActive:     active,
	}
	require.NoError(t, testDB.Create(user).Error)
	return user
}

func TestAuthService_Login(t *testing.T) {
	testDB, svc := setupAuthServiceTest(t)
	createStaff(t, testDB, "staff@pkbm.sch.id", "rahasia123", true)

	user, tokens, err := svc.Login("staff@pkbm.sch.id", "rahasia123")
	require.NoError(t, err)
	assert.Equal(t, "staff@pkbm.sch.id", user.Email)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)

	claims, err := util.ValidateToken(tokens.AccessToken, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "staff", claims.Role)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	testDB, svc := setupAuthServiceTest(t)
	createStaff(t, testDB, "staff@pkbm.sch.id", "rahasia123", true)

	_, _, err := svc.Login("staff@pkbm.sch.id", "salah")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// An unknown email produces the same error as a wrong password
	_, _, err = svc.Login("ghost@pkbm.sch.id", "rahasia123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_Login_InactiveAccount(t *testing.T) {
	testDB, svc := setupAuthServiceTest(t)
	createStaff(t, testDB, "former@pkbm.sch.id", "rahasia123", false)

	_, _, err := svc.Login("former@pkbm.sch.id", "rahasia123")
	assert.ErrorIs(t, err, ErrAccountInactive)
}

func TestAuthService_RefreshTokens(t *testing.T) {
	testDB, svc := setupAuthServiceTest(t)
	user := createStaff(t, testDB, "staff@pkbm.sch.id", "rahasia123", true)

	_, tokens, err := svc.Login("staff@pkbm.sch.id", "rahasia123")
	require.NoError(t, err)

	refreshed, err := svc.RefreshTokens(tokens.RefreshToken)
	require.NoError(t, err)
	claims, err := util.ValidateToken(refreshed.AccessToken, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	// Deactivation blocks refresh
	require.NoError(t, testDB.Model(user).Update("is_active", false).Error)
	_, err = svc.RefreshTokens(tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrAccountInactive)

	_, err = svc.RefreshTokens("garbage")
	assert.Error(t, err)
}
