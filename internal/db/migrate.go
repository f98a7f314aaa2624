package db

import (
	"github.com/ciptatunaskarya/ppdb-backend/internal/app/model"
	"github.com/ciptatunaskarya/ppdb-backend/pkg/logger"
	"github.com/ciptatunaskarya/ppdb-backend/pkg/util"
)

// Migrate runs database migrations
func Migrate() error {
	logger.Info("Running database migrations...")

	models := []interface{}{
		&model.User{},
		&model.Registration{},
		&model.RegistrationCounter{},
		&model.Document{},
		&model.Payment{},
		&model.PaymentLog{},
		&model.Notification{},
	}

	if err := DB.AutoMigrate(models...); err != nil {
		logger.Error("Failed to run migrations", err)
		return err
	}

	logger.Info("Database migrations completed successfully", map[string]interface{}{
		"models_count": len(models),
	})
	return nil
}

// SeedAdminUser creates the initial admin account if no user exists yet.
func SeedAdminUser(email, password, name string) error {
	if email == "" || password == "" {
		logger.Info("Admin seed credentials not configured, skipping")
		return nil
	}

	var count int64
	if err := DB.Model(&model.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		logger.Info("Users already exist, skipping admin seed", map[string]interface{}{
			"existing_count": count,
		})
		return nil
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		return err
	}

	admin := model.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         model.RoleAdmin,
		IsActive:     true,
	}
	if err := DB.Create(&admin).Error; err != nil {
		logger.Error("Failed to seed admin user", err)
		return err
	}

	logger.Info("Admin user seeded successfully", map[string]interface{}{
		"email": email,
	})
	return nil
}
