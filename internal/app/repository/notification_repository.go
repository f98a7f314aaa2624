package repository

import (
	"github.com/ciptatunaskarya/ppdb-backend/internal/app/model"
	"github.com/ciptatunaskarya/ppdb-backend/pkg/logger"
	"gorm.io/gorm"
)

type NotificationRepository interface {
	Create(notification *model.Notification) error
	FindRecent(limit int) ([]model.Notification, error)
	CountUnread() (int64, error)
	MarkAllRead() error
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(notification *model.Notification) error {
	if err := r.db.Create(notification).Error; err != nil {
		logger.Error("Failed to create notification in database", err, map[string]interface{}{
			"type":            notification.Type,
			"registration_id": notification.RegistrationID,
		})
		return err
	}
	return nil
}

func (r *notificationRepository) FindRecent(limit int) ([]model.Notification, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var notifications []model.Notification
	if err := r.db.Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error; err != nil {
		logger.Error("Failed to find recent notifications in database", err, nil)
		return nil, err
	}
	return notifications, nil
}

func (r *notificationRepository) CountUnread() (int64, error) {
	var count int64
	if err := r.db.Model(&model.Notification{}).
		Where("is_read = ?", false).
		Count(&count).Error; err != nil {
		logger.Error("Failed to count unread notifications in database", err, nil)
		return 0, err
	}
	return count, nil
}

func (r *notificationRepository) MarkAllRead() error {
	if err := r.db.Model(&model.Notification{}).
		Where("is_read = ?", false).
		Update("is_read", true).Error; err != nil {
		logger.Error("Failed to mark notifications read in database", err, nil)
		return err
	}
	return nil
}
