package service

import (
	"fmt"

	"github.com/ciptatunaskarya/ppdb-backend/internal/app/model"
	"github.com/ciptatunaskarya/ppdb-backend/internal/app/repository"
	"github.com/ciptatunaskarya/ppdb-backend/internal/websocket"
	"github.com/ciptatunaskarya/ppdb-backend/pkg/logger"
)

// NotificationService persists staff notifications and mirrors them onto the
// dashboard websocket feed. Notification failures never fail the operation
// that triggered them.
type NotificationService interface {
	GetRecent(limit int) ([]model.Notification, int64, error)
	MarkAllRead() error

	NotifyRegistrationSubmitted(reg *model.Registration)
	NotifyPaymentReceived(reg *model.Registration, payment *model.Payment)
	NotifyRegistrationVerified(reg *model.Registration)
}

type notificationService struct {
	repo repository.NotificationRepository
	hub  *websocket.Hub
}

func NewNotificationService(repo repository.NotificationRepository, hub *websocket.Hub) NotificationService {
	return &notificationService{
		repo: repo,
		hub:  hub,
	}
}

func (s *notificationService) GetRecent(limit int) ([]model.Notification, int64, error) {
	notifications, err := s.repo.FindRecent(limit)
	if err != nil {
		return nil, 0, err
	}

	unread, err := s.repo.CountUnread()
	if err != nil {
		return nil, 0, err
	}

	return notifications, unread, nil
}

func (s *notificationService) MarkAllRead() error {
	return s.repo.MarkAllRead()
}

func (s *notificationService) NotifyRegistrationSubmitted(reg *model.Registration) {
	s.emit(websocket.EventRegistrationSubmitted, &model.Notification{
		Type:           model.NotificationRegistrationSubmitted,
		RegistrationID: reg.ID,
		Title:          "Pendaftaran baru",
		Message:        fmt.Sprintf("%s mendaftar %s dengan nomor %s", reg.FullName, reg.Program, reg.RegistrationNumber),
	}, map[string]interface{}{
		"registration_id":     reg.ID,
		"registration_number": reg.RegistrationNumber,
		"full_name":           reg.FullName,
		"program":             reg.Program,
	})
}

func (s *notificationService) NotifyPaymentReceived(reg *model.Registration, payment *model.Payment) {
	s.emit(websocket.EventPaymentReceived, &model.Notification{
		Type:           model.NotificationPaymentReceived,
		RegistrationID: reg.ID,
		Title:          "Pembayaran diterima",
		Message:        fmt.Sprintf("Pembayaran %s sebesar Rp%d telah diterima", reg.RegistrationNumber, payment.TotalAmount),
	}, map[string]interface{}{
		"registration_id":     reg.ID,
		"registration_number": reg.RegistrationNumber,
		"total_amount":        payment.TotalAmount,
	})
}

func (s *notificationService) NotifyRegistrationVerified(reg *model.Registration) {
	s.emit(websocket.EventRegistrationVerified, &model.Notification{
		Type:           model.NotificationRegistrationVerified,
		RegistrationID: reg.ID,
		Title:          "Pendaftaran terverifikasi",
		Message:        fmt.Sprintf("Pendaftaran %s telah diverifikasi", reg.RegistrationNumber),
	}, map[string]interface{}{
		"registration_id":     reg.ID,
		"registration_number": reg.RegistrationNumber,
		"status":              reg.Status,
	})
}

func (s *notificationService) emit(eventType string, notification *model.Notification, payload map[string]interface{}) {
	if err := s.repo.Create(notification); err != nil {
		logger.Error("Failed to persist notification", err, map[string]interface{}{
			"type":            notification.Type,
			"registration_id": notification.RegistrationID,
		})
	}

	if s.hub != nil {
		s.hub.Broadcast(eventType, payload)
	}
}
