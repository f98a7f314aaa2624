package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationRegistrationSubmitted NotificationType = "REGISTRATION_SUBMITTED"
	NotificationPaymentReceived       NotificationType = "PAYMENT_RECEIVED"
	NotificationRegistrationVerified  NotificationType = "REGISTRATION_VERIFIED"
)

// Notification is a staff-facing event generated when a registration changes
// state. Persisted for the dashboard and broadcast on the websocket feed.
type Notification struct {
	ID             string           `gorm:"type:char(36);primarykey" json:"id"`
	Type           NotificationType `gorm:"type:varchar(40);not null;index" json:"type"`
	RegistrationID string           `gorm:"type:char(36);index" json:"registration_id"`
	Title          string           `gorm:"type:varchar(255)" json:"title"`
	Message        string           `gorm:"type:text" json:"message"`
	IsRead         bool             `gorm:"default:false;index" json:"is_read"`
	CreatedAt      time.Time        `gorm:"index" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
