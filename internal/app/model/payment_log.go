package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentEventType string

const (
	EventCreated         PaymentEventType = "CREATED"
	EventWebhookReceived PaymentEventType = "WEBHOOK_RECEIVED"
	EventStatusChanged   PaymentEventType = "STATUS_CHANGED"
	EventError           PaymentEventType = "ERROR"
)

// PaymentLog is the append-only audit trail of every payment event. Rows are
// never updated or deleted (compliance and incident investigation).
type PaymentLog struct {
	ID        string           `gorm:"type:char(36);primarykey" json:"id"`
	PaymentID string           `gorm:"type:char(36);not null;index:idx_payment_logs_payment" json:"payment_id"`
	EventType PaymentEventType `gorm:"type:varchar(30);not null;index:idx_payment_logs_event" json:"event_type"`

	OldStatus string `gorm:"type:varchar(20)" json:"old_status,omitempty"`
	NewStatus string `gorm:"type:varchar(20)" json:"new_status,omitempty"`

	// SignatureValid is nil for events that carry no signature (CREATED).
	SignatureValid *bool `json:"signature_valid,omitempty"`

	RequestData  string `gorm:"type:jsonb" json:"request_data,omitempty"`
	ErrorMessage string `gorm:"type:text" json:"error_message,omitempty"`

	IPAddress string `gorm:"type:varchar(45)" json:"ip_address,omitempty"`
	UserAgent string `gorm:"type:text" json:"user_agent,omitempty"`

	CreatedAt time.Time `gorm:"index:idx_payment_logs_payment;index:idx_payment_logs_event" json:"created_at"`

	Payment Payment `gorm:"foreignKey:PaymentID" json:"-"`
}

func (PaymentLog) TableName() string {
	return "payment_logs"
}

func (l *PaymentLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
