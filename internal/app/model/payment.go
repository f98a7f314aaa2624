package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentStatus string // gateway-reconciled payment state
type PaymentMethod string // virtual account bank

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusExpired  PaymentStatus = "EXPIRED"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"

	MethodVABCA     PaymentMethod = "VA_BCA"
	MethodVABNI     PaymentMethod = "VA_BNI"
	MethodVABRI     PaymentMethod = "VA_BRI"
	MethodVAMandiri PaymentMethod = "VA_MANDIRI"
	MethodVAPermata PaymentMethod = "VA_PERMATA"
)

// IsTerminal reports whether no further webhook processing may change the
// payment. PAID and REFUNDED rows are frozen.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusPaid || s == PaymentStatusRefunded
}

// Payment is the single registration-fee transaction of a registration.
// Status moves only through verified webhook notifications or the expiry job.
type Payment struct {
	ID             string `gorm:"type:char(36);primarykey" json:"id"`
	RegistrationID string `gorm:"type:char(36);not null;uniqueIndex:idx_payments_registration" json:"registration_id"`

	GatewayOrderID       string        `gorm:"type:varchar(100);not null;uniqueIndex:idx_payments_order_id" json:"gateway_order_id"`
	GatewayTransactionID string        `gorm:"type:varchar(100);index" json:"gateway_transaction_id,omitempty"`
	VANumber             string        `gorm:"type:varchar(50);index" json:"va_number,omitempty"`
	PaymentMethod        PaymentMethod `gorm:"type:varchar(20)" json:"payment_method,omitempty"`

	Amount      int64 `gorm:"not null" json:"amount"` // whole Rupiah
	AdminFee    int64 `gorm:"not null;default:0" json:"admin_fee"`
	TotalAmount int64 `gorm:"not null" json:"total_amount"` // derived, recomputed on save

	Status PaymentStatus `gorm:"type:varchar(20);default:'PENDING';index:idx_payments_status" json:"status"`

	PaidAt    *time.Time `json:"paid_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"` // nil means no expiry

	GatewayResponse string `gorm:"type:jsonb" json:"gateway_response,omitempty"` // raw gateway payload for debugging

	CreatedAt time.Time `gorm:"index:idx_payments_status" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Registration Registration `gorm:"foreignKey:RegistrationID;constraint:OnDelete:RESTRICT" json:"-"`
	Logs         []PaymentLog `gorm:"foreignKey:PaymentID;constraint:OnDelete:CASCADE" json:"logs,omitempty"`
}

func (Payment) TableName() string {
	return "payments"
}

// BeforeSave recomputes the derived total so amount and admin fee can never
// drift from what is stored.
func (p *Payment) BeforeSave(tx *gorm.DB) error {
	p.TotalAmount = p.Amount + p.AdminFee
	return nil
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
