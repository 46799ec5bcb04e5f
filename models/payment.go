package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Payment statuses. pending is the only non-terminal status; success and
// failed are immutable once written.
const (
	PaymentStatusPending = "pending"
	PaymentStatusSuccess = "success"
	PaymentStatusFailed  = "failed"
)

// TerminalPaymentStatuses guards against double-finalizing a payment.
var TerminalPaymentStatuses = map[string]bool{
	PaymentStatusSuccess: true,
	PaymentStatusFailed:  true,
}

// Payment rows carry a partial unique index on OrderID (where status is
// pending) so "one pending payment per order" holds under concurrent
// initiations; the service-level pre-check only gives the friendlier error.
type Payment struct {
	ID                    uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID               uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:uniq_payments_pending_order,where:status = 'pending'"`
	Provider              string    `gorm:"type:varchar(32);not null"`
	ProviderTransactionID string    `gorm:"uniqueIndex;not null"`
	Amount                float64   `gorm:"type:numeric(10,2);not null"` // currency units, equals Order.TotalAmount at creation
	Currency              string    `gorm:"type:varchar(10);not null;default:'inr'"`
	Status                string    `gorm:"type:varchar(20);not null;default:'pending'"`
	Phone                 string    `gorm:"type:varchar(20)"`
	GatewayPayload        *string   `gorm:"type:jsonb"` // last raw gateway response, for audit and debugging
	SucceededAt           *time.Time
	FailedAt              *time.Time
	CreatedAt             time.Time      `gorm:"autoCreateTime"`
	UpdatedAt             time.Time      `gorm:"autoUpdateTime"`
	DeletedAt             gorm.DeletedAt `gorm:"index"`
}

// Terminal reports whether the payment has reached an immutable status.
func (p *Payment) Terminal() bool {
	return TerminalPaymentStatuses[p.Status]
}
