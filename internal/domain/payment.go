package domain

import (
	"encoding/json"
	"time"
)

// PaymentOrderStatus is the order state machine: PENDING -> SUCCESS or
// PENDING -> FAILED. SUCCESS is terminal and means the wallet was credited
// exactly once. A FAILED order may still be re-verified (a late gateway
// success flips it), but is never reset to PENDING.
type PaymentOrderStatus string

const (
	OrderPending PaymentOrderStatus = "PENDING"
	OrderSuccess PaymentOrderStatus = "SUCCESS"
	OrderFailed  PaymentOrderStatus = "FAILED"
)

// Payment order purposes.
const (
	PurposeWalletTopup = "WALLET_TOPUP"
)

// PaymentOrder Model. One attempt to fund the wallet through the gateway.
// GatewayOrderID is generated locally before the gateway call and doubles as
// the idempotency / webhook correlation key, so it must not be guessable.
type PaymentOrder struct {
	ID               uint               `gorm:"primaryKey"`
	GatewayOrderID   string             `gorm:"uniqueIndex;not null"`
	CustomerID       uint               `gorm:"index;not null"`
	Amount           int64              `gorm:"not null"` // paise
	Purpose          string             `gorm:"not null;default:WALLET_TOPUP"`
	Status           PaymentOrderStatus `gorm:"type:varchar(10);not null;default:PENDING;index"`
	GatewayPaymentID *string
	PaymentMethod    *string
	Metadata         json.RawMessage `gorm:"type:json"` // raw gateway response, parsed through typed structs
	CompletedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// MonthlyPaymentStatus: PENDING -> PAID or PENDING -> OVERDUE, both terminal
// for the period. Tracking/collections metadata only; the wallet balance is
// what actually gates deliveries.
type MonthlyPaymentStatus string

const (
	MonthlyPending MonthlyPaymentStatus = "PENDING"
	MonthlyPaid    MonthlyPaymentStatus = "PAID"
	MonthlyOverdue MonthlyPaymentStatus = "OVERDUE"
)

// MonthlyPayment Model. Exactly one per (customer, year, month), enforced by
// the composite unique index; the generation step is idempotent against it.
type MonthlyPayment struct {
	ID         uint                 `gorm:"primaryKey"`
	CustomerID uint                 `gorm:"not null;uniqueIndex:idx_monthly_payment_period,priority:1"`
	Year       int                  `gorm:"not null;uniqueIndex:idx_monthly_payment_period,priority:2"`
	Month      int                  `gorm:"not null;uniqueIndex:idx_monthly_payment_period,priority:3"` // 1-12
	TotalCost  int64                `gorm:"not null"`                                                   // paise for the full month
	AmountDue  int64                `gorm:"not null"`
	AmountPaid int64                `gorm:"not null;default:0"`
	Status     MonthlyPaymentStatus `gorm:"type:varchar(10);not null;default:PENDING;index"`
	DueDate    time.Time
	PaidAt     *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
