package domain

import "time"

// TransactionType enumerates every kind of ledger entry.
type TransactionType string

const (
	TxTopup            TransactionType = "TOPUP"
	TxDailyCharge      TransactionType = "DAILY_CHARGE"
	TxDepositCharge    TransactionType = "DEPOSIT_CHARGE"
	TxPenaltyCharge    TransactionType = "PENALTY_CHARGE"
	TxRefund           TransactionType = "REFUND"
	TxAdjustmentCredit TransactionType = "ADJUSTMENT_CREDIT"
	TxAdjustmentDebit  TransactionType = "ADJUSTMENT_DEBIT"
)

// Reference types a WalletTransaction may point back to.
const (
	RefPaymentOrder = "PAYMENT_ORDER"
	RefDelivery     = "DELIVERY"
)

// Wallet Model. One per customer, created lazily on the first credit or
// debit, never deleted. Balance is signed paise and is allowed to go
// negative: penalties and daily charges must post regardless.
type Wallet struct {
	ID            uint       `gorm:"primaryKey"`
	CustomerID    uint       `gorm:"uniqueIndex;not null"`
	Balance       int64      `gorm:"not null;default:0"` // paise
	NegativeSince *time.Time // set on first dip below zero, cleared at >= 0
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// WalletTransaction Model. Append-only: rows are never mutated or deleted
// after commit, and Wallet.Balance equals the sum of Amount over the
// wallet's committed rows.
type WalletTransaction struct {
	ID            uint            `gorm:"primaryKey"`
	WalletID      uint            `gorm:"index;not null"`
	Type          TransactionType `gorm:"type:varchar(20);not null;index"`
	Amount        int64           `gorm:"not null"` // signed paise
	BalanceAfter  int64           `gorm:"not null"` // wallet balance right after this entry
	Description   string
	ReferenceID   *string `gorm:"index"` // gateway order id, delivery row id, ...
	ReferenceType *string
	CreatedAt     time.Time
}
