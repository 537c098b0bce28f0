package domain

import "time"

// Delivery Model. One row per customer per business-timezone day, enforced by
// the composite unique index so recording a delivery twice cannot
// double-charge. DeliveredOn is the YYYY-MM-DD date in the business timezone.
type Delivery struct {
	ID             uint   `gorm:"primaryKey"`
	CustomerID     uint   `gorm:"not null;uniqueIndex:idx_delivery_day,priority:1"`
	DeliveredOn    string `gorm:"type:varchar(10);not null;uniqueIndex:idx_delivery_day,priority:2"`
	Quantity       int    `gorm:"not null"`
	AmountCharged  int64  `gorm:"not null"`           // paise debited as DAILY_CHARGE
	DepositCharged int64  `gorm:"not null;default:0"` // paise debited as DEPOSIT_CHARGE, 0 when none
	CreatedAt      time.Time
}
