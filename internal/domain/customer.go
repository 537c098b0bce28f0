package domain

import "time"

// Customer roles.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// CustomerStatus tracks whether deliveries run for a customer.
type CustomerStatus string

const (
	CustomerPendingApproval CustomerStatus = "PENDING_APPROVAL"
	CustomerActive          CustomerStatus = "ACTIVE"
	CustomerInactive        CustomerStatus = "INACTIVE"
)

// Customer Model
type Customer struct {
	ID           uint           `gorm:"primaryKey"`
	Name         string         `gorm:"not null"`
	Phone        string         `gorm:"uniqueIndex;not null"` // login identifier
	Password     string         `gorm:"not null"`             // bcrypt hash
	Role         string         `gorm:"default:customer"`
	Status       CustomerStatus `gorm:"type:varchar(20);not null;default:PENDING_APPROVAL;index"`
	RouteID      *uint          `gorm:"index"` // assigned on approval; nil means no deliveries yet
	Wallet       *Wallet        `gorm:"foreignKey:CustomerID"`
	Subscription *Subscription  `gorm:"foreignKey:CustomerID"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Route Model
type Route struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;not null"`
}

// SubscriptionStatus is the customer-controlled delivery toggle. PAUSED
// customers still get monthly records generated; they are skipped by the
// wallet sweep and by delivery charging.
type SubscriptionStatus string

const (
	SubscriptionActive SubscriptionStatus = "ACTIVE"
	SubscriptionPaused SubscriptionStatus = "PAUSED"
)

// Subscription Model
type Subscription struct {
	ID            uint               `gorm:"primaryKey"`
	CustomerID    uint               `gorm:"uniqueIndex;not null"`
	DailyQuantity int                `gorm:"not null"` // units delivered per day
	DailyPrice    int64              `gorm:"not null"` // paise per unit
	Status        SubscriptionStatus `gorm:"type:varchar(10);not null;default:ACTIVE;index"`
	DeliveryCount int                `gorm:"not null;default:0"` // monotonic; drives deposit cadence
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DailyRate returns the paise charged for one day of delivery.
func (s *Subscription) DailyRate() int64 {
	return int64(s.DailyQuantity) * s.DailyPrice
}
