package domain

import "time"

// AuditLog Model. Compliance trail for admin-initiated mutations (penalties,
// adjustments, refunds, approvals). Writes are best-effort: a failed audit
// insert never rolls back the financial operation it describes.
type AuditLog struct {
	ID         uint   `gorm:"primaryKey"`
	RequestID  string `gorm:"type:varchar(36);index"`
	ActorID    uint   `gorm:"index;not null"`
	Action     string `gorm:"not null"`
	EntityType string
	EntityID   string
	OldValue   string `gorm:"type:text"` // JSON snapshot before the change
	NewValue   string `gorm:"type:text"` // JSON snapshot after the change
	IP         string
	UserAgent  string
	CreatedAt  time.Time
}
