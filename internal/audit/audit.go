package audit

import (
	"context"
	"encoding/json"

	"dairy_billing/internal/domain"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Meta is the request context captured alongside an audit entry.
type Meta struct {
	RequestID string
	IP        string
	UserAgent string
}

// Entry describes one admin-initiated change. Old and New are marshaled to
// JSON snapshots for the trail.
type Entry struct {
	ActorID    uint
	Action     string
	EntityType string
	EntityID   string
	Old        any
	New        any
	Meta       Meta
}

// Recorder writes the compliance trail. It is strictly best-effort: the
// ledger write it describes is authoritative, so a failed audit insert is
// logged and swallowed, never propagated.
type Recorder struct {
	db *gorm.DB
}

func NewRecorder(gdb *gorm.DB) *Recorder {
	return &Recorder{db: gdb}
}

// Record persists the entry. Safe to call after the financial commit; any
// failure here must not undo money movement.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	requestID := e.Meta.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	row := domain.AuditLog{
		RequestID:  requestID,
		ActorID:    e.ActorID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		OldValue:   marshal(e.Old),
		NewValue:   marshal(e.New),
		IP:         e.Meta.IP,
		UserAgent:  e.Meta.UserAgent,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		logrus.WithFields(logrus.Fields{
			"action":   e.Action,
			"actor_id": e.ActorID,
			"error":    err.Error(),
		}).Warn("Audit write failed")
	}
}

func marshal(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
