package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog records an admin-visible action for traceability.
type AuditLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	ActionType string    `gorm:"size:100;not null" json:"action_type"`
	Details    *string   `gorm:"type:text" json:"details,omitempty"`
	CreatedAt  time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
