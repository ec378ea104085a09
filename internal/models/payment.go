package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CoinPayment is one ledger entry. Exactly-once semantics: agent rewards are
// unique per (user_id, allocation_id) and reviewer rewards per
// (user_id, reviewer_allocation_id); the composite unique indexes back the
// in-transaction existence checks so concurrent awards cannot double-pay.
type CoinPayment struct {
	ID                   uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID               uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:ux_payments_user_allocation,priority:1;uniqueIndex:ux_payments_user_reviewer_allocation,priority:1" json:"user_id"`
	ProjectID            uuid.UUID  `gorm:"type:uuid;not null;index" json:"project_id"`
	TaskID               *uuid.UUID `gorm:"type:uuid;index" json:"task_id,omitempty"`
	AllocationID         *uuid.UUID `gorm:"type:uuid;uniqueIndex:ux_payments_user_allocation,priority:2" json:"allocation_id,omitempty"`
	ReviewerAllocationID *uuid.UUID `gorm:"type:uuid;uniqueIndex:ux_payments_user_reviewer_allocation,priority:2" json:"reviewer_allocation_id,omitempty"`

	CoinsEarned decimal.Decimal `gorm:"type:decimal(18,8);not null" json:"coins_earned"`
	Approved    bool            `gorm:"default:false" json:"approved"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (CoinPayment) TableName() string {
	return "coin_payments"
}
