package models

import (
	"time"

	"github.com/google/uuid"
)

// Prompt is a reusable unit of source content (a sentence or media reference)
// from which tasks are generated. CurrentReuses is only advanced by the
// allocator, by exactly the number of allocations it persisted.
type Prompt struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index" json:"project_id"`
	Text      string    `gorm:"type:text" json:"text"`
	MediaURL  *string   `gorm:"size:500" json:"media_url,omitempty"`
	Domain    string    `gorm:"size:100" json:"domain"`
	Category  string    `gorm:"size:100" json:"category"`

	// MaxReuses caps how many allocations this prompt may back. Nil falls
	// back to the project's reuse_count, then to 1.
	MaxReuses     *int `json:"max_reuses,omitempty"`
	CurrentReuses int  `gorm:"default:0" json:"current_reuses"`

	// Denormalized counters.
	TotalAllocated int `gorm:"default:0" json:"total_allocated"`
	TotalSubmitted int `gorm:"default:0" json:"total_submitted"`
	TotalAccepted  int `gorm:"default:0" json:"total_accepted"`
	TotalRejected  int `gorm:"default:0" json:"total_rejected"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Prompt) TableName() string {
	return "prompts"
}

// CreatePromptRequest adds a prompt to a project.
type CreatePromptRequest struct {
	Text      string  `json:"text" binding:"required"`
	MediaURL  *string `json:"media_url"`
	Domain    string  `json:"domain"`
	Category  string  `json:"category"`
	MaxReuses *int    `json:"max_reuses" binding:"omitempty,gte=0"`
}

// PromptAssignment is one validated row from the bulk-import collaborator:
// a prompt text paired with the agent who should receive a task for it.
// File-format validation happens upstream; this is the consumption contract.
type PromptAssignment struct {
	PromptText string `json:"prompt_text" binding:"required"`
	UserEmail  string `json:"user_email" binding:"required,email"`
	MaxReuses  *int   `json:"max_reuses" binding:"omitempty,gte=0"`
}

// BulkAllocationSummary reports what a bulk allocation run did.
type BulkAllocationSummary struct {
	Created int      `json:"created"`
	Skipped []string `json:"skipped"`
}
