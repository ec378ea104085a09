package models

import (
	"time"

	"github.com/google/uuid"
)

// Allocation is an agent's assignment of one task for submission. The
// (task_id, user_id) unique index is the store-level backstop against
// duplicate assignment; the allocator also checks the pair in-transaction.
type Allocation struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index" json:"project_id"`
	TaskID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_allocations_task_user,priority:1" json:"task_id"`
	Task      *Task     `gorm:"foreignKey:TaskID" json:"task,omitempty"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_allocations_task_user,priority:2;index" json:"user_id"`
	UserEmail string    `gorm:"size:255" json:"user_email"`

	Status      Status     `gorm:"size:50;default:assigned;index" json:"status"`
	AssignedAt  time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"assigned_at"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Allocation) TableName() string {
	return "allocations"
}

// ReviewerAllocation is a reviewer's assignment to evaluate one submission.
// At most one non-rejected allocation may exist per submission; its status is
// the authoritative source the cascade copies outward.
type ReviewerAllocation struct {
	ID           uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	SubmissionID uuid.UUID   `gorm:"type:uuid;not null;index" json:"submission_id"`
	Submission   *Submission `gorm:"foreignKey:SubmissionID" json:"submission,omitempty"`
	ReviewerID   uuid.UUID   `gorm:"type:uuid;not null;index" json:"reviewer_id"`
	Reviewer     *User       `gorm:"foreignKey:ReviewerID" json:"reviewer,omitempty"`

	Status     Status     `gorm:"size:50;default:pending;index" json:"status"`
	AssignedAt time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"assigned_at"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ReviewerAllocation) TableName() string {
	return "reviewer_allocations"
}

// AllocationCandidate is one agent eligible for allocation, as produced by
// the bulk-import collaborator or the allocate endpoint.
type AllocationCandidate struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
	Email  string    `json:"email"`
}

// AllocateRequest asks the allocator to assign project tasks to candidates.
type AllocateRequest struct {
	Candidates []AllocationCandidate `json:"candidates" binding:"required,min=1"`
}

// AssignReviewerRequest manually assigns a submission to a reviewer,
// identified by id or email.
type AssignReviewerRequest struct {
	SubmissionID uuid.UUID `json:"submission_id" binding:"required"`
	Reviewer     string    `json:"reviewer" binding:"required"`
}

// ReviewerAssignmentRow is one validated bulk-assignment row.
type ReviewerAssignmentRow struct {
	SubmissionID  uuid.UUID `json:"submission_id" binding:"required"`
	ReviewerEmail string    `json:"reviewer_email" binding:"required,email"`
}

// BulkAssignRequest carries validated reviewer-assignment rows.
type BulkAssignRequest struct {
	Rows []ReviewerAssignmentRow `json:"rows" binding:"required,min=1"`
}

// BulkAssignmentSummary reports created and skipped bulk assignments.
type BulkAssignmentSummary struct {
	Uploaded int         `json:"uploaded"`
	Skipped  []string    `json:"skipped"`
	Details  []uuid.UUID `json:"details"`
}
