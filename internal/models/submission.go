package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Submission is an agent's response to an allocated task. One live submission
// exists per allocation (unique index on assignment_id); a redo revises the
// row in place rather than inserting a sibling. RedoCount is a typed column
// so the redo budget is machine-checkable instead of hiding in Meta.
type Submission struct {
	ID           uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	TaskID       uuid.UUID   `gorm:"type:uuid;not null;index" json:"task_id"`
	Task         *Task       `gorm:"foreignKey:TaskID" json:"task,omitempty"`
	AssignmentID *uuid.UUID  `gorm:"type:uuid;uniqueIndex" json:"assignment_id,omitempty"`
	Assignment   *Allocation `gorm:"foreignKey:AssignmentID" json:"assignment,omitempty"`
	UserID       uuid.UUID   `gorm:"type:uuid;not null;index" json:"user_id"`

	Type        TaskType `gorm:"size:20;default:audio" json:"type"`
	FileURL     *string  `gorm:"size:500" json:"file_url,omitempty"`
	Duration    *float64 `json:"duration,omitempty"`
	PayloadText *string  `gorm:"type:text" json:"payload_text,omitempty"`

	Status    Status            `gorm:"size:50;default:submitted;index" json:"status"`
	RedoCount int               `gorm:"default:0" json:"redo_count"`
	Meta      datatypes.JSONMap `json:"meta,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Submission) TableName() string {
	return "submissions"
}

// Review records one reviewer's scoring of a submission. The
// (submission_id, reviewer_id) unique index makes later reviews update the
// existing row instead of duplicating it.
type Review struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SubmissionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_reviews_submission_reviewer,priority:1" json:"submission_id"`
	ReviewerID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_reviews_submission_reviewer,priority:2;index" json:"reviewer_id"`

	ReviewLevel string            `gorm:"size:50;default:human" json:"review_level"`
	Scores      datatypes.JSONMap `json:"scores,omitempty"`
	TotalScore  *float64          `json:"total_score,omitempty"`
	Decision    *Status           `gorm:"size:50" json:"decision,omitempty"`
	Approved    *bool             `json:"approved,omitempty"`
	Comments    *string           `gorm:"type:text" json:"comments,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Review) TableName() string {
	return "reviews"
}

// CreateSubmissionRequest is the submission intake payload. File bytes arrive
// through the multipart form; TelegramFileID lets bot clients hand over a
// remote file reference instead.
type CreateSubmissionRequest struct {
	TaskID         uuid.UUID  `form:"task_id" binding:"required"`
	AssignmentID   uuid.UUID  `form:"assignment_id" binding:"required"`
	UserID         *uuid.UUID `form:"user_id"`
	UserEmail      string     `form:"user_email"`
	Type           TaskType   `form:"type" binding:"required"`
	PayloadText    string     `form:"payload_text"`
	TelegramFileID string     `form:"telegram_file_id"`
	Duration       *float64   `form:"duration"`
}

// SubmissionResponse is the intake result returned to agents.
type SubmissionResponse struct {
	SubmissionID uuid.UUID  `json:"submission_id"`
	ProjectID    uuid.UUID  `json:"project_id"`
	TaskID       uuid.UUID  `json:"task_id"`
	AssignmentID *uuid.UUID `json:"assignment_id,omitempty"`
	UserID       uuid.UUID  `json:"user_id"`
	Type         TaskType   `json:"type"`
	PayloadText  *string    `json:"payload_text,omitempty"`
	FileURL      *string    `json:"file_url,omitempty"`
	Status       Status     `json:"status"`
	RedoCount    int        `json:"redo_count"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// SubmitReviewRequest scores a submission against the project's parameters.
type SubmitReviewRequest struct {
	Reviewer string         `json:"reviewer" binding:"required"`
	Scores   map[string]int `json:"scores" binding:"required"`
	Comments *string        `json:"comments"`
}

// ReviewOutcome is the scoring engine's verdict.
type ReviewOutcome struct {
	SubmissionStatus Status  `json:"submission_status"`
	TotalScore       float64 `json:"total_score"`
	Approved         bool    `json:"approved"`
	ThresholdPercent float64 `json:"project_review_threshold"`
	ScoredPercent    float64 `json:"scored_percent"`
}

// OverrideReviewRequest sets a review status directly, bypassing scoring.
type OverrideReviewRequest struct {
	Reviewer string  `json:"reviewer" binding:"required"`
	Status   Status  `json:"status" binding:"required"`
	Comments *string `json:"comments"`
}

// ReviewerQueueItem is one row of a reviewer's pending worklist.
type ReviewerQueueItem struct {
	ReviewerAllocationID uuid.UUID  `json:"reviewer_allocation_id"`
	SubmissionID         uuid.UUID  `json:"submission_id"`
	PromptID             *uuid.UUID `json:"prompt_id,omitempty"`
	PromptText           *string    `json:"prompt,omitempty"`
	FileURL              *string    `json:"file_url,omitempty"`
	PayloadText          *string    `json:"payload_text,omitempty"`
	ContributorID        uuid.UUID  `json:"contributor_id"`
	AssignedAt           time.Time  `json:"assigned_at"`
	Status               Status     `json:"status"`
}

// ReviewerHistoryItem is one row of a reviewer's completed work.
type ReviewerHistoryItem struct {
	SubmissionID  uuid.UUID  `json:"submission_id"`
	PromptID      *uuid.UUID `json:"prompt_id,omitempty"`
	PromptText    *string    `json:"prompt,omitempty"`
	ContributorID uuid.UUID  `json:"contributor_id"`
	Status        Status     `json:"status"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty"`
}

// SubmissionFilter narrows submission listings.
type SubmissionFilter struct {
	ProjectID *uuid.UUID
	UserID    *uuid.UUID
	UserEmail string
	Statuses  []Status
	Limit     int
	Offset    int
}
