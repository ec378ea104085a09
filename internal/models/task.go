package models

import (
	"time"

	"github.com/google/uuid"
)

// Task is the unit of work generated from a prompt within a project. Tasks
// are keyed by (project, prompt): the allocator reuses an existing task for
// the pair instead of duplicating one per agent.
type Task struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:ux_tasks_project_prompt,priority:1" json:"project_id"`
	PromptID  *uuid.UUID `gorm:"type:uuid;uniqueIndex:ux_tasks_project_prompt,priority:2;index" json:"prompt_id,omitempty"`
	Prompt    *Prompt    `gorm:"foreignKey:PromptID" json:"prompt,omitempty"`

	Type     TaskType `gorm:"size:20;default:audio" json:"type"`
	Domain   string   `gorm:"size:100" json:"domain"`
	Category string   `gorm:"size:100" json:"category"`

	Status   Status     `gorm:"size:50;default:pending;index" json:"status"`
	Deadline *time.Time `json:"deadline,omitempty"`

	// Denormalized counters.
	SubmissionCount int `gorm:"default:0" json:"submission_count"`
	ReviewCount     int `gorm:"default:0" json:"review_count"`
	AcceptCount     int `gorm:"default:0" json:"accept_count"`
	RejectCount     int `gorm:"default:0" json:"reject_count"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Task) TableName() string {
	return "tasks"
}

// UpdateTaskRequest patches a task. Nil fields are left untouched.
type UpdateTaskRequest struct {
	Type     *TaskType  `json:"type"`
	Domain   *string    `json:"domain"`
	Category *string    `json:"category"`
	Status   *Status    `json:"status"`
	Deadline *time.Time `json:"deadline"`
}

// TaskFilter narrows task listings.
type TaskFilter struct {
	ProjectID *uuid.UUID
	Status    *Status
	Type      *TaskType
	Limit     int
	Offset    int
}
