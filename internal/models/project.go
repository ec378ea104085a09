package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Project is the top-level container for prompts, tasks and allocations.
// It carries the quotas, reward amounts and review scoring configuration
// every workflow component reads.
type Project struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null;uniqueIndex" json:"name"`
	Description string    `gorm:"type:text" json:"description"`

	// Quotas and reuse defaults. AgentQuota caps tasks per agent within the
	// project; ReviewerQuota caps concurrent reviewer load; ReuseCount is the
	// per-prompt reuse fallback when a prompt has no max_reuses of its own.
	AgentQuota    int  `gorm:"default:180" json:"agent_quota"`
	ReviewerQuota int  `gorm:"default:50" json:"reviewer_quota"`
	ReuseCount    *int `json:"reuse_count,omitempty"`

	// NumRedo bounds how many redo rounds a submission gets before it is
	// rejected outright. Nil means unlimited.
	NumRedo *int `json:"num_redo,omitempty"`

	// Per-role coin awards and fiat conversion amounts.
	AgentCoin           decimal.Decimal `gorm:"type:decimal(18,8);default:0" json:"agent_coin"`
	ReviewerCoin        decimal.Decimal `gorm:"type:decimal(18,8);default:0" json:"reviewer_coin"`
	SuperReviewerCoin   decimal.Decimal `gorm:"type:decimal(18,8);default:0" json:"super_reviewer_coin"`
	AgentAmount         decimal.Decimal `gorm:"type:decimal(18,8);default:0" json:"agent_amount"`
	ReviewerAmount      decimal.Decimal `gorm:"type:decimal(18,8);default:0" json:"reviewer_amount"`
	SuperReviewerAmount decimal.Decimal `gorm:"type:decimal(18,8);default:0" json:"super_reviewer_amount"`

	IsPublic bool `gorm:"default:true" json:"is_public"`

	// Review scoring configuration. ReviewParameters is an ordered JSON list
	// of parameter names; when empty the scorer falls back to the keys of the
	// submitted scores map.
	ReviewParameters       datatypes.JSON `json:"review_parameters,omitempty"`
	ReviewScale            int            `gorm:"default:5" json:"review_scale"`
	ReviewThresholdPercent float64        `gorm:"type:decimal(5,2);default:50" json:"review_threshold_percent"`

	// Denormalized dashboard counters.
	TotalPrompts     int `gorm:"default:0" json:"total_prompts"`
	TotalTasks       int `gorm:"default:0" json:"total_tasks"`
	TotalSubmissions int `gorm:"default:0" json:"total_submissions"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Project) TableName() string {
	return "projects"
}

// ReviewParameterList decodes the configured review parameters. An empty or
// unset column decodes to an empty slice.
func (p *Project) ReviewParameterList() []string {
	if len(p.ReviewParameters) == 0 {
		return nil
	}
	var params []string
	if err := json.Unmarshal(p.ReviewParameters, &params); err != nil {
		return nil
	}
	return params
}

// EffectiveMaxReuses resolves a prompt's reuse limit against the project
// fallback. A prompt with no limit of its own inherits ReuseCount; when
// neither is set the limit is 1.
func (p *Project) EffectiveMaxReuses(prompt *Prompt) int {
	if prompt.MaxReuses != nil {
		return max(*prompt.MaxReuses, 0)
	}
	if p.ReuseCount != nil {
		return max(*p.ReuseCount, 0)
	}
	return 1
}

// ProjectReviewer is a project-to-reviewer pool membership. The auto-assigner
// only considers rows with Active set.
type ProjectReviewer struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_project_reviewers_pair,priority:1" json:"project_id"`
	ReviewerID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_project_reviewers_pair,priority:2;index" json:"reviewer_id"`
	Reviewer   *User     `gorm:"foreignKey:ReviewerID" json:"reviewer,omitempty"`
	Active     bool      `gorm:"default:true;index" json:"active"`
	CreatedAt  time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ProjectReviewer) TableName() string {
	return "project_reviewers"
}

// CreateProjectRequest creates a project with its workflow configuration
type CreateProjectRequest struct {
	Name                   string   `json:"name" binding:"required"`
	Description            string   `json:"description"`
	AgentQuota             *int     `json:"agent_quota" binding:"omitempty,gte=0"`
	ReviewerQuota          *int     `json:"reviewer_quota" binding:"omitempty,gte=0"`
	ReuseCount             *int     `json:"reuse_count" binding:"omitempty,gte=0"`
	NumRedo                *int     `json:"num_redo" binding:"omitempty,gte=0"`
	AgentCoin              *float64 `json:"agent_coin" binding:"omitempty,gte=0"`
	ReviewerCoin           *float64 `json:"reviewer_coin" binding:"omitempty,gte=0"`
	SuperReviewerCoin      *float64 `json:"super_reviewer_coin" binding:"omitempty,gte=0"`
	AgentAmount            *float64 `json:"agent_amount" binding:"omitempty,gte=0"`
	ReviewerAmount         *float64 `json:"reviewer_amount" binding:"omitempty,gte=0"`
	SuperReviewerAmount    *float64 `json:"super_reviewer_amount" binding:"omitempty,gte=0"`
	IsPublic               *bool    `json:"is_public"`
	ReviewParameters       []string `json:"review_parameters"`
	ReviewScale            *int     `json:"review_scale" binding:"omitempty,gte=1"`
	ReviewThresholdPercent *float64 `json:"review_threshold_percent" binding:"omitempty,gte=0,lte=100"`
}

// UpdateProjectRequest patches a project. Nil fields are left untouched.
type UpdateProjectRequest struct {
	Name                   *string  `json:"name"`
	Description            *string  `json:"description"`
	AgentQuota             *int     `json:"agent_quota" binding:"omitempty,gte=0"`
	ReviewerQuota          *int     `json:"reviewer_quota" binding:"omitempty,gte=0"`
	ReuseCount             *int     `json:"reuse_count" binding:"omitempty,gte=0"`
	NumRedo                *int     `json:"num_redo" binding:"omitempty,gte=0"`
	AgentCoin              *float64 `json:"agent_coin" binding:"omitempty,gte=0"`
	ReviewerCoin           *float64 `json:"reviewer_coin" binding:"omitempty,gte=0"`
	SuperReviewerCoin      *float64 `json:"super_reviewer_coin" binding:"omitempty,gte=0"`
	AgentAmount            *float64 `json:"agent_amount" binding:"omitempty,gte=0"`
	ReviewerAmount         *float64 `json:"reviewer_amount" binding:"omitempty,gte=0"`
	SuperReviewerAmount    *float64 `json:"super_reviewer_amount" binding:"omitempty,gte=0"`
	IsPublic               *bool    `json:"is_public"`
	ReviewParameters       []string `json:"review_parameters"`
	ReviewScale            *int     `json:"review_scale" binding:"omitempty,gte=1"`
	ReviewThresholdPercent *float64 `json:"review_threshold_percent" binding:"omitempty,gte=0,lte=100"`
}

// AddReviewersRequest adds reviewers to a project pool by email.
type AddReviewersRequest struct {
	Emails []string `json:"emails" binding:"required,min=1"`
}

// ReviewerPoolSummary reports the outcome of a pool mutation.
type ReviewerPoolSummary struct {
	Added   []string `json:"added"`
	Skipped []string `json:"skipped"`
}
