package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlatformSnapshot is the stats job's materialized daily rollup. It is the
// only table analytics writes to; the workflow entities stay read-only.
type PlatformSnapshot struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Date                time.Time       `gorm:"not null;uniqueIndex" json:"date"`
	TotalUsers          int64           `gorm:"default:0" json:"total_users"`
	TotalProjects       int64           `gorm:"default:0" json:"total_projects"`
	TotalAllocations    int64           `gorm:"default:0" json:"total_allocations"`
	TotalSubmissions    int64           `gorm:"default:0" json:"total_submissions"`
	AcceptedSubmissions int64           `gorm:"default:0" json:"accepted_submissions"`
	RejectedSubmissions int64           `gorm:"default:0" json:"rejected_submissions"`
	PendingSubmissions  int64           `gorm:"default:0" json:"pending_submissions"`
	TotalCoinsPaid      decimal.Decimal `gorm:"type:decimal(18,8);default:0" json:"total_coins_paid"`
	CreatedAt           time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (PlatformSnapshot) TableName() string {
	return "platform_snapshots"
}

// ProjectContributionStats is the per-project block of a contributor report.
type ProjectContributionStats struct {
	ProjectID         uuid.UUID       `json:"project_id"`
	ProjectName       string          `json:"project_name"`
	NumberAssigned    int             `json:"number_assigned"`
	Total             int             `json:"total"`
	Approved          int             `json:"approved"`
	Rejected          int             `json:"rejected"`
	Pending           int             `json:"pending"`
	TotalSubmissions  int             `json:"total_submissions"`
	TotalCoinsEarned  decimal.Decimal `json:"total_coins_earned"`
	TotalAmountEarned decimal.Decimal `json:"total_amount_earned"`
}

// ContributorStats is a contributor's rollup across projects.
type ContributorStats struct {
	UserEmail  string                     `json:"user_email"`
	Approved   int                        `json:"approved"`
	Pending    int                        `json:"pending"`
	Rejected   int                        `json:"rejected"`
	PerProject []ProjectContributionStats `json:"per_project"`
}

// ProjectReviewStats is the per-project block of a reviewer report.
type ProjectReviewStats struct {
	ProjectID         uuid.UUID       `json:"project_id"`
	ProjectName       string          `json:"project_name"`
	NumberAssigned    int             `json:"number_assigned"`
	TotalReviewed     int             `json:"total_reviewed"`
	Approved          int             `json:"approved"`
	Rejected          int             `json:"rejected"`
	Pending           int             `json:"pending"`
	TotalCoinsEarned  decimal.Decimal `json:"total_coins_earned"`
	TotalAmountEarned decimal.Decimal `json:"total_amount_earned"`
}

// ReviewerStats is a reviewer's rollup across projects.
type ReviewerStats struct {
	ReviewerEmail   string               `json:"reviewer_email"`
	TotalReviewed   int                  `json:"total_reviewed"`
	ApprovedReviews int                  `json:"approved_reviews"`
	RejectedReviews int                  `json:"rejected_reviews"`
	PendingReviews  int                  `json:"pending_reviews"`
	PerProject      []ProjectReviewStats `json:"per_project"`
}

// PlatformStats is the live platform-wide rollup.
type PlatformStats struct {
	TotalUsers               int64           `json:"total_users"`
	TotalProjects            int64           `json:"total_projects"`
	TotalAllocations         int64           `json:"total_allocations"`
	TotalSubmissions         int64           `json:"total_submissions"`
	ApprovedSubmissions      int64           `json:"approved_submissions"`
	RejectedSubmissions      int64           `json:"rejected_submissions"`
	PendingReviewSubmissions int64           `json:"pending_review_submissions"`
	TotalCoinsPaid           decimal.Decimal `json:"total_coins_paid"`
}

// DailyStat is one day's submission volume split by type.
type DailyStat struct {
	Date             string `json:"date"`
	AudioSubmissions int    `json:"audio_submissions"`
	TextSubmissions  int    `json:"text_submissions"`
	ImageSubmissions int    `json:"image_submissions"`
	VideoSubmissions int    `json:"video_submissions"`
	TotalSubmissions int    `json:"total_submissions"`
}

// DailyStatsResponse wraps the last-N-days series.
type DailyStatsResponse struct {
	Data []DailyStat `json:"data"`
}
