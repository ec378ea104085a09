package services

import (
	"context"
	"fmt"
	"time"

	"crowdsource-backend/internal/models"
	"crowdsource-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AnalyticsService rolls up per-user and per-project dashboard numbers.
// Every method is read-only against the workflow tables.
type AnalyticsService struct {
	db *gorm.DB
}

// NewAnalyticsService creates a new AnalyticsService
func NewAnalyticsService(db *gorm.DB) *AnalyticsService {
	return &AnalyticsService{db: db}
}

// ContributorStats reports an agent's submission outcomes and earnings,
// overall and per project. Earnings convert coins to fiat with the project's
// agent amount.
func (s *AnalyticsService) ContributorStats(ctx context.Context, email string, start, end *time.Time) (*models.ContributorStats, error) {
	user, err := repository.NewRepository(s.db).GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	stats := &models.ContributorStats{
		UserEmail:  user.Email,
		PerProject: []models.ProjectContributionStats{},
	}

	var allocations []*models.Allocation
	query := s.db.WithContext(ctx).Where("user_id = ?", user.ID)
	if start != nil {
		query = query.Where("created_at >= ?", *start)
	}
	if end != nil {
		query = query.Where("created_at <= ?", *end)
	}
	if err := query.Find(&allocations).Error; err != nil {
		return nil, fmt.Errorf("failed to load allocations: %w", err)
	}

	type projectAccumulator struct {
		assigned  int
		approved  int
		rejected  int
		pending   int
		submitted int
	}
	perProject := make(map[uuid.UUID]*projectAccumulator)

	for _, allocation := range allocations {
		acc := perProject[allocation.ProjectID]
		if acc == nil {
			acc = &projectAccumulator{}
			perProject[allocation.ProjectID] = acc
		}
		acc.assigned++

		switch allocation.Status {
		case models.StatusAccepted, models.StatusApproved:
			acc.approved++
			stats.Approved++
		case models.StatusRejected:
			acc.rejected++
			stats.Rejected++
		case models.StatusAssigned:
			// Not submitted yet; assigned but not pending review.
		default:
			acc.pending++
			stats.Pending++
		}
		if allocation.SubmittedAt != nil {
			acc.submitted++
		}
	}

	for projectID, acc := range perProject {
		project, err := repository.NewRepository(s.db).GetProjectByID(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("failed to load project: %w", err)
		}

		coins, err := s.sumCoins(ctx, user.ID, projectID)
		if err != nil {
			return nil, err
		}

		stats.PerProject = append(stats.PerProject, models.ProjectContributionStats{
			ProjectID:         projectID,
			ProjectName:       project.Name,
			NumberAssigned:    acc.assigned,
			Total:             acc.assigned,
			Approved:          acc.approved,
			Rejected:          acc.rejected,
			Pending:           acc.pending,
			TotalSubmissions:  acc.submitted,
			TotalCoinsEarned:  coins,
			TotalAmountEarned: coins.Mul(project.AgentAmount),
		})
	}

	return stats, nil
}

// ReviewerStats reports a reviewer's throughput and earnings, overall and
// per project. Pending is whatever was assigned but not yet decided.
func (s *AnalyticsService) ReviewerStats(ctx context.Context, email string, start, end *time.Time) (*models.ReviewerStats, error) {
	user, err := repository.NewRepository(s.db).GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	stats := &models.ReviewerStats{
		ReviewerEmail: user.Email,
		PerProject:    []models.ProjectReviewStats{},
	}

	query := s.db.WithContext(ctx).Model(&models.ReviewerAllocation{}).
		Select("reviewer_allocations.*, tasks.project_id AS project_id").
		Joins("JOIN submissions ON submissions.id = reviewer_allocations.submission_id").
		Joins("JOIN tasks ON tasks.id = submissions.task_id").
		Where("reviewer_allocations.reviewer_id = ?", user.ID)
	if start != nil {
		query = query.Where("reviewer_allocations.created_at >= ?", *start)
	}
	if end != nil {
		query = query.Where("reviewer_allocations.created_at <= ?", *end)
	}

	var rows []struct {
		models.ReviewerAllocation
		ProjectID uuid.UUID
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load reviewer allocations: %w", err)
	}

	type projectAccumulator struct {
		assigned int
		approved int
		rejected int
	}
	perProject := make(map[uuid.UUID]*projectAccumulator)

	for _, row := range rows {
		acc := perProject[row.ProjectID]
		if acc == nil {
			acc = &projectAccumulator{}
			perProject[row.ProjectID] = acc
		}
		acc.assigned++
		stats.TotalReviewed++

		switch row.Status {
		case models.StatusAccepted, models.StatusApproved:
			acc.approved++
			stats.ApprovedReviews++
		case models.StatusRejected:
			acc.rejected++
			stats.RejectedReviews++
		}
	}
	stats.PendingReviews = stats.TotalReviewed - stats.ApprovedReviews - stats.RejectedReviews

	for projectID, acc := range perProject {
		project, err := repository.NewRepository(s.db).GetProjectByID(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("failed to load project: %w", err)
		}

		coins, err := s.sumCoins(ctx, user.ID, projectID)
		if err != nil {
			return nil, err
		}

		stats.PerProject = append(stats.PerProject, models.ProjectReviewStats{
			ProjectID:         projectID,
			ProjectName:       project.Name,
			NumberAssigned:    acc.assigned,
			TotalReviewed:     acc.assigned,
			Approved:          acc.approved,
			Rejected:          acc.rejected,
			Pending:           acc.assigned - acc.approved - acc.rejected,
			TotalCoinsEarned:  coins,
			TotalAmountEarned: coins.Mul(project.ReviewerAmount),
		})
	}

	return stats, nil
}

// PlatformStats computes the live platform-wide rollup
func (s *AnalyticsService) PlatformStats(ctx context.Context) (*models.PlatformStats, error) {
	stats := &models.PlatformStats{TotalCoinsPaid: decimal.Zero}
	db := s.db.WithContext(ctx)

	counts := []struct {
		model interface{}
		dest  *int64
	}{
		{&models.User{}, &stats.TotalUsers},
		{&models.Project{}, &stats.TotalProjects},
		{&models.Allocation{}, &stats.TotalAllocations},
		{&models.Submission{}, &stats.TotalSubmissions},
	}
	for _, count := range counts {
		if err := db.Model(count.model).Count(count.dest).Error; err != nil {
			return nil, fmt.Errorf("failed to count rows: %w", err)
		}
	}

	err := db.Model(&models.Submission{}).
		Where("status IN ?", []models.Status{models.StatusAccepted, models.StatusApproved}).
		Count(&stats.ApprovedSubmissions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count approved submissions: %w", err)
	}

	err = db.Model(&models.Submission{}).
		Where("status = ?", models.StatusRejected).
		Count(&stats.RejectedSubmissions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count rejected submissions: %w", err)
	}

	err = db.Model(&models.Submission{}).
		Where("status IN ?", []models.Status{models.StatusSubmitted, models.StatusPending, models.StatusUnderReview}).
		Count(&stats.PendingReviewSubmissions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count pending submissions: %w", err)
	}

	var payments []*models.CoinPayment
	if err := db.Where("approved = ?", true).Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}
	for _, payment := range payments {
		stats.TotalCoinsPaid = stats.TotalCoinsPaid.Add(payment.CoinsEarned)
	}

	return stats, nil
}

// DailyStats returns per-day submission volume by type over the last N days
func (s *AnalyticsService) DailyStats(ctx context.Context, days int) (*models.DailyStatsResponse, error) {
	if days <= 0 {
		days = 7
	}

	since := time.Now().AddDate(0, 0, -days+1).Truncate(24 * time.Hour)

	var submissions []*models.Submission
	err := s.db.WithContext(ctx).
		Where("created_at >= ?", since).
		Find(&submissions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load submissions: %w", err)
	}

	byDay := make(map[string]*models.DailyStat)
	for _, submission := range submissions {
		day := submission.CreatedAt.Format("2006-01-02")
		stat := byDay[day]
		if stat == nil {
			stat = &models.DailyStat{Date: day}
			byDay[day] = stat
		}

		switch submission.Type {
		case models.TaskTypeAudio:
			stat.AudioSubmissions++
		case models.TaskTypeText:
			stat.TextSubmissions++
		case models.TaskTypeImage:
			stat.ImageSubmissions++
		case models.TaskTypeVideo:
			stat.VideoSubmissions++
		}
		stat.TotalSubmissions++
	}

	response := &models.DailyStatsResponse{Data: make([]models.DailyStat, 0, days)}
	for i := 0; i < days; i++ {
		day := since.AddDate(0, 0, i).Format("2006-01-02")
		if stat, ok := byDay[day]; ok {
			response.Data = append(response.Data, *stat)
		} else {
			response.Data = append(response.Data, models.DailyStat{Date: day})
		}
	}

	return response, nil
}

// sumCoins totals a user's approved coin payments within a project
func (s *AnalyticsService) sumCoins(ctx context.Context, userID, projectID uuid.UUID) (decimal.Decimal, error) {
	var payments []*models.CoinPayment
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND project_id = ? AND approved = ?", userID, projectID, true).
		Find(&payments).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load payments: %w", err)
	}

	total := decimal.Zero
	for _, payment := range payments {
		total = total.Add(payment.CoinsEarned)
	}

	return total, nil
}
