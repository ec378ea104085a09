package services

import (
	"context"
	"testing"

	"crowdsource-backend/internal/models"

	"github.com/shopspring/decimal"
)

func TestPlatformStatsCounts(t *testing.T) {
	db := setupTestDB(t)
	analytics := NewAnalyticsService(db)
	reviews := NewReviewService(db, NewPaymentService(db))
	ctx := context.Background()

	project := createReviewProject(t, db, "stats-platform", nil)
	reviewer := createTestUser(t, db, "stats-rev@test.com", models.RoleReviewer)

	accepted := newSubmission(t, db, project, "stats-a@test.com")
	rejected := newSubmission(t, db, project, "stats-b@test.com")
	newSubmission(t, db, project, "stats-c@test.com")

	if _, err := reviews.SubmitReview(ctx, project.ID, accepted.ID, &models.SubmitReviewRequest{
		Reviewer: reviewer.Email,
		Scores:   map[string]int{"accuracy": 5, "clarity": 5},
	}); err != nil {
		t.Fatalf("accepting review failed: %v", err)
	}

	// Failing past a zero redo budget rejects outright
	db.Model(&models.Submission{}).Where("id = ?", rejected.ID).Update("redo_count", 1)
	db.Model(&models.Project{}).Where("id = ?", project.ID).Update("num_redo", 1)
	if _, err := reviews.SubmitReview(ctx, project.ID, rejected.ID, &models.SubmitReviewRequest{
		Reviewer: reviewer.Email,
		Scores:   map[string]int{"accuracy": 1, "clarity": 1},
	}); err != nil {
		t.Fatalf("rejecting review failed: %v", err)
	}

	stats, err := analytics.PlatformStats(ctx)
	if err != nil {
		t.Fatalf("PlatformStats failed: %v", err)
	}

	if stats.TotalSubmissions != 3 {
		t.Errorf("expected 3 submissions, got %d", stats.TotalSubmissions)
	}
	if stats.ApprovedSubmissions != 1 {
		t.Errorf("expected 1 approved, got %d", stats.ApprovedSubmissions)
	}
	if stats.RejectedSubmissions != 1 {
		t.Errorf("expected 1 rejected, got %d", stats.RejectedSubmissions)
	}
	if stats.PendingReviewSubmissions != 1 {
		t.Errorf("expected 1 pending, got %d", stats.PendingReviewSubmissions)
	}
	// Only the agent award exists; no reviewer allocation was created
	if !stats.TotalCoinsPaid.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected 10 coins paid, got %s", stats.TotalCoinsPaid)
	}
}

func TestContributorStatsPerProject(t *testing.T) {
	db := setupTestDB(t)
	analytics := NewAnalyticsService(db)
	reviews := NewReviewService(db, NewPaymentService(db))
	ctx := context.Background()

	project := createReviewProject(t, db, "stats-contrib", nil)
	reviewer := createTestUser(t, db, "contrib-rev@test.com", models.RoleReviewer)
	agent := createTestUser(t, db, "contributor@test.com", models.RoleAgent)

	taskA := createTestTask(t, db, project.ID)
	allocA := createTestAllocation(t, db, project.ID, taskA, agent)
	subA := createTestSubmission(t, db, taskA, allocA)

	taskB := createTestTask(t, db, project.ID)
	createTestAllocation(t, db, project.ID, taskB, agent)

	if _, err := reviews.SubmitReview(ctx, project.ID, subA.ID, &models.SubmitReviewRequest{
		Reviewer: reviewer.Email,
		Scores:   map[string]int{"accuracy": 5, "clarity": 5},
	}); err != nil {
		t.Fatalf("review failed: %v", err)
	}

	stats, err := analytics.ContributorStats(ctx, agent.Email, nil, nil)
	if err != nil {
		t.Fatalf("ContributorStats failed: %v", err)
	}

	if stats.Approved != 1 {
		t.Errorf("expected 1 approved, got %d", stats.Approved)
	}
	if len(stats.PerProject) != 1 {
		t.Fatalf("expected 1 project block, got %d", len(stats.PerProject))
	}
	block := stats.PerProject[0]
	if block.NumberAssigned != 2 {
		t.Errorf("expected 2 assigned, got %d", block.NumberAssigned)
	}
	if !block.TotalCoinsEarned.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected 10 coins earned, got %s", block.TotalCoinsEarned)
	}
}

func TestReviewerStatsRollup(t *testing.T) {
	db := setupTestDB(t)
	analytics := NewAnalyticsService(db)
	reviews := NewReviewService(db, NewPaymentService(db))
	ctx := context.Background()

	project := createReviewProject(t, db, "stats-reviewer", nil)
	reviewer := createTestUser(t, db, "rollup-rev@test.com", models.RoleReviewer)

	decided := newSubmission(t, db, project, "roll-a@test.com")
	waiting := newSubmission(t, db, project, "roll-b@test.com")
	createReviewerAllocation(t, db, decided.ID, reviewer.ID)
	createReviewerAllocation(t, db, waiting.ID, reviewer.ID)

	if _, err := reviews.SubmitReview(ctx, project.ID, decided.ID, &models.SubmitReviewRequest{
		Reviewer: reviewer.Email,
		Scores:   map[string]int{"accuracy": 5, "clarity": 5},
	}); err != nil {
		t.Fatalf("review failed: %v", err)
	}

	stats, err := analytics.ReviewerStats(ctx, reviewer.Email, nil, nil)
	if err != nil {
		t.Fatalf("ReviewerStats failed: %v", err)
	}

	if stats.ApprovedReviews != 1 {
		t.Errorf("expected 1 approved review, got %d", stats.ApprovedReviews)
	}
	if stats.PendingReviews != 1 {
		t.Errorf("expected 1 pending review, got %d", stats.PendingReviews)
	}
}

func TestDailyStatsZeroFillsSeries(t *testing.T) {
	db := setupTestDB(t)
	analytics := NewAnalyticsService(db)

	project := createTestProject(t, db, "stats-daily", nil)
	newSubmission(t, db, project, "daily@test.com")

	response, err := analytics.DailyStats(context.Background(), 7)
	if err != nil {
		t.Fatalf("DailyStats failed: %v", err)
	}

	if len(response.Data) != 7 {
		t.Fatalf("expected 7 day buckets, got %d", len(response.Data))
	}
	today := response.Data[len(response.Data)-1]
	if today.TotalSubmissions != 1 {
		t.Errorf("expected today's total 1, got %d", today.TotalSubmissions)
	}
}
