package services

import (
	"context"
	"errors"
	"testing"

	"crowdsource-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func createReviewProject(t *testing.T, db *gorm.DB, name string, mutate func(*models.Project)) *models.Project {
	return createTestProject(t, db, name, func(p *models.Project) {
		p.ReviewParameters = datatypes.JSON([]byte(`["accuracy","clarity"]`))
		p.ReviewScale = 5
		p.ReviewThresholdPercent = 60
		p.AgentCoin = decimal.NewFromInt(10)
		p.ReviewerCoin = decimal.NewFromInt(5)
		if mutate != nil {
			mutate(p)
		}
	})
}

func createReviewerAllocation(t *testing.T, db *gorm.DB, submissionID, reviewerID uuid.UUID) *models.ReviewerAllocation {
	allocation := &models.ReviewerAllocation{
		ID:           uuid.New(),
		SubmissionID: submissionID,
		ReviewerID:   reviewerID,
		Status:       models.StatusPending,
	}
	if err := db.Create(allocation).Error; err != nil {
		t.Fatalf("failed to create reviewer allocation: %v", err)
	}
	return allocation
}

func TestScoreAgainstParameters(t *testing.T) {
	params := []string{"accuracy", "clarity"}

	tests := []struct {
		name     string
		scores   map[string]int
		approved bool
		total    float64
	}{
		{"exactly at threshold", map[string]int{"accuracy": 4, "clarity": 2}, true, 6},
		{"below threshold", map[string]int{"accuracy": 2, "clarity": 2}, false, 4},
		{"full marks", map[string]int{"accuracy": 5, "clarity": 5}, true, 10},
		{"missing parameter scores zero", map[string]int{"accuracy": 5}, false, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := scoreAgainstParameters(params, tt.scores, 5, 60)
			if verdict.Approved != tt.approved {
				t.Errorf("expected approved=%v, got %v (%.1f%%)", tt.approved, verdict.Approved, verdict.ScoredPercent)
			}
			if verdict.TotalScore != tt.total {
				t.Errorf("expected total %.1f, got %.1f", tt.total, verdict.TotalScore)
			}
		})
	}
}

func TestSubmitReviewAcceptedCascadesAndPays(t *testing.T) {
	db := setupTestDB(t)
	service := NewReviewService(db, NewPaymentService(db))
	ctx := context.Background()

	project := createReviewProject(t, db, "review-accept", nil)
	reviewer := createTestUser(t, db, "score-rev@test.com", models.RoleReviewer)
	submission := newSubmission(t, db, project, "score-agent@test.com")
	createReviewerAllocation(t, db, submission.ID, reviewer.ID)

	outcome, err := service.SubmitReview(ctx, project.ID, submission.ID, &models.SubmitReviewRequest{
		Reviewer: reviewer.Email,
		Scores:   map[string]int{"accuracy": 4, "clarity": 2},
	})
	if err != nil {
		t.Fatalf("SubmitReview failed: %v", err)
	}
	if outcome.SubmissionStatus != models.StatusAccepted {
		t.Errorf("expected accepted, got %s", outcome.SubmissionStatus)
	}

	// Status cascades through the whole chain
	var reloaded models.Submission
	db.First(&reloaded, "id = ?", submission.ID)
	if reloaded.Status != models.StatusAccepted {
		t.Errorf("expected submission accepted, got %s", reloaded.Status)
	}

	var agentAllocation models.Allocation
	db.First(&agentAllocation, "id = ?", *submission.AssignmentID)
	if agentAllocation.Status != models.StatusAccepted {
		t.Errorf("expected allocation accepted, got %s", agentAllocation.Status)
	}
	if agentAllocation.CompletedAt == nil {
		t.Error("expected completed_at to be stamped")
	}

	var task models.Task
	db.First(&task, "id = ?", submission.TaskID)
	if task.Status != models.StatusAccepted {
		t.Errorf("expected task accepted, got %s", task.Status)
	}
	if task.AcceptCount != 1 {
		t.Errorf("expected accept_count 1, got %d", task.AcceptCount)
	}

	var reviewerAllocation models.ReviewerAllocation
	db.First(&reviewerAllocation, "submission_id = ?", submission.ID)
	if reviewerAllocation.ReviewedAt == nil {
		t.Error("expected reviewed_at to be stamped")
	}

	// Acceptance pays both sides
	var payments []models.CoinPayment
	db.Where("project_id = ?", project.ID).Find(&payments)
	if len(payments) != 2 {
		t.Fatalf("expected 2 payments, got %d", len(payments))
	}
	byUser := make(map[uuid.UUID]decimal.Decimal)
	for _, p := range payments {
		byUser[p.UserID] = p.CoinsEarned
	}
	if !byUser[submission.UserID].Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected agent award 10, got %s", byUser[submission.UserID])
	}
	if !byUser[reviewer.ID].Equal(decimal.NewFromInt(5)) {
		t.Errorf("expected reviewer award 5, got %s", byUser[reviewer.ID])
	}
}

func TestSubmitReviewRedoThenRejected(t *testing.T) {
	db := setupTestDB(t)
	service := NewReviewService(db, NewPaymentService(db))
	ctx := context.Background()

	project := createReviewProject(t, db, "review-redo", func(p *models.Project) {
		p.NumRedo = intPtr(1)
	})
	reviewer := createTestUser(t, db, "redo-rev@test.com", models.RoleReviewer)
	submission := newSubmission(t, db, project, "redo-agent@test.com")

	failing := &models.SubmitReviewRequest{
		Reviewer: reviewer.Email,
		Scores:   map[string]int{"accuracy": 2, "clarity": 2},
	}

	outcome, err := service.SubmitReview(ctx, project.ID, submission.ID, failing)
	if err != nil {
		t.Fatalf("first SubmitReview failed: %v", err)
	}
	if outcome.SubmissionStatus != models.StatusRedo {
		t.Errorf("expected redo within budget, got %s", outcome.SubmissionStatus)
	}

	var reloaded models.Submission
	db.First(&reloaded, "id = ?", submission.ID)
	if reloaded.RedoCount != 1 {
		t.Errorf("expected redo_count 1, got %d", reloaded.RedoCount)
	}

	// Budget of one redo is spent; the next failure rejects for good
	outcome, err = service.SubmitReview(ctx, project.ID, submission.ID, failing)
	if err != nil {
		t.Fatalf("second SubmitReview failed: %v", err)
	}
	if outcome.SubmissionStatus != models.StatusRejected {
		t.Errorf("expected rejected past budget, got %s", outcome.SubmissionStatus)
	}
}

func TestSubmitReviewUnlimitedRedo(t *testing.T) {
	db := setupTestDB(t)
	service := NewReviewService(db, NewPaymentService(db))
	ctx := context.Background()

	project := createReviewProject(t, db, "review-unlimited", nil)
	reviewer := createTestUser(t, db, "unl-rev@test.com", models.RoleReviewer)
	submission := newSubmission(t, db, project, "unl-agent@test.com")

	failing := &models.SubmitReviewRequest{
		Reviewer: reviewer.Email,
		Scores:   map[string]int{"accuracy": 1, "clarity": 1},
	}

	for round := 1; round <= 3; round++ {
		outcome, err := service.SubmitReview(ctx, project.ID, submission.ID, failing)
		if err != nil {
			t.Fatalf("SubmitReview round %d failed: %v", round, err)
		}
		if outcome.SubmissionStatus != models.StatusRedo {
			t.Errorf("round %d: expected redo with no budget set, got %s", round, outcome.SubmissionStatus)
		}
	}
}

func TestSubmitReviewUpsertsSingleReviewRow(t *testing.T) {
	db := setupTestDB(t)
	service := NewReviewService(db, NewPaymentService(db))
	ctx := context.Background()

	project := createReviewProject(t, db, "review-upsert", nil)
	reviewer := createTestUser(t, db, "upsert-rev@test.com", models.RoleReviewer)
	submission := newSubmission(t, db, project, "upsert-agent@test.com")

	if _, err := service.SubmitReview(ctx, project.ID, submission.ID, &models.SubmitReviewRequest{
		Reviewer: reviewer.Email,
		Scores:   map[string]int{"accuracy": 1, "clarity": 1},
	}); err != nil {
		t.Fatalf("first SubmitReview failed: %v", err)
	}

	if _, err := service.SubmitReview(ctx, project.ID, submission.ID, &models.SubmitReviewRequest{
		Reviewer: reviewer.Email,
		Scores:   map[string]int{"accuracy": 5, "clarity": 5},
	}); err != nil {
		t.Fatalf("second SubmitReview failed: %v", err)
	}

	var reviews []models.Review
	db.Where("submission_id = ?", submission.ID).Find(&reviews)
	if len(reviews) != 1 {
		t.Fatalf("expected 1 review row, got %d", len(reviews))
	}
	if reviews[0].Decision == nil || *reviews[0].Decision != models.StatusAccepted {
		t.Errorf("expected review decision updated to accepted, got %v", reviews[0].Decision)
	}
}

func TestSubmitReviewNoParameters(t *testing.T) {
	db := setupTestDB(t)
	service := NewReviewService(db, NewPaymentService(db))

	project := createTestProject(t, db, "review-no-params", nil)
	reviewer := createTestUser(t, db, "np-rev@test.com", models.RoleReviewer)
	submission := newSubmission(t, db, project, "np-agent@test.com")

	_, err := service.SubmitReview(context.Background(), project.ID, submission.ID, &models.SubmitReviewRequest{
		Reviewer: reviewer.Email,
		Scores:   map[string]int{},
	})
	if !errors.Is(err, ErrNoReviewParameters) {
		t.Errorf("expected ErrNoReviewParameters, got %v", err)
	}
}

func TestSubmitReviewFallsBackToScoreKeys(t *testing.T) {
	db := setupTestDB(t)
	service := NewReviewService(db, NewPaymentService(db))

	// No configured parameters: the submitted score keys drive the verdict
	project := createTestProject(t, db, "review-fallback", func(p *models.Project) {
		p.ReviewScale = 5
		p.ReviewThresholdPercent = 50
	})
	reviewer := createTestUser(t, db, "fb-rev@test.com", models.RoleReviewer)
	submission := newSubmission(t, db, project, "fb-agent@test.com")

	outcome, err := service.SubmitReview(context.Background(), project.ID, submission.ID, &models.SubmitReviewRequest{
		Reviewer: reviewer.Email,
		Scores:   map[string]int{"overall": 4},
	})
	if err != nil {
		t.Fatalf("SubmitReview failed: %v", err)
	}
	if outcome.SubmissionStatus != models.StatusAccepted {
		t.Errorf("expected accepted, got %s", outcome.SubmissionStatus)
	}
}

func TestSubmitReviewRejectsAgentReviewer(t *testing.T) {
	db := setupTestDB(t)
	service := NewReviewService(db, NewPaymentService(db))

	project := createReviewProject(t, db, "review-agent-role", nil)
	agent := createTestUser(t, db, "cannot-review@test.com", models.RoleAgent)
	submission := newSubmission(t, db, project, "rr-agent@test.com")

	_, err := service.SubmitReview(context.Background(), project.ID, submission.ID, &models.SubmitReviewRequest{
		Reviewer: agent.Email,
		Scores:   map[string]int{"accuracy": 5, "clarity": 5},
	})
	if err == nil {
		t.Fatal("expected error for a reviewer without review rights")
	}
}

func TestOverrideReviewStatusValidation(t *testing.T) {
	db := setupTestDB(t)
	service := NewReviewService(db, NewPaymentService(db))

	project := createReviewProject(t, db, "override-invalid", nil)
	reviewer := createTestUser(t, db, "ov-rev@test.com", models.RoleReviewer)
	submission := newSubmission(t, db, project, "ov-agent@test.com")

	err := service.OverrideReviewStatus(context.Background(), project.ID, submission.ID, &models.OverrideReviewRequest{
		Reviewer: reviewer.Email,
		Status:   models.StatusSubmitted,
	})
	if err == nil {
		t.Fatal("expected error for non-override status")
	}
}

func TestOverrideReviewAcceptedPaysAgent(t *testing.T) {
	db := setupTestDB(t)
	service := NewReviewService(db, NewPaymentService(db))
	ctx := context.Background()

	project := createReviewProject(t, db, "override-accept", nil)
	reviewer := createTestUser(t, db, "ova-rev@test.com", models.RoleReviewer)
	submission := newSubmission(t, db, project, "ova-agent@test.com")

	err := service.OverrideReviewStatus(ctx, project.ID, submission.ID, &models.OverrideReviewRequest{
		Reviewer: reviewer.Email,
		Status:   models.StatusAccepted,
	})
	if err != nil {
		t.Fatalf("OverrideReviewStatus failed: %v", err)
	}

	var reloaded models.Submission
	db.First(&reloaded, "id = ?", submission.ID)
	if reloaded.Status != models.StatusAccepted {
		t.Errorf("expected submission accepted, got %s", reloaded.Status)
	}

	var payment models.CoinPayment
	err = db.Where("user_id = ? AND project_id = ?", submission.UserID, project.ID).First(&payment).Error
	if err != nil {
		t.Fatalf("expected agent payment, got %v", err)
	}
	if !payment.CoinsEarned.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected award 10, got %s", payment.CoinsEarned)
	}
}
