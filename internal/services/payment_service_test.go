package services

import (
	"context"
	"errors"
	"testing"

	"crowdsource-backend/internal/models"

	"github.com/shopspring/decimal"
)

func TestAwardAgentCoinsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	service := NewPaymentService(db)
	ctx := context.Background()

	project := createReviewProject(t, db, "pay-agent", nil)
	submission := newSubmission(t, db, project, "pay-agent@test.com")
	db.Model(&models.Submission{}).Where("id = ?", submission.ID).
		Update("status", models.StatusAccepted)

	first, err := service.AwardAgentCoins(ctx, submission.ID)
	if err != nil {
		t.Fatalf("first AwardAgentCoins failed: %v", err)
	}
	if first == nil {
		t.Fatal("expected a payment for an accepted submission")
	}
	if !first.CoinsEarned.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected 10 coins, got %s", first.CoinsEarned)
	}

	second, err := service.AwardAgentCoins(ctx, submission.ID)
	if err != nil {
		t.Fatalf("second AwardAgentCoins failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected the existing payment back, got a new one")
	}

	var count int64
	db.Model(&models.CoinPayment{}).Where("user_id = ?", submission.UserID).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 ledger row, got %d", count)
	}
}

func TestAwardAgentCoinsNotAcceptedYet(t *testing.T) {
	db := setupTestDB(t)
	service := NewPaymentService(db)

	project := createReviewProject(t, db, "pay-pending", nil)
	submission := newSubmission(t, db, project, "pay-pending@test.com")

	payment, err := service.AwardAgentCoins(context.Background(), submission.ID)
	if err != nil {
		t.Fatalf("AwardAgentCoins failed: %v", err)
	}
	if payment != nil {
		t.Errorf("expected no payment for a submitted submission, got %s", payment.ID)
	}

	var count int64
	db.Model(&models.CoinPayment{}).Count(&count)
	if count != 0 {
		t.Errorf("expected empty ledger, got %d rows", count)
	}
}

func TestAwardReviewerCoinsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	service := NewPaymentService(db)
	ctx := context.Background()

	project := createReviewProject(t, db, "pay-reviewer", nil)
	reviewer := createTestUser(t, db, "paid-rev@test.com", models.RoleReviewer)
	submission := newSubmission(t, db, project, "pr-agent@test.com")
	allocation := createReviewerAllocation(t, db, submission.ID, reviewer.ID)
	db.Model(&models.ReviewerAllocation{}).Where("id = ?", allocation.ID).
		Update("status", models.StatusAccepted)

	first, err := service.AwardReviewerCoins(ctx, reviewer.ID, submission.ID)
	if err != nil {
		t.Fatalf("first AwardReviewerCoins failed: %v", err)
	}
	if first == nil {
		t.Fatal("expected a payment for an accepted review")
	}
	if !first.CoinsEarned.Equal(decimal.NewFromInt(5)) {
		t.Errorf("expected 5 coins, got %s", first.CoinsEarned)
	}

	second, err := service.AwardReviewerCoins(ctx, reviewer.ID, submission.ID)
	if err != nil {
		t.Fatalf("second AwardReviewerCoins failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected the existing payment back, got a new one")
	}

	var count int64
	db.Model(&models.CoinPayment{}).Where("user_id = ?", reviewer.ID).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 ledger row, got %d", count)
	}
}

func TestAwardReviewerCoinsPendingAllocation(t *testing.T) {
	db := setupTestDB(t)
	service := NewPaymentService(db)

	project := createReviewProject(t, db, "pay-rev-pending", nil)
	reviewer := createTestUser(t, db, "pend-rev@test.com", models.RoleReviewer)
	submission := newSubmission(t, db, project, "prp-agent@test.com")
	createReviewerAllocation(t, db, submission.ID, reviewer.ID)

	payment, err := service.AwardReviewerCoins(context.Background(), reviewer.ID, submission.ID)
	if err != nil {
		t.Fatalf("AwardReviewerCoins failed: %v", err)
	}
	if payment != nil {
		t.Errorf("expected no payment for a pending allocation, got %s", payment.ID)
	}
}

func TestAwardReviewerCoinsMissingAllocation(t *testing.T) {
	db := setupTestDB(t)
	service := NewPaymentService(db)

	project := createReviewProject(t, db, "pay-rev-missing", nil)
	reviewer := createTestUser(t, db, "miss-rev@test.com", models.RoleReviewer)
	submission := newSubmission(t, db, project, "prm-agent@test.com")

	_, err := service.AwardReviewerCoins(context.Background(), reviewer.ID, submission.ID)
	if !errors.Is(err, ErrAllocationUnpaid) {
		t.Errorf("expected ErrAllocationUnpaid, got %v", err)
	}
}

func TestSuperReviewerPolicyAmounts(t *testing.T) {
	db := setupTestDB(t)
	service := NewPaymentService(db)
	ctx := context.Background()

	project := createReviewProject(t, db, "pay-super", func(p *models.Project) {
		p.SuperReviewerCoin = decimal.NewFromInt(20)
	})
	superReviewer := createTestUser(t, db, "super@test.com", models.RoleSuperReviewer)
	submission := newSubmission(t, db, project, "ps-agent@test.com")
	allocation := createReviewerAllocation(t, db, submission.ID, superReviewer.ID)
	db.Model(&models.ReviewerAllocation{}).Where("id = ?", allocation.ID).
		Update("status", models.StatusAccepted)

	payment, err := service.AwardReviewerCoins(ctx, superReviewer.ID, submission.ID)
	if err != nil {
		t.Fatalf("AwardReviewerCoins failed: %v", err)
	}
	if !payment.CoinsEarned.Equal(decimal.NewFromInt(20)) {
		t.Errorf("expected super reviewer award 20, got %s", payment.CoinsEarned)
	}
}
