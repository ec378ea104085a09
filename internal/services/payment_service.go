package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"crowdsource-backend/internal/models"
	"crowdsource-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrAllocationUnpaid means the reward reference (allocation or reviewer
// allocation) the payment should hang off does not exist
var ErrAllocationUnpaid = errors.New("no allocation to pay against")

// RewardPolicy captures what differs between paying an agent and paying a
// reviewer: the coin and cash amounts, the ledger reference the payment hangs
// off, and the idempotency lookup. A policy is selected once per award call;
// nothing downstream branches on role strings again.
type RewardPolicy interface {
	Role() models.UserRole
	CoinAmount(project *models.Project) decimal.Decimal
	CashAmount(project *models.Project) decimal.Decimal
	AttachReference(payment *models.CoinPayment, referenceID uuid.UUID)
	FindExisting(ctx context.Context, repo *repository.Repository, userID, referenceID uuid.UUID) (*models.CoinPayment, error)
}

type agentRewardPolicy struct{}

func (agentRewardPolicy) Role() models.UserRole { return models.RoleAgent }

func (agentRewardPolicy) CoinAmount(project *models.Project) decimal.Decimal {
	return project.AgentCoin
}

func (agentRewardPolicy) CashAmount(project *models.Project) decimal.Decimal {
	return project.AgentAmount
}

func (agentRewardPolicy) AttachReference(payment *models.CoinPayment, referenceID uuid.UUID) {
	payment.AllocationID = &referenceID
}

func (agentRewardPolicy) FindExisting(ctx context.Context, repo *repository.Repository, userID, referenceID uuid.UUID) (*models.CoinPayment, error) {
	return repo.FindPaymentByAllocation(ctx, userID, referenceID)
}

type reviewerRewardPolicy struct{}

func (reviewerRewardPolicy) Role() models.UserRole { return models.RoleReviewer }

func (reviewerRewardPolicy) CoinAmount(project *models.Project) decimal.Decimal {
	return project.ReviewerCoin
}

func (reviewerRewardPolicy) CashAmount(project *models.Project) decimal.Decimal {
	return project.ReviewerAmount
}

func (reviewerRewardPolicy) AttachReference(payment *models.CoinPayment, referenceID uuid.UUID) {
	payment.ReviewerAllocationID = &referenceID
}

func (reviewerRewardPolicy) FindExisting(ctx context.Context, repo *repository.Repository, userID, referenceID uuid.UUID) (*models.CoinPayment, error) {
	return repo.FindPaymentByReviewerAllocation(ctx, userID, referenceID)
}

type superReviewerRewardPolicy struct{}

func (superReviewerRewardPolicy) Role() models.UserRole { return models.RoleSuperReviewer }

func (superReviewerRewardPolicy) CoinAmount(project *models.Project) decimal.Decimal {
	return project.SuperReviewerCoin
}

func (superReviewerRewardPolicy) CashAmount(project *models.Project) decimal.Decimal {
	return project.SuperReviewerAmount
}

func (superReviewerRewardPolicy) AttachReference(payment *models.CoinPayment, referenceID uuid.UUID) {
	payment.ReviewerAllocationID = &referenceID
}

func (superReviewerRewardPolicy) FindExisting(ctx context.Context, repo *repository.Repository, userID, referenceID uuid.UUID) (*models.CoinPayment, error) {
	return repo.FindPaymentByReviewerAllocation(ctx, userID, referenceID)
}

// reviewerPolicyFor selects the reward policy matching a reviewing role
func reviewerPolicyFor(role models.UserRole) RewardPolicy {
	if role == models.RoleSuperReviewer {
		return superReviewerRewardPolicy{}
	}
	return reviewerRewardPolicy{}
}

// PaymentService is the reward ledger. Every award is exactly-once per
// ledger reference: an in-transaction existence check first, the composite
// unique indexes on coin_payments as the backstop for races.
type PaymentService struct {
	db *gorm.DB
}

func NewPaymentService(db *gorm.DB) *PaymentService {
	return &PaymentService{db: db}
}

// AwardAgentCoins pays the submitting agent for an accepted submission,
// running its own transaction. Used by the payments endpoint; the review
// flow calls awardAgentCoins inside its transaction instead.
func (s *PaymentService) AwardAgentCoins(ctx context.Context, submissionID uuid.UUID) (*models.CoinPayment, error) {
	var payment *models.CoinPayment

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		submission, err := repository.NewRepository(tx).GetSubmissionByID(ctx, submissionID)
		if err != nil {
			return fmt.Errorf("failed to load submission: %w", err)
		}

		payment, err = s.awardAgentCoins(ctx, tx, submission)
		return err
	})

	if err != nil {
		return nil, err
	}

	return payment, nil
}

// AwardReviewerCoins pays a reviewer for an accepted review, running its own
// transaction
func (s *PaymentService) AwardReviewerCoins(ctx context.Context, reviewerID, submissionID uuid.UUID) (*models.CoinPayment, error) {
	var payment *models.CoinPayment

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		payment, err = s.awardReviewerCoins(ctx, tx, reviewerID, submissionID)
		return err
	})

	if err != nil {
		return nil, err
	}

	return payment, nil
}

// awardAgentCoins pays the agent behind a submission's allocation. Returns
// the existing payment untouched when the allocation was already paid, and
// (nil, nil) when the submission is not accepted yet.
func (s *PaymentService) awardAgentCoins(ctx context.Context, tx *gorm.DB, submission *models.Submission) (*models.CoinPayment, error) {
	repo := repository.NewRepository(tx)

	if submission.AssignmentID == nil {
		return nil, ErrAllocationUnpaid
	}

	var allocation models.Allocation
	if err := tx.Where("id = ?", *submission.AssignmentID).First(&allocation).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrAllocationUnpaid
		}
		return nil, fmt.Errorf("failed to load allocation: %w", err)
	}

	policy := agentRewardPolicy{}

	existing, err := policy.FindExisting(ctx, repo, allocation.UserID, allocation.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing payment: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	if submission.Status != models.StatusAccepted && submission.Status != models.StatusApproved {
		return nil, nil
	}

	project, err := repo.GetProjectByID(ctx, allocation.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}

	return s.insertPayment(ctx, repo, policy, project, allocation.UserID, &allocation.TaskID, allocation.ID)
}

// awardReviewerCoins pays the reviewer bound to a submission. Eligibility is
// the reviewer allocation's own status: anything but accepted returns
// (nil, nil) so callers can attempt the award unconditionally.
func (s *PaymentService) awardReviewerCoins(ctx context.Context, tx *gorm.DB, reviewerID, submissionID uuid.UUID) (*models.CoinPayment, error) {
	repo := repository.NewRepository(tx)

	allocation, err := repo.FindReviewerAllocationForReviewer(ctx, submissionID, reviewerID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrAllocationUnpaid
		}
		return nil, fmt.Errorf("failed to load reviewer allocation: %w", err)
	}

	if allocation.Status != models.StatusAccepted {
		return nil, nil
	}

	reviewer, err := repo.GetUserByID(ctx, reviewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reviewer: %w", err)
	}
	policy := reviewerPolicyFor(reviewer.Role)

	existing, err := policy.FindExisting(ctx, repo, reviewerID, allocation.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing payment: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	submission, err := repo.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load submission: %w", err)
	}

	project, err := repo.GetProjectByID(ctx, submission.Task.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}

	return s.insertPayment(ctx, repo, policy, project, reviewerID, &submission.TaskID, allocation.ID)
}

// insertPayment writes the ledger row. A unique index conflict means another
// transaction paid first; the winning row is returned instead of an error.
func (s *PaymentService) insertPayment(
	ctx context.Context,
	repo *repository.Repository,
	policy RewardPolicy,
	project *models.Project,
	userID uuid.UUID,
	taskID *uuid.UUID,
	referenceID uuid.UUID,
) (*models.CoinPayment, error) {
	payment := &models.CoinPayment{
		ID:          uuid.New(),
		UserID:      userID,
		ProjectID:   project.ID,
		TaskID:      taskID,
		CoinsEarned: policy.CoinAmount(project),
		Approved:    true,
	}
	policy.AttachReference(payment, referenceID)

	inserted, err := repo.CreateCoinPayment(ctx, payment)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	if !inserted {
		existing, err := policy.FindExisting(ctx, repo, userID, referenceID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload payment after conflict: %w", err)
		}
		return existing, nil
	}

	log.Printf("Awarded %s coins (%s cash value) to %s user %s in project %s",
		payment.CoinsEarned, policy.CashAmount(project), policy.Role(), userID, project.ID)

	return payment, nil
}
