package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"crowdsource-backend/internal/models"
	"crowdsource-backend/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrNoActiveReviewers means the project reviewer pool is empty or fully deactivated
	ErrNoActiveReviewers = errors.New("project has no active reviewers")
	// ErrReviewerCapacity means every active reviewer is at the project's reviewer quota
	ErrReviewerCapacity = errors.New("all reviewers are at capacity")
	// ErrSubmissionAlreadyAssigned means the submission already has a non-rejected reviewer allocation
	ErrSubmissionAlreadyAssigned = errors.New("submission already has an active reviewer allocation")
)

// ReviewerAssignmentService routes submissions to reviewers. Auto-assignment
// picks the least loaded active reviewer in the project; manual and bulk
// assignment target a named reviewer with the same duplicate guards.
type ReviewerAssignmentService struct {
	db *gorm.DB
}

func NewReviewerAssignmentService(db *gorm.DB) *ReviewerAssignmentService {
	return &ReviewerAssignmentService{db: db}
}

// AssignReviewer assigns the least loaded active reviewer to a submission.
// Load is the reviewer's allocation count within this project only, and ties
// go to the earliest pool member, so repeated runs pick predictably.
func (s *ReviewerAssignmentService) AssignReviewer(ctx context.Context, projectID, submissionID uuid.UUID) (*models.ReviewerAllocation, error) {
	var assigned *models.ReviewerAllocation

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewRepository(tx)

		project, err := repo.GetProjectByID(ctx, projectID)
		if err != nil {
			return fmt.Errorf("failed to load project: %w", err)
		}

		submission, err := s.projectSubmission(ctx, repo, project.ID, submissionID)
		if err != nil {
			return err
		}

		pool, err := repo.GetActiveProjectReviewers(ctx, projectID)
		if err != nil {
			return fmt.Errorf("failed to load reviewer pool: %w", err)
		}
		if len(pool) == 0 {
			return ErrNoActiveReviewers
		}

		loads, err := repo.GetReviewerLoads(ctx, projectID)
		if err != nil {
			return fmt.Errorf("failed to count reviewer loads: %w", err)
		}

		// First minimum in pool order wins ties
		var pick *models.ProjectReviewer
		for _, member := range pool {
			load := loads[member.ReviewerID]
			if load >= int64(project.ReviewerQuota) {
				continue
			}
			if pick == nil || load < loads[pick.ReviewerID] {
				pick = member
			}
		}
		if pick == nil {
			return ErrReviewerCapacity
		}

		assigned, err = s.assign(ctx, tx, repo, submission, pick.ReviewerID)
		return err
	})

	if err != nil {
		return nil, err
	}

	log.Printf("Assigned reviewer %s to submission %s", assigned.ReviewerID, submissionID)

	return assigned, nil
}

// AssignSubmission assigns a named reviewer (by id or email) to a submission
func (s *ReviewerAssignmentService) AssignSubmission(
	ctx context.Context,
	projectID, submissionID uuid.UUID,
	reviewerIdentifier string,
) (*models.ReviewerAllocation, error) {
	var assigned *models.ReviewerAllocation

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewRepository(tx)

		project, err := repo.GetProjectByID(ctx, projectID)
		if err != nil {
			return fmt.Errorf("failed to load project: %w", err)
		}

		submission, err := s.projectSubmission(ctx, repo, project.ID, submissionID)
		if err != nil {
			return err
		}

		reviewer, err := resolveUser(ctx, repo, reviewerIdentifier)
		if err != nil {
			return fmt.Errorf("failed to resolve reviewer: %w", err)
		}
		if !reviewer.Role.CanReview() {
			return fmt.Errorf("user %s cannot review submissions", reviewer.Email)
		}

		assigned, err = s.assign(ctx, tx, repo, submission, reviewer.ID)
		return err
	})

	if err != nil {
		return nil, err
	}

	return assigned, nil
}

// BulkAssign consumes (submission, reviewer email) rows and assigns each one.
// Bad rows are skipped with a reason, never fail the batch; store errors do.
func (s *ReviewerAssignmentService) BulkAssign(
	ctx context.Context,
	projectID uuid.UUID,
	rows []models.ReviewerAssignmentRow,
) (*models.BulkAssignmentSummary, error) {
	summary := &models.BulkAssignmentSummary{
		Skipped: []string{},
		Details: []uuid.UUID{},
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewRepository(tx)

		project, err := repo.GetProjectByID(ctx, projectID)
		if err != nil {
			return fmt.Errorf("failed to load project: %w", err)
		}

		for _, row := range rows {
			reviewer, err := repo.GetUserByEmail(ctx, row.ReviewerEmail)
			if err == gorm.ErrRecordNotFound {
				summary.Skipped = append(summary.Skipped, fmt.Sprintf("reviewer not found: %s", row.ReviewerEmail))
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to resolve reviewer: %w", err)
			}
			if !reviewer.Role.CanReview() {
				summary.Skipped = append(summary.Skipped, fmt.Sprintf("user cannot review: %s", row.ReviewerEmail))
				continue
			}

			submission, err := s.projectSubmission(ctx, repo, project.ID, row.SubmissionID)
			if err != nil {
				summary.Skipped = append(summary.Skipped, fmt.Sprintf("submission %s: %v", row.SubmissionID, err))
				continue
			}

			allocation, err := s.assign(ctx, tx, repo, submission, reviewer.ID)
			if err == ErrSubmissionAlreadyAssigned {
				summary.Skipped = append(summary.Skipped, fmt.Sprintf("submission already assigned: %s", row.SubmissionID))
				continue
			}
			if err != nil {
				return err
			}

			summary.Uploaded++
			summary.Details = append(summary.Details, allocation.ID)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	log.Printf("Bulk assignment for project %s: %d assigned, %d skipped", projectID, summary.Uploaded, len(summary.Skipped))

	return summary, nil
}

// projectSubmission loads a submission and verifies it belongs to the project
func (s *ReviewerAssignmentService) projectSubmission(
	ctx context.Context,
	repo *repository.Repository,
	projectID, submissionID uuid.UUID,
) (*models.Submission, error) {
	submission, err := repo.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load submission: %w", err)
	}
	if submission.Task == nil || submission.Task.ProjectID != projectID {
		return nil, errors.New("submission does not belong to project")
	}
	return submission, nil
}

// assign guards against duplicate active allocations, creates the pending
// allocation and pushes pending down the status chain.
func (s *ReviewerAssignmentService) assign(
	ctx context.Context,
	tx *gorm.DB,
	repo *repository.Repository,
	submission *models.Submission,
	reviewerID uuid.UUID,
) (*models.ReviewerAllocation, error) {
	existing, err := repo.FindActiveReviewerAllocation(ctx, submission.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check reviewer allocations: %w", err)
	}
	if existing != nil {
		return nil, ErrSubmissionAlreadyAssigned
	}

	allocation := &models.ReviewerAllocation{
		ID:           uuid.New(),
		SubmissionID: submission.ID,
		ReviewerID:   reviewerID,
		Status:       models.StatusPending,
		AssignedAt:   time.Now(),
	}

	if err := repo.CreateReviewerAllocation(ctx, allocation); err != nil {
		return nil, fmt.Errorf("failed to create reviewer allocation: %w", err)
	}

	if err := cascadeReviewerStatus(tx, allocation, submission, models.StatusPending); err != nil {
		return nil, err
	}

	return allocation, nil
}

// resolveUser finds a user by UUID string or email
func resolveUser(ctx context.Context, repo *repository.Repository, identifier string) (*models.User, error) {
	if id, err := uuid.Parse(identifier); err == nil {
		return repo.GetUserByID(ctx, id)
	}
	return repo.GetUserByEmail(ctx, identifier)
}
