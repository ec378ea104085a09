package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"crowdsource-backend/internal/models"
	"crowdsource-backend/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNoReviewParameters means the project has no configured review parameters
// and the reviewer supplied no scores to derive them from
var ErrNoReviewParameters = errors.New("no review parameters configured and no scores supplied")

// ReviewService turns reviewer scores into submission decisions. Scoring,
// the review upsert, the status cascade and the reward attempts all run in
// one transaction.
type ReviewService struct {
	db       *gorm.DB
	payments *PaymentService
}

func NewReviewService(db *gorm.DB, payments *PaymentService) *ReviewService {
	return &ReviewService{db: db, payments: payments}
}

// reviewVerdict is the arithmetic half of a review decision
type reviewVerdict struct {
	TotalScore     float64
	MaxScore       float64
	ThresholdScore float64
	Approved       bool
	ScoredPercent  float64
}

// scoreAgainstParameters sums the reviewer's scores over the parameter set.
// Parameters the reviewer did not score count as zero. The threshold is
// inclusive: totals exactly on it approve.
func scoreAgainstParameters(params []string, scores map[string]int, scale int, thresholdPercent float64) reviewVerdict {
	total := 0
	for _, param := range params {
		total += scores[param]
	}

	maxScore := len(params) * scale
	threshold := thresholdPercent / 100 * float64(maxScore)

	verdict := reviewVerdict{
		TotalScore:     float64(total),
		MaxScore:       float64(maxScore),
		ThresholdScore: threshold,
		Approved:       float64(total) >= threshold,
	}
	if maxScore > 0 {
		verdict.ScoredPercent = float64(total) / float64(maxScore) * 100
	}

	return verdict
}

// SubmitReview scores a submission and drives it to accepted, redo or
// rejected. A failing score consumes one redo from the project's budget;
// past the budget the submission is rejected for good. Rewards ride the same
// transaction: agent coins on acceptance, reviewer coins whenever the
// reviewer's own allocation has reached accepted.
func (s *ReviewService) SubmitReview(
	ctx context.Context,
	projectID, submissionID uuid.UUID,
	req *models.SubmitReviewRequest,
) (*models.ReviewOutcome, error) {
	var outcome *models.ReviewOutcome

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewRepository(tx)

		reviewer, err := resolveUser(ctx, repo, req.Reviewer)
		if err != nil {
			return fmt.Errorf("failed to resolve reviewer: %w", err)
		}
		if !reviewer.Role.CanReview() {
			return fmt.Errorf("user %s cannot review submissions", reviewer.Email)
		}

		submission, err := repo.GetSubmissionByID(ctx, submissionID)
		if err != nil {
			return fmt.Errorf("failed to load submission: %w", err)
		}
		if submission.Task == nil || submission.Task.ProjectID != projectID {
			return errors.New("submission does not belong to project")
		}

		project, err := repo.GetProjectByID(ctx, projectID)
		if err != nil {
			return fmt.Errorf("failed to load project: %w", err)
		}

		params := project.ReviewParameterList()
		if len(params) == 0 {
			if len(req.Scores) == 0 {
				return ErrNoReviewParameters
			}
			for param := range req.Scores {
				params = append(params, param)
			}
		}

		verdict := scoreAgainstParameters(params, req.Scores, project.ReviewScale, project.ReviewThresholdPercent)

		finalStatus := models.StatusAccepted
		if !verdict.Approved {
			redoCount := submission.RedoCount + 1
			if err := tx.Model(&models.Submission{}).
				Where("id = ?", submission.ID).
				Updates(map[string]interface{}{"redo_count": redoCount}).Error; err != nil {
				return fmt.Errorf("failed to update redo count: %w", err)
			}
			submission.RedoCount = redoCount

			if project.NumRedo != nil && redoCount > *project.NumRedo {
				finalStatus = models.StatusRejected
			} else {
				finalStatus = models.StatusRedo
			}
		}

		_, err = upsertReview(tx, submission.ID, reviewer.ID, func(review *models.Review) {
			scores := make(map[string]interface{}, len(req.Scores))
			for param, value := range req.Scores {
				scores[param] = value
			}
			total := verdict.TotalScore
			approved := verdict.Approved
			status := finalStatus

			review.Scores = scores
			review.TotalScore = &total
			review.Decision = &status
			review.Approved = &approved
			review.Comments = req.Comments
		})
		if err != nil {
			return fmt.Errorf("failed to upsert review: %w", err)
		}

		allocation, err := repo.FindReviewerAllocationForReviewer(ctx, submission.ID, reviewer.ID)
		if err != nil && err != gorm.ErrRecordNotFound {
			return fmt.Errorf("failed to load reviewer allocation: %w", err)
		}

		if err := cascadeReviewerStatus(tx, allocation, submission, finalStatus); err != nil {
			return err
		}
		submission.Status = finalStatus

		if err := repo.IncrementTaskDecisionCounters(ctx, submission.TaskID, submission.Task.PromptID, finalStatus); err != nil {
			return fmt.Errorf("failed to update task counters: %w", err)
		}

		if finalStatus == models.StatusAccepted {
			if _, err := s.payments.awardAgentCoins(ctx, tx, submission); err != nil {
				return err
			}
		}
		if allocation != nil {
			if _, err := s.payments.awardReviewerCoins(ctx, tx, reviewer.ID, submission.ID); err != nil {
				return err
			}
		}

		outcome = &models.ReviewOutcome{
			SubmissionStatus: finalStatus,
			TotalScore:       verdict.TotalScore,
			Approved:         verdict.Approved,
			ThresholdPercent: project.ReviewThresholdPercent,
			ScoredPercent:    verdict.ScoredPercent,
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	log.Printf("Review for submission %s: status %s, total score %.1f (%.1f%% scored)",
		submissionID, outcome.SubmissionStatus, outcome.TotalScore, outcome.ScoredPercent)

	return outcome, nil
}

// OverrideReviewStatus sets a review decision directly, bypassing scoring.
// Only pending, accepted, rejected and redo may be forced. Acceptance
// triggers both reward paths, same as a scored acceptance.
func (s *ReviewService) OverrideReviewStatus(
	ctx context.Context,
	projectID, submissionID uuid.UUID,
	req *models.OverrideReviewRequest,
) error {
	if !req.Status.IsReviewOverride() {
		return fmt.Errorf("status %s cannot be set manually", req.Status)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewRepository(tx)

		reviewer, err := resolveUser(ctx, repo, req.Reviewer)
		if err != nil {
			return fmt.Errorf("failed to resolve reviewer: %w", err)
		}
		if !reviewer.Role.CanReview() {
			return fmt.Errorf("user %s cannot review submissions", reviewer.Email)
		}

		submission, err := repo.GetSubmissionByID(ctx, submissionID)
		if err != nil {
			return fmt.Errorf("failed to load submission: %w", err)
		}
		if submission.Task == nil || submission.Task.ProjectID != projectID {
			return errors.New("submission does not belong to project")
		}

		_, err = upsertReview(tx, submission.ID, reviewer.ID, func(review *models.Review) {
			status := req.Status
			approved := req.Status == models.StatusAccepted

			review.Decision = &status
			review.Approved = &approved
			review.Comments = req.Comments
		})
		if err != nil {
			return fmt.Errorf("failed to upsert review: %w", err)
		}

		allocation, err := repo.FindReviewerAllocationForReviewer(ctx, submission.ID, reviewer.ID)
		if err != nil && err != gorm.ErrRecordNotFound {
			return fmt.Errorf("failed to load reviewer allocation: %w", err)
		}

		if err := cascadeReviewerStatus(tx, allocation, submission, req.Status); err != nil {
			return err
		}
		submission.Status = req.Status

		if req.Status.IsDecision() {
			if err := repo.IncrementTaskDecisionCounters(ctx, submission.TaskID, submission.Task.PromptID, req.Status); err != nil {
				return fmt.Errorf("failed to update task counters: %w", err)
			}
		}

		if req.Status == models.StatusAccepted {
			if _, err := s.payments.awardAgentCoins(ctx, tx, submission); err != nil {
				return err
			}
			if allocation != nil {
				if _, err := s.payments.awardReviewerCoins(ctx, tx, reviewer.ID, submission.ID); err != nil {
					return err
				}
			}
		}

		logAction(tx, reviewer.ID, "review_override",
			fmt.Sprintf("submission %s set to %s", submission.ID, req.Status))

		return nil
	})
}

// upsertReview loads or creates the (submission, reviewer) review row and
// applies the mutation before persisting
func upsertReview(tx *gorm.DB, submissionID, reviewerID uuid.UUID, mutate func(*models.Review)) (*models.Review, error) {
	var review models.Review
	err := tx.Where("submission_id = ? AND reviewer_id = ?", submissionID, reviewerID).First(&review).Error

	if err == gorm.ErrRecordNotFound {
		review = models.Review{
			ID:           uuid.New(),
			SubmissionID: submissionID,
			ReviewerID:   reviewerID,
			ReviewLevel:  "human",
		}
	} else if err != nil {
		return nil, err
	}

	mutate(&review)

	if err == gorm.ErrRecordNotFound {
		if createErr := tx.Create(&review).Error; createErr != nil {
			return nil, createErr
		}
		return &review, nil
	}

	if saveErr := tx.Save(&review).Error; saveErr != nil {
		return nil, saveErr
	}
	return &review, nil
}

// ListReviewerQueue returns a reviewer's open worklist. Statuses default to
// pending; an optional project narrows the scope.
func (s *ReviewService) ListReviewerQueue(
	ctx context.Context,
	reviewerIdentifier string,
	projectID *uuid.UUID,
	statuses []models.Status,
) ([]*models.ReviewerQueueItem, error) {
	reviewer, err := resolveUser(ctx, repository.NewRepository(s.db), reviewerIdentifier)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve reviewer: %w", err)
	}

	if len(statuses) == 0 {
		statuses = []models.Status{models.StatusPending}
	}

	allocations, err := s.reviewerAllocations(ctx, reviewer.ID, projectID, statuses)
	if err != nil {
		return nil, err
	}

	items := make([]*models.ReviewerQueueItem, 0, len(allocations))
	for _, allocation := range allocations {
		if allocation.Submission == nil {
			continue
		}
		item := &models.ReviewerQueueItem{
			ReviewerAllocationID: allocation.ID,
			SubmissionID:         allocation.SubmissionID,
			FileURL:              allocation.Submission.FileURL,
			PayloadText:          allocation.Submission.PayloadText,
			ContributorID:        allocation.Submission.UserID,
			AssignedAt:           allocation.AssignedAt,
			Status:               allocation.Status,
		}
		if task := allocation.Submission.Task; task != nil {
			item.PromptID = task.PromptID
			if task.Prompt != nil {
				item.PromptText = &task.Prompt.Text
			}
		}
		items = append(items, item)
	}

	return items, nil
}

// ReviewerHistory returns everything a reviewer has been assigned, newest
// decisions first
func (s *ReviewService) ReviewerHistory(
	ctx context.Context,
	reviewerIdentifier string,
	projectID *uuid.UUID,
) ([]*models.ReviewerHistoryItem, error) {
	reviewer, err := resolveUser(ctx, repository.NewRepository(s.db), reviewerIdentifier)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve reviewer: %w", err)
	}

	allocations, err := s.reviewerAllocations(ctx, reviewer.ID, projectID, nil)
	if err != nil {
		return nil, err
	}

	items := make([]*models.ReviewerHistoryItem, 0, len(allocations))
	for _, allocation := range allocations {
		if allocation.Submission == nil {
			continue
		}
		item := &models.ReviewerHistoryItem{
			SubmissionID:  allocation.SubmissionID,
			ContributorID: allocation.Submission.UserID,
			Status:        allocation.Status,
			ReviewedAt:    allocation.ReviewedAt,
		}
		if task := allocation.Submission.Task; task != nil {
			item.PromptID = task.PromptID
			if task.Prompt != nil {
				item.PromptText = &task.Prompt.Text
			}
		}
		items = append(items, item)
	}

	return items, nil
}

func (s *ReviewService) reviewerAllocations(
	ctx context.Context,
	reviewerID uuid.UUID,
	projectID *uuid.UUID,
	statuses []models.Status,
) ([]*models.ReviewerAllocation, error) {
	query := s.db.WithContext(ctx).
		Preload("Submission").
		Preload("Submission.Task").
		Preload("Submission.Task.Prompt").
		Where("reviewer_allocations.reviewer_id = ?", reviewerID).
		Order("reviewer_allocations.assigned_at DESC")

	if len(statuses) > 0 {
		query = query.Where("reviewer_allocations.status IN ?", statuses)
	}

	if projectID != nil {
		query = query.
			Joins("JOIN submissions ON submissions.id = reviewer_allocations.submission_id").
			Joins("JOIN tasks ON tasks.id = submissions.task_id").
			Where("tasks.project_id = ?", *projectID)
	}

	var allocations []*models.ReviewerAllocation
	if err := query.Find(&allocations).Error; err != nil {
		return nil, fmt.Errorf("failed to load reviewer allocations: %w", err)
	}

	return allocations, nil
}
