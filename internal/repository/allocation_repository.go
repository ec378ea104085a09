package repository

import (
	"context"

	"crowdsource-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

// NewRepository wraps a gorm handle. Services that need several calls in one
// transaction construct a Repository around the tx handle inside the closure.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetProjectByID retrieves a project by ID
func (r *Repository) GetProjectByID(ctx context.Context, projectID uuid.UUID) (*models.Project, error) {
	var project models.Project
	err := r.db.WithContext(ctx).Where("id = ?", projectID).First(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// GetProjectPrompts retrieves all prompts of a project in creation order
func (r *Repository) GetProjectPrompts(ctx context.Context, projectID uuid.UUID) ([]*models.Prompt, error) {
	var prompts []*models.Prompt
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&prompts).Error

	if err != nil {
		return nil, err
	}

	return prompts, nil
}

// GetProjectAllocations retrieves all allocations for a project
func (r *Repository) GetProjectAllocations(ctx context.Context, projectID uuid.UUID) ([]*models.Allocation, error) {
	var allocations []*models.Allocation
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Find(&allocations).Error

	if err != nil {
		return nil, err
	}

	return allocations, nil
}

// FindTaskByPrompt finds the task bound to a prompt within a project.
// Returns (nil, nil) when the prompt has no task yet.
func (r *Repository) FindTaskByPrompt(ctx context.Context, projectID, promptID uuid.UUID) (*models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND prompt_id = ?", projectID, promptID).
		First(&task).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &task, nil
}

// CreateTask creates a new task
func (r *Repository) CreateTask(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// CreateAllocation creates a new allocation
func (r *Repository) CreateAllocation(ctx context.Context, allocation *models.Allocation) error {
	return r.db.WithContext(ctx).Create(allocation).Error
}

// IncrementPromptReuses bumps a prompt's reuse counters by the number of
// slots consumed from it in an allocation round.
func (r *Repository) IncrementPromptReuses(ctx context.Context, promptID uuid.UUID, consumed int) error {
	return r.db.WithContext(ctx).Model(&models.Prompt{}).
		Where("id = ?", promptID).
		Updates(map[string]interface{}{
			"current_reuses":  gorm.Expr("current_reuses + ?", consumed),
			"total_allocated": gorm.Expr("total_allocated + ?", consumed),
		}).Error
}

// IncrementSubmissionCounters bumps the intake rollups on a task and, when
// the task carries a prompt, on that prompt
func (r *Repository) IncrementSubmissionCounters(ctx context.Context, taskID uuid.UUID, promptID *uuid.UUID) error {
	err := r.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", taskID).
		Updates(map[string]interface{}{
			"submission_count": gorm.Expr("submission_count + 1"),
		}).Error
	if err != nil {
		return err
	}

	if promptID == nil {
		return nil
	}

	return r.db.WithContext(ctx).Model(&models.Prompt{}).
		Where("id = ?", *promptID).
		Updates(map[string]interface{}{
			"total_submitted": gorm.Expr("total_submitted + 1"),
		}).Error
}

// IncrementTaskDecisionCounters bumps the per-task review rollups after a
// decision and mirrors accept/reject onto the prompt when the task has one
func (r *Repository) IncrementTaskDecisionCounters(ctx context.Context, taskID uuid.UUID, promptID *uuid.UUID, decision models.Status) error {
	taskUpdates := map[string]interface{}{
		"review_count": gorm.Expr("review_count + 1"),
	}
	promptUpdates := map[string]interface{}{}

	switch decision {
	case models.StatusAccepted:
		taskUpdates["accept_count"] = gorm.Expr("accept_count + 1")
		promptUpdates["total_accepted"] = gorm.Expr("total_accepted + 1")
	case models.StatusRejected:
		taskUpdates["reject_count"] = gorm.Expr("reject_count + 1")
		promptUpdates["total_rejected"] = gorm.Expr("total_rejected + 1")
	}

	err := r.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", taskID).
		Updates(taskUpdates).Error
	if err != nil {
		return err
	}

	if promptID == nil || len(promptUpdates) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Model(&models.Prompt{}).
		Where("id = ?", *promptID).
		Updates(promptUpdates).Error
}

// IncrementProjectCounters bumps the denormalized rollup counters on a project
func (r *Repository) IncrementProjectCounters(ctx context.Context, projectID uuid.UUID, prompts, tasks, submissions int) error {
	updates := map[string]interface{}{}
	if prompts != 0 {
		updates["total_prompts"] = gorm.Expr("total_prompts + ?", prompts)
	}
	if tasks != 0 {
		updates["total_tasks"] = gorm.Expr("total_tasks + ?", tasks)
	}
	if submissions != 0 {
		updates["total_submissions"] = gorm.Expr("total_submissions + ?", submissions)
	}
	if len(updates) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Model(&models.Project{}).
		Where("id = ?", projectID).
		Updates(updates).Error
}

// GetActiveProjectReviewers retrieves the active reviewer pool of a project
// in creation order, with the reviewer users attached.
func (r *Repository) GetActiveProjectReviewers(ctx context.Context, projectID uuid.UUID) ([]*models.ProjectReviewer, error) {
	var pool []*models.ProjectReviewer
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND active = ?", projectID, true).
		Preload("Reviewer").
		Order("created_at ASC").
		Find(&pool).Error

	if err != nil {
		return nil, err
	}

	return pool, nil
}

// GetReviewerLoads counts reviewer allocations per reviewer within a project.
// The count walks reviewer_allocations -> submissions -> tasks so that load
// is scoped to the project, not global.
func (r *Repository) GetReviewerLoads(ctx context.Context, projectID uuid.UUID) (map[uuid.UUID]int64, error) {
	var rows []struct {
		ReviewerID uuid.UUID
		Total      int64
	}

	err := r.db.WithContext(ctx).Model(&models.ReviewerAllocation{}).
		Select("reviewer_allocations.reviewer_id AS reviewer_id, COUNT(*) AS total").
		Joins("JOIN submissions ON submissions.id = reviewer_allocations.submission_id").
		Joins("JOIN tasks ON tasks.id = submissions.task_id").
		Where("tasks.project_id = ?", projectID).
		Group("reviewer_allocations.reviewer_id").
		Scan(&rows).Error

	if err != nil {
		return nil, err
	}

	loads := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		loads[row.ReviewerID] = row.Total
	}

	return loads, nil
}

// FindActiveReviewerAllocation finds a non-rejected reviewer allocation for a
// submission. Returns (nil, nil) when the submission is unassigned.
func (r *Repository) FindActiveReviewerAllocation(ctx context.Context, submissionID uuid.UUID) (*models.ReviewerAllocation, error) {
	var allocation models.ReviewerAllocation
	err := r.db.WithContext(ctx).
		Where("submission_id = ? AND status != ?", submissionID, models.StatusRejected).
		Order("created_at DESC").
		First(&allocation).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &allocation, nil
}

// FindReviewerAllocationForReviewer finds the latest allocation binding a
// reviewer to a submission
func (r *Repository) FindReviewerAllocationForReviewer(ctx context.Context, submissionID, reviewerID uuid.UUID) (*models.ReviewerAllocation, error) {
	var allocation models.ReviewerAllocation
	err := r.db.WithContext(ctx).
		Where("submission_id = ? AND reviewer_id = ?", submissionID, reviewerID).
		Order("created_at DESC").
		First(&allocation).Error
	if err != nil {
		return nil, err
	}
	return &allocation, nil
}

// GetReviewerAllocationByID retrieves a reviewer allocation by ID
func (r *Repository) GetReviewerAllocationByID(ctx context.Context, allocationID uuid.UUID) (*models.ReviewerAllocation, error) {
	var allocation models.ReviewerAllocation
	err := r.db.WithContext(ctx).Where("id = ?", allocationID).First(&allocation).Error
	if err != nil {
		return nil, err
	}
	return &allocation, nil
}

// CreateReviewerAllocation creates a new reviewer allocation
func (r *Repository) CreateReviewerAllocation(ctx context.Context, allocation *models.ReviewerAllocation) error {
	return r.db.WithContext(ctx).Create(allocation).Error
}

// GetSubmissionByID retrieves a submission with its task attached
func (r *Repository) GetSubmissionByID(ctx context.Context, submissionID uuid.UUID) (*models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).
		Preload("Task").
		Where("id = ?", submissionID).
		First(&submission).Error
	if err != nil {
		return nil, err
	}
	return &submission, nil
}

// GetUserByID retrieves a user by ID
func (r *Repository) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindPaymentByAllocation finds an agent reward row for a (user, allocation)
// pair. Returns (nil, nil) when the allocation is unpaid.
func (r *Repository) FindPaymentByAllocation(ctx context.Context, userID, allocationID uuid.UUID) (*models.CoinPayment, error) {
	var payment models.CoinPayment
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND allocation_id = ?", userID, allocationID).
		First(&payment).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &payment, nil
}

// FindPaymentByReviewerAllocation finds a reviewer reward row for a
// (user, reviewer allocation) pair. Returns (nil, nil) when unpaid.
func (r *Repository) FindPaymentByReviewerAllocation(ctx context.Context, userID, reviewerAllocationID uuid.UUID) (*models.CoinPayment, error) {
	var payment models.CoinPayment
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND reviewer_allocation_id = ?", userID, reviewerAllocationID).
		First(&payment).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &payment, nil
}

// CreateCoinPayment inserts a payment row. A unique index conflict is not an
// error: the insert is dropped and inserted == false, so callers re-read the
// winning row instead of double paying.
func (r *Repository) CreateCoinPayment(ctx context.Context, payment *models.CoinPayment) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(payment)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
