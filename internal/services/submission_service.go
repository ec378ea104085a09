package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"crowdsource-backend/internal/models"
	"crowdsource-backend/internal/repository"
	"crowdsource-backend/internal/storage"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrDuplicateSubmission means the allocation already has a submission that is not in redo
	ErrDuplicateSubmission = errors.New("submission already exists for this allocation")
	// ErrUserMismatch means the caller identity does not match the allocation's agent
	ErrUserMismatch = errors.New("allocation belongs to a different user")
)

// allowedMimeTypes whitelists upload content types per task type
var allowedMimeTypes = map[models.TaskType]map[string]bool{
	models.TaskTypeAudio: {"audio/mpeg": true, "audio/ogg": true, "audio/wav": true},
	models.TaskTypeImage: {"image/png": true, "image/jpeg": true},
	models.TaskTypeVideo: {"video/mp4": true},
}

// SubmissionFile carries upload bytes from the transport layer into intake.
type SubmissionFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// AssignmentPendingError reports a submission that was stored but could not
// be routed to a reviewer. The submission stays unreviewed; callers see both
// the stored submission and the assignment failure.
type AssignmentPendingError struct {
	Submission *models.SubmissionResponse
	Err        error
}

func (e *AssignmentPendingError) Error() string {
	return fmt.Sprintf("submission stored but reviewer assignment failed: %v", e.Err)
}

func (e *AssignmentPendingError) Unwrap() error { return e.Err }

// SubmissionService handles agent submission intake: allocation and identity
// checks, payload rules per task type, the upload hand-off and the post-commit
// reviewer auto-assignment.
type SubmissionService struct {
	db       *gorm.DB
	sink     storage.Sink
	assigner *ReviewerAssignmentService
}

func NewSubmissionService(db *gorm.DB, sink storage.Sink, assigner *ReviewerAssignmentService) *SubmissionService {
	return &SubmissionService{db: db, sink: sink, assigner: assigner}
}

// CreateSubmission stores an agent's work against an allocation. A repeat
// submission is rejected unless the current one is in redo, in which case the
// existing row is revised in place and keeps its redo count. Reviewer
// auto-assignment runs after the commit; its failure surfaces as
// AssignmentPendingError without rolling the submission back.
func (s *SubmissionService) CreateSubmission(
	ctx context.Context,
	projectID uuid.UUID,
	req *models.CreateSubmissionRequest,
	file *SubmissionFile,
) (*models.SubmissionResponse, error) {
	if !req.Type.Valid() {
		return nil, fmt.Errorf("unsupported submission type: %s", req.Type)
	}

	allocation, err := s.loadAllocation(ctx, projectID, req.AssignmentID)
	if err != nil {
		return nil, err
	}
	if allocation.TaskID != req.TaskID {
		return nil, errors.New("allocation does not match task")
	}

	if req.UserID != nil && *req.UserID != allocation.UserID {
		return nil, ErrUserMismatch
	}
	if req.UserEmail != "" && !strings.EqualFold(req.UserEmail, allocation.UserEmail) {
		return nil, ErrUserMismatch
	}

	if err := validatePayload(req, file); err != nil {
		return nil, err
	}

	fileURL := ""
	if file != nil {
		objectName := fmt.Sprintf("%s/%s-%s", projectID, allocation.ID, file.Name)
		fileURL, err = s.sink.Upload(ctx, objectName, file.ContentType, file.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to store upload: %w", err)
		}
	}

	var submission *models.Submission
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		submission, err = s.persistSubmission(ctx, tx, projectID, allocation, req, fileURL)
		return err
	})
	if err != nil {
		return nil, err
	}

	response := submissionResponse(submission, projectID)

	if _, err := s.assigner.AssignReviewer(ctx, projectID, submission.ID); err != nil {
		log.Printf("Submission %s stored, reviewer assignment failed: %v", submission.ID, err)
		return response, &AssignmentPendingError{Submission: response, Err: err}
	}

	return response, nil
}

// loadAllocation fetches the allocation and pins it to the project
func (s *SubmissionService) loadAllocation(ctx context.Context, projectID, allocationID uuid.UUID) (*models.Allocation, error) {
	var allocation models.Allocation
	err := s.db.WithContext(ctx).
		Where("id = ? AND project_id = ?", allocationID, projectID).
		First(&allocation).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load allocation: %w", err)
	}
	return &allocation, nil
}

// validatePayload enforces the per-type payload rules: text needs a payload
// string, media types need an upload (or a telegram file reference) with a
// whitelisted content type.
func validatePayload(req *models.CreateSubmissionRequest, file *SubmissionFile) error {
	if req.Type == models.TaskTypeText {
		if strings.TrimSpace(req.PayloadText) == "" {
			return errors.New("payload_text is required for text submissions")
		}
		return nil
	}

	if file == nil && req.TelegramFileID == "" {
		return fmt.Errorf("%s submissions require a file upload", req.Type)
	}

	if file != nil {
		allowed := allowedMimeTypes[req.Type]
		if !allowed[file.ContentType] {
			return fmt.Errorf("unsupported content type %s for %s submissions", file.ContentType, req.Type)
		}
	}

	return nil
}

// persistSubmission creates the submission row, or revises the existing one
// in place when it sits in redo. The allocation flips to submitted either way.
func (s *SubmissionService) persistSubmission(
	ctx context.Context,
	tx *gorm.DB,
	projectID uuid.UUID,
	allocation *models.Allocation,
	req *models.CreateSubmissionRequest,
	fileURL string,
) (*models.Submission, error) {
	repo := repository.NewRepository(tx)
	now := time.Now()

	var existing models.Submission
	err := tx.Where("assignment_id = ?", allocation.ID).First(&existing).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to check existing submission: %w", err)
	}

	meta := datatypes.JSONMap{}
	if req.TelegramFileID != "" {
		meta["telegram_file_id"] = req.TelegramFileID
	}

	if err == nil {
		// Only a redo submission may be replaced
		if existing.Status != models.StatusRedo {
			return nil, ErrDuplicateSubmission
		}

		updates := map[string]interface{}{
			"status": models.StatusSubmitted,
			"type":   req.Type,
		}
		if req.PayloadText != "" {
			updates["payload_text"] = req.PayloadText
		}
		if fileURL != "" {
			updates["file_url"] = fileURL
		}
		if req.Duration != nil {
			updates["duration"] = *req.Duration
		}
		if len(meta) > 0 {
			updates["meta"] = meta
		}

		if err := tx.Model(&models.Submission{}).
			Where("id = ?", existing.ID).
			Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to revise submission: %w", err)
		}

		if err := s.markAllocationSubmitted(tx, allocation.ID, now); err != nil {
			return nil, err
		}

		var revised models.Submission
		if err := tx.Where("id = ?", existing.ID).First(&revised).Error; err != nil {
			return nil, fmt.Errorf("failed to reload submission: %w", err)
		}
		return &revised, nil
	}

	submission := &models.Submission{
		ID:           uuid.New(),
		TaskID:       allocation.TaskID,
		AssignmentID: &allocation.ID,
		UserID:       allocation.UserID,
		Type:         req.Type,
		Status:       models.StatusSubmitted,
		Meta:         meta,
	}
	if req.PayloadText != "" {
		submission.PayloadText = &req.PayloadText
	}
	if fileURL != "" {
		submission.FileURL = &fileURL
	}
	if req.Duration != nil {
		submission.Duration = req.Duration
	}

	if err := tx.Create(submission).Error; err != nil {
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}

	if err := s.markAllocationSubmitted(tx, allocation.ID, now); err != nil {
		return nil, err
	}

	var task models.Task
	if err := tx.Where("id = ?", allocation.TaskID).First(&task).Error; err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	if err := repo.IncrementSubmissionCounters(ctx, task.ID, task.PromptID); err != nil {
		return nil, fmt.Errorf("failed to update submission counters: %w", err)
	}
	if err := repo.IncrementProjectCounters(ctx, projectID, 0, 0, 1); err != nil {
		return nil, fmt.Errorf("failed to update project counters: %w", err)
	}

	return submission, nil
}

func (s *SubmissionService) markAllocationSubmitted(tx *gorm.DB, allocationID uuid.UUID, at time.Time) error {
	err := tx.Model(&models.Allocation{}).
		Where("id = ?", allocationID).
		Updates(map[string]interface{}{
			"status":       models.StatusSubmitted,
			"submitted_at": at,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update allocation: %w", err)
	}
	return nil
}

// GetSubmission retrieves one submission with its task
func (s *SubmissionService) GetSubmission(ctx context.Context, submissionID uuid.UUID) (*models.Submission, error) {
	return repository.NewRepository(s.db).GetSubmissionByID(ctx, submissionID)
}

// ListSubmissions returns submissions matching the filter, newest first
func (s *SubmissionService) ListSubmissions(ctx context.Context, filter *models.SubmissionFilter) ([]*models.Submission, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Submission{})

	if filter.ProjectID != nil {
		query = query.
			Joins("JOIN tasks ON tasks.id = submissions.task_id").
			Where("tasks.project_id = ?", *filter.ProjectID)
	}
	if filter.UserID != nil {
		query = query.Where("submissions.user_id = ?", *filter.UserID)
	}
	if filter.UserEmail != "" {
		query = query.
			Joins("JOIN users ON users.id = submissions.user_id").
			Where("users.email = ?", filter.UserEmail)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("submissions.status IN ?", filter.Statuses)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count submissions: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var submissions []*models.Submission
	err := query.
		Preload("Task").
		Order("submissions.created_at DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&submissions).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list submissions: %w", err)
	}

	return submissions, total, nil
}

// submissionResponse shapes a submission for the intake API
func submissionResponse(submission *models.Submission, projectID uuid.UUID) *models.SubmissionResponse {
	return &models.SubmissionResponse{
		SubmissionID: submission.ID,
		ProjectID:    projectID,
		TaskID:       submission.TaskID,
		AssignmentID: submission.AssignmentID,
		UserID:       submission.UserID,
		Type:         submission.Type,
		PayloadText:  submission.PayloadText,
		FileURL:      submission.FileURL,
		Status:       submission.Status,
		RedoCount:    submission.RedoCount,
		CreatedAt:    submission.CreatedAt,
		UpdatedAt:    submission.UpdatedAt,
	}
}
