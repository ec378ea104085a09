package services

import (
	"context"
	"fmt"

	"crowdsource-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskService handles the task read/update surface
type TaskService struct {
	db *gorm.DB
}

// NewTaskService creates a new TaskService
func NewTaskService(db *gorm.DB) *TaskService {
	return &TaskService{db: db}
}

// GetTask retrieves a task with its prompt attached
func (s *TaskService) GetTask(ctx context.Context, taskID uuid.UUID) (*models.Task, error) {
	var task models.Task
	err := s.db.WithContext(ctx).
		Preload("Prompt").
		Where("id = ?", taskID).
		First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// ListTasks returns tasks matching the filter, newest first
func (s *TaskService) ListTasks(ctx context.Context, filter *models.TaskFilter) ([]*models.Task, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Task{})

	if filter.ProjectID != nil {
		query = query.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var tasks []*models.Task
	err := query.
		Preload("Prompt").
		Order("created_at DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&tasks).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}

	return tasks, total, nil
}

// UpdateTask patches a task. Nil request fields are left untouched.
func (s *TaskService) UpdateTask(ctx context.Context, taskID uuid.UUID, req *models.UpdateTaskRequest) (*models.Task, error) {
	updates := map[string]interface{}{}
	if req.Type != nil {
		if !req.Type.Valid() {
			return nil, fmt.Errorf("unsupported task type: %s", *req.Type)
		}
		updates["type"] = *req.Type
	}
	if req.Domain != nil {
		updates["domain"] = *req.Domain
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.Deadline != nil {
		updates["deadline"] = *req.Deadline
	}

	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if len(updates) == 0 {
		return task, nil
	}

	err = s.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", taskID).
		Updates(updates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	return s.GetTask(ctx, taskID)
}

// DeleteTask removes a task
func (s *TaskService) DeleteTask(ctx context.Context, taskID uuid.UUID) error {
	result := s.db.WithContext(ctx).Where("id = ?", taskID).Delete(&models.Task{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
