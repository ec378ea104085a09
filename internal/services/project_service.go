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

var (
	// ErrProjectNameTaken means project creation hit an existing name
	ErrProjectNameTaken = errors.New("project name is already taken")
	// ErrInvalidScoringConfig means the threshold or scale is out of range
	ErrInvalidScoringConfig = errors.New("review threshold must be 0-100 and scale at least 1")
)

// ProjectService manages projects, their prompts and their reviewer pool
type ProjectService struct {
	db *gorm.DB
}

// NewProjectService creates a new ProjectService
func NewProjectService(db *gorm.DB) *ProjectService {
	return &ProjectService{db: db}
}

// CreateProject creates a project with its workflow configuration. The
// scoring config is validated before any write: threshold 0-100, scale >= 1.
func (s *ProjectService) CreateProject(ctx context.Context, actorID uuid.UUID, req *models.CreateProjectRequest) (*models.Project, error) {
	if req.ReviewThresholdPercent != nil && (*req.ReviewThresholdPercent < 0 || *req.ReviewThresholdPercent > 100) {
		return nil, ErrInvalidScoringConfig
	}
	if req.ReviewScale != nil && *req.ReviewScale < 1 {
		return nil, ErrInvalidScoringConfig
	}

	project := &models.Project{
		ID:                     uuid.New(),
		Name:                   req.Name,
		Description:            req.Description,
		AgentQuota:             180,
		ReviewerQuota:          50,
		ReuseCount:             req.ReuseCount,
		NumRedo:                req.NumRedo,
		IsPublic:               true,
		ReviewScale:            5,
		ReviewThresholdPercent: 50,
	}
	if req.AgentQuota != nil {
		project.AgentQuota = *req.AgentQuota
	}
	if req.ReviewerQuota != nil {
		project.ReviewerQuota = *req.ReviewerQuota
	}
	if req.IsPublic != nil {
		project.IsPublic = *req.IsPublic
	}
	if req.ReviewScale != nil {
		project.ReviewScale = *req.ReviewScale
	}
	if req.ReviewThresholdPercent != nil {
		project.ReviewThresholdPercent = *req.ReviewThresholdPercent
	}
	if len(req.ReviewParameters) > 0 {
		project.ReviewParameters = mustJSONList(req.ReviewParameters)
	}
	if req.AgentCoin != nil {
		project.AgentCoin = decimal.NewFromFloat(*req.AgentCoin)
	}
	if req.ReviewerCoin != nil {
		project.ReviewerCoin = decimal.NewFromFloat(*req.ReviewerCoin)
	}
	if req.SuperReviewerCoin != nil {
		project.SuperReviewerCoin = decimal.NewFromFloat(*req.SuperReviewerCoin)
	}
	if req.AgentAmount != nil {
		project.AgentAmount = decimal.NewFromFloat(*req.AgentAmount)
	}
	if req.ReviewerAmount != nil {
		project.ReviewerAmount = decimal.NewFromFloat(*req.ReviewerAmount)
	}
	if req.SuperReviewerAmount != nil {
		project.SuperReviewerAmount = decimal.NewFromFloat(*req.SuperReviewerAmount)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Project
		err := tx.Where("name = ?", req.Name).First(&existing).Error
		if err == nil {
			return ErrProjectNameTaken
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check project name: %w", err)
		}

		if err := tx.Create(project).Error; err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}

		logAction(tx, actorID, "project_create", fmt.Sprintf("project %s (%s)", project.Name, project.ID))

		return nil
	})

	if err != nil {
		return nil, err
	}

	log.Printf("Project created: %s (%s)", project.Name, project.ID)

	return project, nil
}

// GetProject finds a project by UUID string or name
func (s *ProjectService) GetProject(ctx context.Context, identifier string) (*models.Project, error) {
	if id, err := uuid.Parse(identifier); err == nil {
		return repository.NewRepository(s.db).GetProjectByID(ctx, id)
	}

	var project models.Project
	if err := s.db.WithContext(ctx).Where("name = ?", identifier).First(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// ListProjects returns projects newest first. Non-admin callers only see
// public projects.
func (s *ProjectService) ListProjects(ctx context.Context, includePrivate bool, limit, offset int) ([]*models.Project, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Project{})
	if !includePrivate {
		query = query.Where("is_public = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count projects: %w", err)
	}

	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var projects []*models.Project
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&projects).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list projects: %w", err)
	}

	return projects, total, nil
}

// UpdateProject patches a project. Nil request fields are left untouched;
// scoring fields are validated when present.
func (s *ProjectService) UpdateProject(ctx context.Context, actorID, projectID uuid.UUID, req *models.UpdateProjectRequest) (*models.Project, error) {
	if req.ReviewThresholdPercent != nil && (*req.ReviewThresholdPercent < 0 || *req.ReviewThresholdPercent > 100) {
		return nil, ErrInvalidScoringConfig
	}
	if req.ReviewScale != nil && *req.ReviewScale < 1 {
		return nil, ErrInvalidScoringConfig
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.AgentQuota != nil {
		updates["agent_quota"] = *req.AgentQuota
	}
	if req.ReviewerQuota != nil {
		updates["reviewer_quota"] = *req.ReviewerQuota
	}
	if req.ReuseCount != nil {
		updates["reuse_count"] = *req.ReuseCount
	}
	if req.NumRedo != nil {
		updates["num_redo"] = *req.NumRedo
	}
	if req.AgentCoin != nil {
		updates["agent_coin"] = decimal.NewFromFloat(*req.AgentCoin)
	}
	if req.ReviewerCoin != nil {
		updates["reviewer_coin"] = decimal.NewFromFloat(*req.ReviewerCoin)
	}
	if req.SuperReviewerCoin != nil {
		updates["super_reviewer_coin"] = decimal.NewFromFloat(*req.SuperReviewerCoin)
	}
	if req.AgentAmount != nil {
		updates["agent_amount"] = decimal.NewFromFloat(*req.AgentAmount)
	}
	if req.ReviewerAmount != nil {
		updates["reviewer_amount"] = decimal.NewFromFloat(*req.ReviewerAmount)
	}
	if req.SuperReviewerAmount != nil {
		updates["super_reviewer_amount"] = decimal.NewFromFloat(*req.SuperReviewerAmount)
	}
	if req.IsPublic != nil {
		updates["is_public"] = *req.IsPublic
	}
	if req.ReviewParameters != nil {
		updates["review_parameters"] = mustJSONList(req.ReviewParameters)
	}
	if req.ReviewScale != nil {
		updates["review_scale"] = *req.ReviewScale
	}
	if req.ReviewThresholdPercent != nil {
		updates["review_threshold_percent"] = *req.ReviewThresholdPercent
	}

	var project *models.Project
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewRepository(tx)

		var err error
		project, err = repo.GetProjectByID(ctx, projectID)
		if err != nil {
			return fmt.Errorf("failed to load project: %w", err)
		}

		if len(updates) == 0 {
			return nil
		}

		if err := tx.Model(&models.Project{}).
			Where("id = ?", projectID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update project: %w", err)
		}

		logAction(tx, actorID, "project_update", fmt.Sprintf("project %s updated", projectID))

		project, err = repo.GetProjectByID(ctx, projectID)
		return err
	})

	if err != nil {
		return nil, err
	}

	return project, nil
}

// CreatePrompt adds a prompt to a project and bumps the project counter
func (s *ProjectService) CreatePrompt(ctx context.Context, projectID uuid.UUID, req *models.CreatePromptRequest) (*models.Prompt, error) {
	prompt := &models.Prompt{
		ID:        uuid.New(),
		ProjectID: projectID,
		Text:      req.Text,
		MediaURL:  req.MediaURL,
		Domain:    req.Domain,
		Category:  req.Category,
		MaxReuses: req.MaxReuses,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewRepository(tx)

		if _, err := repo.GetProjectByID(ctx, projectID); err != nil {
			return fmt.Errorf("failed to load project: %w", err)
		}

		if err := tx.Create(prompt).Error; err != nil {
			return fmt.Errorf("failed to create prompt: %w", err)
		}

		return repo.IncrementProjectCounters(ctx, projectID, 1, 0, 0)
	})

	if err != nil {
		return nil, err
	}

	return prompt, nil
}

// ListPrompts returns a project's prompts in creation order
func (s *ProjectService) ListPrompts(ctx context.Context, projectID uuid.UUID) ([]*models.Prompt, error) {
	return repository.NewRepository(s.db).GetProjectPrompts(ctx, projectID)
}

// AddReviewers creates or reactivates pool memberships for the given emails.
// Unknown emails and users without a reviewing role are skipped with a
// reason, never fail the batch.
func (s *ProjectService) AddReviewers(ctx context.Context, projectID uuid.UUID, emails []string) (*models.ReviewerPoolSummary, error) {
	summary := &models.ReviewerPoolSummary{
		Added:   []string{},
		Skipped: []string{},
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewRepository(tx)

		if _, err := repo.GetProjectByID(ctx, projectID); err != nil {
			return fmt.Errorf("failed to load project: %w", err)
		}

		for _, email := range emails {
			reviewer, err := repo.GetUserByEmail(ctx, email)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				summary.Skipped = append(summary.Skipped, fmt.Sprintf("user not found: %s", email))
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to resolve reviewer: %w", err)
			}
			if !reviewer.Role.CanReview() {
				summary.Skipped = append(summary.Skipped, fmt.Sprintf("user cannot review: %s", email))
				continue
			}

			var membership models.ProjectReviewer
			err = tx.Where("project_id = ? AND reviewer_id = ?", projectID, reviewer.ID).First(&membership).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				membership = models.ProjectReviewer{
					ID:         uuid.New(),
					ProjectID:  projectID,
					ReviewerID: reviewer.ID,
					Active:     true,
				}
				if err := tx.Create(&membership).Error; err != nil {
					return fmt.Errorf("failed to add reviewer %s: %w", email, err)
				}
				summary.Added = append(summary.Added, email)
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to check reviewer pool: %w", err)
			}

			if !membership.Active {
				if err := tx.Model(&models.ProjectReviewer{}).
					Where("id = ?", membership.ID).
					Updates(map[string]interface{}{"active": true}).Error; err != nil {
					return fmt.Errorf("failed to reactivate reviewer %s: %w", email, err)
				}
				summary.Added = append(summary.Added, email)
				continue
			}

			summary.Skipped = append(summary.Skipped, fmt.Sprintf("already in pool: %s", email))
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	log.Printf("Reviewer pool for project %s: %d added, %d skipped", projectID, len(summary.Added), len(summary.Skipped))

	return summary, nil
}

// RemoveReviewer deactivates a pool membership. The row stays so history
// queries still resolve; the auto-assigner stops considering it.
func (s *ProjectService) RemoveReviewer(ctx context.Context, projectID uuid.UUID, reviewerIdentifier string) error {
	reviewer, err := resolveUser(ctx, repository.NewRepository(s.db), reviewerIdentifier)
	if err != nil {
		return fmt.Errorf("failed to resolve reviewer: %w", err)
	}

	result := s.db.WithContext(ctx).Model(&models.ProjectReviewer{}).
		Where("project_id = ? AND reviewer_id = ?", projectID, reviewer.ID).
		Updates(map[string]interface{}{"active": false})
	if result.Error != nil {
		return fmt.Errorf("failed to remove reviewer: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// ListReviewers returns a project's pool, active members first
func (s *ProjectService) ListReviewers(ctx context.Context, projectID uuid.UUID) ([]*models.ProjectReviewer, error) {
	var pool []*models.ProjectReviewer
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Preload("Reviewer").
		Order("active DESC, created_at ASC").
		Find(&pool).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list reviewers: %w", err)
	}
	return pool, nil
}
