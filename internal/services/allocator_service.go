package services

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"crowdsource-backend/internal/models"
	"crowdsource-backend/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AllocatorService hands project prompts out to agents. Each prompt is worth
// a limited number of allocations (its reuse budget), each agent is capped by
// the project's agent quota, and a (task, agent) pair is never issued twice.
type AllocatorService struct {
	db *gorm.DB
}

func NewAllocatorService(db *gorm.DB) *AllocatorService {
	return &AllocatorService{db: db}
}

// taskUserKey identifies an issued (task, agent) pair
type taskUserKey struct {
	TaskID uuid.UUID
	UserID uuid.UUID
}

// AllocateProject distributes the project's open prompt slots across the
// candidate agents. The whole round runs in one transaction: slot pool
// construction, task find-or-create, allocation inserts and the batch prompt
// counter bumps all commit or roll back together.
//
// A slot whose (task, agent) pair already exists is set aside for the
// remaining candidates instead of being dropped, and consumes neither quota
// nor reuse budget. Prompt counters advance only by the slots that actually
// became allocations.
func (s *AllocatorService) AllocateProject(
	ctx context.Context,
	projectID uuid.UUID,
	candidates []models.AllocationCandidate,
) ([]*models.Allocation, error) {
	created := make([]*models.Allocation, 0)

	if len(candidates) == 0 {
		return created, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewRepository(tx)

		project, err := repo.GetProjectByID(ctx, projectID)
		if err != nil {
			return fmt.Errorf("failed to load project: %w", err)
		}

		prompts, err := repo.GetProjectPrompts(ctx, projectID)
		if err != nil {
			return fmt.Errorf("failed to load prompts: %w", err)
		}

		// One pool entry per prompt per remaining reuse
		var pool []*models.Prompt
		for _, prompt := range prompts {
			remaining := project.EffectiveMaxReuses(prompt) - prompt.CurrentReuses
			for i := 0; i < remaining; i++ {
				pool = append(pool, prompt)
			}
		}
		rand.Shuffle(len(pool), func(i, j int) {
			pool[i], pool[j] = pool[j], pool[i]
		})

		existing, err := repo.GetProjectAllocations(ctx, projectID)
		if err != nil {
			return fmt.Errorf("failed to load allocations: %w", err)
		}

		quotaUsed := make(map[uuid.UUID]int)
		issued := make(map[taskUserKey]bool)
		for _, allocation := range existing {
			quotaUsed[allocation.UserID]++
			issued[taskUserKey{allocation.TaskID, allocation.UserID}] = true
		}

		tasks := make(map[uuid.UUID]*models.Task)
		consumed := make(map[uuid.UUID]int)

		for _, candidate := range candidates {
			var deferred []*models.Prompt
			for quotaUsed[candidate.UserID] < project.AgentQuota && len(pool) > 0 {
				prompt := pool[len(pool)-1]
				pool = pool[:len(pool)-1]

				task, ok := tasks[prompt.ID]
				if !ok {
					task, err = s.findOrCreateTask(ctx, repo, project, prompt)
					if err != nil {
						return err
					}
					tasks[prompt.ID] = task
				}

				key := taskUserKey{task.ID, candidate.UserID}
				if issued[key] {
					// Slot stays available to the candidates after this one
					deferred = append(deferred, prompt)
					continue
				}

				allocation := &models.Allocation{
					ID:         uuid.New(),
					ProjectID:  project.ID,
					TaskID:     task.ID,
					UserID:     candidate.UserID,
					UserEmail:  candidate.Email,
					Status:     models.StatusAssigned,
					AssignedAt: time.Now(),
				}

				if err := repo.CreateAllocation(ctx, allocation); err != nil {
					return fmt.Errorf("failed to create allocation: %w", err)
				}

				issued[key] = true
				quotaUsed[candidate.UserID]++
				consumed[prompt.ID]++
				created = append(created, allocation)
			}
			pool = append(pool, deferred...)
		}

		for promptID, slots := range consumed {
			if err := repo.IncrementPromptReuses(ctx, promptID, slots); err != nil {
				return fmt.Errorf("failed to update prompt reuses: %w", err)
			}
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	log.Printf("Allocated %d slots to %d candidates in project %s", len(created), len(candidates), projectID)

	return created, nil
}

// BulkAllocate consumes validated (prompt text, agent email) rows from the
// import collaborator. Prompts are found or created by (project, text) first,
// then one allocation round runs over the distinct agents the rows name.
// Unknown emails are skipped into the summary; file-format validation
// happened upstream.
func (s *AllocatorService) BulkAllocate(
	ctx context.Context,
	projectID uuid.UUID,
	rows []models.PromptAssignment,
) (*models.BulkAllocationSummary, error) {
	summary := &models.BulkAllocationSummary{Skipped: []string{}}

	var candidates []models.AllocationCandidate

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewRepository(tx)

		project, err := repo.GetProjectByID(ctx, projectID)
		if err != nil {
			return fmt.Errorf("failed to load project: %w", err)
		}

		seen := make(map[uuid.UUID]bool)
		for _, row := range rows {
			agent, err := repo.GetUserByEmail(ctx, row.UserEmail)
			if err == gorm.ErrRecordNotFound {
				summary.Skipped = append(summary.Skipped, fmt.Sprintf("user not found: %s", row.UserEmail))
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to resolve agent: %w", err)
			}

			if err := s.findOrCreatePrompt(tx, repo, ctx, project, row); err != nil {
				return err
			}

			if !seen[agent.ID] {
				seen[agent.ID] = true
				candidates = append(candidates, models.AllocationCandidate{UserID: agent.ID, Email: agent.Email})
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	allocations, err := s.AllocateProject(ctx, projectID, candidates)
	if err != nil {
		return nil, err
	}
	summary.Created = len(allocations)

	return summary, nil
}

// findOrCreatePrompt resolves a bulk row's prompt by (project, text). A row
// naming a reuse limit updates an existing prompt's limit as well.
func (s *AllocatorService) findOrCreatePrompt(
	tx *gorm.DB,
	repo *repository.Repository,
	ctx context.Context,
	project *models.Project,
	row models.PromptAssignment,
) error {
	var prompt models.Prompt
	err := tx.Where("project_id = ? AND text = ?", project.ID, row.PromptText).First(&prompt).Error

	if err == gorm.ErrRecordNotFound {
		prompt = models.Prompt{
			ID:        uuid.New(),
			ProjectID: project.ID,
			Text:      row.PromptText,
			MaxReuses: row.MaxReuses,
		}
		if err := tx.Create(&prompt).Error; err != nil {
			return fmt.Errorf("failed to create prompt: %w", err)
		}
		return repo.IncrementProjectCounters(ctx, project.ID, 1, 0, 0)
	}
	if err != nil {
		return fmt.Errorf("failed to look up prompt: %w", err)
	}

	if row.MaxReuses != nil && (prompt.MaxReuses == nil || *prompt.MaxReuses != *row.MaxReuses) {
		if err := tx.Model(&models.Prompt{}).
			Where("id = ?", prompt.ID).
			Updates(map[string]interface{}{"max_reuses": *row.MaxReuses}).Error; err != nil {
			return fmt.Errorf("failed to update prompt reuse limit: %w", err)
		}
	}

	return nil
}

// findOrCreateTask resolves the single task bound to a prompt, creating it on
// first allocation. Task type follows the prompt category when it names a
// valid type, audio otherwise.
func (s *AllocatorService) findOrCreateTask(
	ctx context.Context,
	repo *repository.Repository,
	project *models.Project,
	prompt *models.Prompt,
) (*models.Task, error) {
	task, err := repo.FindTaskByPrompt(ctx, project.ID, prompt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up task: %w", err)
	}
	if task != nil {
		return task, nil
	}

	taskType := models.TaskTypeAudio
	if candidate := models.TaskType(prompt.Category); candidate.Valid() {
		taskType = candidate
	}

	task = &models.Task{
		ID:        uuid.New(),
		ProjectID: project.ID,
		PromptID:  &prompt.ID,
		Type:      taskType,
		Domain:    prompt.Domain,
		Category:  prompt.Category,
		Status:    models.StatusPending,
	}

	if err := repo.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if err := repo.IncrementProjectCounters(ctx, project.ID, 0, 1, 0); err != nil {
		return nil, fmt.Errorf("failed to update project counters: %w", err)
	}

	return task, nil
}
