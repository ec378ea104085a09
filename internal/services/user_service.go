package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"crowdsource-backend/internal/auth"
	"crowdsource-backend/internal/models"
	"crowdsource-backend/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserService handles user management: lookups by id or email, admin CRUD
// and the bulk-import consumption path.
type UserService struct {
	db *gorm.DB
}

// NewUserService creates a new UserService
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// GetUser retrieves a user by ID
func (s *UserService) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return repository.NewRepository(s.db).GetUserByID(ctx, userID)
}

// ResolveUser finds a user by UUID string or email. This is the identity
// contract the reviewer and analytics paths consume.
func (s *UserService) ResolveUser(ctx context.Context, identifier string) (*models.User, error) {
	return resolveUser(ctx, repository.NewRepository(s.db), identifier)
}

// ListUsers returns users, optionally filtered by role, newest first
func (s *UserService) ListUsers(ctx context.Context, role *models.UserRole, limit, offset int) ([]*models.User, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.User{})
	if role != nil {
		query = query.Where("role = ?", *role)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var users []*models.User
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	return users, total, nil
}

// UpdateUser patches a user. Nil request fields are left untouched.
func (s *UserService) UpdateUser(ctx context.Context, userID uuid.UUID, req *models.UpdateUserRequest) (*models.User, error) {
	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Role != nil {
		updates["role"] = *req.Role
	}
	if req.Gender != nil {
		updates["gender"] = *req.Gender
	}
	if req.AgeGroup != nil {
		updates["age_group"] = *req.AgeGroup
	}
	if req.EduLevel != nil {
		updates["edu_level"] = *req.EduLevel
	}
	if req.Country != nil {
		updates["country"] = *req.Country
	}
	if req.TelegramID != nil {
		updates["telegram_id"] = *req.TelegramID
	}

	repo := repository.NewRepository(s.db)

	user, err := repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if len(updates) == 0 {
		return user, nil
	}

	err = s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(updates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return repo.GetUserByID(ctx, userID)
}

// SetLanguages replaces a user's language list
func (s *UserService) SetLanguages(ctx context.Context, userID uuid.UUID, values []string) error {
	return s.setJSONList(ctx, userID, "languages", values)
}

// SetDialects replaces a user's dialect list
func (s *UserService) SetDialects(ctx context.Context, userID uuid.UUID, values []string) error {
	return s.setJSONList(ctx, userID, "dialects", values)
}

func (s *UserService) setJSONList(ctx context.Context, userID uuid.UUID, column string, values []string) error {
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{column: mustJSONList(values)}).Error
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", column, err)
	}
	return nil
}

// DeleteUser removes a user and records who did it
func (s *UserService) DeleteUser(ctx context.Context, actorID, userID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", userID).Delete(&models.User{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete user: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		logAction(tx, actorID, "user_delete", fmt.Sprintf("user %s deleted", userID))

		return nil
	})
}

// BulkCreateUsers consumes validated import rows. Rows with an already
// registered email are skipped with a reason; a bulk import never fails the
// batch over one bad row. Imported users get a random placeholder password
// they must reset before credential signin.
func (s *UserService) BulkCreateUsers(ctx context.Context, rows []models.UserImportRow) (*models.BulkUserSummary, error) {
	summary := &models.BulkUserSummary{Skipped: []string{}}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			var existing models.User
			err := tx.Where("email = ?", row.Email).First(&existing).Error
			if err == nil {
				summary.Skipped = append(summary.Skipped, fmt.Sprintf("email already registered: %s", row.Email))
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to check email: %w", err)
			}

			role := row.Role
			if role == "" {
				role = models.RoleAgent
			}

			hash, err := auth.HashPassword(uuid.NewString())
			if err != nil {
				return err
			}

			user := &models.User{
				ID:       uuid.New(),
				Name:     row.Name,
				Email:    row.Email,
				Password: hash,
				Role:     role,
			}

			if err := tx.Create(user).Error; err != nil {
				return fmt.Errorf("failed to create user %s: %w", row.Email, err)
			}

			summary.Created++
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	log.Printf("Bulk user import: %d created, %d skipped", summary.Created, len(summary.Skipped))

	return summary, nil
}
