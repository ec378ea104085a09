package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type UserRole string

const (
	RoleAdmin         UserRole = "admin"
	RoleAgent         UserRole = "agent"
	RoleReviewer      UserRole = "reviewer"
	RoleSuperReviewer UserRole = "super_reviewer"
)

// CanReview reports whether the role may act on reviewer endpoints.
func (r UserRole) CanReview() bool {
	return r == RoleReviewer || r == RoleSuperReviewer || r == RoleAdmin
}

// User represents a platform user: agents submit, reviewers score,
// admins manage projects.
type User struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name     string    `gorm:"size:255" json:"name"`
	Email    string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Password string    `gorm:"size:255" json:"-"`
	Role     UserRole  `gorm:"size:50;default:agent;index" json:"role"`

	Gender   *string `gorm:"size:20" json:"gender,omitempty"`
	AgeGroup *string `gorm:"size:50" json:"age_group,omitempty"`
	EduLevel *string `gorm:"size:100" json:"edu_level,omitempty"`

	// JSON string lists, e.g. ["yoruba","hausa"].
	Languages datatypes.JSON `json:"languages,omitempty"`
	Dialects  datatypes.JSON `json:"dialects,omitempty"`

	Country    *string `gorm:"size:100" json:"country,omitempty"`
	TelegramID *string `gorm:"size:100;index" json:"telegram_id,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// SignupRequest registers a new user.
type SignupRequest struct {
	Name       string   `json:"name" binding:"required"`
	Email      string   `json:"email" binding:"required,email"`
	Password   string   `json:"password" binding:"required,min=8"`
	Role       UserRole `json:"role"`
	Gender     *string  `json:"gender"`
	AgeGroup   *string  `json:"age_group"`
	EduLevel   *string  `json:"edu_level"`
	Languages  []string `json:"languages"`
	Dialects   []string `json:"dialects"`
	Country    *string  `json:"country"`
	TelegramID *string  `json:"telegram_id"`
}

// SigninRequest exchanges credentials for a token.
type SigninRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse carries an issued bearer token.
type TokenResponse struct {
	Message     string `json:"message"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// UpdateUserRequest patches a user. Nil fields are left untouched.
type UpdateUserRequest struct {
	Name       *string   `json:"name"`
	Role       *UserRole `json:"role"`
	Gender     *string   `json:"gender"`
	AgeGroup   *string   `json:"age_group"`
	EduLevel   *string   `json:"edu_level"`
	Country    *string   `json:"country"`
	TelegramID *string   `json:"telegram_id"`
}

// UpdateLanguagesRequest replaces a user's language (or dialect) list.
type UpdateLanguagesRequest struct {
	Values []string `json:"values" binding:"required"`
}

// UserImportRow is one validated row from the bulk user import collaborator.
type UserImportRow struct {
	Name  string   `json:"name"`
	Email string   `json:"email" binding:"required,email"`
	Role  UserRole `json:"role"`
}

// BulkUserSummary reports the outcome of a bulk user import.
type BulkUserSummary struct {
	Created int      `json:"created"`
	Skipped []string `json:"skipped"`
}
