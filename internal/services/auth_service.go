package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"crowdsource-backend/internal/auth"
	"crowdsource-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrEmailTaken means signup hit an already registered email
	ErrEmailTaken = errors.New("email is already registered")
	// ErrInvalidCredentials covers both unknown email and wrong password
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// AuthService handles signup and token issuance
type AuthService struct {
	db *gorm.DB
}

// NewAuthService creates a new AuthService
func NewAuthService(db *gorm.DB) *AuthService {
	return &AuthService{db: db}
}

// Signup registers a new user with a bcrypt-hashed password. Role defaults
// to agent when the request does not name one.
func (s *AuthService) Signup(ctx context.Context, req *models.SignupRequest) (*models.User, error) {
	var existing models.User
	err := s.db.WithContext(ctx).Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = models.RoleAgent
	}

	user := &models.User{
		ID:         uuid.New(),
		Name:       req.Name,
		Email:      req.Email,
		Password:   hash,
		Role:       role,
		Gender:     req.Gender,
		AgeGroup:   req.AgeGroup,
		EduLevel:   req.EduLevel,
		Country:    req.Country,
		TelegramID: req.TelegramID,
	}
	if len(req.Languages) > 0 {
		user.Languages = mustJSONList(req.Languages)
	}
	if len(req.Dialects) > 0 {
		user.Dialects = mustJSONList(req.Dialects)
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Printf("New user registered: %s (role %s)", user.Email, user.Role)

	return user, nil
}

// Signin exchanges credentials for a bearer token. Unknown email and wrong
// password return the same error so callers cannot probe accounts.
func (s *AuthService) Signin(ctx context.Context, email, password string) (string, *models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !auth.CheckPassword(user.Password, password) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return "", nil, err
	}

	return token, &user, nil
}

// mustJSONList encodes a string slice as a JSON column value
func mustJSONList(values []string) datatypes.JSON {
	encoded, err := json.Marshal(values)
	if err != nil {
		return nil
	}
	return datatypes.JSON(encoded)
}
