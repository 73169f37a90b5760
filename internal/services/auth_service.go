package services

import (
	"errors"
	"fmt"
	"net/mail"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tododeck/tododeck-backend/internal/config"
	"github.com/tododeck/tododeck-backend/internal/dto"
	"github.com/tododeck/tododeck-backend/internal/models"
)

var (
	ErrEmailTaken = errors.New("a user with this email already exists")

	// ErrInvalidCredentials deliberately covers both "no such account" and
	// "wrong password" so responses cannot be used for account enumeration.
	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrInvalidEmail    = errors.New("invalid email address")
	ErrWeakPassword    = errors.New("password must be 8-128 characters and contain at least one letter and one digit")
	ErrInvalidFullName = errors.New("full name must be at most 100 characters")
)

type AuthService struct {
	db     *gorm.DB
	cfg    *config.Config
	tokens *TokenService
}

func NewAuthService(db *gorm.DB, cfg *config.Config, tokens *TokenService) *AuthService {
	return &AuthService{db: db, cfg: cfg, tokens: tokens}
}

func (s *AuthService) Register(req *dto.RegisterRequest) (*models.User, error) {
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, ErrInvalidEmail
	}
	if err := ValidatePassword(req.Password); err != nil {
		return nil, err
	}
	if len(req.FullName) > 100 {
		return nil, ErrInvalidFullName
	}

	var existing models.User
	err := s.db.Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		ID:             uuid.New(),
		Email:          req.Email,
		HashedPassword: string(hash),
		FullName:       req.FullName,
		IsActive:       true,
	}

	if err := s.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &user, nil
}

// Login verifies credentials and issues a token pair under a new family.
func (s *AuthService) Login(req *dto.LoginRequest, deviceInfo string) (*dto.TokenResponse, error) {
	// Only a missing record is a credential failure; anything else is a
	// storage fault and must not look like a rejected login.
	var user models.User
	if err := s.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.tokens.IssueTokenPair(&user, deviceInfo)
}

// ValidatePassword enforces the registration password policy: 8-128
// characters with at least one letter and one digit.
func ValidatePassword(password string) error {
	if len(password) < 8 || len(password) > 128 {
		return ErrWeakPassword
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return ErrWeakPassword
	}
	return nil
}
