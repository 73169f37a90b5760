package services

import (
	"errors"
	"fmt"
	"net/mail"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tododeck/tododeck-backend/internal/dto"
	"github.com/tododeck/tododeck-backend/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

func (s *UserService) GetByID(userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *UserService) Update(userID uuid.UUID, req *dto.UpdateUserRequest) (*models.User, error) {
	user, err := s.GetByID(userID)
	if err != nil {
		return nil, err
	}

	if req.Email != nil {
		if _, err := mail.ParseAddress(*req.Email); err != nil {
			return nil, ErrInvalidEmail
		}
		var existing models.User
		err := s.db.Where("email = ? AND id <> ?", *req.Email, userID).First(&existing).Error
		if err == nil {
			return nil, ErrEmailTaken
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to look up user: %w", err)
		}
		user.Email = *req.Email
	}
	if req.FullName != nil {
		if len(*req.FullName) > 100 {
			return nil, ErrInvalidFullName
		}
		user.FullName = *req.FullName
	}
	if req.Password != nil {
		if err := ValidatePassword(*req.Password); err != nil {
			return nil, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.HashedPassword = string(hash)
	}

	if err := s.db.Save(user).Error; err != nil {
		return nil, err
	}

	return user, nil
}

// Deactivate soft-deletes the account: the row survives but login and
// refresh both refuse inactive users.
func (s *UserService) Deactivate(userID uuid.UUID) error {
	return s.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("is_active", false).Error
}

func (s *UserService) SetAvatar(userID uuid.UUID, avatarURL string) (*models.User, error) {
	user, err := s.GetByID(userID)
	if err != nil {
		return nil, err
	}
	user.Avatar = avatarURL
	if err := s.db.Save(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}
