package services

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tododeck/tododeck-backend/internal/dto"
	"github.com/tododeck/tododeck-backend/internal/models"
)

var (
	ErrTodoNotFound    = errors.New("todo not found")
	ErrInvalidTitle    = errors.New("title must be 1-255 characters")
	ErrInvalidBody     = errors.New("description must be at most 2000 characters")
	ErrInvalidPriority = errors.New("priority must be between 0 and 2")
)

type TodoService struct {
	db *gorm.DB
}

func NewTodoService(db *gorm.DB) *TodoService {
	return &TodoService{db: db}
}

func (s *TodoService) Create(userID uuid.UUID, req dto.CreateTodoRequest) (*models.Todo, error) {
	if len(req.Title) == 0 || len(req.Title) > 255 {
		return nil, ErrInvalidTitle
	}
	if len(req.Description) > 2000 {
		return nil, ErrInvalidBody
	}
	if req.Priority < 0 || req.Priority > 2 {
		return nil, ErrInvalidPriority
	}

	todo := models.Todo{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
	}

	if err := s.db.Create(&todo).Error; err != nil {
		return nil, err
	}

	return &todo, nil
}

// List returns one page of the user's todos ordered by priority then
// recency, with the unpaged total for the same filter.
func (s *TodoService) List(userID uuid.UUID, page, pageSize int, completed *bool) ([]models.Todo, int64, error) {
	query := s.db.Model(&models.Todo{}).Where("user_id = ?", userID)
	if completed != nil {
		query = query.Where("completed = ?", *completed)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var todos []models.Todo
	err := query.
		Order("priority DESC").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&todos).Error

	return todos, total, err
}

func (s *TodoService) Get(userID, todoID uuid.UUID) (*models.Todo, error) {
	var todo models.Todo
	if err := s.db.Where("id = ? AND user_id = ?", todoID, userID).First(&todo).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTodoNotFound
		}
		return nil, err
	}
	return &todo, nil
}

func (s *TodoService) Update(userID, todoID uuid.UUID, req dto.UpdateTodoRequest) (*models.Todo, error) {
	todo, err := s.Get(userID, todoID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		if len(*req.Title) == 0 || len(*req.Title) > 255 {
			return nil, ErrInvalidTitle
		}
		todo.Title = *req.Title
	}
	if req.Description != nil {
		if len(*req.Description) > 2000 {
			return nil, ErrInvalidBody
		}
		todo.Description = *req.Description
	}
	if req.Completed != nil {
		todo.Completed = *req.Completed
	}
	if req.Priority != nil {
		if *req.Priority < 0 || *req.Priority > 2 {
			return nil, ErrInvalidPriority
		}
		todo.Priority = *req.Priority
	}

	if err := s.db.Save(todo).Error; err != nil {
		return nil, err
	}

	return todo, nil
}

func (s *TodoService) Delete(userID, todoID uuid.UUID) error {
	todo, err := s.Get(userID, todoID)
	if err != nil {
		return err
	}
	return s.db.Delete(todo).Error
}

func (s *TodoService) Toggle(userID, todoID uuid.UUID) (*models.Todo, error) {
	todo, err := s.Get(userID, todoID)
	if err != nil {
		return nil, err
	}

	todo.Completed = !todo.Completed
	if err := s.db.Save(todo).Error; err != nil {
		return nil, err
	}

	return todo, nil
}
