package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/tododeck/tododeck-backend/internal/dto"
	"github.com/tododeck/tododeck-backend/internal/middleware"
	"github.com/tododeck/tododeck-backend/internal/services"
)

type TodoHandler struct {
	service *services.TodoService
}

func NewTodoHandler(service *services.TodoService) *TodoHandler {
	return &TodoHandler{service: service}
}

func (h *TodoHandler) Create(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	var req dto.CreateTodoRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	todo, err := h.service.Create(userID, req)
	if err != nil {
		return h.mapError(c, err, "Failed to create todo")
	}

	return c.Status(fiber.StatusCreated).JSON(todo)
}

func (h *TodoHandler) List(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.Query("page_size", "10"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	var completed *bool
	if q := c.Query("completed"); q != "" {
		v, err := strconv.ParseBool(q)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: "completed must be a boolean",
			})
		}
		completed = &v
	}

	todos, total, err := h.service.List(userID, page, pageSize, completed)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to fetch todos",
		})
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))

	return c.JSON(dto.TodoListResponse{
		Items:      todos,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

func (h *TodoHandler) Get(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	todoID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "Todo not found",
		})
	}

	todo, err := h.service.Get(userID, todoID)
	if err != nil {
		return h.mapError(c, err, "Failed to fetch todo")
	}

	return c.JSON(todo)
}

func (h *TodoHandler) Update(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	todoID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "Todo not found",
		})
	}

	var req dto.UpdateTodoRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	todo, err := h.service.Update(userID, todoID, req)
	if err != nil {
		return h.mapError(c, err, "Failed to update todo")
	}

	return c.JSON(todo)
}

func (h *TodoHandler) Delete(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	todoID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "Todo not found",
		})
	}

	if err := h.service.Delete(userID, todoID); err != nil {
		return h.mapError(c, err, "Failed to delete todo")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *TodoHandler) Toggle(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	todoID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "Todo not found",
		})
	}

	todo, err := h.service.Toggle(userID, todoID)
	if err != nil {
		return h.mapError(c, err, "Failed to toggle todo")
	}

	return c.JSON(todo)
}

func (h *TodoHandler) mapError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, services.ErrTodoNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	case errors.Is(err, services.ErrInvalidTitle),
		errors.Is(err, services.ErrInvalidBody),
		errors.Is(err, services.ErrInvalidPriority):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
		Error: true, Message: fallback,
	})
}
