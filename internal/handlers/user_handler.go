package handlers

import (
	"errors"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/tododeck/tododeck-backend/internal/dto"
	"github.com/tododeck/tododeck-backend/internal/middleware"
	"github.com/tododeck/tododeck-backend/internal/services"
	"github.com/tododeck/tododeck-backend/internal/storage"
)

type UserHandler struct {
	userService  *services.UserService
	tokenService *services.TokenService
	avatars      *storage.AvatarStore
}

func NewUserHandler(userService *services.UserService, tokenService *services.TokenService, avatars *storage.AvatarStore) *UserHandler {
	return &UserHandler{userService: userService, tokenService: tokenService, avatars: avatars}
}

func (h *UserHandler) Me(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	user, err := h.userService.GetByID(userID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "User not found",
		})
	}

	return c.JSON(dto.NewUserResponse(user))
}

func (h *UserHandler) UpdateMe(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	user, err := h.userService.Update(userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmailTaken):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		case errors.Is(err, services.ErrInvalidEmail),
			errors.Is(err, services.ErrWeakPassword),
			errors.Is(err, services.ErrInvalidFullName):
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		case errors.Is(err, services.ErrUserNotFound):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: "User not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Internal server error",
		})
	}

	return c.JSON(dto.NewUserResponse(user))
}

// DeleteMe deactivates the account and invalidates every refresh token.
func (h *UserHandler) DeleteMe(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	if err := h.userService.Deactivate(userID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to delete account",
		})
	}
	if err := h.tokenService.RevokeAllForUser(userID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to delete account",
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *UserHandler) UploadAvatar(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "No file provided",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to read file",
		})
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to read file",
		})
	}

	user, err := h.userService.GetByID(userID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "User not found",
		})
	}

	filename, err := h.avatars.Save(userID, fileHeader.Filename, content)
	if err != nil {
		if errors.Is(err, storage.ErrBadExtension) ||
			errors.Is(err, storage.ErrFileTooLarge) ||
			errors.Is(err, storage.ErrNotAnImage) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to store avatar",
		})
	}

	// Drop the previous file; a leftover avatar is not worth failing the upload.
	if user.Avatar != "" {
		old := user.Avatar[strings.LastIndexByte(user.Avatar, '/')+1:]
		_ = h.avatars.Remove(old)
	}

	user, err = h.userService.SetAvatar(userID, "/api/v1/users/avatar/"+filename)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to update avatar",
		})
	}

	return c.JSON(dto.NewUserResponse(user))
}

func (h *UserHandler) GetAvatar(c *fiber.Ctx) error {
	path, err := h.avatars.Open(c.Params("filename"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: "Avatar not found",
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid filename",
		})
	}

	return c.SendFile(path)
}
