package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tododeck/tododeck-backend/internal/dto"
	"github.com/tododeck/tododeck-backend/internal/middleware"
	"github.com/tododeck/tododeck-backend/internal/ratelimit"
	"github.com/tododeck/tododeck-backend/internal/services"
)

type AuthHandler struct {
	authService  *services.AuthService
	tokenService *services.TokenService
	limiter      ratelimit.Limiter
}

func NewAuthHandler(authService *services.AuthService, tokenService *services.TokenService, limiter ratelimit.Limiter) *AuthHandler {
	return &AuthHandler{authService: authService, tokenService: tokenService, limiter: limiter}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	user, err := h.authService.Register(&req)
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		if errors.Is(err, services.ErrInvalidEmail) ||
			errors.Is(err, services.ErrWeakPassword) ||
			errors.Is(err, services.ErrInvalidFullName) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Internal server error",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(dto.NewUserResponse(user))
}

// Login gates credential checks behind the failed-attempt limiter. The
// caller sequencing matters: Check before verification, RecordAttempt after.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	clientID := ratelimit.ClientID(c.Get("X-Forwarded-For"), c.IP())

	allowed, retryAfter := h.limiter.Check(c.UserContext(), clientID)
	if !allowed {
		seconds := int(retryAfter.Round(time.Second).Seconds())
		c.Set("Retry-After", strconv.Itoa(seconds))
		return c.Status(fiber.StatusTooManyRequests).JSON(dto.ErrorResponse{
			Error:   true,
			Message: fmt.Sprintf("Too many failed attempts. Please try again in %d seconds.", seconds),
		})
	}

	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	resp, err := h.authService.Login(&req, c.Get("User-Agent"))
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			h.limiter.RecordAttempt(c.UserContext(), clientID, false)
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Internal server error",
		})
	}

	h.limiter.RecordAttempt(c.UserContext(), clientID, true)
	return c.JSON(resp)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	resp, err := h.tokenService.Rotate(req.RefreshToken, c.Get("User-Agent"))
	if err != nil {
		// A replayed token gets the same response as any other bad token so
		// the caller cannot tell "expired" from "stolen and already used".
		if errors.Is(err, services.ErrInvalidToken) || errors.Is(err, services.ErrTokenReplayed) {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: services.ErrInvalidToken.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Internal server error",
		})
	}

	return c.JSON(resp)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	var req dto.LogoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	if err := h.tokenService.Revoke(req.RefreshToken, userID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to logout",
		})
	}

	return c.JSON(dto.MessageResponse{Message: "Logged out successfully"})
}

func (h *AuthHandler) LogoutAll(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	if err := h.tokenService.RevokeAllForUser(userID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to logout",
		})
	}

	return c.JSON(dto.MessageResponse{Message: "Logged out from all devices"})
}
