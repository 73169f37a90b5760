package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tododeck/tododeck-backend/internal/dto"
	"github.com/tododeck/tododeck-backend/internal/services"
)

type AdminHandler struct {
	tokenService *services.TokenService
}

func NewAdminHandler(tokenService *services.TokenService) *AdminHandler {
	return &AdminHandler{tokenService: tokenService}
}

// SweepTokens deletes expired refresh token records on demand. The hourly
// background sweeper does the same thing; this endpoint exists for
// maintenance runs between ticks.
func (h *AdminHandler) SweepTokens(c *fiber.Ctx) error {
	count, err := h.tokenService.SweepExpired(time.Now())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Sweep failed",
		})
	}

	return c.JSON(dto.SweepResponse{Deleted: count})
}
