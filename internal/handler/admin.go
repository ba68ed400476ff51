package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/harberts01/Ai-Blog/internal/middleware"
	"github.com/harberts01/Ai-Blog/internal/model"
	"github.com/harberts01/Ai-Blog/internal/service"
)

type AdminHandler struct {
	matchups *service.MatchupService
}

func NewAdminHandler(matchups *service.MatchupService) *AdminHandler {
	return &AdminHandler{matchups: matchups}
}

// CreateMatchup handles POST /api/admin/matchups
func (h *AdminHandler) CreateMatchup(c fiber.Ctx) error {
	var req model.CreateMatchupRequest
	if err := c.Bind().JSON(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}
	if req.PostA <= 0 || req.PostB <= 0 {
		return badRequest(c, "postA and postB are required")
	}

	m, err := h.matchups.Create(c.Context(), req.PostA, req.PostB, req.PromptID)
	if errors.Is(err, service.ErrDuplicateMatchup) {
		// Idempotent for pairing scripts: report the existing matchup.
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    service.ErrDuplicateMatchup.Code,
				"message": service.ErrDuplicateMatchup.Message,
				"details": fiber.Map{"matchupId": m.ID},
			},
			"matchup": m,
		})
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(m)
}

type seedRequest struct {
	Category string `json:"category"`
}

// Seed handles POST /api/admin/matchups/seed
func (h *AdminHandler) Seed(c fiber.Ctx) error {
	var req seedRequest
	if err := c.Bind().JSON(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		reports, err := h.matchups.SeedAll(c.Context())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"reports": reports})
	}

	report, err := h.matchups.SeedFromCategory(c.Context(), category)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}

// Close handles POST /api/admin/matchups/:id/close
func (h *AdminHandler) Close(c fiber.Ctx) error {
	id, errMsg := matchupID(c)
	if errMsg != "" {
		return badRequest(c, errMsg)
	}
	if err := h.matchups.Close(c.Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "matchupId": id, "status": model.MatchupClosed})
}

type pinRequest struct {
	Pinned *bool `json:"pinned"`
}

// Pin handles POST /api/admin/matchups/:id/pin. An empty body pins.
func (h *AdminHandler) Pin(c fiber.Ctx) error {
	id, errMsg := matchupID(c)
	if errMsg != "" {
		return badRequest(c, errMsg)
	}
	pinned := true
	if len(c.Body()) > 0 {
		var req pinRequest
		if err := c.Bind().JSON(&req); err != nil {
			return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		}
		if req.Pinned != nil {
			pinned = *req.Pinned
		}
	}
	if err := h.matchups.Pin(c.Context(), id, pinned); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "matchupId": id, "pinned": pinned})
}

// Check handles POST /api/admin/matchups/:id/check
func (h *AdminHandler) Check(c fiber.Ctx) error {
	id, errMsg := matchupID(c)
	if errMsg != "" {
		return badRequest(c, errMsg)
	}
	closed, err := h.matchups.CloseIfIncomparable(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"matchupId": id, "closed": closed})
}
