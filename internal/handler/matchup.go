package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/harberts01/Ai-Blog/internal/middleware"
	"github.com/harberts01/Ai-Blog/internal/service"
)

type MatchupHandler struct {
	svc *service.MatchupService
}

func NewMatchupHandler(svc *service.MatchupService) *MatchupHandler {
	return &MatchupHandler{svc: svc}
}

// List handles GET /api/matchups
func (h *MatchupHandler) List(c fiber.Ctx) error {
	page, errMsg := middleware.ValidatePage(c.Query("page"))
	if errMsg != "" {
		return badRequest(c, errMsg)
	}
	items, err := h.svc.List(c.Context(), middleware.IdentityFrom(c), page)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"matchups": items, "page": page})
}

// View handles GET /api/matchups/:id
func (h *MatchupHandler) View(c fiber.Ctx) error {
	id, errMsg := matchupID(c)
	if errMsg != "" {
		return badRequest(c, errMsg)
	}
	reveal := fiber.Query[bool](c, "reveal")

	view, err := h.svc.View(c.Context(), id, middleware.IdentityFrom(c), reveal)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

// Results handles GET /api/matchups/:id/results. Premium only; the service
// also requires the caller to have voted on the matchup.
func (h *MatchupHandler) Results(c fiber.Ctx) error {
	ident := middleware.IdentityFrom(c)
	if err := requirePremium(ident); err != nil {
		return respondError(c, err)
	}
	id, errMsg := matchupID(c)
	if errMsg != "" {
		return badRequest(c, errMsg)
	}

	res, err := h.svc.Results(c.Context(), id, ident)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}
