package handler

import (
	"github.com/gofiber/fiber/v3"
	"github.com/jonboulle/clockwork"

	"github.com/harberts01/Ai-Blog/internal/cache"
	"github.com/harberts01/Ai-Blog/internal/middleware"
	"github.com/harberts01/Ai-Blog/internal/model"
	"github.com/harberts01/Ai-Blog/internal/service"
)

type RankingHandler struct {
	svc   *service.RankingService
	clock clockwork.Clock
}

func NewRankingHandler(svc *service.RankingService, clock clockwork.Clock) *RankingHandler {
	return &RankingHandler{svc: svc, clock: clock}
}

// cachedJSON writes a cached aggregate with its age so clients can show
// how stale it is.
func cachedJSON[T any](c fiber.Ctx, field string, e cache.Entry[T], cached bool, now clockwork.Clock) error {
	return c.JSON(fiber.Map{
		field:             e.Data,
		"computedAt":      e.ComputedAt,
		"cacheAgeSeconds": e.AgeSeconds(now.Now()),
		"cached":          cached,
	})
}

// Leaderboard handles GET /api/leaderboard. Premium users get every row;
// everyone else gets the teaser.
func (h *RankingHandler) Leaderboard(c fiber.Ctx) error {
	ident := middleware.IdentityFrom(c)
	category := c.Query("category")

	if !ident.Premium {
		return h.teaser(c, category)
	}
	e, cached, err := h.svc.Leaderboard(c.Context(), category)
	if err != nil {
		return respondError(c, err)
	}
	return cachedJSON(c, "leaderboard", e, cached, h.clock)
}

// Teaser handles GET /api/leaderboard/teaser
func (h *RankingHandler) Teaser(c fiber.Ctx) error {
	return h.teaser(c, c.Query("category"))
}

func (h *RankingHandler) teaser(c fiber.Ctx, category string) error {
	e, cached, err := h.svc.Teaser(c.Context(), category)
	if err != nil {
		return respondError(c, err)
	}
	e.Data.Premium = middleware.IdentityFrom(c).Premium
	return cachedJSON(c, "teaser", e, cached, h.clock)
}

// Matrix handles GET /api/matrix (premium only)
func (h *RankingHandler) Matrix(c fiber.Ctx) error {
	if err := requirePremium(middleware.IdentityFrom(c)); err != nil {
		return respondError(c, err)
	}
	e, cached, err := h.svc.Matrix(c.Context(), c.Query("category"))
	if err != nil {
		return respondError(c, err)
	}
	return cachedJSON(c, "matrix", e, cached, h.clock)
}

// Pair handles GET /api/matrix/pair/:slugA/:slugB (premium only)
func (h *RankingHandler) Pair(c fiber.Ctx) error {
	ident := middleware.IdentityFrom(c)
	if err := requirePremium(ident); err != nil {
		return respondError(c, err)
	}
	slugA, errMsg := middleware.ValidateSlug(c.Params("slugA"))
	if errMsg != "" {
		return badRequest(c, errMsg)
	}
	slugB, errMsg := middleware.ValidateSlug(c.Params("slugB"))
	if errMsg != "" {
		return badRequest(c, errMsg)
	}

	e, cached, err := h.svc.PairDetail(c.Context(), slugA, slugB, ident)
	if err != nil {
		return respondError(c, err)
	}
	return cachedJSON(c, "pair", e, cached, h.clock)
}

// History handles GET /api/users/me/votes (premium only)
func (h *RankingHandler) History(c fiber.Ctx) error {
	ident := middleware.IdentityFrom(c)
	if err := requirePremium(ident); err != nil {
		return respondError(c, err)
	}
	page, errMsg := middleware.ValidatePage(c.Query("page"))
	if errMsg != "" {
		return badRequest(c, errMsg)
	}
	limit, errMsg := middleware.ValidateLimit(c.Query("limit"), service.DefaultHistoryLimit, service.MaxHistoryLimit)
	if errMsg != "" {
		return badRequest(c, errMsg)
	}

	res, err := h.svc.History(c.Context(), ident, model.HistoryFilter{
		ToolSlug:  c.Query("tool"),
		Category:  c.Query("category"),
		Alignment: c.Query("alignment"),
		Sort:      c.Query("sort"),
		Page:      page,
		Limit:     limit,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// Stats handles GET /api/users/me/stats (premium only)
func (h *RankingHandler) Stats(c fiber.Ctx) error {
	ident := middleware.IdentityFrom(c)
	if err := requirePremium(ident); err != nil {
		return respondError(c, err)
	}
	stats, err := h.svc.UserStats(c.Context(), ident)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}
