package router

import (
	"github.com/gofiber/fiber/v3"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/harberts01/Ai-Blog/internal/handler"
	"github.com/harberts01/Ai-Blog/internal/middleware"
	"github.com/harberts01/Ai-Blog/internal/store"
)

// Handlers holds all handler instances needed by the router.
type Handlers struct {
	Matchup *handler.MatchupHandler
	Vote    *handler.VoteHandler
	Ranking *handler.RankingHandler
	Admin   *handler.AdminHandler
	Health  *handler.HealthHandler
}

// Options carries the settings the middleware stack needs.
type Options struct {
	CORSOrigins   string
	AdminToken    string
	VoteRateLimit int
	Users         store.Users

	// RateCounter backs the preset limiters; nil keeps counts in process.
	RateCounter middleware.WindowCounter

	// Limiters default to the presets when nil.
	VoteLimiter  *middleware.RateLimiter
	ReadLimiter  *middleware.RateLimiter
	AdminLimiter *middleware.RateLimiter
}

// Setup configures the middleware stack and all routes on the given Fiber app.
func Setup(app *fiber.App, h *Handlers, opts Options) {
	if opts.VoteLimiter == nil {
		opts.VoteLimiter = middleware.NewVoteRateLimiter(opts.VoteRateLimit, opts.RateCounter)
	}
	if opts.ReadLimiter == nil {
		opts.ReadLimiter = middleware.NewReadRateLimiter(opts.RateCounter)
	}
	if opts.AdminLimiter == nil {
		opts.AdminLimiter = middleware.NewAdminRateLimiter(opts.RateCounter)
	}

	// Middleware stack (order matters)
	app.Use(recoverer.New())
	app.Use(middleware.NewRequestLogger())
	app.Use(middleware.NewCORS(opts.CORSOrigins))
	app.Use(handler.MetricsMiddleware())

	// Ops endpoints sit outside /api: no identity, no rate limit.
	app.Get("/health/live", h.Health.Live)
	app.Get("/health/ready", h.Health.Ready)
	app.Get("/metrics", handler.MetricsHandler())

	api := app.Group("/api", middleware.NewIdentity(opts.Users))
	read := opts.ReadLimiter.Handler()
	vote := opts.VoteLimiter.Handler()

	// Matchups and votes
	api.Get("/matchups", read, h.Matchup.List)
	api.Get("/matchups/:id", read, h.Matchup.View)
	api.Get("/matchups/:id/results", read, h.Matchup.Results)
	api.Post("/matchups/:id/votes", vote, h.Vote.Submit)
	api.Patch("/matchups/:id/votes", vote, h.Vote.Edit)

	// Aggregates
	api.Get("/leaderboard", read, h.Ranking.Leaderboard)
	api.Get("/leaderboard/teaser", read, h.Ranking.Teaser)
	api.Get("/matrix", read, h.Ranking.Matrix)
	api.Get("/matrix/pair/:slugA/:slugB", read, h.Ranking.Pair)

	// Personal history
	api.Get("/users/me/votes", read, h.Ranking.History)
	api.Get("/users/me/stats", read, h.Ranking.Stats)

	// Admin
	admin := api.Group("/admin", middleware.NewAdminGuard(opts.AdminToken), opts.AdminLimiter.Handler())
	admin.Post("/matchups", h.Admin.CreateMatchup)
	admin.Post("/matchups/seed", h.Admin.Seed)
	admin.Post("/matchups/:id/close", h.Admin.Close)
	admin.Post("/matchups/:id/pin", h.Admin.Pin)
	admin.Post("/matchups/:id/check", h.Admin.Check)
}
