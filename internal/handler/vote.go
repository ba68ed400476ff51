package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/harberts01/Ai-Blog/internal/middleware"
	"github.com/harberts01/Ai-Blog/internal/model"
	"github.com/harberts01/Ai-Blog/internal/service"
	"github.com/harberts01/Ai-Blog/pkg/hash"
)

const maxUserAgentLen = 128

type VoteHandler struct {
	votes    *service.VoteService
	matchups *service.MatchupService
	ipSalt   string
}

func NewVoteHandler(votes *service.VoteService, matchups *service.MatchupService, ipSalt string) *VoteHandler {
	return &VoteHandler{votes: votes, matchups: matchups, ipSalt: ipSalt}
}

// Submit handles POST /api/matchups/:id/votes
func (h *VoteHandler) Submit(c fiber.Ctx) error {
	return h.handle(c, service.ModeUpsert)
}

// Edit handles PATCH /api/matchups/:id/votes
func (h *VoteHandler) Edit(c fiber.Ctx) error {
	return h.handle(c, service.ModeEditOnly)
}

func (h *VoteHandler) handle(c fiber.Ctx, mode service.SubmitMode) error {
	ident := middleware.IdentityFrom(c)
	if err := requireUser(ident); err != nil {
		return respondError(c, err)
	}

	id, errMsg := matchupID(c)
	if errMsg != "" {
		return badRequest(c, errMsg)
	}

	var req model.VoteRequest
	if err := c.Bind().JSON(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}

	// Sides are resolved against this user's placement. An unknown matchup
	// is left for the ledger to reject so the attempt is still recorded.
	m, err := h.matchups.Get(c.Context(), id)
	if err != nil && !errors.Is(err, service.ErrMatchupNotFound) {
		return respondError(c, err)
	}

	resp, err := h.votes.Submit(c.Context(), service.SubmitRequest{
		MatchupID: id,
		Identity:  ident,
		Ballots:   toBallots(req.Votes, m, ident.UserID),
		Mode:      mode,
		Metadata:  h.requestMetadata(c, req),
	})
	if err != nil {
		return respondError(c, err)
	}

	status := fiber.StatusOK
	if resp.Created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(resp)
}

// toBallots converts request entries to ballots. A side that cannot be
// resolved yields winner 0, which the ledger rejects as an invalid winner.
func toBallots(in []model.BallotRequest, m *model.Matchup, userID int64) []model.Ballot {
	out := make([]model.Ballot, 0, len(in))
	for _, b := range in {
		winner := b.WinnerTool
		if b.Winner != "" {
			winner = 0
			if m != nil {
				if id, ok := service.ToolOnSide(m, service.ResolvePlacement(m, userID), strings.ToLower(b.Winner)); ok {
					winner = id
				}
			}
		}
		out = append(out, model.Ballot{Category: strings.TrimSpace(b.Category), WinnerTool: winner})
	}
	return out
}

func (h *VoteHandler) requestMetadata(c fiber.Ctx, req model.VoteRequest) map[string]any {
	ua := strings.TrimSpace(c.Get(fiber.HeaderUserAgent))
	if len(ua) > maxUserAgentLen {
		ua = ua[:maxUserAgentLen]
	}
	meta := map[string]any{
		"ip":         hash.HashIP(c.IP(), h.ipSalt),
		"user_agent": ua,
		"request_id": middleware.RequestID(c),
	}
	if req.ReadTimeSeconds != nil && *req.ReadTimeSeconds >= 0 {
		meta["read_time_seconds"] = *req.ReadTimeSeconds
	}
	return meta
}
