package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/harberts01/Ai-Blog/internal/logging"
	"github.com/harberts01/Ai-Blog/internal/middleware"
	"github.com/harberts01/Ai-Blog/internal/service"
)

// statusFor maps a service error code to its HTTP status.
func statusFor(code string) int {
	switch code {
	case service.ErrAuthRequired.Code:
		return fiber.StatusUnauthorized
	case service.ErrPremiumRequired.Code,
		service.ErrQuotaExceeded.Code,
		service.ErrVoteLocked.Code,
		service.ErrNotVoted.Code:
		return fiber.StatusForbidden
	case service.ErrMatchupNotFound.Code,
		service.ErrPostNotFound.Code,
		service.ErrToolNotFound.Code:
		return fiber.StatusNotFound
	case service.ErrDuplicateMatchup.Code,
		service.ErrMatchupInactive.Code,
		service.ErrStorageConflict.Code:
		return fiber.StatusConflict
	default:
		return fiber.StatusBadRequest
	}
}

// respondError writes err in the standard error envelope. Anything that is
// not a *service.Error is logged and reported as an internal error.
func respondError(c fiber.Ctx, err error) error {
	if e, ok := service.AsError(err); ok {
		return middleware.ErrorResponseWithDetails(c, statusFor(e.Code), e.Code, e.Message, e.Details)
	}
	logging.Logger.Error().Err(err).
		Str("request_id", middleware.RequestID(c)).
		Str("method", c.Method()).
		Msg("request failed")
	return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
}

func badRequest(c fiber.Ctx, msg string) error {
	return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", msg)
}

// matchupID parses the :id route parameter.
func matchupID(c fiber.Ctx) (int64, string) {
	return middleware.ValidateID(c.Params("id"), "matchup id")
}
