package middleware

import (
	"crypto/subtle"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/harberts01/Ai-Blog/internal/logging"
	"github.com/harberts01/Ai-Blog/internal/model"
	"github.com/harberts01/Ai-Blog/internal/store"
)

// Headers set by the upstream auth proxy and by operators.
const (
	UserIDHeader     = "X-User-ID"
	AdminTokenHeader = "X-Admin-Token"
)

type localKey int

const (
	localIdentity localKey = iota
	localRequestID
)

// NewIdentity resolves the caller from X-User-ID and attaches it to the
// request. A missing or malformed header yields the anonymous identity; the
// handlers decide whether that is acceptable.
func NewIdentity(users store.Users) fiber.Handler {
	return func(c fiber.Ctx) error {
		ident := model.Identity{UserID: model.AnonymousUserID}

		if raw := strings.TrimSpace(c.Get(UserIDHeader)); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err == nil && id > 0 {
				ident.UserID = id
				premium, err := users.IsPremium(c.Context(), id)
				if err != nil {
					logging.Logger.Warn().Err(err).Msg("premium lookup failed, treating as free")
				}
				ident.Premium = premium
			}
		}

		c.Locals(localIdentity, ident)
		return c.Next()
	}
}

// IdentityFrom returns the identity attached by NewIdentity.
func IdentityFrom(c fiber.Ctx) model.Identity {
	if ident, ok := c.Locals(localIdentity).(model.Identity); ok {
		return ident
	}
	return model.Identity{}
}

// NewAdminGuard rejects requests whose X-Admin-Token does not match token.
// An empty token disables the admin surface entirely.
func NewAdminGuard(token string) fiber.Handler {
	return func(c fiber.Ctx) error {
		got := c.Get(AdminTokenHeader)
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			return ErrorResponse(c, fiber.StatusUnauthorized, "ADMIN_REQUIRED", "Valid admin token required")
		}
		return c.Next()
	}
}
