package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
)

// NewCORS lets the blog frontend call the arena API from the browser.
// corsOrigins is the CORS_ORIGINS list, comma separated; empty or "*" opens
// the API to any origin. Voters and operators identify through X-User-ID and
// X-Admin-Token, so both must pass preflight, and the rate-limit and request
// id headers are exposed for the vote UI.
func NewCORS(corsOrigins string) fiber.Handler {
	origins := []string{"*"}
	if corsOrigins != "" && corsOrigins != "*" {
		origins = origins[:0]
		for _, o := range strings.Split(corsOrigins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}

	return cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{
			fiber.MethodGet,
			fiber.MethodPost,
			fiber.MethodPatch,
			fiber.MethodOptions,
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			UserIDHeader,
			AdminTokenHeader,
			RequestIDHeader,
		},
		ExposeHeaders: []string{
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
			RequestIDHeader,
		},
		MaxAge: 86400,
	})
}
