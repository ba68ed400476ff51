package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/harberts01/Ai-Blog/internal/logging"
	"github.com/harberts01/Ai-Blog/pkg/hash"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// sanitizePath replaces dynamic path segments (matchup ids, tool slugs) with
// placeholders so log lines group by route.
func sanitizePath(path string) string {
	parts := strings.Split(path, "/")
	for i := range parts {
		if i == 0 || parts[i] == "" {
			continue
		}
		switch parts[i-1] {
		case "matchups":
			if parts[i] != "seed" {
				parts[i] = ":id"
			}
		case "pair":
			parts[i] = ":slugA"
			if i+1 < len(parts) {
				parts[i+1] = ":slugB"
			}
		}
	}
	return strings.Join(parts, "/")
}

// NewRequestLogger returns a Fiber middleware that logs each request as
// structured JSON via zerolog. Raw IPs are hashed.
func NewRequestLogger() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		reqID := c.Get(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(RequestIDHeader, reqID)
		c.Locals(localRequestID, reqID)

		err := c.Next()

		duration := time.Since(start)
		status := c.Response().StatusCode()

		evt := logging.Logger.Info()
		if status >= 500 {
			evt = logging.Logger.Error()
		} else if status >= 400 {
			evt = logging.Logger.Warn()
		}

		evt.
			Str("request_id", reqID).
			Str("method", c.Method()).
			Str("path", sanitizePath(c.Path())).
			Int("status", status).
			Dur("duration_ms", duration).
			Str("ip_hash", hash.ShortHash(c.IP())).
			Int("bytes_sent", len(c.Response().Body())).
			Msg("request")

		return err
	}
}

// RequestID returns the correlation id assigned by NewRequestLogger.
func RequestID(c fiber.Ctx) string {
	if v, ok := c.Locals(localRequestID).(string); ok {
		return v
	}
	return ""
}
