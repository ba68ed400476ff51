package middleware

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
)

// Field limits matching database schema constraints.
const (
	MaxSlugLen = 64
)

// slugRe matches tool slugs: lowercase alphanumerics separated by dashes.
var slugRe = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ErrorResponse is a helper that returns a standard API error response.
func ErrorResponse(c fiber.Ctx, status int, code, message string) error {
	return ErrorResponseWithDetails(c, status, code, message, nil)
}

// ErrorResponseWithDetails is ErrorResponse with a details object.
func ErrorResponseWithDetails(c fiber.Ctx, status int, code, message string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// ValidateID parses a positive integer path or body identifier.
func ValidateID(raw, field string) (int64, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, field + " is required"
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, field + " must be a positive integer"
	}
	return id, ""
}

// ValidateSlug checks a tool slug. Case and surrounding space are normalized.
func ValidateSlug(raw string) (string, string) {
	s := strings.TrimSpace(strings.ToLower(raw))
	if s == "" {
		return "", "slug is required"
	}
	if len(s) > MaxSlugLen {
		return "", "slug must be at most 64 characters"
	}
	if !slugRe.MatchString(s) {
		return "", "slug contains invalid characters"
	}
	return s, ""
}

// ValidatePage parses a 1-based page number, defaulting to 1.
func ValidatePage(raw string) (int, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 1, ""
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, "page must be a positive integer"
	}
	return n, ""
}

// ValidateLimit parses a page size, defaulting to def and clamping to max.
func ValidateLimit(raw string, def, max int) (int, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, ""
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, "limit must be a positive integer"
	}
	if n > max {
		n = max
	}
	return n, ""
}
