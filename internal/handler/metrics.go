package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/harberts01/Ai-Blog/internal/metrics"
)

// MetricsMiddleware records request duration and in-flight count.
func MetricsMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		if c.Path() == "/metrics" {
			return c.Next()
		}

		// Fiber's path and method alias the fasthttp buffer, which handlers
		// may reuse. Copy them before c.Next().
		endpoint := sanitizeEndpoint(strings.Clone(c.Path()))
		method := strings.Clone(c.Method())

		metrics.RequestsInFlight.Inc()
		defer metrics.RequestsInFlight.Dec()
		start := time.Now()

		err := c.Next()

		status := strconv.Itoa(c.Response().StatusCode())
		metrics.RequestDuration.WithLabelValues(endpoint, method, status).Observe(time.Since(start).Seconds())
		return err
	}
}

// sanitizeEndpoint collapses path parameters so label cardinality stays
// bounded.
func sanitizeEndpoint(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case len(parts) >= 3 && parts[0] == "api" && parts[1] == "matchups":
		parts[2] = ":id"
	case len(parts) >= 4 && parts[0] == "api" && parts[1] == "admin" && parts[2] == "matchups" && parts[3] != "seed":
		parts[3] = ":id"
	case len(parts) == 5 && parts[0] == "api" && parts[1] == "matrix" && parts[2] == "pair":
		parts[3], parts[4] = ":slugA", ":slugB"
	}
	return "/" + strings.Join(parts, "/")
}

// MetricsHandler serves the Prometheus /metrics endpoint via Fiber.
func MetricsHandler() fiber.Handler {
	httpHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c fiber.Ctx) error {
		httpHandler(c.RequestCtx())
		return nil
	}
}
