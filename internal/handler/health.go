package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const statusDisabled = "disabled"

type HealthHandler struct {
	pool    *pgxpool.Pool
	rdb     *redis.Client
	driver  string
	startAt time.Time
}

// NewHealthHandler builds the probes. pool is nil on the memory store and rdb
// is nil when the result cache is in-process; both then report "disabled".
func NewHealthHandler(pool *pgxpool.Pool, rdb *redis.Client, driver string) *HealthHandler {
	return &HealthHandler{
		pool:    pool,
		rdb:     rdb,
		driver:  driver,
		startAt: time.Now(),
	}
}

// Live handles GET /health/live
func (h *HealthHandler) Live(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Ready handles GET /health/ready. A down database fails readiness; a down
// cache only degrades it because aggregates can still be computed.
func (h *HealthHandler) Ready(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
	defer cancel()

	db := checkDB(ctx, h.pool)
	rc := checkRedis(ctx, h.rdb)

	overall := "healthy"
	status := fiber.StatusOK
	switch {
	case db["status"] == "down":
		overall = "unhealthy"
		status = fiber.StatusServiceUnavailable
	case rc["status"] == "down":
		overall = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status":         overall,
		"store":          h.driver,
		"checks":         fiber.Map{"database": db, "redis": rc},
		"uptime_seconds": int(time.Since(h.startAt).Seconds()),
	})
}

func checkDB(ctx context.Context, pool *pgxpool.Pool) fiber.Map {
	if pool == nil {
		return fiber.Map{"status": statusDisabled}
	}
	start := time.Now()
	err := pool.Ping(ctx)
	return probeResult(err, time.Since(start))
}

func checkRedis(ctx context.Context, rdb *redis.Client) fiber.Map {
	if rdb == nil {
		return fiber.Map{"status": statusDisabled}
	}
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	return probeResult(err, time.Since(start))
}

func probeResult(err error, latency time.Duration) fiber.Map {
	if err != nil {
		return fiber.Map{
			"status":     "down",
			"latency_ms": latency.Milliseconds(),
			"error":      "connection failed",
		}
	}
	return fiber.Map{
		"status":     "up",
		"latency_ms": latency.Milliseconds(),
	}
}
