package middleware

import (
	"strings"
	"time"

	"careplan/internal/apperror"
	"careplan/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	pgstorage "github.com/gofiber/storage/postgres/v3"
)

const MIMEApplicationXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func SecurityHeaders() fiber.Handler {
	return helmet.New(helmet.Config{
		ContentSecurityPolicy: "default-src 'self'; img-src 'self' data:; style-src 'self' 'unsafe-inline'; frame-ancestors 'none'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	})
}

// ContentNegotiation rejects clients that accept none of types. An absent
// Accept header accepts anything.
func ContentNegotiation(types ...string) fiber.Handler {
	if len(types) == 0 {
		types = []string{fiber.MIMEApplicationJSON}
	}
	return func(c *fiber.Ctx) error {
		accept := c.Get(fiber.HeaderAccept)
		if accept == "" || accept == "*/*" {
			return c.Next()
		}
		if c.Accepts(types...) == "" {
			return apperror.New(apperror.TypeNotAcceptable, fiber.StatusNotAcceptable, "Supported types: "+strings.Join(types, ", "))
		}
		return c.Next()
	}
}

type RateLimitConfig struct {
	Max        int
	Expiration time.Duration
	// Storage shares counters between instances; nil keeps them in memory.
	Storage fiber.Storage
}

// RateLimit limits requests per user, falling back to the client IP for
// unauthenticated requests.
func RateLimit(cfg RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        cfg.Max,
		Expiration: cfg.Expiration,
		Storage:    cfg.Storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			if u, ok := CurrentUser(c); ok {
				return "user:" + u.ID.String()
			}
			return "ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return apperror.New(apperror.TypeTooManyRequests, fiber.StatusTooManyRequests, "Too many requests, try again later")
		},
	})
}

// NewRateLimitStorage keeps limiter counters in postgres so every API
// instance enforces the same budget.
func NewRateLimitStorage(cfg config.DatabaseConfig) fiber.Storage {
	return pgstorage.New(pgstorage.Config{
		ConnectionURI: cfg.URL(),
		Table:         "tbl_rate_limit",
		GCInterval:    time.Minute,
	})
}
