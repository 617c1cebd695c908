package security

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

type HeadersConfig struct {
	AllowedOrigins []string
	IsDevelopment  bool
}

// Headers sets the standard hardening headers on every response. The
// chat widget is embeddable, so frame-ancestors stays open for the
// configured origins instead of DENY.
func Headers(cfg HeadersConfig) fiber.Handler {
	frameAncestors := "'self'"
	if len(cfg.AllowedOrigins) > 0 {
		frameAncestors += " " + strings.Join(cfg.AllowedOrigins, " ")
	}

	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")

		if !cfg.IsDevelopment {
			c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Set("Content-Security-Policy",
			"default-src 'self'; "+
				"img-src 'self' data: https:; "+
				"connect-src 'self'; "+
				"frame-ancestors "+frameAncestors+"; "+
				"base-uri 'self'")

		return c.Next()
	}
}
