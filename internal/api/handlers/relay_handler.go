package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/estatedesk/backend/internal/metrics"
	"github.com/estatedesk/backend/internal/relay"
	"github.com/estatedesk/backend/pkg/logger"
)

type RelayHandler struct {
	relay *relay.Client
}

func NewRelayHandler(relayClient *relay.Client) *RelayHandler {
	return &RelayHandler{relay: relayClient}
}

// Fetch proxies an external listing page through the backend so the
// browser widget can read it without a cross-origin request.
func (h *RelayHandler) Fetch(c *fiber.Ctx) error {
	target := c.Query("url")
	if target == "" {
		metrics.RelayRequestsTotal.WithLabelValues("bad_request").Inc()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "url query parameter is required",
		})
	}
	if !relay.IsValidURL(target) {
		metrics.RelayRequestsTotal.WithLabelValues("bad_request").Inc()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "url must be an absolute http or https URL",
		})
	}

	body, err := h.relay.Fetch(c.Context(), target)
	if err != nil {
		logger.Error("Relay fetch failed", zap.String("url", target), zap.Error(err))
		metrics.RelayRequestsTotal.WithLabelValues("error").Inc()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch the requested page",
		})
	}

	metrics.RelayRequestsTotal.WithLabelValues("ok").Inc()
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(body)
}
