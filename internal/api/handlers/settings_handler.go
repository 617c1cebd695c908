package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/estatedesk/backend/internal/middleware/authguard"
	"github.com/estatedesk/backend/internal/settings"
	"github.com/estatedesk/backend/internal/storage/models"
	"github.com/estatedesk/backend/pkg/logger"
)

type SettingsHandler struct {
	settings *settings.Service
}

func NewSettingsHandler(settingsSvc *settings.Service) *SettingsHandler {
	return &SettingsHandler{settings: settingsSvc}
}

func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	userID := authguard.UserID(c)

	s, err := h.settings.Get(userID)
	if err != nil {
		logger.Error("Failed to load settings", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load settings",
		})
	}

	return c.JSON(s)
}

func (h *SettingsHandler) Save(c *fiber.Ctx) error {
	userID := authguard.UserID(c)

	var s models.AgentSettings
	if err := c.BodyParser(&s); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	saved, err := h.settings.Save(userID, &s)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(saved)
}
