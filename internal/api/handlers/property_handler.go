package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/estatedesk/backend/internal/middleware/authguard"
	"github.com/estatedesk/backend/internal/properties"
	"github.com/estatedesk/backend/internal/storage/models"
	"github.com/estatedesk/backend/internal/storage/sqlite"
	"github.com/estatedesk/backend/pkg/logger"
)

type PropertyHandler struct {
	properties *properties.Service
}

func NewPropertyHandler(propertySvc *properties.Service) *PropertyHandler {
	return &PropertyHandler{properties: propertySvc}
}

func (h *PropertyHandler) List(c *fiber.Ctx) error {
	userID := authguard.UserID(c)

	props, err := h.properties.List(userID)
	if err != nil {
		logger.Error("Failed to list properties", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list properties",
		})
	}

	if props == nil {
		props = []models.PropertyRecord{}
	}
	return c.JSON(fiber.Map{"properties": props})
}

func (h *PropertyHandler) Get(c *fiber.Ctx) error {
	userID := authguard.UserID(c)

	p, err := h.properties.Get(userID, c.Params("id"))
	if err != nil {
		if errors.Is(err, sqlite.ErrPropertyNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Property not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get property",
		})
	}

	return c.JSON(p)
}

func (h *PropertyHandler) Create(c *fiber.Ctx) error {
	userID := authguard.UserID(c)

	var record models.PropertyRecord
	if err := c.BodyParser(&record); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	created, err := h.properties.Create(userID, &record)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *PropertyHandler) Update(c *fiber.Ctx) error {
	userID := authguard.UserID(c)

	var record models.PropertyRecord
	if err := c.BodyParser(&record); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	record.PropertyID = c.Params("id")

	updated, err := h.properties.Update(userID, &record)
	if err != nil {
		if errors.Is(err, sqlite.ErrPropertyNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Property not found",
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(updated)
}

func (h *PropertyHandler) Delete(c *fiber.Ctx) error {
	userID := authguard.UserID(c)

	if err := h.properties.Delete(userID, c.Params("id")); err != nil {
		if errors.Is(err, sqlite.ErrPropertyNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Property not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete property",
		})
	}

	return c.JSON(fiber.Map{"status": "deleted"})
}

func (h *PropertyHandler) SetStatus(c *fiber.Ctx) error {
	userID := authguard.UserID(c)

	var req struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil || req.Status == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Status is required",
		})
	}

	updated, err := h.properties.SetStatus(userID, c.Params("id"), req.Status)
	if err != nil {
		if errors.Is(err, sqlite.ErrPropertyNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Property not found",
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(updated)
}

func (h *PropertyHandler) Share(c *fiber.Ctx) error {
	userID := authguard.UserID(c)

	payload, err := h.properties.BuildShare(userID, c.Params("id"))
	if err != nil {
		if errors.Is(err, sqlite.ErrPropertyNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Property not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to build share payload",
		})
	}

	return c.JSON(payload)
}
