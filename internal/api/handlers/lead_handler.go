package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/estatedesk/backend/internal/leads"
	"github.com/estatedesk/backend/internal/metrics"
	"github.com/estatedesk/backend/internal/middleware/authguard"
	"github.com/estatedesk/backend/internal/storage/models"
	"github.com/estatedesk/backend/internal/storage/sqlite"
	"github.com/estatedesk/backend/pkg/logger"
)

type LeadHandler struct {
	leads *leads.Service
}

func NewLeadHandler(leadSvc *leads.Service) *LeadHandler {
	return &LeadHandler{leads: leadSvc}
}

func (h *LeadHandler) List(c *fiber.Ctx) error {
	userID := authguard.UserID(c)

	list, err := h.leads.List(userID)
	if err != nil {
		logger.Error("Failed to list leads", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list leads",
		})
	}

	if list == nil {
		list = []models.Lead{}
	}
	return c.JSON(fiber.Map{"leads": list})
}

func (h *LeadHandler) Get(c *fiber.Ctx) error {
	userID := authguard.UserID(c)

	lead, err := h.leads.Get(userID, c.Params("id"))
	if err != nil {
		if errors.Is(err, sqlite.ErrLeadNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Lead not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get lead",
		})
	}

	return c.JSON(lead)
}

// Create handles manual lead entry from the dashboard.
func (h *LeadHandler) Create(c *fiber.Ctx) error {
	userID := authguard.UserID(c)

	var req struct {
		Name            string `json:"name"`
		Phone           string `json:"phone"`
		Email           string `json:"email"`
		PropertyID      string `json:"property_id"`
		PropertyAddress string `json:"property_address"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	lead, err := h.leads.Capture(c.Context(), leads.CaptureRequest{
		UserID:          userID,
		Name:            req.Name,
		Phone:           req.Phone,
		Email:           req.Email,
		PropertyID:      req.PropertyID,
		PropertyAddress: req.PropertyAddress,
	})
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	metrics.LeadsCapturedTotal.WithLabelValues("manual").Inc()
	return c.Status(fiber.StatusCreated).JSON(lead)
}

func (h *LeadHandler) Update(c *fiber.Ctx) error {
	userID := authguard.UserID(c)

	var lead models.Lead
	if err := c.BodyParser(&lead); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	lead.ID = c.Params("id")

	updated, err := h.leads.Update(userID, &lead)
	if err != nil {
		if errors.Is(err, sqlite.ErrLeadNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Lead not found",
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(updated)
}

func (h *LeadHandler) AddNote(c *fiber.Ctx) error {
	userID := authguard.UserID(c)

	var req struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil || req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Note text is required",
		})
	}

	lead, err := h.leads.AddNote(userID, c.Params("id"), req.Text)
	if err != nil {
		if errors.Is(err, sqlite.ErrLeadNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Lead not found",
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(lead)
}

func (h *LeadHandler) SetPriority(c *fiber.Ctx) error {
	userID := authguard.UserID(c)

	var req struct {
		Score int `json:"score"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	lead, err := h.leads.SetPriority(userID, c.Params("id"), req.Score)
	if err != nil {
		if errors.Is(err, sqlite.ErrLeadNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Lead not found",
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(lead)
}

func (h *LeadHandler) SetDueDate(c *fiber.Ctx) error {
	userID := authguard.UserID(c)

	var req struct {
		DueDate *time.Time `json:"due_date"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	lead, err := h.leads.SetDueDate(userID, c.Params("id"), req.DueDate)
	if err != nil {
		if errors.Is(err, sqlite.ErrLeadNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Lead not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update lead",
		})
	}

	return c.JSON(lead)
}

func (h *LeadHandler) SetFinancing(c *fiber.Ctx) error {
	userID := authguard.UserID(c)

	var req struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil || req.Status == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Financing status is required",
		})
	}

	lead, err := h.leads.SetFinancing(userID, c.Params("id"), req.Status)
	if err != nil {
		if errors.Is(err, sqlite.ErrLeadNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Lead not found",
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(lead)
}
