package handlers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/estatedesk/backend/internal/chat"
	"github.com/estatedesk/backend/internal/middleware/authguard"
	"github.com/estatedesk/backend/pkg/logger"
)

var validate = validator.New()

type ChatHandler struct {
	chat *chat.Service
}

func NewChatHandler(chatSvc *chat.Service) *ChatHandler {
	return &ChatHandler{chat: chatSvc}
}

// StartSession opens a concierge session for one listing.
func (h *ChatHandler) StartSession(c *fiber.Ctx) error {
	userID := authguard.UserID(c)

	var req struct {
		PropertyID string `json:"property_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.PropertyID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "property_id is required",
		})
	}

	sess := h.chat.StartSession(userID, req.PropertyID)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session_id": sess.ID,
		"state":      sess.State,
	})
}

func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	var req struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}
	if err := c.BodyParser(&req); err != nil || req.SessionID == "" || req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id and message are required",
		})
	}

	resp, err := h.chat.SendMessage(c.Context(), req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, chat.ErrSessionGated) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Session is gated; submit the contact form to continue",
				"gated": true,
			})
		}
		if errors.Is(err, chat.ErrSessionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Session not found",
			})
		}
		logger.Error("Chat turn failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process message",
		})
	}

	return c.JSON(resp)
}

func (h *ChatHandler) SubmitContactForm(c *fiber.Ctx) error {
	var req struct {
		SessionID string `json:"session_id"`
		chat.ContactForm
	}
	if err := c.BodyParser(&req); err != nil || req.SessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id is required",
		})
	}
	if err := validate.Struct(req.ContactForm); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Name and phone are required",
		})
	}

	lead, err := h.chat.SubmitContactForm(c.Context(), req.SessionID, req.ContactForm)
	if err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Session not found",
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"lead":  lead,
		"state": chat.StateOpen,
	})
}

func (h *ChatHandler) EndSession(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Session id is required",
		})
	}

	if sess, ok := h.chat.Session(sessionID); ok {
		logger.Debug("Chat session ended", zap.String("session_id", sess.ID))
	}
	h.chat.EndSession(sessionID)
	return c.JSON(fiber.Map{"status": "ended"})
}
