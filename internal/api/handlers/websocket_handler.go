package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/estatedesk/backend/internal/chat"
	"github.com/estatedesk/backend/pkg/logger"
)

// WebSocketHandler streams concierge replies to the chat widget word by
// word, so the visitor sees the answer being typed out.
type WebSocketHandler struct {
	chat *chat.Service
}

func NewWebSocketHandler(chatSvc *chat.Service) *WebSocketHandler {
	return &WebSocketHandler{chat: chatSvc}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("Chat websocket connected")

	defer func() {
		c.Close()
		logger.Info("Chat websocket closed")
	}()

	for {
		var msg struct {
			Type      string `json:"type"`
			SessionID string `json:"session_id"`
			Message   string `json:"message"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			break
		}

		if msg.Type != "message" || msg.SessionID == "" || msg.Message == "" {
			continue
		}

		if err := h.streamTurn(c, msg.SessionID, msg.Message); err != nil {
			logger.Error("Failed to stream chat turn", zap.Error(err))
		}
	}
}

func (h *WebSocketHandler) streamTurn(c *websocket.Conn, sessionID, message string) error {
	resp, err := h.chat.SendMessage(context.Background(), sessionID, message)
	if err != nil {
		if errors.Is(err, chat.ErrSessionGated) {
			return c.WriteJSON(map[string]interface{}{
				"type":  "gated",
				"error": "Submit the contact form to continue",
			})
		}
		return c.WriteJSON(map[string]interface{}{
			"type":  "error",
			"error": "Failed to process message",
		})
	}

	words := strings.Fields(resp.Reply)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 {
			chunk += " "
		}
		if err := c.WriteJSON(map[string]interface{}{
			"type":    "chunk",
			"content": chunk,
		}); err != nil {
			return err
		}
	}

	return c.WriteJSON(map[string]interface{}{
		"type":           "complete",
		"state":          resp.State,
		"gated":          resp.Gated,
		"specific_count": resp.SpecificCount,
		"failed":         resp.Failed,
		"lead_captured":  resp.LeadCaptured,
	})
}
