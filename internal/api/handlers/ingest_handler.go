package handlers

import (
	"context"
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/estatedesk/backend/internal/ingestion"
	"github.com/estatedesk/backend/internal/llm"
	"github.com/estatedesk/backend/internal/middleware/authguard"
	"github.com/estatedesk/backend/internal/storage/models"
	"github.com/estatedesk/backend/pkg/logger"
)

// Transcriber converts an uploaded voice note to text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio []byte) (string, error)
}

// PropertySaver persists the normalized record.
type PropertySaver interface {
	UpsertProperty(p *models.PropertyRecord) error
}

type IngestHandler struct {
	normalizer  *ingestion.Normalizer
	transcriber Transcriber
	store       PropertySaver
}

func NewIngestHandler(normalizer *ingestion.Normalizer, transcriber Transcriber, store PropertySaver) *IngestHandler {
	return &IngestHandler{
		normalizer:  normalizer,
		transcriber: transcriber,
		store:       store,
	}
}

// Ingest accepts a listing URL or pasted text and returns the stored
// listing. When every model variant is exhausted and only the local
// extractor could run, degraded is true and the narrative says so.
func (h *IngestHandler) Ingest(c *fiber.Ctx) error {
	userID := authguard.UserID(c)

	var req struct {
		Input string `json:"input"`
	}
	if err := c.BodyParser(&req); err != nil || req.Input == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Input is required",
		})
	}

	result, err := h.normalizer.Ingest(c.Context(), userID, req.Input)
	if err != nil {
		logger.Error("Ingestion failed", zap.Error(err))
		if llm.IsQuotaExhausted(err) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "AI quota exhausted; try again later or paste a listing URL",
			})
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "Could not extract a listing from the input",
		})
	}

	if err := h.store.UpsertProperty(result.Record); err != nil {
		logger.Error("Failed to store ingested property", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store property",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"property": result.Record,
		"degraded": result.Degraded,
		"variant":  result.Variant,
	})
}

// IngestVoice accepts a multipart audio upload, transcribes it, and runs
// the transcript through the same normalization path as pasted text.
func (h *IngestHandler) IngestVoice(c *fiber.Ctx) error {
	userID := authguard.UserID(c)

	fileHeader, err := c.FormFile("audio")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Audio file is required",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to read audio file",
		})
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to read audio file",
		})
	}

	transcript, err := h.transcriber.Transcribe(c.Context(), fileHeader.Filename, audio)
	if err != nil {
		logger.Error("Transcription failed", zap.Error(err))
		if llm.IsQuotaExhausted(err) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "AI quota exhausted; try again later",
			})
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to transcribe audio",
		})
	}

	result, err := h.normalizer.Ingest(c.Context(), userID, transcript)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":      "Could not extract a listing from the recording",
			"transcript": transcript,
		})
	}

	if err := h.store.UpsertProperty(result.Record); err != nil {
		logger.Error("Failed to store ingested property", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store property",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"property":   result.Record,
		"degraded":   result.Degraded,
		"variant":    result.Variant,
		"transcript": transcript,
	})
}
