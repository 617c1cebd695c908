package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/estatedesk/backend/internal/middleware/authguard"
	"github.com/estatedesk/backend/internal/pipeline"
	"github.com/estatedesk/backend/internal/storage/sqlite"
	"github.com/estatedesk/backend/pkg/logger"
)

type PipelineHandler struct {
	pipeline *pipeline.Service
}

func NewPipelineHandler(pipelineSvc *pipeline.Service) *PipelineHandler {
	return &PipelineHandler{pipeline: pipelineSvc}
}

func (h *PipelineHandler) Board(c *fiber.Ctx) error {
	userID := authguard.UserID(c)

	board, err := h.pipeline.Board(userID)
	if err != nil {
		logger.Error("Failed to assemble board", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load pipeline board",
		})
	}

	return c.JSON(fiber.Map{"board": board})
}

func (h *PipelineHandler) ListStages(c *fiber.Ctx) error {
	userID := authguard.UserID(c)

	stages, err := h.pipeline.ListStages(userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list stages",
		})
	}

	return c.JSON(fiber.Map{"stages": stages})
}

func (h *PipelineHandler) AddStage(c *fiber.Ctx) error {
	userID := authguard.UserID(c)

	var req struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	stage, err := h.pipeline.AddStage(userID, req.Name)
	if err != nil {
		if errors.Is(err, sqlite.ErrStageDuplicate) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "A stage with that name already exists",
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(stage)
}

func (h *PipelineHandler) DeleteStage(c *fiber.Ctx) error {
	userID := authguard.UserID(c)

	if err := h.pipeline.DeleteStage(userID, c.Params("id")); err != nil {
		if errors.Is(err, sqlite.ErrStageNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Stage not found",
			})
		}
		// Guarded deletes (non-empty stage, Archived) land here.
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{"status": "deleted"})
}

func (h *PipelineHandler) RenameStage(c *fiber.Ctx) error {
	userID := authguard.UserID(c)

	var req struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	job, err := h.pipeline.RenameStage(c.Context(), userID, c.Params("id"), req.Name)
	if err != nil {
		if errors.Is(err, sqlite.ErrStageNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Stage not found",
			})
		}
		if errors.Is(err, sqlite.ErrStageDuplicate) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "A stage with that name already exists",
			})
		}
		// Partial migration: the job row carries the cursor for resume.
		if job != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Rename interrupted; resume with the returned job",
				"job":   job,
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{"job": job})
}

func (h *PipelineHandler) ResumeRename(c *fiber.Ctx) error {
	userID := authguard.UserID(c)

	job, err := h.pipeline.ResumeRenameJob(c.Context(), userID, c.Params("jobId"))
	if err != nil {
		if errors.Is(err, sqlite.ErrJobNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Rename job not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Resume interrupted; try again",
			"job":   job,
		})
	}

	return c.JSON(fiber.Map{"job": job})
}

func (h *PipelineHandler) ReassignLead(c *fiber.Ctx) error {
	userID := authguard.UserID(c)

	var req struct {
		Stage string `json:"stage"`
	}
	if err := c.BodyParser(&req); err != nil || req.Stage == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Stage is required",
		})
	}

	lead, err := h.pipeline.ReassignLead(userID, c.Params("id"), req.Stage)
	if err != nil {
		if errors.Is(err, sqlite.ErrStageNotFound) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Destination stage does not exist",
			})
		}
		if errors.Is(err, sqlite.ErrLeadNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Lead not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to reassign lead",
		})
	}

	return c.JSON(lead)
}

func (h *PipelineHandler) ArchiveLead(c *fiber.Ctx) error {
	userID := authguard.UserID(c)

	lead, err := h.pipeline.ArchiveLead(userID, c.Params("id"))
	if err != nil {
		if errors.Is(err, sqlite.ErrLeadNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Lead not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to archive lead",
		})
	}

	return c.JSON(lead)
}
