package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/estatedesk/backend/internal/metrics"
	"github.com/estatedesk/backend/internal/storage/models"
	"github.com/estatedesk/backend/internal/storage/sqlite"
	"github.com/estatedesk/backend/pkg/logger"
)

// Store is the slice of the storage client the pipeline service uses.
type Store interface {
	InsertStage(s *models.PipelineStage) error
	ListStages(userID string) ([]models.PipelineStage, error)
	GetStageByName(userID, name string) (*models.PipelineStage, error)
	NextStagePosition(userID string) (int, error)
	UpdateStageName(userID, stageID, newName string) error
	DeleteStage(userID, stageID string) error

	InsertRenameJob(j *models.StageRenameJob) error
	UpdateRenameJob(j *models.StageRenameJob) error
	GetRenameJob(userID, jobID string) (*models.StageRenameJob, error)

	ListLeadsByStatus(userID, status string) ([]models.Lead, error)
	CountLeadsByStatus(userID, status string) (int, error)
	UpdateLeadStatus(userID, leadID, status string) error
	GetLead(userID, leadID string) (*models.Lead, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// SeedDefaults creates the default stage set for a new account. Existing
// stages are left alone so a retried signup does not duplicate.
func (s *Service) SeedDefaults(userID string) error {
	for i, name := range models.DefaultStages() {
		err := s.store.InsertStage(&models.PipelineStage{
			ID:       uuid.NewString(),
			UserID:   userID,
			Name:     name,
			Position: i,
		})
		if err != nil && err != sqlite.ErrStageDuplicate {
			return fmt.Errorf("failed to seed stage %q: %w", name, err)
		}
	}
	return nil
}

// AddStage appends a new stage at the end of the board. Stage names are
// unique per account.
func (s *Service) AddStage(userID, name string) (*models.PipelineStage, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("stage name is required")
	}

	pos, err := s.store.NextStagePosition(userID)
	if err != nil {
		return nil, err
	}

	stage := &models.PipelineStage{
		ID:       uuid.NewString(),
		UserID:   userID,
		Name:     name,
		Position: pos,
	}
	if err := s.store.InsertStage(stage); err != nil {
		return nil, err
	}
	return stage, nil
}

func (s *Service) ListStages(userID string) ([]models.PipelineStage, error) {
	return s.store.ListStages(userID)
}

// DeleteStage removes an empty stage. A stage holding leads cannot be
// deleted, and the Archived stage is never deletable: soft deletion needs
// a target.
func (s *Service) DeleteStage(userID, stageID string) error {
	stages, err := s.store.ListStages(userID)
	if err != nil {
		return err
	}

	var target *models.PipelineStage
	for i := range stages {
		if stages[i].ID == stageID {
			target = &stages[i]
			break
		}
	}
	if target == nil {
		return sqlite.ErrStageNotFound
	}
	if target.Name == models.StageArchived {
		return fmt.Errorf("the %s stage cannot be deleted", models.StageArchived)
	}

	count, err := s.store.CountLeadsByStatus(userID, target.Name)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("stage %q still holds %d leads", target.Name, count)
	}

	return s.store.DeleteStage(userID, stageID)
}

// ReassignLead moves a lead onto another stage. The destination must
// exist; a dropped drag onto a deleted column is rejected here.
func (s *Service) ReassignLead(userID, leadID, stageName string) (*models.Lead, error) {
	if _, err := s.store.GetStageByName(userID, stageName); err != nil {
		return nil, err
	}

	if err := s.store.UpdateLeadStatus(userID, leadID, stageName); err != nil {
		return nil, err
	}
	return s.store.GetLead(userID, leadID)
}

// ArchiveLead is the soft delete: the lead moves to the reserved Archived
// stage and keeps its history.
func (s *Service) ArchiveLead(userID, leadID string) (*models.Lead, error) {
	return s.ReassignLead(userID, leadID, models.StageArchived)
}

// BoardColumn is one stage with its member leads, in store-insertion
// order.
type BoardColumn struct {
	Stage models.PipelineStage `json:"stage"`
	Leads []models.Lead        `json:"leads"`
}

// Board assembles the full pipeline view. Archived leads appear in their
// own column like any other stage.
func (s *Service) Board(userID string) ([]BoardColumn, error) {
	stages, err := s.store.ListStages(userID)
	if err != nil {
		return nil, err
	}

	columns := make([]BoardColumn, 0, len(stages))
	for _, stage := range stages {
		leads, err := s.store.ListLeadsByStatus(userID, stage.Name)
		if err != nil {
			return nil, err
		}
		columns = append(columns, BoardColumn{Stage: stage, Leads: leads})
	}
	return columns, nil
}

// RenameStage renames a stage and migrates its member leads one
// independent write at a time, tracked by a job row. If the process dies
// mid-migration the job can be resumed; leads already carrying the new
// name are skipped by construction because the member query keys on the
// old name.
func (s *Service) RenameStage(ctx context.Context, userID, stageID, newName string) (*models.StageRenameJob, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, fmt.Errorf("stage name is required")
	}

	stages, err := s.store.ListStages(userID)
	if err != nil {
		return nil, err
	}
	var target *models.PipelineStage
	for i := range stages {
		if stages[i].ID == stageID {
			target = &stages[i]
			break
		}
	}
	if target == nil {
		return nil, sqlite.ErrStageNotFound
	}
	if target.Name == models.StageArchived {
		return nil, fmt.Errorf("the %s stage cannot be renamed", models.StageArchived)
	}
	if target.Name == newName {
		return nil, fmt.Errorf("stage is already named %q", newName)
	}

	total, err := s.store.CountLeadsByStatus(userID, target.Name)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	job := &models.StageRenameJob{
		ID:            uuid.NewString(),
		UserID:        userID,
		OldName:       target.Name,
		NewName:       newName,
		TotalLeads:    total,
		MigratedLeads: 0,
		State:         models.RenameJobRunning,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.InsertRenameJob(job); err != nil {
		return nil, err
	}

	// The stage row renames first so new captures land on the new name
	// while members migrate.
	if err := s.store.UpdateStageName(userID, stageID, newName); err != nil {
		job.State = models.RenameJobFailed
		s.store.UpdateRenameJob(job)
		return nil, err
	}

	if err := s.migrate(ctx, job); err != nil {
		return job, err
	}
	return job, nil
}

// ResumeRenameJob picks an interrupted migration back up. Only the leads
// still carrying the old name are touched.
func (s *Service) ResumeRenameJob(ctx context.Context, userID, jobID string) (*models.StageRenameJob, error) {
	job, err := s.store.GetRenameJob(userID, jobID)
	if err != nil {
		return nil, err
	}
	if job.State == models.RenameJobDone {
		return job, nil
	}

	job.State = models.RenameJobRunning
	if err := s.migrate(ctx, job); err != nil {
		return job, err
	}
	return job, nil
}

func (s *Service) migrate(ctx context.Context, job *models.StageRenameJob) error {
	members, err := s.store.ListLeadsByStatus(job.UserID, job.OldName)
	if err != nil {
		job.State = models.RenameJobFailed
		s.store.UpdateRenameJob(job)
		return err
	}

	for _, lead := range members {
		if err := ctx.Err(); err != nil {
			job.State = models.RenameJobFailed
			s.store.UpdateRenameJob(job)
			return err
		}

		if err := s.store.UpdateLeadStatus(job.UserID, lead.ID, job.NewName); err != nil {
			job.State = models.RenameJobFailed
			s.store.UpdateRenameJob(job)
			logger.Error("Stage rename interrupted",
				zap.String("job_id", job.ID),
				zap.Int("migrated", job.MigratedLeads),
				zap.Error(err),
			)
			return fmt.Errorf("rename interrupted after %d leads: %w", job.MigratedLeads, err)
		}

		job.MigratedLeads++
		metrics.StageRenameLeads.Inc()
		if err := s.store.UpdateRenameJob(job); err != nil {
			return err
		}
	}

	job.State = models.RenameJobDone
	if err := s.store.UpdateRenameJob(job); err != nil {
		return err
	}

	logger.Info("Stage rename complete",
		zap.String("job_id", job.ID),
		zap.String("old_name", job.OldName),
		zap.String("new_name", job.NewName),
		zap.Int("migrated", job.MigratedLeads),
	)
	return nil
}
