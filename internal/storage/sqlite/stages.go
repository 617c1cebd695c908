package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/estatedesk/backend/internal/storage/models"
	"github.com/estatedesk/backend/pkg/logger"
)

var (
	ErrStageNotFound  = errors.New("stage not found")
	ErrStageDuplicate = errors.New("stage name already exists")
	ErrJobNotFound    = errors.New("rename job not found")
)

func (c *Client) InsertStage(s *models.PipelineStage) error {
	_, err := c.db.Exec(
		`INSERT INTO pipeline_stages (id, user_id, name, position) VALUES (?, ?, ?, ?)`,
		s.ID, s.UserID, s.Name, s.Position,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrStageDuplicate
		}
		return fmt.Errorf("failed to insert stage: %w", err)
	}

	logger.Info("Stage created",
		zap.String("name", s.Name),
		zap.Int("position", s.Position),
	)
	return nil
}

func (c *Client) ListStages(userID string) ([]models.PipelineStage, error) {
	rows, err := c.db.Query(
		`SELECT id, user_id, name, position FROM pipeline_stages WHERE user_id = ? ORDER BY position`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stages: %w", err)
	}
	defer rows.Close()

	var stages []models.PipelineStage
	for rows.Next() {
		var s models.PipelineStage
		if err := rows.Scan(&s.ID, &s.UserID, &s.Name, &s.Position); err != nil {
			return nil, fmt.Errorf("failed to scan stage: %w", err)
		}
		stages = append(stages, s)
	}
	return stages, rows.Err()
}

func (c *Client) GetStageByName(userID, name string) (*models.PipelineStage, error) {
	var s models.PipelineStage
	err := c.db.QueryRow(
		`SELECT id, user_id, name, position FROM pipeline_stages WHERE user_id = ? AND name = ?`,
		userID, name,
	).Scan(&s.ID, &s.UserID, &s.Name, &s.Position)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStageNotFound
		}
		return nil, fmt.Errorf("failed to get stage: %w", err)
	}
	return &s, nil
}

func (c *Client) NextStagePosition(userID string) (int, error) {
	var pos sql.NullInt64
	err := c.db.QueryRow(
		`SELECT MAX(position) FROM pipeline_stages WHERE user_id = ?`, userID,
	).Scan(&pos)
	if err != nil {
		return 0, fmt.Errorf("failed to compute stage position: %w", err)
	}
	return int(pos.Int64) + 1, nil
}

func (c *Client) UpdateStageName(userID, stageID, newName string) error {
	result, err := c.db.Exec(
		`UPDATE pipeline_stages SET name = ? WHERE id = ? AND user_id = ?`,
		newName, stageID, userID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrStageDuplicate
		}
		return fmt.Errorf("failed to rename stage: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrStageNotFound
	}
	return nil
}

func (c *Client) DeleteStage(userID, stageID string) error {
	result, err := c.db.Exec(
		`DELETE FROM pipeline_stages WHERE id = ? AND user_id = ?`,
		stageID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete stage: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrStageNotFound
	}
	return nil
}

func (c *Client) InsertRenameJob(j *models.StageRenameJob) error {
	_, err := c.db.Exec(
		`INSERT INTO stage_rename_jobs (id, user_id, old_name, new_name, total_leads, migrated_leads, state, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.UserID, j.OldName, j.NewName, j.TotalLeads, j.MigratedLeads, j.State,
		j.CreatedAt.Unix(), j.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert rename job: %w", err)
	}
	return nil
}

func (c *Client) UpdateRenameJob(j *models.StageRenameJob) error {
	_, err := c.db.Exec(
		`UPDATE stage_rename_jobs SET migrated_leads = ?, state = ?, updated_at = ? WHERE id = ?`,
		j.MigratedLeads, j.State, time.Now().Unix(), j.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update rename job: %w", err)
	}
	return nil
}

func (c *Client) GetRenameJob(userID, jobID string) (*models.StageRenameJob, error) {
	var j models.StageRenameJob
	var createdAt, updatedAt int64
	err := c.db.QueryRow(
		`SELECT id, user_id, old_name, new_name, total_leads, migrated_leads, state, created_at, updated_at
		 FROM stage_rename_jobs WHERE id = ? AND user_id = ?`,
		jobID, userID,
	).Scan(&j.ID, &j.UserID, &j.OldName, &j.NewName, &j.TotalLeads, &j.MigratedLeads, &j.State, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get rename job: %w", err)
	}
	j.CreatedAt = time.Unix(createdAt, 0)
	j.UpdatedAt = time.Unix(updatedAt, 0)
	return &j, nil
}
