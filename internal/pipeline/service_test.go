package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estatedesk/backend/internal/storage/models"
	"github.com/estatedesk/backend/internal/storage/sqlite"
)

// memStore is an in-memory Store for exercising the service without a
// database file.
type memStore struct {
	stages []models.PipelineStage
	leads  []models.Lead
	jobs   map[string]*models.StageRenameJob

	// failStatusAfter makes UpdateLeadStatus fail once after N successful
	// calls, simulating a crash mid-migration.
	failStatusAfter int
	statusCalls     int
}

func newMemStore() *memStore {
	return &memStore{jobs: map[string]*models.StageRenameJob{}, failStatusAfter: -1}
}

func (m *memStore) InsertStage(s *models.PipelineStage) error {
	for _, existing := range m.stages {
		if existing.UserID == s.UserID && existing.Name == s.Name {
			return sqlite.ErrStageDuplicate
		}
	}
	m.stages = append(m.stages, *s)
	return nil
}

func (m *memStore) ListStages(userID string) ([]models.PipelineStage, error) {
	var out []models.PipelineStage
	for _, s := range m.stages {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) GetStageByName(userID, name string) (*models.PipelineStage, error) {
	for i := range m.stages {
		if m.stages[i].UserID == userID && m.stages[i].Name == name {
			return &m.stages[i], nil
		}
	}
	return nil, sqlite.ErrStageNotFound
}

func (m *memStore) NextStagePosition(userID string) (int, error) {
	max := -1
	for _, s := range m.stages {
		if s.UserID == userID && s.Position > max {
			max = s.Position
		}
	}
	return max + 1, nil
}

func (m *memStore) UpdateStageName(userID, stageID, newName string) error {
	for i := range m.stages {
		if m.stages[i].UserID == userID && m.stages[i].Name == newName {
			return sqlite.ErrStageDuplicate
		}
	}
	for i := range m.stages {
		if m.stages[i].UserID == userID && m.stages[i].ID == stageID {
			m.stages[i].Name = newName
			return nil
		}
	}
	return sqlite.ErrStageNotFound
}

func (m *memStore) DeleteStage(userID, stageID string) error {
	for i := range m.stages {
		if m.stages[i].UserID == userID && m.stages[i].ID == stageID {
			m.stages = append(m.stages[:i], m.stages[i+1:]...)
			return nil
		}
	}
	return sqlite.ErrStageNotFound
}

func (m *memStore) InsertRenameJob(j *models.StageRenameJob) error {
	cp := *j
	m.jobs[j.ID] = &cp
	return nil
}

func (m *memStore) UpdateRenameJob(j *models.StageRenameJob) error {
	cp := *j
	m.jobs[j.ID] = &cp
	return nil
}

func (m *memStore) GetRenameJob(userID, jobID string) (*models.StageRenameJob, error) {
	j, ok := m.jobs[jobID]
	if !ok || j.UserID != userID {
		return nil, sqlite.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memStore) ListLeadsByStatus(userID, status string) ([]models.Lead, error) {
	var out []models.Lead
	for _, l := range m.leads {
		if l.UserID == userID && l.Status == status {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memStore) CountLeadsByStatus(userID, status string) (int, error) {
	leads, _ := m.ListLeadsByStatus(userID, status)
	return len(leads), nil
}

func (m *memStore) UpdateLeadStatus(userID, leadID, status string) error {
	if m.failStatusAfter >= 0 && m.statusCalls >= m.failStatusAfter {
		return errors.New("database is locked")
	}
	m.statusCalls++

	for i := range m.leads {
		if m.leads[i].UserID == userID && m.leads[i].ID == leadID {
			m.leads[i].Status = status
			return nil
		}
	}
	return sqlite.ErrLeadNotFound
}

func (m *memStore) GetLead(userID, leadID string) (*models.Lead, error) {
	for i := range m.leads {
		if m.leads[i].UserID == userID && m.leads[i].ID == leadID {
			cp := m.leads[i]
			return &cp, nil
		}
	}
	return nil, sqlite.ErrLeadNotFound
}

func seedBoard(t *testing.T, store *memStore, svc *Service, leadCount int) {
	t.Helper()
	require.NoError(t, svc.SeedDefaults("user-1"))
	for i := 0; i < leadCount; i++ {
		store.leads = append(store.leads, models.Lead{
			ID:     fmt.Sprintf("lead-%d", i),
			UserID: "user-1",
			Name:   fmt.Sprintf("Lead %d", i),
			Status: "New",
		})
	}
}

func TestSeedDefaultsIsIdempotent(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)

	require.NoError(t, svc.SeedDefaults("user-1"))
	require.NoError(t, svc.SeedDefaults("user-1"))

	stages, err := svc.ListStages("user-1")
	require.NoError(t, err)
	assert.Len(t, stages, len(models.DefaultStages()))
}

func TestAddStageRejectsDuplicates(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	require.NoError(t, svc.SeedDefaults("user-1"))

	stage, err := svc.AddStage("user-1", "Offer Made")
	require.NoError(t, err)
	assert.Equal(t, len(models.DefaultStages()), stage.Position)

	_, err = svc.AddStage("user-1", "Offer Made")
	assert.ErrorIs(t, err, sqlite.ErrStageDuplicate)

	_, err = svc.AddStage("user-1", "   ")
	assert.Error(t, err)
}

func TestDeleteStageGuards(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	seedBoard(t, store, svc, 2)

	stages, _ := svc.ListStages("user-1")
	byName := map[string]models.PipelineStage{}
	for _, s := range stages {
		byName[s.Name] = s
	}

	// Non-empty stage cannot be deleted.
	err := svc.DeleteStage("user-1", byName["New"].ID)
	assert.Error(t, err)

	// Archived is never deletable.
	err = svc.DeleteStage("user-1", byName[models.StageArchived].ID)
	assert.Error(t, err)

	// Empty, ordinary stage deletes fine.
	err = svc.DeleteStage("user-1", byName["Closed"].ID)
	assert.NoError(t, err)
}

func TestReassignLeadRequiresExistingStage(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	seedBoard(t, store, svc, 1)

	lead, err := svc.ReassignLead("user-1", "lead-0", "Qualified")
	require.NoError(t, err)
	assert.Equal(t, "Qualified", lead.Status)

	_, err = svc.ReassignLead("user-1", "lead-0", "No Such Stage")
	assert.ErrorIs(t, err, sqlite.ErrStageNotFound)

	// The failed drop left the lead where it was.
	lead, err = store.GetLead("user-1", "lead-0")
	require.NoError(t, err)
	assert.Equal(t, "Qualified", lead.Status)
}

func TestArchiveLeadIsSoftDelete(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	seedBoard(t, store, svc, 1)

	lead, err := svc.ArchiveLead("user-1", "lead-0")
	require.NoError(t, err)
	assert.Equal(t, models.StageArchived, lead.Status)

	// Still retrievable: archive is not deletion.
	_, err = store.GetLead("user-1", "lead-0")
	assert.NoError(t, err)
}

func TestRenameStageMigratesAllLeads(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	seedBoard(t, store, svc, 5)

	stage, _ := store.GetStageByName("user-1", "New")
	job, err := svc.RenameStage(context.Background(), "user-1", stage.ID, "Incoming")
	require.NoError(t, err)

	assert.Equal(t, models.RenameJobDone, job.State)
	assert.Equal(t, 5, job.TotalLeads)
	assert.Equal(t, 5, job.MigratedLeads)

	moved, _ := store.ListLeadsByStatus("user-1", "Incoming")
	assert.Len(t, moved, 5)
	remaining, _ := store.ListLeadsByStatus("user-1", "New")
	assert.Empty(t, remaining)
}

func TestRenameStageResumesAfterInterruption(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	seedBoard(t, store, svc, 5)

	// Fail after two lead migrations (the stage row rename is a separate
	// write path and does not consume the budget).
	store.failStatusAfter = 2

	stage, _ := store.GetStageByName("user-1", "New")
	job, err := svc.RenameStage(context.Background(), "user-1", stage.ID, "Incoming")
	require.Error(t, err)
	require.NotNil(t, job)
	assert.Equal(t, 2, job.MigratedLeads)

	persisted, err := store.GetRenameJob("user-1", job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RenameJobFailed, persisted.State)

	// Board is split mid-migration, as designed: per-lead writes are
	// independent.
	moved, _ := store.ListLeadsByStatus("user-1", "Incoming")
	assert.Len(t, moved, 2)
	stranded, _ := store.ListLeadsByStatus("user-1", "New")
	assert.Len(t, stranded, 3)

	// Resume finishes the stragglers without touching migrated leads.
	store.failStatusAfter = -1
	resumed, err := svc.ResumeRenameJob(context.Background(), "user-1", job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RenameJobDone, resumed.State)
	assert.Equal(t, 5, resumed.MigratedLeads)

	moved, _ = store.ListLeadsByStatus("user-1", "Incoming")
	assert.Len(t, moved, 5)
}

func TestRenameStageRejectsArchivedAndDuplicates(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	seedBoard(t, store, svc, 0)

	archived, _ := store.GetStageByName("user-1", models.StageArchived)
	_, err := svc.RenameStage(context.Background(), "user-1", archived.ID, "Trash")
	assert.Error(t, err)

	stage, _ := store.GetStageByName("user-1", "New")
	_, err = svc.RenameStage(context.Background(), "user-1", stage.ID, "Contacted")
	assert.ErrorIs(t, err, sqlite.ErrStageDuplicate)
}

func TestBoardGroupsLeadsByStage(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	seedBoard(t, store, svc, 3)
	store.leads[2].Status = "Qualified"

	board, err := svc.Board("user-1")
	require.NoError(t, err)
	require.Len(t, board, len(models.DefaultStages()))

	byName := map[string][]models.Lead{}
	for _, col := range board {
		byName[col.Stage.Name] = col.Leads
	}
	assert.Len(t, byName["New"], 2)
	assert.Len(t, byName["Qualified"], 1)
	assert.Empty(t, byName["Closed"])
}
