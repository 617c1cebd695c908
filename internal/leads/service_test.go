package leads

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estatedesk/backend/internal/storage/models"
	"github.com/estatedesk/backend/internal/storage/sqlite"
)

type memStore struct {
	leads map[string]models.Lead
}

func newMemStore() *memStore {
	return &memStore{leads: map[string]models.Lead{}}
}

// stageList is a canned pipeline, ordered by position like the real
// store returns it.
type stageList []models.PipelineStage

func (s stageList) ListStages(userID string) ([]models.PipelineStage, error) {
	return s, nil
}

func defaultStageList() stageList {
	var out stageList
	for i, name := range models.DefaultStages() {
		out = append(out, models.PipelineStage{ID: name, UserID: "user-1", Name: name, Position: i})
	}
	return out
}

func (m *memStore) InsertLead(l *models.Lead) error {
	m.leads[l.ID] = *l
	return nil
}

func (m *memStore) UpdateLead(l *models.Lead) error {
	if _, ok := m.leads[l.ID]; !ok {
		return sqlite.ErrLeadNotFound
	}
	m.leads[l.ID] = *l
	return nil
}

func (m *memStore) GetLead(userID, leadID string) (*models.Lead, error) {
	l, ok := m.leads[leadID]
	if !ok || l.UserID != userID {
		return nil, sqlite.ErrLeadNotFound
	}
	cp := l
	return &cp, nil
}

func (m *memStore) ListLeads(userID string) ([]models.Lead, error) {
	var out []models.Lead
	for _, l := range m.leads {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func capture(t *testing.T, svc *Service) *models.Lead {
	t.Helper()
	lead, err := svc.Capture(context.Background(), CaptureRequest{
		UserID: "user-1",
		Name:   "Dana Reyes",
		Phone:  "+14155552671",
	})
	require.NoError(t, err)
	return lead
}

func TestCaptureDefaults(t *testing.T) {
	svc := NewService(newMemStore(), defaultStageList())

	lead, err := svc.Capture(context.Background(), CaptureRequest{
		UserID:          "user-1",
		Name:            "Dana Reyes",
		Phone:           "+14155552671",
		PropertyID:      "prop-1",
		PropertyAddress: "12 Oak Lane",
		Conversation:    []models.ChatTurn{{Role: "user", Text: "price?"}},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, lead.ID)
	assert.Equal(t, "New", lead.Status)
	assert.Equal(t, models.FinancingUnverified, lead.FinancingStatus)
	assert.Zero(t, lead.PriorityScore)
	assert.Len(t, lead.Conversation, 1)
}

func TestCaptureFollowsRenamedEntryStage(t *testing.T) {
	stages := defaultStageList()
	stages[0].Name = "Incoming"
	svc := NewService(newMemStore(), stages)

	lead := capture(t, svc)
	assert.Equal(t, "Incoming", lead.Status)
}

func TestCaptureFallsBackWithoutStages(t *testing.T) {
	lead := capture(t, NewService(newMemStore(), stageList{}))
	assert.Equal(t, "New", lead.Status)

	lead = capture(t, NewService(newMemStore(), nil))
	assert.Equal(t, "New", lead.Status)
}

func TestCaptureSkipsArchivedEntryStage(t *testing.T) {
	svc := NewService(newMemStore(), stageList{
		{ID: "s1", UserID: "user-1", Name: models.StageArchived, Position: 0},
		{ID: "s2", UserID: "user-1", Name: "Contacted", Position: 1},
	})

	lead := capture(t, svc)
	assert.Equal(t, "Contacted", lead.Status)
}

func TestCaptureRequiresNameAndPhone(t *testing.T) {
	svc := NewService(newMemStore(), defaultStageList())

	_, err := svc.Capture(context.Background(), CaptureRequest{UserID: "user-1", Phone: "+14155552671"})
	assert.Error(t, err)

	_, err = svc.Capture(context.Background(), CaptureRequest{UserID: "user-1", Name: "Dana"})
	assert.Error(t, err)
}

func TestAddNoteAppendsTimestampedEntries(t *testing.T) {
	svc := NewService(newMemStore(), defaultStageList())
	lead := capture(t, svc)

	updated, err := svc.AddNote("user-1", lead.ID, "Called, no answer")
	require.NoError(t, err)
	updated, err = svc.AddNote("user-1", lead.ID, "Scheduled a showing")
	require.NoError(t, err)

	require.Len(t, updated.NotesLog, 2)
	assert.Equal(t, "Called, no answer", updated.NotesLog[0].Text)
	assert.Equal(t, "Scheduled a showing", updated.NotesLog[1].Text)
	assert.False(t, updated.NotesLog[0].Timestamp.IsZero())

	_, err = svc.AddNote("user-1", lead.ID, "")
	assert.Error(t, err)
}

func TestSetPriorityBounds(t *testing.T) {
	svc := NewService(newMemStore(), defaultStageList())
	lead := capture(t, svc)

	updated, err := svc.SetPriority("user-1", lead.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, updated.PriorityScore)

	_, err = svc.SetPriority("user-1", lead.ID, 11)
	assert.Error(t, err)
	_, err = svc.SetPriority("user-1", lead.ID, -1)
	assert.Error(t, err)
}

func TestSetDueDateAndClear(t *testing.T) {
	svc := NewService(newMemStore(), defaultStageList())
	lead := capture(t, svc)

	due := time.Now().Add(48 * time.Hour)
	updated, err := svc.SetDueDate("user-1", lead.ID, &due)
	require.NoError(t, err)
	require.NotNil(t, updated.DueDate)

	updated, err = svc.SetDueDate("user-1", lead.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, updated.DueDate)
}

func TestSetFinancingValidates(t *testing.T) {
	svc := NewService(newMemStore(), defaultStageList())
	lead := capture(t, svc)

	updated, err := svc.SetFinancing("user-1", lead.ID, models.FinancingCash)
	require.NoError(t, err)
	assert.Equal(t, models.FinancingCash, updated.FinancingStatus)

	_, err = svc.SetFinancing("user-1", lead.ID, "crypto")
	assert.Error(t, err)
}

func TestAppendConversation(t *testing.T) {
	svc := NewService(newMemStore(), defaultStageList())
	lead := capture(t, svc)

	updated, err := svc.AppendConversation("user-1", lead.ID, []models.ChatTurn{
		{Role: "user", Text: "still interested"},
		{Role: "model", Text: "great!"},
	})
	require.NoError(t, err)
	assert.Len(t, updated.Conversation, 2)

	// Empty append is a no-op read.
	same, err := svc.AppendConversation("user-1", lead.ID, nil)
	require.NoError(t, err)
	assert.Len(t, same.Conversation, 2)
}

func TestOwnershipIsEnforced(t *testing.T) {
	svc := NewService(newMemStore(), defaultStageList())
	lead := capture(t, svc)

	_, err := svc.Get("user-2", lead.ID)
	assert.ErrorIs(t, err, sqlite.ErrLeadNotFound)

	_, err = svc.SetPriority("user-2", lead.ID, 5)
	assert.ErrorIs(t, err, sqlite.ErrLeadNotFound)
}
