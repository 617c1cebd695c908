package leads

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/estatedesk/backend/internal/storage/models"
	"github.com/estatedesk/backend/pkg/logger"
)

// Store is the slice of the storage client the lead service uses.
type Store interface {
	InsertLead(l *models.Lead) error
	UpdateLead(l *models.Lead) error
	GetLead(userID, leadID string) (*models.Lead, error)
	ListLeads(userID string) ([]models.Lead, error)
}

// StageSource resolves the account's pipeline. Stage names are
// user-renamable, so captures must land on whatever the first stage is
// currently called rather than its seed name.
type StageSource interface {
	ListStages(userID string) ([]models.PipelineStage, error)
}

type Service struct {
	store  Store
	stages StageSource
}

func NewService(store Store, stages StageSource) *Service {
	return &Service{store: store, stages: stages}
}

// CaptureRequest is a new lead arriving from the chat gate, the
// side-channel phone scan, or manual entry.
type CaptureRequest struct {
	UserID          string
	Name            string
	Phone           string
	Email           string
	PropertyID      string
	PropertyAddress string
	Notes           []string
	Conversation    []models.ChatTurn
}

// Capture creates a lead in the first pipeline stage with unverified
// financing. The chat transcript is snapshotted onto the lead so the
// agent sees what the visitor asked before qualifying.
func (s *Service) Capture(ctx context.Context, req CaptureRequest) (*models.Lead, error) {
	if req.Name == "" || req.Phone == "" {
		return nil, fmt.Errorf("lead requires a name and phone")
	}

	now := time.Now()
	lead := &models.Lead{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		Name:            req.Name,
		Phone:           req.Phone,
		Email:           req.Email,
		FinancingStatus: models.FinancingUnverified,
		Status:          s.entryStage(req.UserID),
		PropertyID:      req.PropertyID,
		PropertyAddress: req.PropertyAddress,
		Notes:           req.Notes,
		Conversation:    req.Conversation,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.store.InsertLead(lead); err != nil {
		return nil, fmt.Errorf("failed to store lead: %w", err)
	}

	logger.Info("Lead captured",
		zap.String("lead_id", lead.ID),
		zap.String("property_id", lead.PropertyID),
	)
	return lead, nil
}

// entryStage is the lowest-position non-archive stage by its current
// name. Falls back to the seed name when the account has no stages yet.
func (s *Service) entryStage(userID string) string {
	if s.stages == nil {
		return models.StageNew
	}
	stages, err := s.stages.ListStages(userID)
	if err != nil {
		logger.Warn("Failed to resolve entry stage, using seed name", zap.Error(err))
		return models.StageNew
	}
	for _, stage := range stages {
		if stage.Name != models.StageArchived {
			return stage.Name
		}
	}
	return models.StageNew
}

func (s *Service) Get(userID, leadID string) (*models.Lead, error) {
	return s.store.GetLead(userID, leadID)
}

func (s *Service) List(userID string) ([]models.Lead, error) {
	return s.store.ListLeads(userID)
}

// Update overwrites a lead's editable fields wholesale; identity and
// creation time are preserved from the stored row.
func (s *Service) Update(userID string, lead *models.Lead) (*models.Lead, error) {
	existing, err := s.store.GetLead(userID, lead.ID)
	if err != nil {
		return nil, err
	}

	lead.UserID = userID
	lead.CreatedAt = existing.CreatedAt
	lead.UpdatedAt = time.Now()

	if err := s.store.UpdateLead(lead); err != nil {
		return nil, err
	}
	return lead, nil
}

// AddNote appends a timestamped entry to the lead's notes log.
func (s *Service) AddNote(userID, leadID, text string) (*models.Lead, error) {
	if text == "" {
		return nil, fmt.Errorf("note text is required")
	}

	lead, err := s.store.GetLead(userID, leadID)
	if err != nil {
		return nil, err
	}

	lead.NotesLog = append(lead.NotesLog, models.NoteEntry{
		Timestamp: time.Now(),
		Text:      text,
	})
	lead.UpdatedAt = time.Now()

	if err := s.store.UpdateLead(lead); err != nil {
		return nil, err
	}
	return lead, nil
}

// SetPriority sets the 0..10 priority score.
func (s *Service) SetPriority(userID, leadID string, score int) (*models.Lead, error) {
	if score < 0 || score > 10 {
		return nil, fmt.Errorf("priority score must be between 0 and 10")
	}

	lead, err := s.store.GetLead(userID, leadID)
	if err != nil {
		return nil, err
	}

	lead.PriorityScore = score
	lead.UpdatedAt = time.Now()

	if err := s.store.UpdateLead(lead); err != nil {
		return nil, err
	}
	return lead, nil
}

// SetDueDate sets or clears the follow-up reminder.
func (s *Service) SetDueDate(userID, leadID string, due *time.Time) (*models.Lead, error) {
	lead, err := s.store.GetLead(userID, leadID)
	if err != nil {
		return nil, err
	}

	lead.DueDate = due
	lead.UpdatedAt = time.Now()

	if err := s.store.UpdateLead(lead); err != nil {
		return nil, err
	}
	return lead, nil
}

// SetFinancing records the financing verification outcome.
func (s *Service) SetFinancing(userID, leadID, status string) (*models.Lead, error) {
	switch status {
	case models.FinancingCash, models.FinancingLender, models.FinancingUnverified:
	default:
		return nil, fmt.Errorf("unknown financing status %q", status)
	}

	lead, err := s.store.GetLead(userID, leadID)
	if err != nil {
		return nil, err
	}

	lead.FinancingStatus = status
	lead.UpdatedAt = time.Now()

	if err := s.store.UpdateLead(lead); err != nil {
		return nil, err
	}
	return lead, nil
}

// AppendConversation attaches additional chat turns to a lead, used when
// a captured visitor keeps talking after the form submit.
func (s *Service) AppendConversation(userID, leadID string, turns []models.ChatTurn) (*models.Lead, error) {
	if len(turns) == 0 {
		return s.store.GetLead(userID, leadID)
	}

	lead, err := s.store.GetLead(userID, leadID)
	if err != nil {
		return nil, err
	}

	lead.Conversation = append(lead.Conversation, turns...)
	lead.UpdatedAt = time.Now()

	if err := s.store.UpdateLead(lead); err != nil {
		return nil, err
	}
	return lead, nil
}
