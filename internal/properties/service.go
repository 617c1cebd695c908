package properties

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/estatedesk/backend/internal/ingestion"
	"github.com/estatedesk/backend/internal/storage/models"
	"github.com/estatedesk/backend/pkg/logger"
)

// Store is the slice of the storage client the property service uses.
type Store interface {
	UpsertProperty(p *models.PropertyRecord) error
	GetProperty(userID, propertyID string) (*models.PropertyRecord, error)
	ListProperties(userID string) ([]models.PropertyRecord, error)
	DeleteProperty(userID, propertyID string) error
}

type Service struct {
	store      Store
	appBaseURL string
}

func NewService(store Store, appBaseURL string) *Service {
	return &Service{store: store, appBaseURL: appBaseURL}
}

// Create stores a manually entered listing. Missing classification fields
// get defaults, and the protection tier is always recomputed from price
// so a stale tier cannot be smuggled in.
func (s *Service) Create(userID string, p *models.PropertyRecord) (*models.PropertyRecord, error) {
	if p.Listing.Address == "" && p.Listing.Narrative == "" {
		return nil, fmt.Errorf("listing requires an address or a narrative")
	}

	now := time.Now()
	p.PropertyID = uuid.NewString()
	p.UserID = userID
	p.CreatedAt = now
	p.UpdatedAt = now

	applyDefaults(p)

	if err := s.store.UpsertProperty(p); err != nil {
		return nil, err
	}

	logger.Info("Property created",
		zap.String("property_id", p.PropertyID),
		zap.String("tier", p.Tier),
	)
	return p, nil
}

// Update overwrites a listing wholesale. Identity and creation time come
// from the stored row; the tier is recomputed from the submitted price.
func (s *Service) Update(userID string, p *models.PropertyRecord) (*models.PropertyRecord, error) {
	existing, err := s.store.GetProperty(userID, p.PropertyID)
	if err != nil {
		return nil, err
	}

	p.UserID = userID
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now()

	applyDefaults(p)

	if err := s.store.UpsertProperty(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(userID, propertyID string) (*models.PropertyRecord, error) {
	return s.store.GetProperty(userID, propertyID)
}

func (s *Service) List(userID string) ([]models.PropertyRecord, error) {
	return s.store.ListProperties(userID)
}

func (s *Service) Delete(userID, propertyID string) error {
	return s.store.DeleteProperty(userID, propertyID)
}

// SetStatus flips the listing lifecycle state (active, pending, sold,
// rented).
func (s *Service) SetStatus(userID, propertyID, status string) (*models.PropertyRecord, error) {
	switch status {
	case models.StatusActive, models.StatusPending, models.StatusSold, models.StatusRented:
	default:
		return nil, fmt.Errorf("unknown listing status %q", status)
	}

	p, err := s.store.GetProperty(userID, propertyID)
	if err != nil {
		return nil, err
	}

	p.Status = status
	p.UpdatedAt = time.Now()

	if err := s.store.UpsertProperty(p); err != nil {
		return nil, err
	}
	return p, nil
}

func applyDefaults(p *models.PropertyRecord) {
	if p.Category == "" {
		p.Category = models.CategoryResidential
	}
	if p.TransactionType == "" {
		p.TransactionType = models.TransactionSale
	}
	if p.Status == "" {
		p.Status = models.StatusActive
	}
	if len(p.Visibility.PublicFields) == 0 && len(p.Visibility.GatedFields) == 0 {
		p.Visibility = models.DefaultVisibility()
	}
	p.Tier = ingestion.ClassifyTier(p.Listing.Price)
}
