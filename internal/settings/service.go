package settings

import (
	"errors"
	"fmt"
	"time"

	"github.com/estatedesk/backend/internal/storage/models"
	"github.com/estatedesk/backend/internal/storage/sqlite"
)

// Store is the slice of the storage client the settings service uses.
type Store interface {
	SaveSettings(s *models.AgentSettings) error
	GetSettings(userID string) (*models.AgentSettings, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Get returns the account settings, materializing defaults on first
// access so the dashboard never sees an empty configuration.
func (s *Service) Get(userID string) (*models.AgentSettings, error) {
	settings, err := s.store.GetSettings(userID)
	if err != nil {
		if errors.Is(err, sqlite.ErrSettingsNotFound) {
			defaults := models.DefaultSettings(userID)
			if saveErr := s.store.SaveSettings(defaults); saveErr != nil {
				return nil, saveErr
			}
			return defaults, nil
		}
		return nil, err
	}
	return settings, nil
}

// SeedDefaults writes the default configuration for a fresh account.
func (s *Service) SeedDefaults(userID string) error {
	_, err := s.Get(userID)
	return err
}

// Save overwrites the configuration wholesale; there are no partial
// updates.
func (s *Service) Save(userID string, settings *models.AgentSettings) (*models.AgentSettings, error) {
	if settings.AgencyName == "" {
		return nil, fmt.Errorf("agency name is required")
	}
	if settings.Language == "" {
		settings.Language = "en"
	}
	if settings.PrimaryColor == "" {
		settings.PrimaryColor = models.DefaultSettings(userID).PrimaryColor
	}

	settings.UserID = userID
	settings.UpdatedAt = time.Now()

	if err := s.store.SaveSettings(settings); err != nil {
		return nil, err
	}
	return settings, nil
}
