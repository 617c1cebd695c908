package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/estatedesk/backend/internal/storage/models"
)

var ErrSettingsNotFound = errors.New("settings not found")

// SaveSettings overwrites the account configuration wholesale.
func (c *Client) SaveSettings(s *models.AgentSettings) error {
	highSecurity := 0
	if s.HighSecurityMode {
		highSecurity = 1
	}

	query := `
		INSERT INTO agent_settings (user_id, agency_name, primary_color, logo_url, high_security_mode, language, knowledge_base, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			agency_name = excluded.agency_name,
			primary_color = excluded.primary_color,
			logo_url = excluded.logo_url,
			high_security_mode = excluded.high_security_mode,
			language = excluded.language,
			knowledge_base = excluded.knowledge_base,
			updated_at = excluded.updated_at
	`

	_, err := c.db.Exec(
		query,
		s.UserID,
		s.AgencyName,
		s.PrimaryColor,
		s.LogoURL,
		highSecurity,
		s.Language,
		s.KnowledgeBase,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

func (c *Client) GetSettings(userID string) (*models.AgentSettings, error) {
	var s models.AgentSettings
	var logoURL, knowledgeBase sql.NullString
	var highSecurity int
	var updatedAt int64

	err := c.db.QueryRow(
		`SELECT user_id, agency_name, primary_color, logo_url, high_security_mode, language, knowledge_base, updated_at
		 FROM agent_settings WHERE user_id = ?`,
		userID,
	).Scan(&s.UserID, &s.AgencyName, &s.PrimaryColor, &logoURL, &highSecurity, &s.Language, &knowledgeBase, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSettingsNotFound
		}
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	s.LogoURL = logoURL.String
	s.KnowledgeBase = knowledgeBase.String
	s.HighSecurityMode = highSecurity != 0
	s.UpdatedAt = time.Unix(updatedAt, 0)
	return &s, nil
}
