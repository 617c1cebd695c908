package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/estatedesk/backend/internal/storage/models"
	"github.com/estatedesk/backend/pkg/logger"
)

var ErrPropertyNotFound = errors.New("property not found")

// UpsertProperty inserts a listing or overwrites an existing one owned by
// the same account. Ingestion re-sync and manual edits both land here.
func (c *Client) UpsertProperty(p *models.PropertyRecord) error {
	visibility, err := json.Marshal(p.Visibility)
	if err != nil {
		return fmt.Errorf("failed to marshal visibility: %w", err)
	}
	listing, err := json.Marshal(p.Listing)
	if err != nil {
		return fmt.Errorf("failed to marshal listing: %w", err)
	}

	deepData := marshalOrNull(p.DeepData)
	amenities := marshalOrNull(p.Amenities)
	seo := marshalOrNull(p.SEO)

	query := `
		INSERT INTO properties (property_id, user_id, category, transaction_type, status, tier,
			visibility, listing, deep_data, agent_notes, ai_training, amenities, seo, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(property_id) DO UPDATE SET
			category = excluded.category,
			transaction_type = excluded.transaction_type,
			status = excluded.status,
			tier = excluded.tier,
			visibility = excluded.visibility,
			listing = excluded.listing,
			deep_data = excluded.deep_data,
			agent_notes = excluded.agent_notes,
			ai_training = excluded.ai_training,
			amenities = excluded.amenities,
			seo = excluded.seo,
			updated_at = excluded.updated_at
	`

	_, err = c.db.Exec(
		query,
		p.PropertyID,
		p.UserID,
		p.Category,
		p.TransactionType,
		p.Status,
		p.Tier,
		string(visibility),
		string(listing),
		deepData,
		p.AgentNotes,
		p.AITraining,
		amenities,
		seo,
		p.CreatedAt.Unix(),
		p.UpdatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to upsert property: %w", err)
	}

	logger.Debug("Property upserted",
		zap.String("property_id", p.PropertyID),
		zap.String("tier", p.Tier),
	)
	return nil
}

func (c *Client) GetProperty(userID, propertyID string) (*models.PropertyRecord, error) {
	query := `
		SELECT property_id, user_id, category, transaction_type, status, tier,
			visibility, listing, deep_data, agent_notes, ai_training, amenities, seo, created_at, updated_at
		FROM properties WHERE property_id = ? AND user_id = ?
	`

	row := c.db.QueryRow(query, propertyID, userID)
	p, err := scanProperty(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPropertyNotFound
		}
		return nil, fmt.Errorf("failed to get property: %w", err)
	}
	return p, nil
}

func (c *Client) ListProperties(userID string) ([]models.PropertyRecord, error) {
	query := `
		SELECT property_id, user_id, category, transaction_type, status, tier,
			visibility, listing, deep_data, agent_notes, ai_training, amenities, seo, created_at, updated_at
		FROM properties WHERE user_id = ? ORDER BY created_at DESC
	`

	rows, err := c.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	defer rows.Close()

	var properties []models.PropertyRecord
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		properties = append(properties, *p)
	}

	return properties, rows.Err()
}

func (c *Client) DeleteProperty(userID, propertyID string) error {
	result, err := c.db.Exec(`DELETE FROM properties WHERE property_id = ? AND user_id = ?`, propertyID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete property: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrPropertyNotFound
	}

	logger.Info("Property deleted", zap.String("property_id", propertyID))
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProperty(row rowScanner) (*models.PropertyRecord, error) {
	var p models.PropertyRecord
	var visibility, listing string
	var deepData, agentNotes, aiTraining, amenities, seo sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(
		&p.PropertyID,
		&p.UserID,
		&p.Category,
		&p.TransactionType,
		&p.Status,
		&p.Tier,
		&visibility,
		&listing,
		&deepData,
		&agentNotes,
		&aiTraining,
		&amenities,
		&seo,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(visibility), &p.Visibility); err != nil {
		return nil, fmt.Errorf("failed to unmarshal visibility: %w", err)
	}
	if err := json.Unmarshal([]byte(listing), &p.Listing); err != nil {
		return nil, fmt.Errorf("failed to unmarshal listing: %w", err)
	}
	if deepData.Valid && deepData.String != "" {
		json.Unmarshal([]byte(deepData.String), &p.DeepData)
	}
	if amenities.Valid && amenities.String != "" {
		json.Unmarshal([]byte(amenities.String), &p.Amenities)
	}
	if seo.Valid && seo.String != "" {
		json.Unmarshal([]byte(seo.String), &p.SEO)
	}
	p.AgentNotes = agentNotes.String
	p.AITraining = aiTraining.String
	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)

	return &p, nil
}

func marshalOrNull(v interface{}) interface{} {
	switch val := v.(type) {
	case *models.DeepData:
		if val == nil {
			return nil
		}
	case *models.SEO:
		if val == nil {
			return nil
		}
	case map[string]bool:
		if val == nil {
			return nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(data)
}
