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

var ErrLeadNotFound = errors.New("lead not found")

func (c *Client) InsertLead(l *models.Lead) error {
	notes := marshalJSON(l.Notes)
	notesLog := marshalJSON(l.NotesLog)
	conversation := marshalJSON(l.Conversation)

	var dueDate interface{}
	if l.DueDate != nil {
		dueDate = l.DueDate.Unix()
	}

	query := `
		INSERT INTO leads (id, user_id, name, phone, email, financing_status, status,
			property_id, property_address, notes, agent_notes, notes_log, conversation,
			priority_score, due_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		l.ID,
		l.UserID,
		l.Name,
		l.Phone,
		l.Email,
		l.FinancingStatus,
		l.Status,
		l.PropertyID,
		l.PropertyAddress,
		notes,
		l.AgentNotes,
		notesLog,
		conversation,
		l.PriorityScore,
		dueDate,
		l.CreatedAt.Unix(),
		l.UpdatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert lead: %w", err)
	}

	logger.Info("Lead inserted",
		zap.String("lead_id", l.ID),
		zap.String("status", l.Status),
	)
	return nil
}

// UpdateLead overwrites all mutable fields of an existing lead.
func (c *Client) UpdateLead(l *models.Lead) error {
	notes := marshalJSON(l.Notes)
	notesLog := marshalJSON(l.NotesLog)
	conversation := marshalJSON(l.Conversation)

	var dueDate interface{}
	if l.DueDate != nil {
		dueDate = l.DueDate.Unix()
	}

	query := `
		UPDATE leads SET name = ?, phone = ?, email = ?, financing_status = ?, status = ?,
			property_id = ?, property_address = ?, notes = ?, agent_notes = ?, notes_log = ?,
			conversation = ?, priority_score = ?, due_date = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`

	result, err := c.db.Exec(
		query,
		l.Name,
		l.Phone,
		l.Email,
		l.FinancingStatus,
		l.Status,
		l.PropertyID,
		l.PropertyAddress,
		notes,
		l.AgentNotes,
		notesLog,
		conversation,
		l.PriorityScore,
		dueDate,
		time.Now().Unix(),
		l.ID,
		l.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrLeadNotFound
	}
	return nil
}

// UpdateLeadStatus is the single-field write used by drag-to-reassign and
// by the stage rename saga; each call is an independent write.
func (c *Client) UpdateLeadStatus(userID, leadID, status string) error {
	result, err := c.db.Exec(
		`UPDATE leads SET status = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		status, time.Now().Unix(), leadID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update lead status: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrLeadNotFound
	}

	logger.Debug("Lead status updated",
		zap.String("lead_id", leadID),
		zap.String("status", status),
	)
	return nil
}

func (c *Client) GetLead(userID, leadID string) (*models.Lead, error) {
	row := c.db.QueryRow(leadSelect+` WHERE id = ? AND user_id = ?`, leadID, userID)
	l, err := scanLead(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return l, nil
}

// ListLeads returns the account's leads in store-insertion order; there is
// no persisted inter-lead ordering.
func (c *Client) ListLeads(userID string) ([]models.Lead, error) {
	rows, err := c.db.Query(leadSelect+` WHERE user_id = ? ORDER BY rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	return collectLeads(rows)
}

func (c *Client) ListLeadsByStatus(userID, status string) ([]models.Lead, error) {
	rows, err := c.db.Query(leadSelect+` WHERE user_id = ? AND status = ? ORDER BY rowid`, userID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads by status: %w", err)
	}
	defer rows.Close()

	return collectLeads(rows)
}

func (c *Client) CountLeadsByStatus(userID, status string) (int, error) {
	var count int
	err := c.db.QueryRow(
		`SELECT COUNT(*) FROM leads WHERE user_id = ? AND status = ?`,
		userID, status,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count leads: %w", err)
	}
	return count, nil
}

const leadSelect = `
	SELECT id, user_id, name, phone, email, financing_status, status,
		property_id, property_address, notes, agent_notes, notes_log, conversation,
		priority_score, due_date, created_at, updated_at
	FROM leads`

func scanLead(row rowScanner) (*models.Lead, error) {
	var l models.Lead
	var userID, email, propertyID, propertyAddress, notes, agentNotes, notesLog, conversation sql.NullString
	var dueDate sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(
		&l.ID,
		&userID,
		&l.Name,
		&l.Phone,
		&email,
		&l.FinancingStatus,
		&l.Status,
		&propertyID,
		&propertyAddress,
		&notes,
		&agentNotes,
		&notesLog,
		&conversation,
		&l.PriorityScore,
		&dueDate,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.UserID = userID.String
	l.Email = email.String
	l.PropertyID = propertyID.String
	l.PropertyAddress = propertyAddress.String
	l.AgentNotes = agentNotes.String
	if notes.Valid && notes.String != "" {
		json.Unmarshal([]byte(notes.String), &l.Notes)
	}
	if notesLog.Valid && notesLog.String != "" {
		json.Unmarshal([]byte(notesLog.String), &l.NotesLog)
	}
	if conversation.Valid && conversation.String != "" {
		json.Unmarshal([]byte(conversation.String), &l.Conversation)
	}
	if dueDate.Valid {
		t := time.Unix(dueDate.Int64, 0)
		l.DueDate = &t
	}
	l.CreatedAt = time.Unix(createdAt, 0)
	l.UpdatedAt = time.Unix(updatedAt, 0)

	return &l, nil
}

func collectLeads(rows *sql.Rows) ([]models.Lead, error) {
	var leads []models.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, *l)
	}
	return leads, rows.Err()
}

func marshalJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}
