package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/estatedesk/backend/internal/storage/models"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrEmailTaken    = errors.New("email already registered")
	ErrResetNotFound = errors.New("reset token not found or expired")
)

func (c *Client) InsertUser(u *models.User) error {
	_, err := c.db.Exec(
		`INSERT INTO users (id, email, password_hash, agency_name, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.AgencyName, u.CreatedAt.Unix(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (c *Client) GetUserByEmail(email string) (*models.User, error) {
	return c.getUser(`SELECT id, email, password_hash, agency_name, created_at FROM users WHERE email = ?`, email)
}

func (c *Client) GetUserByID(id string) (*models.User, error) {
	return c.getUser(`SELECT id, email, password_hash, agency_name, created_at FROM users WHERE id = ?`, id)
}

func (c *Client) getUser(query, arg string) (*models.User, error) {
	var u models.User
	var agencyName sql.NullString
	var createdAt int64

	err := c.db.QueryRow(query, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &agencyName, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u.AgencyName = agencyName.String
	u.CreatedAt = time.Unix(createdAt, 0)
	return &u, nil
}

func (c *Client) RevokeToken(token string) error {
	_, err := c.db.Exec(
		`INSERT OR IGNORE INTO revoked_tokens (token, revoked_at) VALUES (?, ?)`,
		token, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (c *Client) IsTokenRevoked(token string) (bool, error) {
	var n int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM revoked_tokens WHERE token = ?`, token).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check token: %w", err)
	}
	return n > 0, nil
}

func (c *Client) InsertPasswordReset(token, userID string, expiresAt time.Time) error {
	_, err := c.db.Exec(
		`INSERT INTO password_resets (token, user_id, expires_at) VALUES (?, ?, ?)`,
		token, userID, expiresAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert password reset: %w", err)
	}
	return nil
}

// ConsumePasswordReset marks a reset token used and returns its user id.
// Expired or already-used tokens are rejected.
func (c *Client) ConsumePasswordReset(token string) (string, error) {
	var userID string
	var expiresAt int64
	var used int

	err := c.db.QueryRow(
		`SELECT user_id, expires_at, used FROM password_resets WHERE token = ?`, token,
	).Scan(&userID, &expiresAt, &used)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrResetNotFound
		}
		return "", fmt.Errorf("failed to look up reset token: %w", err)
	}

	if used != 0 || time.Now().Unix() > expiresAt {
		return "", ErrResetNotFound
	}

	_, err = c.db.Exec(`UPDATE password_resets SET used = 1 WHERE token = ?`, token)
	if err != nil {
		return "", fmt.Errorf("failed to consume reset token: %w", err)
	}
	return userID, nil
}

func (c *Client) UpdatePassword(userID, passwordHash string) error {
	result, err := c.db.Exec(`UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}
