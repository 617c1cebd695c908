package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/estatedesk/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		agency_name TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS revoked_tokens (
		token TEXT PRIMARY KEY,
		revoked_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS password_resets (
		token TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		expires_at INTEGER NOT NULL,
		used INTEGER DEFAULT 0,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS properties (
		property_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		category TEXT NOT NULL,
		transaction_type TEXT NOT NULL,
		status TEXT NOT NULL,
		tier TEXT NOT NULL,
		visibility TEXT NOT NULL,
		listing TEXT NOT NULL,
		deep_data TEXT,
		agent_notes TEXT,
		ai_training TEXT,
		amenities TEXT,
		seo TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_properties_user ON properties(user_id);
	CREATE INDEX IF NOT EXISTS idx_properties_status ON properties(status);

	CREATE TABLE IF NOT EXISTS leads (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		name TEXT NOT NULL,
		phone TEXT NOT NULL,
		email TEXT,
		financing_status TEXT NOT NULL,
		status TEXT NOT NULL,
		property_id TEXT,
		property_address TEXT,
		notes TEXT,
		agent_notes TEXT,
		notes_log TEXT,
		conversation TEXT,
		priority_score INTEGER DEFAULT 0,
		due_date INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_leads_user ON leads(user_id);
	CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(user_id, status);

	CREATE TABLE IF NOT EXISTS pipeline_stages (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		position INTEGER NOT NULL,
		UNIQUE(user_id, name)
	);
	CREATE INDEX IF NOT EXISTS idx_stages_user ON pipeline_stages(user_id);

	CREATE TABLE IF NOT EXISTS stage_rename_jobs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		old_name TEXT NOT NULL,
		new_name TEXT NOT NULL,
		total_leads INTEGER NOT NULL,
		migrated_leads INTEGER NOT NULL,
		state TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agent_settings (
		user_id TEXT PRIMARY KEY,
		agency_name TEXT,
		primary_color TEXT,
		logo_url TEXT,
		high_security_mode INTEGER DEFAULT 0,
		language TEXT,
		knowledge_base TEXT,
		updated_at INTEGER NOT NULL
	);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// VerifySchema probes the columns added in later releases so an old
// database file fails loudly at startup instead of on the first write.
func (c *Client) VerifySchema() error {
	probes := []string{
		`SELECT priority_score, due_date, financing_status FROM leads LIMIT 1`,
		`SELECT high_security_mode, knowledge_base FROM agent_settings LIMIT 1`,
	}
	for _, probe := range probes {
		if _, err := c.db.Exec(probe); err != nil {
			return fmt.Errorf("schema verification failed: %w", err)
		}
	}
	return nil
}

// knownColumns are columns added after the first public release. A failed
// statement mentioning one of them almost always means the database file
// predates the migration, which deserves a remediation hint rather than a
// generic failure message.
var knownColumns = []string{
	"priority_score",
	"high_security_mode",
	"knowledge_base",
	"due_date",
	"financing_status",
}

// IsSchemaMismatch reports whether err looks like a missing-column failure
// against a known column.
func IsSchemaMismatch(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if !strings.Contains(msg, "no such column") && !strings.Contains(msg, "has no column named") {
		return false
	}
	for _, col := range knownColumns {
		if strings.Contains(msg, col) {
			return true
		}
	}
	return false
}
