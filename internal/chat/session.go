package chat

import (
	"sync"

	"github.com/google/uuid"

	"github.com/estatedesk/backend/internal/llm"
)

// SessionState is the gating state of one visitor session. A session
// moves OPEN -> GATED when the gate condition fires and returns to OPEN
// only through a submitted contact form.
type SessionState string

const (
	StateOpen  SessionState = "OPEN"
	StateGated SessionState = "GATED"
)

// Session is the transcript and gate bookkeeping for one visitor and one
// selected property. Sessions are transient: they live in process memory
// for the duration of a browser session and are never persisted as their
// own entity.
type Session struct {
	ID            string
	UserID        string
	PropertyID    string
	State         SessionState
	SpecificCount int
	Turns         []llm.Turn
}

// Manager owns the in-memory session table. The lock covers the table
// only; session fields assume a single writer, which holds because each
// visitor drives their own session from one widget connection.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Start creates a session bound to one property and returns it.
func (m *Manager) Start(userID, propertyID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &Session{
		ID:         uuid.NewString(),
		UserID:     userID,
		PropertyID: propertyID,
		State:      StateOpen,
	}
	m.sessions[s.ID] = s
	return s
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	return s, ok
}

// End drops a session. Called when the visitor navigates away.
func (m *Manager) End(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sessionID)
}
