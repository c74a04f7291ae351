// Package session keeps per-user conversation state in memory.
//
// A session is keyed by channel and user id and holds only the user and
// assistant turns; the system turn is rebuilt for every completion
// request and never stored. Sessions live for the process lifetime.
package session

import (
	"sync"

	"github.com/assistant-api/assistant-api/pkg/llms"
)

// Manager manages conversation sessions across users and channels.
// All methods are safe for concurrent use.
type Manager struct {
	sessions map[string][]llms.Message
	mu       sync.RWMutex
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string][]llms.Message),
	}
}

// Key builds the session key for a channel and user.
func Key(channel, userID string) string {
	return channel + ":" + userID
}

// Append adds a turn to the session, creating the session on first use.
func (m *Manager) Append(channel, userID string, msg llms.Message) {
	key := Key(channel, userID)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[key] = append(m.sessions[key], msg)
}

// History returns a copy of the session's turns in order. A user with
// no session gets an empty slice.
func (m *Manager) History(channel, userID string) []llms.Message {
	key := Key(channel, userID)

	m.mu.RLock()
	defer m.mu.RUnlock()

	turns := m.sessions[key]
	out := make([]llms.Message, len(turns))
	copy(out, turns)
	return out
}

// Truncate drops the oldest turns so that at most 2*window remain.
// If the cut would leave the window opening mid-exchange on an
// assistant turn, that turn is dropped too, so the retained history
// always starts with a user turn and the most recent user turn stays.
func (m *Manager) Truncate(channel, userID string, window int) {
	if window < 1 {
		return
	}
	key := Key(channel, userID)

	m.mu.Lock()
	defer m.mu.Unlock()

	turns := m.sessions[key]
	keep := 2 * window
	if len(turns) <= keep {
		return
	}

	start := len(turns) - keep
	for start < len(turns) && turns[start].Role == llms.RoleAssistant {
		start++
	}
	m.sessions[key] = append([]llms.Message(nil), turns[start:]...)
}

// Clear removes a session entirely.
func (m *Manager) Clear(channel, userID string) {
	key := Key(channel, userID)

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
