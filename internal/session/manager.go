package session

import (
	"sort"
	"sync"
	"time"

	"github.com/gantry-oss/gantry/internal/errors"
	"github.com/gantry-oss/gantry/internal/telemetry"
)

// DefaultMaxSessions caps the registry when no limit is configured.
const DefaultMaxSessions = 10

// Manager is the capacity-limited session registry. All reads return
// copies so callers never share memory with the registry's own records.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	maxSessions int
	metrics     *telemetry.Metrics
}

// NewManager creates a registry holding at most maxSessions sessions.
// A non-positive limit falls back to DefaultMaxSessions.
func NewManager(maxSessions int, metrics *telemetry.Metrics) *Manager {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &Manager{
		sessions:    make(map[string]*Session),
		maxSessions: maxSessions,
		metrics:     metrics,
	}
}

// Create registers a new idle session rooted at cwd. It fails with
// CodeSessionLimit once the registry is full.
func (m *Manager) Create(cwd string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.maxSessions {
		return nil, errors.Newf(errors.CodeSessionLimit,
			"session limit reached (%d active)", len(m.sessions)).
			WithSuggestion("Delete an idle session or raise limits.max_sessions")
	}

	s := NewSession(cwd)
	m.sessions[s.ID] = s
	if m.metrics != nil {
		m.metrics.IncSessionsOpened()
	}
	return s.Clone(), nil
}

// Get returns a copy of the session, or CodeSessionNotFound.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, errors.Newf(errors.CodeSessionNotFound, "session %s not found", id)
	}
	return s.Clone(), nil
}

// Has reports whether the session exists.
func (m *Manager) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[id]
	return ok
}

// Delete removes the session, freeing a slot for Create.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return errors.Newf(errors.CodeSessionNotFound, "session %s not found", id)
	}
	delete(m.sessions, id)
	if m.metrics != nil {
		m.metrics.IncSessionsClosed()
	}
	return nil
}

// List returns copies of all sessions ordered by creation time, oldest
// first, with id as tiebreak so the order is stable.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Count returns the number of registered sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Capacity returns the configured session limit.
func (m *Manager) Capacity() int {
	return m.maxSessions
}

// SetStatus flips the session's busy flag and bumps its activity time.
func (m *Manager) SetStatus(id string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return errors.Newf(errors.CodeSessionNotFound, "session %s not found", id)
	}
	s.Status = status
	s.LastActiveAt = time.Now()
	return nil
}

// Touch bumps the session's activity time without changing status.
// Unknown ids are ignored so callers can touch optimistically.
func (m *Manager) Touch(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		s.LastActiveAt = time.Now()
	}
}
