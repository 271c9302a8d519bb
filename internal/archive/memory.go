package archive

import (
	"sync"

	"github.com/gantry-oss/gantry/internal/event"
)

// MemoryStore keeps the event trail in memory. It outlives Core.Reset
// but not the process.
type MemoryStore struct {
	mu     sync.RWMutex
	events []event.Event
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// SaveEvent appends the event to the trail.
func (s *MemoryStore) SaveEvent(ev event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// Events returns archived events newest-first.
func (s *MemoryStore) Events(f Filter) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]event.Event, 0)
	for i := len(s.events) - 1; i >= 0; i-- {
		ev := s.events[i]
		if f.Type != "" && ev.Type != f.Type {
			continue
		}
		if f.SessionID != "" && ev.SessionID != f.SessionID {
			continue
		}
		out = append(out, ev)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

// Close closes the store (no-op for memory)
func (s *MemoryStore) Close() error {
	return nil
}
