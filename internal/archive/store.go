// Package archive persists the event trail published on the bus. Core
// components keep no durable state of their own; the archive is a bus
// consumer whose trail can be queried after sessions and tasks are
// gone.
package archive

import (
	"github.com/gantry-oss/gantry/internal/errors"
	"github.com/gantry-oss/gantry/internal/event"
)

// Store defines the interface for archive storage backends
type Store interface {
	SaveEvent(ev event.Event) error
	Events(f Filter) ([]event.Event, error)
	Close() error
}

// Filter narrows Events queries. Zero fields match everything; results
// are newest-first and Limit 0 means unlimited.
type Filter struct {
	Type      event.EventType
	SessionID string
	Limit     int
}

// NewStore selects a storage backend by driver name. The off driver
// returns a nil Store: events are not archived.
func NewStore(driver, path string) (Store, error) {
	switch driver {
	case "off":
		return nil, nil
	case "memory", "":
		return NewMemoryStore(), nil
	case "sqlite":
		store, err := NewSQLiteStore(path)
		if err != nil {
			return nil, errors.Wrap(errors.CodeArchiveError, "failed to open sqlite archive", err)
		}
		return store, nil
	default:
		return nil, errors.Newf(errors.CodeArchiveError, "unsupported archive driver: %s", driver)
	}
}
