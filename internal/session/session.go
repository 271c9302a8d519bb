// Package session tracks the live sessions the server is willing to host.
// Each session is an addressable conversation scope: turns, queued prompts,
// events, and delegated tasks all hang off a session id.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status reports whether a session is mid-turn.
type Status string

const (
	StatusIdle Status = "idle"
	StatusBusy Status = "busy"
)

// Session is one registered conversation scope.
type Session struct {
	ID           string    `json:"id"`
	Cwd          string    `json:"cwd"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// NewSession builds an idle session with a fresh id.
func NewSession(cwd string) *Session {
	now := time.Now()
	return &Session{
		ID:           fmt.Sprintf("session-%s", uuid.New().String()),
		Cwd:          cwd,
		Status:       StatusIdle,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// Clone returns a copy safe to hand outside the manager's lock.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
