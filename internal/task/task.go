// Package task runs delegated sub-agent work under a concurrency cap.
// Tasks are admitted against an agent type registry, scheduled by
// priority, and tracked through a forward-only state machine.
package task

import (
	"time"

	"github.com/google/uuid"

	"github.com/gantry-oss/gantry/internal/event"
)

// State is a task's lifecycle state.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StatePending, StateRunning, StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// Task is one delegated unit of work. Instances returned by the
// manager are snapshots; mutating them has no effect on the manager.
type Task struct {
	ID              string         `json:"id"`
	Description     string         `json:"description"`
	AgentType       string         `json:"agent_type"`
	Priority        event.Priority `json:"priority"`
	ParentSessionID string         `json:"parent_session_id,omitempty"`
	State           State          `json:"state"`
	Result          string         `json:"result,omitempty"`
	Error           string         `json:"error,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`

	seq uint64 // creation order, ties broken for scheduling
}

func newTask(description, agentType string, seq uint64) *Task {
	return &Task{
		ID:          uuid.New().String(),
		Description: description,
		AgentType:   agentType,
		Priority:    event.PriorityNormal,
		State:       StatePending,
		CreatedAt:   time.Now(),
		seq:         seq,
	}
}

// Done reports whether the task reached a terminal state.
func (t *Task) Done() bool {
	return t.State.Terminal()
}

// snapshot returns a copy safe to hand outside the manager's lock.
func (t *Task) snapshot() Task {
	cp := *t
	if t.StartedAt != nil {
		at := *t.StartedAt
		cp.StartedAt = &at
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		cp.CompletedAt = &at
	}
	return cp
}
