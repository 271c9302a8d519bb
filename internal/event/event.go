package event

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of lifecycle event.
type EventType string

const (
	// Agent turn lifecycle
	AgentStarted   EventType = "agent.started"
	AgentCompleted EventType = "agent.completed"
	AgentError     EventType = "agent.error"

	// Tool call lifecycle
	ToolStarted   EventType = "tool.started"
	ToolCompleted EventType = "tool.completed"
	ToolError     EventType = "tool.error"

	// Delegated task lifecycle
	TaskStarted   EventType = "task.started"
	TaskCompleted EventType = "task.completed"
	TaskError     EventType = "task.error"

	// Custom is the catch-all kind for application-defined events.
	Custom EventType = "custom"
)

// Types returns all defined event types.
func Types() []EventType {
	return []EventType{
		AgentStarted, AgentCompleted, AgentError,
		ToolStarted, ToolCompleted, ToolError,
		TaskStarted, TaskCompleted, TaskError,
		Custom,
	}
}

// Priority orders handler dispatch and queue/task scheduling. The numeric
// values are stable; external consumers persist and display them.
type Priority int

const (
	PriorityLow    Priority = 0
	PriorityNormal Priority = 1
	PriorityHigh   Priority = 2
	PriorityUrgent Priority = 3
)

// String returns the lowercase priority name.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return strconv.Itoa(int(p))
	}
}

// Valid reports whether p is one of the defined levels.
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityUrgent
}

// ParsePriority accepts a priority name ("low".."urgent") or its numeric
// value ("0".."3"). An empty string parses to PriorityNormal.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return PriorityNormal, nil
	case "low":
		return PriorityLow, nil
	case "normal":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	case "urgent":
		return PriorityUrgent, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		p := Priority(n)
		if p.Valid() {
			return p, nil
		}
	}
	return PriorityNormal, fmt.Errorf("invalid priority %q", s)
}

// Event carries data about a lifecycle occurrence.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Source    string                 `json:"source,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewEvent creates an event with a fresh id and the current timestamp.
func NewEvent(t EventType, data map[string]interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// NewSessionEvent creates an event attributed to a session.
func NewSessionEvent(t EventType, sessionID string, data map[string]interface{}) Event {
	ev := NewEvent(t, data)
	ev.SessionID = sessionID
	return ev
}
