package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/gantry-oss/gantry/internal/event"
)

// Message is a prompt waiting in a session's backlog.
type Message struct {
	ID          string                 `json:"id"`
	SessionID   string                 `json:"session_id"`
	Prompt      string                 `json:"prompt"`
	Priority    event.Priority         `json:"priority"`
	Attachments []string               `json:"attachments,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// MessageOption configures a new message.
type MessageOption func(*Message)

// WithPriority sets the message priority (default PriorityNormal).
func WithPriority(p event.Priority) MessageOption {
	return func(m *Message) { m.Priority = p }
}

// WithAttachments attaches file paths to the message.
func WithAttachments(paths ...string) MessageOption {
	return func(m *Message) {
		if len(paths) > 0 {
			m.Attachments = append(m.Attachments, paths...)
		}
	}
}

// WithMetadata adds one metadata entry; call repeatedly for more.
func WithMetadata(key string, value interface{}) MessageOption {
	return func(m *Message) {
		if m.Metadata == nil {
			m.Metadata = make(map[string]interface{})
		}
		m.Metadata[key] = value
	}
}

// NewMessage creates a message with a fresh unique id.
func NewMessage(sessionID, prompt string, opts ...MessageOption) *Message {
	m := &Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Prompt:    prompt,
		Priority:  event.PriorityNormal,
		CreatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Clone returns a copy safe to hand out while the original stays queued.
func (m *Message) Clone() *Message {
	cp := *m
	if m.Attachments != nil {
		cp.Attachments = append([]string(nil), m.Attachments...)
	}
	if m.Metadata != nil {
		cp.Metadata = make(map[string]interface{}, len(m.Metadata))
		for k, v := range m.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
