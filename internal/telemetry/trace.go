package telemetry

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

type traceKey struct{}

// TraceContext carries correlation IDs through the execution pipeline.
type TraceContext struct {
	SessionID string `json:"session_id"`
	TraceID   string `json:"trace_id"`
	SpanID    string `json:"span_id"`
	ParentID  string `json:"parent_id,omitempty"`
	AgentType string `json:"agent_type,omitempty"`
	TaskID    string `json:"task_id,omitempty"`
}

// NewTraceContext creates a root trace context with a fresh TraceID and SpanID.
func NewTraceContext(sessionID string) *TraceContext {
	return &TraceContext{
		SessionID: sessionID,
		TraceID:   randomID(),
		SpanID:    randomID(),
	}
}

// ChildSpan creates a child trace context inheriting the TraceID and SessionID.
func (tc *TraceContext) ChildSpan() *TraceContext {
	return &TraceContext{
		SessionID: tc.SessionID,
		TraceID:   tc.TraceID,
		SpanID:    randomID(),
		ParentID:  tc.SpanID,
	}
}

// WithAgentType returns a copy with the AgentType set.
func (tc *TraceContext) WithAgentType(name string) *TraceContext {
	child := *tc
	child.AgentType = name
	return &child
}

// WithTask returns a copy with the TaskID set.
func (tc *TraceContext) WithTask(id string) *TraceContext {
	child := *tc
	child.TaskID = id
	return &child
}

// Fields returns key-value pairs suitable for structured logging.
func (tc *TraceContext) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"session_id": tc.SessionID,
		"trace_id":   tc.TraceID,
		"span_id":    tc.SpanID,
	}
	if tc.ParentID != "" {
		fields["parent_id"] = tc.ParentID
	}
	if tc.AgentType != "" {
		fields["agent"] = tc.AgentType
	}
	if tc.TaskID != "" {
		fields["task_id"] = tc.TaskID
	}
	return fields
}

// ContextWithTrace stores a TraceContext in the context.
func ContextWithTrace(ctx context.Context, tc *TraceContext) context.Context {
	return context.WithValue(ctx, traceKey{}, tc)
}

// TraceFromContext extracts a TraceContext from the context, or nil.
func TraceFromContext(ctx context.Context) *TraceContext {
	tc, _ := ctx.Value(traceKey{}).(*TraceContext)
	return tc
}

// WithTrace returns a logger enriched with trace fields from the context.
func (l *Logger) WithTrace(ctx context.Context) *Logger {
	tc := TraceFromContext(ctx)
	if tc == nil {
		return l
	}
	return l.WithFields(tc.Fields())
}

func randomID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
