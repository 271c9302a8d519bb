package event

import "context"

// Callback consumes published events. Two implementations exist: Func for
// plain handlers that never block, and CtxFunc for context-aware handlers
// that may perform I/O. Both register identically; the bus only treats them
// differently on EmitSync, which does not wait for CtxFunc callbacks.
type Callback interface {
	invoke(ctx context.Context, ev Event) error
	deferrable() bool
}

// Func adapts a plain function into a Callback. It runs inline on both
// Emit and EmitSync.
type Func func(Event)

func (f Func) invoke(_ context.Context, ev Event) error {
	f(ev)
	return nil
}

func (f Func) deferrable() bool { return false }

// CtxFunc adapts a context-aware function into a Callback. Emit waits for
// it; EmitSync invokes it in a background goroutine.
type CtxFunc func(context.Context, Event) error

func (f CtxFunc) invoke(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

func (f CtxFunc) deferrable() bool { return true }

// registration is the bus-internal record for one subscribed callback.
type registration struct {
	id        string
	callback  Callback
	types     map[EventType]struct{} // nil = all types
	sessionID string                 // "" = all sessions
	priority  Priority
	once      bool
	seq       uint64 // subscription order, tie-break within a priority
}

// matches reports whether ev should be delivered to this registration.
func (r *registration) matches(ev Event) bool {
	if r.sessionID != "" && r.sessionID != ev.SessionID {
		return false
	}
	return r.matchesType(ev.Type)
}

// matchesType ignores the session filter; used by HandlerCount.
func (r *registration) matchesType(t EventType) bool {
	if r.types == nil {
		return true
	}
	_, ok := r.types[t]
	return ok
}

// SubscribeOption configures a subscription.
type SubscribeOption func(*registration)

// WithPriority sets the dispatch priority (default PriorityNormal).
// Higher priorities are invoked first.
func WithPriority(p Priority) SubscribeOption {
	return func(r *registration) { r.priority = p }
}

// WithOnce removes the handler after its first delivery.
func WithOnce() SubscribeOption {
	return func(r *registration) { r.once = true }
}

// WithSession restricts delivery to events carrying the given session id.
func WithSession(sessionID string) SubscribeOption {
	return func(r *registration) { r.sessionID = sessionID }
}
