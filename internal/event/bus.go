package event

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultHistorySize bounds the in-memory event history unless overridden
// with WithHistorySize.
const DefaultHistorySize = 1000

// Bus dispatches events to subscribed callbacks.
//
// Dispatch rules:
//  1. Handlers run in priority order (urgent first), subscription order
//     within a priority.
//  2. Emit waits for every invoked handler; EmitSync waits only for plain
//     callbacks and runs context-aware ones in background goroutines.
//  3. Handler errors and panics are logged and contained; delivery to the
//     remaining handlers always continues.
//  4. Once-handlers are removed exactly once, before they are invoked, so
//     concurrent emits cannot fire them twice.
//  5. Every emitted event is recorded to a bounded history, newest evicting
//     oldest, whether or not any handler matched.
//  6. A nil Bus is safe to use — all methods are no-ops.
type Bus struct {
	mu       sync.Mutex
	handlers []*registration // subscription order
	byID     map[string]*registration
	history  *eventRing
	emitted  uint64
	nextSeq  uint64
	enabled  bool
	logger   Logger
	counter  EmitCounter
}

// Logger is a minimal logging interface so the bus doesn't depend on telemetry.
type Logger interface {
	Warn(msg string, keyvals ...interface{})
}

// EmitCounter receives one tick per recorded event. telemetry.Metrics
// satisfies it.
type EmitCounter interface {
	IncEventsEmitted()
}

// BusOption configures a Bus at construction.
type BusOption func(*Bus)

// WithHistorySize sets the history capacity (default DefaultHistorySize).
func WithHistorySize(n int) BusOption {
	return func(b *Bus) { b.history = newEventRing(n) }
}

// WithEmitCounter mirrors the bus's emission count into an external
// metrics collector.
func WithEmitCounter(c EmitCounter) BusOption {
	return func(b *Bus) { b.counter = c }
}

// NewBus creates an enabled event bus. Pass nil logger for silent operation.
func NewBus(logger Logger, opts ...BusOption) *Bus {
	b := &Bus{
		byID:    make(map[string]*registration),
		history: newEventRing(DefaultHistorySize),
		enabled: true,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers cb for the given event types (nil or empty = all
// types) and returns the handler id. Options set priority, once-delivery,
// and a session filter.
func (b *Bus) Subscribe(types []EventType, cb Callback, opts ...SubscribeOption) string {
	if b == nil || cb == nil {
		return ""
	}
	r := &registration{
		id:       uuid.NewString(),
		callback: cb,
		priority: PriorityNormal,
	}
	if len(types) > 0 {
		r.types = make(map[EventType]struct{}, len(types))
		for _, t := range types {
			r.types[t] = struct{}{}
		}
	}
	for _, opt := range opts {
		opt(r)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	r.seq = b.nextSeq
	b.nextSeq++
	b.handlers = append(b.handlers, r)
	b.byID[r.id] = r
	return r.id
}

// On registers cb for the given event types with default options. It is
// registration sugar, behaviorally identical to Subscribe.
func (b *Bus) On(cb Callback, types ...EventType) string {
	return b.Subscribe(types, cb)
}

// Unsubscribe removes a handler by id. Returns false if the id is unknown
// (including a second unsubscribe of the same id).
func (b *Bus) Unsubscribe(id string) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.removeLocked(id)
}

func (b *Bus) removeLocked(id string) bool {
	if _, ok := b.byID[id]; !ok {
		return false
	}
	delete(b.byID, id)
	for i, r := range b.handlers {
		if r.id == id {
			b.handlers = append(b.handlers[:i], b.handlers[i+1:]...)
			break
		}
	}
	return true
}

// SetEnabled controls whether the bus records and dispatches events.
func (b *Bus) SetEnabled(enabled bool) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = enabled
}

// collect records ev to history and returns matching registrations in
// dispatch order. Once-handlers are claimed (removed) here so concurrent
// emits cannot deliver to them twice. Handlers subscribed after this
// snapshot do not see ev.
func (b *Bus) collect(ev *Event) []*registration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.enabled {
		return nil
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	b.history.append(*ev)
	b.emitted++
	if b.counter != nil {
		b.counter.IncEventsEmitted()
	}

	var matched []*registration
	for _, r := range b.handlers {
		if r.matches(*ev) {
			matched = append(matched, r)
		}
	}
	// Higher priority first; subscription order within a priority.
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].priority != matched[j].priority {
			return matched[i].priority > matched[j].priority
		}
		return matched[i].seq < matched[j].seq
	})
	for _, r := range matched {
		if r.once {
			b.removeLocked(r.id)
		}
	}
	return matched
}

// Emit dispatches ev to all matching handlers and waits for each to finish.
// Returns early only when ctx is cancelled; handler failures never surface
// as an error.
func (b *Bus) Emit(ctx context.Context, ev Event) error {
	if b == nil {
		return nil
	}
	for _, r := range b.collect(&ev) {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.invoke(ctx, r, ev)
	}
	return nil
}

// EmitSync dispatches ev without suspending the caller: plain callbacks run
// inline, context-aware callbacks are invoked in goroutines that are not
// awaited. Intended for call sites that cannot block on handler I/O.
func (b *Bus) EmitSync(ev Event) {
	if b == nil {
		return
	}
	for _, r := range b.collect(&ev) {
		if r.callback.deferrable() {
			go b.invoke(context.Background(), r, ev)
		} else {
			b.invoke(context.Background(), r, ev)
		}
	}
}

// invoke runs one callback with panic and error containment.
func (b *Bus) invoke(ctx context.Context, r *registration, ev Event) {
	defer func() {
		if rec := recover(); rec != nil && b.logger != nil {
			b.logger.Warn("Event handler panicked",
				"handler", r.id,
				"event", string(ev.Type),
				"panic", rec,
			)
		}
	}()
	if err := r.callback.invoke(ctx, ev); err != nil && b.logger != nil {
		b.logger.Warn("Event handler failed",
			"handler", r.id,
			"event", string(ev.Type),
			"error", err,
		)
	}
}

// HistoryFilter selects events from the history. Zero fields mean no
// filter; Limit <= 0 returns all matches.
type HistoryFilter struct {
	Type      EventType
	SessionID string
	Limit     int
}

// History returns recorded events newest-first. Filters are AND-combined
// and the limit applies after filtering.
func (b *Bus) History(f HistoryFilter) []Event {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Event
	b.history.newestFirst(func(ev Event) bool {
		if f.Type != "" && ev.Type != f.Type {
			return true
		}
		if f.SessionID != "" && ev.SessionID != f.SessionID {
			return true
		}
		out = append(out, ev)
		return f.Limit <= 0 || len(out) < f.Limit
	})
	return out
}

// ClearHistory drops all recorded events.
func (b *Bus) ClearHistory() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history.clear()
}

// HandlerCount returns the number of registered handlers, or with type
// arguments the number that would receive at least one of those types
// (match-all handlers included).
func (b *Bus) HandlerCount(types ...EventType) int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(types) == 0 {
		return len(b.handlers)
	}
	n := 0
	for _, r := range b.handlers {
		for _, t := range types {
			if r.matchesType(t) {
				n++
				break
			}
		}
	}
	return n
}

// Clear removes all handlers and returns how many were removed. History is
// untouched.
func (b *Bus) Clear() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.handlers)
	b.handlers = nil
	b.byID = make(map[string]*registration)
	return n
}

// ClearSession removes only the handlers whose session filter equals
// sessionID and returns how many were removed. Handlers without a session
// filter are kept.
func (b *Bus) ClearSession(sessionID string) int {
	if b == nil || sessionID == "" {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	kept := b.handlers[:0]
	for _, r := range b.handlers {
		if r.sessionID == sessionID {
			delete(b.byID, r.id)
			n++
			continue
		}
		kept = append(kept, r)
	}
	b.handlers = kept
	return n
}

// Stats is a point-in-time summary of bus state.
type Stats struct {
	TotalHandlers      int            `json:"total_handlers"`
	HandlersByPriority map[string]int `json:"handlers_by_priority"`
	HistorySize        int            `json:"history_size"`
	EventsEmitted      uint64         `json:"events_emitted"`
}

// Stats reports handler and history counts.
func (b *Bus) Stats() Stats {
	if b == nil {
		return Stats{HandlersByPriority: map[string]int{}}
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	byPriority := make(map[string]int)
	for _, r := range b.handlers {
		byPriority[r.priority.String()]++
	}
	return Stats{
		TotalHandlers:      len(b.handlers),
		HandlersByPriority: byPriority,
		HistorySize:        b.history.len(),
		EventsEmitted:      b.emitted,
	}
}
