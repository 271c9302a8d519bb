package event

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger records warn messages.
type testLogger struct {
	mu       sync.Mutex
	warnings []string
}

func (l *testLogger) Warn(msg string, keyvals ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, msg)
}

func (l *testLogger) Info(msg string, keyvals ...interface{})  {}
func (l *testLogger) Debug(msg string, keyvals ...interface{}) {}

func (l *testLogger) warningCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warnings)
}

// collector records delivered events.
type collector struct {
	mu      sync.Mutex
	handled []Event
}

func (c *collector) callback() Func {
	return func(ev Event) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.handled = append(c.handled, ev)
	}
}

func (c *collector) events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]Event, len(c.handled))
	copy(cp, c.handled)
	return cp
}

func TestBus_Emit_DeliversToSubscriber(t *testing.T) {
	bus := NewBus(nil)
	col := &collector{}
	bus.Subscribe([]EventType{TaskStarted}, col.callback())

	ev := NewEvent(TaskStarted, map[string]interface{}{"task_id": "a"})
	if err := bus.Emit(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	handled := col.events()
	if len(handled) != 1 {
		t.Fatalf("expected 1 handled event, got %d", len(handled))
	}
	if handled[0].Type != TaskStarted {
		t.Errorf("expected TaskStarted, got %s", handled[0].Type)
	}
	if handled[0].ID == "" {
		t.Error("expected event id to be set")
	}
}

func TestBus_Emit_PriorityOrder(t *testing.T) {
	bus := NewBus(nil)
	var mu sync.Mutex
	var order []string

	record := func(label string) Func {
		return func(ev Event) {
			mu.Lock()
			order = append(order, label)
			mu.Unlock()
		}
	}

	// Subscribe out of priority order on purpose.
	bus.Subscribe([]EventType{Custom}, record("normal"), WithPriority(PriorityNormal))
	bus.Subscribe([]EventType{Custom}, record("low"), WithPriority(PriorityLow))
	bus.Subscribe([]EventType{Custom}, record("urgent"), WithPriority(PriorityUrgent))
	bus.Subscribe([]EventType{Custom}, record("high"), WithPriority(PriorityHigh))

	bus.Emit(context.Background(), NewEvent(Custom, nil))

	mu.Lock()
	defer mu.Unlock()
	want := []string{"urgent", "high", "normal", "low"}
	if len(order) != len(want) {
		t.Fatalf("expected %d invocations, got %d", len(want), len(order))
	}
	for i, label := range want {
		if order[i] != label {
			t.Errorf("position %d: expected %s, got %s", i, label, order[i])
		}
	}
}

func TestBus_Emit_SubscriptionOrderWithinPriority(t *testing.T) {
	bus := NewBus(nil)
	var mu sync.Mutex
	var order []string

	for i := 0; i < 3; i++ {
		label := fmt.Sprintf("handler-%d", i)
		bus.Subscribe([]EventType{TaskStarted}, Func(func(ev Event) {
			mu.Lock()
			order = append(order, label)
			mu.Unlock()
		}))
	}

	bus.Emit(context.Background(), NewEvent(TaskStarted, nil))

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 {
		t.Fatalf("expected 3 invocations, got %d", len(order))
	}
	for i, label := range order {
		expected := fmt.Sprintf("handler-%d", i)
		if label != expected {
			t.Errorf("expected %s at position %d, got %s", expected, i, label)
		}
	}
}

func TestBus_Emit_RoutingByEventType(t *testing.T) {
	bus := NewBus(nil)
	taskCol := &collector{}
	agentCol := &collector{}
	bus.Subscribe([]EventType{TaskStarted, TaskCompleted}, taskCol.callback())
	bus.Subscribe([]EventType{AgentStarted}, agentCol.callback())

	bus.Emit(context.Background(), NewEvent(TaskStarted, nil))
	bus.Emit(context.Background(), NewEvent(AgentStarted, nil))
	bus.Emit(context.Background(), NewEvent(TaskCompleted, nil))

	if got := len(taskCol.events()); got != 2 {
		t.Errorf("expected task handler to receive 2 events, got %d", got)
	}
	if got := len(agentCol.events()); got != 1 {
		t.Errorf("expected agent handler to receive 1 event, got %d", got)
	}
}

func TestBus_Emit_MatchAllEvents(t *testing.T) {
	bus := NewBus(nil)
	col := &collector{}
	bus.Subscribe(nil, col.callback()) // nil types = match all

	bus.Emit(context.Background(), NewEvent(TaskStarted, nil))
	bus.Emit(context.Background(), NewEvent(AgentCompleted, nil))

	if got := len(col.events()); got != 2 {
		t.Errorf("expected 2 events, got %d", got)
	}
}

func TestBus_Emit_SessionFilter(t *testing.T) {
	bus := NewBus(nil)
	filtered := &collector{}
	unfiltered := &collector{}
	bus.Subscribe(nil, filtered.callback(), WithSession("session-a"))
	bus.Subscribe(nil, unfiltered.callback())

	bus.Emit(context.Background(), NewSessionEvent(AgentStarted, "session-a", nil))
	bus.Emit(context.Background(), NewSessionEvent(AgentStarted, "session-b", nil))
	bus.Emit(context.Background(), NewEvent(AgentStarted, nil)) // no session

	if got := len(filtered.events()); got != 1 {
		t.Errorf("expected session-filtered handler to receive 1 event, got %d", got)
	}
	if got := len(unfiltered.events()); got != 3 {
		t.Errorf("expected unfiltered handler to receive 3 events, got %d", got)
	}
}

func TestBus_On_RegistersForTypes(t *testing.T) {
	bus := NewBus(nil)
	col := &collector{}
	id := bus.On(col.callback(), TaskCompleted)
	if id == "" {
		t.Fatal("expected non-empty handler id")
	}

	bus.Emit(context.Background(), NewEvent(TaskCompleted, nil))
	bus.Emit(context.Background(), NewEvent(TaskStarted, nil))

	if got := len(col.events()); got != 1 {
		t.Errorf("expected 1 event via On registration, got %d", got)
	}
}

func TestBus_Once_FiresExactlyOnce(t *testing.T) {
	bus := NewBus(nil)
	onceCol := &collector{}
	alwaysCol := &collector{}
	bus.Subscribe([]EventType{Custom}, onceCol.callback(), WithOnce())
	bus.Subscribe([]EventType{Custom}, alwaysCol.callback())

	bus.Emit(context.Background(), NewEvent(Custom, nil))
	bus.Emit(context.Background(), NewEvent(Custom, nil))

	if got := len(onceCol.events()); got != 1 {
		t.Errorf("expected once-handler to fire exactly once, got %d", got)
	}
	if got := len(alwaysCol.events()); got != 2 {
		t.Errorf("expected regular handler to fire twice, got %d", got)
	}
	if bus.HandlerCount(Custom) != 1 {
		t.Errorf("expected once-handler removed, count %d", bus.HandlerCount(Custom))
	}
}

func TestBus_Once_ConcurrentEmits(t *testing.T) {
	bus := NewBus(nil)
	var count int64
	bus.Subscribe([]EventType{Custom}, Func(func(ev Event) {
		atomic.AddInt64(&count, 1)
	}), WithOnce())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Emit(context.Background(), NewEvent(Custom, nil))
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&count); got != 1 {
		t.Errorf("expected once-handler to fire exactly once under concurrency, got %d", got)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(nil)
	col := &collector{}
	id := bus.Subscribe([]EventType{TaskStarted}, col.callback())

	if !bus.Unsubscribe(id) {
		t.Fatal("expected unsubscribe to succeed")
	}
	if bus.Unsubscribe(id) {
		t.Error("expected duplicate unsubscribe to return false")
	}

	bus.Emit(context.Background(), NewEvent(TaskStarted, nil))
	if len(col.events()) != 0 {
		t.Error("unsubscribed handler should not be invoked")
	}
}

func TestBus_HandlerErrorContained(t *testing.T) {
	logger := &testLogger{}
	bus := NewBus(logger)
	after := &collector{}

	bus.Subscribe([]EventType{TaskStarted}, CtxFunc(func(ctx context.Context, ev Event) error {
		return fmt.Errorf("handler error")
	}), WithPriority(PriorityHigh))
	bus.Subscribe([]EventType{TaskStarted}, after.callback())

	err := bus.Emit(context.Background(), NewEvent(TaskStarted, nil))
	if err != nil {
		t.Fatalf("handler errors must not surface from Emit, got %v", err)
	}
	if len(after.events()) != 1 {
		t.Error("dispatch should continue past a failing handler")
	}
	if logger.warningCount() == 0 {
		t.Error("expected failing handler to be logged")
	}
}

func TestBus_HandlerPanicContained(t *testing.T) {
	logger := &testLogger{}
	bus := NewBus(logger)
	after := &collector{}

	bus.Subscribe([]EventType{Custom}, Func(func(ev Event) {
		panic("boom")
	}), WithOnce(), WithPriority(PriorityHigh))
	bus.Subscribe([]EventType{Custom}, after.callback())

	bus.Emit(context.Background(), NewEvent(Custom, nil))

	if len(after.events()) != 1 {
		t.Error("dispatch should continue past a panicking handler")
	}
	if logger.warningCount() == 0 {
		t.Error("expected panic to be logged")
	}
	// The once-handler is removed even though it panicked.
	if bus.HandlerCount(Custom) != 1 {
		t.Errorf("expected panicking once-handler removed, count %d", bus.HandlerCount(Custom))
	}
}

func TestBus_EmitSync_PlainInlineCtxDeferred(t *testing.T) {
	bus := NewBus(nil)
	var inline int64
	done := make(chan struct{})

	bus.Subscribe([]EventType{Custom}, Func(func(ev Event) {
		atomic.AddInt64(&inline, 1)
	}))
	bus.Subscribe([]EventType{Custom}, CtxFunc(func(ctx context.Context, ev Event) error {
		close(done)
		return nil
	}))

	bus.EmitSync(NewEvent(Custom, nil))

	// The plain callback ran before EmitSync returned.
	if atomic.LoadInt64(&inline) != 1 {
		t.Error("expected plain callback to run inline")
	}

	// The context-aware callback still runs, just unawaited.
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("context-aware callback was never invoked")
	}
}

func TestBus_History_NewestFirst(t *testing.T) {
	bus := NewBus(nil)

	for i := 0; i < 3; i++ {
		ev := NewEvent(Custom, map[string]interface{}{"n": i})
		bus.Emit(context.Background(), ev)
	}

	history := bus.History(HistoryFilter{})
	if len(history) != 3 {
		t.Fatalf("expected 3 events in history, got %d", len(history))
	}
	if history[0].Data["n"] != 2 {
		t.Errorf("expected newest event first, got %v", history[0].Data["n"])
	}
	if history[2].Data["n"] != 0 {
		t.Errorf("expected oldest event last, got %v", history[2].Data["n"])
	}
}

func TestBus_History_FiltersAndLimit(t *testing.T) {
	bus := NewBus(nil)

	bus.Emit(context.Background(), NewSessionEvent(AgentStarted, "session-a", nil))
	bus.Emit(context.Background(), NewSessionEvent(AgentCompleted, "session-a", nil))
	bus.Emit(context.Background(), NewSessionEvent(AgentStarted, "session-b", nil))
	bus.Emit(context.Background(), NewSessionEvent(AgentStarted, "session-a", nil))

	// Type and session filters combine.
	got := bus.History(HistoryFilter{Type: AgentStarted, SessionID: "session-a"})
	if len(got) != 2 {
		t.Fatalf("expected 2 filtered events, got %d", len(got))
	}
	for _, ev := range got {
		if ev.Type != AgentStarted || ev.SessionID != "session-a" {
			t.Errorf("filter returned wrong event: %s %s", ev.Type, ev.SessionID)
		}
	}

	// Limit applies after filtering, newest first.
	got = bus.History(HistoryFilter{SessionID: "session-a", Limit: 2})
	if len(got) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(got))
	}
	if got[0].Type != AgentStarted {
		t.Errorf("expected newest session-a event first, got %s", got[0].Type)
	}
}

func TestBus_History_Bounded(t *testing.T) {
	bus := NewBus(nil, WithHistorySize(5))

	for i := 0; i < 8; i++ {
		bus.Emit(context.Background(), NewEvent(Custom, map[string]interface{}{"n": i}))
	}

	history := bus.History(HistoryFilter{})
	if len(history) != 5 {
		t.Fatalf("expected history capped at 5, got %d", len(history))
	}
	if history[0].Data["n"] != 7 {
		t.Errorf("expected newest event retained, got %v", history[0].Data["n"])
	}
	if history[4].Data["n"] != 3 {
		t.Errorf("expected oldest retained event to be 3, got %v", history[4].Data["n"])
	}
}

func TestBus_History_RecordedWithoutHandlers(t *testing.T) {
	bus := NewBus(nil)
	bus.Emit(context.Background(), NewEvent(ToolStarted, nil))

	if got := len(bus.History(HistoryFilter{})); got != 1 {
		t.Errorf("expected history to record events with no handlers, got %d", got)
	}
}

func TestBus_ClearHistory(t *testing.T) {
	bus := NewBus(nil)
	bus.Emit(context.Background(), NewEvent(Custom, nil))
	bus.ClearHistory()

	if got := len(bus.History(HistoryFilter{})); got != 0 {
		t.Errorf("expected empty history, got %d", got)
	}
}

func TestBus_HandlerCount(t *testing.T) {
	bus := NewBus(nil)
	bus.Subscribe([]EventType{TaskStarted}, Func(func(Event) {}))
	bus.Subscribe([]EventType{TaskStarted, TaskCompleted}, Func(func(Event) {}))
	bus.Subscribe(nil, Func(func(Event) {})) // match-all

	if got := bus.HandlerCount(); got != 3 {
		t.Errorf("expected 3 total handlers, got %d", got)
	}
	if got := bus.HandlerCount(TaskStarted); got != 3 {
		t.Errorf("expected 3 handlers for TaskStarted, got %d", got)
	}
	if got := bus.HandlerCount(TaskCompleted); got != 2 {
		t.Errorf("expected 2 handlers for TaskCompleted, got %d", got)
	}
	if got := bus.HandlerCount(AgentError); got != 1 {
		t.Errorf("expected only the match-all handler for AgentError, got %d", got)
	}
}

func TestBus_Clear(t *testing.T) {
	bus := NewBus(nil)
	bus.Subscribe(nil, Func(func(Event) {}))
	bus.Subscribe(nil, Func(func(Event) {}))

	if removed := bus.Clear(); removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}
	if bus.HandlerCount() != 0 {
		t.Error("expected no handlers after Clear")
	}
}

func TestBus_ClearSession_OnlyFilteredHandlers(t *testing.T) {
	bus := NewBus(nil)
	sessionCol := &collector{}
	globalCol := &collector{}
	bus.Subscribe(nil, sessionCol.callback(), WithSession("session-a"))
	bus.Subscribe(nil, globalCol.callback())
	bus.Subscribe(nil, Func(func(Event) {}), WithSession("session-b"))

	if removed := bus.ClearSession("session-a"); removed != 1 {
		t.Errorf("expected 1 handler removed, got %d", removed)
	}
	if got := bus.HandlerCount(); got != 2 {
		t.Errorf("expected 2 handlers remaining, got %d", got)
	}

	bus.Emit(context.Background(), NewSessionEvent(Custom, "session-a", nil))
	if len(sessionCol.events()) != 0 {
		t.Error("cleared session handler should not be invoked")
	}
	if len(globalCol.events()) != 1 {
		t.Error("unfiltered handler should survive ClearSession")
	}
}

func TestBus_Stats(t *testing.T) {
	bus := NewBus(nil)
	bus.Subscribe(nil, Func(func(Event) {}), WithPriority(PriorityHigh))
	bus.Subscribe(nil, Func(func(Event) {}), WithPriority(PriorityHigh))
	bus.Subscribe(nil, Func(func(Event) {}))

	bus.Emit(context.Background(), NewEvent(Custom, nil))
	bus.Emit(context.Background(), NewEvent(Custom, nil))

	stats := bus.Stats()
	if stats.TotalHandlers != 3 {
		t.Errorf("expected 3 handlers, got %d", stats.TotalHandlers)
	}
	if stats.HandlersByPriority["high"] != 2 {
		t.Errorf("expected 2 high-priority handlers, got %d", stats.HandlersByPriority["high"])
	}
	if stats.HandlersByPriority["normal"] != 1 {
		t.Errorf("expected 1 normal-priority handler, got %d", stats.HandlersByPriority["normal"])
	}
	if stats.HistorySize != 2 {
		t.Errorf("expected history size 2, got %d", stats.HistorySize)
	}
	if stats.EventsEmitted != 2 {
		t.Errorf("expected 2 emitted, got %d", stats.EventsEmitted)
	}
}

func TestBus_Disabled(t *testing.T) {
	bus := NewBus(nil)
	col := &collector{}
	bus.Subscribe(nil, col.callback())

	bus.SetEnabled(false)
	bus.Emit(context.Background(), NewEvent(TaskStarted, nil))

	if len(col.events()) != 0 {
		t.Error("disabled bus should not dispatch events")
	}
	if len(bus.History(HistoryFilter{})) != 0 {
		t.Error("disabled bus should not record history")
	}
}

func TestBus_NilBusSafe(t *testing.T) {
	var bus *Bus

	// All operations should be no-ops, not panic.
	if id := bus.Subscribe(nil, Func(func(Event) {})); id != "" {
		t.Error("nil bus Subscribe should return empty id")
	}
	bus.SetEnabled(false)
	bus.EmitSync(NewEvent(TaskStarted, nil))
	if err := bus.Emit(context.Background(), NewEvent(TaskStarted, nil)); err != nil {
		t.Errorf("nil bus Emit should return nil error, got %v", err)
	}
	if bus.HandlerCount() != 0 || bus.Clear() != 0 {
		t.Error("nil bus counts should be zero")
	}
}

func TestBus_ConcurrentEmit(t *testing.T) {
	bus := NewBus(nil)
	var count int64
	bus.Subscribe(nil, Func(func(ev Event) {
		atomic.AddInt64(&count, 1)
	}))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Emit(context.Background(), NewEvent(TaskStarted, nil))
		}()
	}
	wg.Wait()

	if atomic.LoadInt64(&count) != 100 {
		t.Errorf("expected 100 handler invocations, got %d", count)
	}
	if got := bus.Stats().EventsEmitted; got != 100 {
		t.Errorf("expected 100 emitted, got %d", got)
	}
}

func TestBus_EmitCancelledContext(t *testing.T) {
	bus := NewBus(nil)
	col := &collector{}
	bus.Subscribe(nil, col.callback())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := bus.Emit(ctx, NewEvent(Custom, nil)); err == nil {
		t.Error("expected error from cancelled context")
	}
	if len(col.events()) != 0 {
		t.Error("no handler should run once the context is cancelled")
	}
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in      string
		want    Priority
		wantErr bool
	}{
		{"", PriorityNormal, false},
		{"low", PriorityLow, false},
		{"NORMAL", PriorityNormal, false},
		{"high", PriorityHigh, false},
		{"urgent", PriorityUrgent, false},
		{"2", PriorityHigh, false},
		{"0", PriorityLow, false},
		{"7", PriorityNormal, true},
		{"wat", PriorityNormal, true},
	}

	for _, tt := range tests {
		got, err := ParsePriority(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePriority(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParsePriority(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPriority_Ordering(t *testing.T) {
	if !(PriorityLow < PriorityNormal && PriorityNormal < PriorityHigh && PriorityHigh < PriorityUrgent) {
		t.Error("priority levels must be strictly ordered")
	}
	// Numeric values are stable for external consumers.
	if PriorityLow != 0 || PriorityNormal != 1 || PriorityHigh != 2 || PriorityUrgent != 3 {
		t.Error("priority numeric values changed")
	}
}

func TestHandlerCountByTypes(t *testing.T) {
	bus := NewBus(nil)
	bus.Subscribe([]EventType{TaskStarted}, Func(func(Event) {}))
	bus.Subscribe([]EventType{TaskCompleted}, Func(func(Event) {}))
	bus.Subscribe([]EventType{TaskStarted, TaskCompleted}, Func(func(Event) {}))
	bus.Subscribe(nil, Func(func(Event) {}))

	if got := bus.HandlerCount(); got != 4 {
		t.Errorf("total handlers = %d, want 4", got)
	}
	// One typed match plus the dual-type and match-all handlers.
	if got := bus.HandlerCount(TaskStarted); got != 3 {
		t.Errorf("task.started handlers = %d, want 3", got)
	}
	// The union counts each handler once, however many types it matches.
	if got := bus.HandlerCount(TaskStarted, TaskCompleted); got != 4 {
		t.Errorf("union handlers = %d, want 4", got)
	}
	if got := bus.HandlerCount(AgentError); got != 1 {
		t.Errorf("unmatched type handlers = %d, want 1 (match-all)", got)
	}
}

type emitCounter struct{ n int64 }

func (c *emitCounter) IncEventsEmitted() { atomic.AddInt64(&c.n, 1) }

func TestBusReportsEmissionsToCounter(t *testing.T) {
	counter := &emitCounter{}
	bus := NewBus(nil, WithEmitCounter(counter))

	bus.Emit(context.Background(), NewEvent(Custom, nil))
	bus.EmitSync(NewEvent(Custom, nil))
	if got := atomic.LoadInt64(&counter.n); got != 2 {
		t.Fatalf("counted emissions = %d, want 2", got)
	}

	// Disabled buses record nothing, so the counter stays put.
	bus.SetEnabled(false)
	bus.Emit(context.Background(), NewEvent(Custom, nil))
	if got := atomic.LoadInt64(&counter.n); got != 2 {
		t.Errorf("counted emissions after disable = %d, want 2", got)
	}
}
