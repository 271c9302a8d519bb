package task

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gantry-oss/gantry/internal/errors"
	"github.com/gantry-oss/gantry/internal/event"
	"github.com/gantry-oss/gantry/internal/telemetry"
)

// DefaultMaxConcurrent caps running tasks when no limit is configured.
const DefaultMaxConcurrent = 5

// Runner executes one delegated task and returns its result. The
// context is cancelled when the task is cancelled or the manager
// closes.
type Runner interface {
	RunTask(ctx context.Context, t Task) (string, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, t Task) (string, error)

// RunTask calls f.
func (f RunnerFunc) RunTask(ctx context.Context, t Task) (string, error) {
	return f(ctx, t)
}

// Registry validates agent types at admission. agent.Registry
// satisfies it.
type Registry interface {
	Has(agentType string) bool
	Names() []string
}

// Stats summarizes the task table.
type Stats struct {
	TotalTasks    int           `json:"total_tasks"`
	ByState       map[State]int `json:"by_state"`
	Running       int           `json:"running"`
	MaxConcurrent int           `json:"max_concurrent"`
}

// Filter selects tasks for List. Zero fields mean no filter.
type Filter struct {
	State           State
	ParentSessionID string
}

// Manager owns the task table and the slot scheduler. At most
// maxConcurrent tasks run at once; pending tasks start when a slot
// frees, picked by priority descending then creation ascending — the
// same ordering rule the message queues use.
type Manager struct {
	registry Registry
	runner   Runner
	bus      *event.Bus
	logger   *telemetry.Logger
	metrics  *telemetry.Metrics

	maxConcurrent int

	mu      sync.Mutex
	tasks   map[string]*Task
	order   []string // creation order
	running map[string]context.CancelFunc
	nextSeq uint64
	waiters []chan struct{}
	wg      sync.WaitGroup
	closed  bool
}

// Option configures a Manager at construction.
type Option func(*Manager)

// WithMaxConcurrent sets the running-task cap (default
// DefaultMaxConcurrent).
func WithMaxConcurrent(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxConcurrent = n
		}
	}
}

// WithMetrics attaches a shared metrics collector.
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(m *Manager) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

// New creates a task manager. A nil registry admits every agent type;
// a nil bus disables events.
func New(registry Registry, runner Runner, bus *event.Bus, logger *telemetry.Logger, opts ...Option) *Manager {
	m := &Manager{
		registry:      registry,
		runner:        runner,
		bus:           bus,
		logger:        logger,
		metrics:       telemetry.NewMetrics(),
		maxConcurrent: DefaultMaxConcurrent,
		tasks:         make(map[string]*Task),
		running:       make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type createOptions struct {
	priority        event.Priority
	parentSessionID string
	autoStart       bool
}

// CreateOption configures one Create call.
type CreateOption func(*createOptions)

// WithPriority sets the scheduling priority (default normal).
func WithPriority(p event.Priority) CreateOption {
	return func(o *createOptions) { o.priority = p }
}

// WithParentSession records the session the task was delegated from.
func WithParentSession(sessionID string) CreateOption {
	return func(o *createOptions) { o.parentSessionID = sessionID }
}

// WithoutAutoStart leaves the task pending even when a slot is free;
// it starts at the next scheduling point like any other pending task.
func WithoutAutoStart() CreateOption {
	return func(o *createOptions) { o.autoStart = false }
}

// Create admits a new task. An unknown agent type fails with
// CodeAgentNotFound before any task exists. The returned Task is a
// snapshot; it may already be running.
func (m *Manager) Create(ctx context.Context, description, agentType string, opts ...CreateOption) (Task, error) {
	if m.registry != nil && !m.registry.Has(agentType) {
		return Task{}, errors.Newf(errors.CodeAgentNotFound, "agent type %q not found", agentType).
			WithSuggestion("Available agent types: " + strings.Join(m.registry.Names(), ", "))
	}

	options := createOptions{priority: event.PriorityNormal, autoStart: true}
	for _, opt := range opts {
		opt(&options)
	}

	var events []event.Event
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Task{}, errors.New(errors.CodeServerError, "task manager is closed")
	}
	m.nextSeq++
	t := newTask(description, agentType, m.nextSeq)
	t.Priority = options.priority
	t.ParentSessionID = options.parentSessionID
	m.tasks[t.ID] = t
	m.order = append(m.order, t.ID)
	m.metrics.IncTasksCreated()

	if options.autoStart && len(m.running) < m.maxConcurrent {
		events = append(events, m.startLocked(t))
	}
	snap := t.snapshot()
	m.mu.Unlock()

	m.logger.Debug("Task created",
		"task_id", snap.ID,
		"agent_type", agentType,
		"priority", snap.Priority.String(),
		"state", string(snap.State),
	)
	m.emitAll(events)
	return snap, nil
}

// startLocked transitions a pending task to running and launches its
// executor goroutine. Callers hold the lock and emit the returned
// event after releasing it.
func (m *Manager) startLocked(t *Task) event.Event {
	now := time.Now()
	t.State = StateRunning
	t.StartedAt = &now

	taskCtx, cancel := context.WithCancel(context.Background())
	tc := telemetry.NewTraceContext(t.ParentSessionID).
		WithAgentType(t.AgentType).
		WithTask(t.ID)
	taskCtx = telemetry.ContextWithTrace(taskCtx, tc)
	m.running[t.ID] = cancel
	m.metrics.IncTasksStarted()

	snap := t.snapshot()
	m.wg.Add(1)
	go m.execute(taskCtx, snap)

	return m.taskEvent(event.TaskStarted, snap, nil)
}

// execute runs the task outside the lock and reports the outcome. A
// panicking runner fails the task instead of crashing the scheduler.
func (m *Manager) execute(ctx context.Context, snap Task) {
	defer m.wg.Done()

	var result string
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task runner panicked: %v", r)
			}
		}()
		result, err = m.runner.RunTask(ctx, snap)
	}()

	m.finish(ctx, snap.ID, result, err)
}

// finish lands the runner's outcome. A completion that lost the race
// with Cancel is dropped; either way the freed slot is refilled.
func (m *Manager) finish(ctx context.Context, id, result string, runErr error) {
	log := m.logger.WithTrace(ctx)
	var events []event.Event
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.running, id)

	if t.State == StateRunning {
		now := time.Now()
		t.CompletedAt = &now
		if runErr != nil {
			t.State = StateFailed
			t.Error = runErr.Error()
			m.metrics.IncTasksFailed()
			events = append(events, m.taskEvent(event.TaskError, t.snapshot(), map[string]interface{}{
				"error": runErr.Error(),
			}))
			log.Warn("Task failed", "error", runErr)
		} else {
			t.State = StateCompleted
			t.Result = result
			m.metrics.IncTasksCompleted()
			if t.StartedAt != nil {
				m.metrics.RecordTaskDuration(now.Sub(*t.StartedAt))
			}
			events = append(events, m.taskEvent(event.TaskCompleted, t.snapshot(), map[string]interface{}{
				"result": result,
			}))
			log.Debug("Task completed")
		}
	}

	events = append(events, m.startNextLocked()...)
	m.notifyWaitersLocked()
	m.mu.Unlock()

	m.emitAll(events)
}

// startNextLocked fills free slots from the pending set, priority
// descending then creation ascending.
func (m *Manager) startNextLocked() []event.Event {
	var events []event.Event
	for len(m.running) < m.maxConcurrent {
		next := m.nextPendingLocked()
		if next == nil {
			break
		}
		events = append(events, m.startLocked(next))
	}
	return events
}

func (m *Manager) nextPendingLocked() *Task {
	var best *Task
	for _, id := range m.order {
		t := m.tasks[id]
		if t.State != StatePending {
			continue
		}
		if best == nil || t.Priority > best.Priority ||
			(t.Priority == best.Priority && t.seq < best.seq) {
			best = t
		}
	}
	return best
}

// Get returns a snapshot of the task, or CodeTaskNotFound.
func (m *Manager) Get(id string) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return Task{}, errors.Newf(errors.CodeTaskNotFound, "task %s not found", id)
	}
	return t.snapshot(), nil
}

// List returns snapshots in creation order, filtered by state and
// parent session when set.
func (m *Manager) List(f Filter) []Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Task, 0, len(m.order))
	for _, id := range m.order {
		t := m.tasks[id]
		if f.State != "" && t.State != f.State {
			continue
		}
		if f.ParentSessionID != "" && t.ParentSessionID != f.ParentSessionID {
			continue
		}
		out = append(out, t.snapshot())
	}
	return out
}

// Cancel stops a pending or running task. Cancelling an already
// terminal task is a no-op that returns the task; unknown ids fail
// with CodeTaskNotFound. Side effects of a running task are not
// rolled back.
func (m *Manager) Cancel(id string) (Task, error) {
	var events []event.Event
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return Task{}, errors.Newf(errors.CodeTaskNotFound, "task %s not found", id)
	}
	if t.State.Terminal() {
		snap := t.snapshot()
		m.mu.Unlock()
		return snap, nil
	}

	wasRunning := t.State == StateRunning
	if cancel, held := m.running[id]; held {
		cancel()
		delete(m.running, id)
	}

	now := time.Now()
	t.State = StateCancelled
	t.CompletedAt = &now
	m.metrics.IncTasksCancelled(wasRunning)
	events = append(events, m.taskEvent(event.TaskError, t.snapshot(), map[string]interface{}{
		"cancelled": true,
	}))

	if wasRunning {
		events = append(events, m.startNextLocked()...)
	}
	m.notifyWaitersLocked()
	snap := t.snapshot()
	m.mu.Unlock()

	m.logger.Info("Task cancelled", "task_id", id, "was_running", wasRunning)
	m.emitAll(events)
	return snap, nil
}

// Stats summarizes the task table.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Stats{
		TotalTasks:    len(m.tasks),
		ByState:       make(map[State]int),
		Running:       len(m.running),
		MaxConcurrent: m.maxConcurrent,
	}
	for _, t := range m.tasks {
		st.ByState[t.State]++
	}
	return st
}

// PendingCount returns the number of pending tasks.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, t := range m.tasks {
		if t.State == StatePending {
			n++
		}
	}
	return n
}

// RunningCount returns the number of running tasks.
func (m *Manager) RunningCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.running)
}

// Wait blocks until no task is pending or running, or the context is
// done. Tasks created while waiting extend the wait.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	if m.idleLocked() {
		m.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	m.waiters = append(m.waiters, ch)
	m.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels every non-terminal task and waits for the executor
// goroutines to drain. The manager rejects Create afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	var ids []string
	for _, id := range m.order {
		if !m.tasks[id].State.Terminal() {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()

	for _, id := range ids {
		if _, err := m.Cancel(id); err != nil {
			m.logger.Warn("Cancel during close failed", "task_id", id, "error", err)
		}
	}
	m.wg.Wait()
}

func (m *Manager) idleLocked() bool {
	if len(m.running) > 0 {
		return false
	}
	for _, t := range m.tasks {
		if t.State == StatePending {
			return false
		}
	}
	return true
}

func (m *Manager) notifyWaitersLocked() {
	if len(m.waiters) == 0 || !m.idleLocked() {
		return
	}
	for _, ch := range m.waiters {
		close(ch)
	}
	m.waiters = nil
}

func (m *Manager) taskEvent(t event.EventType, snap Task, data map[string]interface{}) event.Event {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["task_id"] = snap.ID
	data["agent_type"] = snap.AgentType
	data["description"] = snap.Description
	ev := event.NewSessionEvent(t, snap.ParentSessionID, data)
	ev.Source = "task-manager"
	return ev
}

func (m *Manager) emitAll(events []event.Event) {
	if m.bus == nil {
		return
	}
	for _, ev := range events {
		_ = m.bus.Emit(context.Background(), ev)
	}
}
