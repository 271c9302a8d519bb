package telemetry

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects runtime counters for turns, tasks, sessions, and events.
type Metrics struct {
	mu sync.RWMutex

	// Counters
	TurnsStarted   int64
	TurnsCompleted int64
	TurnsFailed    int64
	TurnsQueued    int64
	TasksCreated   int64
	TasksCompleted int64
	TasksFailed    int64
	TasksCancelled int64
	EventsEmitted  int64
	SessionsOpened int64
	SessionsClosed int64

	// Gauges
	ActiveTurns  int64
	RunningTasks int64

	// Histograms (simplified)
	turnDurations []time.Duration
	taskDurations []time.Duration

	// Exporter (optional)
	exporter MetricsExporter
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		turnDurations: make([]time.Duration, 0, 1000),
		taskDurations: make([]time.Duration, 0, 1000),
	}
}

// IncTurnsStarted increments the turns started counter.
func (m *Metrics) IncTurnsStarted() {
	atomic.AddInt64(&m.TurnsStarted, 1)
	atomic.AddInt64(&m.ActiveTurns, 1)
}

// IncTurnsCompleted increments the turns completed counter.
func (m *Metrics) IncTurnsCompleted() {
	atomic.AddInt64(&m.TurnsCompleted, 1)
	atomic.AddInt64(&m.ActiveTurns, -1)
}

// IncTurnsFailed increments the turns failed counter.
func (m *Metrics) IncTurnsFailed() {
	atomic.AddInt64(&m.TurnsFailed, 1)
	atomic.AddInt64(&m.ActiveTurns, -1)
}

// IncTurnsQueued increments the queued-turn counter.
func (m *Metrics) IncTurnsQueued() {
	atomic.AddInt64(&m.TurnsQueued, 1)
}

// IncTasksCreated increments the tasks created counter.
func (m *Metrics) IncTasksCreated() {
	atomic.AddInt64(&m.TasksCreated, 1)
}

// IncTasksStarted increments the running-task gauge.
func (m *Metrics) IncTasksStarted() {
	atomic.AddInt64(&m.RunningTasks, 1)
}

// IncTasksCompleted increments the tasks completed counter.
func (m *Metrics) IncTasksCompleted() {
	atomic.AddInt64(&m.TasksCompleted, 1)
	atomic.AddInt64(&m.RunningTasks, -1)
}

// IncTasksFailed increments the tasks failed counter.
func (m *Metrics) IncTasksFailed() {
	atomic.AddInt64(&m.TasksFailed, 1)
	atomic.AddInt64(&m.RunningTasks, -1)
}

// IncTasksCancelled increments the tasks cancelled counter. The running
// gauge is adjusted by the caller only when the task held a slot.
func (m *Metrics) IncTasksCancelled(wasRunning bool) {
	atomic.AddInt64(&m.TasksCancelled, 1)
	if wasRunning {
		atomic.AddInt64(&m.RunningTasks, -1)
	}
}

// IncEventsEmitted increments the emitted events counter.
func (m *Metrics) IncEventsEmitted() {
	atomic.AddInt64(&m.EventsEmitted, 1)
}

// IncSessionsOpened increments the sessions opened counter.
func (m *Metrics) IncSessionsOpened() {
	atomic.AddInt64(&m.SessionsOpened, 1)
}

// IncSessionsClosed increments the sessions closed counter.
func (m *Metrics) IncSessionsClosed() {
	atomic.AddInt64(&m.SessionsClosed, 1)
}

// RecordTurnDuration records a turn duration.
func (m *Metrics) RecordTurnDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turnDurations = append(m.turnDurations, d)
}

// RecordTaskDuration records a delegated task duration.
func (m *Metrics) RecordTaskDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taskDurations = append(m.taskDurations, d)
}

// GetSummary returns a summary of collected metrics.
func (m *Metrics) GetSummary() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := map[string]interface{}{
		"turns_started":   atomic.LoadInt64(&m.TurnsStarted),
		"turns_completed": atomic.LoadInt64(&m.TurnsCompleted),
		"turns_failed":    atomic.LoadInt64(&m.TurnsFailed),
		"turns_queued":    atomic.LoadInt64(&m.TurnsQueued),
		"tasks_created":   atomic.LoadInt64(&m.TasksCreated),
		"tasks_completed": atomic.LoadInt64(&m.TasksCompleted),
		"tasks_failed":    atomic.LoadInt64(&m.TasksFailed),
		"tasks_cancelled": atomic.LoadInt64(&m.TasksCancelled),
		"events_emitted":  atomic.LoadInt64(&m.EventsEmitted),
		"sessions_opened": atomic.LoadInt64(&m.SessionsOpened),
		"sessions_closed": atomic.LoadInt64(&m.SessionsClosed),
		"active_turns":    atomic.LoadInt64(&m.ActiveTurns),
		"running_tasks":   atomic.LoadInt64(&m.RunningTasks),
	}

	// Add duration stats
	if len(m.turnDurations) > 0 {
		var total time.Duration
		for _, d := range m.turnDurations {
			total += d
		}
		summary["avg_turn_duration_ms"] = total.Milliseconds() / int64(len(m.turnDurations))
	}

	if len(m.taskDurations) > 0 {
		var total time.Duration
		for _, d := range m.taskDurations {
			total += d
		}
		summary["avg_task_duration_ms"] = total.Milliseconds() / int64(len(m.taskDurations))
	}

	return summary
}

// Reset resets all metrics.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	atomic.StoreInt64(&m.TurnsStarted, 0)
	atomic.StoreInt64(&m.TurnsCompleted, 0)
	atomic.StoreInt64(&m.TurnsFailed, 0)
	atomic.StoreInt64(&m.TurnsQueued, 0)
	atomic.StoreInt64(&m.TasksCreated, 0)
	atomic.StoreInt64(&m.TasksCompleted, 0)
	atomic.StoreInt64(&m.TasksFailed, 0)
	atomic.StoreInt64(&m.TasksCancelled, 0)
	atomic.StoreInt64(&m.EventsEmitted, 0)
	atomic.StoreInt64(&m.SessionsOpened, 0)
	atomic.StoreInt64(&m.SessionsClosed, 0)
	atomic.StoreInt64(&m.ActiveTurns, 0)
	atomic.StoreInt64(&m.RunningTasks, 0)

	m.turnDurations = m.turnDurations[:0]
	m.taskDurations = m.taskDurations[:0]
}

// SetExporter attaches a metrics exporter.
func (m *Metrics) SetExporter(e MetricsExporter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exporter = e
}

// Flush exports the current metrics snapshot with the given event label.
func (m *Metrics) Flush(event string, labels map[string]string) {
	m.mu.RLock()
	exporter := m.exporter
	m.mu.RUnlock()

	if exporter == nil {
		return
	}

	snapshot := MetricsSnapshot{
		Timestamp: time.Now(),
		Event:     event,
		Metrics:   m.GetSummary(),
		Labels:    labels,
	}
	// Best-effort export.
	_ = exporter.Export(snapshot)
}
