// Package testutil provides a wired runtime harness and mocks shared
// by integration tests.
package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/gantry-oss/gantry/internal/config"
	"github.com/gantry-oss/gantry/internal/core"
	"github.com/gantry-oss/gantry/internal/event"
	"github.com/gantry-oss/gantry/internal/telemetry"
)

// Harness wires a full runtime against the in-memory archive and
// records every event the bus delivers.
type Harness struct {
	T      *testing.T
	Core   *core.Core
	Logger *telemetry.Logger

	mu     sync.Mutex
	events []event.Event
}

// NewHarness creates a harness with the test configuration. The
// runtime is closed automatically when the test finishes.
func NewHarness(t *testing.T) *Harness {
	t.Helper()

	logger := TestLogger()
	c, err := core.New(TestConfig(t), logger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })

	h := &Harness{T: t, Core: c, Logger: logger}
	c.Bus.Subscribe(nil, event.Func(func(ev event.Event) {
		h.mu.Lock()
		h.events = append(h.events, ev)
		h.mu.Unlock()
	}))

	return h
}

// Events returns a snapshot of everything captured so far.
func (h *Harness) Events() []event.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]event.Event, len(h.events))
	copy(out, h.events)
	return out
}

// AssertEventEmitted checks that an event with the given type was captured.
func (h *Harness) AssertEventEmitted(eventType event.EventType) {
	h.T.Helper()
	for _, e := range h.Events() {
		if e.Type == eventType {
			return
		}
	}
	h.T.Errorf("expected event %q to be emitted", eventType)
}

// AssertNoEvent checks that an event type was NOT captured.
func (h *Harness) AssertNoEvent(eventType event.EventType) {
	h.T.Helper()
	for _, e := range h.Events() {
		if e.Type == eventType {
			h.T.Errorf("expected event %q NOT to be emitted, but it was", eventType)
			return
		}
	}
}

// EventCount returns the number of captured events with the given type.
func (h *Harness) EventCount(eventType event.EventType) int {
	count := 0
	for _, e := range h.Events() {
		if e.Type == eventType {
			count++
		}
	}
	return count
}

// WaitForEvent polls until an event of the given type is captured or
// the timeout elapses. Task lifecycle events arrive from worker
// goroutines, so tests rely on this instead of asserting immediately.
func (h *Harness) WaitForEvent(eventType event.EventType, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if h.EventCount(eventType) > 0 {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

// TestConfig returns a config for testing, rooted in a temp dir with
// the in-memory archive.
func TestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Name = "test-project"
	cfg.BaseDir = t.TempDir()
	cfg.Archive.Driver = "memory"
	cfg.Archive.Path = ""
	cfg.Logging.Level = "debug"
	return cfg
}
