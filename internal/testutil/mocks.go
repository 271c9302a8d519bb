package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gantry-oss/gantry/internal/agent"
	"github.com/gantry-oss/gantry/internal/telemetry"
)

// MockRunner implements agent.Runner for testing.
type MockRunner struct {
	mu         sync.Mutex
	Responses  []string // queued responses, consumed in order
	Calls      []agent.TurnRequest
	ShouldFail bool
	FailErr    error
	Delay      time.Duration
	idx        int
}

func (m *MockRunner) RunTurn(ctx context.Context, req agent.TurnRequest) (string, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)

	if m.ShouldFail {
		if m.FailErr != nil {
			return "", m.FailErr
		}
		return "", fmt.Errorf("mock runner error")
	}

	if m.idx >= len(m.Responses) {
		return "default mock response", nil
	}

	resp := m.Responses[m.idx]
	m.idx++
	return resp, nil
}

// CallCount returns the number of RunTurn calls made (thread-safe).
func (m *MockRunner) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockTool implements tool.Tool for testing.
type MockTool struct {
	Name_      string
	Desc       string
	Result     string
	ShouldFail bool
	mu         sync.Mutex
	Executions int
}

func (t *MockTool) Name() string        { return t.Name_ }
func (t *MockTool) Description() string { return t.Desc }

func (t *MockTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"input": map[string]interface{}{
			"type":        "string",
			"description": "test input",
		},
	}
}

func (t *MockTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	t.mu.Lock()
	t.Executions++
	t.mu.Unlock()

	if t.ShouldFail {
		return "", fmt.Errorf("mock tool error")
	}
	return t.Result, nil
}

// ExecutionCount returns the number of times Execute was called (thread-safe).
func (t *MockTool) ExecutionCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Executions
}

// TestLogger returns a logger suitable for tests (verbose, no file output).
func TestLogger() *telemetry.Logger {
	return telemetry.NewLogger(true)
}
