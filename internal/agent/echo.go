package agent

import (
	"context"
	"fmt"
	"time"
)

// EchoRunner is the built-in development runner (provider "echo"). It
// acknowledges every prompt deterministically so the server and CLI
// stay usable without an external provider adapter.
type EchoRunner struct {
	// Delay simulates turn latency. Zero responds immediately.
	Delay time.Duration
}

// NewEchoRunner creates an echo runner with no artificial latency.
func NewEchoRunner() *EchoRunner {
	return &EchoRunner{}
}

// RunTurn echoes the prompt back, tagged with the agent type.
func (e *EchoRunner) RunTurn(ctx context.Context, req TurnRequest) (string, error) {
	if e.Delay > 0 {
		select {
		case <-time.After(e.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	agentType := req.AgentType
	if agentType == "" {
		agentType = GeneralPurpose
	}
	if len(req.Attachments) > 0 {
		return fmt.Sprintf("[%s] %s (attachments: %d)", agentType, req.Prompt, len(req.Attachments)), nil
	}
	return fmt.Sprintf("[%s] %s", agentType, req.Prompt), nil
}
