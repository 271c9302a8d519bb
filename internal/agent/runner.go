package agent

import "context"

// TurnRequest carries everything a runner needs to execute one turn.
type TurnRequest struct {
	SessionID   string
	AgentType   string
	Prompt      string
	Attachments []string
	Model       string
	Metadata    map[string]string
}

// Runner executes a single turn and returns the agent's response. It
// is the seam between the session machinery and whatever actually
// produces responses.
type Runner interface {
	RunTurn(ctx context.Context, req TurnRequest) (string, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, req TurnRequest) (string, error)

// RunTurn calls f.
func (f RunnerFunc) RunTurn(ctx context.Context, req TurnRequest) (string, error) {
	return f(ctx, req)
}
