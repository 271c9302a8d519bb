package task

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gantry-oss/gantry/internal/event"
)

// Tool exposes the task manager through a text protocol. It is meant
// to be called by a model that only sees text, so every failure comes
// back as a string starting with "Error:" rather than a Go error.
type Tool struct {
	manager *Manager
}

// NewTool creates the task tool backed by the given manager.
func NewTool(manager *Manager) *Tool {
	return &Tool{manager: manager}
}

// Name returns the tool name
func (t *Tool) Name() string {
	return "task"
}

// Description returns the tool description
func (t *Tool) Description() string {
	return "Delegate work to a background agent task. Actions: create, status, list, cancel."
}

// Parameters returns the JSON schema for the tool parameters
func (t *Tool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"action": map[string]interface{}{
			"type":        "string",
			"description": "One of: create, status, list, cancel",
		},
		"description": map[string]interface{}{
			"type":        "string",
			"description": "create: what the task should do",
		},
		"agent_type": map[string]interface{}{
			"type":        "string",
			"description": "create: agent type to run the task",
		},
		"priority": map[string]interface{}{
			"type":        "string",
			"description": "create: low, normal, high, or urgent (default normal)",
		},
		"parent_session_id": map[string]interface{}{
			"type":        "string",
			"description": "create/list: session the task belongs to",
		},
		"task_id": map[string]interface{}{
			"type":        "string",
			"description": "status/cancel: the task id",
		},
		"state": map[string]interface{}{
			"type":        "string",
			"description": "list: filter by state (pending, running, completed, failed, cancelled)",
		},
	}
}

// toolArgs represents the arguments for the task tool
type toolArgs struct {
	Action          string `json:"action"`
	Description     string `json:"description,omitempty"`
	AgentType       string `json:"agent_type,omitempty"`
	Priority        string `json:"priority,omitempty"`
	ParentSessionID string `json:"parent_session_id,omitempty"`
	TaskID          string `json:"task_id,omitempty"`
	State           string `json:"state,omitempty"`
}

// Execute dispatches on action. The returned error is always nil;
// failures are in the text.
func (t *Tool) Execute(ctx context.Context, argsJSON json.RawMessage) (string, error) {
	var args toolArgs
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return fmt.Sprintf("Error: invalid arguments: %v", err), nil
	}

	switch args.Action {
	case "create":
		return t.create(ctx, args), nil
	case "status":
		return t.status(args), nil
	case "list":
		return t.list(args), nil
	case "cancel":
		return t.cancel(args), nil
	default:
		return fmt.Sprintf("Error: Unknown action %q (expected create, status, list, or cancel)", args.Action), nil
	}
}

func (t *Tool) create(ctx context.Context, args toolArgs) string {
	if args.Description == "" {
		return "Error: description is required for create"
	}
	if args.AgentType == "" {
		return "Error: agent_type is required for create"
	}

	var opts []CreateOption
	if args.Priority != "" {
		p, err := event.ParsePriority(args.Priority)
		if err != nil {
			return fmt.Sprintf("Error: unknown priority %q (expected low, normal, high, or urgent)", args.Priority)
		}
		opts = append(opts, WithPriority(p))
	}
	if args.ParentSessionID != "" {
		opts = append(opts, WithParentSession(args.ParentSessionID))
	}

	created, err := t.manager.Create(ctx, args.Description, args.AgentType, opts...)
	if err != nil {
		return "Error: " + err.Error()
	}

	return fmt.Sprintf("Task created.\nTask ID: %s\nAgent: %s\nState: %s",
		created.ID, created.AgentType, created.State)
}

func (t *Tool) status(args toolArgs) string {
	if args.TaskID == "" {
		return "Error: task_id is required for status"
	}

	got, err := t.manager.Get(args.TaskID)
	if err != nil {
		return fmt.Sprintf("Error: task %s not found", args.TaskID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Task ID: %s\n", got.ID)
	fmt.Fprintf(&b, "State: %s\n", got.State)
	fmt.Fprintf(&b, "Agent: %s\n", got.AgentType)
	fmt.Fprintf(&b, "Description: %s", got.Description)
	if got.Result != "" {
		fmt.Fprintf(&b, "\nResult: %s", got.Result)
	}
	if got.Error != "" {
		fmt.Fprintf(&b, "\nTask error: %s", got.Error)
	}
	return b.String()
}

func (t *Tool) list(args toolArgs) string {
	var f Filter
	if args.State != "" {
		st := State(strings.ToLower(args.State))
		if !st.Valid() {
			return fmt.Sprintf("Error: unknown state %q (expected pending, running, completed, failed, or cancelled)", args.State)
		}
		f.State = st
	}
	f.ParentSessionID = args.ParentSessionID

	tasks := t.manager.List(f)
	if len(tasks) == 0 {
		return "No tasks found."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tasks (%d):\n", len(tasks))
	for _, tk := range tasks {
		fmt.Fprintf(&b, "%s %s [%s] %s\n", stateIcon(tk.State), tk.ID, tk.State, tk.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (t *Tool) cancel(args toolArgs) string {
	if args.TaskID == "" {
		return "Error: task_id is required for cancel"
	}

	cancelled, err := t.manager.Cancel(args.TaskID)
	if err != nil {
		return fmt.Sprintf("Error: task %s not found", args.TaskID)
	}
	if cancelled.State != StateCancelled {
		return fmt.Sprintf("Task %s is already %s; nothing to cancel.", cancelled.ID, cancelled.State)
	}
	return fmt.Sprintf("Task %s cancelled.", cancelled.ID)
}

func stateIcon(s State) string {
	switch s {
	case StatePending:
		return "○"
	case StateRunning:
		return "◐"
	case StateCompleted:
		return "●"
	case StateFailed:
		return "✗"
	case StateCancelled:
		return "◌"
	default:
		return "?"
	}
}
