// Package tool defines the capability interface agents invoke and the
// registry that dispatches invocations with lifecycle events.
package tool

import (
	"context"
	"encoding/json"
)

// Tool represents a capability an agent can invoke
type Tool interface {
	// Name returns the tool name
	Name() string

	// Description returns a description for the model
	Description() string

	// Parameters returns JSON schema properties for the tool arguments
	Parameters() map[string]interface{}

	// Execute runs the tool with the given arguments
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// ToolInfo provides basic tool information
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
