package tool

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/gantry-oss/gantry/internal/errors"
	"github.com/gantry-oss/gantry/internal/event"
)

// Registry manages available tools and dispatches invocations. When a
// bus is attached, every dispatch emits tool.started and then either
// tool.completed or tool.error.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	bus   *event.Bus
}

// NewRegistry creates a new tool registry. The bus may be nil.
func NewRegistry(bus *event.Bus) *Registry {
	return &Registry{
		tools: make(map[string]Tool),
		bus:   bus,
	}
}

// Register adds a tool to the registry, replacing any previous tool
// with the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, errors.Newf(errors.CodeToolNotFound, "tool not found: %s", name).
			WithSuggestion("Available tools: " + strings.Join(r.namesLocked(), ", "))
	}
	return t, nil
}

// Has checks if a tool is registered
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Names returns registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns info for all registered tools, sorted by name.
func (r *Registry) List() []ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ToolInfo, 0, len(r.tools))
	for _, t := range r.tools {
		infos = append(infos, ToolInfo{Name: t.Name(), Description: t.Description()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Execute looks up and runs a tool, emitting lifecycle events around
// the invocation. sessionID scopes the events and may be empty.
func (r *Registry) Execute(ctx context.Context, sessionID, name string, args json.RawMessage) (string, error) {
	t, err := r.Get(name)
	if err != nil {
		return "", err
	}

	r.emit(ctx, event.ToolStarted, sessionID, map[string]interface{}{
		"tool": name,
	})

	result, err := t.Execute(ctx, args)
	if err != nil {
		r.emit(ctx, event.ToolError, sessionID, map[string]interface{}{
			"tool":  name,
			"error": err.Error(),
		})
		return "", err
	}

	r.emit(ctx, event.ToolCompleted, sessionID, map[string]interface{}{
		"tool":          name,
		"result_length": len(result),
	})
	return result, nil
}

func (r *Registry) emit(ctx context.Context, t event.EventType, sessionID string, data map[string]interface{}) {
	if r.bus == nil {
		return
	}
	ev := event.NewSessionEvent(t, sessionID, data)
	ev.Source = "tool-registry"
	_ = r.bus.Emit(ctx, ev)
}
