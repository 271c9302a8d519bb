// Package agent holds the agent type registry and the turn loop that
// drives prompts through a runner while honoring per-session queueing.
package agent

import (
	"sort"
	"strings"
	"sync"

	"github.com/gantry-oss/gantry/internal/config"
	"github.com/gantry-oss/gantry/internal/errors"
)

// GeneralPurpose is the built-in agent type always present in a registry.
const GeneralPurpose = "general-purpose"

func builtinGeneralPurpose() *config.AgentConfig {
	return &config.AgentConfig{
		Name:        GeneralPurpose,
		Description: "General-purpose agent for research and multi-step work",
	}
}

// Registry holds the known agent type definitions. Task creation
// validates agent types against it before any work is admitted.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*config.AgentConfig
}

// NewRegistry builds a registry from loaded definitions plus the
// built-in general-purpose type. A loaded definition with the same
// name overrides the built-in.
func NewRegistry(defs []*config.AgentConfig) *Registry {
	r := &Registry{defs: make(map[string]*config.AgentConfig, len(defs)+1)}
	r.defs[GeneralPurpose] = builtinGeneralPurpose()
	for _, def := range defs {
		if def == nil || def.Name == "" {
			continue
		}
		cp := *def
		r.defs[def.Name] = &cp
	}
	return r
}

// Register adds or replaces a definition.
func (r *Registry) Register(def *config.AgentConfig) error {
	if def == nil || def.Name == "" {
		return errors.New(errors.CodeConfigInvalid, "agent definition requires a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *def
	r.defs[def.Name] = &cp
	return nil
}

// Has reports whether the agent type is known.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.defs[name]
	return ok
}

// Get returns the definition for name, or CodeAgentNotFound listing
// the available types.
func (r *Registry) Get(name string) (*config.AgentConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[name]
	if !ok {
		return nil, errors.Newf(errors.CodeAgentNotFound, "agent type %q not found", name).
			WithSuggestion("Available agent types: " + strings.Join(r.namesLocked(), ", "))
	}
	cp := *def
	return &cp, nil
}

// Names returns the known agent type names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns copies of all definitions sorted by name.
func (r *Registry) List() []*config.AgentConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*config.AgentConfig, 0, len(r.defs))
	for _, def := range r.defs {
		cp := *def
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
