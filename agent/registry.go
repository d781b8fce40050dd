// Package agent implements the tool-orchestration loop: a registry of
// atomic, pure-where-possible tools driven by a language model through an
// iterate-call-dispatch cycle. It holds no package-level state; callers
// build a Registry and a Loop explicitly and wire them together.
package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/evalgo/jirasync/jiraerr"
)

// Result is what every tool returns: a JSON-marshalable value plus
// whatever the loop needs to build a tool-result message for the model.
type Result struct {
	Value interface{}
}

// Handler is the shared contract every tool implements. args is the
// decoded JSON object the model supplied for this call.
type Handler func(ctx context.Context, args map[string]interface{}) (Result, error)

// Schema is the JSON-schema description of one tool, handed to the model
// alongside its name so it knows how to call it.
type Schema struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
}

// tool bundles a handler with the schema describing it.
type tool struct {
	schema  Schema
	handler Handler
}

// Registry is an explicitly-constructed name-to-handler mapping. It is
// never reached through a package-level global: a caller builds exactly the registry it wants to
// hand to a Loop, which keeps test doubles and per-deployment tool subsets
// easy to construct side by side.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]tool
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]tool)}
}

// Register adds a tool under schema.Name. It returns an error rather than
// panicking so a caller assembling a registry from a list can decide how
// to handle a duplicate name.
func (r *Registry) Register(schema Schema, handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[schema.Name]; exists {
		return fmt.Errorf("agent: tool %q already registered", schema.Name)
	}
	r.tools[schema.Name] = tool{schema: schema, handler: handler}
	return nil
}

// MustRegister registers a tool and panics on a duplicate name. Used at
// startup when a duplicate indicates a programming error, not runtime data.
func (r *Registry) MustRegister(schema Schema, handler Handler) {
	if err := r.Register(schema, handler); err != nil {
		panic(err)
	}
}

// Invoke dispatches one tool call by name. The error is ErrToolNotFound
// wrapped when name is unknown; otherwise whatever the handler returned.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]interface{}) (Result, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", jiraerr.ErrToolNotFound, name)
	}
	return t.handler(ctx, args)
}

// Schemas returns every registered tool's schema, for handing to the model
// as its catalog. Order is not significant.
func (r *Registry) Schemas() []Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Schema, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.schema)
	}
	return out
}

// HasTool reports whether name is registered.
func (r *Registry) HasTool(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}
