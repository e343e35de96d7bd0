package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Registry holds the tools available to a run, keyed by name.
// Registration compiles each tool's parameter schema so arguments can
// be validated before dispatch.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	schemas map[string]*jsonschema.Schema
	order   []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// Register adds a tool. Registering the same name twice is an error.
// A parameter schema that fails to compile disables validation for that
// tool instead of rejecting it; remote MCP servers ship loose schemas.
func (r *Registry) Register(t Tool) error {
	spec := t.Spec()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[spec.Name]; exists {
		return fmt.Errorf("tool already registered: %s", spec.Name)
	}

	if len(spec.Parameters) > 0 {
		schema, err := jsonschema.CompileString(spec.Name+".schema.json", string(spec.Parameters))
		if err != nil {
			slog.Warn("tool schema does not compile; argument validation disabled",
				"tool", spec.Name, "error", err)
		} else {
			r.schemas[spec.Name] = schema
		}
	}

	r.tools[spec.Name] = t
	r.order = append(r.order, spec.Name)
	return nil
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Specs lists every registered tool spec in registration order, which
// keeps the tool list presented to the model stable across steps.
func (r *Registry) Specs() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Spec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Spec())
	}
	return out
}

// Names lists registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Execute validates args against the tool's compiled schema and
// dispatches. Schema violations come back as error Results without
// invoking the tool. The caller is responsible for the missing-tool
// case; Execute on an unknown name is still safe.
func (r *Registry) Execute(ctx context.Context, tctx Context, name string, args json.RawMessage) Result {
	r.mu.RLock()
	t, ok := r.tools[name]
	schema := r.schemas[name]
	r.mu.RUnlock()
	if !ok {
		return Errorf("Tool %s not found.", name)
	}

	args = NormalizeArgs(args)
	if schema != nil {
		var decoded any
		if err := json.Unmarshal(args, &decoded); err != nil {
			decoded = map[string]any{}
		}
		if err := schema.Validate(decoded); err != nil {
			return Errorf("Invalid arguments for %s: %v", name, err)
		}
	}
	return t.Execute(ctx, tctx, args)
}
