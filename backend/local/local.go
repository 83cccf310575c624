// Package local provides in-process tool handlers.
package local

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jonwraymond/codecall/backend"
	"github.com/jonwraymond/toolfoundation/model"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// HandlerFunc is the function signature for tool handlers.
// The context is canceled when the calling execution ends.
type HandlerFunc func(ctx context.Context, args map[string]any) (any, error)

// ToolDef defines a local tool with its handler.
type ToolDef struct {
	Name         string
	Title        string
	Description  string
	InputSchema  map[string]any
	OutputSchema map[string]any
	Annotations  *mcp.ToolAnnotations
	Tags         []string
	Handler      HandlerFunc
}

// Tool converts the definition into a descriptor under namespace.
// A missing input schema is reported as an empty object schema.
func (d ToolDef) Tool(namespace string) model.Tool {
	input := d.InputSchema
	if input == nil {
		input = map[string]any{"type": "object"}
	}
	var output any
	if d.OutputSchema != nil {
		output = d.OutputSchema
	}
	return model.Tool{
		Tool: mcp.Tool{
			Name:         d.Name,
			Title:        d.Title,
			Description:  d.Description,
			InputSchema:  input,
			OutputSchema: output,
			Annotations:  d.Annotations,
		},
		Namespace: namespace,
		Tags:      model.NormalizeTags(d.Tags),
	}
}

// Validate reports definitions that cannot be bound.
func (d ToolDef) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("local tool: name is required")
	}
	if d.Handler == nil {
		return fmt.Errorf("local tool %q: handler is required", d.Name)
	}
	return nil
}

// Backend implements the backend.Backend interface for local tool handlers.
type Backend struct {
	name     string
	handlers map[string]ToolDef
	mu       sync.RWMutex
}

// New creates a new local backend.
func New(name string) *Backend {
	return &Backend{
		name:     name,
		handlers: make(map[string]ToolDef),
	}
}

// Kind returns the backend kind.
func (b *Backend) Kind() string {
	return "local"
}

// Name returns the backend instance name.
func (b *Backend) Name() string {
	return b.name
}

// Register adds tool definitions, replacing any with the same name.
func (b *Backend) Register(defs ...ToolDef) error {
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return err
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, def := range defs {
		b.handlers[def.Name] = def
	}
	return nil
}

// Unregister removes a tool handler.
func (b *Backend) Unregister(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, name)
}

// Definitions returns the registered definitions sorted by name.
func (b *Backend) Definitions() []ToolDef {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]ToolDef, 0, len(b.handlers))
	for _, def := range b.handlers {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListTools returns tools available from this backend.
func (b *Backend) ListTools(_ context.Context) ([]model.Tool, error) {
	defs := b.Definitions()
	out := make([]model.Tool, 0, len(defs))
	for _, def := range defs {
		out = append(out, def.Tool(b.name))
	}
	return out, nil
}

// Execute invokes a tool handler.
func (b *Backend) Execute(ctx context.Context, tool string, args map[string]any) (any, error) {
	b.mu.RLock()
	def, ok := b.handlers[tool]
	b.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", backend.ErrToolNotFound, tool)
	}
	return def.Handler(ctx, args)
}
