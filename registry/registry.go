// Package registry maps dotted tool paths (namespace.method) to handlers.
//
// Tools come from local definitions, remote protocol connections, or any
// backend.Backend. The registry is the single place to ask which tools exist
// and to call one of them; it does not validate arguments against schemas
// and never retries.
package registry

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jonwraymond/codecall/backend"
	"github.com/jonwraymond/codecall/backend/local"
	"github.com/jonwraymond/codecall/backend/remote"
	"github.com/jonwraymond/tooldiscovery/index"
	"github.com/jonwraymond/tooldiscovery/tooldoc"
	"github.com/jonwraymond/toolfoundation/model"
)

const tracerName = "github.com/jonwraymond/codecall/registry"

// Logger is the logging contract used by the registry.
// *slog.Logger satisfies it.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Connection is the part of a remote session the registry needs.
// *remote.Connection satisfies it.
type Connection interface {
	Tools() []model.Tool
	Invoke(ctx context.Context, name string, args map[string]any) remote.CallResult
}

// Binding ties a dotted path to a handler and its descriptor.
// The descriptor keeps the tool's original name.
type Binding struct {
	Path    string
	Tool    model.Tool
	Kind    string
	Handler local.HandlerFunc
}

// Registry is a concurrency-safe path → binding map.
// The last registration for a path wins.
type Registry struct {
	mu       sync.RWMutex
	bindings map[string]Binding

	// search state, rebuilt lazily after registrations
	docsMu sync.Mutex
	dirty  bool
	idx    index.Index
	docs   tooldoc.Store

	logger Logger
	tracer trace.Tracer
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		bindings: make(map[string]Binding),
		dirty:    true,
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var separatorRE = regexp.MustCompile(`[-_]([a-z])`)

var upper = cases.Upper(language.Und)

// CamelCase converts kebab- or snake-cased names to camelCase.
// A separator is dropped only when followed by a lowercase ASCII letter.
func CamelCase(name string) string {
	return separatorRE.ReplaceAllStringFunc(name, func(m string) string {
		return upper.String(m[1:])
	})
}

// JoinPath builds a dotted tool path.
func JoinPath(namespace, name string) string {
	return namespace + "." + name
}

// SplitPath splits a dotted path at its first dot.
func SplitPath(path string) (namespace, name string, ok bool) {
	return strings.Cut(path, ".")
}

// RegisterLocal binds namespace.name for every definition.
// Definitions are validated before any binding changes.
func (r *Registry) RegisterLocal(namespace string, defs ...local.ToolDef) error {
	if namespace == "" {
		return fmt.Errorf("registry: namespace is required")
	}
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return err
		}
	}

	bindings := make([]Binding, 0, len(defs))
	for _, def := range defs {
		bindings = append(bindings, Binding{
			Path:    JoinPath(namespace, def.Name),
			Tool:    def.Tool(namespace),
			Kind:    "local",
			Handler: def.Handler,
		})
	}
	r.bind(bindings)
	return nil
}

// RegisterRemote binds every tool of conn under namespace. Path segments are
// camelCased; calls forward the original name. A failed remote call returns
// an error wrapping backend.ErrToolCallFailed with the remote error text.
func (r *Registry) RegisterRemote(namespace string, conn Connection) error {
	if namespace == "" {
		return fmt.Errorf("registry: namespace is required")
	}

	tools := conn.Tools()
	bindings := make([]Binding, 0, len(tools))
	for _, tool := range tools {
		original := tool.Name
		tool.Namespace = namespace
		bindings = append(bindings, Binding{
			Path: JoinPath(namespace, CamelCase(original)),
			Tool: tool,
			Kind: "mcp",
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				res := conn.Invoke(ctx, original, args)
				if !res.Success {
					msg := res.Error
					if msg == "" {
						msg = "remote tool reported failure"
					}
					return nil, fmt.Errorf("%w: %s", backend.ErrToolCallFailed, msg)
				}
				return res.Payload, nil
			},
		})
	}
	r.bind(bindings)
	return nil
}

// RegisterBackend binds every tool of b under b.Name(), camelCasing path
// segments the same way RegisterRemote does.
func (r *Registry) RegisterBackend(ctx context.Context, b backend.Backend) error {
	namespace := b.Name()
	if namespace == "" {
		return fmt.Errorf("registry: backend of kind %q has no name", b.Kind())
	}

	tools, err := b.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("registry: listing tools of %s: %w", namespace, err)
	}

	bindings := make([]Binding, 0, len(tools))
	for _, tool := range tools {
		original := tool.Name
		tool.Namespace = namespace
		bindings = append(bindings, Binding{
			Path: JoinPath(namespace, CamelCase(original)),
			Tool: tool,
			Kind: b.Kind(),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return b.Execute(ctx, original, args)
			},
		})
	}
	r.bind(bindings)
	return nil
}

func (r *Registry) bind(bindings []Binding) {
	r.mu.Lock()
	for _, b := range bindings {
		if _, exists := r.bindings[b.Path]; exists && r.logger != nil {
			r.logger.Warn("tool binding replaced", "path", b.Path)
		}
		r.bindings[b.Path] = b
	}
	r.mu.Unlock()

	r.docsMu.Lock()
	r.dirty = true
	r.docsMu.Unlock()

	if r.logger != nil && len(bindings) > 0 {
		r.logger.Info("tools registered", "count", len(bindings), "kind", bindings[0].Kind)
	}
}

// Call resolves path and invokes its handler. An unknown path fails with an
// error wrapping backend.ErrUnknownTool; handler outcomes pass through as is.
func (r *Registry) Call(ctx context.Context, path string, args map[string]any) (any, error) {
	r.mu.RLock()
	b, ok := r.bindings[path]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", backend.ErrUnknownTool, path)
	}
	if args == nil {
		args = map[string]any{}
	}

	ctx, span := r.tracer.Start(ctx, "registry.call",
		trace.WithAttributes(
			attribute.String("tool.path", path),
			attribute.String("tool.kind", b.Kind),
		))
	defer span.End()

	out, err := b.Handler(ctx, args)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

// Has reports whether path is bound.
func (r *Registry) Has(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bindings[path]
	return ok
}

// Paths returns all bound paths in sorted order.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.bindings))
	for path := range r.bindings {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// Descriptor returns the descriptor bound at path.
func (r *Registry) Descriptor(path string) (model.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bindings[path]
	return b.Tool, ok
}

// Descriptors returns a snapshot of all descriptors keyed by path.
func (r *Registry) Descriptors() map[string]model.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]model.Tool, len(r.bindings))
	for path, b := range r.bindings {
		out[path] = b.Tool
	}
	return out
}

// Namespaces returns the distinct namespaces in sorted order.
func (r *Registry) Namespaces() []string {
	seen := make(map[string]struct{})
	for _, path := range r.Paths() {
		if ns, _, ok := SplitPath(path); ok {
			seen[ns] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for ns := range seen {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}
