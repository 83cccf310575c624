package backend

import (
	"context"
	"errors"

	"github.com/jonwraymond/toolfoundation/model"
)

// Common errors for tool sources and the registry built on top of them.
var (
	// ErrUnknownTool is returned when a dotted tool path has no binding.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrToolNotFound is returned by a backend asked for a tool it does not own.
	ErrToolNotFound = errors.New("tool not found in backend")

	// ErrToolCallFailed wraps the error text reported by a remote tool.
	ErrToolCallFailed = errors.New("tool call failed")

	// ErrConnection indicates a remote session could not be established.
	ErrConnection = errors.New("connection error")
)

// Backend defines a source of tools.
// Backends can be in-process handlers or remote protocol sessions.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: ListTools and Execute must honor cancellation/deadlines.
// - Naming: ListTools reports tools under their original names; Execute takes the same names.
// - Errors: use ErrToolNotFound/ErrToolCallFailed where applicable.
type Backend interface {
	// Kind returns the backend type (e.g., "local", "mcp").
	Kind() string

	// Name returns the unique instance name for this backend.
	// The registry uses it as the default namespace.
	Name() string

	// ListTools returns all tools available from this backend.
	ListTools(ctx context.Context) ([]model.Tool, error)

	// Execute invokes a tool on this backend.
	Execute(ctx context.Context, tool string, args map[string]any) (any, error)
}

// Closer is implemented by backends that own a session or subprocess.
type Closer interface {
	Close() error
}
