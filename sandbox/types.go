package sandbox

import (
	"context"
	"time"
)

// ToolCaller resolves and invokes a tool by dotted path.
// *registry.Registry satisfies it.
type ToolCaller interface {
	Call(ctx context.Context, path string, args map[string]any) (any, error)
}

// ToolIndex is implemented by a ToolCaller that can say whether a path is
// registered. The engine uses it to keep metric labels bounded.
type ToolIndex interface {
	Has(path string) bool
}

// UnknownToolLabel is the metric label for paths that resolve to no tool.
const UnknownToolLabel = "unknown"

// ProgressFunc receives progress values in emission order. It is called
// from the execution's message loop and should return quickly.
type ProgressFunc func(data any)

// Options are per-execution settings.
type Options struct {
	// Timeout bounds the whole execution. Zero selects Config.DefaultTimeout.
	Timeout time.Duration

	// OnProgress, if set, is invoked for every progress entry.
	OnProgress ProgressFunc
}

// Status is the final status of an execution.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Outcome says which terminal event produced a Result.
type Outcome string

const (
	OutcomeCompleted  Outcome = "completed"
	OutcomeException  Outcome = "exception"
	OutcomeValidation Outcome = "validation"
	OutcomeTimeout    Outcome = "timeout"
	OutcomeCanceled   Outcome = "canceled"
	OutcomeCrash      Outcome = "crash"
	OutcomeSpawn      Outcome = "spawn_error"
)

// ToolCallRecord captures one tool invocation made by the code.
type ToolCallRecord struct {
	// ID is the correlation id assigned by the child.
	ID uint64 `json:"id"`

	// Tool is the dotted path that was requested.
	Tool string `json:"tool"`

	// Args contains the arguments passed to the tool.
	Args map[string]any `json:"args,omitempty"`

	// Result holds the value returned by a successful call.
	Result any `json:"result,omitempty"`

	// Error contains the error message if the call failed.
	Error string `json:"error,omitempty"`

	// DurationMs is the handler time in milliseconds.
	DurationMs int64 `json:"durationMs"`
}

// Result is the outcome of one execution. Exactly one terminal event
// produces it.
type Result struct {
	// ExecutionID identifies the execution in logs and traces.
	ExecutionID string `json:"executionId"`

	Status Status `json:"status"`

	// Output is the value returned by the code. Only set on success.
	Output any `json:"output,omitempty"`

	// Error is a human-readable message. Only set on error.
	Error string `json:"error,omitempty"`

	// Err classifies Error with one of the package sentinels.
	Err error `json:"-"`

	// Outcome names the terminal event.
	Outcome Outcome `json:"outcome"`

	// Progress holds progress entries in emission order.
	Progress []any `json:"progressLogs"`

	// ToolCalls records the calls that completed before teardown, ordered by id.
	ToolCalls []ToolCallRecord `json:"toolCalls,omitempty"`

	// ExitCode is the child's exit code when it exited on its own, else -1.
	ExitCode int `json:"exitCode"`

	// Duration is the wall time from spawn to teardown.
	Duration time.Duration `json:"duration"`
}

// OK reports whether the execution succeeded.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// state tracks an execution through its lifecycle.
type state int

const (
	stateCreated state = iota
	stateSpawning
	stateRunning
	stateCompleted
	stateTimedOut
	stateCrashed
	stateTornDown
)

func (s state) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateSpawning:
		return "spawning"
	case stateRunning:
		return "running"
	case stateCompleted:
		return "completed"
	case stateTimedOut:
		return "timed_out"
	case stateCrashed:
		return "crashed"
	case stateTornDown:
		return "torn_down"
	default:
		return "unknown"
	}
}
