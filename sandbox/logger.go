package sandbox

// Logger is an optional interface for observability during execution.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: logging must be best-effort and must not panic.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Metrics receives execution events. The metrics package provides a
// Prometheus implementation.
type Metrics interface {
	ExecutionStarted()
	ExecutionFinished(outcome Outcome, seconds float64)
	ToolCallFinished(path string, failed bool, seconds float64)
	ProgressEmitted()
}

type nopMetrics struct{}

func (nopMetrics) ExecutionStarted()                      {}
func (nopMetrics) ExecutionFinished(Outcome, float64)     {}
func (nopMetrics) ToolCallFinished(string, bool, float64) {}
func (nopMetrics) ProgressEmitted()                       {}
