package sandbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/jonwraymond/codecall/sandbox"

// Engine runs code in isolated child processes. Each Execute call owns one
// child for its whole lifetime; an Engine may run several executions
// concurrently.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Context: canceling ctx ends the execution with ErrCanceled.
// - Errors: Execute returns a non-nil error only when no child was started;
//   every other failure is reported through Result.
type Engine struct {
	cfg    Config
	tracer trace.Tracer
}

// New creates an Engine. Returns ErrConfiguration if cfg is invalid.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if c, ok := cfg.Runtime.(Checker); ok {
		if err := c.Check(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
	}
	return &Engine{cfg: cfg, tracer: otel.Tracer(tracerName)}, nil
}

// Runtime returns the configured runtime.
func (e *Engine) Runtime() Runtime {
	return e.cfg.Runtime
}

// Execute runs code to completion, timeout, crash, or cancellation.
func (e *Engine) Execute(ctx context.Context, code string, opts Options) (Result, error) {
	id := uuid.NewString()
	if strings.TrimSpace(code) == "" {
		return errorResult(id, OutcomeSpawn, ErrMissingCode, ErrMissingCode.Error()), ErrMissingCode
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = e.cfg.DefaultTimeout
	}

	ctx, span := e.tracer.Start(ctx, "sandbox.execute",
		trace.WithAttributes(
			attribute.String("sandbox.execution_id", id),
			attribute.String("sandbox.runtime", e.cfg.Runtime.Name()),
		))
	defer span.End()

	e.cfg.Metrics.ExecutionStarted()
	log := loggerWith{e.cfg.Logger, []any{"execution_id", id}}
	log.Info("execution started", "runtime", e.cfg.Runtime.Name(), "timeout", timeout)

	x := newExecution(&e.cfg, id, log, opts.OnProgress, timeout)
	res, err := x.run(ctx, code)

	e.cfg.Metrics.ExecutionFinished(res.Outcome, res.Duration.Seconds())
	span.SetAttributes(
		attribute.String("sandbox.outcome", string(res.Outcome)),
		attribute.Int("sandbox.tool_calls", len(res.ToolCalls)),
	)
	if res.Status == StatusError {
		span.SetStatus(codes.Error, string(res.Outcome))
		log.Warn("execution failed", "outcome", res.Outcome, "duration", res.Duration)
	} else {
		log.Info("execution completed", "tool_calls", len(res.ToolCalls), "duration", res.Duration)
	}
	return res, err
}

func errorResult(id string, outcome Outcome, sentinel error, message string) Result {
	return Result{
		ExecutionID: id,
		Status:      StatusError,
		Error:       message,
		Err:         sentinel,
		Outcome:     outcome,
		Progress:    []any{},
		ExitCode:    -1,
	}
}

// loggerWith prepends fixed attributes to every entry.
type loggerWith struct {
	l     Logger
	attrs []any
}

func (lw loggerWith) with(args []any) []any {
	return append(append(make([]any, 0, len(lw.attrs)+len(args)), lw.attrs...), args...)
}

func (lw loggerWith) Info(msg string, args ...any)  { lw.l.Info(msg, lw.with(args)...) }
func (lw loggerWith) Warn(msg string, args ...any)  { lw.l.Warn(msg, lw.with(args)...) }
func (lw loggerWith) Error(msg string, args ...any) { lw.l.Error(msg, lw.with(args)...) }

func since(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
