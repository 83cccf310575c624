package sandbox

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Default limits applied when the corresponding Config field is zero.
const (
	DefaultTimeout         = 30 * time.Second
	DefaultMaxStderrBytes  = 1 << 20
	DefaultMaxMessageBytes = 8 << 20
	DefaultWaitDelay       = time.Second
)

// Config holds the configuration for an Engine.
type Config struct {
	// Tools resolves dotted tool paths requested by the code.
	// Required.
	Tools ToolCaller

	// Runtime launches the child process. Defaults to a DenoRuntime.
	Runtime Runtime

	// DefaultTimeout applies when Options.Timeout is zero.
	DefaultTimeout time.Duration

	// MaxToolCalls caps tool invocations per execution. Zero means unlimited.
	MaxToolCalls int

	// CallRate limits tool dispatch to this many calls per second with
	// CallBurst tokens. Zero disables rate limiting.
	CallRate  float64
	CallBurst int

	// MaxStderrBytes caps captured diagnostic output.
	MaxStderrBytes int

	// MaxMessageBytes caps a single protocol line from the child.
	MaxMessageBytes int

	// TempDir is the parent directory for per-execution work directories.
	// Empty means os.TempDir().
	TempDir string

	// WaitDelay bounds how long teardown waits for the child's pipes after
	// the process is gone.
	WaitDelay time.Duration

	// Logger is an optional logger. *slog.Logger satisfies it.
	Logger Logger

	// Metrics is an optional metrics sink.
	Metrics Metrics
}

// Validate checks that all required fields are set and limits are sane.
// Returns ErrConfiguration on failure.
func (c *Config) Validate() error {
	var problems []string

	if c.Tools == nil {
		problems = append(problems, "missing required field: Tools")
	}
	if c.DefaultTimeout < 0 {
		problems = append(problems, "DefaultTimeout must not be negative")
	}
	if c.MaxToolCalls < 0 {
		problems = append(problems, "MaxToolCalls must not be negative")
	}
	if c.CallRate < 0 || c.CallBurst < 0 {
		problems = append(problems, "CallRate and CallBurst must not be negative")
	}
	if c.MaxStderrBytes < 0 || c.MaxMessageBytes < 0 {
		problems = append(problems, "byte limits must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

// applyDefaults sets default values for optional fields.
func (c *Config) applyDefaults() {
	if c.Runtime == nil {
		c.Runtime = &DenoRuntime{}
	}
	if c.DefaultTimeout == 0 {
		c.DefaultTimeout = DefaultTimeout
	}
	if c.MaxStderrBytes == 0 {
		c.MaxStderrBytes = DefaultMaxStderrBytes
	}
	if c.MaxMessageBytes == 0 {
		c.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if c.WaitDelay == 0 {
		c.WaitDelay = DefaultWaitDelay
	}
	if c.CallRate > 0 && c.CallBurst == 0 {
		c.CallBurst = 1
	}
	if c.Logger == nil {
		c.Logger = nopLogger{}
	}
	if c.Metrics == nil {
		c.Metrics = nopMetrics{}
	}
}

// newLimiter returns a per-execution limiter, or nil when disabled.
func (c *Config) newLimiter() *rate.Limiter {
	if c.CallRate <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(c.CallRate), c.CallBurst)
}
