// Package config loads process settings for the codecall command.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/jonwraymond/codecall/sandbox"
)

// Config stores environment-driven settings.
type Config struct {
	// LogLevel sets the logger level.
	LogLevel string `env:"CODECALL_LOG_LEVEL" envDefault:"info"`
	// LogFormat is "json" or "text".
	LogFormat string `env:"CODECALL_LOG_FORMAT" envDefault:"json"`

	// Runtime selects the child interpreter: "deno" or "node".
	Runtime    string `env:"CODECALL_RUNTIME" envDefault:"deno"`
	DenoBinary string `env:"CODECALL_DENO_BINARY" envDefault:"deno"`
	NodeBinary string `env:"CODECALL_NODE_BINARY" envDefault:"node"`
	MaxHeapMB  int    `env:"CODECALL_MAX_HEAP_MB"`

	// Timeout bounds each execution.
	Timeout      time.Duration `env:"CODECALL_TIMEOUT" envDefault:"30s"`
	MaxToolCalls int           `env:"CODECALL_MAX_TOOL_CALLS"`
	CallRate     float64       `env:"CODECALL_CALL_RATE"`
	CallBurst    int           `env:"CODECALL_CALL_BURST"`
	TempDir      string        `env:"CODECALL_TEMP_DIR"`

	// ServersFile is an optional YAML file of remote connections.
	ServersFile string `env:"CODECALL_SERVERS_FILE"`
	// MetricsAddr, when set, serves Prometheus metrics on this address.
	MetricsAddr string `env:"CODECALL_METRICS_ADDR"`
}

// Load parses environment variables into Config.
func Load() (Config, error) {
	return env.ParseAs[Config]()
}

// NewRuntime returns the runtime selected by Runtime.
func (c Config) NewRuntime() (sandbox.Runtime, error) {
	switch c.Runtime {
	case "", "deno":
		return &sandbox.DenoRuntime{Binary: c.DenoBinary, MaxHeapMB: c.MaxHeapMB}, nil
	case "node":
		return &sandbox.NodeRuntime{Binary: c.NodeBinary, MaxHeapMB: c.MaxHeapMB}, nil
	default:
		return nil, fmt.Errorf("unsupported runtime %q", c.Runtime)
	}
}

// Engine builds an engine configuration around tools.
func (c Config) Engine(tools sandbox.ToolCaller) (sandbox.Config, error) {
	rt, err := c.NewRuntime()
	if err != nil {
		return sandbox.Config{}, err
	}
	return sandbox.Config{
		Tools:          tools,
		Runtime:        rt,
		DefaultTimeout: c.Timeout,
		MaxToolCalls:   c.MaxToolCalls,
		CallRate:       c.CallRate,
		CallBurst:      c.CallBurst,
		TempDir:        c.TempDir,
	}, nil
}
