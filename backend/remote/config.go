package remote

import (
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Kind selects the transport used to reach a tool provider.
type Kind string

const (
	// KindStdio launches the provider as a subprocess speaking over stdin/stdout.
	KindStdio Kind = "stdio"
	// KindHTTP connects to a streamable HTTP endpoint.
	KindHTTP Kind = "http"
	// KindSSE connects to a legacy server-sent-events endpoint.
	KindSSE Kind = "sse"
)

// Config describes one remote tool provider.
// Exactly one of Command (stdio) or URL (http, sse) is used, chosen by Kind.
type Config struct {
	// Name identifies the connection and is the default registry namespace.
	Name string `yaml:"name"`

	// Kind selects the transport. When empty it is inferred:
	// Command implies stdio, URL implies http.
	Kind Kind `yaml:"kind,omitempty"`

	// Command and Args launch a stdio provider.
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`

	// Env holds variables layered over the host environment for the
	// subprocess. Overrides always win over inherited values.
	Env map[string]string `yaml:"env,omitempty"`

	// URL is the endpoint of a network provider.
	URL string `yaml:"url,omitempty"`
}

// EffectiveKind returns Kind, or the kind implied by the populated fields.
func (c Config) EffectiveKind() Kind {
	if c.Kind != "" {
		return c.Kind
	}
	if c.Command != "" {
		return KindStdio
	}
	if c.URL != "" {
		return KindHTTP
	}
	return ""
}

// Validate checks that the fields required by the transport are set.
func (c Config) Validate() error {
	switch c.EffectiveKind() {
	case KindStdio:
		if c.Command == "" {
			return fmt.Errorf("remote %q: stdio connection requires a command", c.Name)
		}
	case KindHTTP, KindSSE:
		if c.URL == "" {
			return fmt.Errorf("remote %q: %s connection requires a url", c.Name, c.EffectiveKind())
		}
	case "":
		return fmt.Errorf("remote %q: either command or url is required", c.Name)
	default:
		return fmt.Errorf("remote %q: unsupported kind %q", c.Name, c.Kind)
	}
	return nil
}

// transport builds a fresh transport. Each call produces its own command
// and environment slice so sibling connections never share state.
func (c Config) transport(environ []string) mcp.Transport {
	switch c.EffectiveKind() {
	case KindStdio:
		cmd := exec.Command(c.Command, c.Args...)
		cmd.Env = MergeEnv(environ, c.Env)
		return &mcp.CommandTransport{Command: cmd}
	case KindSSE:
		return &mcp.SSEClientTransport{Endpoint: c.URL}
	default:
		return &mcp.StreamableClientTransport{Endpoint: c.URL}
	}
}

// MergeEnv layers overrides on top of base (KEY=VALUE entries).
// Inherited keys keep their original order with overridden values; new keys
// follow in sorted order. For duplicate base keys the last entry wins.
func MergeEnv(base []string, overrides map[string]string) []string {
	values := make(map[string]string, len(base)+len(overrides))
	order := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		if _, seen := values[key]; !seen {
			order = append(order, key)
		}
		values[key] = value
	}

	extra := make([]string, 0, len(overrides))
	for key := range overrides {
		if _, seen := values[key]; !seen {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	order = append(order, extra...)

	for key, value := range overrides {
		values[key] = value
	}

	out := make([]string, 0, len(order))
	for _, key := range order {
		out = append(out, key+"="+values[key])
	}
	return out
}
