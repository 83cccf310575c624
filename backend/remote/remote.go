// Package remote connects to external tool providers over the Model Context
// Protocol and exposes their tools as a backend.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/jonwraymond/codecall/backend"
	"github.com/jonwraymond/toolfoundation/model"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ClientName and ClientVersion identify this module during the handshake.
const (
	ClientName    = "codecall"
	ClientVersion = "0.1.0"
)

// ErrClosed is reported by Invoke after Close.
var ErrClosed = errors.New("connection closed")

// CallResult is the tagged outcome of a remote invocation.
// Payload is set only when Success is true; Error only when it is false.
type CallResult struct {
	Success bool
	Payload any
	Error   string
}

// Connection is an established session with one tool provider.
// The tool list is captured once during Connect.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Close: idempotent; safe on a nil receiver and after partial failures.
type Connection struct {
	name    string
	kind    Kind
	session *mcp.ClientSession
	tools   []model.Tool
	server  *mcp.Implementation

	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Connect performs the handshake with the provider described by cfg and
// eagerly lists its tools. Failures are wrapped with backend.ErrConnection
// and leave nothing running.
func Connect(ctx context.Context, cfg Config) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrConnection, err)
	}
	return ConnectTransport(ctx, cfg.Name, cfg.EffectiveKind(), cfg.transport(os.Environ()))
}

// ConnectTransport establishes a session over an already constructed
// transport. Connect uses it after building the transport from a Config.
func ConnectTransport(ctx context.Context, name string, kind Kind, transport mcp.Transport) (*Connection, error) {
	client := mcp.NewClient(&mcp.Implementation{Name: ClientName, Version: ClientVersion}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", backend.ErrConnection, name, err)
	}

	c := &Connection{
		name:    name,
		kind:    kind,
		session: session,
		closed:  make(chan struct{}),
	}
	if init := session.InitializeResult(); init != nil {
		c.server = init.ServerInfo
	}

	tools, err := listAllTools(ctx, session, name)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("%w: %s: listing tools: %w", backend.ErrConnection, name, err)
	}
	c.tools = tools
	return c, nil
}

func listAllTools(ctx context.Context, session *mcp.ClientSession, namespace string) ([]model.Tool, error) {
	var (
		out    []model.Tool
		cursor string
	)
	for {
		res, err := session.ListTools(ctx, &mcp.ListToolsParams{Cursor: cursor})
		if err != nil {
			return nil, err
		}
		for _, t := range res.Tools {
			if t == nil {
				continue
			}
			out = append(out, model.Tool{Tool: *t, Namespace: namespace})
		}
		if res.NextCursor == "" || res.NextCursor == cursor {
			return out, nil
		}
		cursor = res.NextCursor
	}
}

// Kind returns the backend kind.
func (c *Connection) Kind() string {
	return "mcp"
}

// Name returns the connection name.
func (c *Connection) Name() string {
	return c.name
}

// Transport returns the transport kind used by the connection.
func (c *Connection) Transport() Kind {
	return c.kind
}

// ServerInfo returns the provider identity reported during the handshake,
// or nil if none was sent.
func (c *Connection) ServerInfo() *mcp.Implementation {
	return c.server
}

// Tools returns a copy of the descriptors discovered at connect time.
func (c *Connection) Tools() []model.Tool {
	return append([]model.Tool(nil), c.tools...)
}

// ListTools implements backend.Backend.
func (c *Connection) ListTools(ctx context.Context) ([]model.Tool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Tools(), nil
}

// Invoke calls a tool by its original name. Transport failures and tool
// errors are both reported as an unsuccessful CallResult.
func (c *Connection) Invoke(ctx context.Context, name string, args map[string]any) CallResult {
	select {
	case <-c.closed:
		return CallResult{Error: ErrClosed.Error()}
	default:
	}
	if args == nil {
		args = map[string]any{}
	}

	res, err := c.session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return CallResult{Error: err.Error()}
	}
	if res.IsError {
		msg := joinText(res.Content)
		if msg == "" {
			msg = "tool call failed"
		}
		return CallResult{Error: msg}
	}
	return CallResult{Success: true, Payload: payload(res)}
}

// Execute implements backend.Backend, turning failures into errors that
// wrap backend.ErrToolCallFailed.
func (c *Connection) Execute(ctx context.Context, tool string, args map[string]any) (any, error) {
	r := c.Invoke(ctx, tool, args)
	if !r.Success {
		return nil, fmt.Errorf("%w: %s", backend.ErrToolCallFailed, r.Error)
	}
	return r.Payload, nil
}

// Close ends the session and, for stdio providers, the subprocess.
func (c *Connection) Close() error {
	if c == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		if c.closed != nil {
			close(c.closed)
		}
		if c.session != nil {
			c.closeErr = c.session.Close()
		}
	})
	return c.closeErr
}

// payload unwraps a successful result. Structured content wins; otherwise
// text content is decoded as JSON when possible and returned raw when not.
func payload(res *mcp.CallToolResult) any {
	if res.StructuredContent != nil {
		return res.StructuredContent
	}

	var texts []string
	for _, content := range res.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	switch len(texts) {
	case 0:
		return nil
	case 1:
		return decodeText(texts[0])
	default:
		items := make([]any, len(texts))
		for i, text := range texts {
			items[i] = decodeText(text)
		}
		return items
	}
}

func decodeText(text string) any {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return text
	}
	return v
}

func joinText(contents []mcp.Content) string {
	var parts []string
	for _, content := range contents {
		if tc, ok := content.(*mcp.TextContent); ok && tc.Text != "" {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
