package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/codecall/backend/local"
)

// maxSleep caps util.sleep so a script cannot park a handler indefinitely.
const maxSleep = time.Minute

// sleepDuration converts ms to a duration no longer than maxSleep. The cap
// is applied before conversion so huge values cannot overflow.
func sleepDuration(ms float64) time.Duration {
	if ms >= float64(maxSleep/time.Millisecond) {
		return maxSleep
	}
	return time.Duration(ms * float64(time.Millisecond))
}

// builtinTools are registered under the "util" namespace.
func builtinTools(now func() time.Time) []local.ToolDef {
	return []local.ToolDef{
		{
			Name:        "echo",
			Description: "Returns its arguments unchanged",
			Tags:        []string{"debug"},
			Handler: func(_ context.Context, args map[string]any) (any, error) {
				return args, nil
			},
		},
		{
			Name:        "sleep",
			Description: "Waits for ms milliseconds and returns the time slept",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"ms": map[string]any{"type": "number"},
				},
				"required": []any{"ms"},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				ms, ok := args["ms"].(float64)
				if !ok || ms < 0 {
					return nil, fmt.Errorf("ms must be a non-negative number")
				}
				d := sleepDuration(ms)
				select {
				case <-time.After(d):
					return map[string]any{"slept": d.Milliseconds()}, nil
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			},
		},
		{
			Name:        "now",
			Description: "Returns the current time in RFC 3339 format",
			Handler: func(context.Context, map[string]any) (any, error) {
				return now().UTC().Format(time.RFC3339Nano), nil
			},
		},
	}
}
