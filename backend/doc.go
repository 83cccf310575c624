// Package backend defines the tool source abstraction shared by the registry
// and the sandbox bridge.
//
// Two implementations ship with the module:
//
//   - local: in-process handlers registered directly
//   - remote: Model Context Protocol sessions (stdio subprocess, streamable HTTP, SSE)
//
// A Backend reports tools under their original names. The registry maps
// them onto dotted paths (namespace.method) and routes calls back using the
// original name:
//
//	b := local.New("math")
//	b.Register(local.ToolDef{Name: "add", Handler: add})
//	_ = reg.RegisterBackend(ctx, b)
//	out, _ := reg.Call(ctx, "math.add", map[string]any{"a": 2, "b": 3})
package backend
