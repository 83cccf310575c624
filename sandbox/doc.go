// Package sandbox runs untrusted code in a capability-restricted child
// process while the host serves the code's tool calls.
//
// Each execution writes a generated program (the shim plus the code) to a
// private work directory, launches the runtime with read access to that one
// file, and exchanges line-delimited JSON over the child's stdin and stdout:
//
//	child → host   {"type":"call","id":1,"tool":"math.add","args":{...}}
//	host  → child  {"id":1,"result":{...}}  or  {"id":1,"error":"..."}
//	child → host   {"type":"progress","data":...}
//	child → host   {"type":"return","data":...}  (terminal)
//	child → host   {"type":"error","message":"..."}  (terminal)
//
// Calls are dispatched concurrently and correlated by id. The execution ends
// with the first terminal message, the timeout, cancellation, or the child
// exiting; the child's process group is then killed and the work directory
// removed.
//
// Usage:
//
//	eng, err := sandbox.New(sandbox.Config{Tools: reg})
//	res, err := eng.Execute(ctx, `return await tools.math.add({a: 2, b: 3});`, sandbox.Options{
//	    Timeout:    10 * time.Second,
//	    OnProgress: func(v any) { fmt.Println(v) },
//	})
package sandbox
