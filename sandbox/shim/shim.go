// Package shim renders the JavaScript module executed by the sandbox child.
//
// The module installs a two-level tools proxy (tools.namespace.method) that
// turns every call into a "call" message, a progress function, console
// redirection to stderr, and a wrapper that validates and reports the value
// returned by the user code.
package shim

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

//go:embed shim.js.tmpl
var source string

var moduleTemplate = template.Must(template.New("shim").Delims("[[", "]]").Parse(source))

// codeLine is the line of the rendered module at which user code starts.
// Every substitution before it renders on a single line.
var codeLine = strings.Count(source[:strings.Index(source, "[[.Code]]")], "\n") + 1

// Module is a rendered child program.
type Module struct {
	// Source is the complete program text.
	Source []byte

	// CodeLine is the 1-based line at which the user code starts.
	CodeLine int
}

// Render embeds code into the shim. The code becomes the body of an async
// function receiving tools and progress.
func Render(code string) (Module, error) {
	sourceJSON, err := json.Marshal(code)
	if err != nil {
		return Module{}, fmt.Errorf("shim: encoding source: %w", err)
	}

	var buf bytes.Buffer
	err = moduleTemplate.Execute(&buf, struct {
		SourceJSON string
		CodeLine   int
		Code       string
	}{string(sourceJSON), codeLine, code})
	if err != nil {
		return Module{}, fmt.Errorf("shim: rendering: %w", err)
	}
	return Module{Source: buf.Bytes(), CodeLine: codeLine}, nil
}
