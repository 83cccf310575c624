package local

import (
	"context"
	"errors"
	"testing"

	"github.com/jonwraymond/codecall/backend"
)

func TestLocalBackend_Interface(t *testing.T) {
	t.Helper()
	var _ backend.Backend = (*Backend)(nil)
}

func TestLocalBackend_Kind(t *testing.T) {
	b := New("test")
	if b.Kind() != "local" {
		t.Errorf("Kind() = %q, want %q", b.Kind(), "local")
	}
}

func TestLocalBackend_Name(t *testing.T) {
	b := New("my-local")
	if b.Name() != "my-local" {
		t.Errorf("Name() = %q, want %q", b.Name(), "my-local")
	}
}

func TestLocalBackend_Register(t *testing.T) {
	b := New("test")

	handler := func(_ context.Context, _ map[string]any) (any, error) {
		return "handled", nil
	}

	err := b.Register(
		ToolDef{Name: "zeta", Description: "Last", Handler: handler},
		ToolDef{Name: "alpha", Description: "First", Handler: handler},
	)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	tools, err := b.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	if len(tools) != 2 {
		t.Fatalf("ListTools() returned %d tools, want 2", len(tools))
	}
	if tools[0].Name != "alpha" || tools[1].Name != "zeta" {
		t.Errorf("ListTools() order = [%s %s], want [alpha zeta]", tools[0].Name, tools[1].Name)
	}
	if tools[0].Namespace != "test" {
		t.Errorf("Tool.Namespace = %q, want %q", tools[0].Namespace, "test")
	}
}

func TestLocalBackend_RegisterInvalid(t *testing.T) {
	tests := []struct {
		name string
		def  ToolDef
	}{
		{"missing name", ToolDef{Handler: func(context.Context, map[string]any) (any, error) { return nil, nil }}},
		{"missing handler", ToolDef{Name: "noop"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("test")
			if err := b.Register(tt.def); err == nil {
				t.Error("Register() error = nil, want error")
			}
			if len(b.Definitions()) != 0 {
				t.Errorf("Definitions() = %d entries, want 0", len(b.Definitions()))
			}
		})
	}
}

func TestLocalBackend_Execute(t *testing.T) {
	b := New("test")

	_ = b.Register(ToolDef{
		Name:        "echo",
		Description: "Echo input",
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return args["message"], nil
		},
	})

	result, err := b.Execute(context.Background(), "echo", map[string]any{
		"message": "hello",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result != "hello" {
		t.Errorf("Execute() = %v, want %v", result, "hello")
	}
}

func TestLocalBackend_ExecuteNotFound(t *testing.T) {
	b := New("test")

	_, err := b.Execute(context.Background(), "nonexistent", nil)
	if !errors.Is(err, backend.ErrToolNotFound) {
		t.Errorf("Execute() error = %v, want ErrToolNotFound", err)
	}
}

func TestLocalBackend_Unregister(t *testing.T) {
	b := New("test")
	_ = b.Register(ToolDef{Name: "gone", Handler: func(context.Context, map[string]any) (any, error) { return nil, nil }})
	b.Unregister("gone")

	if _, err := b.Execute(context.Background(), "gone", nil); err == nil {
		t.Error("Execute() after Unregister() error = nil, want error")
	}
}

func TestToolDef_ToolDefaultsSchema(t *testing.T) {
	tool := ToolDef{Name: "ping", Tags: []string{"Net", "net"}}.Tool("util")

	schema, ok := tool.InputSchema.(map[string]any)
	if !ok || schema["type"] != "object" {
		t.Errorf("InputSchema = %v, want object schema", tool.InputSchema)
	}
	if tool.OutputSchema != nil {
		t.Errorf("OutputSchema = %v, want nil", tool.OutputSchema)
	}
	if tool.Namespace != "util" {
		t.Errorf("Namespace = %q, want %q", tool.Namespace, "util")
	}
}
