package backend_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonwraymond/codecall/backend"
	"github.com/jonwraymond/codecall/backend/local"
)

func ExampleBackend() {
	b := local.New("demo")
	_ = b.Register(local.ToolDef{
		Name:        "greet",
		Description: "Greets a user",
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			name, _ := args["name"].(string)
			return fmt.Sprintf("Hello, %s!", name), nil
		},
	})

	var be backend.Backend = b
	tools, _ := be.ListTools(context.Background())
	fmt.Println(be.Kind(), be.Name(), len(tools))

	out, _ := be.Execute(context.Background(), "greet", map[string]any{"name": "Ada"})
	fmt.Println(out)

	_, err := be.Execute(context.Background(), "missing", nil)
	fmt.Println(errors.Is(err, backend.ErrToolNotFound))
	// Output:
	// local demo 1
	// Hello, Ada!
	// true
}
