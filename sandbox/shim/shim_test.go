package shim

import (
	"fmt"
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	code := "const x = await tools.math.add({a: 1, b: 2});\nreturn x;"

	mod, err := Render(code)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	out := string(mod.Source)

	for _, want := range []string{
		`const source = "const x = await tools.math.add({a: 1, b: 2});\nreturn x;";`,
		"__codecall.run(async (tools, progress) => {\n" + code + "\n});",
		`send({ type: "call", id, tool, args: args === undefined ? {} : args });`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() output missing %q", want)
		}
	}
	if strings.Contains(out, "[[") {
		t.Error("Render() left template delimiters in output")
	}

	lines := strings.Split(out, "\n")
	if mod.CodeLine < 1 || mod.CodeLine > len(lines) {
		t.Fatalf("CodeLine = %d, out of range 1..%d", mod.CodeLine, len(lines))
	}
	if got := lines[mod.CodeLine-1]; got != "const x = await tools.math.add({a: 1, b: 2});" {
		t.Errorf("line %d = %q, want first code line", mod.CodeLine, got)
	}
}

func TestRender_EscapesSourceLiteral(t *testing.T) {
	code := "return \"quote\" + '\u2028';"

	mod, err := Render(code)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	out := string(mod.Source)

	literal := out[strings.Index(out, "const source = "):]
	literal = literal[:strings.Index(literal, "\n")]
	if strings.Contains(literal, "\u2028") {
		t.Error("source literal contains a raw line separator")
	}
	if !strings.Contains(literal, `\"quote\"`) || !strings.Contains(literal, `\u2028`) {
		t.Errorf("source literal = %s, want escaped quotes and separator", literal)
	}
}

func TestRender_CodeLineEmbedded(t *testing.T) {
	for _, code := range []string{"return 1;", "", "const a = 1;\n\nthrow new Error(\"x\");"} {
		mod, err := Render(code)
		if err != nil {
			t.Fatalf("Render(%q) error = %v", code, err)
		}
		want := fmt.Sprintf("const codeLine = %d;", mod.CodeLine)
		if !strings.Contains(string(mod.Source), want) {
			t.Errorf("Render(%q) output missing %q", code, want)
		}
		if mod.CodeLine != codeLine {
			t.Errorf("Render(%q).CodeLine = %d, want %d", code, mod.CodeLine, codeLine)
		}
	}
}
