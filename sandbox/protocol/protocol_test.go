package protocol

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"strings"
	"sync"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Message
		wantErr bool
	}{
		{
			name: "call",
			line: `{"type":"call","id":3,"tool":"math.add","args":{"a":1}}`,
			want: Message{Type: TypeCall, ID: 3, Tool: "math.add", Args: []byte(`{"a":1}`)},
		},
		{
			name: "progress",
			line: `{"type":"progress","data":{"step":1}}`,
			want: Message{Type: TypeProgress, Data: []byte(`{"step":1}`)},
		},
		{
			name: "progress without data",
			line: `{"type":"progress"}`,
			want: Message{Type: TypeProgress, Data: []byte(`null`)},
		},
		{
			name: "return",
			line: `{"type":"return","data":[1,2]}`,
			want: Message{Type: TypeReturn, Data: []byte(`[1,2]`)},
		},
		{
			name: "error",
			line: `{"type":"error","message":"Error: boom","kind":"exception"}`,
			want: Message{Type: TypeError, Message: "Error: boom", Kind: KindException},
		},
		{name: "not json", line: `hello world`, wantErr: true},
		{name: "unknown type", line: `{"type":"shout"}`, wantErr: true},
		{name: "call without id", line: `{"type":"call","tool":"a.b"}`, wantErr: true},
		{name: "call without tool", line: `{"type":"call","id":1}`, wantErr: true},
		{name: "error without message", line: `{"type":"error"}`, wantErr: true},
		{name: "negative id", line: `{"type":"call","id":-1,"tool":"a.b"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.line))
			if tt.wantErr {
				if !errors.Is(err, ErrMalformed) {
					t.Errorf("Decode() error = %v, want ErrMalformed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Decode() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestMessage_Terminal(t *testing.T) {
	for _, typ := range []MessageType{TypeReturn, TypeError} {
		if !(Message{Type: typ}).Terminal() {
			t.Errorf("Terminal(%s) = false, want true", typ)
		}
	}
	for _, typ := range []MessageType{TypeCall, TypeProgress} {
		if (Message{Type: typ}).Terminal() {
			t.Errorf("Terminal(%s) = true, want false", typ)
		}
	}
}

func TestMessage_ArgsObject(t *testing.T) {
	tests := []struct {
		name    string
		args    string
		want    map[string]any
		wantErr bool
	}{
		{"absent", ``, map[string]any{}, false},
		{"null", `null`, map[string]any{}, false},
		{"object", `{"msg":"hi"}`, map[string]any{"msg": "hi"}, false},
		{"array", `[1,2]`, nil, true},
		{"string", `"x"`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Message{Args: []byte(tt.args)}.ArgsObject()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ArgsObject() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ArgsObject() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	_ = w.Write(Reply{ID: 1, Result: map[string]any{"sum": 5}})
	_ = w.Write(Reply{ID: 2})
	_ = w.Write(Reply{ID: 3, Err: "unknown tool: a.b"})
	_ = w.Write(Reply{ID: 4, Result: make(chan int)})

	want := strings.Join([]string{
		`{"id":1,"result":{"sum":5}}`,
		`{"id":2,"result":null}`,
		`{"id":3,"error":"unknown tool: a.b"}`,
		`{"id":4,"error":"result is not serializable: json: unsupported type: chan int"}`,
	}, "\n") + "\n"
	if buf.String() != want {
		t.Errorf("Write() output =\n%s\nwant\n%s", buf.String(), want)
	}
}

type failingWriter struct{ calls int }

func (f *failingWriter) Write([]byte) (int, error) {
	f.calls++
	return 0, io.ErrClosedPipe
}

func TestWriter_StickyError(t *testing.T) {
	fw := &failingWriter{}
	w := NewWriter(fw)

	if err := w.Write(Reply{ID: 1}); !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("Write() error = %v, want ErrClosedPipe", err)
	}
	if err := w.Write(Reply{ID: 2}); !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("second Write() error = %v, want ErrClosedPipe", err)
	}
	if fw.calls != 1 {
		t.Errorf("underlying writer called %d times, want 1", fw.calls)
	}
}

func TestWriter_Concurrent(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			_ = w.Write(Reply{ID: id, Result: strings.Repeat("x", 100)})
		}(uint64(i))
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 20 {
		t.Fatalf("got %d lines, want 20", len(lines))
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, `{"id":`) || !strings.HasSuffix(line, `"}`) {
			t.Errorf("interleaved line: %q", line)
		}
	}
}

func TestReader_Next(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"progress","data":1}`,
		`garbage`,
		``,
		`{"type":"call","id":1,"tool":"a.b"}`,
		`{"type":"return","data":"done"}`,
	}, "\n")

	r := NewReader(strings.NewReader(input), 0)

	var got []MessageType
	for {
		msg, err := r.Next()
		if err != nil {
			if err != io.EOF {
				t.Fatalf("Next() error = %v", err)
			}
			break
		}
		got = append(got, msg.Type)
	}

	want := []MessageType{TypeProgress, TypeCall, TypeReturn}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("message types = %v, want %v", got, want)
	}
	if r.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", r.Dropped())
	}
}

func TestReader_OversizedLine(t *testing.T) {
	big := `{"type":"progress","data":"` + strings.Repeat("a", 200<<10) + `"}`
	input := big + "\n" + `{"type":"return","data":null}` + "\n"

	r := NewReader(strings.NewReader(input), 1024)

	msg, err := r.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if msg.Type != TypeReturn {
		t.Errorf("Next().Type = %q, want %q", msg.Type, TypeReturn)
	}
	if r.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", r.Dropped())
	}
}
