// Package protocol implements the line-delimited JSON messages exchanged
// between the host and a sandboxed child process.
//
// Child to host: call, progress, return, error.
// Host to child: {"id", "result"} or {"id", "error"}, only in reply to a call.
package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// MessageType identifies a child-to-host message.
type MessageType string

const (
	TypeCall     MessageType = "call"
	TypeProgress MessageType = "progress"
	TypeReturn   MessageType = "return"
	TypeError    MessageType = "error"
)

// Error kinds carried by TypeError messages.
const (
	KindException  = "exception"
	KindValidation = "validation"
)

// DefaultMaxLineBytes caps a single message line.
const DefaultMaxLineBytes = 8 << 20

// ErrMalformed is returned by Decode for lines that are not valid messages.
var ErrMalformed = errors.New("malformed message")

// Message is a decoded child-to-host message.
type Message struct {
	Type MessageType `json:"type"`

	// ID correlates a call with its reply.
	ID uint64 `json:"id,omitempty"`

	// Tool is the dotted path of a call.
	Tool string `json:"tool,omitempty"`

	// Args holds call arguments; absent means an empty object.
	Args json.RawMessage `json:"args,omitempty"`

	// Data holds the progress or return payload.
	Data json.RawMessage `json:"data,omitempty"`

	// Message and Kind describe a terminal error.
	Message string `json:"message,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// Terminal reports whether m ends the execution.
func (m Message) Terminal() bool {
	return m.Type == TypeReturn || m.Type == TypeError
}

// wire mirrors Message with pointer fields so presence can be checked.
type wire struct {
	Type    MessageType     `json:"type"`
	ID      *uint64         `json:"id"`
	Tool    *string         `json:"tool"`
	Args    json.RawMessage `json:"args"`
	Data    json.RawMessage `json:"data"`
	Message *string         `json:"message"`
	Kind    string          `json:"kind"`
}

// Decode parses and validates one line.
func Decode(line []byte) (Message, error) {
	var w wire
	if err := json.Unmarshal(line, &w); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	msg := Message{Type: w.Type, Args: w.Args, Data: w.Data, Kind: w.Kind}
	switch w.Type {
	case TypeCall:
		if w.ID == nil {
			return Message{}, fmt.Errorf("%w: call without id", ErrMalformed)
		}
		if w.Tool == nil || *w.Tool == "" {
			return Message{}, fmt.Errorf("%w: call without tool", ErrMalformed)
		}
		msg.ID = *w.ID
		msg.Tool = *w.Tool
	case TypeProgress, TypeReturn:
		if len(w.Data) == 0 {
			msg.Data = json.RawMessage("null")
		}
	case TypeError:
		if w.Message == nil {
			return Message{}, fmt.Errorf("%w: error without message", ErrMalformed)
		}
		msg.Message = *w.Message
	default:
		return Message{}, fmt.Errorf("%w: unknown type %q", ErrMalformed, w.Type)
	}
	return msg, nil
}

// ArgsObject decodes call arguments. Absent or null args yield an empty map;
// anything other than a JSON object is rejected.
func (m Message) ArgsObject() (map[string]any, error) {
	trimmed := bytes.TrimSpace(m.Args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]any{}, nil
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("arguments must be an object")
	}
	var args map[string]any
	if err := json.Unmarshal(trimmed, &args); err != nil {
		return nil, fmt.Errorf("arguments: %w", err)
	}
	return args, nil
}

// Reply is a host-to-child answer to a call.
type Reply struct {
	ID     uint64
	Result any
	Err    string
}

// MarshalJSON always emits "result" for successes (null included) and
// "error" for failures, never both.
func (r Reply) MarshalJSON() ([]byte, error) {
	if r.Err != "" {
		return json.Marshal(struct {
			ID    uint64 `json:"id"`
			Error string `json:"error"`
		}{r.ID, r.Err})
	}
	return json.Marshal(struct {
		ID     uint64 `json:"id"`
		Result any    `json:"result"`
	}{r.ID, r.Result})
}

// Writer serializes replies onto the child's stdin, one per line.
// It is safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	w   io.Writer
	err error
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write sends one reply. Results that cannot be encoded are turned into an
// error reply for the same id. After the first write failure every later
// call returns that failure.
func (w *Writer) Write(r Reply) error {
	line, err := r.MarshalJSON()
	if err != nil {
		line, err = Reply{ID: r.ID, Err: fmt.Sprintf("result is not serializable: %v", err)}.MarshalJSON()
		if err != nil {
			return err
		}
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	if _, err := w.w.Write(line); err != nil {
		w.err = err
		return err
	}
	return nil
}

// Reader yields decoded messages from the child's stdout in order.
// Malformed and oversized lines are skipped and counted.
type Reader struct {
	r       *bufio.Reader
	max     int
	dropped int
}

// NewReader wraps r. maxLine <= 0 selects DefaultMaxLineBytes.
func NewReader(r io.Reader, maxLine int) *Reader {
	if maxLine <= 0 {
		maxLine = DefaultMaxLineBytes
	}
	return &Reader{r: bufio.NewReaderSize(r, 64<<10), max: maxLine}
}

// Dropped returns the number of lines discarded so far.
func (r *Reader) Dropped() int {
	return r.dropped
}

// Next returns the next valid message. It returns io.EOF (or the underlying
// read error) once the stream ends; a final unterminated line is still
// considered.
func (r *Reader) Next() (Message, error) {
	for {
		line, err := r.readLine()
		if len(bytes.TrimSpace(line)) > 0 {
			if msg, decErr := Decode(line); decErr == nil {
				return msg, nil
			}
			r.dropped++
		}
		if err != nil {
			return Message{}, err
		}
	}
}

// readLine reads through the next newline. Lines beyond the cap are
// consumed and reported empty.
func (r *Reader) readLine() ([]byte, error) {
	var (
		buf      []byte
		overflow bool
	)
	for {
		chunk, err := r.r.ReadSlice('\n')
		if !overflow {
			if len(buf)+len(chunk) > r.max+1 {
				overflow = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if overflow {
			r.dropped++
			return nil, err
		}
		return buf, err
	}
}
