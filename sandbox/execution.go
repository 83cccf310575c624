package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jonwraymond/codecall/backend"
	"github.com/jonwraymond/codecall/sandbox/protocol"
)

// execution is the state of one Execute call. Fields without a comment are
// owned by the message loop goroutine.
type execution struct {
	cfg        *Config
	id         string
	log        Logger
	onProgress ProgressFunc
	timeout    time.Duration
	limiter    *rate.Limiter

	state    state
	workDir  string
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stderr   bytes.Buffer
	replies  *protocol.Writer
	progress []any
	seen     map[uint64]struct{}
	calls    int
	exited   bool
	exitErr  error

	// quit stops the stdout reader; closed by teardown.
	quit chan struct{}
	// exitCh receives the result of cmd.Wait once.
	exitCh chan error

	mu      sync.Mutex // guards records
	records []ToolCallRecord

	teardownOnce sync.Once
	cancel       context.CancelCauseFunc
	started      time.Time
}

func newExecution(cfg *Config, id string, log Logger, onProgress ProgressFunc, timeout time.Duration) *execution {
	return &execution{
		cfg:        cfg,
		id:         id,
		log:        log,
		onProgress: onProgress,
		timeout:    timeout,
		limiter:    cfg.newLimiter(),
		state:      stateCreated,
		seen:       make(map[uint64]struct{}),
		quit:       make(chan struct{}),
		exitCh:     make(chan error, 1),
		progress:   []any{},
	}
}

// run drives the execution through its lifecycle and always tears down.
func (x *execution) run(parent context.Context, code string) (Result, error) {
	x.started = time.Now()

	ctx, cancel := context.WithCancelCause(parent)
	x.cancel = cancel
	ctx, stop := context.WithTimeoutCause(ctx, x.timeout, ErrTimeout)
	defer stop()

	msgs, err := x.spawn(code)
	if err != nil {
		x.teardown()
		res := errorResult(x.id, OutcomeSpawn, ErrSpawn, err.Error())
		res.Duration = time.Since(x.started)
		return res, fmt.Errorf("%w: %w", ErrSpawn, err)
	}

	res := x.loop(ctx, msgs)
	x.teardown()

	res.ExecutionID = x.id
	res.Progress = x.progress
	res.ToolCalls = x.snapshotRecords()
	res.Duration = time.Since(x.started)
	return res, nil
}

// spawn writes the program and starts the child.
func (x *execution) spawn(code string) (<-chan protocol.Message, error) {
	x.state = stateSpawning
	rt := x.cfg.Runtime

	program, err := rt.Render(code)
	if err != nil {
		return nil, err
	}

	x.workDir, err = os.MkdirTemp(x.cfg.TempDir, "codecall-*")
	if err != nil {
		return nil, fmt.Errorf("creating work dir: %w", err)
	}
	path := filepath.Join(x.workDir, "main"+rt.Extension())
	if err := os.WriteFile(path, program, 0o600); err != nil {
		return nil, fmt.Errorf("writing source: %w", err)
	}

	name, args := rt.Command(path)
	cmd := exec.Command(name, args...)
	cmd.Dir = x.workDir
	cmd.Env = rt.Env(x.workDir)
	cmd.Stderr = &limitedWriter{w: &x.stderr, remaining: x.cfg.MaxStderrBytes}
	cmd.WaitDelay = x.cfg.WaitDelay
	isolate(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", rt.Name(), err)
	}

	x.cmd = cmd
	x.stdin = stdin
	x.replies = protocol.NewWriter(stdin)
	x.state = stateRunning

	msgs := make(chan protocol.Message)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		r := protocol.NewReader(stdout, x.cfg.MaxMessageBytes)
		defer func() {
			if n := r.Dropped(); n > 0 {
				x.log.Warn("dropped malformed messages", "count", n)
			}
		}()
		for {
			msg, err := r.Next()
			if err != nil {
				return
			}
			select {
			case msgs <- msg:
			case <-x.quit:
				return
			}
		}
	}()
	go func() {
		<-readDone
		x.exitCh <- cmd.Wait()
	}()
	return msgs, nil
}

// loop processes child messages strictly in order until a terminal event.
func (x *execution) loop(ctx context.Context, msgs <-chan protocol.Message) Result {
	for {
		select {
		case msg := <-msgs:
			switch msg.Type {
			case protocol.TypeCall:
				x.dispatch(ctx, msg)
			case protocol.TypeProgress:
				x.emitProgress(msg.Data)
			case protocol.TypeReturn:
				x.state = stateCompleted
				return x.completed(msg.Data)
			case protocol.TypeError:
				x.state = stateCompleted
				return x.failed(msg)
			}

		case err := <-x.exitCh:
			x.exited = true
			x.exitErr = err
			x.state = stateCrashed
			return x.crashed()

		case <-ctx.Done():
			x.state = stateTimedOut
			cause := context.Cause(ctx)
			if errors.Is(cause, ErrTimeout) || errors.Is(cause, context.DeadlineExceeded) {
				return errorResult(x.id, OutcomeTimeout, ErrTimeout, "Execution timeout")
			}
			return errorResult(x.id, OutcomeCanceled, ErrCanceled, "Execution canceled")
		}
	}
}

func (x *execution) completed(data json.RawMessage) Result {
	var output any
	if err := json.Unmarshal(data, &output); err != nil {
		return errorResult(x.id, OutcomeValidation, ErrResultValidation,
			fmt.Sprintf("Result validation failed: %v", err))
	}
	return Result{
		ExecutionID: x.id,
		Status:      StatusSuccess,
		Output:      output,
		Outcome:     OutcomeCompleted,
		ExitCode:    -1,
	}
}

func (x *execution) failed(msg protocol.Message) Result {
	if msg.Kind == protocol.KindValidation {
		return errorResult(x.id, OutcomeValidation, ErrResultValidation, msg.Message)
	}
	return errorResult(x.id, OutcomeException, ErrUncaughtException, msg.Message)
}

// crashed builds the result for a child that exited without a terminal
// message. Stderr is only complete once Wait has returned.
func (x *execution) crashed() Result {
	code := -1
	if x.cmd.ProcessState != nil {
		code = x.cmd.ProcessState.ExitCode()
	}
	message := strings.TrimSpace(x.stderr.String())
	if message == "" {
		message = fmt.Sprintf("process exited with code %d", code)
	}
	res := errorResult(x.id, OutcomeCrash, ErrProcessCrash, message)
	res.ExitCode = code
	return res
}

func (x *execution) emitProgress(data json.RawMessage) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		x.log.Warn("progress entry dropped", "error", err)
		return
	}
	x.progress = append(x.progress, v)
	x.cfg.Metrics.ProgressEmitted()
	if x.onProgress != nil {
		x.onProgress(v)
	}
}

// dispatch validates a call in order and runs its handler asynchronously.
func (x *execution) dispatch(ctx context.Context, msg protocol.Message) {
	if _, dup := x.seen[msg.ID]; dup {
		x.log.Warn("duplicate call id ignored", "id", msg.ID, "tool", msg.Tool)
		return
	}
	x.seen[msg.ID] = struct{}{}
	x.calls++

	if limit := x.cfg.MaxToolCalls; limit > 0 && x.calls > limit {
		x.reject(msg, fmt.Errorf("%w: max tool calls (%d) exceeded", ErrLimitExceeded, limit))
		return
	}

	args, err := msg.ArgsObject()
	if err != nil {
		x.reject(msg, err)
		return
	}

	go x.invoke(ctx, msg.ID, msg.Tool, args)
}

func (x *execution) invoke(ctx context.Context, id uint64, tool string, args map[string]any) {
	rec := ToolCallRecord{ID: id, Tool: tool, Args: deepCopyArgs(args)}
	start := time.Now()

	out, err := x.call(ctx, tool, args)

	rec.DurationMs = since(start)
	resolved := err == nil || !errors.Is(err, backend.ErrUnknownTool)
	x.cfg.Metrics.ToolCallFinished(x.metricPath(tool, resolved), err != nil, time.Since(start).Seconds())
	if err != nil {
		rec.Error = errorText(err)
		x.record(rec)
		x.reply(protocol.Reply{ID: id, Err: rec.Error})
		return
	}
	rec.Result = out
	x.record(rec)
	x.reply(protocol.Reply{ID: id, Result: out})
}

// reject fails a call that is never handed to a handler.
func (x *execution) reject(msg protocol.Message, err error) {
	x.cfg.Metrics.ToolCallFinished(x.metricPath(msg.Tool, false), true, 0)
	x.record(ToolCallRecord{ID: msg.ID, Tool: msg.Tool, Error: errorText(err)})
	x.reply(protocol.Reply{ID: msg.ID, Err: errorText(err)})
}

// metricPath bounds the tool label to registered paths. Paths come from
// untrusted code, so anything the caller cannot vouch for is "unknown".
func (x *execution) metricPath(path string, resolved bool) string {
	if idx, ok := x.cfg.Tools.(ToolIndex); ok {
		resolved = idx.Has(path)
	}
	if !resolved {
		return UnknownToolLabel
	}
	return path
}

// errorText is the message sent for a failed call. It is never empty so
// the child always sees a failure.
func errorText(err error) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "tool call failed"
}

// call runs the handler, converting panics into errors.
func (x *execution) call(ctx context.Context, tool string, args map[string]any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			x.log.Error("tool handler panicked", "tool", tool, "panic", r)
			out, err = nil, fmt.Errorf("tool %s panicked: %v", tool, r)
		}
	}()
	if x.limiter != nil {
		if err := x.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: call rate: %w", ErrLimitExceeded, err)
		}
	}
	return x.cfg.Tools.Call(ctx, tool, args)
}

// reply writes to the child. Failures after teardown are expected and ignored.
func (x *execution) reply(r protocol.Reply) {
	if err := x.replies.Write(r); err != nil {
		select {
		case <-x.quit:
		default:
			x.log.Warn("reply not delivered", "id", r.ID, "error", err)
		}
	}
}

func (x *execution) record(rec ToolCallRecord) {
	x.mu.Lock()
	x.records = append(x.records, rec)
	x.mu.Unlock()
}

func (x *execution) snapshotRecords() []ToolCallRecord {
	x.mu.Lock()
	out := append([]ToolCallRecord(nil), x.records...)
	x.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// teardown stops the child, releases its resources and removes the work
// directory. It is safe to call more than once. In-flight handlers are
// canceled but not awaited.
func (x *execution) teardown() {
	x.teardownOnce.Do(func() {
		close(x.quit)
		if x.cancel != nil {
			x.cancel(context.Canceled)
		}

		if x.cmd != nil {
			_ = x.stdin.Close()
			if !x.exited {
				if err := kill(x.cmd); err != nil {
					x.log.Warn("kill failed", "error", err)
				} else {
					x.log.Info("child killed", "state", x.state.String())
				}
				x.exitErr = <-x.exitCh
				x.exited = true
			}
		}

		if x.workDir != "" {
			if err := os.RemoveAll(x.workDir); err != nil {
				x.log.Warn("failed to remove work dir", "dir", x.workDir, "error", err)
			}
		}
		x.state = stateTornDown
	})
}
