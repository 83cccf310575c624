package sandbox

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonwraymond/codecall/sandbox/shim"
)

// Runtime describes how to launch the capability-restricted child.
//
// Contract:
// - Render turns user code into the program written to the source file.
// - Command must grant the child read access to path and nothing else.
// - Env is the complete child environment; the host environment is never inherited.
type Runtime interface {
	// Name identifies the runtime in logs and metrics.
	Name() string

	// Extension is the source file suffix, including the dot.
	Extension() string

	// Render produces the program text for code.
	Render(code string) ([]byte, error)

	// Command returns the executable and arguments that run path.
	Command(path string) (name string, args []string)

	// Env returns the child environment for a run rooted at workDir.
	Env(workDir string) []string
}

// Checker is implemented by runtimes that must verify the installed binary
// before use. New rejects the configuration when Check fails.
type Checker interface {
	Check() error
}

// baseEnv is the minimal environment shared by the bundled runtimes.
func baseEnv(workDir string) []string {
	return []string{
		"PATH=/usr/local/bin:/usr/bin:/bin",
		"HOME=" + workDir,
		"TMPDIR=" + workDir,
		"LANG=en_US.UTF-8",
		"TERM=dumb",
		"NO_COLOR=1",
	}
}

func renderShim(code string) ([]byte, error) {
	mod, err := shim.Render(code)
	if err != nil {
		return nil, err
	}
	return mod.Source, nil
}

// DenoRuntime runs code with Deno. Code may be TypeScript.
type DenoRuntime struct {
	// Binary is the deno executable. Defaults to "deno" on PATH.
	Binary string

	// MaxHeapMB caps the V8 old generation. Zero leaves the default.
	MaxHeapMB int

	// Flags are appended before the source path.
	Flags []string
}

func (r *DenoRuntime) Name() string      { return "deno" }
func (r *DenoRuntime) Extension() string { return ".ts" }

func (r *DenoRuntime) Render(code string) ([]byte, error) {
	return renderShim(code)
}

func (r *DenoRuntime) Command(path string) (string, []string) {
	bin := r.Binary
	if bin == "" {
		bin = "deno"
	}
	args := []string{
		"run",
		"--quiet",
		"--no-prompt",
		"--no-config",
		"--no-lock",
		"--no-remote",
		"--no-npm",
		"--allow-read=" + path,
	}
	if r.MaxHeapMB > 0 {
		args = append(args, "--v8-flags=--max-old-space-size="+strconv.Itoa(r.MaxHeapMB))
	}
	args = append(args, r.Flags...)
	return bin, append(args, path)
}

func (r *DenoRuntime) Env(workDir string) []string {
	return append(baseEnv(workDir), "DENO_DIR="+workDir+"/.deno", "DENO_NO_UPDATE_CHECK=1")
}

// MinNodeMajor is the first Node.js release whose permission model also
// denies network access.
const MinNodeMajor = 25

// NodeRuntime runs code with Node.js under its permission model.
// Code must be plain JavaScript. Releases before MinNodeMajor are refused
// because their permission model leaves the network open.
type NodeRuntime struct {
	// Binary is the node executable. Defaults to "node" on PATH.
	Binary string

	// MaxHeapMB caps the V8 old generation. Zero leaves the default.
	MaxHeapMB int

	// Flags are appended before the source path.
	Flags []string

	once     sync.Once
	checkErr error
}

func (r *NodeRuntime) Name() string      { return "node" }
func (r *NodeRuntime) Extension() string { return ".mjs" }

func (r *NodeRuntime) Render(code string) ([]byte, error) {
	return renderShim(code)
}

func (r *NodeRuntime) binary() string {
	if r.Binary == "" {
		return "node"
	}
	return r.Binary
}

// Check runs the binary once to confirm it is at least MinNodeMajor.
func (r *NodeRuntime) Check() error {
	r.once.Do(func() { r.checkErr = r.checkVersion() })
	return r.checkErr
}

func (r *NodeRuntime) checkVersion() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, r.binary(), "--version").Output()
	if err != nil {
		return fmt.Errorf("node runtime: %s --version: %w", r.binary(), err)
	}
	major, err := nodeMajor(string(out))
	if err != nil {
		return fmt.Errorf("node runtime: %w", err)
	}
	if major < MinNodeMajor {
		return fmt.Errorf("node runtime: version %s cannot deny network access, need v%d or later",
			strings.TrimSpace(string(out)), MinNodeMajor)
	}
	return nil
}

// nodeMajor parses the major version from `node --version` output.
func nodeMajor(version string) (int, error) {
	v := strings.TrimPrefix(strings.TrimSpace(version), "v")
	majorText, _, _ := strings.Cut(v, ".")
	major, err := strconv.Atoi(majorText)
	if err != nil {
		return 0, fmt.Errorf("unrecognized version %q", strings.TrimSpace(version))
	}
	return major, nil
}

func (r *NodeRuntime) Command(path string) (string, []string) {
	args := []string{
		"--permission",
		"--allow-fs-read=" + path,
		"--no-warnings",
	}
	if r.MaxHeapMB > 0 {
		args = append(args, "--max-old-space-size="+strconv.Itoa(r.MaxHeapMB))
	}
	args = append(args, r.Flags...)
	return r.binary(), append(args, path)
}

func (r *NodeRuntime) Env(workDir string) []string {
	return baseEnv(workDir)
}
