// Package tool runs external programs such as bundler and rails generators.
package tool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Result is the outcome of an external command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// ExternalTool runs a command in dir and captures its output.
// A non-zero exit status is reported in Result, not as an error.
type ExternalTool interface {
	Run(ctx context.Context, dir, command string, args ...string) (Result, error)
}

// ExecTool runs commands with os/exec.
type ExecTool struct {
	// Env is appended to the inherited environment.
	Env []string
}

// NewExecTool creates an ExecTool.
func NewExecTool(env ...string) *ExecTool {
	return &ExecTool{Env: env}
}

func (e *ExecTool) Run(ctx context.Context, dir, command string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	if strings.TrimSpace(dir) != "" {
		cmd.Dir = dir
	}
	if len(e.Env) > 0 {
		cmd.Env = append(cmd.Environ(), e.Env...)
	}

	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	res := Result{Stdout: out.String(), Stderr: errb.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("%s: %w", command, err)
	}
	return res, nil
}

// Shell runs a command line through sh -c.
func Shell(ctx context.Context, t ExternalTool, dir, line string) (Result, error) {
	return t.Run(ctx, dir, "sh", "-c", line)
}

// Call is a command received by Fake.
type Call struct {
	Dir     string
	Command string
	Args    []string
}

// String renders the call as a command line.
func (c Call) String() string {
	return strings.TrimSpace(c.Command + " " + strings.Join(c.Args, " "))
}

// Fake records calls and answers them from a script.
type Fake struct {
	mu    sync.Mutex
	calls []Call
	// Results maps a rendered command line to its result. Unknown commands succeed.
	Results map[string]Result
	// Err, when set, is returned by every call.
	Err error
}

func (f *Fake) Run(ctx context.Context, dir, command string, args ...string) (Result, error) {
	call := Call{Dir: dir, Command: command, Args: append([]string(nil), args...)}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if f.Err != nil {
		return Result{}, f.Err
	}
	return f.Results[call.String()], nil
}

// Calls returns the recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}
