// Package runner executes external commands and classifies their results
// into typed outcomes. Every capability that talks to a toolchain or a VCS
// goes through a Runner.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/devterm/internal/errors"
)

const (
	// DefaultOutputLimit bounds each captured stream.
	DefaultOutputLimit = 1 << 20

	// DefaultTimeout applies when neither the command nor the runner sets one.
	DefaultTimeout = 2 * time.Minute

	// waitDelay bounds how long Wait blocks on pipes held open by orphaned
	// grandchildren after the direct child has exited or been killed.
	waitDelay = 2 * time.Second
)

// Status classifies an Outcome.
type Status int

const (
	StatusSuccess          Status = iota // ran, exit code 0
	StatusToolFailure                    // ran, nonzero exit code
	StatusExecutionFailure               // could not be launched, or killed by timeout
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusToolFailure:
		return "tool_failure"
	case StatusExecutionFailure:
		return "execution_failure"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Command describes one external invocation.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Env     []string // appended to the inherited environment
	Timeout time.Duration
}

// String renders the command line for logs and diagnostics.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// CommandResult is the immutable record of one finished process.
type CommandResult struct {
	Name            string
	Args            []string
	Dir             string
	ExitCode        int
	Stdout          []byte
	Stderr          []byte
	StdoutTruncated bool
	StderrTruncated bool
	Duration        time.Duration
}

// Outcome is the typed result of attempting a command. Result is always set
// for Success and ToolFailure; ExecutionFailure may carry a partial Result
// (for example the output captured before a timeout).
type Outcome struct {
	Status Status
	Result *CommandResult
	Reason string
	Err    error
}

// OK reports whether the command ran and exited zero.
func (o Outcome) OK() bool { return o.Status == StatusSuccess }

// Failure returns nil on success, otherwise an error describing the outcome.
func (o Outcome) Failure() error {
	switch o.Status {
	case StatusSuccess:
		return nil
	case StatusToolFailure:
		return fmt.Errorf("%s exited with code %d", o.Result.Name, o.Result.ExitCode)
	default:
		if o.Err != nil {
			return o.Err
		}
		return fmt.Errorf("%w: %s", perrors.ErrExecutionFailure, o.Reason)
	}
}

// Success builds a Success outcome.
func Success(res *CommandResult) Outcome {
	return Outcome{Status: StatusSuccess, Result: res}
}

// ToolFailure builds a ToolFailure outcome.
func ToolFailure(res *CommandResult) Outcome {
	return Outcome{Status: StatusToolFailure, Result: res, Reason: fmt.Sprintf("exit code %d", res.ExitCode)}
}

// ExecutionFailure builds an ExecutionFailure outcome. res may be nil.
func ExecutionFailure(err error, reason string, res *CommandResult) Outcome {
	return Outcome{Status: StatusExecutionFailure, Result: res, Reason: reason, Err: err}
}

// Runner executes commands. Implementations never retry.
type Runner interface {
	Run(ctx context.Context, cmd Command) Outcome
}

// Func adapts a function to the Runner interface.
type Func func(ctx context.Context, cmd Command) Outcome

func (f Func) Run(ctx context.Context, cmd Command) Outcome { return f(ctx, cmd) }

// Exec runs commands as local child processes.
type Exec struct {
	outputLimit int
	timeout     time.Duration
	logger      zerolog.Logger
}

// NewExec creates an Exec runner.
// outputLimit bounds each captured stream (0 = DefaultOutputLimit).
// timeout applies to commands that do not carry their own (0 = DefaultTimeout).
func NewExec(outputLimit int, timeout time.Duration, logger zerolog.Logger) *Exec {
	if outputLimit <= 0 {
		outputLimit = DefaultOutputLimit
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Exec{
		outputLimit: outputLimit,
		timeout:     timeout,
		logger:      logger.With().Str("component", "runner.exec").Logger(),
	}
}

// Run launches cmd and blocks until it exits or its timeout expires.
func (e *Exec) Run(ctx context.Context, cmd Command) Outcome {
	if cmd.Name == "" {
		return ExecutionFailure(fmt.Errorf("%w: empty command", perrors.ErrExecutableNotFound), "empty command", nil)
	}
	if failure, ok := checkDir(cmd.Dir); !ok {
		e.logger.Warn().Str("cmd", cmd.String()).Str("dir", cmd.Dir).Str("reason", failure.Reason).Msg("refusing to launch")
		return failure
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := exec.CommandContext(runCtx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	configureProcessGroup(c)
	c.WaitDelay = waitDelay

	stdout := newCappedBuffer(e.outputLimit)
	stderr := newCappedBuffer(e.outputLimit)
	c.Stdout = stdout
	c.Stderr = stderr

	e.logger.Debug().Str("cmd", cmd.String()).Str("dir", cmd.Dir).Dur("timeout", timeout).Msg("exec")

	start := time.Now()
	if err := c.Start(); err != nil {
		failure := classifyStartError(cmd, err)
		e.logger.Warn().Err(failure.Err).Str("cmd", cmd.String()).Msg("launch failed")
		return failure
	}
	waitErr := c.Wait()

	res := &CommandResult{
		Name:            cmd.Name,
		Args:            append([]string(nil), cmd.Args...),
		Dir:             cmd.Dir,
		ExitCode:        -1,
		Stdout:          stdout.Bytes(),
		Stderr:          stderr.Bytes(),
		StdoutTruncated: stdout.Truncated(),
		StderrTruncated: stderr.Truncated(),
		Duration:        time.Since(start),
	}
	if c.ProcessState != nil {
		res.ExitCode = c.ProcessState.ExitCode()
	}

	log := e.logger.With().Str("cmd", cmd.String()).Int("exit_code", res.ExitCode).Dur("duration", res.Duration).Logger()

	if waitErr != nil && runCtx.Err() != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			log.Warn().Dur("timeout", timeout).Msg("killed after timeout")
			return ExecutionFailure(
				fmt.Errorf("%w: %s after %s", perrors.ErrTimeout, cmd.String(), timeout),
				fmt.Sprintf("timed out after %s", timeout), res)
		}
		log.Warn().Msg("canceled")
		return ExecutionFailure(fmt.Errorf("%w: %s", perrors.ErrCanceled, cmd.String()), "canceled", res)
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil, errors.As(waitErr, &exitErr), errors.Is(waitErr, exec.ErrWaitDelay):
		// The process ran to completion; its exit status decides.
	default:
		log.Error().Err(waitErr).Msg("wait failed")
		return ExecutionFailure(fmt.Errorf("%w: %s: %v", perrors.ErrExecutionFailure, cmd.String(), waitErr), waitErr.Error(), res)
	}

	if res.ExitCode == 0 {
		log.Debug().Msg("exec done")
		return Success(res)
	}
	log.Debug().Msg("exec reported failure")
	return ToolFailure(res)
}

func checkDir(dir string) (Outcome, bool) {
	if dir == "" {
		return Outcome{}, true
	}
	fi, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrPermission):
		return ExecutionFailure(fmt.Errorf("%w: %s", perrors.ErrPermissionDenied, dir),
			fmt.Sprintf("permission denied on working directory %s", dir), nil), false
	case err != nil:
		return ExecutionFailure(fmt.Errorf("%w: %s: %v", perrors.ErrBadWorkingDir, dir, err),
			fmt.Sprintf("working directory %s does not exist", dir), nil), false
	case !fi.IsDir():
		return ExecutionFailure(fmt.Errorf("%w: %s is not a directory", perrors.ErrBadWorkingDir, dir),
			fmt.Sprintf("working directory %s is not a directory", dir), nil), false
	}
	return Outcome{}, true
}

func classifyStartError(cmd Command, err error) Outcome {
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return ExecutionFailure(fmt.Errorf("%w: %s: %v", perrors.ErrExecutableNotFound, cmd.Name, err),
			fmt.Sprintf("executable %q not found", cmd.Name), nil)
	case errors.Is(err, fs.ErrPermission):
		return ExecutionFailure(fmt.Errorf("%w: %s: %v", perrors.ErrPermissionDenied, cmd.Name, err),
			fmt.Sprintf("permission denied launching %q", cmd.Name), nil)
	default:
		return ExecutionFailure(fmt.Errorf("%w: %s: %v", perrors.ErrExecutionFailure, cmd.Name, err),
			fmt.Sprintf("could not start %q: %v", cmd.Name, err), nil)
	}
}
