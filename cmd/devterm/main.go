package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	perrors "github.com/p-blackswan/devterm/internal/errors"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

// Exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitToolFailure = 2
	exitFatalSwap   = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := &state{}
	defer st.close()

	root := newRootCmd(st)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var ee *exitError
	if errors.As(err, &ee) && ee.reported {
		return ee.code
	}
	if st.ui != nil {
		st.ui.Error(err)
	} else {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return exitCode(err)
}

// exitError carries an exit code for a failure already rendered to the user.
type exitError struct {
	code     int
	err      error
	reported bool
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func reported(code int, err error) error {
	return &exitError{code: code, err: err, reported: true}
}

func exitCode(err error) int {
	var ee *exitError
	var fatal *perrors.FatalSwapError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &ee):
		return ee.code
	case errors.As(err, &fatal):
		return exitFatalSwap
	default:
		return exitFailure
	}
}
