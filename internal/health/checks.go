package health

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// Binary checks that name resolves on PATH. A missing optional binary is
// degraded rather than down.
func Binary(name string, required bool) CheckFunc {
	return func(context.Context) Result {
		path, err := exec.LookPath(name)
		if err != nil {
			status := StatusDegraded
			if required {
				status = StatusDown
			}
			return Result{Status: status, Detail: fmt.Sprintf("%s not found on PATH", name)}
		}
		return Result{Status: StatusOK, Detail: path}
	}
}

// Directory checks that path exists and is a directory.
func Directory(path string) CheckFunc {
	return func(context.Context) Result {
		fi, err := os.Stat(path)
		switch {
		case err != nil:
			return Result{Status: StatusDown, Detail: err.Error()}
		case !fi.IsDir():
			return Result{Status: StatusDown, Detail: path + " is not a directory"}
		}
		return Result{Status: StatusOK, Detail: path}
	}
}

// Ping wraps a connectivity probe that describes what it reached, such as
// the state database.
func Ping(ping func(ctx context.Context) (string, error)) CheckFunc {
	return func(ctx context.Context) Result {
		detail, err := ping(ctx)
		if err != nil {
			return Result{Status: StatusDown, Detail: err.Error()}
		}
		return Result{Status: StatusOK, Detail: detail}
	}
}

// Probe reports degraded when fn fails. It suits conditions that only
// block some operations, like an unwritable self-update target.
func Probe(detail string, fn func() error) CheckFunc {
	return func(context.Context) Result {
		if err := fn(); err != nil {
			return Result{Status: StatusDegraded, Detail: err.Error()}
		}
		return Result{Status: StatusOK, Detail: detail}
	}
}
