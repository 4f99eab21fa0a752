// Package vcs drives the git CLI against project directories.
package vcs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/devterm/internal/errors"
	"github.com/p-blackswan/devterm/internal/registry"
	"github.com/p-blackswan/devterm/internal/retry"
	"github.com/p-blackswan/devterm/internal/runner"
)

// Intent names one version-control operation.
type Intent string

const (
	IntentStatus       Intent = "vcs_status"
	IntentStage        Intent = "vcs_stage"
	IntentCommit       Intent = "vcs_commit"
	IntentPush         Intent = "vcs_push"
	IntentPull         Intent = "vcs_pull"
	IntentBranchList   Intent = "vcs_branch_list"
	IntentBranchCreate Intent = "vcs_branch_create"
	IntentInit         Intent = "vcs_init"
	IntentLog          Intent = "vcs_log"
	IntentTag          Intent = "vcs_tag"
	IntentRemotes      Intent = "vcs_remotes"
)

// Report pairs a parsed value with the raw outcome it came from.
type Report[T any] struct {
	Outcome runner.Outcome
	Value   T
}

// Config configures a Git adapter.
type Config struct {
	Binary         string
	Timeout        time.Duration
	NetworkTimeout time.Duration // push and pull
	NetworkRetries int           // total attempts for push and pull
	DefaultRemote  string
}

// Git runs git commands through a Runner.
type Git struct {
	runner         runner.Runner
	bin            string
	timeout        time.Duration
	networkTimeout time.Duration
	retry          retry.Policy
	defaultRemote  string
	logger         zerolog.Logger
}

// NewGit creates a Git adapter.
func NewGit(r runner.Runner, cfg Config, logger zerolog.Logger) *Git {
	g := &Git{
		runner:         r,
		bin:            cfg.Binary,
		timeout:        cfg.Timeout,
		networkTimeout: cfg.NetworkTimeout,
		defaultRemote:  cfg.DefaultRemote,
		logger:         logger.With().Str("component", "vcs.git").Logger(),
	}
	if g.bin == "" {
		g.bin = "git"
	}
	if g.defaultRemote == "" {
		g.defaultRemote = "origin"
	}
	if g.networkTimeout == 0 {
		g.networkTimeout = g.timeout
	}
	g.retry = retry.Network(cfg.NetworkRetries)
	g.retry.OnRetry = func(attempt int, err error) {
		g.logger.Warn().Err(err).Int("attempt", attempt).Msg("network git command timed out, retrying")
	}
	return g
}

// Status reports the branch, upstream tracking and changed paths.
func (g *Git) Status(ctx context.Context, p registry.Project) (Report[Status], error) {
	out := g.run(ctx, p, g.timeout, "status", "--porcelain=v1", "--branch")
	rep := Report[Status]{Outcome: out}
	if !out.OK() {
		return rep, out.Failure()
	}
	st, err := parseStatus(out.Result.Stdout)
	if err != nil {
		return rep, &perrors.MalformedOutputError{Intent: string(IntentStatus), Raw: out.Result.Stdout, Err: err}
	}
	rep.Value = st
	return rep, nil
}

// Stage adds paths to the index; no paths stages everything.
func (g *Git) Stage(ctx context.Context, p registry.Project, paths []string) runner.Outcome {
	if len(paths) == 0 {
		return g.run(ctx, p, g.timeout, "add", "-A")
	}
	return g.run(ctx, p, g.timeout, append([]string{"add", "--"}, paths...)...)
}

// Commit records the index with message.
func (g *Git) Commit(ctx context.Context, p registry.Project, message string) runner.Outcome {
	if strings.TrimSpace(message) == "" {
		err := fmt.Errorf("%w: commit message is empty", perrors.ErrInvalidInput)
		return runner.ExecutionFailure(err, err.Error(), nil)
	}
	return g.run(ctx, p, g.timeout, "commit", "-m", message)
}

// Push sends branch to remote. Empty values default to the configured remote
// and the current branch.
func (g *Git) Push(ctx context.Context, p registry.Project, remote, branch string) runner.Outcome {
	return g.network(ctx, p, "push", remote, branch)
}

// Pull fetches and merges branch from remote, with the same defaults as Push.
func (g *Git) Pull(ctx context.Context, p registry.Project, remote, branch string) runner.Outcome {
	return g.network(ctx, p, "pull", remote, branch)
}

// Branches lists local branches.
func (g *Git) Branches(ctx context.Context, p registry.Project) (Report[BranchList], error) {
	out := g.run(ctx, p, g.timeout, "branch", "--list")
	rep := Report[BranchList]{Outcome: out}
	if !out.OK() {
		return rep, out.Failure()
	}
	rep.Value = parseBranches(out.Result.Stdout)
	return rep, nil
}

// CreateBranch creates a branch at HEAD without switching to it.
func (g *Git) CreateBranch(ctx context.Context, p registry.Project, name string) runner.Outcome {
	if strings.TrimSpace(name) == "" || strings.HasPrefix(name, "-") {
		err := fmt.Errorf("%w: branch name %q", perrors.ErrInvalidInput, name)
		return runner.ExecutionFailure(err, err.Error(), nil)
	}
	return g.run(ctx, p, g.timeout, "branch", name)
}

// Init creates a repository in the project root.
func (g *Git) Init(ctx context.Context, p registry.Project) runner.Outcome {
	return g.run(ctx, p, g.timeout, "init")
}

// Log returns the last n commits, newest first.
func (g *Git) Log(ctx context.Context, p registry.Project, n int) (Report[[]Commit], error) {
	if n <= 0 {
		n = 10
	}
	out := g.run(ctx, p, g.timeout, "log", "--oneline", "-n", fmt.Sprint(n))
	rep := Report[[]Commit]{Outcome: out}
	if !out.OK() {
		return rep, out.Failure()
	}
	commits, err := parseLog(out.Result.Stdout)
	if err != nil {
		return rep, &perrors.MalformedOutputError{Intent: string(IntentLog), Raw: out.Result.Stdout, Err: err}
	}
	rep.Value = commits
	return rep, nil
}

// Tag creates an annotated tag. An empty message reuses the tag name.
func (g *Git) Tag(ctx context.Context, p registry.Project, name, message string) runner.Outcome {
	if strings.TrimSpace(name) == "" || strings.HasPrefix(name, "-") {
		err := fmt.Errorf("%w: tag name %q", perrors.ErrInvalidInput, name)
		return runner.ExecutionFailure(err, err.Error(), nil)
	}
	if message == "" {
		message = name
	}
	return g.run(ctx, p, g.timeout, "tag", "-a", name, "-m", message)
}

// Remotes lists configured remotes.
func (g *Git) Remotes(ctx context.Context, p registry.Project) (Report[[]Remote], error) {
	out := g.run(ctx, p, g.timeout, "remote", "-v")
	rep := Report[[]Remote]{Outcome: out}
	if !out.OK() {
		return rep, out.Failure()
	}
	remotes, err := parseRemotes(out.Result.Stdout)
	if err != nil {
		return rep, &perrors.MalformedOutputError{Intent: string(IntentRemotes), Raw: out.Result.Stdout, Err: err}
	}
	rep.Value = remotes
	return rep, nil
}

// IsRepo reports whether the project root is inside a git work tree.
func (g *Git) IsRepo(ctx context.Context, p registry.Project) (bool, runner.Outcome) {
	out := g.run(ctx, p, g.timeout, "rev-parse", "--is-inside-work-tree")
	if out.OK() {
		return strings.TrimSpace(string(out.Result.Stdout)) == "true", out
	}
	return false, out
}

func (g *Git) network(ctx context.Context, p registry.Project, verb, remote, branch string) runner.Outcome {
	if remote == "" {
		remote = g.defaultRemote
	}
	if branch == "" {
		rep, err := g.Status(ctx, p)
		if err != nil {
			if !rep.Outcome.OK() {
				return rep.Outcome
			}
			return runner.ExecutionFailure(err, "could not determine current branch", rep.Outcome.Result)
		}
		if rep.Value.Branch == "" || rep.Value.Detached {
			err := fmt.Errorf("%w: no current branch to %s", perrors.ErrInvalidInput, verb)
			return runner.ExecutionFailure(err, err.Error(), nil)
		}
		branch = rep.Value.Branch
	}

	var out runner.Outcome
	attempts, _ := retry.Do(ctx, g.retry, func(ctx context.Context) error {
		out = g.run(ctx, p, g.networkTimeout, verb, remote, branch)
		if out.Status == runner.StatusExecutionFailure {
			return out.Err
		}
		return nil
	})
	if attempts > 1 {
		g.logger.Info().Str("project", p.Name).Str("verb", verb).Int("attempts", attempts).
			Str("status", out.Status.String()).Msg("network git command finished after retries")
	}
	return out
}

func (g *Git) run(ctx context.Context, p registry.Project, timeout time.Duration, args ...string) runner.Outcome {
	if err := p.CheckRoot(); err != nil {
		return runner.ExecutionFailure(err, err.Error(), nil)
	}
	cmd := runner.Command{Name: g.bin, Args: args, Dir: p.Root, Timeout: timeout}
	g.logger.Debug().Str("project", p.Name).Str("cmd", cmd.String()).Msg("git")
	return g.runner.Run(ctx, cmd)
}
