// Package pipeline sequences toolchain and VCS intents into pipelines with
// required/optional failure semantics and per-project exclusivity.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/devterm/internal/errors"
	"github.com/p-blackswan/devterm/internal/registry"
	"github.com/p-blackswan/devterm/internal/runner"
	"github.com/p-blackswan/devterm/internal/store"
	"github.com/p-blackswan/devterm/internal/toolchain"
	"github.com/p-blackswan/devterm/internal/vcs"
)

// Registry is the subset of the project registry the orchestrator needs.
type Registry interface {
	Resolve(name string) (registry.Project, error)
	Register(name, path string, opts ...registry.Option) (registry.Project, error)
	Rescan(name string) (registry.Project, error)
}

// History records run summaries.
type History interface {
	SaveRun(r *store.RunRecord) error
}

// Recorder receives pipeline metrics.
type Recorder interface {
	RecordIntent(intent, status string, d time.Duration)
	RecordPipeline(pipeline, result string)
	RecordBusy()
}

// StepResult is the record of one executed step. Outcome is always set;
// Err carries a typed error when the step failed before or after the tool
// ran (unknown project, invalid root, malformed output).
type StepResult struct {
	Index     int
	Step      Step
	Outcome   runner.Outcome
	Err       error
	Detail    any // parsed value, e.g. toolchain.DependencyListing or vcs.Status
	StartedAt time.Time
	Duration  time.Duration
}

// Succeeded reports whether the step resolved to Success.
func (s StepResult) Succeeded() bool {
	return s.Err == nil && s.Outcome.OK()
}

// Status is the history label of the step.
func (s StepResult) Status() string {
	switch {
	case errors.Is(s.Err, perrors.ErrMalformedOutput):
		return "malformed_output"
	case s.Err != nil && s.Outcome.OK():
		return "error"
	}
	return s.Outcome.Status.String()
}

// Failure returns the reason the step did not succeed, or nil.
func (s StepResult) Failure() error {
	if s.Err != nil {
		return s.Err
	}
	return s.Outcome.Failure()
}

// Result is the record of a pipeline run. Steps holds only executed steps.
type Result struct {
	ID        string
	Pipeline  string
	Steps     []StepResult
	Aborted   bool
	AbortedAt int // index of the failing required step, -1 when not aborted
	Err       error
}

// Succeeded reports whether every required step succeeded.
func (r Result) Succeeded() bool { return !r.Aborted }

// Summary is a one-line description of the run.
func (r Result) Summary() string {
	if r.Aborted {
		return fmt.Sprintf("%s aborted at step %d (%s): %v",
			r.Pipeline, r.AbortedAt+1, r.Steps[len(r.Steps)-1].Step.Intent, r.Err)
	}
	return fmt.Sprintf("%s completed %d steps", r.Pipeline, len(r.Steps))
}

// Config configures an Orchestrator.
type Config struct {
	Workspace string // default parent directory for new projects
}

// Orchestrator runs pipelines strictly sequentially.
type Orchestrator struct {
	registry  Registry
	toolchain *toolchain.Adapter
	vcs       *vcs.Git
	history   History
	metrics   Recorder
	leases    *Leases
	workspace string
	logger    zerolog.Logger
	now       func() time.Time
}

// New creates an Orchestrator. history and metrics may be nil. leases may be
// shared with other components that need the same exclusivity.
func New(reg Registry, tc *toolchain.Adapter, git *vcs.Git, leases *Leases, history History, metrics Recorder, cfg Config, logger zerolog.Logger) *Orchestrator {
	if leases == nil {
		leases = NewLeases()
	}
	return &Orchestrator{
		registry:  reg,
		toolchain: tc,
		vcs:       git,
		history:   history,
		metrics:   metrics,
		leases:    leases,
		workspace: cfg.Workspace,
		logger:    logger.With().Str("component", "pipeline.orchestrator").Logger(),
		now:       time.Now,
	}
}

// Execute runs pl. Leases for every distinct target are taken up front and
// held until the pipeline ends; a busy target returns *perrors.BusyError
// without executing anything. Step failures are reported through Result.
func (o *Orchestrator) Execute(ctx context.Context, pl Pipeline) (Result, error) {
	res := Result{ID: uuid.NewString(), Pipeline: pl.Name, AbortedAt: -1}
	if len(pl.Steps) == 0 {
		return res, fmt.Errorf("%w: pipeline %q has no steps", perrors.ErrInvalidInput, pl.Name)
	}

	release, err := o.leases.Acquire(o.targets(pl)...)
	if err != nil {
		o.logger.Warn().Err(err).Str("pipeline", pl.Name).Msg("pipeline refused")
		if o.metrics != nil {
			o.metrics.RecordBusy()
			o.metrics.RecordPipeline(pl.Name, "busy")
		}
		return res, err
	}
	defer release()

	log := o.logger.With().Str("pipeline", pl.Name).Str("run_id", res.ID).Logger()
	log.Info().Int("steps", len(pl.Steps)).Msg("pipeline started")

	for i, step := range pl.Steps {
		sr := o.runStep(ctx, i, step)
		res.Steps = append(res.Steps, sr)
		o.record(res.ID, pl.Name, sr)

		if sr.Succeeded() {
			log.Debug().Int("step", i).Str("intent", string(step.Intent)).Dur("duration", sr.Duration).Msg("step succeeded")
			continue
		}
		if !step.Required {
			log.Warn().Err(sr.Failure()).Int("step", i).Str("intent", string(step.Intent)).Msg("optional step failed, continuing")
			continue
		}
		res.Aborted = true
		res.AbortedAt = i
		res.Err = sr.Failure()
		log.Warn().Err(res.Err).Int("step", i).Str("intent", string(step.Intent)).Msg("required step failed, pipeline aborted")
		break
	}

	result := "succeeded"
	if res.Aborted {
		result = "aborted"
	} else {
		log.Info().Msg("pipeline completed")
	}
	if o.metrics != nil {
		o.metrics.RecordPipeline(pl.Name, result)
	}
	return res, nil
}

// targets resolves the root directory every step will touch. Steps whose
// project does not exist yet lease the directory a preceding new_project
// step will create; unresolvable steps lease nothing and fail when run.
func (o *Orchestrator) targets(pl Pipeline) []string {
	planned := make(map[string]string)
	var paths []string
	for _, step := range pl.Steps {
		if step.Intent == IntentNewProject {
			dir := filepath.Join(o.workspaceFor(step), step.Project)
			planned[step.Project] = dir
			paths = append(paths, dir)
			continue
		}
		if p, err := o.registry.Resolve(step.Project); err == nil {
			paths = append(paths, p.Root)
		} else if dir, ok := planned[step.Project]; ok {
			paths = append(paths, dir)
		}
	}
	return paths
}

// workspaceFor returns the absolute parent directory of a new project.
func (o *Orchestrator) workspaceFor(step Step) string {
	ws := o.workspace
	if step.Params.Workspace != "" {
		ws = step.Params.Workspace
	}
	if abs, err := filepath.Abs(ws); err == nil {
		return abs
	}
	return ws
}

func (o *Orchestrator) runStep(ctx context.Context, i int, step Step) StepResult {
	sr := StepResult{Index: i, Step: step, StartedAt: o.now()}
	sr.Outcome, sr.Detail, sr.Err = o.dispatch(ctx, step)
	sr.Duration = o.now().Sub(sr.StartedAt)
	return sr
}

// dispatch performs one intent. Errors that occur before a tool runs are
// folded into an ExecutionFailure outcome so the outcome is never empty.
func (o *Orchestrator) dispatch(ctx context.Context, step Step) (runner.Outcome, any, error) {
	if step.Intent == IntentNewProject {
		return o.newProject(ctx, step)
	}

	p, err := o.registry.Resolve(step.Project)
	if err != nil {
		return failed(err), nil, err
	}
	if err := p.CheckRoot(); err != nil {
		return failed(err), nil, err
	}

	prm := step.Params
	switch step.Intent {
	case IntentBuild:
		return plain(o.toolchain.Build(ctx, p, prm.Build))
	case IntentTest:
		return plain(o.toolchain.Test(ctx, p))
	case IntentRun:
		return plain(o.toolchain.Run(ctx, p, prm.Args))
	case IntentClean:
		return plain(o.toolchain.Clean(ctx, p))
	case IntentCheck:
		return plain(o.toolchain.Check(ctx, p))
	case IntentDependencyInfo:
		listing, err := o.toolchain.DependencyInfo(ctx, p)
		return parsed(listing.Outcome, listing, err)
	case IntentAddDependency:
		return o.rescanAfter(p, o.toolchain.AddDependency(ctx, p, prm.Name, prm.Version))
	case IntentInstall:
		return o.rescanAfter(p, o.toolchain.InstallDependencies(ctx, p))

	case IntentStatus:
		rep, err := o.vcs.Status(ctx, p)
		return parsed(rep.Outcome, rep.Value, err)
	case IntentStage:
		return plain(o.vcs.Stage(ctx, p, prm.Args))
	case IntentCommit:
		return plain(o.vcs.Commit(ctx, p, prm.Message))
	case IntentPush:
		return plain(o.vcs.Push(ctx, p, prm.Remote, prm.Branch))
	case IntentPull:
		return plain(o.vcs.Pull(ctx, p, prm.Remote, prm.Branch))
	case IntentBranchList:
		rep, err := o.vcs.Branches(ctx, p)
		return parsed(rep.Outcome, rep.Value, err)
	case IntentBranchCreate:
		return plain(o.vcs.CreateBranch(ctx, p, prm.Name))
	case IntentInit:
		return plain(o.vcs.Init(ctx, p))
	case IntentLog:
		rep, err := o.vcs.Log(ctx, p, prm.Limit)
		return parsed(rep.Outcome, rep.Value, err)
	case IntentTag:
		return plain(o.vcs.Tag(ctx, p, prm.Name, prm.Message))
	case IntentRemotes:
		rep, err := o.vcs.Remotes(ctx, p)
		return parsed(rep.Outcome, rep.Value, err)
	}

	err = fmt.Errorf("%w: unknown intent %q", perrors.ErrInvalidInput, step.Intent)
	return failed(err), nil, err
}

func (o *Orchestrator) newProject(ctx context.Context, step Step) (runner.Outcome, any, error) {
	prm := step.Params
	root, out := o.toolchain.NewProject(ctx, toolchain.NewProjectRequest{
		Workspace: o.workspaceFor(step),
		Name:      step.Project,
		Module:    prm.Module,
		Kind:      prm.Kind,
		Template:  prm.Template,
	})
	if !out.OK() {
		return out, nil, out.Err
	}
	p, err := o.registry.Register(step.Project, root)
	if err != nil {
		o.logger.Error().Err(err).Str("name", step.Project).Str("root", root).Msg("scaffolded project could not be registered")
		return out, nil, err
	}
	return out, p, nil
}

// rescanAfter refreshes the registry's view of a manifest the tool may have
// rewritten. A rescan failure is logged; the intent itself succeeded.
func (o *Orchestrator) rescanAfter(p registry.Project, out runner.Outcome) (runner.Outcome, any, error) {
	if !out.OK() {
		return plain(out)
	}
	updated, err := o.registry.Rescan(p.Name)
	if err != nil {
		o.logger.Warn().Err(err).Str("project", p.Name).Msg("manifest rescan failed")
		return out, nil, nil
	}
	return out, updated, nil
}

func (o *Orchestrator) record(runID, pipeline string, sr StepResult) {
	status := sr.Status()
	if o.metrics != nil {
		o.metrics.RecordIntent(string(sr.Step.Intent), status, sr.Duration)
	}
	if o.history == nil {
		return
	}
	rec := &store.RunRecord{
		ID:         uuid.NewString(),
		Pipeline:   pipeline,
		Project:    sr.Step.Project,
		Intent:     string(sr.Step.Intent),
		Status:     status,
		DurationMs: sr.Duration.Milliseconds(),
		StartedAt:  sr.StartedAt.UnixMilli(),
	}
	if sr.Outcome.Result != nil && sr.Outcome.Status != runner.StatusExecutionFailure {
		code := sr.Outcome.Result.ExitCode
		rec.ExitCode = &code
	}
	if err := sr.Failure(); err != nil {
		rec.Reason = err.Error()
	}
	if err := o.history.SaveRun(rec); err != nil {
		o.logger.Warn().Err(err).Str("run_id", runID).Msg("failed to record run history")
	}
}

func failed(err error) runner.Outcome {
	return runner.ExecutionFailure(err, err.Error(), nil)
}

func plain(out runner.Outcome) (runner.Outcome, any, error) {
	if out.Status == runner.StatusExecutionFailure {
		return out, nil, out.Err
	}
	return out, nil, nil
}

// parsed keeps a parse error only when the tool itself succeeded; other
// failures are already described by the outcome.
func parsed(out runner.Outcome, detail any, err error) (runner.Outcome, any, error) {
	if out.OK() {
		return out, detail, err
	}
	return plain(out)
}
