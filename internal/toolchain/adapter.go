package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/devterm/internal/errors"
	"github.com/p-blackswan/devterm/internal/manifest"
	"github.com/p-blackswan/devterm/internal/registry"
	"github.com/p-blackswan/devterm/internal/runner"
)

// Timeouts bounds each intent. Zero fields fall back to Default, and a zero
// Default leaves the runner's own default in place.
type Timeouts struct {
	Build   time.Duration
	Test    time.Duration
	Run     time.Duration
	Default time.Duration
}

// Config configures an Adapter.
type Config struct {
	DefaultKind manifest.Kind // used for projects without a manifest
	Timeouts    Timeouts
}

// NewProjectRequest describes a scaffold.
type NewProjectRequest struct {
	Workspace string
	Name      string
	Module    string // go module path; defaults to Name
	Kind      manifest.Kind
	Template  Template
}

// DependencyListing keeps the raw outcome next to the parsed dependencies.
type DependencyListing struct {
	Project      string
	Outcome      runner.Outcome
	Dependencies []Dependency
}

// ArtifactStatus reports whether an expected artifact exists.
type ArtifactStatus struct {
	Artifact
	Exists  bool
	Size    int64
	ModTime time.Time
}

// BuildInfo lists a project's expected build artifacts.
type BuildInfo struct {
	Project   string
	Kind      manifest.Kind
	Artifacts []ArtifactStatus
}

// Adapter runs toolchain intents against projects.
type Adapter struct {
	runner      runner.Runner
	toolchains  map[manifest.Kind]Toolchain
	defaultKind manifest.Kind
	timeouts    Timeouts
	logger      zerolog.Logger
}

// NewAdapter creates an Adapter over the given toolchains.
func NewAdapter(r runner.Runner, toolchains []Toolchain, cfg Config, logger zerolog.Logger) *Adapter {
	a := &Adapter{
		runner:      r,
		toolchains:  make(map[manifest.Kind]Toolchain, len(toolchains)),
		defaultKind: cfg.DefaultKind,
		timeouts:    cfg.Timeouts,
		logger:      logger.With().Str("component", "toolchain.adapter").Logger(),
	}
	for _, tc := range toolchains {
		a.toolchains[tc.Kind()] = tc
	}
	if a.defaultKind == "" {
		a.defaultKind = manifest.KindGo
	}
	return a
}

// Toolchain returns the toolchain registered for kind.
func (a *Adapter) Toolchain(kind manifest.Kind) (Toolchain, error) {
	if kind == "" {
		kind = a.defaultKind
	}
	tc, ok := a.toolchains[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no toolchain configured for %q", perrors.ErrUnsupported, kind)
	}
	return tc, nil
}

// NewProject scaffolds a project under req.Workspace and returns its root.
// An existing target directory fails before anything runs; any later failure
// removes the target directory, including one the tool created itself.
func (a *Adapter) NewProject(ctx context.Context, req NewProjectRequest) (string, runner.Outcome) {
	if req.Name == "" || strings.ContainsAny(req.Name, `/\`) || req.Name == "." || req.Name == ".." {
		err := fmt.Errorf("%w: project name %q", perrors.ErrInvalidInput, req.Name)
		return "", runner.ExecutionFailure(err, err.Error(), nil)
	}
	tmpl := req.Template
	if tmpl == "" {
		tmpl = TemplateBasic
	}
	tc, err := a.Toolchain(req.Kind)
	if err != nil {
		return "", runner.ExecutionFailure(err, err.Error(), nil)
	}
	if fi, err := os.Stat(req.Workspace); err != nil || !fi.IsDir() {
		err := fmt.Errorf("%w: workspace %s is not a directory", perrors.ErrInvalidPath, req.Workspace)
		return "", runner.ExecutionFailure(err, err.Error(), nil)
	}

	args, workDir, dir := tc.NewProjectArgs(req.Workspace, req.Name, req.Module, tmpl)
	if _, err := os.Stat(dir); err == nil || !errors.Is(err, fs.ErrNotExist) {
		err := fmt.Errorf("%w: %s already exists", perrors.ErrInvalidPath, dir)
		return dir, runner.ExecutionFailure(err, err.Error(), nil)
	}

	if tc.PrecreatesDir() {
		if err := os.Mkdir(dir, 0o755); err != nil {
			err := fmt.Errorf("%w: create %s: %v", perrors.ErrInvalidPath, dir, err)
			return dir, runner.ExecutionFailure(err, err.Error(), nil)
		}
	}

	// dir did not exist before this call, so anything there now is ours.
	ok := false
	defer func() {
		if !ok {
			_ = os.RemoveAll(dir)
		}
	}()

	out := a.exec(ctx, IntentNewProject, tc, workDir, args)
	if !out.OK() {
		return dir, out
	}

	module := req.Module
	if module == "" {
		module = req.Name
	}
	files, err := writeTemplate(tc.Kind(), tmpl, dir, templateData{
		Name:    req.Name,
		Module:  module,
		Package: packageName(req.Name),
	})
	if err != nil {
		a.logger.Error().Err(err).Str("dir", dir).Msg("writing template failed")
		return dir, runner.ExecutionFailure(fmt.Errorf("%w: write template: %v", perrors.ErrExecutionFailure, err), "writing template files failed", out.Result)
	}
	ok = true
	a.logger.Info().Str("name", req.Name).Str("dir", dir).Str("template", string(tmpl)).Strs("files", files).Msg("project scaffolded")
	return dir, out
}

// Build compiles the project.
func (a *Adapter) Build(ctx context.Context, p registry.Project, opts BuildOptions) runner.Outcome {
	if out, ok := checkTarget(p); !ok {
		return out
	}
	return a.BuildDir(ctx, p.Kind, p.Root, opts)
}

// BuildDir compiles the sources in dir with the toolchain for kind. It serves
// unregistered trees such as devterm's own source.
func (a *Adapter) BuildDir(ctx context.Context, kind manifest.Kind, dir string, opts BuildOptions) runner.Outcome {
	tc, err := a.Toolchain(kind)
	if err != nil {
		return runner.ExecutionFailure(err, err.Error(), nil)
	}
	args, err := tc.BuildArgs(opts)
	if err != nil {
		return runner.ExecutionFailure(err, err.Error(), nil)
	}
	return a.exec(ctx, IntentBuild, tc, dir, args)
}

// Test runs the project's tests.
func (a *Adapter) Test(ctx context.Context, p registry.Project) runner.Outcome {
	return a.simple(ctx, p, IntentTest, Toolchain.TestArgs)
}

// Run executes the project's main program with args.
func (a *Adapter) Run(ctx context.Context, p registry.Project, args []string) runner.Outcome {
	return a.simple(ctx, p, IntentRun, func(tc Toolchain) []string { return tc.RunArgs(args) })
}

// Clean removes build outputs.
func (a *Adapter) Clean(ctx context.Context, p registry.Project) runner.Outcome {
	return a.simple(ctx, p, IntentClean, Toolchain.CleanArgs)
}

// Check runs the toolchain's static checks.
func (a *Adapter) Check(ctx context.Context, p registry.Project) runner.Outcome {
	return a.simple(ctx, p, IntentCheck, Toolchain.CheckArgs)
}

// AddDependency adds name to the project, pinned to version when one is
// given. The project should be rescanned afterwards.
func (a *Adapter) AddDependency(ctx context.Context, p registry.Project, name, version string) runner.Outcome {
	if name == "" || strings.HasPrefix(name, "-") || strings.ContainsAny(name+version, " \t\r\n@") {
		err := fmt.Errorf("%w: dependency %q version %q", perrors.ErrInvalidInput, name, version)
		return runner.ExecutionFailure(err, err.Error(), nil)
	}
	return a.simple(ctx, p, IntentAddDependency, func(tc Toolchain) []string {
		return tc.AddDependencyArgs(name, version)
	})
}

// InstallDependencies fetches or installs everything the project declares.
func (a *Adapter) InstallDependencies(ctx context.Context, p registry.Project) runner.Outcome {
	return a.simple(ctx, p, IntentInstall, func(tc Toolchain) []string { return tc.InstallArgs(p.Root) })
}

// DependencyInfo lists resolved dependencies. A successful run whose output
// cannot be parsed returns *perrors.MalformedOutputError; the listing always
// carries the raw outcome.
func (a *Adapter) DependencyInfo(ctx context.Context, p registry.Project) (DependencyListing, error) {
	listing := DependencyListing{Project: p.Name}
	tc, err := a.Toolchain(p.Kind)
	if err != nil {
		listing.Outcome = runner.ExecutionFailure(err, err.Error(), nil)
		return listing, err
	}
	listing.Outcome = a.simple(ctx, p, IntentDependencyInfo, Toolchain.DependencyArgs)
	if !listing.Outcome.OK() {
		return listing, listing.Outcome.Failure()
	}

	deps, err := tc.ParseDependencies(listing.Outcome.Result.Stdout)
	if err != nil {
		a.logger.Warn().Err(err).Str("project", p.Name).Msg("dependency output did not parse")
		return listing, &perrors.MalformedOutputError{
			Intent: string(IntentDependencyInfo),
			Raw:    listing.Outcome.Result.Stdout,
			Err:    err,
		}
	}
	listing.Dependencies = deps
	return listing, nil
}

// BuildInfo reports the project's expected artifacts and whether they exist.
func (a *Adapter) BuildInfo(p registry.Project) (BuildInfo, error) {
	if err := p.CheckRoot(); err != nil {
		return BuildInfo{}, err
	}
	tc, err := a.Toolchain(p.Kind)
	if err != nil {
		return BuildInfo{}, err
	}

	name := p.Name
	if p.Manifest != nil && p.Manifest.Name != "" {
		name = p.Manifest.Name
	}
	info := BuildInfo{Project: p.Name, Kind: tc.Kind()}
	for _, art := range tc.Artifacts(p.Root, name) {
		st := ArtifactStatus{Artifact: art}
		if fi, err := os.Stat(art.Path); err == nil && fi.Mode().IsRegular() {
			st.Exists = true
			st.Size = fi.Size()
			st.ModTime = fi.ModTime()
		}
		info.Artifacts = append(info.Artifacts, st)
	}
	return info, nil
}

func (a *Adapter) simple(ctx context.Context, p registry.Project, intent Intent, argsFn func(Toolchain) []string) runner.Outcome {
	if out, ok := checkTarget(p); !ok {
		return out
	}
	tc, err := a.Toolchain(p.Kind)
	if err != nil {
		return runner.ExecutionFailure(err, err.Error(), nil)
	}
	return a.exec(ctx, intent, tc, p.Root, argsFn(tc))
}

// projectBinary is implemented by toolchains whose executable depends on the
// project, such as an interpreter inside a virtual environment.
type projectBinary interface {
	BinaryFor(dir string) string
}

func (a *Adapter) exec(ctx context.Context, intent Intent, tc Toolchain, dir string, args []string) runner.Outcome {
	bin := tc.Binary()
	if pb, ok := tc.(projectBinary); ok {
		bin = pb.BinaryFor(dir)
	}
	cmd := runner.Command{
		Name:    bin,
		Args:    args,
		Dir:     dir,
		Env:     tc.Env(),
		Timeout: a.timeoutFor(intent),
	}
	a.logger.Debug().Str("intent", string(intent)).Str("cmd", cmd.String()).Str("dir", dir).Msg("toolchain intent")
	return a.runner.Run(ctx, cmd)
}

func (a *Adapter) timeoutFor(intent Intent) time.Duration {
	var t time.Duration
	switch intent {
	case IntentBuild, IntentAddDependency, IntentInstall:
		t = a.timeouts.Build
	case IntentTest:
		t = a.timeouts.Test
	case IntentRun:
		t = a.timeouts.Run
	}
	if t == 0 {
		t = a.timeouts.Default
	}
	return t
}

func checkTarget(p registry.Project) (runner.Outcome, bool) {
	if err := p.CheckRoot(); err != nil {
		return runner.ExecutionFailure(err, err.Error(), nil), false
	}
	return runner.Outcome{}, true
}
