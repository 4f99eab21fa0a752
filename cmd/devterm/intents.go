package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/p-blackswan/devterm/internal/manifest"
	"github.com/p-blackswan/devterm/internal/pipeline"
	"github.com/p-blackswan/devterm/internal/registry"
	"github.com/p-blackswan/devterm/internal/runner"
	"github.com/p-blackswan/devterm/internal/toolchain"
	"github.com/p-blackswan/devterm/internal/vcs"
)

// execute runs pl and renders the result. A one-step pipeline renders as
// the intent itself.
func execute(cmd *cobra.Command, st *state, pl pipeline.Pipeline) error {
	a, err := st.get(cmd.Context())
	if err != nil {
		return err
	}
	res, err := a.orch.Execute(cmd.Context(), pl)
	if err != nil {
		return err
	}
	if len(pl.Steps) == 1 && len(res.Steps) == 1 {
		renderStep(a, res.Steps[0])
	} else {
		a.ui.Pipeline(res)
	}
	return resultError(res)
}

func renderStep(a *app, sr pipeline.StepResult) {
	if sr.Succeeded() {
		switch d := sr.Detail.(type) {
		case toolchain.DependencyListing:
			a.ui.Dependencies(d)
			return
		case vcs.Status:
			a.ui.VCSStatus(d)
			return
		case vcs.BranchList:
			a.ui.Branches(d)
			return
		case []vcs.Commit:
			a.ui.Log(d)
			return
		case []vcs.Remote:
			a.ui.Remotes(d)
			return
		case registry.Project:
			a.ui.Outcome(string(sr.Step.Intent), sr.Outcome)
			if sr.Step.Intent == pipeline.IntentNewProject {
				a.ui.Message("registered %s at %s", d.Name, d.Root)
			} else if d.Manifest != nil {
				a.ui.Message("%s declares %d dependencies", d.Name, len(d.Manifest.Dependencies))
			}
			return
		}
	}
	a.ui.Outcome(string(sr.Step.Intent), sr.Outcome)
	if sr.Err != nil && sr.Outcome.OK() {
		a.ui.Error(sr.Err)
	}
}

// resultError maps a failed pipeline to an exit code. The failure has
// already been rendered.
func resultError(res pipeline.Result) error {
	if res.Succeeded() {
		return nil
	}
	last := res.Steps[len(res.Steps)-1]
	code := exitFailure
	if last.Err == nil && last.Outcome.Status == runner.StatusToolFailure {
		code = exitToolFailure
	}
	return reported(code, res.Err)
}

func newSimpleIntentCmd(st *state, use, short string, intent pipeline.Intent) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <project>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, st, pipeline.Single(intent, args[0], pipeline.Params{}))
		},
	}
}

func newBuildCmd(st *state) *cobra.Command {
	var opts toolchain.BuildOptions
	cmd := &cobra.Command{
		Use:   "build <project>",
		Short: "Compile the project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, st, pipeline.Single(pipeline.IntentBuild, args[0], pipeline.Params{Build: opts}))
		},
	}
	cmd.Flags().BoolVar(&opts.Release, "release", false, "optimized build (cargo --release, go -trimpath)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output path (go only)")
	cmd.Flags().StringVar(&opts.Package, "package", "", "package to build (go only)")
	cmd.Flags().StringVar(&opts.LDFlags, "ldflags", "", "linker flags (go only)")
	return cmd
}

func newRunCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "run <project> [-- args...]",
		Short: "Run the project's main program",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, st, pipeline.Single(pipeline.IntentRun, args[0], pipeline.Params{Args: args[1:]}))
		},
	}
}

func newAddCmd(st *state) *cobra.Command {
	var version string
	cmd := &cobra.Command{
		Use:   "add <project> <dependency>",
		Short: "Add a dependency (go get, cargo add, pip install)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, st, pipeline.Single(pipeline.IntentAddDependency, args[0],
				pipeline.Params{Name: args[1], Version: version}))
		},
	}
	cmd.Flags().StringVar(&version, "version", "", "version or constraint (default: latest)")
	return cmd
}

func newInfoCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "info <project>",
		Short: "Show expected build artifacts and whether they exist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := st.get(cmd.Context())
			if err != nil {
				return err
			}
			p, err := a.registry.Resolve(args[0])
			if err != nil {
				return err
			}
			info, err := a.toolchain.BuildInfo(p)
			if err != nil {
				return err
			}
			a.ui.BuildInfo(info)
			return nil
		},
	}
}

func newBumpCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:       "bump <project> [major|minor|patch]",
		Short:     "Increment the version in Cargo.toml or pyproject.toml",
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: []string{"major", "minor", "patch"},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := st.get(cmd.Context())
			if err != nil {
				return err
			}
			part := manifest.PartPatch
			if len(args) == 2 {
				part = manifest.Part(args[1])
			}
			p, err := a.registry.Resolve(args[0])
			if err != nil {
				return err
			}
			v, err := manifest.BumpVersion(p.Root, part)
			if err != nil {
				return err
			}
			if _, err := a.registry.Rescan(p.Name); err != nil {
				return err
			}
			a.ui.Message("%s is now %s", p.Name, v)
			return nil
		},
	}
}

func newNewCmd(st *state) *cobra.Command {
	var prm pipeline.Params
	var kind, tmpl string
	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Scaffold and register a new project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := scaffoldParams(&prm, kind, tmpl); err != nil {
				return err
			}
			return execute(cmd, st, pipeline.Single(pipeline.IntentNewProject, args[0], prm))
		},
	}
	scaffoldFlags(cmd, &prm, &kind, &tmpl)
	return cmd
}

func scaffoldFlags(cmd *cobra.Command, prm *pipeline.Params, kind, tmpl *string) {
	cmd.Flags().StringVar(kind, "kind", "", "toolchain: go, cargo or python (default from config)")
	cmd.Flags().StringVar(tmpl, "template", "basic", "template: basic, library or cli")
	cmd.Flags().StringVar(&prm.Module, "module", "", "go module path (default: the name)")
	cmd.Flags().StringVar(&prm.Workspace, "workspace", "", "parent directory (default from config)")
}

func scaffoldParams(prm *pipeline.Params, kind, tmpl string) error {
	if kind != "" {
		k, err := manifest.ParseKind(kind)
		if err != nil {
			return err
		}
		prm.Kind = k
	}
	t, err := toolchain.ParseTemplate(tmpl)
	if err != nil {
		return fmt.Errorf("template: %w", err)
	}
	prm.Template = t
	return nil
}
