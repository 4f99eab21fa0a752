package main

import (
	"github.com/spf13/cobra"

	"github.com/p-blackswan/devterm/internal/pipeline"
)

func newPipelineCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run a standard pipeline",
	}

	var prm pipeline.Params
	var kind, tmpl string
	createBuild := &cobra.Command{
		Use:   "create-build <name>",
		Short: "Scaffold, register and build a new project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := scaffoldParams(&prm, kind, tmpl); err != nil {
				return err
			}
			return execute(cmd, st, pipeline.CreateAndBuild(args[0], prm))
		},
	}
	scaffoldFlags(createBuild, &prm, &kind, &tmpl)

	buildTestRun := &cobra.Command{
		Use:   "build-test-run <project> [-- args...]",
		Short: "Build, test, then run; a failing run does not fail the pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, st, pipeline.BuildTestRun(args[0], args[1:]))
		},
	}

	var message, remote, branch string
	commitPush := &cobra.Command{
		Use:   "commit-push <project>",
		Short: "Stage everything, commit and push",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pl := pipeline.CommitAndPush(args[0], message)
			pl.Steps[2].Params.Remote = remote
			pl.Steps[2].Params.Branch = branch
			return execute(cmd, st, pl)
		},
	}
	commitPush.Flags().StringVarP(&message, "message", "m", "", "commit message")
	commitPush.Flags().StringVar(&remote, "remote", "", "remote (default from config)")
	commitPush.Flags().StringVar(&branch, "branch", "", "branch (default: current)")
	_ = commitPush.MarkFlagRequired("message")

	cmd.AddCommand(createBuild, buildTestRun, commitPush)
	return cmd
}
