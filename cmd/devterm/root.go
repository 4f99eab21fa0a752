package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/p-blackswan/devterm/internal/pipeline"
)

func newRootCmd(st *state) *cobra.Command {
	root := &cobra.Command{
		Use:   "devterm",
		Short: "Drive Go and Cargo projects and their git repositories from one terminal",
		Long: `devterm keeps a registry of local projects and runs toolchain and git
intents against them, alone or as pipelines.

Pipelines:
  create-build     scaffold a project, register it, build it
  build-test-run   build, test, then run (a failing run does not fail the pipeline)
  commit-push      stage everything, commit, push the current branch`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&st.flags.logLevel, "log-level", "", "override DEVTERM_LOG_LEVEL")
	root.PersistentFlags().BoolVar(&st.flags.plain, "plain", false, "disable colored output")

	root.AddCommand(
		newProjectCmd(st),
		newNewCmd(st),
		newBuildCmd(st),
		newSimpleIntentCmd(st, "test", "Run the project's tests", pipeline.IntentTest),
		newRunCmd(st),
		newSimpleIntentCmd(st, "clean", "Remove build outputs", pipeline.IntentClean),
		newSimpleIntentCmd(st, "check", "Type-check without producing artifacts", pipeline.IntentCheck),
		newSimpleIntentCmd(st, "deps", "List resolved dependencies", pipeline.IntentDependencyInfo),
		newAddCmd(st),
		newSimpleIntentCmd(st, "install", "Fetch or install declared dependencies", pipeline.IntentInstall),
		newInfoCmd(st),
		newBumpCmd(st),
		newPipelineCmd(st),
		newGitCmd(st),
		newSelfUpdateCmd(st),
		newRollbackCmd(st),
		newHistoryCmd(st),
		newDoctorCmd(st),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the devterm version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "devterm %s\n", version)
		},
	}
}
