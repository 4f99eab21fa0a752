package main

import (
	"github.com/spf13/cobra"

	"github.com/p-blackswan/devterm/internal/pipeline"
)

func newGitCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "git",
		Short: "Run version control intents against a project",
	}

	single := func(intent pipeline.Intent, prm func(args []string) pipeline.Params) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			var p pipeline.Params
			if prm != nil {
				p = prm(args)
			}
			return execute(cmd, st, pipeline.Single(intent, args[0], p))
		}
	}

	var message, remote, branch string
	var limit int

	status := &cobra.Command{Use: "status <project>", Short: "Show branch and working tree status", Args: cobra.ExactArgs(1),
		RunE: single(pipeline.IntentStatus, nil)}

	add := &cobra.Command{Use: "add <project> [paths...]", Short: "Stage paths, or everything", Args: cobra.MinimumNArgs(1),
		RunE: single(pipeline.IntentStage, func(args []string) pipeline.Params { return pipeline.Params{Args: args[1:]} })}

	commit := &cobra.Command{Use: "commit <project>", Short: "Commit staged changes", Args: cobra.ExactArgs(1),
		RunE: single(pipeline.IntentCommit, func([]string) pipeline.Params { return pipeline.Params{Message: message} })}
	commit.Flags().StringVarP(&message, "message", "m", "", "commit message")

	network := func([]string) pipeline.Params { return pipeline.Params{Remote: remote, Branch: branch} }
	push := &cobra.Command{Use: "push <project>", Short: "Push a branch", Args: cobra.ExactArgs(1),
		RunE: single(pipeline.IntentPush, network)}
	pull := &cobra.Command{Use: "pull <project>", Short: "Pull a branch", Args: cobra.ExactArgs(1),
		RunE: single(pipeline.IntentPull, network)}
	for _, c := range []*cobra.Command{push, pull} {
		c.Flags().StringVar(&remote, "remote", "", "remote (default from config)")
		c.Flags().StringVar(&branch, "branch", "", "branch (default: current)")
	}

	branchCmd := &cobra.Command{
		Use:   "branch <project> [name]",
		Short: "List branches, or create one without switching to it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 2 {
				return execute(cmd, st, pipeline.Single(pipeline.IntentBranchCreate, args[0], pipeline.Params{Name: args[1]}))
			}
			return execute(cmd, st, pipeline.Single(pipeline.IntentBranchList, args[0], pipeline.Params{}))
		},
	}

	logCmd := &cobra.Command{Use: "log <project>", Short: "Show recent commits", Args: cobra.ExactArgs(1),
		RunE: single(pipeline.IntentLog, func([]string) pipeline.Params { return pipeline.Params{Limit: limit} })}
	logCmd.Flags().IntVarP(&limit, "number", "n", 10, "number of commits")

	var tagMessage string
	tag := &cobra.Command{Use: "tag <project> <name>", Short: "Create an annotated tag", Args: cobra.ExactArgs(2),
		RunE: single(pipeline.IntentTag, func(args []string) pipeline.Params {
			return pipeline.Params{Name: args[1], Message: tagMessage}
		})}
	tag.Flags().StringVarP(&tagMessage, "message", "m", "", "tag message (default: the tag name)")

	remoteCmd := &cobra.Command{Use: "remote <project>", Short: "List remotes", Args: cobra.ExactArgs(1),
		RunE: single(pipeline.IntentRemotes, nil)}

	initCmd := &cobra.Command{Use: "init <project>", Short: "Create a repository in the project root", Args: cobra.ExactArgs(1),
		RunE: single(pipeline.IntentInit, nil)}

	cmd.AddCommand(status, add, commit, push, pull, branchCmd, logCmd, tag, remoteCmd, initCmd)
	return cmd
}
