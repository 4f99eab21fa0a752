package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/p-blackswan/devterm/internal/health"
)

func newSelfUpdateCmd(st *state) *cobra.Command {
	var sourceDir, ver string
	var skipVerify bool
	cmd := &cobra.Command{
		Use:   "self-update",
		Short: "Rebuild devterm from source and replace the running binary",
		Long: `self-update builds devterm from its source tree into a staging file, checks
the staged binary, backs up the current one and swaps the new one in. Any
failure leaves the current binary in place. The new binary takes effect the
next time devterm starts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := st.get(cmd.Context())
			if err != nil {
				return err
			}
			if sourceDir != "" {
				a.cfg.SelfUpdate.SourceDir = sourceDir
			}
			if skipVerify {
				a.cfg.SelfUpdate.SkipVerify = true
			}
			if ver == "" {
				ver = version
			}

			s, err := a.updater(ver).Run(cmd.Context())
			if s == nil {
				return err
			}
			a.ui.Session(s)
			if err != nil {
				return reported(exitCode(err), err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sourceDir, "source-dir", "", "devterm source tree (default from config)")
	cmd.Flags().StringVar(&ver, "version", "", "version stamped into the new binary (default: current)")
	cmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "do not run the staged binary before swapping")
	return cmd
}

func newRollbackCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback",
		Short: "Restore the binary kept by the last self-update",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := st.get(cmd.Context())
			if err != nil {
				return err
			}
			u := a.updater(version)
			paths, err := u.Paths()
			if err != nil {
				return err
			}
			if err := u.Rollback(paths); err != nil {
				return err
			}
			a.ui.Message("restored %s from %s", paths.Binary, paths.Backup)
			return nil
		},
	}
}

func newHistoryCmd(st *state) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [project]",
		Short: "Show recent intent runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := st.get(cmd.Context())
			if err != nil {
				return err
			}
			project := ""
			if len(args) == 1 {
				project = args[0]
			}
			runs, err := a.store.ListRuns(project, limit)
			if err != nil {
				return err
			}
			a.ui.History(runs)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "number", "n", 20, "number of runs")
	return cmd
}

func newDoctorCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check toolchains, workspace, registry and self-update target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := st.get(cmd.Context())
			if err != nil {
				return err
			}
			results := a.doctor().RunAll(cmd.Context())
			a.ui.Health(results)
			if health.Overall(results) == health.StatusDown {
				return reported(exitFailure, fmt.Errorf("environment checks failed"))
			}
			return nil
		},
	}
}
