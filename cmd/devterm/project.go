package main

import (
	"github.com/spf13/cobra"

	"github.com/p-blackswan/devterm/internal/registry"
)

func newProjectCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage the project registry",
	}

	var overwrite bool
	add := &cobra.Command{
		Use:   "add <name> <path>",
		Short: "Register an existing directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := st.get(cmd.Context())
			if err != nil {
				return err
			}
			var opts []registry.Option
			if overwrite {
				opts = append(opts, registry.WithOverwrite())
			}
			p, err := a.registry.Register(args[0], args[1], opts...)
			if err != nil {
				return err
			}
			a.ui.Projects([]registry.Project{p})
			return nil
		},
	}
	add.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing entry with the same name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := st.get(cmd.Context())
			if err != nil {
				return err
			}
			a.ui.Projects(a.registry.List())
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "remove <name>",
		Short: "Forget a project; files on disk are left alone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := st.get(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.registry.Remove(args[0]); err != nil {
				return err
			}
			a.ui.Message("removed %s", args[0])
			return nil
		},
	}

	rescan := &cobra.Command{
		Use:   "rescan <name>",
		Short: "Re-read a project's manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := st.get(cmd.Context())
			if err != nil {
				return err
			}
			p, err := a.registry.Rescan(args[0])
			if err != nil {
				return err
			}
			a.ui.Projects([]registry.Project{p})
			return nil
		},
	}

	discover := &cobra.Command{
		Use:   "discover [dir]",
		Short: "Register every project directory directly under dir (default: the workspace)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := st.get(cmd.Context())
			if err != nil {
				return err
			}
			dir := a.cfg.Workspace
			if len(args) == 1 {
				dir = args[0]
			}
			found, err := a.registry.Discover(dir)
			if err != nil {
				return err
			}
			if len(found) == 0 {
				a.ui.Message("no new projects in %s", dir)
				return nil
			}
			a.ui.Projects(found)
			return nil
		},
	}

	cmd.AddCommand(add, list, remove, rescan, discover)
	return cmd
}
