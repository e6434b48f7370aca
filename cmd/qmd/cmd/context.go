package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newContextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Manage free-text descriptions attached to virtual paths",
	}
	cmd.AddCommand(newContextAddCmd())
	cmd.AddCommand(newContextListCmd())
	cmd.AddCommand(newContextRemoveCmd())
	return cmd
}

func newContextAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <vpath> <text>",
		Short: "Attach or replace a description for a virtual path (qmd://collection[/subpath] or /)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.store.AddContext(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			a.out.Success(fmt.Sprintf("set context for %s", args[0]))
			return nil
		},
	}
}

func newContextListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every virtual path with an attached context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			contexts, err := a.store.ListContexts(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range contexts {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", c.VPath, c.Text)
			}
			return nil
		},
	}
}

func newContextRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <vpath>",
		Aliases: []string{"remove"},
		Short:   "Remove a virtual path's context",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.store.RemoveContext(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.out.Success(fmt.Sprintf("removed context for %s", args[0]))
			return nil
		},
	}
}
