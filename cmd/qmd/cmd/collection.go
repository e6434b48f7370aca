package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qmd-search/qmd/internal/config"
)

func newCollectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Manage collections: named, glob-scoped sets of files",
	}
	cmd.AddCommand(newCollectionAddCmd())
	cmd.AddCommand(newCollectionListCmd())
	cmd.AddCommand(newCollectionRemoveCmd())
	cmd.AddCommand(newCollectionRenameCmd())
	return cmd
}

func newCollectionAddCmd() *cobra.Command {
	var mask string

	cmd := &cobra.Command{
		Use:   "add <name> <path>",
		Short: "Declare a new collection rooted at path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if mask == "" {
				mask = a.cfg.Paths.DefaultMask
			}
			if err := a.store.AddCollection(cmd.Context(), args[0], args[1], mask); err != nil {
				return err
			}
			a.out.Success(fmt.Sprintf("added collection %q at %s (mask %s)", args[0], args[1], mask))
			return nil
		},
	}
	cmd.Flags().StringVar(&mask, "mask", "", "Glob mask (default: "+config.NewConfig().Paths.DefaultMask+")")
	return cmd
}

func newCollectionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List declared collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			collections, err := a.store.ListCollections(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range collections {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", c.Name, c.Path, c.Mask)
			}
			return nil
		},
	}
}

func newCollectionRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a collection and deactivate its documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.store.RemoveCollection(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.out.Success(fmt.Sprintf("removed collection %q", args[0]))
			return nil
		},
	}
}

func newCollectionRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a collection, preserving its documents",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.store.RenameCollection(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			a.out.Success(fmt.Sprintf("renamed collection %q to %q", args[0], args[1]))
			return nil
		},
	}
}
