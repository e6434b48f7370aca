package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete inactive documents, orphaned vectors, and the LLM response cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()

			deletedDocs, err := a.store.DeleteInactive(ctx)
			if err != nil {
				return err
			}
			orphanedVectors, err := a.store.CleanupOrphanedVectors(ctx)
			if err != nil {
				return err
			}
			cachedResponses, err := a.store.DeleteLLMCache(ctx)
			if err != nil {
				return err
			}

			a.out.Success(fmt.Sprintf("removed %d inactive documents, %d orphaned vector rows, %d cached LLM responses",
				deletedDocs, orphanedVectors, cachedResponses))
			return nil
		},
	}
}
