package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qmd-search/qmd/internal/embed"
)

func newProviderCmd() *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "provider [name]",
		Short: "Show or set the active embedding provider and model",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()

			if len(args) == 0 {
				info := embed.GetInfo(ctx, a.embedder)
				fmt.Fprintf(cmd.OutOrStdout(), "%s/%s (%d dims, available: %t)\n",
					info.Provider, info.Model, info.Dimensions, info.Available)
				return nil
			}

			name := args[0]
			if !embed.IsValidProvider(name) {
				return fmt.Errorf("unknown provider %q; valid providers: %v", name, embed.ValidProviders())
			}
			if model == "" {
				return fmt.Errorf("--model is required when setting a provider")
			}

			candidate, err := buildEmbedder(ctx, a.cfg, name, model)
			if err != nil {
				return fmt.Errorf("provider %s/%s is not usable: %w", name, model, err)
			}
			_ = candidate.Close()

			if err := a.store.SetSetting(ctx, "embedding_provider", name); err != nil {
				return err
			}
			if err := a.store.SetSetting(ctx, "embedding_model", model); err != nil {
				return err
			}
			a.out.Success(fmt.Sprintf("active provider set to %s/%s", name, model))
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "Model id for the selected provider")
	return cmd
}
