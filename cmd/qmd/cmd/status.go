package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/qmd-search/qmd/internal/embed"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarize the index: documents per collection, chunk and vector counts, active provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			st, err := a.store.GetStatus(cmd.Context(), embed.Namespace(a.embedder))
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "documents: %d\n", st.TotalDocuments)
			fmt.Fprintf(w, "chunks: %d\n", st.TotalChunks)

			names := make([]string, 0, len(st.Collections))
			for name := range st.Collections {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(w, "  %s: %d\n", name, st.Collections[name])
			}

			vecNamespaces := make([]string, 0, len(st.VectorCounts))
			for ns := range st.VectorCounts {
				vecNamespaces = append(vecNamespaces, ns)
			}
			sort.Strings(vecNamespaces)
			fmt.Fprintln(w, "vectors:")
			for _, ns := range vecNamespaces {
				fmt.Fprintf(w, "  %s: %d\n", ns, st.VectorCounts[ns])
			}

			if st.ActiveProvider != "" {
				fmt.Fprintf(w, "active provider: %s/%s\n", st.ActiveProvider, st.ActiveModel)
			} else {
				fmt.Fprintf(w, "active provider: %s/%s (default, not yet persisted)\n",
					a.cfg.Embeddings.Provider, a.cfg.Embeddings.Model)
			}

			activeDims := a.embedder.Dimensions()
			switch {
			case st.ActiveNamespaceDimensions == 0:
				fmt.Fprintf(w, "compatible: true (no vectors written yet, %d dims)\n", activeDims)
			case st.ActiveNamespaceDimensions == activeDims:
				fmt.Fprintf(w, "compatible: true (%d dims)\n", activeDims)
			default:
				fmt.Fprintf(w, "compatible: false (stored %d dims, active provider produces %d; run cleanup after switching provider back, or re-embed)\n",
					st.ActiveNamespaceDimensions, activeDims)
			}
			return nil
		},
	}
}
