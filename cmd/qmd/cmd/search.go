package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/qmd-search/qmd/internal/output"
	"github.com/qmd-search/qmd/internal/search"
)

// resultFlags are the output-format and scoping flags shared by every
// search-like verb (spec.md §6).
type resultFlags struct {
	limit      int
	collection string
	all        bool
	minScore   float64

	files bool
	json  bool
	csv   bool
	md    bool
	xml   bool
}

func (f *resultFlags) bind(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVarP(&f.collection, "collection", "c", "", "Restrict to one collection")
	cmd.Flags().BoolVar(&f.all, "all", false, "Search every collection, overriding -c/--collection")
	cmd.Flags().Float64Var(&f.minScore, "min-score", 0, "Drop results scoring below this threshold")
	cmd.Flags().BoolVar(&f.files, "files", false, "Print matching file paths only")
	cmd.Flags().BoolVar(&f.json, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&f.csv, "csv", false, "Output as CSV")
	cmd.Flags().BoolVar(&f.md, "md", false, "Output as a markdown table")
	cmd.Flags().BoolVar(&f.xml, "xml", false, "Output as XML")
}

func (f *resultFlags) format() output.Format {
	return output.ParseFormat(f.files, f.json, f.csv, f.md, f.xml)
}

// scope resolves the effective collection filter: --all always searches
// every collection, overriding a -c/--collection value given alongside it.
func (f *resultFlags) scope() string {
	if f.all {
		return ""
	}
	return f.collection
}

func newSearchCmd() *cobra.Command {
	var flags resultFlags

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Keyword (BM25) search over the FTS index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			hits, err := a.bm25.Search(cmd.Context(), query, flags.limit, flags.scope())
			if err != nil {
				return err
			}
			hits = filterByMinScore(hits, flags.minScore)
			return output.WriteRows(cmd.OutOrStdout(), flags.format(), hitRows(hits))
		},
	}
	flags.bind(cmd)
	return cmd
}

func newVSearchCmd() *cobra.Command {
	var flags resultFlags

	cmd := &cobra.Command{
		Use:   "vsearch <query>",
		Short: "Vector-only semantic search over the active embedding provider",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			hits, err := a.vector.Search(cmd.Context(), query, flags.limit, flags.scope())
			if err != nil {
				return err
			}
			hits = filterByMinScore(hits, flags.minScore)
			return output.WriteRows(cmd.OutOrStdout(), flags.format(), hitRows(hits))
		},
	}
	flags.bind(cmd)
	return cmd
}

func newQueryCmd() *cobra.Command {
	var flags resultFlags

	cmd := &cobra.Command{
		Use:   "query <query>",
		Short: "Hybrid pipeline: query expansion, BM25 + vector retrieval, RRF fusion, LLM rerank",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			results, err := a.hybrid.Search(cmd.Context(), query, search.HybridOptions{
				Limit:      flags.limit,
				Collection: flags.scope(),
				MinScore:   flags.minScore,
			})
			if err != nil {
				return err
			}
			return output.WriteRows(cmd.OutOrStdout(), flags.format(), hybridRows(results))
		},
	}
	flags.bind(cmd)
	return cmd
}

func filterByMinScore(hits []search.Hit, minScore float64) []search.Hit {
	if minScore <= 0 {
		return hits
	}
	filtered := hits[:0]
	for _, h := range hits {
		if h.Score >= minScore {
			filtered = append(filtered, h)
		}
	}
	return filtered
}
