package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qmd-search/qmd/internal/store"
)

// previewChars bounds the body preview shown without --full.
const previewChars = 2000

// printDocument writes doc's header and body (full or a preview) to cmd's
// stdout, numbering lines when lineNumbers is set. idx is this document's
// 1-based position among the command's resolved results, or 0 to omit it
// from the header; multi-get's --index flag turns it on so scripts can
// correlate output documents back to their position in a glob/list input.
func printDocument(cmd *cobra.Command, doc *store.Document, full, lineNumbers bool, idx int) {
	w := cmd.OutOrStdout()
	if idx > 0 {
		fmt.Fprintf(w, "[%d] ", idx)
	}
	fmt.Fprintf(w, "%s #%s [%s]\n", doc.FilePath, doc.Docid, doc.Collection)

	body := doc.Body
	truncated := false
	if !full && len(body) > previewChars {
		body = body[:previewChars]
		truncated = true
	}

	if lineNumbers {
		for i, line := range strings.Split(body, "\n") {
			fmt.Fprintf(w, "%4d\t%s\n", i+1, line)
		}
	} else {
		fmt.Fprintln(w, body)
	}
	if truncated {
		fmt.Fprintln(w, "... (truncated, pass --full for the complete body)")
	}
}

func newGetCmd() *cobra.Command {
	var collection string
	var full bool
	var lineNumbers bool
	var showIndex bool

	cmd := &cobra.Command{
		Use:   "get <path|#docid>",
		Short: "Fetch one document by path or #docid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			doc, suggestions, err := a.store.FindDocument(cmd.Context(), collection, args[0], true)
			if err != nil {
				if len(suggestions) > 0 {
					fmt.Fprintln(cmd.ErrOrStderr(), "no exact match; did you mean:")
					for _, s := range suggestions {
						fmt.Fprintf(cmd.ErrOrStderr(), "  %s #%s\n", s.FilePath, s.Docid)
					}
				}
				return err
			}
			idx := 0
			if showIndex {
				idx = 1
			}
			printDocument(cmd, doc, full, lineNumbers, idx)
			return nil
		},
	}
	cmd.Flags().StringVarP(&collection, "collection", "c", "", "Restrict to one collection")
	cmd.Flags().BoolVar(&full, "full", false, "Print the full document body")
	cmd.Flags().BoolVar(&lineNumbers, "line-numbers", false, "Prefix each line with its line number")
	cmd.Flags().BoolVar(&showIndex, "index", false, "Prefix the document with its ordinal (always 1 for a single result)")
	return cmd
}

func newMultiGetCmd() *cobra.Command {
	var collection string
	var full bool
	var lineNumbers bool
	var showIndex bool
	var maxBytes int64

	cmd := &cobra.Command{
		Use:   "multi-get <pattern-or-list>",
		Short: "Fetch several documents by glob or a comma-separated list of paths/#docids",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			docs, errs, err := a.store.FindDocuments(cmd.Context(), collection, args[0], true, maxBytes)
			if err != nil {
				return err
			}
			for _, e := range errs {
				fmt.Fprintln(cmd.ErrOrStderr(), e)
			}
			for i, doc := range docs {
				if i > 0 {
					a.out.Newline()
				}
				idx := 0
				if showIndex {
					idx = i + 1
				}
				printDocument(cmd, doc, full, lineNumbers, idx)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&collection, "collection", "c", "", "Restrict to one collection")
	cmd.Flags().BoolVar(&full, "full", false, "Print the full document body")
	cmd.Flags().BoolVar(&lineNumbers, "line-numbers", false, "Prefix each line with its line number")
	cmd.Flags().BoolVar(&showIndex, "index", false, "Prefix each document with its 1-based position in the resolved set")
	cmd.Flags().Int64Var(&maxBytes, "max-bytes", 1<<20, "Report oversized files as errors instead of returning them")
	return cmd
}
