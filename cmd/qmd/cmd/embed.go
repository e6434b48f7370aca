package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qmd-search/qmd/internal/chunk"
	"github.com/qmd-search/qmd/internal/embed"
	"github.com/qmd-search/qmd/internal/store"
)

// embedDocument chunks doc's body with the chunker matching the active
// embedder's tokenizer capability, embeds every chunk, and stores the
// chunk and vector rows, replacing any previous vectors for this document
// under the active namespace.
func (a *app) embedDocument(ctx context.Context, doc *store.Document) (int, error) {
	namespace := embed.Namespace(a.embedder)
	policy := chunk.PolicyFor(a.embedder.HasTokenizer())
	chunker := chunk.New(policy)

	spans := chunker.Chunk(doc.Body)
	if len(spans) == 0 {
		return 0, nil
	}

	texts := make([]string, len(spans))
	for i, span := range spans {
		texts[i] = a.embedder.FormatDocument(doc.Title, span.Text)
	}
	vectors, err := a.embedder.EmbedBatch(ctx, texts, false)
	if err != nil {
		return 0, fmt.Errorf("embed %s: %w", doc.FilePath, err)
	}

	chunks := make([]store.Chunk, 0, len(spans))
	entries := make([]store.VectorEntry, 0, len(spans))
	for i, span := range spans {
		chunks = append(chunks, store.Chunk{
			ContentHash: doc.ContentHash,
			Seq:         i,
			Pos:         span.Pos,
			Model:       namespace,
			Text:        span.Text,
		})
		if vectors[i] == nil {
			continue // transient embedding failure for this chunk; skip, don't abort the batch
		}
		entries = append(entries, store.VectorEntry{
			ContentHash: doc.ContentHash,
			Seq:         i,
			Embedding:   vectors[i],
		})
	}

	if err := a.store.SaveChunks(ctx, chunks); err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	if err := a.store.AddVectors(ctx, namespace, a.embedder.Dimensions(), entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// matchesMask reports whether rel satisfies mask. filepath.Match has no
// "**" support, so a "**/" prefix (the default collection mask, matching
// any depth) is peeled off and the remaining pattern is matched against
// rel's basename; any other mask is matched against rel as-is.
func matchesMask(mask, rel string) bool {
	if suffix, ok := strings.CutPrefix(mask, "**/"); ok {
		matched, _ := filepath.Match(suffix, filepath.Base(rel))
		return matched
	}
	matched, _ := filepath.Match(mask, rel)
	return matched
}

func newEmbedCmd() *cobra.Command {
	var collection string

	cmd := &cobra.Command{
		Use:   "embed",
		Short: "(Re-)embed indexed documents under the active embedding provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			docs, err := a.store.ActiveDocuments(cmd.Context(), collection, true)
			if err != nil {
				return err
			}

			var embedded int
			for _, doc := range docs {
				n, err := a.embedDocument(cmd.Context(), doc)
				if err != nil {
					a.out.Error(err.Error())
					continue
				}
				embedded += n
			}
			a.out.Success(fmt.Sprintf("embedded %d chunks across %d documents", embedded, len(docs)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&collection, "collection", "c", "", "Restrict to one collection")
	return cmd
}

func newUpdateCmd() *cobra.Command {
	var collection string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Rescan every collection's files, reconcile the index, and embed new/changed documents",
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

			var added, updated, unchanged, embedded int
			for _, c := range collections {
				if collection != "" && c.Name != collection {
					continue
				}
				walkErr := filepath.WalkDir(c.Path, func(path string, d fs.DirEntry, err error) error {
					if err != nil {
						return err
					}
					if d.IsDir() {
						return nil
					}
					rel, err := filepath.Rel(c.Path, path)
					if err != nil {
						return err
					}
					if !matchesMask(c.Mask, rel) {
						return nil
					}

					body, err := os.ReadFile(path)
					if err != nil {
						return fmt.Errorf("read %s: %w", path, err)
					}

					diff, err := a.store.AddOrUpdateDocument(cmd.Context(), c.Name, rel, string(body))
					if err != nil {
						return fmt.Errorf("index %s: %w", path, err)
					}

					switch {
					case diff.Added:
						added++
					case diff.Updated:
						updated++
					default:
						unchanged++
						return nil
					}

					doc, _, err := a.store.FindDocument(cmd.Context(), c.Name, rel, true)
					if err != nil {
						return fmt.Errorf("reload %s after indexing: %w", path, err)
					}
					n, err := a.embedDocument(cmd.Context(), doc)
					if err != nil {
						return err
					}
					embedded += n
					return nil
				})
				if walkErr != nil {
					a.out.Error(walkErr.Error())
				}
			}

			a.out.Success(fmt.Sprintf("%d added, %d updated, %d unchanged, %d chunks embedded",
				added, updated, unchanged, embedded))
			return nil
		},
	}
	cmd.Flags().StringVarP(&collection, "collection", "c", "", "Restrict to one collection")
	return cmd
}
