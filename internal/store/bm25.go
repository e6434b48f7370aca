package store

import (
	"context"
	"fmt"
	"strings"
)

// BM25Hit is a single fts_search result.
type BM25Hit struct {
	Docid    string
	Score    float64
	FilePath string
	Snippet  string
}

// FTSSearch runs a BM25 keyword search against the active documents' FTS5
// index. collection, if non-empty, restricts results to that collection.
// FTS5's bm25() ranker returns negative values (lower = better); results
// are converted to positive magnitudes so higher is better, matching the
// convention the rest of the pipeline assumes.
func (s *Store) FTSSearch(ctx context.Context, query string, limit int, collection string) ([]BM25Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	matchQuery := escapeFTSQuery(query)

	args := []any{matchQuery}
	sqlQuery := `
		SELECT d.docid, bm25(documents_fts) AS score, d.filepath,
		       snippet(documents_fts, 1, '[', ']', '...', 12) AS snippet
		FROM documents_fts
		JOIN documents d ON d.id = documents_fts.rowid
		WHERE documents_fts MATCH ? AND d.active = 1`
	if collection != "" {
		sqlQuery += ` AND d.collection = ?`
		args = append(args, collection)
	}
	sqlQuery += ` ORDER BY score LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return nil, nil
		}
		return nil, fmt.Errorf("fts search: %w", err)
	}
	defer rows.Close()

	var hits []BM25Hit
	for rows.Next() {
		var h BM25Hit
		var score float64
		if err := rows.Scan(&h.Docid, &score, &h.FilePath, &h.Snippet); err != nil {
			return nil, fmt.Errorf("scan fts hit: %w", err)
		}
		h.Score = -score
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// escapeFTSQuery quotes each whitespace-separated term so punctuation in
// user queries (hyphens, colons) can't be mistaken for FTS5 query syntax.
func escapeFTSQuery(query string) string {
	terms := strings.Fields(query)
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}
