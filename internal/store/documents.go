package store

import (
	"context"
	"database/sql"
	"fmt"
	"path"
	"sort"
	"strings"

	qmderrors "github.com/qmd-search/qmd/internal/errors"
)

// AddOrUpdateDocument computes the content hash of body and reconciles it
// against the current active row for (collection, filepath). A matching
// hash is a no-op; otherwise the previous active row (if any) is marked
// inactive and a new active row is inserted.
func (s *Store) AddOrUpdateDocument(ctx context.Context, collection, filepath, body string) (*DiffResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	hash := ContentHash(body)
	docid := Docid(hash)
	title := titleFromBody(body, path.Base(filepath))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existingHash string
	err = tx.QueryRowContext(ctx,
		`SELECT content_hash FROM documents WHERE collection = ? AND filepath = ? AND active = 1`,
		collection, filepath).Scan(&existingHash)

	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO documents (collection, filepath, title, content_hash, docid, body, active)
			 VALUES (?, ?, ?, ?, ?, ?, 1)`,
			collection, filepath, title, hash, docid, body); err != nil {
			return nil, fmt.Errorf("insert document: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit: %w", err)
		}
		return &DiffResult{Added: true, Hash: hash}, nil

	case err != nil:
		return nil, fmt.Errorf("lookup existing document: %w", err)

	case existingHash == hash:
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit: %w", err)
		}
		return &DiffResult{Unchanged: true, Hash: hash}, nil

	default:
		if _, err := tx.ExecContext(ctx,
			`UPDATE documents SET active = 0 WHERE collection = ? AND filepath = ? AND active = 1`,
			collection, filepath); err != nil {
			return nil, fmt.Errorf("deactivate previous document: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO documents (collection, filepath, title, content_hash, docid, body, active)
			 VALUES (?, ?, ?, ?, ?, ?, 1)`,
			collection, filepath, title, hash, docid, body); err != nil {
			return nil, fmt.Errorf("insert updated document: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit: %w", err)
		}
		return &DiffResult{Updated: true, Hash: hash}, nil
	}
}

// FindDocument resolves query by exact #docid or exact filepath. With no
// match it returns a NotFound error together with up to five active paths
// nearest by edit distance as suggestions. include_body controls whether Body is
// populated on the hit (callers that only need metadata skip the copy).
func (s *Store) FindDocument(ctx context.Context, collection, query string, includeBody bool) (*Document, []FindSuggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, nil, err
	}

	if doc, err := s.findByDocidLocked(ctx, collection, query); err != nil {
		return nil, nil, err
	} else if doc != nil {
		if !includeBody {
			doc.Body = ""
		}
		return doc, nil, nil
	}

	doc, err := s.findByPathLocked(ctx, collection, query)
	if err != nil {
		return nil, nil, err
	}
	if doc != nil {
		if !includeBody {
			doc.Body = ""
		}
		return doc, nil, nil
	}

	suggestions, err := s.suggestLocked(ctx, collection, query, 5)
	if err != nil {
		return nil, nil, err
	}
	return nil, suggestions, qmderrors.NotFound(qmderrors.ErrCodeDocumentNotFound,
		"no document matches "+query, nil)
}

func (s *Store) findByDocidLocked(ctx context.Context, collection, query string) (*Document, error) {
	docid := strings.TrimPrefix(query, "#")
	if docid == query || len(docid) == 0 {
		return nil, nil
	}

	args := []any{docid}
	sqlQuery := `SELECT id, collection, filepath, title, content_hash, docid, body, active
	             FROM documents WHERE active = 1 AND docid = ?`
	if collection != "" {
		sqlQuery += ` AND collection = ?`
		args = append(args, collection)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("query by docid: %w", err)
	}
	defer rows.Close()

	var matches []*Document
	for rows.Next() {
		d := &Document{}
		var active int
		if err := rows.Scan(&d.ID, &d.Collection, &d.FilePath, &d.Title, &d.ContentHash, &d.Docid, &d.Body, &active); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.Active = active == 1
		matches = append(matches, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		var hashes []string
		for _, m := range matches {
			hashes = append(hashes, m.ContentHash)
		}
		return nil, errAmbiguousDocid(docid, hashes)
	}
}

func (s *Store) findByPathLocked(ctx context.Context, collection, filePath string) (*Document, error) {
	args := []any{filePath}
	sqlQuery := `SELECT id, collection, filepath, title, content_hash, docid, body, active
	             FROM documents WHERE active = 1 AND filepath = ?`
	if collection != "" {
		sqlQuery += ` AND collection = ?`
		args = append(args, collection)
	}

	d := &Document{}
	var active int
	err := s.db.QueryRowContext(ctx, sqlQuery, args...).
		Scan(&d.ID, &d.Collection, &d.FilePath, &d.Title, &d.ContentHash, &d.Docid, &d.Body, &active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query by path: %w", err)
	}
	d.Active = active == 1
	return d, nil
}

// suggestLocked returns the n active documents (optionally restricted to
// collection) whose filepath is closest by edit distance to query.
func (s *Store) suggestLocked(ctx context.Context, collection, query string, n int) ([]FindSuggestion, error) {
	args := []any{}
	sqlQuery := `SELECT filepath, docid FROM documents WHERE active = 1`
	if collection != "" {
		sqlQuery += ` AND collection = ?`
		args = append(args, collection)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("query for suggestions: %w", err)
	}
	defer rows.Close()

	var candidates []FindSuggestion
	for rows.Next() {
		var fp, docid string
		if err := rows.Scan(&fp, &docid); err != nil {
			return nil, fmt.Errorf("scan suggestion candidate: %w", err)
		}
		candidates = append(candidates, FindSuggestion{
			FilePath: fp,
			Docid:    docid,
			Distance: levenshtein(query, fp),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance < candidates[j].Distance
		}
		return candidates[i].FilePath < candidates[j].FilePath
	})

	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates, nil
}

// FindDocuments resolves a glob or comma-separated list of paths/#docids.
// Files whose body exceeds maxBytes are reported under errs rather than
// returned in docs.
func (s *Store) FindDocuments(ctx context.Context, collection, pattern string, includeBody bool, maxBytes int64) (docs []*Document, errs []error, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, nil, err
	}

	elements := splitPatternList(pattern)

	args := []any{}
	sqlQuery := `SELECT id, collection, filepath, title, content_hash, docid, body, active FROM documents WHERE active = 1`
	if collection != "" {
		sqlQuery += ` AND collection = ?`
		args = append(args, collection)
	}

	rows, qerr := s.db.QueryContext(ctx, sqlQuery, args...)
	if qerr != nil {
		return nil, nil, fmt.Errorf("query documents: %w", qerr)
	}
	defer rows.Close()

	for rows.Next() {
		d := &Document{}
		var active int
		if serr := rows.Scan(&d.ID, &d.Collection, &d.FilePath, &d.Title, &d.ContentHash, &d.Docid, &d.Body, &active); serr != nil {
			return nil, nil, fmt.Errorf("scan document: %w", serr)
		}
		d.Active = active == 1

		if !matchesAnyElement(d, elements) {
			continue
		}

		if maxBytes > 0 && int64(len(d.Body)) > maxBytes {
			errs = append(errs, qmderrors.Oversize(qmderrors.ErrCodeDocumentTooLarge,
				fmt.Sprintf("%s exceeds max-bytes (%d > %d)", d.FilePath, len(d.Body), maxBytes), nil))
			continue
		}

		if !includeBody {
			d.Body = ""
		}
		docs = append(docs, d)
	}
	if rerr := rows.Err(); rerr != nil {
		return nil, nil, rerr
	}

	return docs, errs, nil
}

func splitPatternList(pattern string) []string {
	parts := strings.Split(pattern, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func matchesAnyElement(d *Document, elements []string) bool {
	for _, e := range elements {
		if docid, ok := strings.CutPrefix(e, "#"); ok {
			if strings.HasPrefix(d.ContentHash, docid) {
				return true
			}
			continue
		}
		if ok, _ := path.Match(e, d.FilePath); ok {
			return true
		}
		if e == d.FilePath {
			return true
		}
	}
	return false
}

// DocumentsByContentHash resolves active documents for a set of content
// hashes, keyed by hash. Used to map chunk-level vector hits back to their
// owning document. Hashes with no active document (orphaned after an
// update) are simply absent from the result.
func (s *Store) DocumentsByContentHash(ctx context.Context, hashes []string) (map[string]*Document, error) {
	if len(hashes) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	placeholders := strings.Repeat("?,", len(hashes))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(hashes))
	for i, h := range hashes {
		args[i] = h
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, collection, filepath, title, content_hash, docid, body, active
		 FROM documents WHERE active = 1 AND content_hash IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents by content hash: %w", err)
	}
	defer rows.Close()

	result := make(map[string]*Document, len(hashes))
	for rows.Next() {
		d := &Document{}
		var active int
		if err := rows.Scan(&d.ID, &d.Collection, &d.FilePath, &d.Title, &d.ContentHash, &d.Docid, &d.Body, &active); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.Active = active != 0
		result[d.ContentHash] = d
	}
	return result, rows.Err()
}

// ActiveDocuments returns every active document, optionally restricted to
// one collection. Used by the `embed` CLI verb to enumerate what
// needs (re-)embedding without a glob pattern to match against.
func (s *Store) ActiveDocuments(ctx context.Context, collection string, includeBody bool) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	args := []any{}
	sqlQuery := `SELECT id, collection, filepath, title, content_hash, docid, body, active FROM documents WHERE active = 1`
	if collection != "" {
		sqlQuery += ` AND collection = ?`
		args = append(args, collection)
	}
	sqlQuery += ` ORDER BY collection, filepath`

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("query active documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		d := &Document{}
		var active int
		if err := rows.Scan(&d.ID, &d.Collection, &d.FilePath, &d.Title, &d.ContentHash, &d.Docid, &d.Body, &active); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.Active = active == 1
		if !includeBody {
			d.Body = ""
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DeleteInactive permanently removes inactive document rows, returning the
// count of rows deleted.
func (s *Store) DeleteInactive(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE active = 0`)
	if err != nil {
		return 0, fmt.Errorf("delete inactive documents: %w", err)
	}
	return res.RowsAffected()
}

// levenshtein computes edit distance between a and b. Standard library only:
// no edit-distance library appears anywhere in the retrieval pack.
func levenshtein(a, b string) int {
	ar, br := []rune(a), []rune(b)
	if len(ar) == 0 {
		return len(br)
	}
	if len(br) == 0 {
		return len(ar)
	}

	prev := make([]int, len(br)+1)
	curr := make([]int, len(br)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ar); i++ {
		curr[0] = i
		for j := 1; j <= len(br); j++ {
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = min3(del, ins, sub)
		}
		prev, curr = curr, prev
	}
	return prev[len(br)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
