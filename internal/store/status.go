package store

import (
	"context"
	"fmt"
)

// GetStatus gathers the counts reported by the `status` CLI verb: active
// documents per collection, total chunks, and vector counts per namespace.
// The active provider/model pair, if set, is read from settings.
// activeNamespace, when non-empty, is looked up in vector_namespaces so
// the caller can compare its recorded dimension against the active
// embedding provider's current dimension (the "compatible" supplemented
// feature).
func (s *Store) GetStatus(ctx context.Context, activeNamespace string) (*Status, error) {
	st := &Status{
		Collections: make(map[string]int),
	}

	s.mu.RLock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT collection, COUNT(*) FROM documents WHERE active = 1 GROUP BY collection`)
	if err != nil {
		s.mu.RUnlock()
		return nil, fmt.Errorf("count documents by collection: %w", err)
	}
	for rows.Next() {
		var collection string
		var count int
		if err := rows.Scan(&collection, &count); err != nil {
			rows.Close()
			s.mu.RUnlock()
			return nil, fmt.Errorf("scan collection count: %w", err)
		}
		st.Collections[collection] = count
		st.TotalDocuments += count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		s.mu.RUnlock()
		return nil, err
	}
	rows.Close()

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM content_vectors`).Scan(&st.TotalChunks); err != nil {
		s.mu.RUnlock()
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	s.mu.RUnlock()

	counts, err := s.VectorCounts(ctx)
	if err != nil {
		return nil, err
	}
	st.VectorCounts = counts

	if provider, err := s.GetSetting(ctx, "embedding_provider"); err == nil {
		st.ActiveProvider = provider
	}
	if model, err := s.GetSetting(ctx, "embedding_model"); err == nil {
		st.ActiveModel = model
	}

	if activeNamespace != "" {
		if dims, ok, err := s.NamespaceDimensions(ctx, activeNamespace); err == nil && ok {
			st.ActiveNamespaceDimensions = dims
		}
	}

	return st, nil
}

// SaveChunks persists chunk rows into content_vectors, the bookkeeping
// table that lets cleanup_orphaned_vectors know which (content_hash, model)
// pairs have a live owning document.
func (s *Store) SaveChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO content_vectors (content_hash, seq, pos, model, text) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(content_hash, seq, model) DO UPDATE SET pos = excluded.pos, text = excluded.text`)
	if err != nil {
		return fmt.Errorf("prepare chunk upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ContentHash, c.Seq, c.Pos, c.Model, c.Text); err != nil {
			return fmt.Errorf("upsert chunk %s/%d: %w", c.ContentHash, c.Seq, err)
		}
	}

	return tx.Commit()
}

// GetChunksByHash returns every chunk recorded for contentHash under model,
// ordered by sequence.
func (s *Store) GetChunksByHash(ctx context.Context, contentHash, model string) ([]Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT content_hash, seq, pos, model, text FROM content_vectors
		 WHERE content_hash = ? AND model = ? ORDER BY seq`, contentHash, model)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ContentHash, &c.Seq, &c.Pos, &c.Model, &c.Text); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// CleanupOrphanedVectors finds content hashes in content_vectors that no
// longer have an active owning document and removes both the chunk rows
// and any associated rows across every namespace's vector table, per
// spec.md's "vector tables contain only chunks whose parent document is
// active" invariant.
func (s *Store) CleanupOrphanedVectors(ctx context.Context) (int64, error) {
	s.mu.Lock()
	orphanRows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT cv.content_hash FROM content_vectors cv
		WHERE NOT EXISTS (
			SELECT 1 FROM documents d WHERE d.content_hash = cv.content_hash AND d.active = 1
		)`)
	if err != nil {
		s.mu.Unlock()
		return 0, fmt.Errorf("find orphaned chunks: %w", err)
	}

	var orphans []string
	for orphanRows.Next() {
		var hash string
		if err := orphanRows.Scan(&hash); err != nil {
			orphanRows.Close()
			s.mu.Unlock()
			return 0, err
		}
		orphans = append(orphans, hash)
	}
	if err := orphanRows.Err(); err != nil {
		orphanRows.Close()
		s.mu.Unlock()
		return 0, err
	}
	orphanRows.Close()

	if len(orphans) == 0 {
		s.mu.Unlock()
		return 0, nil
	}

	var deleted int64
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.mu.Unlock()
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	for _, hash := range orphans {
		res, err := tx.ExecContext(ctx, `DELETE FROM content_vectors WHERE content_hash = ?`, hash)
		if err != nil {
			_ = tx.Rollback()
			s.mu.Unlock()
			return deleted, fmt.Errorf("delete orphaned chunks for %s: %w", hash, err)
		}
		n, _ := res.RowsAffected()
		deleted += n
	}
	if err := tx.Commit(); err != nil {
		s.mu.Unlock()
		return deleted, fmt.Errorf("commit: %w", err)
	}
	s.mu.Unlock()

	var namespaces []string
	s.vecMu.Lock()
	for ns := range s.vectors {
		namespaces = append(namespaces, ns)
	}
	s.vecMu.Unlock()

	for _, ns := range namespaces {
		if _, err := s.DeleteVectorsByHash(ctx, ns, orphans); err != nil {
			return deleted, fmt.Errorf("delete orphaned vectors in %s: %w", ns, err)
		}
	}

	return deleted, nil
}
