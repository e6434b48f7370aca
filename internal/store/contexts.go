package store

import (
	"context"
	"fmt"

	qmderrors "github.com/qmd-search/qmd/internal/errors"
)

// AddContext upserts the free-text description for a virtual path.
func (s *Store) AddContext(ctx context.Context, vpath, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO path_contexts (vpath, text) VALUES (?, ?)
		 ON CONFLICT(vpath) DO UPDATE SET text = excluded.text`, vpath, text)
	if err != nil {
		return fmt.Errorf("upsert path context: %w", err)
	}
	return nil
}

// ListContexts returns all registered path contexts, ordered by vpath.
func (s *Store) ListContexts(ctx context.Context) ([]*PathContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT vpath, text FROM path_contexts ORDER BY vpath`)
	if err != nil {
		return nil, fmt.Errorf("query path contexts: %w", err)
	}
	defer rows.Close()

	var out []*PathContext
	for rows.Next() {
		pc := &PathContext{}
		if err := rows.Scan(&pc.VPath, &pc.Text); err != nil {
			return nil, fmt.Errorf("scan path context: %w", err)
		}
		out = append(out, pc)
	}
	return out, rows.Err()
}

// RemoveContext deletes the path context for vpath.
func (s *Store) RemoveContext(ctx context.Context, vpath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM path_contexts WHERE vpath = ?`, vpath)
	if err != nil {
		return fmt.Errorf("delete path context: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return qmderrors.NotFound(qmderrors.ErrCodeContextNotFound, "no context for "+vpath, nil)
	}
	return nil
}
