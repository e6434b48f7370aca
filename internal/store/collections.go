package store

import (
	"context"
	"fmt"

	qmderrors "github.com/qmd-search/qmd/internal/errors"
)

// AddCollection registers a new named collection. name must be unique.
func (s *Store) AddCollection(ctx context.Context, name, path, mask string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections WHERE name = ?`, name).Scan(&exists); err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists > 0 {
		return qmderrors.Conflict(qmderrors.ErrCodeCollectionExists,
			"collection "+name+" already exists", nil)
	}

	if mask == "" {
		mask = "**/*.md"
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (name, path, mask) VALUES (?, ?, ?)`, name, path, mask); err != nil {
		return fmt.Errorf("insert collection: %w", err)
	}
	return nil
}

// ListCollections returns all registered collections, ordered by name.
func (s *Store) ListCollections(ctx context.Context) ([]*Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name, path, mask FROM collections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query collections: %w", err)
	}
	defer rows.Close()

	var out []*Collection
	for rows.Next() {
		c := &Collection{}
		if err := rows.Scan(&c.Name, &c.Path, &c.Mask); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RemoveCollection deletes a collection and deactivates its documents.
// Document rows are kept (inactive) until cleanup, per spec.md's retention
// rule for stale vector references.
func (s *Store) RemoveCollection(ctx context.Context, name string) error {
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

	res, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return qmderrors.NotFound(qmderrors.ErrCodeCollectionNotFound, "collection "+name+" not found", nil)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET active = 0 WHERE collection = ? AND active = 1`, name); err != nil {
		return fmt.Errorf("deactivate collection documents: %w", err)
	}

	return tx.Commit()
}

// RenameCollection renames a collection in place; its documents' collection
// column is updated to match, preserving document identity.
func (s *Store) RenameCollection(ctx context.Context, oldName, newName string) error {
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

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections WHERE name = ?`, newName).Scan(&exists); err != nil {
		return fmt.Errorf("check target name: %w", err)
	}
	if exists > 0 {
		return qmderrors.Conflict(qmderrors.ErrCodeCollectionExists, "collection "+newName+" already exists", nil)
	}

	res, err := tx.ExecContext(ctx, `UPDATE collections SET name = ? WHERE name = ?`, newName, oldName)
	if err != nil {
		return fmt.Errorf("rename collection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return qmderrors.NotFound(qmderrors.ErrCodeCollectionNotFound, "collection "+oldName+" not found", nil)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE documents SET collection = ? WHERE collection = ?`, newName, oldName); err != nil {
		return fmt.Errorf("retarget documents: %w", err)
	}

	return tx.Commit()
}
