package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
)

// LLMCacheKey hashes the cache input (typically the query text, or a
// query+excerpt pair for reranking) into the input_hash column value.
func LLMCacheKey(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// GetLLMCache looks up a cached response. ok is false on a cache miss.
func (s *Store) GetLLMCache(ctx context.Context, model string, purpose LLMCachePurpose, inputHash string) (response string, ok bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return "", false, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT response FROM llm_cache WHERE model = ? AND purpose = ? AND input_hash = ?`,
		model, string(purpose), inputHash).Scan(&response)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query llm cache: %w", err)
	}
	return response, true, nil
}

// PutLLMCache writes a response, overwriting any prior entry for the key.
func (s *Store) PutLLMCache(ctx context.Context, model string, purpose LLMCachePurpose, inputHash, response string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO llm_cache (model, purpose, input_hash, response) VALUES (?, ?, ?, ?)
		 ON CONFLICT(model, purpose, input_hash) DO UPDATE SET response = excluded.response`,
		model, string(purpose), inputHash, response)
	if err != nil {
		return fmt.Errorf("upsert llm cache: %w", err)
	}
	return nil
}

// DeleteLLMCache evicts every cached LLM response, used by `cleanup`.
func (s *Store) DeleteLLMCache(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM llm_cache`)
	if err != nil {
		return 0, fmt.Errorf("delete llm cache: %w", err)
	}
	return res.RowsAffected()
}
