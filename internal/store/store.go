package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // pure Go SQLite driver (no CGO)

	qmderrors "github.com/qmd-search/qmd/internal/errors"
)

// DefaultCacheSizeMB is the SQLite page cache size used when
// config.PerformanceConfig.SQLiteCacheMB is unset.
const DefaultCacheSizeMB = 64

// Store is the SQLite-backed index: collections, documents, FTS5 keyword
// search, namespaced vector search, the LLM cache, and settings.
//
// Writes are serialized by mu.Lock; read-only methods take mu.RLock so
// they can run concurrently with each other (SQLite's WAL mode allows
// concurrent readers alongside the single writer connection).
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool

	vecMu   sync.Mutex
	vectors map[string]*vectorNamespace // namespace key -> in-memory HNSW + table name
}

// validateIntegrity checks a SQLite file for corruption before Open trusts it.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// Open opens (creating if absent) the SQLite index at path. Pass "" for an
// in-memory store (used by tests). cacheSizeMB sets SQLite's page cache
// size (config.PerformanceConfig.SQLiteCacheMB); 0 or negative falls back
// to DefaultCacheSizeMB.
func Open(path string, cacheSizeMB int) (*Store, error) {
	if cacheSizeMB <= 0 {
		cacheSizeMB = DefaultCacheSizeMB
	}

	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index directory %s: %w", dir, err)
		}

		if err := validateIntegrity(path); err != nil {
			slog.Warn("index_corrupted", slog.String("path", path), slog.String("error", err.Error()))
			return nil, qmderrors.Corruption(qmderrors.ErrCodeIndexCorrupt,
				"index database is corrupted, run cleanup --rebuild-index", err)
		}

		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer connection: SQLite serializes writes anyway, and this
	// avoids "database is locked" churn across goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = -%d", cacheSizeMB*1024),
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}

	s := &Store{
		db:      db,
		path:    path,
		vectors: make(map[string]*vectorNamespace),
	}

	if _, err := db.Exec(schemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	if err := s.loadVectorNamespaces(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load vector namespaces: %w", err)
	}

	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

func (s *Store) checkOpen() error {
	if s.closed {
		return qmderrors.Internal("store is closed", nil)
	}
	return nil
}

// ContentHash computes the hex SHA-256 digest used as (content_hash, docid)
// identity per spec.md's data model.
func ContentHash(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

// Docid derives the stable 6-hex-character short identifier from a full hash.
func Docid(contentHash string) string {
	if len(contentHash) < 6 {
		return contentHash
	}
	return contentHash[:6]
}

// titleFromBody extracts the first top-level heading, else returns fallback.
func titleFromBody(body, fallback string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return fallback
}
