package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/coder/hnsw"

	qmderrors "github.com/qmd-search/qmd/internal/errors"
)

// VectorEntry is a single chunk embedding to be added to a namespace.
type VectorEntry struct {
	ContentHash string
	Seq         int
	Embedding   []float32
}

// VectorHit is a single chunk-level result from VecSearch. Collapsing to
// document-level scores (max across a document's chunks) is the caller's
// job (internal/search/vector.go), since the store operates at chunk
// granularity only.
type VectorHit struct {
	ContentHash string
	Seq         int
	Distance    float32
	Score       float32
}

// vectorNamespace is the in-memory HNSW graph for one (provider, model)
// pair, plus the SQLite table it is persisted to. Grounded on
// HNSWStore's lazy-deletion ID mapping, generalized to a named subset
// of one shared database rather than its own gob snapshot file.
type vectorNamespace struct {
	mu         sync.Mutex
	table      string
	dimensions int
	graph      *hnsw.Graph[uint64]
	idMap      map[string]uint64 // "content_hash:seq" -> internal key
	keyMap     map[uint64]string
	nextKey    uint64
	loaded     bool
}

func hashSeqKey(contentHash string, seq int) string {
	return contentHash + ":" + strconv.Itoa(seq)
}

func newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.EfSearch = 20
	g.Ml = 0.25
	return g
}

// loadVectorNamespaces populates s.vectors from the vector_namespaces
// registry at Open time. Graphs themselves are rebuilt lazily on first
// use of each namespace, not eagerly here.
func (s *Store) loadVectorNamespaces() error {
	rows, err := s.db.Query(`SELECT namespace, table_name, dimensions FROM vector_namespaces`)
	if err != nil {
		return fmt.Errorf("query vector namespaces: %w", err)
	}
	defer rows.Close()

	s.vecMu.Lock()
	defer s.vecMu.Unlock()

	for rows.Next() {
		var namespace, table string
		var dims int
		if err := rows.Scan(&namespace, &table, &dims); err != nil {
			return fmt.Errorf("scan vector namespace: %w", err)
		}
		s.vectors[namespace] = &vectorNamespace{
			table:      table,
			dimensions: dims,
			graph:      newGraph(),
			idMap:      make(map[string]uint64),
			keyMap:     make(map[uint64]string),
		}
	}
	return rows.Err()
}

// namespaceLocked returns (creating if absent) the in-memory namespace for
// the given (provider, model) pair, lazily loading its rows from SQLite
// into the HNSW graph the first time it's touched. It takes s.vecMu and
// ns.mu itself but never s.mu, so AddVectors calls it with s.mu held.
func (s *Store) namespaceLocked(ctx context.Context, namespace string, dimensions int) (*vectorNamespace, error) {
	s.vecMu.Lock()
	ns, exists := s.vectors[namespace]
	if !exists {
		table := vectorTableName(namespace)
		ns = &vectorNamespace{
			table:      table,
			dimensions: dimensions,
			graph:      newGraph(),
			idMap:      make(map[string]uint64),
			keyMap:     make(map[uint64]string),
		}
		s.vectors[namespace] = ns
	}
	s.vecMu.Unlock()

	ns.mu.Lock()
	defer ns.mu.Unlock()

	if !exists {
		if _, err := s.db.ExecContext(ctx, vectorTableDDL(ns.table)); err != nil {
			return nil, fmt.Errorf("create vector table: %w", err)
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO vector_namespaces (namespace, table_name, dimensions) VALUES (?, ?, ?)`,
			namespace, ns.table, dimensions); err != nil {
			return nil, fmt.Errorf("register vector namespace: %w", err)
		}
	}

	if !ns.loaded {
		if err := ns.loadRowsLocked(ctx, s.db); err != nil {
			return nil, fmt.Errorf("load vector namespace %s: %w", namespace, err)
		}
		ns.loaded = true
	}

	return ns, nil
}

func (ns *vectorNamespace) loadRowsLocked(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT hash_seq, embedding FROM %q`, ns.table))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var hashSeq string
		var blob []byte
		if err := rows.Scan(&hashSeq, &blob); err != nil {
			return err
		}
		vec := decodeEmbedding(blob)
		if ns.dimensions == 0 {
			ns.dimensions = len(vec)
		}
		ns.addLocked(hashSeq, vec)
	}
	return rows.Err()
}

// addLocked inserts or replaces a single vector under lazy deletion,
// mirroring HNSWStore.Add's approach of orphaning the old key rather than
// deleting from the graph.
func (ns *vectorNamespace) addLocked(hashSeq string, vec []float32) {
	if existingKey, exists := ns.idMap[hashSeq]; exists {
		delete(ns.keyMap, existingKey)
		delete(ns.idMap, hashSeq)
	}

	key := ns.nextKey
	ns.nextKey++

	normalized := make([]float32, len(vec))
	copy(normalized, vec)
	normalizeVectorInPlace(normalized)

	ns.graph.Add(hnsw.MakeNode(key, normalized))
	ns.idMap[hashSeq] = key
	ns.keyMap[key] = hashSeq
}

// AddVectors upserts entries into namespace, persisting to SQLite and
// updating the in-memory HNSW graph. dimensions is used only when the
// namespace is being created for the first time.
func (s *Store) AddVectors(ctx context.Context, namespace string, dimensions int, entries []VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	ns, err := s.namespaceLocked(ctx, namespace, dimensions)
	if err != nil {
		return err
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()

	for _, e := range entries {
		if ns.dimensions != 0 && len(e.Embedding) != ns.dimensions {
			return qmderrors.Internal(
				fmt.Sprintf("dimension mismatch in namespace %s: expected %d, got %d", namespace, ns.dimensions, len(e.Embedding)), nil)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		fmt.Sprintf(`INSERT INTO %q (hash_seq, embedding) VALUES (?, ?)
		             ON CONFLICT(hash_seq) DO UPDATE SET embedding = excluded.embedding`, ns.table))
	if err != nil {
		return fmt.Errorf("prepare vector upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		hashSeq := hashSeqKey(e.ContentHash, e.Seq)
		if _, err := stmt.ExecContext(ctx, hashSeq, encodeEmbedding(e.Embedding)); err != nil {
			return fmt.Errorf("upsert vector %s: %w", hashSeq, err)
		}
		ns.addLocked(hashSeq, e.Embedding)
	}

	if ns.dimensions == 0 && len(entries) > 0 {
		ns.dimensions = len(entries[0].Embedding)
	}

	return tx.Commit()
}

// VecSearch returns up to k nearest chunks to query within namespace.
func (s *Store) VecSearch(ctx context.Context, namespace string, query []float32, k int) ([]VectorHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	s.vecMu.Lock()
	ns, exists := s.vectors[namespace]
	s.vecMu.Unlock()
	if !exists {
		return nil, nil
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()

	if !ns.loaded {
		if err := ns.loadRowsLocked(ctx, s.db); err != nil {
			return nil, fmt.Errorf("load vector namespace %s: %w", namespace, err)
		}
		ns.loaded = true
	}

	if len(query) != ns.dimensions {
		return nil, qmderrors.Internal(
			fmt.Sprintf("dimension mismatch in namespace %s: expected %d, got %d", namespace, ns.dimensions, len(query)), nil)
	}

	if ns.graph.Len() == 0 {
		return nil, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeVectorInPlace(normalized)

	nodes := ns.graph.Search(normalized, k)

	hits := make([]VectorHit, 0, len(nodes))
	for _, node := range nodes {
		hashSeq, ok := ns.keyMap[node.Key]
		if !ok {
			continue
		}
		contentHash, seq, ok := splitHashSeqKey(hashSeq)
		if !ok {
			continue
		}
		distance := ns.graph.Distance(normalized, node.Value)
		hits = append(hits, VectorHit{
			ContentHash: contentHash,
			Seq:         seq,
			Distance:    distance,
			Score:       1.0 / (1.0 + distance),
		})
	}
	return hits, nil
}

// DeleteVectorsByHash removes every chunk vector for the given content
// hashes from namespace, used by cleanup_orphaned_vectors.
func (s *Store) DeleteVectorsByHash(ctx context.Context, namespace string, contentHashes []string) (int64, error) {
	if len(contentHashes) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	s.vecMu.Lock()
	ns, exists := s.vectors[namespace]
	s.vecMu.Unlock()
	if !exists {
		return 0, nil
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()

	var deleted int64
	for _, h := range contentHashes {
		likePattern := h + ":%"
		res, err := s.db.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %q WHERE hash_seq LIKE ?`, ns.table), likePattern)
		if err != nil {
			return deleted, fmt.Errorf("delete vectors for %s: %w", h, err)
		}
		n, _ := res.RowsAffected()
		deleted += n

		for hashSeq, key := range ns.idMap {
			ch, _, ok := splitHashSeqKey(hashSeq)
			if ok && ch == h {
				delete(ns.keyMap, key)
				delete(ns.idMap, hashSeq)
			}
		}
	}

	return deleted, nil
}

// VectorCounts returns the row count per registered namespace, for status().
func (s *Store) VectorCounts(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT namespace, table_name FROM vector_namespaces`)
	if err != nil {
		return nil, fmt.Errorf("query vector namespaces: %w", err)
	}
	defer rows.Close()

	type nsTable struct{ namespace, table string }
	var namespaces []nsTable
	for rows.Next() {
		var n, t string
		if err := rows.Scan(&n, &t); err != nil {
			return nil, err
		}
		namespaces = append(namespaces, nsTable{n, t})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(namespaces))
	for _, nt := range namespaces {
		var count int
		if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %q`, nt.table)).Scan(&count); err != nil {
			return nil, fmt.Errorf("count vectors in %s: %w", nt.table, err)
		}
		counts[nt.namespace] = count
	}
	return counts, nil
}

// NamespaceDimensions returns the recorded embedding dimension for
// namespace and whether the namespace has been created yet. Used by the
// `status` CLI verb to flag a dimension mismatch between the active
// embedding provider and whatever it last wrote.
func (s *Store) NamespaceDimensions(ctx context.Context, namespace string) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return 0, false, err
	}

	var dims int
	err := s.db.QueryRowContext(ctx,
		`SELECT dimensions FROM vector_namespaces WHERE namespace = ?`, namespace).Scan(&dims)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query namespace dimensions: %w", err)
	}
	return dims, true, nil
}

func splitHashSeqKey(hashSeq string) (contentHash string, seq int, ok bool) {
	idx := strings.LastIndex(hashSeq, ":")
	if idx < 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(hashSeq[idx+1:])
	if err != nil {
		return "", 0, false
	}
	return hashSeq[:idx], n, true
}

func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		bits := math.Float32bits(f)
		buf[i*4] = byte(bits)
		buf[i*4+1] = byte(bits >> 8)
		buf[i*4+2] = byte(bits >> 16)
		buf[i*4+3] = byte(bits >> 24)
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		bits := uint32(buf[i*4]) | uint32(buf[i*4+1])<<8 | uint32(buf[i*4+2])<<16 | uint32(buf[i*4+3])<<24
		v[i] = math.Float32frombits(bits)
	}
	return v
}
