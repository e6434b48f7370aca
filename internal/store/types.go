// Package store is the SQLite-backed persistence layer: collections,
// documents, FTS5 keyword search, namespaced HNSW vector search, the LLM
// response cache, and settings.
package store

import (
	"strings"
	"time"

	qmderrors "github.com/qmd-search/qmd/internal/errors"
)

// Collection is a named set of files rooted at a filesystem path.
type Collection struct {
	Name string
	Path string
	Mask string
}

// Document is a markdown file's indexed snapshot.
type Document struct {
	ID          int64
	Collection  string
	FilePath    string
	Title       string
	ContentHash string // hex-encoded SHA-256 of Body
	Docid       string // 6-hex-char prefix of ContentHash
	Body        string
	Active      bool
}

// DiffResult reports the outcome of AddOrUpdateDocument.
type DiffResult struct {
	Added     bool
	Unchanged bool
	Updated   bool
	Hash      string
}

// Chunk is a substring of a document's body used as an embedding input.
type Chunk struct {
	ContentHash string
	Seq         int
	Pos         int
	Model       string // "<provider>/<model-id>"
	Text        string
}

// PathContext is free-text description attached to a virtual path.
type PathContext struct {
	VPath string
	Text  string
}

// LLMCachePurpose distinguishes the two cached call sites.
type LLMCachePurpose string

const (
	LLMCachePurposeExpand LLMCachePurpose = "expand"
	LLMCachePurposeRerank LLMCachePurpose = "rerank"
)

// Status summarizes the index for the `status` CLI verb.
type Status struct {
	Collections    map[string]int // collection name -> active doc count
	TotalDocuments int
	TotalChunks    int
	VectorCounts   map[string]int // "<provider>/<model-id>" -> row count
	ActiveProvider string
	ActiveModel    string

	// ActiveNamespaceDimensions is the dimension recorded for the active
	// provider/model's vector namespace, or 0 if that namespace has never
	// been written to.
	ActiveNamespaceDimensions int
}

// FindSuggestion is a near-miss candidate returned alongside a NotFound error.
type FindSuggestion struct {
	FilePath string
	Docid    string
	Distance int
}

// errAmbiguousDocid builds the error returned when a #docid matches more
// than one active document.
func errAmbiguousDocid(docid string, matches []string) error {
	return qmderrors.Conflict(qmderrors.ErrCodeDocidAmbiguous,
		"docid "+docid+" matches "+itoa(len(matches))+" documents", nil).
		WithDetail("matches", strings.Join(matches, ","))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// timeNow is overridable in tests; production always uses time.Now.
var timeNow = time.Now
