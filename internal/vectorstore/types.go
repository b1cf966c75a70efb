// Package vectorstore persists chunk embeddings and answers nearest-neighbor
// queries. Two backends satisfy the same interface: an in-process HNSW graph
// (default) and a Qdrant-backed remote store (opt-in via config). Both carry
// each vector's full chunk metadata (path, code, language, name, scope,
// docstring...) so a hit can be resolved back to displayable content and
// file/type/language-scoped operations don't need a side ledger.
package vectorstore

import (
	"context"
	"fmt"
	"time"
)

// Record is one chunk's vector-store payload: the fields needed to resolve a
// hit back to displayable content and to answer the store's metadata-scoped
// queries, per spec.md §4.9.
type Record struct {
	ID            string
	FilePath      string
	RelativePath  string
	Code          string
	StartLine     int
	EndLine       int
	Language      string
	Type          string // chunk kind: function, method, class, struct...
	Name          string
	Scope         string
	Docstring     string
	TokenEstimate int
	LastUpdated   time.Time
}

// Result is a single nearest-neighbor hit, carrying the matched record's
// metadata alongside the similarity score.
type Result struct {
	Record
	Distance float32
	Score    float32
}

// Stats summarizes the store's contents.
type Stats struct {
	RecordCount int
	OrphanCount int // lazily-deleted entries still occupying graph nodes (HNSW only)
	ByType      map[string]int
	ByLanguage  map[string]int
}

// Config configures a vector store backend.
type Config struct {
	// Dimensions is the vector dimension the store was built with.
	Dimensions int

	// Metric is the distance metric: "cos" (cosine) or "l2" (euclidean).
	Metric string

	// M is HNSW max connections per layer.
	M int

	// EfSearch is HNSW query-time search width.
	EfSearch int

	// QdrantAddr, when set with Backend == "qdrant", is the Qdrant gRPC address.
	QdrantAddr string

	// Collection names the Qdrant collection (ignored by the HNSW backend).
	Collection string
}

// DefaultConfig returns sensible defaults for the given dimension.
func DefaultConfig(dimensions int) Config {
	return Config{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   20,
	}
}

// Store persists chunk vectors and metadata and answers k-nearest-neighbor
// and metadata-scoped queries. Both the HNSW and Qdrant backends implement
// it so the query orchestrator (C13) and incremental planner (C7) can be
// written against one contract.
type Store interface {
	// Upsert inserts or replaces vectors by chunk ID, storing each record's
	// full metadata alongside its vector. vectors[i] is the embedding for
	// records[i].
	Upsert(ctx context.Context, records []Record, vectors [][]float32) error

	// Search returns the k nearest neighbors to query.
	Search(ctx context.Context, query []float32, k int) ([]Result, error)

	// SearchByType restricts Search to records whose Type matches chunkType.
	SearchByType(ctx context.Context, query []float32, k int, chunkType string) ([]Result, error)

	// SearchByLanguage restricts Search to records whose Language matches language.
	SearchByLanguage(ctx context.Context, query []float32, k int, language string) ([]Result, error)

	// Get returns the record for a single chunk id, for resolving a search
	// hit back to displayable file/line/code content.
	Get(ctx context.Context, id string) (Record, bool)

	// GetByFilePath returns every record belonging to relativePath.
	GetByFilePath(ctx context.Context, relativePath string) ([]Record, error)

	// DeleteByFilePath removes every record belonging to relativePath.
	DeleteByFilePath(ctx context.Context, relativePath string) error

	// Delete removes vectors by chunk ID.
	Delete(ctx context.Context, ids []string) error

	// Contains reports whether a chunk ID has a stored vector.
	Contains(id string) bool

	// Count returns the number of stored vectors.
	Count() int

	// GetStats returns store statistics, including type/language breakdowns.
	GetStats() Stats

	// Compact rebuilds the store from its live records, dropping any
	// lazily-deleted entries still occupying space (a no-op for backends,
	// like Qdrant, that delete eagerly server-side).
	Compact(ctx context.Context) error

	// Save persists the store to path (backend-specific; a no-op for
	// backends, like Qdrant, that are already durable server-side).
	Save(path string) error

	// Load restores a previously saved store from path.
	Load(path string) error

	Close() error
}

// ErrDimensionMismatch is returned when a vector's length doesn't match the
// store's configured dimensionality.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d (reindex with --force)", e.Expected, e.Got)
}
