// Package bm25 implements the lexical half of retrieval: an Okapi BM25
// posting-list index over chunk text, backed by Bleve. Document IDs follow
// the "relPath:startLine:endLine" convention so that removing every chunk
// belonging to a file is a prefix scan rather than a full re-tokenization.
package bm25

import "context"

// Document is a unit of indexed text plus small bits of metadata carried
// through to search results (symbol name, kind, language...).
type Document struct {
	ID string

	// ChunkID is the canonical content-hash chunk id (see internal/chunk),
	// carried alongside ID so the query fusion layer can join a BM25 hit
	// against the same chunk surfaced by the vector and fuzzy searchers.
	// Empty when a document isn't backed by a chunk.
	ChunkID string

	Text     string
	Metadata map[string]string
}

// Result is a single scored match.
type Result struct {
	ID           string
	ChunkID      string
	Score        float64
	Metadata     map[string]string
	MatchedTerms []string
}

// Stats summarizes the index.
type Stats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// Config tunes the BM25 scoring function and tokenizer.
type Config struct {
	// K1 is the term frequency saturation parameter.
	K1 float64

	// B is the length normalization parameter.
	B float64

	// StopWords filters common, low-signal tokens from the index.
	StopWords []string

	// MinTokenLength drops tokens shorter than this.
	MinTokenLength int
}

// DefaultConfig returns the standard Okapi BM25 parameters (k1=1.2, b=0.75)
// with a code-aware stop word list.
func DefaultConfig() Config {
	return Config{
		K1:             1.2,
		B:              0.75,
		StopWords:      DefaultStopWords,
		MinTokenLength: 2,
	}
}

// DefaultStopWords filters language keywords and generic identifiers that
// carry little retrieval signal in source code.
var DefaultStopWords = []string{
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while", "import", "package",
	"data", "result", "value", "item", "key", "err", "ctx", "tmp",
}

// Index is the BM25 lexical index contract.
type Index interface {
	// AddDocument indexes or replaces a document by ID.
	AddDocument(ctx context.Context, doc Document) error

	// AddDocuments batches AddDocument.
	AddDocuments(ctx context.Context, docs []Document) error

	// RemoveDocumentsByPrefix deletes every document whose ID starts with
	// idPrefix — the mechanism for removing all chunks of a file.
	RemoveDocumentsByPrefix(ctx context.Context, idPrefix string) error

	// Search returns the top k documents ranked by BM25 score.
	Search(ctx context.Context, query string, k int) ([]Result, error)

	// Clear empties the index.
	Clear(ctx context.Context) error

	// GetStats returns index statistics.
	GetStats() Stats

	// Serialize persists the index to path.
	Serialize(path string) error

	// Deserialize restores the index from path.
	Deserialize(path string) error

	Close() error
}
