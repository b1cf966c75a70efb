// Package query is the hybrid query orchestrator: given a natural-language
// or symbol-like query, it fans out to the vector store, the BM25 index,
// and (for identifier-looking queries) the fuzzy symbol index in parallel,
// then fuses the three ranked lists into one ordered result set.
package query

import "context"

// Weights controls how much each sub-result list contributes to the fused
// score. Re-normalized at fusion time over whichever lists are non-empty,
// so a query with no fuzzy candidates still sums to 1.0 across vector+BM25.
type Weights struct {
	Vector float64
	BM25   float64
	Fuzzy  float64
}

// DefaultWeights is the spec's default split: vector search carries most of
// the weight, BM25 catches exact keyword matches, fuzzy is a light nudge for
// identifier-shaped queries.
func DefaultWeights() Weights {
	return Weights{Vector: 0.6, BM25: 0.3, Fuzzy: 0.1}
}

// DefaultTopK is how many candidates each sub-search pulls before fusion.
const DefaultTopK = 50

// subResult is one hit from a single sub-search, normalized to a common
// shape before fusion. ID is always the canonical chunk id: vector hits are
// already chunk-id-keyed, and the orchestrator rewrites BM25/fuzzy hits'
// native ids to their chunk id before building a subResult, so fuse's
// dedup-by-ID here genuinely merges a chunk found by more than one source
// instead of treating BM25's "relPath:startLine:endLine" and fuzzy's
// "relPath:name" ids as distinct chunks.
type subResult struct {
	ID           string
	Score        float64
	MatchedTerms []string
}

// Result is one fused, ranked hit.
type Result struct {
	ChunkID      string
	Score        float64
	VectorScore  float64
	BM25Score    float64
	FuzzyScore   float64
	MatchedTerms []string
	Provenance   []string // which sub-searches contributed: "vector", "bm25", "fuzzy"
}

// VectorSearcher is the subset of vectorstore.Store the orchestrator needs.
type VectorSearcher interface {
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)
}

// VectorHit mirrors vectorstore.Result without importing the package,
// keeping this package's dependency surface to interfaces only.
type VectorHit struct {
	ChunkID string
	Score   float32
}

// BM25Searcher is the subset of bm25.Index the orchestrator needs.
type BM25Searcher interface {
	Search(ctx context.Context, query string, k int) ([]BM25Hit, error)
}

// BM25Hit mirrors bm25.Result.
type BM25Hit struct {
	ID           string
	ChunkID      string
	Score        float64
	MatchedTerms []string
}

// FuzzySearcher is the subset of fuzzy.Index the orchestrator needs.
type FuzzySearcher interface {
	Search(query string, k int) []FuzzyHit
}

// FuzzyHit mirrors fuzzy.Match, trimmed to the symbol's chunk-addressable id.
type FuzzyHit struct {
	SymbolID string
	ChunkID  string
	Score    float64
}

// Embedder is the subset of embed.Embedder the orchestrator needs to turn a
// query string into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
