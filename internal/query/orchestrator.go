package query

import (
	"context"
	"regexp"

	"golang.org/x/sync/errgroup"
)

// identifierPattern matches a single bare identifier-looking token: the
// condition under which the fuzzy symbol index joins the fan-out.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// looksLikeIdentifier reports whether query is a single identifier-shaped
// token rather than a natural-language phrase.
func looksLikeIdentifier(query string) bool {
	return identifierPattern.MatchString(query)
}

// Orchestrator fans a query out to the vector store, BM25 index, and (for
// identifier-shaped queries) the fuzzy symbol index, then fuses the results.
type Orchestrator struct {
	vector   VectorSearcher
	bm25     BM25Searcher
	fuzzy    FuzzySearcher
	embedder Embedder
	weights  Weights
	topK     int
}

// New creates an Orchestrator. A nil fuzzy searcher is allowed — queries
// simply never exercise that branch, used when no symbol index is wired up.
func New(vector VectorSearcher, bm25 BM25Searcher, fuzzy FuzzySearcher, embedder Embedder) *Orchestrator {
	return &Orchestrator{
		vector:   vector,
		bm25:     bm25,
		fuzzy:    fuzzy,
		embedder: embedder,
		weights:  DefaultWeights(),
		topK:     DefaultTopK,
	}
}

// WithWeights overrides the default fusion weights.
func (o *Orchestrator) WithWeights(w Weights) *Orchestrator {
	o.weights = w
	return o
}

// WithTopK overrides how many candidates each sub-search pulls before
// fusion.
func (o *Orchestrator) WithTopK(k int) *Orchestrator {
	if k > 0 {
		o.topK = k
	}
	return o
}

// Query runs the fan-out and returns up to k fused results, ordered best
// first. Partial sub-search failures don't abort the query: a source that
// errors simply contributes nothing, matching the planner's local-recovery
// posture for retrieval-path failures.
func (o *Orchestrator) Query(ctx context.Context, q string, k int) ([]Result, error) {
	if k <= 0 {
		k = o.topK
	}

	g, gctx := errgroup.WithContext(ctx)

	var vecHits []VectorHit
	g.Go(func() error {
		if o.embedder == nil || o.vector == nil {
			return nil
		}
		embedding, err := o.embedder.Embed(gctx, q)
		if err != nil {
			return nil
		}
		hits, err := o.vector.Search(gctx, embedding, o.topK)
		if err != nil {
			return nil
		}
		vecHits = hits
		return nil
	})

	var bm25Hits []BM25Hit
	g.Go(func() error {
		if o.bm25 == nil {
			return nil
		}
		hits, err := o.bm25.Search(gctx, q, o.topK)
		if err != nil {
			return nil
		}
		bm25Hits = hits
		return nil
	})

	var fuzzyHits []FuzzyHit
	if o.fuzzy != nil && looksLikeIdentifier(q) {
		g.Go(func() error {
			fuzzyHits = o.fuzzy.Search(q, o.topK)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	vec := make([]subResult, len(vecHits))
	for i, h := range vecHits {
		vec[i] = subResult{ID: h.ChunkID, Score: float64(h.Score)}
	}
	// BM25 and fuzzy hits carry their own source-native id (needed for
	// prefix-scan deletion elsewhere) alongside the canonical chunk id. Fuse
	// on the chunk id when present so a chunk surfaced by more than one
	// source actually dedups; fall back to the native id for any hit
	// produced before chunk ids were backfilled.
	bm25 := make([]subResult, len(bm25Hits))
	for i, h := range bm25Hits {
		id := h.ChunkID
		if id == "" {
			id = h.ID
		}
		bm25[i] = subResult{ID: id, Score: h.Score, MatchedTerms: h.MatchedTerms}
	}
	fuzzy := make([]subResult, len(fuzzyHits))
	for i, h := range fuzzyHits {
		id := h.ChunkID
		if id == "" {
			id = h.SymbolID
		}
		fuzzy[i] = subResult{ID: id, Score: h.Score}
	}

	fused := fuse(vec, bm25, fuzzy, o.weights)
	if len(fused) > k {
		fused = fused[:k]
	}
	return fused, nil
}
