package bm25

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search"
)

const (
	tokenizerName = "codeindex_tokenizer"
	stopFilterName = "codeindex_stop"
	analyzerName   = "codeindex_analyzer"
)

// BleveIndex is the Bleve-backed Index implementation. Bleve's own scorer
// doesn't expose k1/b as a tunable, so Search re-ranks Bleve's candidate
// hits using a from-scratch Okapi BM25 computation driven by Config.K1/B,
// per spec.md §4.10.
type BleveIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	config Config
	closed bool

	// docLengths and totalLength track corpus statistics needed for the
	// length-normalization term of Okapi BM25 (document length relative to
	// the corpus average). Kept in memory rather than recomputed per query;
	// rebuilt by a one-time scan on New/Deserialize for a pre-existing index.
	docLengths  map[string]int
	totalLength int64
}

// storedDoc is the document shape persisted in Bleve: the searchable text
// plus a JSON blob of caller metadata, carried through to search results.
type storedDoc struct {
	Text     string `json:"text"`
	ChunkID  string `json:"chunkId"`
	Metadata string `json:"metadata"`
	Length   int    `json:"length"` // token count at index time, for BM25 length normalization
}

// New creates a BM25 index. An empty path builds an in-memory index, used
// by tests and ephemeral single-query sessions.
func New(path string, cfg Config) (*BleveIndex, error) {
	indexMapping, err := buildMapping(cfg)
	if err != nil {
		return nil, fmt.Errorf("build bm25 index mapping: %w", err)
	}

	var idx bleve.Index
	opened := false
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create bm25 index directory: %w", err)
		}
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err == nil {
			opened = true
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open bm25 index: %w", err)
	}

	b := &BleveIndex{index: idx, path: path, config: cfg, docLengths: make(map[string]int)}
	if opened {
		if err := b.rebuildLengthStats(); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func buildMapping(cfg Config) (*mapping.IndexMappingImpl, error) {
	registerOnce(cfg)

	im := bleve.NewIndexMapping()
	err := im.AddCustomAnalyzer(analyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": tokenizerName,
		"token_filters": []string{
			lowercase.Name,
			stopFilterName,
		},
	})
	if err != nil {
		return nil, err
	}
	im.DefaultAnalyzer = analyzerName
	return im, nil
}

var registerGuard sync.Once

// registerOnce registers the custom tokenizer/filter with Bleve's global
// registry. It must run exactly once per process regardless of how many
// indexes are opened.
func registerOnce(cfg Config) {
	registerGuard.Do(func() {
		minLen := cfg.MinTokenLength
		if minLen <= 0 {
			minLen = 2
		}
		stop := cfg.StopWords
		if stop == nil {
			stop = DefaultStopWords
		}
		_ = registry.RegisterTokenizer(tokenizerName, func(map[string]interface{}, *registry.Cache) (analysis.Tokenizer, error) {
			return &codeTokenizer{minLen: minLen}, nil
		})
		_ = registry.RegisterTokenFilter(stopFilterName, func(map[string]interface{}, *registry.Cache) (analysis.TokenFilter, error) {
			return &stopFilter{stopWords: stopWordSet(stop)}, nil
		})
	})
}

type codeTokenizer struct{ minLen int }

func (t *codeTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := Tokenize(text, t.minLen)

	result := make(analysis.TokenStream, 0, len(tokens))
	offset := 0
	for i, tok := range tokens {
		start := strings.Index(strings.ToLower(text[offset:]), tok)
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(tok)
		result = append(result, &analysis.Token{
			Term:     []byte(tok),
			Start:    start,
			End:      end,
			Position: i + 1,
			Type:     analysis.AlphaNumeric,
		})
		if end <= len(text) {
			offset = end
		}
	}
	return result
}

type stopFilter struct{ stopWords map[string]struct{} }

func (f *stopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, tok := range input {
		if _, stop := f.stopWords[strings.ToLower(string(tok.Term))]; !stop {
			result = append(result, tok)
		}
	}
	return result
}

// AddDocument indexes or replaces a single document.
func (b *BleveIndex) AddDocument(ctx context.Context, doc Document) error {
	return b.AddDocuments(ctx, []Document{doc})
}

// AddDocuments batch-indexes documents.
func (b *BleveIndex) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("bm25 index is closed")
	}

	minLen := b.config.MinTokenLength
	if minLen <= 0 {
		minLen = 2
	}

	batch := b.index.NewBatch()
	for _, doc := range docs {
		metaJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", doc.ID, err)
		}
		length := len(Tokenize(doc.Text, minLen))
		if err := batch.Index(doc.ID, storedDoc{
			Text:     doc.Text,
			ChunkID:  doc.ChunkID,
			Metadata: string(metaJSON),
			Length:   length,
		}); err != nil {
			return fmt.Errorf("index document %s: %w", doc.ID, err)
		}

		if old, exists := b.docLengths[doc.ID]; exists {
			b.totalLength -= int64(old)
		}
		b.docLengths[doc.ID] = length
		b.totalLength += int64(length)
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("execute bm25 batch: %w", err)
	}
	return nil
}

// RemoveDocumentsByPrefix removes every document whose ID starts with
// idPrefix. Bleve has no native prefix-delete, so this scans all IDs once.
func (b *BleveIndex) RemoveDocumentsByPrefix(ctx context.Context, idPrefix string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("bm25 index is closed")
	}

	ids, err := b.allIDsLocked()
	if err != nil {
		return err
	}

	batch := b.index.NewBatch()
	matched := 0
	for _, id := range ids {
		if strings.HasPrefix(id, idPrefix) {
			batch.Delete(id)
			if length, ok := b.docLengths[id]; ok {
				b.totalLength -= int64(length)
				delete(b.docLengths, id)
			}
			matched++
		}
	}
	if matched == 0 {
		return nil
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("delete documents with prefix %q: %w", idPrefix, err)
	}
	return nil
}

// Search returns the top k BM25 matches for query.
func (b *BleveIndex) Search(ctx context.Context, query string, k int) ([]Result, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("bm25 index is closed")
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetField("text")

	// Over-fetch candidates from Bleve's own ranking, then rescore with real
	// Okapi BM25 using Config.K1/B below — Bleve picks the candidate set,
	// our formula picks the final order.
	candidatePool := k * 5
	if candidatePool < 50 {
		candidatePool = 50
	}

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = candidatePool
	req.IncludeLocations = true
	req.Fields = []string{"metadata", "chunkId", "length"}

	resp, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bm25 search: %w", err)
	}
	if len(resp.Hits) == 0 {
		return nil, nil
	}

	queryTerms := uniqueTerms(resp.Hits)
	idf, err := b.idfLocked(ctx, queryTerms, int(resp.Total))
	if err != nil {
		return nil, err
	}
	avgDocLength := b.avgDocLengthLocked()

	results := make([]Result, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		results = append(results, Result{
			ID:           hit.ID,
			ChunkID:      stringField(hit, "chunkId"),
			Score:        okapiScore(hit, idf, avgDocLength, b.config),
			Metadata:     decodeMetadata(hit),
			MatchedTerms: matchedTerms(hit),
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// uniqueTerms collects every matched term across a hit set's "text" field
// locations, the candidate pool for per-term document-frequency lookups.
func uniqueTerms(hits search.DocumentMatchCollection) []string {
	seen := make(map[string]struct{})
	for _, hit := range hits {
		for term := range hit.Locations["text"] {
			seen[term] = struct{}{}
		}
	}
	terms := make([]string, 0, len(seen))
	for term := range seen {
		terms = append(terms, term)
	}
	return terms
}

// idfLocked computes the standard BM25 inverse document frequency for each
// term: ln(1 + (N - df + 0.5)/(df + 0.5)), where df is the number of
// documents in the corpus containing the term (queried directly, since
// Bleve doesn't surface per-term document frequency on a match hit).
func (b *BleveIndex) idfLocked(ctx context.Context, terms []string, _ int) (map[string]float64, error) {
	n := float64(len(b.docLengths))
	idf := make(map[string]float64, len(terms))
	for _, term := range terms {
		df, err := b.documentFrequencyLocked(ctx, term)
		if err != nil {
			return nil, err
		}
		idf[term] = math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))
	}
	return idf, nil
}

func (b *BleveIndex) documentFrequencyLocked(ctx context.Context, term string) (int, error) {
	tq := bleve.NewTermQuery(term)
	tq.SetField("text")
	req := bleve.NewSearchRequestOptions(tq, 0, 0, false)
	resp, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("document frequency for %q: %w", term, err)
	}
	return int(resp.Total), nil
}

func (b *BleveIndex) avgDocLengthLocked() float64 {
	if len(b.docLengths) == 0 {
		return 0
	}
	return float64(b.totalLength) / float64(len(b.docLengths))
}

// okapiScore computes the Okapi BM25 score for hit against the given IDF
// table, using cfg.K1/B for term-frequency saturation and length
// normalization.
func okapiScore(hit *search.DocumentMatch, idf map[string]float64, avgDocLength float64, cfg Config) float64 {
	docLength := float64(intField(hit, "length"))
	if avgDocLength == 0 {
		avgDocLength = docLength
	}

	var score float64
	for term, locations := range hit.Locations["text"] {
		tf := float64(len(locations))
		denom := tf + cfg.K1*(1-cfg.B+cfg.B*(docLength/avgDocLength))
		if denom == 0 {
			continue
		}
		score += idf[term] * (tf * (cfg.K1 + 1)) / denom
	}
	return score
}

func stringField(hit *search.DocumentMatch, field string) string {
	s, _ := hit.Fields[field].(string)
	return s
}

func intField(hit *search.DocumentMatch, field string) int {
	switch v := hit.Fields[field].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// rebuildLengthStats scans every stored document once to repopulate
// docLengths/totalLength, used when New or Deserialize attaches to an
// index that already has documents on disk.
func (b *BleveIndex) rebuildLengthStats() error {
	count, _ := b.index.DocCount()
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(count)
	req.Fields = []string{"length"}

	resp, err := b.index.Search(req)
	if err != nil {
		return fmt.Errorf("rebuild bm25 length stats: %w", err)
	}

	b.docLengths = make(map[string]int, len(resp.Hits))
	b.totalLength = 0
	for _, hit := range resp.Hits {
		length := intField(hit, "length")
		b.docLengths[hit.ID] = length
		b.totalLength += int64(length)
	}
	return nil
}

func decodeMetadata(hit *search.DocumentMatch) map[string]string {
	raw, ok := hit.Fields["metadata"].(string)
	if !ok || raw == "" {
		return nil
	}
	var meta map[string]string
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil
	}
	return meta
}

func matchedTerms(hit *search.DocumentMatch) []string {
	terms := make(map[string]struct{})
	for field, locations := range hit.Locations {
		if field != "text" {
			continue
		}
		for term := range locations {
			terms[term] = struct{}{}
		}
	}
	result := make([]string, 0, len(terms))
	for term := range terms {
		result = append(result, term)
	}
	return result
}

// Clear empties the index.
func (b *BleveIndex) Clear(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("bm25 index is closed")
	}

	ids, err := b.allIDsLocked()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	b.docLengths = make(map[string]int)
	b.totalLength = 0
	return b.index.Batch(batch)
}

// GetStats returns index statistics.
func (b *BleveIndex) GetStats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return Stats{}
	}
	count, _ := b.index.DocCount()
	return Stats{DocumentCount: int(count)}
}

// Serialize is a no-op for disk-backed indexes: Bleve persists as it writes.
// In-memory indexes have nothing to serialize to.
func (b *BleveIndex) Serialize(path string) error {
	return nil
}

// Deserialize reopens the index from path, replacing the current handle.
func (b *BleveIndex) Deserialize(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.index != nil && !b.closed {
		_ = b.index.Close()
	}

	idx, err := bleve.Open(path)
	if err != nil {
		return fmt.Errorf("open bm25 index: %w", err)
	}
	b.index = idx
	b.path = path
	b.closed = false
	return b.rebuildLengthStats()
}

func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

func (b *BleveIndex) allIDsLocked() ([]string, error) {
	count, _ := b.index.DocCount()
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(count)
	req.Fields = nil

	resp, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("list bm25 document ids: %w", err)
	}
	ids := make([]string, len(resp.Hits))
	for i, hit := range resp.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

var _ Index = (*BleveIndex)(nil)
