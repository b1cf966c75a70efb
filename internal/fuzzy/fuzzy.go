// Package fuzzy implements the symbol name index: a name -> location map
// searched by edit distance rather than exact match, for "find the thing
// named roughly like this" queries. No fuzzy-matching library appears
// anywhere in the retrieved example repos (checked every go.mod and grepped
// every source tree), so this is built on the standard library alone.
package fuzzy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Kind is a symbol's syntactic category. Only these kinds are indexable;
// anything else (blocks, file contexts) carries no useful symbol name.
type Kind string

const (
	KindFunction  Kind = "function"
	KindMethod    Kind = "method"
	KindClass     Kind = "class"
	KindInterface Kind = "interface"
	KindType      Kind = "type"
	KindEnum      Kind = "enum"
	KindConst     Kind = "const"
	KindVariable  Kind = "variable"
	KindStruct    Kind = "struct"
	KindTrait     Kind = "trait"
	KindImpl      Kind = "impl"
)

var indexableKinds = map[Kind]bool{
	KindFunction: true, KindMethod: true, KindClass: true, KindInterface: true,
	KindType: true, KindEnum: true, KindConst: true, KindVariable: true,
	KindStruct: true, KindTrait: true, KindImpl: true,
}

// IsIndexable reports whether kind belongs to the spec's indexable set.
func IsIndexable(kind Kind) bool { return indexableKinds[kind] }

// Symbol is one indexed name and its location.
type Symbol struct {
	ID       string `json:"id"` // relPath:name
	Name     string `json:"name"`
	Kind     Kind   `json:"kind"`
	FilePath string `json:"filePath"`
	RelPath  string `json:"relPath"`
	Line     int    `json:"line"`
	Scope    string `json:"scope"`

	// ChunkID is the canonical content-hash chunk id (see internal/chunk),
	// carried so the query fusion layer can join a fuzzy hit against the
	// same chunk surfaced by the vector and BM25 searchers. Empty when the
	// symbol isn't backed by a chunk.
	ChunkID string `json:"chunkId,omitempty"`
}

// Match is a ranked search hit.
type Match struct {
	Symbol   Symbol
	Distance int
	Score    float64 // 1 / (1 + distance), 1.0 for an exact match
}

// Index is the name -> location map.
type Index struct {
	mu      sync.RWMutex
	symbols map[string]Symbol // id -> symbol
}

// New creates an empty fuzzy symbol index.
func New() *Index {
	return &Index{symbols: make(map[string]Symbol)}
}

// symbolID builds the spec's relPath:name id convention.
func symbolID(relPath, name string) string {
	return relPath + ":" + name
}

// Add indexes a symbol, replacing any existing entry with the same id. Kinds
// outside the indexable set are silently ignored.
func (idx *Index) Add(sym Symbol) {
	if !IsIndexable(sym.Kind) || sym.Name == "" {
		return
	}
	sym.ID = symbolID(sym.RelPath, sym.Name)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.symbols[sym.ID] = sym
}

// AddAll indexes multiple symbols.
func (idx *Index) AddAll(syms []Symbol) {
	for _, s := range syms {
		idx.Add(s)
	}
}

// RemoveByPrefix removes every symbol whose id starts with idPrefix — used
// to drop all symbols belonging to a file ("relPath:" as the prefix).
func (idx *Index) RemoveByPrefix(idPrefix string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for id := range idx.symbols {
		if strings.HasPrefix(id, idPrefix) {
			delete(idx.symbols, id)
		}
	}
}

// Search ranks symbols by edit distance to query, nearest first. An optional
// kind filter restricts the candidate set before ranking. Ties break by
// shorter name, then lexicographically, for deterministic output.
func (idx *Index) Search(query string, k int, kindFilter Kind) []Match {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	lowerQuery := strings.ToLower(query)
	matches := make([]Match, 0, len(idx.symbols))
	for _, sym := range idx.symbols {
		if kindFilter != "" && sym.Kind != kindFilter {
			continue
		}
		dist := levenshtein(lowerQuery, strings.ToLower(sym.Name))
		matches = append(matches, Match{
			Symbol:   sym,
			Distance: dist,
			Score:    1.0 / float64(1+dist),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		if len(matches[i].Symbol.Name) != len(matches[j].Symbol.Name) {
			return len(matches[i].Symbol.Name) < len(matches[j].Symbol.Name)
		}
		return matches[i].Symbol.ID < matches[j].Symbol.ID
	})

	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// Count returns the number of indexed symbols.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.symbols)
}

// Clear empties the index.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.symbols = make(map[string]Symbol)
}

// document is the on-disk JSON shape.
type document struct {
	Symbols map[string]Symbol `json:"symbols"`
}

// Serialize persists the index atomically: write to a temp file, then
// rename over the target.
func (idx *Index) Serialize(path string) error {
	idx.mu.RLock()
	doc := document{Symbols: idx.symbols}
	idx.mu.RUnlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fuzzy index: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create fuzzy index directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write fuzzy index: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("save fuzzy index: %w", err)
	}
	return nil
}

// Deserialize restores the index previously written by Serialize. A missing
// file leaves the index empty rather than erroring.
func (idx *Index) Deserialize(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		idx.Clear()
		return nil
	}
	if err != nil {
		return fmt.Errorf("read fuzzy index: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("unmarshal fuzzy index: %w", err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.symbols = doc.Symbols
	if idx.symbols == nil {
		idx.symbols = make(map[string]Symbol)
	}
	return nil
}

// levenshtein computes the edit distance between a and b using the standard
// two-row dynamic-programming table, operating on runes so multi-byte
// identifiers aren't miscounted.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = min3(del, ins, sub)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
