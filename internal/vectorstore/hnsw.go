package vectorstore

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWStore is the default, in-process Store backed by coder/hnsw.
type HNSWStore struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config Config

	idMap   map[string]uint64 // chunk ID -> internal key
	keyMap  map[uint64]string // internal key -> chunk ID
	nextKey uint64

	records map[string]Record    // chunk ID -> metadata
	vectors map[string][]float32 // chunk ID -> the vector it was upserted with, used to rebuild on Compact

	closed bool
}

type hnswMetadata struct {
	IDMap   map[string]uint64
	NextKey uint64
	Config  Config
	Records map[string]Record
	Vectors map[string][]float32
}

// NewHNSWStore builds an empty HNSW-backed store.
func NewHNSWStore(cfg Config) (*HNSWStore, error) {
	if cfg.Metric == "" {
		cfg.Metric = "cos"
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	return &HNSWStore{
		graph:   newGraph(cfg),
		config:  cfg,
		idMap:   make(map[string]uint64),
		keyMap:  make(map[uint64]string),
		records: make(map[string]Record),
		vectors: make(map[string][]float32),
	}, nil
}

func newGraph(cfg Config) *hnsw.Graph[uint64] {
	graph := hnsw.NewGraph[uint64]()
	switch cfg.Metric {
	case "l2":
		graph.Distance = hnsw.EuclideanDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25
	return graph
}

// Upsert inserts vectors with their chunk metadata, replacing any existing
// vector for an ID already present. Replacement uses lazy deletion: the old
// graph node is orphaned rather than removed, since coder/hnsw corrupts the
// graph when the last node is deleted. Compact reclaims orphaned nodes.
func (s *HNSWStore) Upsert(ctx context.Context, records []Record, vectors [][]float32) error {
	if len(records) == 0 {
		return nil
	}
	if len(records) != len(vectors) {
		return fmt.Errorf("records and vectors length mismatch: %d vs %d", len(records), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	for _, v := range vectors {
		if len(v) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(v)}
		}
	}

	for i, rec := range records {
		id := rec.ID
		if existingKey, exists := s.idMap[id]; exists {
			delete(s.keyMap, existingKey)
			delete(s.idMap, id)
		}

		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		if s.config.Metric == "cos" {
			normalizeInPlace(vec)
		}

		s.graph.Add(hnsw.MakeNode(key, vec))
		s.idMap[id] = key
		s.keyMap[key] = id
		s.records[id] = rec
		s.vectors[id] = vec
	}

	return nil
}

// Search returns the k nearest stored vectors to query.
func (s *HNSWStore) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searchLocked(query, k, nil)
}

// SearchByType restricts Search to records whose Type matches chunkType.
// coder/hnsw has no native filtered search, so this over-fetches and filters.
func (s *HNSWStore) SearchByType(ctx context.Context, query []float32, k int, chunkType string) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searchLocked(query, k, func(r Record) bool { return r.Type == chunkType })
}

// SearchByLanguage restricts Search to records whose Language matches language.
func (s *HNSWStore) SearchByLanguage(ctx context.Context, query []float32, k int, language string) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searchLocked(query, k, func(r Record) bool { return r.Language == language })
}

func (s *HNSWStore) searchLocked(query []float32, k int, keep func(Record) bool) ([]Result, error) {
	if s.closed {
		return nil, fmt.Errorf("vector store is closed")
	}
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}
	if s.graph.Len() == 0 {
		return nil, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	if s.config.Metric == "cos" {
		normalizeInPlace(q)
	}

	// A filtered search needs a wider candidate pool than k, since the graph
	// returns nearest neighbors irrespective of the filter.
	fetch := k
	if keep != nil {
		fetch = k * 5
	}
	if fetch > s.graph.Len() {
		fetch = s.graph.Len()
	}

	nodes := s.graph.Search(q, fetch)
	results := make([]Result, 0, len(nodes))
	for _, node := range nodes {
		id, ok := s.keyMap[node.Key]
		if !ok {
			continue // lazily deleted
		}
		rec, ok := s.records[id]
		if !ok {
			continue
		}
		if keep != nil && !keep(rec) {
			continue
		}
		distance := s.graph.Distance(q, node.Value)
		results = append(results, Result{
			Record:   rec,
			Distance: distance,
			Score:    distanceToScore(distance, s.config.Metric),
		})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// Delete removes vectors by chunk ID, using the same lazy-deletion strategy
// as Upsert's replacement path.
func (s *HNSWStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	for _, id := range ids {
		if key, ok := s.idMap[id]; ok {
			delete(s.keyMap, key)
			delete(s.idMap, id)
		}
		delete(s.records, id)
		delete(s.vectors, id)
	}
	return nil
}

// Get returns the record for a single chunk id.
func (s *HNSWStore) Get(ctx context.Context, id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Record{}, false
	}
	rec, ok := s.records[id]
	return rec, ok
}

// GetByFilePath returns every record belonging to relativePath.
func (s *HNSWStore) GetByFilePath(ctx context.Context, relativePath string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("vector store is closed")
	}

	var out []Record
	for _, rec := range s.records {
		if rec.RelativePath == relativePath {
			out = append(out, rec)
		}
	}
	return out, nil
}

// DeleteByFilePath removes every record belonging to relativePath.
func (s *HNSWStore) DeleteByFilePath(ctx context.Context, relativePath string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("vector store is closed")
	}
	var ids []string
	for id, rec := range s.records {
		if rec.RelativePath == relativePath {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	if len(ids) == 0 {
		return nil
	}
	return s.Delete(ctx, ids)
}

func (s *HNSWStore) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	_, ok := s.idMap[id]
	return ok
}

func (s *HNSWStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0
	}
	return len(s.idMap)
}

// GetStats returns record counts and type/language breakdowns, plus the
// orphan count left behind by lazy deletion.
func (s *HNSWStore) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Stats{}
	}

	stats := Stats{
		RecordCount: len(s.records),
		OrphanCount: s.graph.Len() - len(s.idMap),
		ByType:      make(map[string]int),
		ByLanguage:  make(map[string]int),
	}
	for _, rec := range s.records {
		stats.ByType[rec.Type]++
		stats.ByLanguage[rec.Language]++
	}
	return stats
}

// Compact rebuilds the HNSW graph from the live records only, discarding
// every node orphaned by a prior Delete or Upsert-replacement.
func (s *HNSWStore) Compact(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	fresh := newGraph(s.config)
	idMap := make(map[string]uint64, len(s.records))
	keyMap := make(map[uint64]string, len(s.records))

	var key uint64
	for id, vec := range s.vectors {
		fresh.Add(hnsw.MakeNode(key, vec))
		idMap[id] = key
		keyMap[key] = id
		key++
	}

	s.graph = fresh
	s.idMap = idMap
	s.keyMap = keyMap
	s.nextKey = key
	return nil
}

// Save persists the graph and ID mappings atomically: write to a temp file,
// then rename over the target.
func (s *HNSWStore) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create vector store directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create vector index file: %w", err)
	}
	if err := s.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("export hnsw graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close vector index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename vector index file: %w", err)
	}

	return s.saveMetadata(path + ".meta")
}

func (s *HNSWStore) saveMetadata(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create vector metadata file: %w", err)
	}

	meta := hnswMetadata{
		IDMap:   s.idMap,
		NextKey: s.nextKey,
		Config:  s.config,
		Records: s.records,
		Vectors: s.vectors,
	}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encode vector metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close vector metadata file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Load restores the graph and ID mappings previously written by Save.
func (s *HNSWStore) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	if err := s.loadMetadata(path + ".meta"); err != nil {
		return fmt.Errorf("load vector metadata: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open vector index file: %w", err)
	}
	defer file.Close()

	if err := s.graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("import hnsw graph: %w", err)
	}
	return nil
}

func (s *HNSWStore) loadMetadata(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open vector metadata file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			slog.Warn("close vector metadata file", "error", cerr)
		}
	}()

	var meta hnswMetadata
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return fmt.Errorf("decode vector metadata: %w", err)
	}

	s.idMap = meta.IDMap
	s.nextKey = meta.NextKey
	s.config = meta.Config
	s.records = meta.Records
	if s.records == nil {
		s.records = make(map[string]Record)
	}
	s.vectors = meta.Vectors
	if s.vectors == nil {
		s.vectors = make(map[string][]float32)
	}
	s.keyMap = make(map[uint64]string, len(s.idMap))
	for id, key := range s.idMap {
		s.keyMap[key] = id
	}
	return nil
}

func (s *HNSWStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.graph = nil
	return nil
}

var _ Store = (*HNSWStore)(nil)

func normalizeInPlace(v []float32) {
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

func distanceToScore(distance float32, metric string) float32 {
	switch metric {
	case "l2":
		return 1.0 / (1.0 + distance)
	default:
		return 1.0 - distance/2.0
	}
}
