package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantStore is the remote alternate backend. No CLI command or flag
// constructs it; the commands use HNSWStore. Unlike HNSWStore it is durable server-side: Save,
// Load, and Compact are no-ops, and deletes are eager rather than lazy.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	dimensions int
}

// NewQdrantStore connects to a Qdrant instance and ensures the configured
// collection exists with the right vector size and cosine distance.
func NewQdrantStore(ctx context.Context, cfg Config) (*QdrantStore, error) {
	if cfg.Collection == "" {
		cfg.Collection = "codeindex_chunks"
	}

	client, err := qdrant.NewClient(&qdrant.Config{Host: cfg.QdrantAddr})
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant: %w", err)
	}

	store := &QdrantStore{client: client, collection: cfg.Collection, dimensions: cfg.Dimensions}
	if err := store.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return store, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check qdrant collection: %w", err)
	}
	if exists {
		return nil
	}

	return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

// recordToPayload flattens a Record into a Qdrant payload map. chunk_id is
// carried explicitly since Qdrant point IDs must be a UUID or unsigned
// integer, not an arbitrary chunk ID string.
func recordToPayload(rec Record) map[string]any {
	return map[string]any{
		"chunk_id":      rec.ID,
		"file_path":     rec.FilePath,
		"relative_path": rec.RelativePath,
		"code":          rec.Code,
		"start_line":    int64(rec.StartLine),
		"end_line":      int64(rec.EndLine),
		"language":      rec.Language,
		"type":          rec.Type,
		"name":          rec.Name,
		"scope":         rec.Scope,
		"docstring":     rec.Docstring,
		"token_estimate": int64(rec.TokenEstimate),
		"last_updated":  rec.LastUpdated.Format(time.RFC3339),
	}
}

func payloadToRecord(payload map[string]*qdrant.Value) Record {
	str := func(key string) string {
		if v, ok := payload[key]; ok {
			return v.GetStringValue()
		}
		return ""
	}
	num := func(key string) int {
		if v, ok := payload[key]; ok {
			return int(v.GetIntegerValue())
		}
		return 0
	}

	lastUpdated, _ := time.Parse(time.RFC3339, str("last_updated"))
	return Record{
		ID:            str("chunk_id"),
		FilePath:      str("file_path"),
		RelativePath:  str("relative_path"),
		Code:          str("code"),
		StartLine:     num("start_line"),
		EndLine:       num("end_line"),
		Language:      str("language"),
		Type:          str("type"),
		Name:          str("name"),
		Scope:         str("scope"),
		Docstring:     str("docstring"),
		TokenEstimate: num("token_estimate"),
		LastUpdated:   lastUpdated,
	}
}

// Upsert inserts or replaces vectors by chunk ID, storing each record's full
// metadata as the point's payload.
func (s *QdrantStore) Upsert(ctx context.Context, records []Record, vectors [][]float32) error {
	if len(records) == 0 {
		return nil
	}
	if len(records) != len(vectors) {
		return fmt.Errorf("records and vectors length mismatch: %d vs %d", len(records), len(vectors))
	}

	points := make([]*qdrant.PointStruct, len(records))
	for i, rec := range records {
		if len(vectors[i]) != s.dimensions {
			return ErrDimensionMismatch{Expected: s.dimensions, Got: len(vectors[i])}
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(fnv1a(rec.ID))),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(recordToPayload(rec)),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

// Search returns the k nearest neighbors to query.
func (s *QdrantStore) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	return s.searchFiltered(ctx, query, k, nil)
}

// SearchByType restricts Search to points whose "type" payload field matches chunkType.
func (s *QdrantStore) SearchByType(ctx context.Context, query []float32, k int, chunkType string) ([]Result, error) {
	filter := &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatch("type", chunkType)}}
	return s.searchFiltered(ctx, query, k, filter)
}

// SearchByLanguage restricts Search to points whose "language" payload field matches language.
func (s *QdrantStore) SearchByLanguage(ctx context.Context, query []float32, k int, language string) ([]Result, error) {
	filter := &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatch("language", language)}}
	return s.searchFiltered(ctx, query, k, filter)
}

func (s *QdrantStore) searchFiltered(ctx context.Context, query []float32, k int, filter *qdrant.Filter) ([]Result, error) {
	if len(query) != s.dimensions {
		return nil, ErrDimensionMismatch{Expected: s.dimensions, Got: len(query)}
	}

	resp, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(k)),
		Filter:         filter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}

	results := make([]Result, 0, len(resp))
	for _, point := range resp {
		rec := payloadToRecord(point.Payload)
		if rec.ID == "" {
			continue
		}
		score := point.GetScore()
		results = append(results, Result{
			Record:   rec,
			Score:    score,
			Distance: 1 - score,
		})
	}
	return results, nil
}

// Get returns the record for a single chunk id.
func (s *QdrantStore) Get(ctx context.Context, id string) (Record, bool) {
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDNum(uint64(fnv1a(id)))},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil || len(points) == 0 {
		return Record{}, false
	}
	return payloadToRecord(points[0].Payload), true
}

// GetByFilePath returns every record belonging to relativePath.
func (s *QdrantStore) GetByFilePath(ctx context.Context, relativePath string) ([]Record, error) {
	filter := &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatch("relative_path", relativePath)}}

	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Filter:         filter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant scroll: %w", err)
	}

	records := make([]Record, 0, len(points))
	for _, p := range points {
		records = append(records, payloadToRecord(p.Payload))
	}
	return records, nil
}

// DeleteByFilePath removes every point belonging to relativePath in one
// filtered delete, rather than a fetch-then-delete-by-id round trip.
func (s *QdrantStore) DeleteByFilePath(ctx context.Context, relativePath string) error {
	filter := &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatch("relative_path", relativePath)}}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelectorFilter(filter),
	})
	if err != nil {
		return fmt.Errorf("qdrant delete by file path: %w", err)
	}
	return nil
}

// Delete removes points by chunk ID.
func (s *QdrantStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDNum(uint64(fnv1a(id)))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("qdrant delete: %w", err)
	}
	return nil
}

// Contains reports whether a chunk ID has a stored point.
func (s *QdrantStore) Contains(id string) bool {
	ctx := context.Background()
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDNum(uint64(fnv1a(id)))},
	})
	if err != nil {
		return false
	}
	return len(points) > 0
}

// Count returns the number of points in the collection.
func (s *QdrantStore) Count() int {
	ctx := context.Background()
	resp, err := s.client.Count(ctx, &qdrant.CountPoints{CollectionName: s.collection})
	if err != nil {
		return 0
	}
	return int(resp)
}

// GetStats returns record counts and type/language breakdowns. Qdrant
// deletes eagerly, so OrphanCount is always zero.
func (s *QdrantStore) GetStats() Stats {
	ctx := context.Background()
	stats := Stats{ByType: make(map[string]int), ByLanguage: make(map[string]int)}

	count, err := s.client.Count(ctx, &qdrant.CountPoints{CollectionName: s.collection})
	if err != nil {
		return stats
	}
	stats.RecordCount = int(count)

	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Limit:          qdrant.PtrOf(uint32(count)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return stats
	}
	for _, p := range points {
		rec := payloadToRecord(p.Payload)
		stats.ByType[rec.Type]++
		stats.ByLanguage[rec.Language]++
	}
	return stats
}

// Compact is a no-op: Qdrant deletes eagerly and compacts its own segments.
func (s *QdrantStore) Compact(ctx context.Context) error { return nil }

// Save is a no-op: Qdrant persists server-side.
func (s *QdrantStore) Save(path string) error { return nil }

// Load is a no-op: Qdrant persists server-side.
func (s *QdrantStore) Load(path string) error { return nil }

func (s *QdrantStore) Close() error {
	return s.client.Close()
}

var _ Store = (*QdrantStore)(nil)

// fnv1a hashes a chunk ID to a stable uint64 for use as a Qdrant numeric
// point ID (Qdrant doesn't accept arbitrary string IDs).
func fnv1a(s string) uint64 {
	const (
		offset = 14695981039346656037
		prime  = 1099511628211
	)
	hash := uint64(offset)
	for i := 0; i < len(s); i++ {
		hash ^= uint64(s[i])
		hash *= prime
	}
	return hash
}
