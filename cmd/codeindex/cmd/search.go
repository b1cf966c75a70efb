package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codeindex/codeindex/internal/bm25"
	"github.com/codeindex/codeindex/internal/config"
	"github.com/codeindex/codeindex/internal/embed"
	"github.com/codeindex/codeindex/internal/fuzzy"
	"github.com/codeindex/codeindex/internal/logging"
	"github.com/codeindex/codeindex/internal/query"
	"github.com/codeindex/codeindex/internal/vectorstore"
)

type searchOptions struct {
	limit    int
	format   string // "text", "json"
	bm25Only bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed codebase",
		Long: `Search the indexed codebase using hybrid search: vector similarity, BM25
keyword matching, and (for identifier-shaped queries) fuzzy symbol lookup,
fused into one ranked list.

Examples:
  codeindex search "authentication middleware"
  codeindex search "handleRequest" --limit 5
  codeindex search "error handling" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, q, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.bm25Only, "bm25-only", false, "Use keyword search only (skip semantic search)")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, q string, opts searchOptions) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if logger, cleanup, err := logging.Setup(logCfg); err == nil {
		slog.SetDefault(logger)
		defer cleanup()
	}

	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}
	dataDir := filepath.Join(root, ".codeindex")
	if !fileExists(filepath.Join(dataDir, "file-index.json")) {
		return fmt.Errorf("no index found in %s\nRun 'codeindex index' first", root)
	}

	cfg, err := config.Load(root)
	if err != nil {
		cfg = config.NewConfig()
	}

	var embedder embed.Embedder
	if opts.bm25Only {
		embedder = embed.NewStaticEmbedder768()
	} else {
		embedder, err = embed.NewEmbedder(ctx, embed.ParseProvider(cfg.Embeddings.Provider), cfg.Embeddings.Model)
		if err != nil {
			slog.Warn("embedder unavailable, falling back to BM25-only search", slog.String("error", err.Error()))
			embedder = embed.NewStaticEmbedder768()
			opts.bm25Only = true
		}
	}
	defer func() { _ = embedder.Close() }()

	bmIndex, err := bm25.New(filepath.Join(dataDir, "bm25-index"), bm25.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to open BM25 index: %w", err)
	}
	defer func() { _ = bmIndex.Close() }()

	fuzzyIndex := fuzzy.New()
	_ = fuzzyIndex.Deserialize(filepath.Join(dataDir, "fuzzy-index.json"))

	var vector query.VectorSearcher
	var vectors vectorstore.Store
	if !opts.bm25Only {
		store, verr := vectorstore.NewHNSWStore(vectorstore.DefaultConfig(embedder.Dimensions()))
		if verr == nil {
			_ = store.Load(filepath.Join(dataDir, "vectors.hnsw"))
			defer func() { _ = store.Close() }()
			vectors = store
			vector = vectorStoreAdapter{store}
		}
	}

	weights := query.DefaultWeights()
	if opts.bm25Only {
		weights = query.Weights{BM25: 1}
	}

	orch := query.New(vector, bm25Adapter{bmIndex}, fuzzyAdapter{fuzzyIndex}, embedder).WithWeights(weights)

	results, err := orch.Query(ctx, q, opts.limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintf(out, "No results found for %q\n", q)
		return nil
	}

	fmt.Fprintf(out, "Found %d results for %q:\n\n", len(results), q)
	for i, r := range results {
		fmt.Fprintf(out, "%d. %s (score: %.3f, via %s)\n", i+1, describeHit(ctx, vectors, r.ChunkID), r.Score, strings.Join(r.Provenance, "+"))
	}
	return nil
}

// describeHit resolves a fused result's chunk id back to a displayable
// location: relative path, line range, and a one-line code preview. Falls
// back to the bare chunk id when no vector store is wired (--bm25-only) or
// the chunk was dropped from the store since the hit was produced.
func describeHit(ctx context.Context, vectors vectorstore.Store, chunkID string) string {
	if vectors == nil {
		return chunkID
	}
	rec, ok := vectors.Get(ctx, chunkID)
	if !ok {
		return chunkID
	}

	preview := firstLine(rec.Code)
	if rec.Name != "" {
		return fmt.Sprintf("%s:%d-%d %s (%s) — %s", rec.RelativePath, rec.StartLine, rec.EndLine, rec.Name, rec.Type, preview)
	}
	return fmt.Sprintf("%s:%d-%d — %s", rec.RelativePath, rec.StartLine, rec.EndLine, preview)
}

func firstLine(code string) string {
	line := strings.TrimSpace(code)
	if idx := strings.IndexByte(line, '\n'); idx != -1 {
		line = strings.TrimSpace(line[:idx])
	}
	const maxLen = 80
	if len(line) > maxLen {
		line = line[:maxLen] + "…"
	}
	return line
}

// vectorStoreAdapter satisfies query.VectorSearcher over a vectorstore.Store.
type vectorStoreAdapter struct {
	store vectorstore.Store
}

func (a vectorStoreAdapter) Search(ctx context.Context, q []float32, k int) ([]query.VectorHit, error) {
	results, err := a.store.Search(ctx, q, k)
	if err != nil {
		return nil, err
	}
	hits := make([]query.VectorHit, len(results))
	for i, r := range results {
		hits[i] = query.VectorHit{ChunkID: r.Record.ID, Score: r.Score}
	}
	return hits, nil
}

// bm25Adapter satisfies query.BM25Searcher over a bm25.Index.
type bm25Adapter struct {
	index bm25.Index
}

func (a bm25Adapter) Search(ctx context.Context, q string, k int) ([]query.BM25Hit, error) {
	results, err := a.index.Search(ctx, q, k)
	if err != nil {
		return nil, err
	}
	hits := make([]query.BM25Hit, len(results))
	for i, r := range results {
		hits[i] = query.BM25Hit{ID: r.ID, ChunkID: r.ChunkID, Score: r.Score, MatchedTerms: r.MatchedTerms}
	}
	return hits, nil
}

// fuzzyAdapter satisfies query.FuzzySearcher over a *fuzzy.Index.
type fuzzyAdapter struct {
	index *fuzzy.Index
}

func (a fuzzyAdapter) Search(q string, k int) []query.FuzzyHit {
	matches := a.index.Search(q, k, "")
	hits := make([]query.FuzzyHit, len(matches))
	for i, m := range matches {
		hits[i] = query.FuzzyHit{SymbolID: m.Symbol.ID, ChunkID: m.Symbol.ChunkID, Score: m.Score}
	}
	return hits
}
