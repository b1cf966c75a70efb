package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeindex/codeindex/internal/bm25"
	"github.com/codeindex/codeindex/internal/chunk"
	"github.com/codeindex/codeindex/internal/config"
	"github.com/codeindex/codeindex/internal/crawl"
	"github.com/codeindex/codeindex/internal/embed"
	"github.com/codeindex/codeindex/internal/fileindex"
	"github.com/codeindex/codeindex/internal/fuzzy"
	"github.com/codeindex/codeindex/internal/gittrack"
	"github.com/codeindex/codeindex/internal/lang"
	"github.com/codeindex/codeindex/internal/logging"
	"github.com/codeindex/codeindex/internal/plan"
	"github.com/codeindex/codeindex/internal/ui"
	"github.com/codeindex/codeindex/internal/vectorstore"
	"github.com/codeindex/codeindex/internal/xref"
)

func newIndexCmd() *cobra.Command {
	var (
		noTUI   bool
		full    bool
		offline bool
	)

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a directory for searching",
		Long: `Index a directory to enable hybrid search over its contents.

By default this plans and executes an incremental reindex: files unchanged
since the last run are skipped, based on the persisted file index and git
commit history. Pass --full to force a complete reindex regardless of prior
state.

This crawls files, chunks code, extracts cross-references, generates
embeddings, and builds the BM25, vector and fuzzy-symbol indices.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			return runIndex(ctx, cmd, path, full, offline, noTUI)
		},
	}

	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Disable TUI mode, use plain text output")
	cmd.Flags().BoolVar(&full, "full", false, "Force a full reindex, ignoring prior index state")
	cmd.Flags().BoolVar(&offline, "offline", false, "Use static embeddings (skip embedder connection)")

	cmd.AddCommand(newDepsCmd())
	cmd.AddCommand(newSymbolCmd())

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, path string, full, offline, noTUI bool) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if logger, cleanup, err := logging.Setup(logCfg); err == nil {
		slog.SetDefault(logger)
		defer cleanup()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("failed to access path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", absPath)
	}

	root, err := config.FindProjectRoot(absPath)
	if err != nil {
		root = absPath
	}
	dataDir := filepath.Join(root, ".codeindex")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		cfg = config.NewConfig()
	}

	uiCfg := ui.NewConfig(cmd.OutOrStdout(), ui.WithForcePlain(noTUI), ui.WithProjectDir(root))
	renderer := ui.NewRenderer(uiCfg)
	if err := renderer.Start(ctx); err != nil {
		slog.Warn("failed to start progress renderer", slog.String("error", err.Error()))
	}
	defer func() { _ = renderer.Stop() }()

	crawled, err := crawl.New().Crawl(crawl.Options{Root: root})
	if err != nil {
		return fmt.Errorf("failed to crawl project: %w", err)
	}

	idx, err := fileindex.Load(filepath.Join(dataDir, "file-index.json"), root)
	if err != nil {
		return fmt.Errorf("failed to load file index: %w", err)
	}

	tracker := gittrack.Open(root)
	statePath := filepath.Join(dataDir, "index-state.json")
	persisted, err := plan.LoadState(statePath)
	if err != nil {
		return fmt.Errorf("failed to load index state: %w", err)
	}
	state := persisted.ToIndexState()
	if full {
		state = plan.IndexState{}
	}

	p := plan.PlanIncrementalIndex(crawled, idx, tracker, state, false)
	if p.IsFullReindex {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Full reindex: %s\n", p.Reason)
	} else {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Incremental reindex: %d to add/update, %d to remove, %d unchanged\n",
			p.Stats.FilesToAdd+p.Stats.FilesToUpdate, p.Stats.FilesToDelete, p.Stats.FilesUnchanged)
	}

	var embedder embed.Embedder
	if offline {
		embedder = embed.NewStaticEmbedder768()
	} else {
		embedCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		embedder, err = embed.NewEmbedder(embedCtx, embed.ParseProvider(cfg.Embeddings.Provider), cfg.Embeddings.Model)
		cancel()
		if err != nil {
			return fmt.Errorf("embedder initialization failed: %w", err)
		}
	}
	defer func() { _ = embedder.Close() }()

	vectors, err := vectorstore.NewHNSWStore(vectorstore.DefaultConfig(embedder.Dimensions()))
	if err != nil {
		return fmt.Errorf("failed to create vector store: %w", err)
	}
	_ = vectors.Load(filepath.Join(dataDir, "vectors.hnsw"))
	defer func() { _ = vectors.Save(filepath.Join(dataDir, "vectors.hnsw")); _ = vectors.Close() }()

	bmIndex, err := bm25.New(filepath.Join(dataDir, "bm25-index"), bm25.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to create BM25 index: %w", err)
	}
	defer func() { _ = bmIndex.Close() }()

	fuzzyIndex := fuzzy.New()
	_ = fuzzyIndex.Deserialize(filepath.Join(dataDir, "fuzzy-index.json"))

	xrefTracker := xref.NewTracker()
	_ = xrefTracker.Deserialize(filepath.Join(dataDir, "xref-graph.json"))

	registry := lang.Default()
	deps := plan.Dependencies{
		Chunker:   chunk.New(chunk.Options{}),
		Parser:    lang.NewParserWithRegistry(registry),
		Extractor: lang.NewExtractorWithRegistry(registry),
		Embedder:  embedder,
		Vectors:   vectors,
		BM25:      bmIndex,
		Fuzzy:     fuzzyIndex,
		Xref:      xrefTracker,
		FileIndex: idx,
		DataDir:   dataDir,
	}
	defer deps.Chunker.Close()
	defer deps.Parser.Close()

	progressFunc := func(ev plan.ProgressEvent) {
		renderer.UpdateProgress(ui.ProgressEvent{
			Stage:       progressStage(ev.Phase),
			Current:     ev.Current,
			Total:       ev.Total,
			CurrentFile: ev.Path,
		})
	}

	start := time.Now()
	if err := plan.Execute(ctx, p, deps, progressFunc); err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	if err := plan.SaveState(statePath, plan.PersistedState{
		LastIndexedCommit: tracker.GetStatus().HeadCommit,
		LastIndexedAt:     time.Now(),
		Branch:            tracker.GetCurrentBranch(),
		TotalFiles:        len(crawled),
	}); err != nil {
		slog.Warn("failed to save index state", slog.String("error", err.Error()))
	}

	renderer.Complete(ui.CompletionStats{
		Files:    len(p.FilesToIndex),
		Duration: time.Since(start),
	})
	return nil
}

func progressStage(phase plan.Phase) ui.Stage {
	switch phase {
	case plan.PhaseCrawling:
		return ui.StageScanning
	case plan.PhaseAnalyzing:
		return ui.StageChunking
	case plan.PhaseEmbedding:
		return ui.StageEmbedding
	case plan.PhaseSaving:
		return ui.StageIndexing
	case plan.PhaseComplete:
		return ui.StageComplete
	default:
		return ui.StageScanning
	}
}
