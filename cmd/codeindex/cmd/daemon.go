package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeindex/codeindex/internal/bm25"
	"github.com/codeindex/codeindex/internal/chunk"
	"github.com/codeindex/codeindex/internal/config"
	"github.com/codeindex/codeindex/internal/crawl"
	"github.com/codeindex/codeindex/internal/daemon"
	"github.com/codeindex/codeindex/internal/embed"
	"github.com/codeindex/codeindex/internal/fileindex"
	"github.com/codeindex/codeindex/internal/fuzzy"
	"github.com/codeindex/codeindex/internal/gittrack"
	"github.com/codeindex/codeindex/internal/lang"
	"github.com/codeindex/codeindex/internal/logging"
	"github.com/codeindex/codeindex/internal/plan"
	"github.com/codeindex/codeindex/internal/vectorstore"
	"github.com/codeindex/codeindex/internal/watcher"
	"github.com/codeindex/codeindex/internal/xref"
)

func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Watch the project and keep the index up to date automatically",
		Long: `The daemon watches the project tree with fsnotify (falling back to polling
when fsnotify is unavailable), debounces the resulting events, and triggers
an incremental reindex whenever files settle.

Commands:
  start   Start watching (runs in background by default)
  stop    Stop a running daemon
  status  Show whether a daemon is running`,
	}

	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())

	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	var foreground bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start watching the project for changes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemonStart(cmd.Context(), cmd, foreground)
		},
	}

	cmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (don't daemonize)")
	return cmd
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemonStop(cmd)
		},
	}
}

func newDaemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the watch daemon is running",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemonStatus(cmd)
		},
	}
}

func daemonPIDPath(root string) string {
	return filepath.Join(root, ".codeindex", "daemon.pid")
}

func runDaemonStart(ctx context.Context, cmd *cobra.Command, foreground bool) error {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	pidFile := daemon.NewPIDFile(daemonPIDPath(root))
	if pidFile.IsRunning() {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Daemon is already running")
		return nil
	}

	if foreground {
		logCfg := logging.DefaultConfig()
		logCfg.Level = "debug"
		logCfg.WriteToStderr = true
		if logger, cleanup, err := logging.Setup(logCfg); err == nil {
			slog.SetDefault(logger)
			defer cleanup()
		}

		if err := pidFile.Write(); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = pidFile.Remove() }()

		watchCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (logs: %s)\n", root, logging.DefaultLogPath())
		return runWatchLoop(watchCtx, root)
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Starting daemon in background...")

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	bgCmd := exec.Command(execPath, "daemon", "start", "--foreground")
	bgCmd.Dir = root
	bgCmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := bgCmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- bgCmd.Wait() }()

	for i := 0; i < 20; i++ {
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("daemon process exited unexpectedly: %w", err)
			}
			return fmt.Errorf("daemon process exited unexpectedly with code 0")
		default:
		}
		time.Sleep(100 * time.Millisecond)
		if pidFile.IsRunning() {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Daemon started (pid: %d)\n", bgCmd.Process.Pid)
			return nil
		}
	}

	return fmt.Errorf("daemon failed to start within timeout")
}

func runDaemonStop(cmd *cobra.Command) error {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	pidFile := daemon.NewPIDFile(daemonPIDPath(root))
	if !pidFile.IsRunning() {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
		return nil
	}

	pid, err := pidFile.Read()
	if err != nil {
		return fmt.Errorf("failed to read PID: %w", err)
	}

	if err := pidFile.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if !pidFile.IsRunning() {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Daemon stopped (was pid: %d)\n", pid)
			_ = pidFile.Remove()
			return nil
		}
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Daemon not responding, sending SIGKILL...")
	if err := pidFile.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill daemon: %w", err)
	}
	_ = pidFile.Remove()
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Daemon killed")
	return nil
}

func runDaemonStatus(cmd *cobra.Command) error {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	pidFile := daemon.NewPIDFile(daemonPIDPath(root))
	if !pidFile.IsRunning() {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Run 'codeindex daemon start' to start it")
		return nil
	}

	pid, _ := pidFile.Read()
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Daemon is running (pid: %d)\n", pid)
	return nil
}

// runWatchLoop watches root and triggers an incremental reindex whenever a
// debounced batch of file events arrives. It blocks until ctx is cancelled.
func runWatchLoop(ctx context.Context, root string) error {
	w, err := watcher.NewHybridWatcher(watcher.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = w.Stop() }()

	go func() {
		if err := w.Start(ctx, root); err != nil && ctx.Err() == nil {
			slog.Error("watcher stopped unexpectedly", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load(root)
	if err != nil {
		cfg = config.NewConfig()
	}
	compaction := daemon.NewCompactionChecker(cfg.Compaction)

	for {
		select {
		case <-ctx.Done():
			return nil
		case events, ok := <-w.Events():
			if !ok {
				return nil
			}
			slog.Info("file changes detected, reindexing", slog.Int("count", len(events)))
			if err := reindexIncremental(ctx, root, compaction); err != nil {
				slog.Error("incremental reindex failed", slog.String("error", err.Error()))
			}
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			slog.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

// reindexIncremental runs one incremental-plan-and-execute cycle against the
// persisted index state, the same pipeline 'codeindex index' drives, then
// checks whether the vector store has drifted past its configured orphan
// threshold and compacts if so.
func reindexIncremental(ctx context.Context, root string, compaction *daemon.CompactionChecker) error {
	dataDir := filepath.Join(root, ".codeindex")
	cfg, err := config.Load(root)
	if err != nil {
		cfg = config.NewConfig()
	}

	crawled, err := crawl.New().Crawl(crawl.Options{Root: root})
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
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

	p := plan.PlanIncrementalIndex(crawled, idx, tracker, persisted.ToIndexState(), true)
	if len(p.FilesToIndex) == 0 && len(p.FilesToRemove) == 0 {
		return nil
	}

	embedder, err := embed.NewEmbedder(ctx, embed.ParseProvider(cfg.Embeddings.Provider), cfg.Embeddings.Model)
	if err != nil {
		return fmt.Errorf("embedder initialization failed: %w", err)
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
		return fmt.Errorf("failed to open BM25 index: %w", err)
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

	if err := plan.Execute(ctx, p, deps, nil); err != nil {
		return fmt.Errorf("incremental index execution failed: %w", err)
	}

	if compaction != nil {
		if err := compaction.MaybeCompact(ctx, vectors); err != nil {
			slog.Warn("vector store compaction failed", slog.String("error", err.Error()))
		}
	}

	return plan.SaveState(statePath, plan.PersistedState{
		LastIndexedCommit: tracker.GetStatus().HeadCommit,
		LastIndexedAt:     time.Now(),
		Branch:            tracker.GetCurrentBranch(),
		TotalFiles:        len(crawled),
	})
}
