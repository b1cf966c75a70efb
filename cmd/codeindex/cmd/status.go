package cmd

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/codeindex/codeindex/internal/config"
	"github.com/codeindex/codeindex/internal/fileindex"
	"github.com/codeindex/codeindex/internal/gittrack"
	"github.com/codeindex/codeindex/internal/ui"
)

// hashString returns SHA256 hash of a string (first 16 chars).
func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])[:16]
}

func newStatusCmd() *cobra.Command {
	var jsonOutput bool
	var watch bool
	var watchInterval time.Duration

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and status",
		Long: `Display information about the current index including:
  - Number of indexed files and chunks
  - Last indexing time
  - Storage sizes (file index, BM25, vectors)
  - Embedder configuration
  - Git tracker state

--watch turns this into a live-updating view, polling the index on disk so
chunk counts and storage sizes can be watched while a daemon or background
'codeindex index' run is in progress.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch {
				return runStatusWatch(cmd.Context(), cmd, watchInterval)
			}
			return runStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Continuously watch index status (live TUI)")
	cmd.Flags().DurationVar(&watchInterval, "interval", time.Second, "Poll interval for --watch")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		cwd, _ := os.Getwd()
		root = cwd
	}

	dataDir := filepath.Join(root, ".codeindex")
	fileIndexPath := filepath.Join(dataDir, "file-index.json")
	if !fileExists(fileIndexPath) {
		return fmt.Errorf("no index found in %s\nRun 'codeindex index' to create one", root)
	}

	info, err := collectStatus(ctx, root, dataDir)
	if err != nil {
		return fmt.Errorf("failed to collect status: %w", err)
	}

	noColor := ui.DetectNoColor()
	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), noColor)

	if jsonOutput {
		return renderer.RenderJSON(info)
	}
	return renderer.Render(info)
}

// runStatusWatch drives a bubbletea program that re-collects status on
// watchInterval and redraws, per SPEC_FULL.md's `status --watch`. It falls
// back to a single plain-text render when stdout isn't a TTY, the same
// fallback ui.NewRenderer applies for indexing progress.
func runStatusWatch(ctx context.Context, cmd *cobra.Command, interval time.Duration) error {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		cwd, _ := os.Getwd()
		root = cwd
	}

	dataDir := filepath.Join(root, ".codeindex")
	fileIndexPath := filepath.Join(dataDir, "file-index.json")
	if !fileExists(fileIndexPath) {
		return fmt.Errorf("no index found in %s\nRun 'codeindex index' to create one", root)
	}

	refresh := func() (ui.StatusInfo, error) {
		return collectStatus(ctx, root, dataDir)
	}

	if !ui.IsTTY(cmd.OutOrStdout()) {
		info, err := refresh()
		if err != nil {
			return fmt.Errorf("failed to collect status: %w", err)
		}
		return ui.NewStatusRenderer(cmd.OutOrStdout(), true).Render(info)
	}

	model := ui.NewStatusWatchModel(refresh, interval, ui.DetectNoColor())
	_, err = tea.NewProgram(model, tea.WithContext(ctx)).Run()
	return err
}

func collectStatus(_ context.Context, root, dataDir string) (ui.StatusInfo, error) {
	info := ui.StatusInfo{
		ProjectName: filepath.Base(root),
	}

	idx, err := fileindex.Load(filepath.Join(dataDir, "file-index.json"), root)
	if err != nil {
		return info, fmt.Errorf("failed to load file index: %w", err)
	}
	info.TotalFiles = idx.Len()
	info.TotalChunks, info.LastIndexed = idx.Summary()

	info.MetadataSize = getFileSize(filepath.Join(dataDir, "file-index.json"))
	info.BM25Size = getDirSize(filepath.Join(dataDir, "bm25-index"))
	info.VectorSize = getFileSize(filepath.Join(dataDir, "vectors.hnsw"))
	info.TotalSize = info.MetadataSize + info.BM25Size + info.VectorSize

	cfg, err := config.Load(root)
	if err != nil {
		cfg = config.NewConfig()
	}
	info.EmbedderType = cfg.Embeddings.Provider
	if info.EmbedderType == "" {
		info.EmbedderType = "ollama"
	}
	info.EmbedderModel = cfg.Embeddings.Model
	info.EmbedderStatus = "ready"

	tracker := gittrack.Open(root)
	if tracker.IsRepo() {
		info.WatcherStatus = "git: " + tracker.GetCurrentBranch()
	} else {
		info.WatcherStatus = "n/a"
	}

	return info, nil
}

// getFileSize returns the size of a file in bytes.
func getFileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// getDirSize returns the total size of all files in a directory.
func getDirSize(path string) int64 {
	var size int64

	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})

	return size
}
