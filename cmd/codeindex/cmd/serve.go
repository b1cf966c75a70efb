package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/codeindex/codeindex/internal/config"
	"github.com/codeindex/codeindex/internal/crawl"
	"github.com/codeindex/codeindex/internal/fileindex"
	"github.com/codeindex/codeindex/internal/gittrack"
	"github.com/codeindex/codeindex/internal/logging"
	"github.com/codeindex/codeindex/internal/mcp"
	"github.com/codeindex/codeindex/internal/scout"
	"github.com/codeindex/codeindex/internal/taskstore"
)

func newServeCmd() *cobra.Command {
	var transport string
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol server that exposes CodeIndex's
dependency analysis, symbol lookup, incremental indexing and task tracking
to AI coding assistants such as Claude Code and Cursor.

MCP communicates over stdio: stdout is reserved exclusively for JSON-RPC
messages, so all status and debug output goes to the log file instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			level := "info"
			if debug {
				level = "debug"
			}
			if cleanup, err := logging.SetupMCPModeWithLevel(level); err == nil {
				loggingCleanup = cleanup
			}
			return runServe(cmd.Context(), transport, 0)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport to serve over (stdio)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable verbose debug logging to the log file")

	return cmd
}

// runServe wires the core components and starts the MCP server. maxDepth of
// 0 keeps the scout's default traversal depth.
func runServe(ctx context.Context, transport string, maxDepth int) error {
	if transport == "stdio" {
		if err := verifyStdinForMCP(); err != nil {
			slog.Warn("stdin check failed", slog.String("error", err.Error()))
		}
	}

	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}
	dataDir := filepath.Join(root, ".codeindex")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	scoutCfg := scout.DefaultConfig()
	if maxDepth > 0 {
		scoutCfg.MaxDepth = maxDepth
	}

	idx, err := fileindex.Load(filepath.Join(dataDir, "file-index.json"), root)
	if err != nil {
		return fmt.Errorf("failed to load file index: %w", err)
	}

	tasks, err := taskstore.Open(filepath.Join(dataDir, "tasks.db"))
	if err != nil {
		return fmt.Errorf("failed to open task store: %w", err)
	}

	srv, err := mcp.NewServer(mcp.Deps{
		Scout:    scout.New(root, scoutCfg, scout.NewParseCache(0, nil)),
		Tasks:    tasks,
		Crawler:  crawl.New(),
		Index:    idx,
		Tracker:  gittrack.Open(root),
		RootPath: root,
		DataDir:  dataDir,
	})
	if err != nil {
		_ = tasks.Close()
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer func() { _ = srv.Close() }()

	slog.Info("codeindex serve starting", slog.String("root", root), slog.String("transport", transport))
	return srv.Serve(ctx, transport)
}

// verifyStdinForMCP warns when stdin looks like an interactive terminal
// rather than the pipe an MCP client connects over.
func verifyStdinForMCP() error {
	if isatty.IsTerminal(os.Stdin.Fd()) {
		return fmt.Errorf("stdin is a terminal, not a pipe: codeindex serve expects to be launched by an MCP client over stdin/stdout")
	}
	return nil
}
