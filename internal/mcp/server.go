// Package mcp implements the Model Context Protocol (MCP) server for
// CodeIndex. It bridges AI clients (Claude Code, Cursor) with the
// retrieval engine: dependency analysis, symbol lookup, incremental index
// planning, task tracking, and bounded codebase summaries.
package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codeindex/codeindex/internal/config"
	"github.com/codeindex/codeindex/internal/crawl"
	"github.com/codeindex/codeindex/internal/fileindex"
	"github.com/codeindex/codeindex/internal/gittrack"
	"github.com/codeindex/codeindex/internal/plan"
	"github.com/codeindex/codeindex/internal/scout"
	"github.com/codeindex/codeindex/internal/taskstore"
	"github.com/codeindex/codeindex/pkg/version"
)

// Server is the MCP server for CodeIndex.
type Server struct {
	mcp *mcp.Server

	scout    *scout.Scout
	tasks    *taskstore.Store
	crawler  *crawl.Crawler
	index    *fileindex.Index
	tracker  *gittrack.Tracker
	config   *config.Config
	logger   *slog.Logger

	rootPath string
	dataDir  string

	mu sync.RWMutex
}

// Deps bundles the components a Server needs. Tasks may be nil if the
// caller doesn't want manage_task exposed (e.g. a read-only analysis
// server); every other field is required.
type Deps struct {
	Scout    *scout.Scout
	Tasks    *taskstore.Store
	Crawler  *crawl.Crawler
	Index    *fileindex.Index
	Tracker  *gittrack.Tracker
	Config   *config.Config
	RootPath string
	DataDir  string
	Logger   *slog.Logger
}

// NewServer creates a new MCP server wired to deps.
func NewServer(deps Deps) (*Server, error) {
	if deps.Scout == nil {
		return nil, errors.New("scout is required")
	}
	if deps.Crawler == nil {
		return nil, errors.New("crawler is required")
	}
	if deps.Index == nil {
		return nil, errors.New("file index is required")
	}
	if deps.Tracker == nil {
		return nil, errors.New("git tracker is required")
	}
	if deps.Config == nil {
		deps.Config = config.NewConfig()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		scout:    deps.Scout,
		tasks:    deps.Tasks,
		crawler:  deps.Crawler,
		index:    deps.Index,
		tracker:  deps.Tracker,
		config:   deps.Config,
		rootPath: deps.RootPath,
		dataDir:  deps.DataDir,
		logger:   logger,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "CodeIndex",
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "CodeIndex", version.Version
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// ListTools returns the tools this server exposes.
func (s *Server) ListTools() []ToolInfo {
	infos := []ToolInfo{
		{
			Name:        "analyze_dependency",
			Description: "Walks the import graph from a set of entry points and reports stats, roots, leaves and any circular dependencies found.",
		},
		{
			Name:        "find_symbol",
			Description: "Finds every definition and call site of a symbol within the import graph rooted at a set of entry points.",
		},
		{
			Name:        "index_codebase",
			Description: "Crawls the project and plans a full or incremental reindex without executing it: reports which files need indexing or removal and why.",
		},
		{
			Name:        "summarize_codebase",
			Description: "Produces a bounded architectural summary of a scope of the codebase, prioritizing any focus terms given.",
		},
	}
	if s.tasks != nil {
		infos = append(infos, ToolInfo{
			Name:        "manage_task",
			Description: "Creates, queries and updates goal/subtask records in the durable task store.",
		})
	}
	return infos
}

// registerTools registers every tool with the MCP server.
func (s *Server) registerTools() {
	s.logger.Debug("registering MCP tools")

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "analyze_dependency",
		Description: "Walks the import graph from a set of entry points and reports stats, roots, leaves and any circular dependencies found.",
	}, s.handleAnalyzeDependency)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "find_symbol",
		Description: "Finds every definition and call site of a symbol within the import graph rooted at a set of entry points.",
	}, s.handleFindSymbol)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_codebase",
		Description: "Crawls the project and plans a full or incremental reindex without executing it: reports which files need indexing or removal and why.",
	}, s.handleIndexCodebase)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "summarize_codebase",
		Description: "Produces a bounded architectural summary of a scope of the codebase, prioritizing any focus terms given.",
	}, s.handleSummarizeCodebase)

	if s.tasks != nil {
		mcp.AddTool(s.mcp, &mcp.Tool{
			Name:        "manage_task",
			Description: "Creates, queries and updates goal/subtask records in the durable task store.",
		}, s.handleManageTask)
	}

	s.logger.Info("MCP tools registered", slog.Int("count", len(s.ListTools())))
}

// handleAnalyzeDependency is the MCP SDK handler for analyze_dependency.
func (s *Server) handleAnalyzeDependency(ctx context.Context, _ *mcp.CallToolRequest, input AnalyzeDependencyInput) (
	*mcp.CallToolResult,
	AnalyzeDependencyOutput,
	error,
) {
	requestID := generateRequestID()
	if len(input.EntryPoints) == 0 {
		return nil, AnalyzeDependencyOutput{}, NewInvalidParamsError("entryPoints is required and must be non-empty")
	}

	start := time.Now()
	s.logger.Info("analyze_dependency started",
		slog.String("request_id", requestID),
		slog.Int("entry_points", len(input.EntryPoints)))

	sc := s.scoutFor(input.MaxDepth, input.IncludeNodeModules)
	graph, err := sc.BuildDependencyGraph(ctx, input.EntryPoints)
	if err != nil {
		s.logger.Error("analyze_dependency failed",
			slog.String("request_id", requestID), slog.String("error", err.Error()))
		return nil, AnalyzeDependencyOutput{}, MapError(err)
	}

	stats := scout.GetGraphStats(graph)

	nodes := make(map[string]GraphNode, len(graph.Nodes))
	for path, n := range graph.Nodes {
		nodes[path] = GraphNode{
			Language:     n.Language,
			ParseError:   n.ParseError,
			Dependencies: n.Dependencies,
			Dependents:   n.Dependents,
		}
	}

	output := AnalyzeDependencyOutput{
		Stats: DependencyStats{
			NodeCount:  stats.NodeCount,
			EdgeCount:  stats.EdgeCount,
			CycleCount: stats.CycleCount,
			RootCount:  stats.RootCount,
			LeafCount:  stats.LeafCount,
		},
		Roots:        graph.Roots,
		Leaves:       graph.Leaves,
		CircularDeps: graph.Cycles,
		Nodes:        nodes,
	}

	s.logger.Info("analyze_dependency completed",
		slog.String("request_id", requestID), slog.Duration("duration", time.Since(start)))

	return nil, output, nil
}

// handleFindSymbol is the MCP SDK handler for find_symbol.
func (s *Server) handleFindSymbol(ctx context.Context, _ *mcp.CallToolRequest, input FindSymbolInput) (
	*mcp.CallToolResult,
	FindSymbolOutput,
	error,
) {
	requestID := generateRequestID()
	if input.SymbolName == "" {
		return nil, FindSymbolOutput{}, NewInvalidParamsError("symbolName is required")
	}
	if len(input.EntryPoints) == 0 {
		return nil, FindSymbolOutput{}, NewInvalidParamsError("entryPoints is required and must be non-empty")
	}

	start := time.Now()
	s.logger.Info("find_symbol started",
		slog.String("request_id", requestID), slog.String("symbol", input.SymbolName))

	graph, err := s.scout.BuildDependencyGraph(ctx, input.EntryPoints)
	if err != nil {
		return nil, FindSymbolOutput{}, MapError(err)
	}

	defs := scout.FindSymbolDefinitions(input.SymbolName, graph)
	calls := scout.FindCallSites(input.SymbolName, graph)

	output := FindSymbolOutput{
		Definitions:     make([]SymbolLocation, 0, len(defs)),
		CallSites:       make([]CallLocation, 0, len(calls)),
		DefinitionCount: len(defs),
		CallSiteCount:   len(calls),
	}
	for _, d := range defs {
		output.Definitions = append(output.Definitions, SymbolLocation{
			File: d.File, Line: d.Line, Type: d.Kind, Name: d.Name,
		})
	}
	for _, c := range calls {
		output.CallSites = append(output.CallSites, CallLocation{File: c.File, Line: c.Line})
	}

	s.logger.Info("find_symbol completed",
		slog.String("request_id", requestID), slog.Duration("duration", time.Since(start)),
		slog.Int("definitions", len(defs)), slog.Int("call_sites", len(calls)))

	return nil, output, nil
}

// handleIndexCodebase is the MCP SDK handler for index_codebase. It reports
// the incremental planner's decision without executing it.
func (s *Server) handleIndexCodebase(ctx context.Context, _ *mcp.CallToolRequest, input IndexCodebaseInput) (
	*mcp.CallToolResult,
	IndexCodebaseOutput,
	error,
) {
	requestID := generateRequestID()
	mode := input.Mode
	if mode == "" {
		mode = "incremental"
	}
	if mode != "full" && mode != "incremental" {
		return nil, IndexCodebaseOutput{}, NewInvalidParamsError("mode must be 'full' or 'incremental'")
	}

	start := time.Now()
	s.logger.Info("index_codebase started",
		slog.String("request_id", requestID), slog.String("mode", mode))

	crawled, err := s.crawler.Crawl(crawl.Options{Root: s.rootPath})
	if err != nil {
		return nil, IndexCodebaseOutput{}, MapError(err)
	}

	statePath := filepath.Join(s.dataDir, "index-state.json")
	persisted, err := plan.LoadState(statePath)
	if err != nil {
		return nil, IndexCodebaseOutput{}, MapError(err)
	}

	state := persisted.ToIndexState()
	if mode == "full" {
		state = plan.IndexState{}
	}

	p := plan.PlanIncrementalIndex(crawled, s.index, s.tracker, state, input.IncludeUncommitted)

	toIndex := make([]string, 0, len(p.FilesToIndex))
	for _, f := range p.FilesToIndex {
		toIndex = append(toIndex, f.RelPath)
	}

	output := IndexCodebaseOutput{
		Mode:          mode,
		IsFullReindex: p.IsFullReindex,
		Reason:        p.Reason,
		Stats: PlanStats{
			FilesToAdd:       p.Stats.FilesToAdd,
			FilesToUpdate:    p.Stats.FilesToUpdate,
			FilesToDelete:    p.Stats.FilesToDelete,
			FilesUnchanged:   p.Stats.FilesUnchanged,
			TotalFilesInRepo: p.Stats.TotalFilesInRepo,
		},
		FilesToIndex:  toIndex,
		FilesToRemove: p.FilesToRemove,
		GitAvailable:  s.tracker.IsRepo(),
		CurrentState: IndexCurrentState{
			LastIndexedCommit: state.LastIndexedCommit,
			Branch:            state.Branch,
			HasPriorState:     state.HasPriorState,
		},
	}

	s.logger.Info("index_codebase completed",
		slog.String("request_id", requestID), slog.Duration("duration", time.Since(start)),
		slog.Bool("is_full_reindex", p.IsFullReindex))

	return nil, output, nil
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close releases server resources.
func (s *Server) Close() error {
	s.scout.Close()
	if s.tasks != nil {
		return s.tasks.Close()
	}
	return nil
}

// scoutFor returns the server's scout, overridden with maxDepth and
// includeNodeModules when a caller supplies them. maxDepth <= 0 keeps the
// scout's configured default.
func (s *Server) scoutFor(maxDepth int, includeNodeModules bool) *scout.Scout {
	if maxDepth <= 0 && !includeNodeModules {
		return s.scout
	}
	cfg := scout.DefaultConfig()
	if maxDepth > 0 {
		cfg.MaxDepth = maxDepth
	}
	cfg.IncludeNodeModules = includeNodeModules
	return s.scout.WithConfig(cfg)
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
