package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/codeindex/codeindex/internal/config"
	"github.com/codeindex/codeindex/internal/scout"
)

func newDepsCmd() *cobra.Command {
	var (
		maxDepth           int
		includeNodeModules bool
		jsonOutput         bool
	)

	cmd := &cobra.Command{
		Use:   "deps <entry-point>...",
		Short: "Build and summarize the import-dependency graph from a set of entry points",
		Long: `Walks imports transitively from one or more entry-point files and reports
the resulting dependency graph: node and edge counts, import cycles, root
files (nothing imports them) and leaf files (they import nothing local).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeps(cmd.Context(), cmd, args, maxDepth, includeNodeModules, jsonOutput)
		},
	}

	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "Maximum import traversal depth (0 = scout default)")
	cmd.Flags().BoolVar(&includeNodeModules, "include-node-modules", false, "Traverse into node_modules/vendor-style dependency directories")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runDeps(ctx context.Context, cmd *cobra.Command, entryPoints []string, maxDepth int, includeNodeModules, jsonOutput bool) error {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root = "."
	}

	cfg := scout.DefaultConfig()
	if maxDepth > 0 {
		cfg.MaxDepth = maxDepth
	}
	cfg.IncludeNodeModules = includeNodeModules

	sc := scout.New(root, cfg, scout.NewParseCache(0, nil))
	defer sc.Close()

	graph, err := sc.BuildDependencyGraph(ctx, entryPoints)
	if err != nil {
		return fmt.Errorf("failed to build dependency graph: %w", err)
	}

	stats := scout.GetGraphStats(graph)

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Stats  scout.Stats `json:"stats"`
			Cycles [][]string  `json:"cycles"`
			Roots  []string    `json:"roots"`
			Leaves []string    `json:"leaves"`
		}{Stats: stats, Cycles: graph.Cycles, Roots: graph.Roots, Leaves: graph.Leaves})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Nodes: %d  Edges: %d  Cycles: %d  Roots: %d  Leaves: %d\n",
		stats.NodeCount, stats.EdgeCount, stats.CycleCount, stats.RootCount, stats.LeafCount)

	if len(graph.Cycles) > 0 {
		fmt.Fprintln(out, "\nCycles:")
		for _, c := range graph.Cycles {
			fmt.Fprintf(out, "  %v\n", c)
		}
	}

	roots := append([]string{}, graph.Roots...)
	sort.Strings(roots)
	if len(roots) > 0 {
		fmt.Fprintln(out, "\nRoots:")
		for _, r := range roots {
			fmt.Fprintf(out, "  %s\n", r)
		}
	}

	return nil
}
