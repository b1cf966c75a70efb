package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeindex/codeindex/internal/config"
	"github.com/codeindex/codeindex/internal/scout"
)

func newSymbolCmd() *cobra.Command {
	var (
		entryPoints []string
		maxDepth    int
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "symbol <name>",
		Short: "Find every definition and call site of a symbol",
		Long: `Walks the import graph rooted at --entry-point and reports every definition
and call site matching the given symbol name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSymbol(cmd.Context(), cmd, args[0], entryPoints, maxDepth, jsonOutput)
		},
	}

	cmd.Flags().StringArrayVar(&entryPoints, "entry-point", nil, "Entry-point file to root the traversal at (repeatable)")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "Maximum import traversal depth (0 = scout default)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runSymbol(ctx context.Context, cmd *cobra.Command, name string, entryPoints []string, maxDepth int, jsonOutput bool) error {
	if len(entryPoints) == 0 {
		return fmt.Errorf("at least one --entry-point is required")
	}

	root, err := config.FindProjectRoot(".")
	if err != nil {
		root = "."
	}

	cfg := scout.DefaultConfig()
	if maxDepth > 0 {
		cfg.MaxDepth = maxDepth
	}

	sc := scout.New(root, cfg, scout.NewParseCache(0, nil))
	defer sc.Close()

	graph, err := sc.BuildDependencyGraph(ctx, entryPoints)
	if err != nil {
		return fmt.Errorf("failed to build dependency graph: %w", err)
	}

	defs := scout.FindSymbolDefinitions(name, graph)
	calls := scout.FindCallSites(name, graph)

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Definitions []scout.Symbol  `json:"definitions"`
			CallSites   []scout.CallRef `json:"callSites"`
		}{Definitions: defs, CallSites: calls})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d definition(s), %d call site(s) for %q\n\n", len(defs), len(calls), name)

	if len(defs) > 0 {
		fmt.Fprintln(out, "Definitions:")
		for _, d := range defs {
			fmt.Fprintf(out, "  %s:%d  %s %s\n", d.File, d.Line, d.Kind, d.Name)
		}
	}
	if len(calls) > 0 {
		fmt.Fprintln(out, "\nCall sites:")
		for _, c := range calls {
			fmt.Fprintf(out, "  %s:%d\n", c.File, c.Line)
		}
	}

	return nil
}
