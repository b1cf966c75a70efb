package mcp

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codeindex/codeindex/internal/crawl"
	"github.com/codeindex/codeindex/internal/scout"
)

// approxCharsPerToken is a rough estimator used only to bound summary
// length; codeindex never tokenizes the summary itself.
const approxCharsPerToken = 4

// handleSummarizeCodebase is the MCP SDK handler for summarize_codebase. It
// has no direct component counterpart: it composes the project detector,
// the crawler, and the dependency scout into a single bounded report.
func (s *Server) handleSummarizeCodebase(ctx context.Context, _ *mcp.CallToolRequest, input SummarizeCodebaseInput) (
	*mcp.CallToolResult,
	SummarizeCodebaseOutput,
	error,
) {
	maxTokens := input.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	depth := input.Depth
	if depth <= 0 {
		depth = 50
	}

	crawled, err := s.crawler.Crawl(crawl.Options{Root: s.rootPath})
	if err != nil {
		return nil, SummarizeCodebaseOutput{}, MapError(err)
	}
	crawled = filterByScope(crawled, input.Scope)

	detector := NewProjectDetector(s.rootPath, s.logger)
	project := detector.Detect()

	entryPoints := make([]string, 0, len(crawled))
	langCounts := make(map[string]int)
	for _, f := range crawled {
		entryPoints = append(entryPoints, f.Path)
		langCounts[f.Language]++
	}

	sc := s.scoutFor(depth, false)
	graph, err := sc.BuildDependencyGraph(ctx, entryPoints)
	if err != nil {
		return nil, SummarizeCodebaseOutput{}, MapError(err)
	}
	stats := scout.GetGraphStats(graph)

	var focusHits []string
	for _, term := range input.Focus {
		for path, n := range graph.Nodes {
			if strings.Contains(path, term) {
				focusHits = append(focusHits, path)
				continue
			}
			for _, d := range n.Definitions {
				if strings.Contains(d.Name, term) {
					focusHits = append(focusHits, fmt.Sprintf("%s:%d %s", d.File, d.Line, d.Name))
				}
			}
		}
	}
	sort.Strings(focusHits)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s (%s)\n\n", project.Name, project.Type)
	fmt.Fprintf(&b, "%d files across %d languages; %d import edges, %d roots, %d leaves, %d cycles.\n\n",
		len(crawled), len(langCounts), stats.EdgeCount, stats.RootCount, stats.LeafCount, stats.CycleCount)

	langs := make([]string, 0, len(langCounts))
	for l := range langCounts {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	b.WriteString("## Languages\n")
	for _, l := range langs {
		fmt.Fprintf(&b, "- %s: %d files\n", l, langCounts[l])
	}

	if len(graph.Roots) > 0 {
		b.WriteString("\n## Entry-point roots\n")
		for _, r := range graph.Roots {
			fmt.Fprintf(&b, "- %s\n", relOrAbs(s.rootPath, r))
		}
	}

	if stats.CycleCount > 0 {
		b.WriteString("\n## Circular dependencies\n")
		for _, cycle := range graph.Cycles {
			rel := make([]string, len(cycle))
			for i, p := range cycle {
				rel[i] = relOrAbs(s.rootPath, p)
			}
			fmt.Fprintf(&b, "- %s\n", strings.Join(rel, " -> "))
		}
	}

	if len(focusHits) > 0 {
		b.WriteString("\n## Focus hits\n")
		for _, hit := range focusHits {
			fmt.Fprintf(&b, "- %s\n", hit)
		}
	}

	summary := b.String()
	truncated := false
	maxChars := maxTokens * approxCharsPerToken
	if len(summary) > maxChars {
		summary = summary[:maxChars]
		truncated = true
	}

	output := SummarizeCodebaseOutput{
		Summary:       summary,
		TokenEstimate: (len(summary) + approxCharsPerToken - 1) / approxCharsPerToken,
		Truncated:     truncated,
		FilesCovered:  len(crawled),
		FocusHits:     focusHits,
	}

	return nil, output, nil
}

// filterByScope keeps only files whose relative path starts with one of the
// given prefixes. An empty scope keeps everything.
func filterByScope(files []crawl.FileInfo, scope []string) []crawl.FileInfo {
	if len(scope) == 0 {
		return files
	}
	var kept []crawl.FileInfo
	for _, f := range files {
		for _, prefix := range scope {
			if strings.HasPrefix(f.RelPath, prefix) {
				kept = append(kept, f)
				break
			}
		}
	}
	return kept
}

func relOrAbs(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return rel
	}
	return path
}
