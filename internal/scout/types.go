// Package scout builds the import-dependency graph over a codebase: given a
// set of entry points, it walks imports transitively, resolving each one
// against the filesystem, and reports nodes, edges, cycles, roots, and
// leaves. It reuses the parser façade (internal/lang) for the underlying
// AST and layers a two-tier parse cache (in-memory LRU plus an optional
// Redis tier) in front of it, since the same file is revisited from every
// importer that reaches it.
package scout

// Symbol is a declared construct found while walking a file, trimmed down to
// what find_symbol needs: name, kind, and location.
type Symbol struct {
	Name string
	Kind string
	File string
	Line int
}

// CallRef is one call-expression occurrence found while walking a file.
type CallRef struct {
	Callee string
	File   string
	Line   int
}

// Node is one file in the dependency graph.
type Node struct {
	Path        string
	Language    string
	ParseError  string
	Dependencies []string
	Dependents   []string
	Definitions  []Symbol
	Calls        []CallRef
}

// DependencyGraph is the result of BuildDependencyGraph.
type DependencyGraph struct {
	Nodes  map[string]*Node
	Cycles [][]string
	Roots  []string
	Leaves []string
}

// Stats summarizes a graph's shape.
type Stats struct {
	NodeCount  int
	EdgeCount  int
	CycleCount int
	RootCount  int
	LeafCount  int
}

// Config controls BuildDependencyGraph's traversal.
type Config struct {
	MaxDepth           int
	IncludeNodeModules bool
	Extensions         []string
	ExcludedDirs       []string
}

// DefaultConfig returns the spec's default traversal limits.
func DefaultConfig() Config {
	return Config{
		MaxDepth:           50,
		IncludeNodeModules: false,
		Extensions: []string{
			".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs",
			".go", ".py", ".pyw", ".rs", ".java",
			".c", ".h", ".cpp", ".cc", ".hpp", ".cs", ".rb", ".php",
		},
		ExcludedDirs: []string{
			"node_modules", ".git", "dist", "build", "vendor",
			"__pycache__", ".venv", "venv", "target",
		},
	}
}

// GetGraphStats summarizes a graph.
func GetGraphStats(g *DependencyGraph) Stats {
	stats := Stats{
		NodeCount:  len(g.Nodes),
		CycleCount: len(g.Cycles),
		RootCount:  len(g.Roots),
		LeafCount:  len(g.Leaves),
	}
	for _, n := range g.Nodes {
		stats.EdgeCount += len(n.Dependencies)
	}
	return stats
}

// FindSymbolDefinitions scans every node for definitions matching name.
func FindSymbolDefinitions(name string, g *DependencyGraph) []Symbol {
	var out []Symbol
	for _, n := range g.Nodes {
		for _, def := range n.Definitions {
			if def.Name == name {
				out = append(out, def)
			}
		}
	}
	return out
}

// FindCallSites scans every node for call sites targeting name.
func FindCallSites(name string, g *DependencyGraph) []CallRef {
	var out []CallRef
	for _, n := range g.Nodes {
		for _, c := range n.Calls {
			if c.Callee == name {
				out = append(out, c)
			}
		}
	}
	return out
}

// FindImportPath runs a breadth-first search over the dependency edges from
// `from` to `to`, returning the path of node keys if one exists.
func FindImportPath(from, to string, g *DependencyGraph) ([]string, bool) {
	if from == to {
		return []string{from}, true
	}
	visited := map[string]bool{from: true}
	type frame struct {
		path []string
	}
	queue := []frame{{path: []string{from}}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		last := cur.path[len(cur.path)-1]
		node, ok := g.Nodes[last]
		if !ok {
			continue
		}
		for _, dep := range node.Dependencies {
			if visited[dep] {
				continue
			}
			nextPath := append(append([]string{}, cur.path...), dep)
			if dep == to {
				return nextPath, true
			}
			visited[dep] = true
			queue = append(queue, frame{path: nextPath})
		}
	}
	return nil, false
}
