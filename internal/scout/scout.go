package scout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/codeindex/codeindex/internal/lang"
)

// callNodeTypes mirrors xref's per-language call-node table: the scout needs
// its own lightweight call-site list (callee name, file, line) rather than
// xref's FQN-resolved graph, so it keeps a private copy instead of depending
// on xref's unexported helpers.
var callNodeTypes = map[string][]string{
	"go":         {"call_expression"},
	"python":     {"call"},
	"javascript": {"call_expression"},
	"jsx":        {"call_expression"},
	"typescript": {"call_expression"},
	"tsx":        {"call_expression"},
	"rust":       {"call_expression"},
	"java":       {"method_invocation", "object_creation_expression"},
	"c":          {"call_expression"},
	"cpp":        {"call_expression"},
	"c_sharp":    {"invocation_expression"},
	"ruby":       {"call", "method_call"},
	"php":        {"function_call_expression", "member_call_expression", "scoped_call_expression"},
}

var calleeNameTypes = map[string]bool{
	"identifier": true, "field_identifier": true, "property_identifier": true,
	"type_identifier": true, "name": true, "constant": true,
}

// Scout walks the import graph rooted at a set of entry points.
type Scout struct {
	root      string
	config    Config
	registry  *lang.Registry
	extractor *lang.Extractor
	parser    *lang.Parser
	cache     *ParseCache
}

// New creates a Scout rooted at root (used to resolve absolute imports),
// with a parse cache the caller owns and may share across Scout instances.
func New(root string, cfg Config, cache *ParseCache) *Scout {
	return &Scout{
		root:      root,
		config:    cfg,
		registry:  lang.Default(),
		extractor: lang.NewExtractor(),
		parser:    lang.NewParser(),
		cache:     cache,
	}
}

// Close releases the underlying parser.
func (s *Scout) Close() {
	s.parser.Close()
}

// WithConfig returns a shallow copy of the Scout using cfg instead of its
// configured traversal limits. The registry, extractor, parser and cache
// are shared with the original, so per-request overrides of MaxDepth or
// IncludeNodeModules (as MCP tool callers supply) don't pay for a second
// parser or cold cache.
func (s *Scout) WithConfig(cfg Config) *Scout {
	clone := *s
	clone.config = cfg
	return &clone
}

// ClearCache empties the scout's parse cache.
func (s *Scout) ClearCache() {
	s.cache.Clear()
}

// ResolveImport resolves a single import string against the file that
// contains it, using the scout's configured root and extensions.
func (s *Scout) ResolveImport(raw, fromFile string) (string, bool) {
	return resolveImport(raw, fromFile, s.root, s.config)
}

// BuildDependencyGraph walks the import graph from entryPoints, resolving
// every import, detecting cycles, capping recursion at config.MaxDepth, and
// computing reverse edges plus roots and leaves once the walk is done.
func (s *Scout) BuildDependencyGraph(ctx context.Context, entryPoints []string) (*DependencyGraph, error) {
	g := &DependencyGraph{Nodes: make(map[string]*Node)}

	visited := make(map[string]bool)
	var stack []string
	stackIndex := make(map[string]int)

	var dfs func(path string, depth int)
	dfs = func(path string, depth int) {
		if idx, onStack := stackIndex[path]; onStack {
			cycle := append(append([]string{}, stack[idx:]...), path)
			g.Cycles = append(g.Cycles, cycle)
			return
		}
		if visited[path] {
			return
		}
		if depth > s.config.MaxDepth {
			return
		}
		if !isRegularFile(path) {
			return
		}
		if isExcludedPath(path, s.config.ExcludedDirs) {
			return
		}

		visited[path] = true
		stack = append(stack, path)
		stackIndex[path] = len(stack) - 1
		defer func() {
			stack = stack[:len(stack)-1]
			delete(stackIndex, path)
		}()

		node, rawImports := s.parseNode(ctx, path)
		g.Nodes[path] = node

		for _, imp := range rawImports {
			resolved, ok := s.ResolveImport(imp, path)
			if !ok {
				continue
			}
			if !containsStr(node.Dependencies, resolved) {
				node.Dependencies = append(node.Dependencies, resolved)
			}
			dfs(resolved, depth+1)
		}
	}

	for _, ep := range entryPoints {
		abs, err := filepath.Abs(ep)
		if err != nil {
			continue
		}
		dfs(abs, 0)
	}

	for path, node := range g.Nodes {
		for _, dep := range node.Dependencies {
			depNode, ok := g.Nodes[dep]
			if !ok {
				continue
			}
			if !containsStr(depNode.Dependents, path) {
				depNode.Dependents = append(depNode.Dependents, path)
			}
		}
	}

	for path, node := range g.Nodes {
		if len(node.Dependents) == 0 {
			g.Roots = append(g.Roots, path)
		}
		if len(node.Dependencies) == 0 {
			g.Leaves = append(g.Leaves, path)
		}
	}
	sort.Strings(g.Roots)
	sort.Strings(g.Leaves)

	return g, nil
}

// parseNode parses one file, consulting the cache first, and returns both
// the graph node and its raw (unresolved) import strings.
func (s *Scout) parseNode(ctx context.Context, path string) (*Node, []string) {
	language, supported := s.registry.LanguageForPath(path)
	if !supported {
		return &Node{Path: path, ParseError: "unsupported language"}, nil
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return &Node{Path: path, Language: language, ParseError: err.Error()}, nil
	}
	hash := contentHash(source)

	if pf, ok := s.cache.Get(ctx, path, hash); ok {
		return &Node{
			Path:        path,
			Language:    pf.Language,
			ParseError:  pf.ParseError,
			Definitions: pf.Definitions,
			Calls:       pf.Calls,
		}, pf.RawImports
	}

	pf := &ParsedFile{Language: language}

	tree, err := s.parser.Parse(ctx, source, language)
	if err != nil || tree == nil {
		if err != nil {
			pf.ParseError = err.Error()
		}
		s.cache.Put(ctx, path, hash, pf)
		return &Node{Path: path, Language: language, ParseError: pf.ParseError}, nil
	}

	pf.RawImports = extractImports(source, language)
	for _, n := range s.extractor.Extract(tree) {
		if n.Name == "" {
			continue
		}
		pf.Definitions = append(pf.Definitions, Symbol{
			Name: n.Name, Kind: string(n.Kind), File: path, Line: n.StartLine,
		})
	}
	tree.Root.Walk(func(n *lang.Node) bool {
		if !isCallNode(language, n.Type) {
			return true
		}
		callee := extractCallee(n, tree.Source)
		if callee == "" {
			return true
		}
		pf.Calls = append(pf.Calls, CallRef{
			Callee: callee, File: path, Line: int(n.StartPoint.Row) + 1,
		})
		return true
	})

	s.cache.Put(ctx, path, hash, pf)
	return &Node{
		Path: path, Language: language,
		Definitions: pf.Definitions, Calls: pf.Calls,
	}, pf.RawImports
}

func isCallNode(language, nodeType string) bool {
	for _, t := range callNodeTypes[language] {
		if t == nodeType {
			return true
		}
	}
	return false
}

func extractCallee(call *lang.Node, source []byte) string {
	if len(call.Children) == 0 {
		return ""
	}
	callee := call.Children[0]
	var last string
	callee.Walk(func(n *lang.Node) bool {
		if calleeNameTypes[n.Type] {
			last = n.Content(source)
		}
		return true
	})
	return last
}

func contentHash(source []byte) string {
	sum := sha256.Sum256(source)
	return hex.EncodeToString(sum[:8])
}

func containsStr(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func isExcludedPath(path string, excludedDirs []string) bool {
	segments := splitPath(path)
	for _, seg := range segments {
		for _, excluded := range excludedDirs {
			if seg == excluded {
				return true
			}
		}
	}
	return false
}

func splitPath(path string) []string {
	clean := filepath.ToSlash(filepath.Clean(path))
	var segments []string
	for _, seg := range strings.Split(clean, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}
