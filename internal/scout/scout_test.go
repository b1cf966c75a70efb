package scout

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestScout(t *testing.T, root string) *Scout {
	t.Helper()
	s := New(root, DefaultConfig(), NewParseCache(100, nil))
	t.Cleanup(s.Close)
	return s
}

func TestBuildDependencyGraph_DetectsCycle(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.ts", `import "./b"; export const a = 1;`)
	writeFile(t, dir, "b.ts", `import "./a"; export const b = 2;`)

	s := newTestScout(t, dir)
	g, err := s.BuildDependencyGraph(context.Background(), []string{a})
	require.NoError(t, err)

	assert.Len(t, g.Nodes, 2)
	require.Len(t, g.Cycles, 1)

	cycleSet := map[string]bool{}
	for _, p := range g.Cycles[0] {
		cycleSet[filepath.Base(p)] = true
	}
	assert.True(t, cycleSet["a.ts"])
	assert.True(t, cycleSet["b.ts"])
}

func TestBuildDependencyGraph_ResolvesRelativeImports(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.ts", `import "./b";`)
	writeFile(t, dir, "b.ts", `export const b = 1;`)

	s := newTestScout(t, dir)
	g, err := s.BuildDependencyGraph(context.Background(), []string{a})
	require.NoError(t, err)

	aNode, ok := g.Nodes[a]
	require.True(t, ok)
	require.Len(t, aNode.Dependencies, 1)
	assert.Equal(t, "b.ts", filepath.Base(aNode.Dependencies[0]))
}

func TestBuildDependencyGraph_RootsAndLeaves(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.ts", `import "./b";`)
	writeFile(t, dir, "b.ts", `export const b = 1;`)

	s := newTestScout(t, dir)
	g, err := s.BuildDependencyGraph(context.Background(), []string{a})
	require.NoError(t, err)

	require.Len(t, g.Roots, 1)
	assert.Equal(t, "a.ts", filepath.Base(g.Roots[0]))
	require.Len(t, g.Leaves, 1)
	assert.Equal(t, "b.ts", filepath.Base(g.Leaves[0]))
}

func TestBuildDependencyGraph_PackageImportSkippedWithoutNodeModules(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.ts", `import "some-package";`)

	s := newTestScout(t, dir)
	g, err := s.BuildDependencyGraph(context.Background(), []string{a})
	require.NoError(t, err)

	require.Len(t, g.Nodes, 1)
	assert.Empty(t, g.Nodes[a].Dependencies)
}

func TestBuildDependencyGraph_DepthCapStopsDescent(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.ts", `import "./b";`)
	writeFile(t, dir, "b.ts", `import "./c"; export const b = 1;`)
	writeFile(t, dir, "c.ts", `export const c = 1;`)

	cfg := DefaultConfig()
	cfg.MaxDepth = 0
	s := New(dir, cfg, NewParseCache(100, nil))
	defer s.Close()

	g, err := s.BuildDependencyGraph(context.Background(), []string{a})
	require.NoError(t, err)

	// a.ts is visited at depth 0; b.ts would be depth 1, which exceeds
	// maxDepth=0, so only a.ts's node exists.
	assert.Len(t, g.Nodes, 1)
}

func TestFindImportPath_BFS(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.ts", `import "./b";`)
	writeFile(t, dir, "b.ts", `import "./c"; export const b = 1;`)
	c := writeFile(t, dir, "c.ts", `export const c = 1;`)

	s := newTestScout(t, dir)
	g, err := s.BuildDependencyGraph(context.Background(), []string{a})
	require.NoError(t, err)

	path, found := FindImportPath(a, c, g)
	require.True(t, found)
	require.Len(t, path, 3)
	assert.Equal(t, "a.ts", filepath.Base(path[0]))
	assert.Equal(t, "c.ts", filepath.Base(path[2]))
}

func TestFindSymbolDefinitions_ScansAllNodes(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.go", "package a\n\nfunc Widget() {}\n")

	s := newTestScout(t, dir)
	g, err := s.BuildDependencyGraph(context.Background(), []string{a})
	require.NoError(t, err)

	defs := FindSymbolDefinitions("Widget", g)
	require.Len(t, defs, 1)
	assert.Equal(t, "function", defs[0].Kind)
}

func TestGetGraphStats_CountsNodesEdgesAndCycles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.ts", `import "./b";`)
	writeFile(t, dir, "b.ts", `export const b = 1;`)

	s := newTestScout(t, dir)
	g, err := s.BuildDependencyGraph(context.Background(), []string{a})
	require.NoError(t, err)

	stats := GetGraphStats(g)
	assert.Equal(t, 2, stats.NodeCount)
	assert.Equal(t, 1, stats.EdgeCount)
	assert.Equal(t, 0, stats.CycleCount)
}

func TestResolveImport_ClassifiesRelativeAbsoluteAndPackage(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.ts", "export const b = 1;")
	a := writeFile(t, dir, "a.ts", "")

	s := newTestScout(t, dir)

	resolved, ok := s.ResolveImport("./b", a)
	require.True(t, ok)
	assert.Equal(t, "b.ts", filepath.Base(resolved))

	_, ok = s.ResolveImport("some-package", a)
	assert.False(t, ok)
}
