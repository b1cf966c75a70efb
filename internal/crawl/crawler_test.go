package crawl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCrawl_RespectsGitignoreAndDefaults(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.go"), "package main\n")
	writeFile(t, filepath.Join(root, "vendor", "dep.go"), "package dep\n")
	writeFile(t, filepath.Join(root, "build", "out.go"), "package out\n")
	writeFile(t, filepath.Join(root, "ignored.go"), "package ignored\n")
	writeFile(t, filepath.Join(root, ".gitignore"), "ignored.go\n")
	writeFile(t, filepath.Join(root, "README.md"), "# hi\n")

	files, err := New().Crawl(Options{Root: root})
	require.NoError(t, err)

	var paths []string
	for _, f := range files {
		paths = append(paths, f.RelPath)
	}

	assert.Contains(t, paths, "main.go")
	assert.NotContains(t, paths, "vendor/dep.go")
	assert.NotContains(t, paths, "build/out.go")
	assert.NotContains(t, paths, "ignored.go")
}

func TestCrawl_TagsLanguageAndHash(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.py"), "def f():\n    pass\n")

	files, err := New().Crawl(Options{Root: root})
	require.NoError(t, err)
	require.Len(t, files, 1)

	assert.Equal(t, "python", files[0].Language)
	assert.Len(t, files[0].Hash, 16)
}

func TestGitPrioritize_UncommittedFirst(t *testing.T) {
	files := []FileInfo{{RelPath: "a.go"}, {RelPath: "b.go"}, {RelPath: "c.go"}}
	ordered := GitPrioritize(files, map[string]bool{"c.go": true}, map[string]int{"a.go": 50, "b.go": 10})

	require.Len(t, ordered, 3)
	assert.Equal(t, "c.go", ordered[0].RelPath)
	assert.Equal(t, "a.go", ordered[1].RelPath)
	assert.Equal(t, "b.go", ordered[2].RelPath)
}

func TestIgnoreMatcher_ClaudeignoreMerges(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "secret.go"), "package secret\n")
	writeFile(t, filepath.Join(root, ".claudeignore"), "secret.go\n")

	files, err := New().Crawl(Options{Root: root})
	require.NoError(t, err)
	for _, f := range files {
		assert.NotEqual(t, "secret.go", f.RelPath)
	}
}
