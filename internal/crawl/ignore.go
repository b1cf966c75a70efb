package crawl

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// defaultIgnorePatterns are excluded regardless of .gitignore content.
var defaultIgnorePatterns = []string{
	".git/", "node_modules/", "vendor/", "dist/", "build/", "target/",
	"__pycache__/", ".venv/", "venv/", ".mypy_cache/", ".pytest_cache/",
	"*.pyc", "*.pyo", ".DS_Store", "*.min.js", "*.min.css",
	".data/", "*.db", "*.db-wal", "*.db-shm",
}

// ignoreMatcher merges the built-in defaults with a repo's .gitignore and
// optional .claudeignore, and reports whether a relative path should be
// excluded from the crawl. Pattern parsing and precedence (later patterns
// win, negation re-includes) are go-git's own gitignore.Pattern/Matcher —
// the same matcher gittrack already pulls go-git in for — rather than a
// hand-rolled glob translator.
type ignoreMatcher struct {
	mu       sync.RWMutex
	patterns []gitignore.Pattern
}

func newIgnoreMatcher() *ignoreMatcher {
	m := &ignoreMatcher{}
	for _, p := range defaultIgnorePatterns {
		m.addPattern(p)
	}
	return m
}

// loadRepoIgnoreFiles merges patterns from root/.gitignore and
// root/.claudeignore, if present. Missing files are not an error.
func (m *ignoreMatcher) loadRepoIgnoreFiles(root string) {
	for _, name := range []string{".gitignore", ".claudeignore"} {
		m.addFromFile(filepath.Join(root, name))
	}
}

func (m *ignoreMatcher) addFromFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m.addPattern(scanner.Text())
	}
}

// addPattern parses one gitignore-syntax line and appends it to the
// matcher's pattern set. domain is nil: every pattern here is rooted at the
// crawl root, since both the defaults and the loaded ignore files apply
// repo-wide rather than to a specific subdirectory.
func (m *ignoreMatcher) addPattern(pattern string) {
	trimmed := strings.TrimSpace(pattern)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return
	}

	rule := gitignore.ParsePattern(trimmed, nil)

	m.mu.Lock()
	m.patterns = append(m.patterns, rule)
	m.mu.Unlock()
}

// match reports whether relPath (slash-separated, relative to the crawl
// root) should be excluded. Later patterns take precedence, and a negated
// pattern can re-include a path an earlier pattern excluded — go-git's
// Matcher walks the pattern list in that order already.
func (m *ignoreMatcher) match(relPath string, isDir bool) bool {
	parts := strings.Split(filepath.ToSlash(relPath), "/")

	m.mu.RLock()
	defer m.mu.RUnlock()
	return gitignore.NewMatcher(m.patterns).Match(parts, isDir)
}
