// Package crawl enumerates indexable files under a project root: it merges
// ignore patterns (built-in defaults, .gitignore, .claudeignore), hashes and
// stats each kept file, and tags it with a language via internal/lang.
package crawl

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/codeindex/codeindex/internal/lang"
)

// FileInfo describes one crawled file.
type FileInfo struct {
	Path     string // absolute
	RelPath  string
	Language string
	Hash     string // SHA-256 prefix, 16 hex chars
	Size     int64
	ModTime  int64 // unix millis
}

// Options configures a crawl.
type Options struct {
	Root     string
	Registry *lang.Registry // defaults to lang.Default()
}

// Crawler walks a project root and produces FileInfo records for every
// supported, non-ignored file.
type Crawler struct {
	registry *lang.Registry
}

// New creates a Crawler.
func New() *Crawler {
	return &Crawler{registry: lang.Default()}
}

// Crawl walks opts.Root and returns every kept file, sorted by relative
// path for deterministic output. GitPrioritize can reorder the result
// afterward.
func (c *Crawler) Crawl(opts Options) ([]FileInfo, error) {
	registry := opts.Registry
	if registry == nil {
		registry = c.registry
	}

	matcher := newIgnoreMatcher()
	matcher.loadRepoIgnoreFiles(opts.Root)

	var files []FileInfo
	err := filepath.Walk(opts.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // unreadable entry: skip, don't abort the crawl
		}
		if path == opts.Root {
			return nil
		}

		rel, relErr := filepath.Rel(opts.Root, path)
		if relErr != nil {
			return nil
		}

		if info.IsDir() {
			if matcher.match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if matcher.match(rel, false) {
			return nil
		}

		language, supported := registry.LanguageForPath(path)
		if !supported {
			return nil
		}

		hash, hashErr := hashFile(path)
		if hashErr != nil {
			return nil // per-file IO error: skip and continue (§7)
		}

		files = append(files, FileInfo{
			Path:     path,
			RelPath:  filepath.ToSlash(rel),
			Language: language,
			Hash:     hash,
			Size:     info.Size(),
			ModTime:  info.ModTime().UnixMilli(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}

// GitPrioritize reorders files for git-aware crawling: uncommitted paths
// first (priority 200), then by descending priority score from
// recentCommitRank (the top 100 recently-touched files ranked 100 down to
// 1), then the remainder; equal scores are ordered by relative path. Callers source
// uncommitted/recentCommitRank from the git tracker; crawl itself has no
// git dependency.
func GitPrioritize(files []FileInfo, uncommitted map[string]bool, recentCommitRank map[string]int) []FileInfo {
	score := func(f FileInfo) int {
		if uncommitted[f.RelPath] {
			return 200
		}
		return recentCommitRank[f.RelPath]
	}

	out := make([]FileInfo, len(files))
	copy(out, files)
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := score(out[i]), score(out[j])
		if si != sj {
			return si > sj
		}
		return out[i].RelPath < out[j].RelPath
	})
	return out
}
