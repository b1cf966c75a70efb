// Package fileindex persists per-file metadata (hash, mtime, chunk count) so
// the incremental planner can tell which files changed since the last run
// without re-hashing everything the crawler finds.
package fileindex

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/codeindex/codeindex/internal/crawl"
)

const schemaVersion = 1

// FileRecord is one persisted file's indexing state.
type FileRecord struct {
	RelPath      string `json:"relPath"`
	Hash         string `json:"hash"`
	ModTime      int64  `json:"modTime"`
	LastIndexed  int64  `json:"lastIndexed"`
	ChunkCount   int    `json:"chunkCount"`
}

// document is the on-disk JSON shape.
type document struct {
	Version     int                    `json:"version"`
	ProjectRoot string                 `json:"projectRoot"`
	Files       map[string]FileRecord  `json:"files"`
}

// Index is the in-memory, persisted file index for one project root.
type Index struct {
	mu          sync.Mutex
	path        string
	projectRoot string
	files       map[string]FileRecord
}

// Load reads the index from path. A version mismatch or a differing
// projectRoot discards the on-disk content and starts empty rather than
// erroring — the index is a cache, not a source of truth.
func Load(path, projectRoot string) (*Index, error) {
	idx := &Index{path: path, projectRoot: projectRoot, files: make(map[string]FileRecord)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read file index: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return idx, nil // corrupt on-disk index: start empty rather than fail the run
	}
	if doc.Version != schemaVersion || doc.ProjectRoot != projectRoot {
		return idx, nil
	}

	idx.files = doc.Files
	if idx.files == nil {
		idx.files = make(map[string]FileRecord)
	}
	return idx, nil
}

// ChangedFiles returns crawl entries that are new or whose mtime/hash
// differs from the persisted record.
func (idx *Index) ChangedFiles(crawled []crawl.FileInfo) []crawl.FileInfo {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var changed []crawl.FileInfo
	for _, f := range crawled {
		rec, ok := idx.files[f.RelPath]
		if !ok || rec.ModTime != f.ModTime || rec.Hash != f.Hash {
			changed = append(changed, f)
		}
	}
	return changed
}

// DeletedFiles returns relative paths present in the index but absent from
// the crawl.
func (idx *Index) DeletedFiles(crawled []crawl.FileInfo) []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	present := make(map[string]bool, len(crawled))
	for _, f := range crawled {
		present[f.RelPath] = true
	}

	var deleted []string
	for relPath := range idx.files {
		if !present[relPath] {
			deleted = append(deleted, relPath)
		}
	}
	return deleted
}

// UpdateFile records or replaces a file's entry.
func (idx *Index) UpdateFile(rec FileRecord) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.files[rec.RelPath] = rec
}

// RemoveFile deletes a file's entry.
func (idx *Index) RemoveFile(relPath string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.files, relPath)
}

// GetFile returns a file's entry, if present.
func (idx *Index) GetFile(relPath string) (FileRecord, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	rec, ok := idx.files[relPath]
	return rec, ok
}

// Clear empties the index.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.files = make(map[string]FileRecord)
}

// Len returns the number of tracked files.
func (idx *Index) Len() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.files)
}

// Summary reports the total chunk count across tracked files and the most
// recent LastIndexed timestamp, for CLI/MCP status reporting.
func (idx *Index) Summary() (chunkCount int, lastIndexed time.Time) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var latest int64
	for _, rec := range idx.files {
		chunkCount += rec.ChunkCount
		if rec.LastIndexed > latest {
			latest = rec.LastIndexed
		}
	}
	if latest > 0 {
		lastIndexed = time.Unix(latest, 0)
	}
	return chunkCount, lastIndexed
}

// Save writes the index atomically: create the parent directory, write a
// temp file, then rename over the target. Callers must serialize Save calls
// per Index instance — it does not lock across the write+rename.
func (idx *Index) Save() error {
	idx.mu.Lock()
	doc := document{Version: schemaVersion, ProjectRoot: idx.projectRoot, Files: idx.files}
	idx.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal file index: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(idx.path), 0o755); err != nil {
		return fmt.Errorf("create file index directory: %w", err)
	}

	tmpPath := idx.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write file index: %w", err)
	}
	if err := os.Rename(tmpPath, idx.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("save file index: %w", err)
	}
	return nil
}
