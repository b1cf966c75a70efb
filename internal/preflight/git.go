package preflight

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/codeindex/codeindex/internal/gittrack"
)

// CheckGitTracker reports whether projectPath is inside a git repository.
// Non-critical: the incremental planner falls back to a full reindex outside
// a repo, it just loses commit-based diffing.
func (c *Checker) CheckGitTracker(projectPath string) CheckResult {
	result := CheckResult{
		Name:     "git_tracker",
		Required: false,
	}

	tracker := gittrack.Open(projectPath)
	if !tracker.IsRepo() {
		result.Status = StatusWarn
		result.Message = "Not a git repository (incremental indexing will always do a full reindex)"
		return result
	}

	status := tracker.GetStatus()
	result.Status = StatusPass
	result.Message = "Git repository detected on branch " + status.Branch
	if status.HasUncommitted {
		result.Details = "Uncommitted changes present"
	}
	return result
}

// CheckVectorStoreWritable reports whether dataDir is writable for the HNSW
// vector store's index file.
func (c *Checker) CheckVectorStoreWritable(dataDir string) CheckResult {
	result := CheckResult{
		Name:     "vector_store",
		Required: true,
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create data directory: %v", err)
		return result
	}

	testFile := filepath.Join(dataDir, ".codeindex-preflight-test")
	f, err := os.Create(testFile)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("vector store directory is not writable: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(testFile)

	result.Status = StatusPass
	result.Message = "Vector store directory is writable"
	return result
}
