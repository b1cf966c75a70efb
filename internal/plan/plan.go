// Package plan implements the incremental planner: given a crawl and the
// persisted file index and git state, it decides which files need
// (re)indexing or removal, then drives the rest of the pipeline in the
// order §4.7 requires.
package plan

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeindex/codeindex/internal/crawl"
	"github.com/codeindex/codeindex/internal/fileindex"
	"github.com/codeindex/codeindex/internal/gittrack"
)

// Phase names a stage of plan execution, reported through a Progress callback.
type Phase int

const (
	PhaseCrawling Phase = iota
	PhaseAnalyzing
	PhaseEmbedding
	PhaseSaving
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseCrawling:
		return "crawling"
	case PhaseAnalyzing:
		return "analyzing"
	case PhaseEmbedding:
		return "embedding"
	case PhaseSaving:
		return "saving"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// ProgressEvent is delivered to a caller-supplied callback as the plan runs.
type ProgressEvent struct {
	Phase   Phase
	Current int
	Total   int
	Path    string
}

// ProgressFunc receives progress events. May be nil.
type ProgressFunc func(ProgressEvent)

// Stats summarizes a plan's decisions.
type Stats struct {
	FilesToAdd     int
	FilesToUpdate  int
	FilesToDelete  int
	FilesUnchanged int
	TotalFilesInRepo int
}

// GitDiff is the git-derived basis for an incremental (non-full) plan.
type GitDiff struct {
	FromCommit string
	ToCommit   string
	Paths      []string
}

// Plan is the outcome of PlanIncrementalIndex.
type Plan struct {
	IsFullReindex bool
	Reason        string
	Stats         Stats
	FilesToIndex  []crawl.FileInfo
	FilesToRemove []string
	GitDiff       *GitDiff
}

// IndexState is the subset of persisted index state the planner consults to
// decide between a full and incremental plan.
type IndexState struct {
	LastIndexedCommit string
	Branch            string
	HasPriorState     bool
}

// PlanIncrementalIndex implements §4.7's policy: fall back to a full crawl
// when there's no prior state, the branch changed, or there's no git repo;
// otherwise diff git history (plus optionally the working tree) against the
// file index.
func PlanIncrementalIndex(crawled []crawl.FileInfo, idx *fileindex.Index, tracker *gittrack.Tracker, state IndexState, includeUncommitted bool) Plan {
	total := len(crawled)

	if !state.HasPriorState || !tracker.IsRepo() {
		return fullReindexPlan(crawled, reasonFor(state, tracker))
	}

	currentBranch := tracker.GetCurrentBranch()
	if state.Branch != "" && currentBranch != state.Branch {
		return fullReindexPlan(crawled, "branch changed from "+state.Branch+" to "+currentBranch)
	}

	status := tracker.GetStatus()
	if state.LastIndexedCommit == "" || state.LastIndexedCommit == status.HeadCommit && !includeUncommitted {
		// Nothing changed since last index: clean tree, same commit.
		if state.LastIndexedCommit == status.HeadCommit && !status.HasUncommitted {
			return Plan{
				Stats: Stats{FilesUnchanged: total, TotalFilesInRepo: total},
			}
		}
	}

	changedPaths := tracker.DiffPaths(state.LastIndexedCommit, status.HeadCommit)
	union := make(map[string]bool, len(changedPaths))
	for _, p := range changedPaths {
		union[p] = true
	}
	if includeUncommitted {
		for _, p := range status.UncommittedPaths {
			union[p] = true
		}
	}

	crawlByPath := make(map[string]crawl.FileInfo, len(crawled))
	for _, f := range crawled {
		crawlByPath[f.RelPath] = f
	}

	var toIndex []crawl.FileInfo
	var toRemove []string
	var unchanged int

	for path := range union {
		f, inCrawl := crawlByPath[path]
		if !inCrawl {
			toRemove = append(toRemove, path)
			continue
		}
		if rec, ok := idx.GetFile(path); ok && rec.Hash == f.Hash && rec.ModTime == f.ModTime {
			unchanged++
			continue
		}
		toIndex = append(toIndex, f)
	}

	for _, deleted := range idx.DeletedFiles(crawled) {
		if !union[deleted] {
			toRemove = append(toRemove, deleted)
		}
	}

	unchanged += total - len(toIndex) - len(toRemove)
	if unchanged < 0 {
		unchanged = 0
	}

	return Plan{
		GitDiff: &GitDiff{FromCommit: state.LastIndexedCommit, ToCommit: status.HeadCommit, Paths: changedPaths},
		Stats: Stats{
			FilesToUpdate:    len(toIndex),
			FilesToDelete:    len(toRemove),
			FilesUnchanged:   unchanged,
			TotalFilesInRepo: total,
		},
		FilesToIndex:  toIndex,
		FilesToRemove: toRemove,
	}
}

func fullReindexPlan(crawled []crawl.FileInfo, reason string) Plan {
	return Plan{
		IsFullReindex: true,
		Reason:        reason,
		Stats:         Stats{FilesToAdd: len(crawled), TotalFilesInRepo: len(crawled)},
		FilesToIndex:  crawled,
	}
}

func reasonFor(state IndexState, tracker *gittrack.Tracker) string {
	switch {
	case !state.HasPriorState:
		return "no prior index state"
	case !tracker.IsRepo():
		return "not a git repository"
	default:
		return "unknown"
	}
}

// report is a small helper so callers don't nil-check before every event.
func report(cb ProgressFunc, phase Phase, current, total int, path string) {
	if cb == nil {
		return
	}
	cb(ProgressEvent{Phase: phase, Current: current, Total: total, Path: path})
}

// logPlan writes a structured summary of a plan decision, mirroring the
// ambient slog convention used across the indexing pipeline.
func logPlan(ctx context.Context, p Plan) {
	slog.InfoContext(ctx, "planned incremental index",
		"fullReindex", p.IsFullReindex,
		"reason", p.Reason,
		"toAdd", p.Stats.FilesToAdd,
		"toUpdate", p.Stats.FilesToUpdate,
		"toDelete", p.Stats.FilesToDelete,
		"unchanged", p.Stats.FilesUnchanged,
		"total", p.Stats.TotalFilesInRepo,
		"at", time.Now().UTC().Format(time.RFC3339),
	)
}
