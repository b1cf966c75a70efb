package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeindex/codeindex/internal/config"
	"github.com/codeindex/codeindex/internal/vectorstore"
)

// CompactionChecker decides, between reindex cycles, whether the vector
// store has accumulated enough lazily-deleted orphans to be worth rebuilding.
//
// This is a scaled-down adaptation of the teacher's CompactionManager: that
// version tracks per-project idle timers and interruptible background
// rebuilds for a resident multi-project daemon serving concurrent searches.
// This daemon runs one project's watch-and-reindex loop sequentially with no
// concurrent search traffic to interrupt, so idle detection collapses to
// "the reindex that just finished," and compaction runs synchronously as
// part of that same cycle rather than on its own timer.
type CompactionChecker struct {
	config      config.CompactionConfig
	lastCompact time.Time
}

// NewCompactionChecker builds a checker seeded with no prior compaction, so
// the first eligible cycle after startup can compact immediately.
func NewCompactionChecker(cfg config.CompactionConfig) *CompactionChecker {
	return &CompactionChecker{config: cfg}
}

// MaybeCompact rebuilds vectors if orphans exceed the configured threshold
// and count, and the cooldown since the last compaction has elapsed.
func (c *CompactionChecker) MaybeCompact(ctx context.Context, vectors vectorstore.Store) error {
	if !c.config.Enabled {
		return nil
	}

	cooldown, err := time.ParseDuration(c.config.Cooldown)
	if err != nil {
		cooldown = time.Hour
	}
	if !c.lastCompact.IsZero() && time.Since(c.lastCompact) < cooldown {
		return nil
	}

	stats := vectors.GetStats()
	if stats.OrphanCount < c.config.MinOrphanCount {
		return nil
	}

	total := stats.RecordCount + stats.OrphanCount
	if total == 0 {
		return nil
	}
	ratio := float64(stats.OrphanCount) / float64(total)
	if ratio < c.config.OrphanThreshold {
		return nil
	}

	slog.Info("compacting vector store",
		slog.Int("orphans", stats.OrphanCount),
		slog.Int("records", stats.RecordCount),
		slog.Float64("orphan_ratio", ratio))

	if err := vectors.Compact(ctx); err != nil {
		return err
	}
	c.lastCompact = time.Now()
	return nil
}
