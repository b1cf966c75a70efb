package plan

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadState_MissingFileReturnsZeroValue(t *testing.T) {
	s, err := LoadState(filepath.Join(t.TempDir(), "missing.json"))

	require.NoError(t, err)
	assert.Equal(t, PersistedState{}, s)
	assert.False(t, s.ToIndexState().HasPriorState)
}

func TestSaveStateThenLoadState_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index-state.json")
	want := PersistedState{
		LastIndexedCommit:   "abc123",
		LastIndexedAt:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Branch:              "main",
		TotalFiles:          42,
		IncludesUncommitted: true,
	}

	require.NoError(t, SaveState(path, want))

	got, err := LoadState(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.True(t, got.ToIndexState().HasPriorState)
}
