package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinMaxNormalize_EmptySet(t *testing.T) {
	got := minMaxNormalize(nil)
	assert.Empty(t, got)
}

func TestMinMaxNormalize_EqualScoresAllOne(t *testing.T) {
	got := minMaxNormalize([]subResult{{ID: "a", Score: 5}, {ID: "b", Score: 5}})
	assert.Equal(t, 1.0, got["a"])
	assert.Equal(t, 1.0, got["b"])
}

func TestMinMaxNormalize_ScalesToUnitRange(t *testing.T) {
	got := minMaxNormalize([]subResult{{ID: "a", Score: 0}, {ID: "b", Score: 5}, {ID: "c", Score: 10}})
	assert.Equal(t, 0.0, got["a"])
	assert.Equal(t, 0.5, got["b"])
	assert.Equal(t, 1.0, got["c"])
}

func TestFuse_WeightsAllThreeSources(t *testing.T) {
	vec := []subResult{{ID: "chunk1", Score: 0.9}, {ID: "chunk2", Score: 0.1}}
	bm25 := []subResult{{ID: "chunk1", Score: 10, MatchedTerms: []string{"foo"}}}
	fuzzy := []subResult{{ID: "chunk2", Score: 1}}

	out := fuse(vec, bm25, fuzzy, DefaultWeights())
	require.Len(t, out, 2)

	// chunk1: vector 1.0 (top of its set) * 0.6 + bm25 1.0 (only member) * 0.3 = 0.9
	assert.Equal(t, "chunk1", out[0].ChunkID)
	assert.InDelta(t, 0.9, out[0].Score, 1e-9)
	assert.Equal(t, []string{"foo"}, out[0].MatchedTerms)
	assert.ElementsMatch(t, []string{"vector", "bm25"}, out[0].Provenance)

	// chunk2: vector 0.0 (bottom of its set) * weight + fuzzy 1.0 (only member) * 0.1 = 0.1
	assert.Equal(t, "chunk2", out[1].ChunkID)
	assert.InDelta(t, 0.1, out[1].Score, 1e-9)
}

func TestFuse_ReNormalizesWeightsWhenSourceMissing(t *testing.T) {
	vec := []subResult{{ID: "chunk1", Score: 1}}
	out := fuse(vec, nil, nil, DefaultWeights())
	require.Len(t, out, 1)
	// only vector active: weight/activeWeight = 0.6/0.6 = 1.0, normalized score 1.0
	assert.InDelta(t, 1.0, out[0].Score, 1e-9)
	assert.Equal(t, []string{"vector"}, out[0].Provenance)
}

func TestFuse_AllSourcesEmptyReturnsNil(t *testing.T) {
	out := fuse(nil, nil, nil, DefaultWeights())
	assert.Nil(t, out)
}

func TestFuse_SortsDescendingScoreThenAscendingID(t *testing.T) {
	vec := []subResult{{ID: "b", Score: 1}, {ID: "a", Score: 1}}
	out := fuse(vec, nil, nil, DefaultWeights())
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ChunkID)
	assert.Equal(t, "b", out[1].ChunkID)
}
