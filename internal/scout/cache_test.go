package scout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCache_PutThenGet_L1Hit(t *testing.T) {
	c := NewParseCache(10, nil)
	pf := &ParsedFile{Language: "go", RawImports: []string{"fmt"}}

	c.Put(context.Background(), "/a.go", "hash1", pf)

	got, ok := c.Get(context.Background(), "/a.go", "hash1")
	require.True(t, ok)
	assert.Equal(t, pf.RawImports, got.RawImports)
}

func TestParseCache_Get_MissReturnsFalse(t *testing.T) {
	c := NewParseCache(10, nil)
	_, ok := c.Get(context.Background(), "/missing.go", "nohash")
	assert.False(t, ok)
}

func TestParseCache_DifferentHashMisses(t *testing.T) {
	c := NewParseCache(10, nil)
	c.Put(context.Background(), "/a.go", "hash1", &ParsedFile{Language: "go"})

	_, ok := c.Get(context.Background(), "/a.go", "hash2")
	assert.False(t, ok)
}

func TestParseCache_Clear_EmptiesL1(t *testing.T) {
	c := NewParseCache(10, nil)
	c.Put(context.Background(), "/a.go", "hash1", &ParsedFile{Language: "go"})
	c.Clear()

	_, ok := c.Get(context.Background(), "/a.go", "hash1")
	assert.False(t, ok)
}
