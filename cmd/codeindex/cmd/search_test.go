package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeindex/codeindex/internal/bm25"
)

func seedSearchIndex(t *testing.T, dataDir string, docs []bm25.Document) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "file-index.json"), []byte(`{"files":{}}`), 0o644))

	idx, err := bm25.New(filepath.Join(dataDir, "bm25-index"), bm25.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, idx.AddDocuments(context.Background(), docs))
	require.NoError(t, idx.Close())
}

func TestSearchCmd_RequiresIndex(t *testing.T) {
	// Given: a directory without an index
	tmpDir := t.TempDir()

	// When: running search command
	rootCmd := NewRootCmd()
	rootCmd.SetArgs([]string{"search", "test query"})

	oldDir, _ := os.Getwd()
	_ = os.Chdir(tmpDir)
	defer func() { _ = os.Chdir(oldDir) }()

	err := rootCmd.Execute()

	// Then: error about missing index
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no index found")
}

func TestSearchCmd_RequiresQuery(t *testing.T) {
	// Given: search command without query
	rootCmd := NewRootCmd()
	rootCmd.SetArgs([]string{"search"})

	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)

	err := rootCmd.Execute()

	// Then: error about missing query
	require.Error(t, err)
}

func TestSearchCmd_WithIndex_ReturnsResults(t *testing.T) {
	// Given: a directory with a BM25 index containing one matching document
	tmpDir := t.TempDir()
	dataDir := filepath.Join(tmpDir, ".codeindex")
	seedSearchIndex(t, dataDir, []bm25.Document{
		{
			ID:   "test.go:1:1",
			Text: "func TestFunction() { return }",
			Metadata: map[string]string{
				"relPath": "test.go",
				"name":    "TestFunction",
			},
		},
	})

	oldDir, _ := os.Getwd()
	_ = os.Chdir(tmpDir)
	defer func() { _ = os.Chdir(oldDir) }()

	// When: running search with --bm25-only (no embedder/vector store in test)
	rootCmd := NewRootCmd()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"search", "TestFunction", "--bm25-only"})

	err := rootCmd.Execute()

	// Then: no error and output contains the matched chunk id
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "test.go:1:1")
}

func TestSearchCmd_FormatJSON_ValidJSON(t *testing.T) {
	// Given: a directory with a valid index
	tmpDir := t.TempDir()
	dataDir := filepath.Join(tmpDir, ".codeindex")
	seedSearchIndex(t, dataDir, []bm25.Document{
		{ID: "test.go:1:1", Text: "func Test() {}", Metadata: map[string]string{"relPath": "test.go"}},
	})

	oldDir, _ := os.Getwd()
	_ = os.Chdir(tmpDir)
	defer func() { _ = os.Chdir(oldDir) }()

	// When: running search with JSON format
	rootCmd := NewRootCmd()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"search", "Test", "--format", "json", "--bm25-only"})

	err := rootCmd.Execute()

	// Then: output is valid JSON containing the chunk id
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "{")
	assert.Contains(t, output, "test.go:1:1")
}

func TestSearchCmd_LimitFlag(t *testing.T) {
	// Given: search command
	rootCmd := NewRootCmd()
	searchCmd, _, _ := rootCmd.Find([]string{"search"})
	require.NotNil(t, searchCmd)

	// Then: limit flag exists with default 10
	limitFlag := searchCmd.Flags().Lookup("limit")
	assert.NotNil(t, limitFlag)
	assert.Equal(t, "10", limitFlag.DefValue)
}

func TestSearchCmd_FormatFlag(t *testing.T) {
	// Given: search command
	rootCmd := NewRootCmd()
	searchCmd, _, _ := rootCmd.Find([]string{"search"})
	require.NotNil(t, searchCmd)

	// Then: format flag exists with default "text"
	formatFlag := searchCmd.Flags().Lookup("format")
	assert.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestSearchCmd_BM25OnlyFlag(t *testing.T) {
	// Given: search command
	rootCmd := NewRootCmd()
	searchCmd, _, _ := rootCmd.Find([]string{"search"})
	require.NotNil(t, searchCmd)

	// Then: bm25-only flag exists and defaults to false
	bm25OnlyFlag := searchCmd.Flags().Lookup("bm25-only")
	assert.NotNil(t, bm25OnlyFlag, "should have --bm25-only flag")
	assert.Equal(t, "false", bm25OnlyFlag.DefValue, "default should be false")
}

func TestSearchCmd_NoResults_ShowsMessage(t *testing.T) {
	// Given: a directory with an empty index
	tmpDir := t.TempDir()
	dataDir := filepath.Join(tmpDir, ".codeindex")
	seedSearchIndex(t, dataDir, nil)

	oldDir, _ := os.Getwd()
	_ = os.Chdir(tmpDir)
	defer func() { _ = os.Chdir(oldDir) }()

	// When: searching for something not in the index
	rootCmd := NewRootCmd()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"search", "nonexistent_xyz_123", "--bm25-only"})

	err := rootCmd.Execute()

	// Then: shows "No results" message
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "No results")
}
