package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeindex/codeindex/internal/fileindex"
	"github.com/codeindex/codeindex/internal/ui"
)

func TestStatusCmd_NoIndex(t *testing.T) {
	// Given: a directory with no index
	tmpDir := t.TempDir()

	// When: running status command
	cmd := newStatusCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	oldDir, _ := os.Getwd()
	defer func() { _ = os.Chdir(oldDir) }()
	_ = os.Chdir(tmpDir)

	err := cmd.Execute()

	// Then: returns error about missing index
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no index found")
}

func TestCollectStatus_WithFiles(t *testing.T) {
	// Given: a directory with a file index carrying two files' worth of chunks
	tmpDir := t.TempDir()
	dataDir := filepath.Join(tmpDir, ".codeindex")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))

	fileIndexPath := filepath.Join(dataDir, "file-index.json")
	idx, err := fileindex.Load(fileIndexPath, tmpDir)
	require.NoError(t, err)
	idx.UpdateFile(fileindex.FileRecord{RelPath: "a.go", Hash: "h1", ChunkCount: 10, LastIndexed: time.Now().Unix()})
	idx.UpdateFile(fileindex.FileRecord{RelPath: "b.go", Hash: "h2", ChunkCount: 40, LastIndexed: time.Now().Unix()})
	require.NoError(t, idx.Save())

	// When: collecting status
	info, err := collectStatus(context.Background(), tmpDir, dataDir)

	// Then: succeeds and reports the aggregate counts
	require.NoError(t, err)
	assert.Equal(t, 2, info.TotalFiles)
	assert.Equal(t, 50, info.TotalChunks)
	assert.NotZero(t, info.MetadataSize)
}

func TestCollectStatus_EmptyIndex(t *testing.T) {
	// Given: a directory with an empty file index
	tmpDir := t.TempDir()
	dataDir := filepath.Join(tmpDir, ".codeindex")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))

	idx, err := fileindex.Load(filepath.Join(dataDir, "file-index.json"), tmpDir)
	require.NoError(t, err)
	require.NoError(t, idx.Save())

	// When: collecting status
	info, err := collectStatus(context.Background(), tmpDir, dataDir)

	// Then: succeeds but shows zero counts
	require.NoError(t, err)
	assert.Equal(t, 0, info.TotalFiles)
	assert.Equal(t, 0, info.TotalChunks)
}

func TestStatusRenderer_Output(t *testing.T) {
	// Given: status info
	info := ui.StatusInfo{
		ProjectName:    "my-project",
		TotalFiles:     10,
		TotalChunks:    50,
		LastIndexed:    time.Now(),
		MetadataSize:   1024 * 1024,
		EmbedderType:   "ollama",
		EmbedderStatus: "ready",
		EmbedderModel:  "nomic-embed-text",
	}

	// When: rendering
	buf := &bytes.Buffer{}
	renderer := ui.NewStatusRenderer(buf, true) // noColor
	err := renderer.Render(info)

	// Then: output contains expected values
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "my-project")
	assert.Contains(t, output, "10")
	assert.Contains(t, output, "50")
	assert.Contains(t, output, "ollama")
	assert.Contains(t, output, "ready")
}

func TestStatusRenderer_JSON(t *testing.T) {
	// Given: status info
	info := ui.StatusInfo{
		ProjectName: "json-project",
		TotalFiles:  5,
		TotalChunks: 25,
	}

	// When: rendering as JSON
	buf := &bytes.Buffer{}
	renderer := ui.NewStatusRenderer(buf, false)
	err := renderer.RenderJSON(info)

	// Then: output is valid JSON
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, `"project_name"`)
	assert.Contains(t, output, `"json-project"`)
	assert.Contains(t, output, `"total_files"`)
}

func TestGetFileSize_NonExistent(t *testing.T) {
	size := getFileSize("/nonexistent/file.txt")
	assert.Equal(t, int64(0), size)
}

func TestGetFileSize_Exists(t *testing.T) {
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "test.txt")
	content := []byte("hello world")
	require.NoError(t, os.WriteFile(filePath, content, 0o644))

	size := getFileSize(filePath)
	assert.Equal(t, int64(len(content)), size)
}

func TestGetDirSize(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "a.txt"), []byte("aaaa"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "b.txt"), []byte("bb"), 0o644))

	size := getDirSize(tmpDir)
	assert.Equal(t, int64(6), size)
}

func TestGetDirSize_NonExistent(t *testing.T) {
	size := getDirSize("/nonexistent/dir")
	assert.Equal(t, int64(0), size)
}
