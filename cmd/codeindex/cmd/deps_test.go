package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDepsFixture(t *testing.T, dir string) (a, b string) {
	t.Helper()
	a = filepath.Join(dir, "a.ts")
	b = filepath.Join(dir, "b.ts")
	require.NoError(t, os.WriteFile(a, []byte(`import "./b"; export const a = 1;`), 0o644))
	require.NoError(t, os.WriteFile(b, []byte(`export const b = 2;`), 0o644))
	return a, b
}

func TestDepsCmd_ReportsGraphStats(t *testing.T) {
	// Given: two files where a.ts imports b.ts
	dir := t.TempDir()
	a, _ := writeDepsFixture(t, dir)

	// When: running deps against the entry point
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"deps", a})

	err := cmd.Execute()

	// Then: it reports two nodes and one edge
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "Nodes: 2")
	assert.Contains(t, output, "Edges: 1")
}

func TestDepsCmd_JSONOutput(t *testing.T) {
	// Given: two files where a.ts imports b.ts
	dir := t.TempDir()
	a, _ := writeDepsFixture(t, dir)

	// When: running deps with --json
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"deps", "--json", a})

	err := cmd.Execute()

	// Then: output is JSON containing the stats object
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, `"stats"`)
	assert.Contains(t, output, `"NodeCount": 2`)
}

func TestDepsCmd_RequiresEntryPoint(t *testing.T) {
	// Given: deps command with no arguments
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"deps"})

	// When: executing
	err := cmd.Execute()

	// Then: it fails
	require.Error(t, err)
}
