package taskstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateRootGoal_PersistsWithPendingStatus(t *testing.T) {
	// Given: an empty store
	s := newTestStore(t)

	// When: creating a root goal
	task, err := s.CreateRootGoal(context.Background(), "index the repo")

	// Then: it's persisted as pending with no parent
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "", task.ParentID)
	assert.Equal(t, StatusPending, task.Status)
}

func TestSpawnSubtask_FailsWhenParentMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.SpawnSubtask(context.Background(), "nonexistent", "child")

	require.Error(t, err)
}

func TestSpawnSubtask_CreatesChildUnderParent(t *testing.T) {
	s := newTestStore(t)
	root, err := s.CreateRootGoal(context.Background(), "root")
	require.NoError(t, err)

	child, err := s.SpawnSubtask(context.Background(), root.ID, "child")

	require.NoError(t, err)
	assert.Equal(t, root.ID, child.ParentID)
}

func TestGetChildren_ReturnsDirectChildrenOnly(t *testing.T) {
	s := newTestStore(t)
	root, _ := s.CreateRootGoal(context.Background(), "root")
	child1, _ := s.SpawnSubtask(context.Background(), root.ID, "c1")
	_, _ = s.SpawnSubtask(context.Background(), child1.ID, "grandchild")

	children, err := s.GetChildren(context.Background(), root.ID)

	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, child1.ID, children[0].ID)
}

func TestGetRoots_ExcludesSubtasks(t *testing.T) {
	s := newTestStore(t)
	root, _ := s.CreateRootGoal(context.Background(), "root")
	_, _ = s.SpawnSubtask(context.Background(), root.ID, "child")

	roots, err := s.GetRoots(context.Background())

	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, root.ID, roots[0].ID)
}

func TestGetTaskTree_BuildsFullSubtree(t *testing.T) {
	s := newTestStore(t)
	root, _ := s.CreateRootGoal(context.Background(), "root")
	child, _ := s.SpawnSubtask(context.Background(), root.ID, "child")
	_, _ = s.SpawnSubtask(context.Background(), child.ID, "grandchild")

	tree, err := s.GetTaskTree(context.Background(), root.ID)

	require.NoError(t, err)
	require.Len(t, tree.Children, 1)
	require.Len(t, tree.Children[0].Children, 1)
	assert.Equal(t, "grandchild", tree.Children[0].Children[0].Task.Label)
}

func TestUpdateStatus_MergesContextPatchAndIsDurable(t *testing.T) {
	s := newTestStore(t)
	task, _ := s.CreateRootGoal(context.Background(), "root")

	err := s.UpdateStatus(context.Background(), task.ID, StatusRunning, map[string]string{"progress": "50%"})
	require.NoError(t, err)

	got, err := s.Get(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, got.Status)
	assert.Equal(t, "50%", got.Context["progress"])
}

func TestDelete_WithoutCascadeFailsWhenChildrenExist(t *testing.T) {
	s := newTestStore(t)
	root, _ := s.CreateRootGoal(context.Background(), "root")
	_, _ = s.SpawnSubtask(context.Background(), root.ID, "child")

	err := s.Delete(context.Background(), root.ID, false)

	require.Error(t, err)
}

func TestDelete_WithCascadeRemovesEntireSubtree(t *testing.T) {
	s := newTestStore(t)
	root, _ := s.CreateRootGoal(context.Background(), "root")
	child, _ := s.SpawnSubtask(context.Background(), root.ID, "child")
	grandchild, _ := s.SpawnSubtask(context.Background(), child.ID, "grandchild")

	err := s.Delete(context.Background(), root.ID, true)
	require.NoError(t, err)

	_, err = s.Get(context.Background(), root.ID)
	assert.Error(t, err)
	_, err = s.Get(context.Background(), child.ID)
	assert.Error(t, err)
	_, err = s.Get(context.Background(), grandchild.ID)
	assert.Error(t, err)
}

func TestCacheToolOutput_RoundTripsExactBytes(t *testing.T) {
	s := newTestStore(t)
	task, _ := s.CreateRootGoal(context.Background(), "root")

	err := s.CacheToolOutput(context.Background(), task.ID, "grep", `{"files":["a.ts"]}`)
	require.NoError(t, err)

	output, ok, err := s.GetToolOutput(context.Background(), task.ID, "grep")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"files":["a.ts"]}`, output)
}

func TestCacheToolOutput_OverwritesOnSameTool(t *testing.T) {
	s := newTestStore(t)
	task, _ := s.CreateRootGoal(context.Background(), "root")

	require.NoError(t, s.CacheToolOutput(context.Background(), task.ID, "grep", "first"))
	require.NoError(t, s.CacheToolOutput(context.Background(), task.ID, "grep", "second"))

	output, ok, err := s.GetToolOutput(context.Background(), task.ID, "grep")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", output)
}

func TestGetToolOutput_MissingReturnsNotOK(t *testing.T) {
	s := newTestStore(t)
	task, _ := s.CreateRootGoal(context.Background(), "root")

	_, ok, err := s.GetToolOutput(context.Background(), task.ID, "grep")

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetToolOutputTimestamp_MatchesCacheTime(t *testing.T) {
	s := newTestStore(t)
	task, _ := s.CreateRootGoal(context.Background(), "root")
	require.NoError(t, s.CacheToolOutput(context.Background(), task.ID, "grep", "x"))

	ts, ok, err := s.GetToolOutputTimestamp(context.Background(), task.ID, "grep")

	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, ts.IsZero())
}

func TestRecoverState_ReturnsPersistedSet(t *testing.T) {
	s := newTestStore(t)
	root, _ := s.CreateRootGoal(context.Background(), "root")
	_, _ = s.SpawnSubtask(context.Background(), root.ID, "child")

	tasks, err := s.RecoverState(context.Background())

	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func TestResetRunningTasks_FailsInterruptedTasksWithReason(t *testing.T) {
	// Given: a task that was running when the process "crashed"
	s := newTestStore(t)
	root, _ := s.CreateRootGoal(context.Background(), "root")
	child, _ := s.SpawnSubtask(context.Background(), root.ID, "S1")
	require.NoError(t, s.CacheToolOutput(context.Background(), child.ID, "grep", `{"files":["a.ts"]}`))
	require.NoError(t, s.UpdateStatus(context.Background(), child.ID, StatusRunning, nil))

	// When: recovering state and resetting running tasks
	tasks, err := s.RecoverState(context.Background())
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	reset, err := s.ResetRunningTasks(context.Background())
	require.NoError(t, err)

	// Then: the interrupted task is marked failed with a reason, and its
	// cached tool output is still retrievable with identical bytes.
	assert.Equal(t, 1, reset)
	got, err := s.Get(context.Background(), child.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, FailReasonInterrupted, got.Context["failReason"])

	output, ok, err := s.GetToolOutput(context.Background(), child.ID, "grep")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"files":["a.ts"]}`, output)
}

func TestOpen_FilePathPersistsAcrossReopen(t *testing.T) {
	// Given: a store backed by a file on disk
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.db")
	s1, err := Open(path)
	require.NoError(t, err)
	root, err := s1.CreateRootGoal(context.Background(), "root")
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	// When: reopening the same path
	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	// Then: the task survives the reopen
	got, err := s2.Get(context.Background(), root.ID)
	require.NoError(t, err)
	assert.Equal(t, "root", got.Label)
}
