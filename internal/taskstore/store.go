package taskstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite" // pure Go driver, no CGO

	"github.com/codeindex/codeindex/internal/errtax"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	parent_id TEXT,
	label TEXT NOT NULL,
	status TEXT NOT NULL,
	context TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_id);

CREATE TABLE IF NOT EXISTS tool_outputs (
	task_id TEXT NOT NULL,
	tool TEXT NOT NULL,
	output TEXT NOT NULL,
	cached_at TIMESTAMP NOT NULL,
	PRIMARY KEY (task_id, tool)
);
`

// Store persists the task DAG in SQLite, single-writer via a held mutex and
// a connection pool capped at one connection, matching the contention-
// avoidance pattern used for the BM25 SQLite backend this spec otherwise
// drops in favor of Bleve.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates or opens a task store at path. An empty path opens an
// in-memory store, used by tests.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != "" {
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errtax.Wrap(errtax.KindIO, "taskstore.Open", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if path != "" {
		pragmas := []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA busy_timeout = 5000",
			"PRAGMA synchronous = NORMAL",
		}
		for _, p := range pragmas {
			if _, err := db.Exec(p); err != nil {
				_ = db.Close()
				return nil, errtax.Wrap(errtax.KindIO, "taskstore.Open", err)
			}
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errtax.Wrap(errtax.KindIO, "taskstore.Open", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRootGoal creates a new task with no parent.
func (s *Store) CreateRootGoal(ctx context.Context, label string) (*Task, error) {
	return s.insertTask(ctx, "", label)
}

// SpawnSubtask creates a new task under parentID. Fails if the parent
// doesn't exist.
func (s *Store) SpawnSubtask(ctx context.Context, parentID, label string) (*Task, error) {
	s.mu.Lock()
	_, err := s.getLocked(ctx, parentID)
	s.mu.Unlock()
	if err != nil {
		return nil, errtax.New(errtax.KindParentNotFound, "taskstore.SpawnSubtask", "parent task not found").WithDetail("parent_id", parentID)
	}
	return s.insertTask(ctx, parentID, label)
}

func (s *Store) insertTask(ctx context.Context, parentID, label string) (*Task, error) {
	now := time.Now().UTC()
	t := &Task{
		ID:          uuid.NewString(),
		ParentID:    parentID,
		Label:       label,
		Status:      StatusPending,
		Context:     map[string]string{},
		ToolOutputs: map[string]ToolOutput{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	contextJSON, err := json.Marshal(t.Context)
	if err != nil {
		return nil, errtax.Wrap(errtax.KindInternal, "taskstore.insertTask", err)
	}

	var parent interface{}
	if t.ParentID != "" {
		parent = t.ParentID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, parent_id, label, status, context, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, parent, t.Label, string(t.Status), string(contextJSON), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return nil, errtax.Wrap(errtax.KindIO, "taskstore.insertTask", err)
	}
	return t, nil
}

// Get fetches one task by id.
func (s *Store) Get(ctx context.Context, id string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(ctx, id)
}

func (s *Store) getLocked(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, parent_id, label, status, context, created_at, updated_at FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errtax.New(errtax.KindTaskNotFound, "taskstore.Get", "task not found").WithDetail("id", id)
		}
		return nil, errtax.Wrap(errtax.KindIO, "taskstore.Get", err)
	}
	outputs, err := s.toolOutputsLocked(ctx, id)
	if err != nil {
		return nil, err
	}
	t.ToolOutputs = outputs
	return t, nil
}

// GetChildren returns the direct children of id, ordered by creation time.
func (s *Store) GetChildren(ctx context.Context, id string) ([]*Task, error) {
	return s.queryTasks(ctx, `SELECT id, parent_id, label, status, context, created_at, updated_at FROM tasks WHERE parent_id = ? ORDER BY created_at ASC`, id)
}

// GetAll returns every task in the store, ordered by creation time.
func (s *Store) GetAll(ctx context.Context) ([]*Task, error) {
	return s.queryTasks(ctx, `SELECT id, parent_id, label, status, context, created_at, updated_at FROM tasks ORDER BY created_at ASC`)
}

// GetRoots returns every task with no parent.
func (s *Store) GetRoots(ctx context.Context) ([]*Task, error) {
	return s.queryTasks(ctx, `SELECT id, parent_id, label, status, context, created_at, updated_at FROM tasks WHERE parent_id IS NULL OR parent_id = '' ORDER BY created_at ASC`)
}

func (s *Store) queryTasks(ctx context.Context, query string, args ...interface{}) ([]*Task, error) {
	s.mu.Lock()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.mu.Unlock()
		return nil, errtax.Wrap(errtax.KindIO, "taskstore.queryTasks", err)
	}
	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			rows.Close()
			s.mu.Unlock()
			return nil, errtax.Wrap(errtax.KindIO, "taskstore.queryTasks", err)
		}
		tasks = append(tasks, t)
	}
	rows.Close()
	s.mu.Unlock()

	for _, t := range tasks {
		outputs, err := s.ToolOutputs(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		t.ToolOutputs = outputs
	}
	return tasks, nil
}

// ToolOutputs returns every cached tool output for a task.
func (s *Store) ToolOutputs(ctx context.Context, id string) (map[string]ToolOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toolOutputsLocked(ctx, id)
}

func (s *Store) toolOutputsLocked(ctx context.Context, id string) (map[string]ToolOutput, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tool, output, cached_at FROM tool_outputs WHERE task_id = ?`, id)
	if err != nil {
		return nil, errtax.Wrap(errtax.KindIO, "taskstore.toolOutputs", err)
	}
	defer rows.Close()

	outputs := make(map[string]ToolOutput)
	for rows.Next() {
		var tool, output string
		var cachedAt time.Time
		if err := rows.Scan(&tool, &output, &cachedAt); err != nil {
			return nil, errtax.Wrap(errtax.KindIO, "taskstore.toolOutputs", err)
		}
		outputs[tool] = ToolOutput{Output: output, CachedAt: cachedAt}
	}
	return outputs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var parentID sql.NullString
	var contextJSON string
	if err := row.Scan(&t.ID, &parentID, &t.Label, &t.Status, &contextJSON, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.ParentID = parentID.String
	if err := json.Unmarshal([]byte(contextJSON), &t.Context); err != nil {
		t.Context = map[string]string{}
	}
	return &t, nil
}

// GetTaskTree returns id and its full descendant subtree.
func (s *Store) GetTaskTree(ctx context.Context, id string) (*TaskNode, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	node := &TaskNode{Task: t}
	children, err := s.GetChildren(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		childNode, err := s.GetTaskTree(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, childNode)
	}
	return node, nil
}

// UpdateStatus sets a task's status and merges contextPatch into its
// context map. Durable on return.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status, contextPatch map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.getLocked(ctx, id)
	if err != nil {
		return err
	}
	for k, v := range contextPatch {
		existing.Context[k] = v
	}
	contextJSON, err := json.Marshal(existing.Context)
	if err != nil {
		return errtax.Wrap(errtax.KindInternal, "taskstore.UpdateStatus", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, context = ?, updated_at = ? WHERE id = ?`,
		string(status), string(contextJSON), time.Now().UTC(), id)
	if err != nil {
		return errtax.Wrap(errtax.KindIO, "taskstore.UpdateStatus", err)
	}
	return nil
}

// Delete removes a task. With cascade, its entire subtree is removed too;
// without, it fails if the task has children.
func (s *Store) Delete(ctx context.Context, id string, cascade bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cascade {
		children, err := s.childIDsLocked(ctx, id)
		if err != nil {
			return err
		}
		for _, childID := range children {
			if err := s.deleteSubtreeLocked(ctx, childID); err != nil {
				return err
			}
		}
	} else {
		children, err := s.childIDsLocked(ctx, id)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return errtax.New(errtax.KindInternal, "taskstore.Delete", "task has children, use cascade").WithDetail("id", id)
		}
	}
	return s.deleteOneLocked(ctx, id)
}

func (s *Store) deleteSubtreeLocked(ctx context.Context, id string) error {
	children, err := s.childIDsLocked(ctx, id)
	if err != nil {
		return err
	}
	for _, childID := range children {
		if err := s.deleteSubtreeLocked(ctx, childID); err != nil {
			return err
		}
	}
	return s.deleteOneLocked(ctx, id)
}

func (s *Store) childIDsLocked(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM tasks WHERE parent_id = ?`, id)
	if err != nil {
		return nil, errtax.Wrap(errtax.KindIO, "taskstore.childIDs", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var childID string
		if err := rows.Scan(&childID); err != nil {
			return nil, errtax.Wrap(errtax.KindIO, "taskstore.childIDs", err)
		}
		ids = append(ids, childID)
	}
	return ids, rows.Err()
}

func (s *Store) deleteOneLocked(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tool_outputs WHERE task_id = ?`, id); err != nil {
		return errtax.Wrap(errtax.KindIO, "taskstore.Delete", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return errtax.Wrap(errtax.KindIO, "taskstore.Delete", err)
	}
	return nil
}

// CacheToolOutput stores or replaces the cached output for a tool call made
// on behalf of a task.
func (s *Store) CacheToolOutput(ctx context.Context, id, tool, output string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tool_outputs (task_id, tool, output, cached_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(task_id, tool) DO UPDATE SET output = excluded.output, cached_at = excluded.cached_at`,
		id, tool, output, time.Now().UTC())
	if err != nil {
		return errtax.Wrap(errtax.KindIO, "taskstore.CacheToolOutput", err)
	}
	return nil
}

// GetToolOutput returns a cached tool output, or ok=false if not cached.
func (s *Store) GetToolOutput(ctx context.Context, id, tool string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var output string
	err := s.db.QueryRowContext(ctx, `SELECT output FROM tool_outputs WHERE task_id = ? AND tool = ?`, id, tool).Scan(&output)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errtax.Wrap(errtax.KindIO, "taskstore.GetToolOutput", err)
	}
	return output, true, nil
}

// GetToolOutputTimestamp returns when a tool output was cached, or
// ok=false if not cached.
func (s *Store) GetToolOutputTimestamp(ctx context.Context, id, tool string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cachedAt time.Time
	err := s.db.QueryRowContext(ctx, `SELECT cached_at FROM tool_outputs WHERE task_id = ? AND tool = ?`, id, tool).Scan(&cachedAt)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, errtax.Wrap(errtax.KindIO, "taskstore.GetToolOutputTimestamp", err)
	}
	return cachedAt, true, nil
}

// RecoverState reloads every persisted task, used after a process restart.
func (s *Store) RecoverState(ctx context.Context) ([]*Task, error) {
	return s.GetAll(ctx)
}

// ResetRunningTasks marks every task still in StatusRunning as
// StatusFailed with FailReasonInterrupted, called once at startup after
// RecoverState. Returns the number of tasks reset.
func (s *Store) ResetRunningTasks(ctx context.Context) (int, error) {
	running, err := s.queryTasks(ctx, `SELECT id, parent_id, label, status, context, created_at, updated_at FROM tasks WHERE status = ?`, string(StatusRunning))
	if err != nil {
		return 0, err
	}
	for _, t := range running {
		if err := s.UpdateStatus(ctx, t.ID, StatusFailed, map[string]string{"failReason": FailReasonInterrupted}); err != nil {
			return 0, fmt.Errorf("reset task %s: %w", t.ID, err)
		}
	}
	return len(running), nil
}
