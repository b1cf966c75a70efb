package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codeindex/codeindex/internal/config"
	"github.com/codeindex/codeindex/internal/taskstore"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage the durable goal/subtask tree",
		Long: `Create, query and update goal and subtask records in the task store
shared with the manage_task MCP tool, so work tracked by an AI assistant is
visible and editable from the command line too.`,
	}

	cmd.AddCommand(newTaskCreateCmd())
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskTreeCmd())
	cmd.AddCommand(newTaskStatusCmd())
	cmd.AddCommand(newTaskDeleteCmd())

	return cmd
}

func openTaskStore() (*taskstore.Store, func(), error) {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root = "."
	}
	dataDir := filepath.Join(root, ".codeindex")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := taskstore.Open(filepath.Join(dataDir, "tasks.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open task store: %w", err)
	}
	return store, func() { _ = store.Close() }, nil
}

func newTaskCreateCmd() *cobra.Command {
	var parentID string

	cmd := &cobra.Command{
		Use:   "create <label>",
		Short: "Create a root goal, or a subtask with --parent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := openTaskStore()
			if err != nil {
				return err
			}
			defer cleanup()

			var task *taskstore.Task
			if parentID == "" {
				task, err = store.CreateRootGoal(cmd.Context(), args[0])
			} else {
				task, err = store.SpawnSubtask(cmd.Context(), parentID, args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to create task: %w", err)
			}
			return printTaskJSON(cmd, task)
		},
	}

	cmd.Flags().StringVar(&parentID, "parent", "", "Parent task ID (creates a root goal if omitted)")
	return cmd
}

func newTaskListCmd() *cobra.Command {
	var rootsOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, cleanup, err := openTaskStore()
			if err != nil {
				return err
			}
			defer cleanup()

			var tasks []*taskstore.Task
			if rootsOnly {
				tasks, err = store.GetRoots(cmd.Context())
			} else {
				tasks, err = store.GetAll(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("failed to list tasks: %w", err)
			}
			return printTaskJSON(cmd, tasks)
		},
	}

	cmd.Flags().BoolVar(&rootsOnly, "roots", false, "List only root goals")
	return cmd
}

func newTaskTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree <id>",
		Short: "Show a task and its descendants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := openTaskStore()
			if err != nil {
				return err
			}
			defer cleanup()

			node, err := store.GetTaskTree(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to load task tree: %w", err)
			}
			return printTaskJSON(cmd, node)
		},
	}
}

func newTaskStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <pending|running|completed|failed>",
		Short: "Update a task's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := openTaskStore()
			if err != nil {
				return err
			}
			defer cleanup()

			status := taskstore.Status(args[1])
			switch status {
			case taskstore.StatusPending, taskstore.StatusRunning, taskstore.StatusCompleted, taskstore.StatusFailed:
			default:
				return fmt.Errorf("invalid status %q", args[1])
			}

			if err := store.UpdateStatus(cmd.Context(), args[0], status, nil); err != nil {
				return fmt.Errorf("failed to update status: %w", err)
			}

			task, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to reload task: %w", err)
			}
			return printTaskJSON(cmd, task)
		},
	}
}

func newTaskDeleteCmd() *cobra.Command {
	var cascade bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task, optionally cascading to its subtree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := openTaskStore()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := store.Delete(cmd.Context(), args[0], cascade); err != nil {
				return fmt.Errorf("failed to delete task: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&cascade, "cascade", false, "Also delete all descendants")
	return cmd
}

func printTaskJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
