package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codeindex/codeindex/internal/taskstore"
)

// handleManageTask is the MCP SDK handler for manage_task. It dispatches on
// input.Action to the matching taskstore.Store method.
func (s *Server) handleManageTask(ctx context.Context, _ *mcp.CallToolRequest, input ManageTaskInput) (
	*mcp.CallToolResult,
	ManageTaskOutput,
	error,
) {
	switch input.Action {
	case "create_root":
		if input.Label == "" {
			return nil, ManageTaskOutput{}, NewInvalidParamsError("label is required for create_root")
		}
		t, err := s.tasks.CreateRootGoal(ctx, input.Label)
		if err != nil {
			return nil, ManageTaskOutput{}, MapError(err)
		}
		return nil, ManageTaskOutput{Task: toTaskView(t)}, nil

	case "spawn_subtask":
		if input.ParentID == "" || input.Label == "" {
			return nil, ManageTaskOutput{}, NewInvalidParamsError("parentId and label are required for spawn_subtask")
		}
		t, err := s.tasks.SpawnSubtask(ctx, input.ParentID, input.Label)
		if err != nil {
			return nil, ManageTaskOutput{}, MapError(err)
		}
		return nil, ManageTaskOutput{Task: toTaskView(t)}, nil

	case "get":
		if input.ID == "" {
			return nil, ManageTaskOutput{}, NewInvalidParamsError("id is required for get")
		}
		t, err := s.tasks.Get(ctx, input.ID)
		if err != nil {
			return nil, ManageTaskOutput{}, MapError(err)
		}
		return nil, ManageTaskOutput{Task: toTaskView(t)}, nil

	case "get_children":
		if input.ID == "" {
			return nil, ManageTaskOutput{}, NewInvalidParamsError("id is required for get_children")
		}
		children, err := s.tasks.GetChildren(ctx, input.ID)
		if err != nil {
			return nil, ManageTaskOutput{}, MapError(err)
		}
		return nil, ManageTaskOutput{Tasks: toTaskViews(children)}, nil

	case "get_all":
		all, err := s.tasks.GetAll(ctx)
		if err != nil {
			return nil, ManageTaskOutput{}, MapError(err)
		}
		return nil, ManageTaskOutput{Tasks: toTaskViews(all)}, nil

	case "get_roots":
		roots, err := s.tasks.GetRoots(ctx)
		if err != nil {
			return nil, ManageTaskOutput{}, MapError(err)
		}
		return nil, ManageTaskOutput{Tasks: toTaskViews(roots)}, nil

	case "get_tree":
		if input.ID == "" {
			return nil, ManageTaskOutput{}, NewInvalidParamsError("id is required for get_tree")
		}
		node, err := s.tasks.GetTaskTree(ctx, input.ID)
		if err != nil {
			return nil, ManageTaskOutput{}, MapError(err)
		}
		return nil, ManageTaskOutput{Tree: toTaskTreeView(node)}, nil

	case "update_status":
		if input.ID == "" || input.Status == "" {
			return nil, ManageTaskOutput{}, NewInvalidParamsError("id and status are required for update_status")
		}
		if err := s.tasks.UpdateStatus(ctx, input.ID, taskstore.Status(input.Status), input.Context); err != nil {
			return nil, ManageTaskOutput{}, MapError(err)
		}
		t, err := s.tasks.Get(ctx, input.ID)
		if err != nil {
			return nil, ManageTaskOutput{}, MapError(err)
		}
		return nil, ManageTaskOutput{Task: toTaskView(t)}, nil

	case "delete":
		if input.ID == "" {
			return nil, ManageTaskOutput{}, NewInvalidParamsError("id is required for delete")
		}
		if err := s.tasks.Delete(ctx, input.ID, input.Cascade); err != nil {
			return nil, ManageTaskOutput{}, MapError(err)
		}
		return nil, ManageTaskOutput{Found: true}, nil

	case "cache_tool_output":
		if input.ID == "" || input.Tool == "" {
			return nil, ManageTaskOutput{}, NewInvalidParamsError("id and tool are required for cache_tool_output")
		}
		if err := s.tasks.CacheToolOutput(ctx, input.ID, input.Tool, input.Output); err != nil {
			return nil, ManageTaskOutput{}, MapError(err)
		}
		return nil, ManageTaskOutput{}, nil

	case "get_tool_output":
		if input.ID == "" || input.Tool == "" {
			return nil, ManageTaskOutput{}, NewInvalidParamsError("id and tool are required for get_tool_output")
		}
		output, found, err := s.tasks.GetToolOutput(ctx, input.ID, input.Tool)
		if err != nil {
			return nil, ManageTaskOutput{}, MapError(err)
		}
		return nil, ManageTaskOutput{Output: output, Found: found}, nil

	case "get_tool_output_timestamp":
		if input.ID == "" || input.Tool == "" {
			return nil, ManageTaskOutput{}, NewInvalidParamsError("id and tool are required for get_tool_output_timestamp")
		}
		ts, found, err := s.tasks.GetToolOutputTimestamp(ctx, input.ID, input.Tool)
		if err != nil {
			return nil, ManageTaskOutput{}, MapError(err)
		}
		out := ManageTaskOutput{Found: found}
		if found {
			out.Timestamp = ts.Format(time.RFC3339)
		}
		return nil, out, nil

	case "recover_state":
		tasks, err := s.tasks.RecoverState(ctx)
		if err != nil {
			return nil, ManageTaskOutput{}, MapError(err)
		}
		return nil, ManageTaskOutput{Tasks: toTaskViews(tasks)}, nil

	case "reset_running":
		n, err := s.tasks.ResetRunningTasks(ctx)
		if err != nil {
			return nil, ManageTaskOutput{}, MapError(err)
		}
		return nil, ManageTaskOutput{ResetCount: n}, nil

	default:
		return nil, ManageTaskOutput{}, NewInvalidParamsError("unknown action: " + input.Action)
	}
}

func toTaskView(t *taskstore.Task) *TaskView {
	if t == nil {
		return nil
	}
	return &TaskView{
		ID:        t.ID,
		ParentID:  t.ParentID,
		Label:     t.Label,
		Status:    string(t.Status),
		Context:   t.Context,
		CreatedAt: t.CreatedAt.Format(time.RFC3339),
		UpdatedAt: t.UpdatedAt.Format(time.RFC3339),
	}
}

func toTaskViews(tasks []*taskstore.Task) []*TaskView {
	views := make([]*TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, toTaskView(t))
	}
	return views
}

func toTaskTreeView(node *taskstore.TaskNode) *TaskTreeView {
	if node == nil {
		return nil
	}
	view := &TaskTreeView{Task: toTaskView(node.Task)}
	for _, child := range node.Children {
		view.Children = append(view.Children, toTaskTreeView(child))
	}
	return view
}
