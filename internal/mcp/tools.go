package mcp

// ProjectInfo describes the project a Server is rooted at, as detected by
// ProjectDetector.
type ProjectInfo struct {
	Name     string `json:"name"`
	RootPath string `json:"rootPath"`
	Type     string `json:"type"`
}

// AnalyzeDependencyInput defines the input schema for the analyze_dependency tool.
type AnalyzeDependencyInput struct {
	EntryPoints        []string `json:"entryPoints" jsonschema:"files to start the import walk from, relative to the project root"`
	MaxDepth           int      `json:"maxDepth,omitempty" jsonschema:"maximum import depth to descend, default 50"`
	IncludeNodeModules bool     `json:"includeNodeModules,omitempty" jsonschema:"whether to follow imports into node_modules/vendor-style package directories"`
}

// AnalyzeDependencyOutput defines the output schema for the analyze_dependency tool.
type AnalyzeDependencyOutput struct {
	Stats        DependencyStats      `json:"stats"`
	Roots        []string             `json:"roots"`
	Leaves       []string             `json:"leaves"`
	CircularDeps [][]string           `json:"circularDeps"`
	Nodes        map[string]GraphNode `json:"nodes"`
}

// DependencyStats summarizes a dependency graph's shape.
type DependencyStats struct {
	NodeCount  int `json:"nodeCount"`
	EdgeCount  int `json:"edgeCount"`
	CycleCount int `json:"cycleCount"`
	RootCount  int `json:"rootCount"`
	LeafCount  int `json:"leafCount"`
}

// GraphNode is one file's entry in the dependency graph, trimmed to what
// callers of analyze_dependency need.
type GraphNode struct {
	Language     string   `json:"language"`
	ParseError   string   `json:"parseError,omitempty"`
	Dependencies []string `json:"dependencies"`
	Dependents   []string `json:"dependents"`
}

// FindSymbolInput defines the input schema for the find_symbol tool.
type FindSymbolInput struct {
	SymbolName  string   `json:"symbolName" jsonschema:"the symbol name to search for"`
	EntryPoints []string `json:"entryPoints" jsonschema:"files to start the import walk from, relative to the project root"`
}

// FindSymbolOutput defines the output schema for the find_symbol tool.
type FindSymbolOutput struct {
	Definitions     []SymbolLocation `json:"definitions"`
	CallSites       []CallLocation   `json:"callSites"`
	DefinitionCount int              `json:"definitionCount"`
	CallSiteCount   int              `json:"callSiteCount"`
}

// SymbolLocation is one definition site.
type SymbolLocation struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// CallLocation is one call-expression occurrence.
type CallLocation struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

// IndexCodebaseInput defines the input schema for the index_codebase tool.
type IndexCodebaseInput struct {
	Mode               string `json:"mode" jsonschema:"full or incremental"`
	IncludeUncommitted bool   `json:"includeUncommitted,omitempty" jsonschema:"whether to treat uncommitted working-tree changes as needing reindex"`
}

// IndexCodebaseOutput defines the output schema for the index_codebase tool.
// It reports the incremental planner's decision without executing it; a
// separate CLI path drives plan.Execute against the returned plan.
type IndexCodebaseOutput struct {
	Mode          string            `json:"mode"`
	IsFullReindex bool              `json:"isFullReindex"`
	Reason        string            `json:"reason"`
	Stats         PlanStats         `json:"stats"`
	FilesToIndex  []string          `json:"filesToIndex"`
	FilesToRemove []string          `json:"filesToRemove"`
	GitAvailable  bool              `json:"gitAvailable"`
	CurrentState  IndexCurrentState `json:"currentState"`
}

// PlanStats mirrors plan.Stats for the tool boundary.
type PlanStats struct {
	FilesToAdd       int `json:"filesToAdd"`
	FilesToUpdate    int `json:"filesToUpdate"`
	FilesToDelete    int `json:"filesToDelete"`
	FilesUnchanged   int `json:"filesUnchanged"`
	TotalFilesInRepo int `json:"totalFilesInRepo"`
}

// IndexCurrentState reports the persisted index-state.json the plan was
// computed against.
type IndexCurrentState struct {
	LastIndexedCommit string `json:"lastIndexedCommit"`
	Branch            string `json:"branch"`
	HasPriorState     bool   `json:"hasPriorState"`
}

// ManageTaskInput defines the input schema for the manage_task tool. Fields
// not used by a given action are ignored; see action documentation below.
type ManageTaskInput struct {
	Action   string            `json:"action" jsonschema:"one of: create_root, spawn_subtask, get, get_children, get_all, get_roots, get_tree, update_status, delete, cache_tool_output, get_tool_output, get_tool_output_timestamp, recover_state, reset_running"`
	ID       string            `json:"id,omitempty" jsonschema:"task id, required by most actions except create_root/get_all/get_roots/recover_state/reset_running"`
	ParentID string            `json:"parentId,omitempty" jsonschema:"parent task id, required by spawn_subtask"`
	Label    string            `json:"label,omitempty" jsonschema:"task label, required by create_root/spawn_subtask"`
	Status   string            `json:"status,omitempty" jsonschema:"new status, required by update_status: pending, running, completed, failed"`
	Context  map[string]string `json:"context,omitempty" jsonschema:"context patch merged into the task, used by update_status"`
	Cascade  bool              `json:"cascade,omitempty" jsonschema:"whether delete should remove the entire subtree"`
	Tool     string            `json:"tool,omitempty" jsonschema:"tool name, required by cache_tool_output/get_tool_output/get_tool_output_timestamp"`
	Output   string            `json:"output,omitempty" jsonschema:"tool output to cache, required by cache_tool_output"`
}

// ManageTaskOutput defines the output schema for the manage_task tool. Only
// the field(s) relevant to the invoked action are populated.
type ManageTaskOutput struct {
	Task       *TaskView     `json:"task,omitempty"`
	Tasks      []*TaskView   `json:"tasks,omitempty"`
	Tree       *TaskTreeView `json:"tree,omitempty"`
	Output     string        `json:"output,omitempty"`
	Found      bool          `json:"found,omitempty"`
	Timestamp  string        `json:"timestamp,omitempty"`
	ResetCount int           `json:"resetCount,omitempty"`
}

// TaskView is the tool-boundary projection of taskstore.Task.
type TaskView struct {
	ID        string            `json:"id"`
	ParentID  string            `json:"parentId,omitempty"`
	Label     string            `json:"label"`
	Status    string            `json:"status"`
	Context   map[string]string `json:"context,omitempty"`
	CreatedAt string            `json:"createdAt"`
	UpdatedAt string            `json:"updatedAt"`
}

// TaskTreeView is the tool-boundary projection of taskstore.TaskNode.
type TaskTreeView struct {
	Task     *TaskView       `json:"task"`
	Children []*TaskTreeView `json:"children,omitempty"`
}

// SummarizeCodebaseInput defines the input schema for the summarize_codebase tool.
type SummarizeCodebaseInput struct {
	Scope     []string `json:"scope,omitempty" jsonschema:"path prefixes to restrict the summary to; empty means the whole project"`
	Depth     int      `json:"depth,omitempty" jsonschema:"import-graph depth to analyze, default 50"`
	Focus     []string `json:"focus,omitempty" jsonschema:"symbol or path substrings to prioritize in the summary"`
	MaxTokens int      `json:"maxTokens,omitempty" jsonschema:"approximate upper bound on summary length, default 2000"`
}

// SummarizeCodebaseOutput defines the output schema for the summarize_codebase tool.
type SummarizeCodebaseOutput struct {
	Summary       string   `json:"summary"`
	TokenEstimate int      `json:"tokenEstimate"`
	Truncated     bool     `json:"truncated"`
	FilesCovered  int      `json:"filesCovered"`
	FocusHits     []string `json:"focusHits,omitempty"`
}
