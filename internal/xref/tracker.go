package xref

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/codeindex/codeindex/internal/lang"
)

// Tracker accumulates definitions and call sites across files and merges
// them into a caller/callee graph on demand.
type Tracker struct {
	extractor *lang.Extractor
	defs      []*Definition
	byShort   map[string][]*Definition // short name -> definitions whose FQN ends with it
	calls     []CallSite
}

// NewTracker creates a Tracker backed by the default language registry.
func NewTracker() *Tracker {
	return &Tracker{
		extractor: lang.NewExtractor(),
		byShort:   make(map[string][]*Definition),
	}
}

// ProcessFile runs the definitions pass and the calls pass for one parsed
// file, accumulating state. Call Merge once after the last file to resolve
// CalledBy.
func (t *Tracker) ProcessFile(relPath string, tree *lang.Tree) {
	if tree == nil || tree.Root == nil {
		return
	}

	nodes := t.extractor.Extract(tree)

	definitionsByNode := make(map[*lang.Node]*Definition, len(nodes))
	for _, n := range nodes {
		fqn := fqnOf(n.Scope, n.Name)
		def := &Definition{
			FQN:       fqn,
			Name:      n.Name,
			Kind:      string(n.Kind),
			File:      relPath,
			StartLine: n.StartLine,
			EndLine:   n.EndLine,
			Scope:     n.Scope,
		}
		definitionsByNode[n.Node] = def
		t.defs = append(t.defs, def)
		if n.Name != "" {
			t.byShort[n.Name] = append(t.byShort[n.Name], def)
		}
	}

	// Definitions pass: collect calls textually nested in each definition's span.
	for node, def := range definitionsByNode {
		seen := make(map[string]bool)
		node.Walk(func(n *lang.Node) bool {
			if isCallNode(tree.Language, n.Type) {
				if name := extractCallee(n, tree.Source); name != "" && !isNoise(name) && !seen[name] {
					seen[name] = true
					def.Calls = append(def.Calls, name)
				}
			}
			return true
		})
	}

	// Calls pass: every call site in the file, with its enclosing definition
	// (innermost definition whose span contains the call) or "module".
	tree.Root.Walk(func(n *lang.Node) bool {
		if !isCallNode(tree.Language, n.Type) {
			return true
		}
		name := extractCallee(n, tree.Source)
		if name == "" || isNoise(name) {
			return true
		}
		line := int(n.StartPoint.Row) + 1
		t.calls = append(t.calls, CallSite{
			TargetName: name,
			File:       relPath,
			Line:       line,
			Enclosing:  enclosingFQN(nodes, line),
		})
		return true
	})
}

// enclosingFQN returns the FQN of the innermost definition containing line,
// or "module" if none does.
func enclosingFQN(nodes []lang.ParsedNode, line int) string {
	best := ""
	bestSpan := -1
	for _, n := range nodes {
		if line < n.StartLine || line > n.EndLine {
			continue
		}
		span := n.EndLine - n.StartLine
		if best == "" || span < bestSpan {
			best = fqnOf(n.Scope, n.Name)
			bestSpan = span
		}
	}
	if best == "" {
		return "module"
	}
	return best
}

// Merge resolves CalledBy for every definition from the accumulated call
// sites. A call's target short name matches any definition whose FQN ends
// with ".<target>" or whose own name equals target; ambiguity (a common
// short name matching multiple definitions) is tolerated by design.
func (t *Tracker) Merge() {
	for _, call := range t.calls {
		for _, def := range t.byShort[call.TargetName] {
			appendUnique(&def.CalledBy, call.Enclosing)
		}
	}
}

// Definitions returns every definition accumulated so far.
func (t *Tracker) Definitions() []*Definition {
	return t.defs
}

// graphDocument is the on-disk shape of xref-graph.json: definitions keyed
// by FQN, and call sites grouped by target short name.
type graphDocument struct {
	Definitions map[string]*Definition `json:"definitions"`
	CallSites   map[string][]CallSite  `json:"callSites"`
}

// Serialize writes the accumulated definitions and call sites to path as
// JSON, atomically. Call Merge first so CalledBy is resolved before saving.
func (t *Tracker) Serialize(path string) error {
	doc := graphDocument{
		Definitions: make(map[string]*Definition, len(t.defs)),
		CallSites:   make(map[string][]CallSite),
	}
	for _, def := range t.defs {
		doc.Definitions[def.FQN] = def
	}
	for _, call := range t.calls {
		doc.CallSites[call.TargetName] = append(doc.CallSites[call.TargetName], call)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal xref graph: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create xref graph directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write xref graph: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("save xref graph: %w", err)
	}
	return nil
}

// Deserialize loads a previously serialized graph from path, replacing the
// tracker's accumulated state. A missing file resets to empty rather than
// erroring, matching the fuzzy and file indices' recovery behavior.
func (t *Tracker) Deserialize(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		t.defs = nil
		t.calls = nil
		t.byShort = make(map[string][]*Definition)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read xref graph: %w", err)
	}

	var doc graphDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("unmarshal xref graph: %w", err)
	}

	t.defs = make([]*Definition, 0, len(doc.Definitions))
	t.byShort = make(map[string][]*Definition)
	for _, def := range doc.Definitions {
		t.defs = append(t.defs, def)
		if def.Name != "" {
			t.byShort[def.Name] = append(t.byShort[def.Name], def)
		}
	}

	t.calls = nil
	for _, calls := range doc.CallSites {
		t.calls = append(t.calls, calls...)
	}
	return nil
}

func fqnOf(scope []string, name string) string {
	if name == "" {
		return ""
	}
	if len(scope) == 0 {
		return name
	}
	return strings.Join(scope, ".") + "." + name
}

func appendUnique(list *[]string, value string) {
	for _, v := range *list {
		if v == value {
			return
		}
	}
	*list = append(*list, value)
}
