package xref

import "github.com/codeindex/codeindex/internal/lang"

// callNodeTypes maps a language tag to the tree-sitter node type(s) that
// represent a call expression in that grammar.
var callNodeTypes = map[string][]string{
	"go":         {"call_expression"},
	"python":     {"call"},
	"javascript": {"call_expression"},
	"jsx":        {"call_expression"},
	"typescript": {"call_expression"},
	"tsx":        {"call_expression"},
	"rust":       {"call_expression"},
	"java":       {"method_invocation", "object_creation_expression"},
	"c":          {"call_expression"},
	"cpp":        {"call_expression"},
	"c_sharp":    {"invocation_expression"},
	"ruby":       {"call", "method_call"},
	"php":        {"function_call_expression", "member_call_expression", "scoped_call_expression"},
}

// calleeNameTypes are the leaf node types that can hold a callee's short
// name, used generically across languages: a call's callee sub-tree is
// walked and the last matching leaf wins, so `obj.method(...)` resolves to
// `method` rather than `obj`.
var calleeNameTypes = map[string]bool{
	"identifier":         true,
	"field_identifier":   true,
	"property_identifier": true,
	"type_identifier":    true,
	"name":               true,
	"constant":           true,
}

// builtins is a static noise filter: well-known identifiers too generic to
// be useful call targets. Names of length <= 2 are dropped by the caller
// regardless of this set.
var builtins = map[string]bool{
	"print": true, "println": true, "printf": true, "len": true, "append": true,
	"make": true, "new": true, "panic": true, "recover": true, "init": true,
	"main": true, "string": true, "int": true, "error": true, "self": true,
	"this": true, "super": true, "require": true, "import": true,
}

func isCallNode(language, nodeType string) bool {
	for _, t := range callNodeTypes[language] {
		if t == nodeType {
			return true
		}
	}
	return false
}

// extractCallee finds the callee short name of a call node: the last
// name-like leaf inside the call's first child (the callee expression,
// which in every supported grammar precedes the argument list).
func extractCallee(call *lang.Node, source []byte) string {
	if len(call.Children) == 0 {
		return ""
	}
	callee := call.Children[0]

	var last string
	callee.Walk(func(n *lang.Node) bool {
		if calleeNameTypes[n.Type] {
			last = n.Content(source)
		}
		return true
	})
	return last
}

func isNoise(name string) bool {
	if len(name) <= 2 {
		return true
	}
	return builtins[name]
}
