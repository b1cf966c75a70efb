// Package lang is the parser façade: it maps a file path to a language via
// extension, wraps tree-sitter for parsing, and extracts declared-construct
// nodes (functions, classes, types, ...) with their name, scope path, and
// docstring. Parse failures return a nil tree rather than an error so
// callers can fall back to naïve chunking.
package lang

// Kind is the normalized construct kind a parsed node maps to. A static
// per-language table collapses tree-sitter's language-specific node type
// strings (function_declaration, function_item, arrow_function, ...) into
// this fixed set.
type Kind string

const (
	KindFunction    Kind = "function"
	KindMethod      Kind = "method"
	KindClass       Kind = "class"
	KindInterface   Kind = "interface"
	KindType        Kind = "type"
	KindStruct      Kind = "struct"
	KindEnum        Kind = "enum"
	KindImpl        Kind = "impl"
	KindTrait       Kind = "trait"
	KindModule      Kind = "module"
	KindNamespace   Kind = "namespace"
	KindExport      Kind = "export"
	KindDecorated   Kind = "decorated"
	KindFileContext Kind = "file_context"
	KindBlock       Kind = "block"
)

// Point is a 0-indexed row/column position in the source.
type Point struct {
	Row    uint32
	Column uint32
}

// Node is a language-neutral AST node produced by converting a tree-sitter
// parse tree.
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	HasError   bool
	Children   []*Node
}

// Content returns the node's source text.
func (n *Node) Content(source []byte) string {
	if n.StartByte >= n.EndByte || int(n.EndByte) > len(source) {
		return ""
	}
	return string(source[n.StartByte:n.EndByte])
}

// FindChildByType returns the first direct child with the given type.
func (n *Node) FindChildByType(nodeType string) *Node {
	for _, c := range n.Children {
		if c.Type == nodeType {
			return c
		}
	}
	return nil
}

// Walk traverses the tree depth-first (pre-order), calling fn for each
// node. Returning false from fn stops the walk below that node.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Tree is a parsed file.
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}

// ParsedNode is a declared construct extracted from a Tree: a function,
// class, struct, and so on, per §4.1.
type ParsedNode struct {
	Node       *Node
	Kind       Kind
	Name       string   // may be empty for anonymous constructs
	Scope      []string // outer class/module names, outermost first
	Docstring  string
	StartLine  int // 1-indexed, inclusive
	EndLine    int // 1-indexed, inclusive
}
