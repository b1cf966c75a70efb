package lang

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// Parser wraps tree-sitter for AST parsing against a Registry.
type Parser struct {
	parser   *sitter.Parser
	registry *Registry
}

// NewParser creates a Parser backed by the package-wide default registry.
func NewParser() *Parser {
	return &Parser{parser: sitter.NewParser(), registry: Default()}
}

// NewParserWithRegistry creates a Parser backed by a custom registry.
func NewParserWithRegistry(registry *Registry) *Parser {
	return &Parser{parser: sitter.NewParser(), registry: registry}
}

// Parse parses source bytes as the given language and returns the converted
// tree. Returns an error for an unsupported language or a nil tree-sitter
// result; callers in the chunker treat both as "fall back to block chunking"
// rather than aborting the file.
func (p *Parser) Parse(ctx context.Context, source []byte, language string) (*Tree, error) {
	tsLang, ok := p.registry.TSLanguage(language)
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", language)
	}

	p.parser.SetLanguage(tsLang)

	tsTree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse source: %w", err)
	}
	if tsTree == nil {
		return nil, fmt.Errorf("parse source: nil tree")
	}

	return &Tree{
		Root:     convertNode(tsTree.RootNode(), source),
		Source:   source,
		Language: language,
	}, nil
}

// Close releases the underlying tree-sitter parser.
func (p *Parser) Close() {
	if p.parser != nil {
		p.parser.Close()
	}
}

func convertNode(tsNode *sitter.Node, source []byte) *Node {
	if tsNode == nil {
		return nil
	}

	node := &Node{
		Type:      tsNode.Type(),
		StartByte: tsNode.StartByte(),
		EndByte:   tsNode.EndByte(),
		StartPoint: Point{
			Row:    tsNode.StartPoint().Row,
			Column: tsNode.StartPoint().Column,
		},
		EndPoint: Point{
			Row:    tsNode.EndPoint().Row,
			Column: tsNode.EndPoint().Column,
		},
		HasError: tsNode.HasError(),
		Children: make([]*Node, 0, int(tsNode.ChildCount())),
	}

	for i := 0; i < int(tsNode.ChildCount()); i++ {
		if child := tsNode.Child(i); child != nil {
			node.Children = append(node.Children, convertNode(child, source))
		}
	}

	return node
}

// FindChildrenByType returns every direct child with the given type.
func (n *Node) FindChildrenByType(nodeType string) []*Node {
	var result []*Node
	for _, c := range n.Children {
		if c.Type == nodeType {
			result = append(result, c)
		}
	}
	return result
}

// FindAllByType recursively collects every node (including n itself) whose
// type matches.
func (n *Node) FindAllByType(nodeType string) []*Node {
	var result []*Node
	if n.Type == nodeType {
		result = append(result, n)
	}
	for _, c := range n.Children {
		result = append(result, c.FindAllByType(nodeType)...)
	}
	return result
}
