package lang

import "strings"

// Extractor walks a Tree and produces the declared constructs it contains,
// tracking the enclosing class/module scope for each one.
type Extractor struct {
	registry *Registry
}

// NewExtractor creates an Extractor backed by the package-wide default
// registry.
func NewExtractor() *Extractor {
	return &Extractor{registry: Default()}
}

// NewExtractorWithRegistry creates an Extractor backed by a custom registry.
func NewExtractorWithRegistry(registry *Registry) *Extractor {
	return &Extractor{registry: registry}
}

var containerKinds = map[Kind]bool{
	KindClass:     true,
	KindInterface: true,
	KindStruct:    true,
	KindEnum:      true,
	KindTrait:     true,
	KindImpl:      true,
	KindModule:    true,
	KindNamespace: true,
}

// Extract returns every declared construct in tree, outermost-first, with
// scope set to the enclosing container names (outermost first). Returns nil
// for a nil tree or an unregistered language rather than an error: parse
// failure recovery is the caller's job, not the extractor's.
func (e *Extractor) Extract(tree *Tree) []ParsedNode {
	if tree == nil || tree.Root == nil {
		return nil
	}
	cfg, ok := e.registry.Config(tree.Language)
	if !ok {
		return nil
	}

	var out []ParsedNode
	var walk func(n *Node, scope []string)
	walk = func(n *Node, scope []string) {
		childScope := scope

		if kind, ok := cfg.NodeKinds[n.Type]; ok {
			name := e.extractName(n, tree.Source, cfg)
			out = append(out, ParsedNode{
				Node:      n,
				Kind:      kind,
				Name:      name,
				Scope:     append([]string{}, scope...),
				Docstring: e.extractDocstring(n, tree.Source, cfg),
				StartLine: int(n.StartPoint.Row) + 1,
				EndLine:   int(n.EndPoint.Row) + 1,
			})
			if containerKinds[kind] && name != "" {
				childScope = append(append([]string{}, scope...), name)
			}
		} else if pn := e.extractSpecial(n, tree.Source, tree.Language); pn != nil {
			out = append(out, *pn)
		}

		for _, c := range n.Children {
			walk(c, childScope)
		}
	}
	walk(tree.Root, nil)

	return out
}

// extractName finds a construct's name among its direct children, or one
// level down inside a wrapper node (Go's type_spec, JS/TS's
// variable_declarator). This single generic lookup replaces a per-language
// switch because NodeKinds/NameNodeTypes/WrapperNodeTypes already carry the
// language-specific vocabulary.
func (e *Extractor) extractName(n *Node, source []byte, cfg *Config) string {
	for _, child := range n.Children {
		if containsString(cfg.NameNodeTypes, child.Type) {
			return child.Content(source)
		}
	}
	for _, child := range n.Children {
		if !containsString(cfg.WrapperNodeTypes, child.Type) {
			continue
		}
		for _, grandchild := range child.Children {
			if containsString(cfg.NameNodeTypes, grandchild.Type) {
				return grandchild.Content(source)
			}
		}
	}
	return ""
}

// extractSpecial handles constructs that don't map cleanly onto a single
// node type: JS/TS `const name = () => {}` and `const name = function(){}`.
func (e *Extractor) extractSpecial(n *Node, source []byte, language string) *ParsedNode {
	switch language {
	case "javascript", "jsx", "typescript", "tsx":
	default:
		return nil
	}
	if n.Type != "lexical_declaration" && n.Type != "variable_declaration" {
		return nil
	}
	for _, declarator := range n.FindChildrenByType("variable_declarator") {
		var name string
		var isFunction bool
		for _, gc := range declarator.Children {
			switch gc.Type {
			case "identifier":
				name = gc.Content(source)
			case "arrow_function", "function", "function_expression":
				isFunction = true
			}
		}
		if name != "" && isFunction {
			return &ParsedNode{
				Node:      n,
				Kind:      KindFunction,
				Name:      name,
				StartLine: int(n.StartPoint.Row) + 1,
				EndLine:   int(n.EndPoint.Row) + 1,
			}
		}
	}
	return nil
}

// extractDocstring extracts either the comment line immediately preceding n
// (Go, JS/TS, Java, Rust, C-family, PHP, Ruby) or the leading string-literal
// statement of its body (Python, per DocstringIsFirstStatement).
func (e *Extractor) extractDocstring(n *Node, source []byte, cfg *Config) string {
	if cfg.DocstringIsFirstStatement {
		return e.extractBodyDocstring(n, source, cfg)
	}
	return e.extractPrecedingComment(n, source, cfg)
}

func (e *Extractor) extractPrecedingComment(n *Node, source []byte, cfg *Config) string {
	if cfg.LineComment == "" || n.StartPoint.Row == 0 {
		return ""
	}

	lineStart := int(n.StartByte)
	for lineStart > 0 && source[lineStart-1] != '\n' {
		lineStart--
	}
	if lineStart <= 1 {
		return ""
	}

	prevLineEnd := lineStart - 1
	prevLineStart := prevLineEnd
	for prevLineStart > 0 && source[prevLineStart-1] != '\n' {
		prevLineStart--
	}

	prevLine := strings.TrimSpace(string(source[prevLineStart:prevLineEnd]))
	if strings.HasPrefix(prevLine, cfg.LineComment) {
		return strings.TrimSpace(strings.TrimPrefix(prevLine, cfg.LineComment))
	}
	return ""
}

func (e *Extractor) extractBodyDocstring(n *Node, source []byte, cfg *Config) string {
	body := n.FindChildByType(cfg.BodyFieldName)
	if body == nil || len(body.Children) == 0 {
		return ""
	}
	first := body.Children[0]
	if !containsString(cfg.StringStatementTypes, first.Type) {
		return ""
	}
	for _, c := range first.Children {
		if c.Type == "string" {
			return cleanDocstring(c.Content(source))
		}
	}
	return ""
}

func cleanDocstring(raw string) string {
	s := strings.TrimSpace(raw)
	for _, quote := range []string{`"""`, "'''", `"`, "'"} {
		if strings.HasPrefix(s, quote) && strings.HasSuffix(s, quote) && len(s) >= 2*len(quote) {
			s = s[len(quote) : len(s)-len(quote)]
			break
		}
	}
	return strings.TrimSpace(s)
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
