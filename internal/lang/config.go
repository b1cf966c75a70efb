package lang

import sitter "github.com/smacker/go-tree-sitter"

// Config describes how to parse and classify one language's constructs.
type Config struct {
	Name       string
	Extensions []string

	// NodeKinds maps a tree-sitter node type name to its normalized Kind.
	// This is the "declared-construct set" for the language.
	NodeKinds map[string]Kind

	// NameNodeTypes are child node types (searched direct-children-first,
	// then one level into WrapperNodeTypes) that hold a construct's name.
	NameNodeTypes []string

	// WrapperNodeTypes are intermediate node types (e.g. Go's "type_spec",
	// JS's "variable_declarator") that wrap the real name identifier one
	// level down from the declaration node.
	WrapperNodeTypes []string

	// HeaderNodeKinds are node types considered part of the file-context
	// prefix: imports, package/module declarations, leading comments.
	HeaderNodeKinds map[string]bool

	// LineComment is this language's single-line comment marker, used for
	// docstring-by-adjacent-comment extraction. Empty if the language has
	// no line-comment syntax relevant here.
	LineComment string

	// DocstringIsFirstStatement is true for languages (Python) whose
	// docstring is the first string-literal statement of the body rather
	// than a comment block immediately above the declaration.
	DocstringIsFirstStatement bool
	StringStatementTypes      []string // node types that count as a bare string statement
	BodyFieldName             string   // field name of the node holding the body block
}

// Registry holds the full set of supported languages, keyed by name and by
// extension.
type Registry struct {
	configs     map[string]*Config
	extToLang   map[string]string
	tsLanguages map[string]*sitter.Language
}

// NewRegistry builds a registry with all languages in the spec's supported
// set: typescript, javascript, python, rust, go, java, c, cpp, c_sharp,
// ruby, php.
func NewRegistry() *Registry {
	r := &Registry{
		configs:     make(map[string]*Config),
		extToLang:   make(map[string]string),
		tsLanguages: make(map[string]*sitter.Language),
	}
	for _, reg := range allLanguages() {
		r.register(reg.config, reg.tsLang)
	}
	return r
}

func (r *Registry) register(cfg *Config, tsLang *sitter.Language) {
	r.configs[cfg.Name] = cfg
	r.tsLanguages[cfg.Name] = tsLang
	for _, ext := range cfg.Extensions {
		r.extToLang[ext] = cfg.Name
	}
}

// LanguageForPath returns the language tag for a path's extension, and
// whether it is supported.
func (r *Registry) LanguageForPath(path string) (string, bool) {
	ext := extOf(path)
	name, ok := r.extToLang[ext]
	return name, ok
}

// Config returns the Config for a language name.
func (r *Registry) Config(name string) (*Config, bool) {
	c, ok := r.configs[name]
	return c, ok
}

// TSLanguage returns the tree-sitter grammar for a language name.
func (r *Registry) TSLanguage(name string) (*sitter.Language, bool) {
	l, ok := r.tsLanguages[name]
	return l, ok
}

// SupportedLanguages lists every registered language name.
func (r *Registry) SupportedLanguages() []string {
	names := make([]string, 0, len(r.configs))
	for n := range r.configs {
		names = append(names, n)
	}
	return names
}

func extOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i:]
		}
		if path[i] == '/' || path[i] == '\\' {
			break
		}
	}
	return ""
}

var defaultRegistry = NewRegistry()

// Default returns the package-wide default registry.
func Default() *Registry { return defaultRegistry }
