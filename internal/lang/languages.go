package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

type registration struct {
	config *Config
	tsLang *sitter.Language
}

// allLanguages returns every language this parser façade supports. The
// node-kind tables collapse each grammar's own vocabulary into the 15-value
// normalized Kind set shared by the chunker and xref tracker.
func allLanguages() []registration {
	return []registration{
		{goConfig(), golang.GetLanguage()},
		{typeScriptConfig(), typescript.GetLanguage()},
		{tsxConfig(), tsx.GetLanguage()},
		{javaScriptConfig("javascript", []string{".js", ".mjs", ".cjs"}), javascript.GetLanguage()},
		{javaScriptConfig("jsx", []string{".jsx"}), javascript.GetLanguage()},
		{pythonConfig(), python.GetLanguage()},
		{rustConfig(), rust.GetLanguage()},
		{javaConfig(), java.GetLanguage()},
		{cConfig(), c.GetLanguage()},
		{cppConfig(), cpp.GetLanguage()},
		{csharpConfig(), csharp.GetLanguage()},
		{rubyConfig(), ruby.GetLanguage()},
		{phpConfig(), php.GetLanguage()},
	}
}

func goConfig() *Config {
	return &Config{
		Name:       "go",
		Extensions: []string{".go"},
		NodeKinds: map[string]Kind{
			"function_declaration": KindFunction,
			"method_declaration":   KindMethod,
			"type_declaration":     KindType,
		},
		NameNodeTypes:    []string{"identifier", "field_identifier", "type_identifier"},
		WrapperNodeTypes: []string{"type_spec", "const_spec", "var_spec"},
		HeaderNodeKinds: map[string]bool{
			"package_clause":   true,
			"import_declaration": true,
			"comment":          true,
		},
		LineComment: "//",
	}
}

func typeScriptConfig() *Config {
	return &Config{
		Name:       "typescript",
		Extensions: []string{".ts"},
		NodeKinds: map[string]Kind{
			"function_declaration":   KindFunction,
			"method_definition":      KindMethod,
			"class_declaration":      KindClass,
			"interface_declaration":  KindInterface,
			"type_alias_declaration": KindType,
			"internal_module":        KindNamespace,
			"export_statement":       KindExport,
			"enum_declaration":       KindEnum,
		},
		NameNodeTypes:    []string{"identifier", "type_identifier", "property_identifier"},
		WrapperNodeTypes: []string{"variable_declarator"},
		HeaderNodeKinds: map[string]bool{
			"import_statement": true,
			"comment":          true,
		},
		LineComment: "//",
	}
}

func tsxConfig() *Config {
	c := *typeScriptConfig()
	c.Name = "tsx"
	c.Extensions = []string{".tsx"}
	return &c
}

func javaScriptConfig(name string, exts []string) *Config {
	return &Config{
		Name:       name,
		Extensions: exts,
		NodeKinds: map[string]Kind{
			"function_declaration": KindFunction,
			"method_definition":    KindMethod,
			"class_declaration":    KindClass,
			"export_statement":     KindExport,
		},
		NameNodeTypes:    []string{"identifier", "property_identifier"},
		WrapperNodeTypes: []string{"variable_declarator"},
		HeaderNodeKinds: map[string]bool{
			"import_statement": true,
			"comment":          true,
		},
		LineComment: "//",
	}
}

func pythonConfig() *Config {
	return &Config{
		Name:       "python",
		Extensions: []string{".py", ".pyw"},
		NodeKinds: map[string]Kind{
			"function_definition":  KindFunction,
			"class_definition":     KindClass,
			"decorated_definition": KindDecorated,
		},
		NameNodeTypes: []string{"identifier"},
		HeaderNodeKinds: map[string]bool{
			"import_statement":      true,
			"import_from_statement": true,
			"comment":               true,
		},
		LineComment:               "#",
		DocstringIsFirstStatement: true,
		StringStatementTypes:      []string{"expression_statement"},
		BodyFieldName:             "body",
	}
}

func rustConfig() *Config {
	return &Config{
		Name:       "rust",
		Extensions: []string{".rs"},
		NodeKinds: map[string]Kind{
			"function_item": KindFunction,
			"struct_item":   KindStruct,
			"enum_item":     KindEnum,
			"trait_item":    KindTrait,
			"impl_item":     KindImpl,
			"mod_item":      KindModule,
			"type_item":     KindType,
		},
		NameNodeTypes: []string{"identifier", "type_identifier", "field_identifier"},
		HeaderNodeKinds: map[string]bool{
			"use_declaration": true,
			"line_comment":    true,
			"block_comment":   true,
		},
		LineComment: "//",
	}
}

func javaConfig() *Config {
	return &Config{
		Name:       "java",
		Extensions: []string{".java"},
		NodeKinds: map[string]Kind{
			"method_declaration":      KindMethod,
			"constructor_declaration": KindMethod,
			"class_declaration":       KindClass,
			"interface_declaration":   KindInterface,
			"enum_declaration":        KindEnum,
		},
		NameNodeTypes: []string{"identifier"},
		HeaderNodeKinds: map[string]bool{
			"package_declaration": true,
			"import_declaration":  true,
			"line_comment":        true,
			"block_comment":       true,
		},
		LineComment: "//",
	}
}

func cConfig() *Config {
	return &Config{
		Name:       "c",
		Extensions: []string{".c", ".h"},
		NodeKinds: map[string]Kind{
			"function_definition": KindFunction,
			"struct_specifier":    KindStruct,
			"enum_specifier":      KindEnum,
		},
		NameNodeTypes:    []string{"identifier", "type_identifier", "field_identifier"},
		WrapperNodeTypes: []string{"function_declarator"},
		HeaderNodeKinds: map[string]bool{
			"preproc_include": true,
			"comment":         true,
		},
		LineComment: "//",
	}
}

func cppConfig() *Config {
	return &Config{
		Name:       "cpp",
		Extensions: []string{".cpp", ".cc", ".cxx", ".hpp", ".hh"},
		NodeKinds: map[string]Kind{
			"function_definition": KindFunction,
			"class_specifier":     KindClass,
			"struct_specifier":    KindStruct,
			"enum_specifier":      KindEnum,
			"namespace_definition": KindNamespace,
		},
		NameNodeTypes:    []string{"identifier", "type_identifier", "field_identifier"},
		WrapperNodeTypes: []string{"function_declarator"},
		HeaderNodeKinds: map[string]bool{
			"preproc_include": true,
			"comment":         true,
		},
		LineComment: "//",
	}
}

func csharpConfig() *Config {
	return &Config{
		Name:       "c_sharp",
		Extensions: []string{".cs"},
		NodeKinds: map[string]Kind{
			"method_declaration":    KindMethod,
			"class_declaration":     KindClass,
			"interface_declaration": KindInterface,
			"struct_declaration":    KindStruct,
			"enum_declaration":      KindEnum,
			"namespace_declaration": KindNamespace,
		},
		NameNodeTypes: []string{"identifier"},
		HeaderNodeKinds: map[string]bool{
			"using_directive": true,
			"comment":         true,
		},
		LineComment: "//",
	}
}

func rubyConfig() *Config {
	return &Config{
		Name:       "ruby",
		Extensions: []string{".rb"},
		NodeKinds: map[string]Kind{
			"method":       KindMethod,
			"class":        KindClass,
			"module":       KindModule,
			"singleton_method": KindMethod,
		},
		NameNodeTypes: []string{"identifier", "constant"},
		HeaderNodeKinds: map[string]bool{
			"comment": true,
		},
		LineComment: "#",
	}
}

func phpConfig() *Config {
	return &Config{
		Name:       "php",
		Extensions: []string{".php"},
		NodeKinds: map[string]Kind{
			"function_definition":   KindFunction,
			"method_declaration":    KindMethod,
			"class_declaration":     KindClass,
			"interface_declaration": KindInterface,
			"trait_declaration":     KindTrait,
			"enum_declaration":      KindEnum,
			"namespace_definition":  KindNamespace,
		},
		NameNodeTypes: []string{"name"},
		HeaderNodeKinds: map[string]bool{
			"namespace_use_declaration": true,
			"comment":                   true,
		},
		LineComment: "//",
	}
}
