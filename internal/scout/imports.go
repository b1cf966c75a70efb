package scout

import (
	"regexp"
	"strings"
)

// importPatterns maps a language tag to the regexes that pull an import
// target string out of its source syntax. Each pattern's first capture
// group is the raw import string as written.
var importPatterns = map[string][]*regexp.Regexp{
	"go": {
		regexp.MustCompile(`"([^"]+)"`),
	},
	"typescript": jsImportPatterns,
	"tsx":        jsImportPatterns,
	"javascript": jsImportPatterns,
	"jsx":        jsImportPatterns,
	"python": {
		regexp.MustCompile(`(?m)^\s*import\s+([\w.]+)`),
		regexp.MustCompile(`(?m)^\s*from\s+(\.*[\w.]*)\s+import`),
	},
	"rust": {
		regexp.MustCompile(`(?m)^\s*(?:pub\s+)?use\s+([\w:]+)`),
		regexp.MustCompile(`(?m)^\s*mod\s+(\w+)\s*;`),
	},
	"java": {
		regexp.MustCompile(`(?m)^\s*import\s+(?:static\s+)?([\w.]+)\s*;`),
	},
	"c_sharp": {
		regexp.MustCompile(`(?m)^\s*using\s+([\w.]+)\s*;`),
	},
	"c": {
		regexp.MustCompile(`(?m)^\s*#include\s+["<]([^">]+)[">]`),
	},
	"cpp": {
		regexp.MustCompile(`(?m)^\s*#include\s+["<]([^">]+)[">]`),
	},
	"ruby": {
		regexp.MustCompile(`(?m)^\s*require(?:_relative)?\s*\(?\s*['"]([^'"]+)['"]`),
	},
	"php": {
		regexp.MustCompile(`(?m)^\s*(?:require|require_once|include|include_once)\s*\(?\s*['"]([^'"]+)['"]`),
		regexp.MustCompile(`(?m)^\s*use\s+([\w\\]+)\s*;`),
	},
}

var jsImportPatterns = []*regexp.Regexp{
	regexp.MustCompile(`import\s+(?:[\s\S]*?)\s+from\s+['"]([^'"]+)['"]`),
	regexp.MustCompile(`import\s*\(\s*['"]([^'"]+)['"]\s*\)`),
	regexp.MustCompile(`export\s+(?:[\s\S]*?)\s+from\s+['"]([^'"]+)['"]`),
	regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`),
	regexp.MustCompile(`(?m)^\s*import\s+['"]([^'"]+)['"]`),
}

// extractImports pulls raw import target strings out of source, in the
// syntax used by language. Strings are deduplicated but otherwise
// unresolved; resolveImport classifies and resolves each one separately.
func extractImports(source []byte, language string) []string {
	patterns, ok := importPatterns[language]
	if !ok {
		return nil
	}

	text := string(source)
	seen := make(map[string]bool)
	var out []string
	for _, re := range patterns {
		for _, match := range re.FindAllStringSubmatch(text, -1) {
			raw := strings.TrimSpace(match[1])
			raw = normalizeImport(raw, language)
			if raw == "" || seen[raw] {
				continue
			}
			seen[raw] = true
			out = append(out, raw)
		}
	}
	return out
}

// normalizeImport converts language-specific relative notations into the
// "./" / "../" form resolveImport expects. Python's dotted relative imports
// (".foo.bar", "..foo") are the only case needing translation; everything
// else passes through unchanged.
func normalizeImport(raw string, language string) string {
	if language != "python" {
		return raw
	}
	if raw == "" || raw[0] != '.' {
		return raw
	}

	dots := 0
	for dots < len(raw) && raw[dots] == '.' {
		dots++
	}
	rest := strings.ReplaceAll(raw[dots:], ".", "/")

	prefix := strings.Repeat("../", dots-1)
	if prefix == "" {
		prefix = "./"
	}
	if rest == "" {
		return strings.TrimSuffix(prefix, "/")
	}
	return prefix + rest
}
