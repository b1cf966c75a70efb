package scout

import (
	"os"
	"path/filepath"
	"strings"
)

// classifyImport reports whether raw is relative (./ or ../), absolute (/),
// or package-like (everything else: bare module names, npm packages, Go
// import paths).
func classifyImport(raw string) string {
	switch {
	case strings.HasPrefix(raw, "./") || strings.HasPrefix(raw, "../"):
		return "relative"
	case strings.HasPrefix(raw, "/"):
		return "absolute"
	default:
		return "package"
	}
}

// resolveImport resolves a raw import string against the importing file's
// location. Resolution tries, in order: the exact path, the path plus each
// configured extension, and path/index plus each extension. The first path
// that exists on disk wins. Package-like imports resolve to nothing unless
// includeNodeModules is set, in which case they're tried under
// <root>/node_modules.
func resolveImport(raw, fromFile, root string, cfg Config) (string, bool) {
	var base string
	switch classifyImport(raw) {
	case "relative":
		base = filepath.Join(filepath.Dir(fromFile), raw)
	case "absolute":
		base = filepath.Join(root, raw)
	default:
		if !cfg.IncludeNodeModules {
			return "", false
		}
		base = filepath.Join(root, "node_modules", raw)
	}

	return firstExisting(base, cfg.Extensions)
}

func firstExisting(base string, extensions []string) (string, bool) {
	if isRegularFile(base) {
		return base, true
	}
	for _, ext := range extensions {
		candidate := base + ext
		if isRegularFile(candidate) {
			return candidate, true
		}
	}
	for _, ext := range extensions {
		candidate := filepath.Join(base, "index"+ext)
		if isRegularFile(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
