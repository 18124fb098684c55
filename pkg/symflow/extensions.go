package symflow

import (
	"path"
	"strings"

	"github.com/src-d/enry/v2"
)

// languageOf returns the tree-sitter grammar name for path's extension, or
// "" when the extension is not one this analyzer parses for symbol flow.
func languageOf(path string) string {
	switch {
	case strings.HasSuffix(path, ".d.ts"):
		return "typescript"
	case strings.HasSuffix(path, ".tsx"):
		return "tsx"
	case strings.HasSuffix(path, ".ts"):
		return "typescript"
	case strings.HasSuffix(path, ".jsx"), strings.HasSuffix(path, ".js"),
		strings.HasSuffix(path, ".mjs"), strings.HasSuffix(path, ".cjs"):
		return "javascript"
	default:
		return ""
	}
}

// enryLanguage maps enry's own language names to the grammar keys languageOf
// returns, restricted to the three grammars this analyzer actually parses.
var enryLanguage = map[string]string{
	"JavaScript": "javascript",
	"TypeScript": "typescript",
	"TSX":        "tsx",
}

// contentLanguageOf is the slow-path fallback for a file whose extension
// languageOf couldn't place: it content-sniffs with enry and maps the result
// back to a supported grammar, returning "" for anything outside the three
// this analyzer parses (including files enry can't classify at all).
func contentLanguageOf(name string, content []byte) string {
	return enryLanguage[enry.GetLanguage(path.Base(name), content)]
}

// candidateExtensions is tried, in order, when resolving a relative import
// specifier that names a directory or an extension-less file.
var candidateExtensions = []string{
	".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".d.ts", ".json", ".css",
}

// indexFallbackFiles is tried against a resolved directory, in order, after
// candidateExtensions fail to resolve a plain file.
var indexFallbackFiles = []string{
	"index.ts", "index.tsx", "index.js", "index.jsx",
	"index.mjs", "index.cjs", "index.d.ts", "index.json", "index.css",
}
