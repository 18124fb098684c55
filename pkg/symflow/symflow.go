// Package symflow parses JavaScript/TypeScript sources with tree-sitter to
// extract exported bindings and resolved import edges, building the
// file-to-file symbol flow graph used to score file-to-group affinity.
package symflow

import "sort"

// Record holds the exports and resolved imports for a single source file.
// A Record with no Exports and no Imports still means the file was visited;
// it is distinct from the file being absent from the Index entirely.
type Record struct {
	Exports []string
	Imports []ImportEdge
}

// ImportEdge is a resolved import: FromPath is the in-repo file that Names
// are imported from. Unresolved specifiers never produce an ImportEdge.
type ImportEdge struct {
	FromPath string
	Names    []string
}

// Index maps a repo-relative path to its parsed Record. Paths with an
// unsupported extension or a parse failure are present with a zero Record.
type Index map[string]Record

// SortedPaths returns every path in the index in lexicographic order.
func (idx Index) SortedPaths() []string {
	paths := make([]string, 0, len(idx))
	for p := range idx {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	return paths
}

// Warning records a recoverable problem encountered while building the index.
type Warning struct {
	Path   string
	Reason string
}
