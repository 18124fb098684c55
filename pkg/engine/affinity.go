package engine

import (
	"path"
	"strings"

	"github.com/Sumatoshi-tech/newpr-stack/pkg/levenshtein"
)

// basenameSimilarity scores how alike two paths' file names are, on a 0..1
// scale, using edit distance normalized by the longer name's length. It
// breaks ties between equally-scored merge targets for a singleton group
// when no import edge exists between it and any candidate (e.g. a bare
// config or fixture file), since files like "widget.go" and "widget_test.go"
// or "user.ts" and "user.schema.ts" are often a single rename or split away
// from sharing one group even without a detected symbol edge.
func basenameSimilarity(a, b string) float64 {
	nameA, nameB := path.Base(a), path.Base(b)
	if nameA == nameB {
		return 1
	}

	longest := len(nameA)
	if len(nameB) > longest {
		longest = len(nameB)
	}

	if longest == 0 {
		return 0
	}

	var ctx levenshtein.Context

	dist := ctx.Distance(nameA, nameB)

	return capScore(1 - float64(dist)/float64(longest))
}

// cochangeCounts maps an unordered path pair (canonicalized lexicographically)
// to the number of Deltas in which both paths were touched together.
type cochangeCounts map[[2]string]int

func pairKey(a, b string) [2]string {
	if a < b {
		return [2]string{a, b}
	}

	return [2]string{b, a}
}

// computeCochange derives historical co-change counts from the per-commit
// file sets recorded in deltas.
func computeCochange(deltas []Delta) cochangeCounts {
	counts := make(cochangeCounts)

	for _, d := range deltas {
		paths := make([]string, 0, len(d.Changes))
		for _, ch := range d.Changes {
			paths = append(paths, ch.Path)
		}

		for i := range paths {
			for j := i + 1; j < len(paths); j++ {
				if paths[i] == paths[j] {
					continue
				}

				counts[pairKey(paths[i], paths[j])]++
			}
		}
	}

	return counts
}

func (c cochangeCounts) of(a, b string) int {
	return c[pairKey(a, b)]
}

// sharedDirPrefixLen returns the number of shared leading directory
// components between two slash-separated paths (the file name itself is
// never counted as a directory component).
func sharedDirPrefixLen(a, b string) int {
	dirsA := strings.Split(dirOf(a), "/")
	dirsB := strings.Split(dirOf(b), "/")

	shared := 0

	for i := 0; i < len(dirsA) && i < len(dirsB); i++ {
		if dirsA[i] == "" || dirsA[i] != dirsB[i] {
			break
		}

		shared++
	}

	return shared
}

func dirOf(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return ""
	}

	return path[:idx]
}

func topLevelDir(path string) string {
	idx := strings.Index(path, "/")
	if idx < 0 {
		return "root"
	}

	return path[:idx]
}

func capScore(v float64) float64 {
	if v > 1 {
		return 1
	}

	if v < 0 {
		return 0
	}

	return v
}

// importNamesBetween collects the names that flow between p and f via a
// resolved import edge in either direction; a name imported along both
// directions appears twice.
func importNamesBetween(idx SymbolIndex, p, f string) []string {
	var names []string

	if rec, ok := idx[p]; ok {
		for _, imp := range rec.Imports {
			if imp.FromPath == f {
				names = append(names, imp.Names...)
			}
		}
	}

	if rec, ok := idx[f]; ok {
		for _, imp := range rec.Imports {
			if imp.FromPath == p {
				names = append(names, imp.Names...)
			}
		}
	}

	return names
}

func exportOverlap(idx SymbolIndex, p, f string) int {
	pExp, fExp := idx[p].Exports, idx[f].Exports
	if len(pExp) == 0 || len(fExp) == 0 {
		return 0
	}

	set := make(map[string]struct{}, len(fExp))
	for _, n := range fExp {
		set[n] = struct{}{}
	}

	count := 0

	for _, n := range pExp {
		if _, ok := set[n]; ok {
			count++
		}
	}

	return count
}
