package symflow

import (
	"path"
	"strings"
)

// resolveSpecifier resolves a raw import specifier seen in fromPath against
// the set of paths known to exist in the repository at head. Returns the
// resolved path and true, or "" and false when no candidate exists.
func resolveSpecifier(fromPath, specifier string, knownPaths map[string]struct{}) (string, bool) {
	if !strings.HasPrefix(specifier, ".") {
		return "", false
	}

	dir := path.Dir(fromPath)
	joined := path.Clean(path.Join(dir, specifier))

	if _, ok := knownPaths[joined]; ok {
		return joined, true
	}

	for _, ext := range candidateExtensions {
		candidate := joined + ext
		if _, ok := knownPaths[candidate]; ok {
			return candidate, true
		}
	}

	for _, idxFile := range indexFallbackFiles {
		candidate := path.Join(joined, idxFile)
		if _, ok := knownPaths[candidate]; ok {
			return candidate, true
		}
	}

	return "", false
}
