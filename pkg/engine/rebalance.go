package engine

import (
	"fmt"
	"sort"

	"github.com/Sumatoshi-tech/newpr-stack/pkg/alg/mapx"
)

// maxRebalanceIterations bounds the split/merge/co-change loop so a
// pathological input can never spin forever; in practice the three passes
// converge within a handful of iterations.
const maxRebalanceIterations = 50

// Rebalance reshapes groups by splitting oversize groups, merging empty or
// weakly-singleton groups, and folding in co-change signal, iterating the
// three passes until none of them changes anything or the iteration cap is
// reached.
func Rebalance(
	groups map[string]*Group, ownership OwnershipMap, deltas []Delta, idx SymbolIndex, cfg Config, weights ScoreWeights,
) (map[string]*Group, OwnershipMap, []Warning) {
	cc := computeCochange(deltas)
	totalCommits := len(deltas)

	var warnings []Warning

	for iter := 0; iter < maxRebalanceIterations; iter++ {
		splitWarnings, splitChanged := splitOversize(groups, ownership, idx, cfg)
		warnings = append(warnings, splitWarnings...)

		mergeWarnings, mergeChanged := mergeEmptyAndWeakSingletons(groups, ownership, idx)
		warnings = append(warnings, mergeWarnings...)

		cochangeWarnings, cochangeChanged := incorporateCochange(groups, ownership, idx, cc, weights, totalCommits, cfg)
		warnings = append(warnings, cochangeWarnings...)

		if !splitChanged && !mergeChanged && !cochangeChanged {
			break
		}
	}

	return groups, ownership, warnings
}

func splitOversize(groups map[string]*Group, ownership OwnershipMap, idx SymbolIndex, cfg Config) ([]Warning, bool) {
	var warnings []Warning

	changed := false

	for _, id := range sortedGroupIDs(groups) {
		g := groups[id]
		if len(g.Files) <= cfg.MaxGroupSize {
			continue
		}

		clusters := clusterByAffinity(g, idx, cfg.MaxGroupSize)
		if len(clusters) <= 1 {
			continue
		}

		delete(groups, id)

		for i, files := range clusters {
			subID := fmt.Sprintf("%s-split%d", id, i+1)
			sub := &Group{
				ID: subID, DisplayName: g.DisplayName, Type: g.Type, Description: g.Description,
				Files: make(map[string]struct{}, len(files)), Deps: copyDeps(g.Deps),
			}

			for _, f := range files {
				sub.Files[f] = struct{}{}
				ownership[f] = subID
			}

			groups[subID] = sub
		}

		warnings = append(warnings, Warning{
			Kind: WarnOversizeGroupSplit, Detail: fmt.Sprintf("%s split into %d subgroups", id, len(clusters)),
		})

		changed = true
	}

	return warnings, changed
}

// clusterByAffinity greedily buckets a group's files into chunks no larger
// than maxSize: files joined by import edges are kept adjacent, then ordered
// by directory and path, and the sorted list is cut into consecutive chunks.
// Co-change history is not considered. A simple, deterministic
// approximation of hierarchical clustering that never needs a distance
// matrix over the whole set to stay within a single file-count budget.
func clusterByAffinity(g *Group, idx SymbolIndex, maxSize int) [][]string {
	files := make([]string, 0, len(g.Files))
	for f := range g.Files {
		files = append(files, f)
	}

	sort.Strings(files)

	uf := newUnionFind(files)

	for i := range files {
		for j := i + 1; j < len(files); j++ {
			if len(importNamesBetween(idx, files[i], files[j])) > 0 {
				uf.union(files[i], files[j])
			}
		}
	}

	sort.Slice(files, func(i, j int) bool {
		ri, rj := uf.find(files[i]), uf.find(files[j])
		if ri != rj {
			return ri < rj
		}

		di, dj := dirOf(files[i]), dirOf(files[j])
		if di != dj {
			return di < dj
		}

		return files[i] < files[j]
	})

	var clusters [][]string

	for len(files) > 0 {
		n := min(maxSize, len(files))
		clusters = append(clusters, append([]string(nil), files[:n]...))
		files = files[n:]
	}

	return clusters
}

// unionFind groups files transitively connected by an import edge, so
// clusterByAffinity's sort keeps import-linked files adjacent before
// chunking by maxSize.
type unionFind struct {
	parent map[string]string
}

func newUnionFind(items []string) *unionFind {
	parent := make(map[string]string, len(items))
	for _, it := range items {
		parent[it] = it
	}

	return &unionFind{parent: parent}
}

func (u *unionFind) find(x string) string {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}

	return x
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}

func mergeEmptyAndWeakSingletons(groups map[string]*Group, ownership OwnershipMap, idx SymbolIndex) ([]Warning, bool) {
	var warnings []Warning

	changed := false

	for _, id := range sortedGroupIDs(groups) {
		g, ok := groups[id]
		if !ok {
			continue
		}

		if len(g.Files) == 0 {
			delete(groups, id)

			warnings = append(warnings, Warning{Kind: WarnEmptyGroupMerged, Detail: fmt.Sprintf("%s removed: no files", id)})
			changed = true

			continue
		}

		if len(g.Files) != 1 {
			continue
		}

		var only string
		for f := range g.Files {
			only = f
		}

		targetID, score := bestMergeTarget(only, id, groups, idx)
		if targetID == "" || score < 0.6 { //nolint:mnd // spec-defined singleton merge floor
			continue
		}

		groups[targetID].Files[only] = struct{}{}
		ownership[only] = targetID
		delete(groups, id)

		warnings = append(warnings, Warning{
			Kind: WarnEmptyGroupMerged, Path: only,
			Detail: fmt.Sprintf("singleton %s merged into %s (import score %.2f)", id, targetID, score),
		})

		changed = true
	}

	return warnings, changed
}

func bestMergeTarget(filePath, excludeID string, groups map[string]*Group, idx SymbolIndex) (string, float64) {
	bestID := ""
	bestScore := -1.0

	for _, id := range sortedGroupIDs(groups) {
		if id == excludeID {
			continue
		}

		var sum, nameBest float64

		for f := range groups[id].Files {
			names := importNamesBetween(idx, filePath, f)
			if len(names) > 0 {
				sum += capScore(float64(len(names)) / 3) //nolint:mnd // spec-defined cap divisor
			}

			if s := basenameSimilarity(filePath, f); s > nameBest {
				nameBest = s
			}
		}

		score := capScore(sum)
		if score == 0 {
			// no import edge anywhere in the candidate group: fall back to
			// filename similarity, capped well below a real import match.
			score = 0.5 * nameBest //nolint:mnd // filename evidence is weaker than a resolved import edge
		}

		if score > bestScore {
			bestScore = score
			bestID = id
		}
	}

	return bestID, bestScore
}

func incorporateCochange(
	groups map[string]*Group, ownership OwnershipMap, idx SymbolIndex,
	cc cochangeCounts, weights ScoreWeights, totalCommits int, cfg Config,
) ([]Warning, bool) {
	var warnings []Warning

	changed := false

	paths := make([]string, 0, len(ownership))
	for p := range ownership {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	for _, p := range paths {
		currentID, ok := ownership[p]
		if !ok {
			continue
		}

		currentGroup, ok := groups[currentID]
		if !ok {
			continue
		}

		currentScore := scorePathAgainstGroup(p, currentGroup, idx, cc, weights, totalCommits).Total

		bestID, bestScore, found := topGroup(p, groups, idx, cc, weights, totalCommits)
		if !found || bestID == currentID {
			continue
		}

		if !hasFloorCochange(p, groups[bestID], cc, cfg.CochangeFloor) {
			continue
		}

		if bestScore-currentScore >= cfg.MinAdvantage && bestScore >= cfg.ReassignThreshold {
			delete(currentGroup.Files, p)
			groups[bestID].Files[p] = struct{}{}
			ownership[p] = bestID

			warnings = append(warnings, LowConfidenceAssignment{
				Path: p, AssignedTo: bestID, RunnerUp: currentID, Confidence: bestScore,
			}.asWarning())

			changed = true
		}
	}

	return warnings, changed
}

func hasFloorCochange(p string, g *Group, cc cochangeCounts, floor int) bool {
	for f := range g.Files {
		if cc.of(p, f) >= floor {
			return true
		}
	}

	return false
}

func sortedGroupIDs(groups map[string]*Group) []string {
	return mapx.SortedKeys(groups)
}

func copyDeps(deps map[string]struct{}) map[string]struct{} {
	return mapx.Clone(deps)
}
