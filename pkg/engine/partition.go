package engine

import (
	"fmt"
	"sort"

	"github.com/Sumatoshi-tech/newpr-stack/pkg/alg/mapx"
)

// touchedPaths returns every path mentioned by any Delta's changes, sorted.
func touchedPaths(deltas []Delta) []string {
	seen := make(map[string]struct{})

	for _, d := range deltas {
		for _, ch := range d.Changes {
			seen[ch.Path] = struct{}{}
		}
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	return paths
}

// GroupScore is the breakdown of a path's affinity to a candidate group.
type GroupScore struct {
	Import     float64
	Dir        float64
	Symbol     float64
	Cochange   float64
	LayerBonus float64
	Total      float64
}

func scorePathAgainstGroup(
	path string, g *Group, idx SymbolIndex, cc cochangeCounts, weights ScoreWeights, totalCommits int,
) GroupScore {
	if len(g.Files) == 0 {
		return GroupScore{}
	}

	var importSum, dirBest, symbolSum, cochangeSum float64

	for f := range g.Files {
		if f == path {
			continue
		}

		names := importNamesBetween(idx, path, f)
		if len(names) > 0 {
			importSum += capScore(float64(len(names)) / 3) //nolint:mnd // per-edge cap divisor, spec-defined
		}

		if d := float64(sharedDirPrefixLen(path, f)) / 4; d > dirBest { //nolint:mnd // spec-defined divisor
			dirBest = d
		}

		symbolSum += float64(exportOverlap(idx, path, f))

		cochangeSum += float64(cc.of(path, f))
	}

	sImport := capScore(importSum)
	sDir := capScore(dirBest)
	sSymbol := capScore(symbolSum / 5) //nolint:mnd // spec-defined divisor

	denom := 0.5 * float64(totalCommits) //nolint:mnd // spec-defined divisor
	if denom == 0 {
		denom = 1
	}

	sCochange := capScore(cochangeSum / denom)

	bonus := layerBonus(path, g, idx)

	total := weights.Import*sImport + weights.Dir*sDir + weights.Symbol*sSymbol + weights.Cochange*sCochange + bonus

	return GroupScore{
		Import: sImport, Dir: sDir, Symbol: sSymbol, Cochange: sCochange,
		LayerBonus: bonus, Total: total,
	}
}

func layerBonus(path string, g *Group, idx SymbolIndex) float64 {
	pathLayer := classifyLayer(path, idx[path])
	groupLayer := dominantLayer(g, idx)

	if pathLayer == LayerUnknown || groupLayer == LayerUnknown {
		return 0
	}

	pi, gi := layerIndex(pathLayer), layerIndex(groupLayer)
	switch {
	case pi == gi:
		return 0.30 //nolint:mnd // spec-defined bonus
	case abs(pi-gi) == 1:
		return 0.10 //nolint:mnd // spec-defined bonus
	default:
		return 0
	}
}

// dominantLayer returns the most common layer among a group's files,
// breaking ties by earliest position in layerOrder.
func dominantLayer(g *Group, idx SymbolIndex) Layer {
	counts := make(map[Layer]int)

	for f := range g.Files {
		counts[classifyLayer(f, idx[f])]++
	}

	best := LayerUnknown
	bestCount := -1

	for _, l := range layerOrder {
		if c := counts[l]; c > bestCount {
			bestCount = c
			best = l
		}
	}

	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}

	return v
}

// PartitionResult is the output of Partition: the refined groups, the total
// ownership map, and any warnings raised while refining hints.
type PartitionResult struct {
	Groups    map[string]*Group
	Ownership OwnershipMap
	Warnings  []Warning
}

// Partition assigns every path touched by deltas to exactly one group,
// starting from the caller-supplied hint groups and filling gaps with
// scored assignment, then validating every hint-seeded assignment against
// the same scoring function.
func Partition(deltas []Delta, idx SymbolIndex, hints []HintGroup, cfg Config, weights ScoreWeights) PartitionResult {
	groups := make(map[string]*Group, len(hints))
	ownership := make(OwnershipMap)

	for _, h := range hints {
		g := &Group{
			ID: h.ID, DisplayName: h.DisplayName, Type: h.Type, Description: h.Description,
			Files: make(map[string]struct{}, len(h.Files)),
			Deps:  make(map[string]struct{}, len(h.Deps)),
		}

		for _, f := range h.Files {
			g.Files[f] = struct{}{}
			ownership[f] = h.ID
		}

		for _, d := range h.Deps {
			g.Deps[d] = struct{}{}
		}

		groups[h.ID] = g
	}

	all := touchedPaths(deltas)
	cc := computeCochange(deltas)
	totalCommits := len(deltas)

	var warnings []Warning

	for _, p := range all {
		if _, owned := ownership[p]; owned {
			continue
		}

		assignUnowned(p, groups, ownership, idx, cc, weights, totalCommits, cfg)
	}

	hintWarnings := validateHintAssignments(hints, groups, ownership, idx, cc, weights, totalCommits, cfg)
	warnings = append(warnings, hintWarnings...)

	return PartitionResult{Groups: groups, Ownership: ownership, Warnings: warnings}
}

func assignUnowned(
	p string, groups map[string]*Group, ownership OwnershipMap,
	idx SymbolIndex, cc cochangeCounts, weights ScoreWeights, totalCommits int, cfg Config,
) {
	bestID, bestScore, found := topGroup(p, groups, idx, cc, weights, totalCommits)

	if found && bestScore >= cfg.ReassignThreshold {
		groups[bestID].Files[p] = struct{}{}
		ownership[p] = bestID

		return
	}

	id := freshSingletonID(topLevelDir(p), groups)
	groups[id] = &Group{
		ID: id, DisplayName: topLevelDir(p), Type: GroupChore,
		Files: map[string]struct{}{p: {}},
		Deps:  map[string]struct{}{},
	}
	ownership[p] = id
}

func freshSingletonID(base string, groups map[string]*Group) string {
	if _, exists := groups[base]; !exists {
		return base
	}

	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		if _, exists := groups[candidate]; !exists {
			return candidate
		}
	}
}

func validateHintAssignments(
	hints []HintGroup, groups map[string]*Group, ownership OwnershipMap,
	idx SymbolIndex, cc cochangeCounts, weights ScoreWeights, totalCommits int, cfg Config,
) []Warning {
	var warnings []Warning

	for _, h := range hints {
		for _, p := range h.Files {
			currentID, owned := ownership[p]
			if !owned || groups[currentID] == nil {
				continue
			}

			currentScore := scorePathAgainstGroup(p, groups[currentID], idx, cc, weights, totalCommits).Total

			bestID, bestScore, found := topGroup(p, groups, idx, cc, weights, totalCommits)
			if !found || bestID == currentID {
				continue
			}

			if bestScore-currentScore >= cfg.MinAdvantage && bestScore >= cfg.ReassignThreshold {
				delete(groups[currentID].Files, p)
				groups[bestID].Files[p] = struct{}{}
				ownership[p] = bestID

				warnings = append(warnings, LowConfidenceAssignment{
					Path: p, AssignedTo: bestID, RunnerUp: currentID, Confidence: bestScore,
				}.asWarning())
			}
		}
	}

	return warnings
}

// topGroup returns the id and score of the top-scoring group for p, with
// ties broken by group id lexicographic order.
func topGroup(
	p string, groups map[string]*Group, idx SymbolIndex, cc cochangeCounts, weights ScoreWeights, totalCommits int,
) (string, float64, bool) {
	ids := mapx.SortedKeys(groups)

	bestID := ""
	bestScore := -1.0
	found := false

	for _, id := range ids {
		score := scorePathAgainstGroup(p, groups[id], idx, cc, weights, totalCommits).Total
		if score > bestScore {
			bestScore = score
			bestID = id
			found = true
		}
	}

	return bestID, bestScore, found
}
