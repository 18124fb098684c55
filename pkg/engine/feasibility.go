package engine

import (
	"sort"
	"time"

	"github.com/Sumatoshi-tech/newpr-stack/pkg/alg/mapx"
	"github.com/Sumatoshi-tech/newpr-stack/pkg/toposort"
)

// FeasibilityResult is the outcome of check_feasibility: either a
// topological order and the retained edge set, or (never fatal by design)
// the same plus a record of every edge that had to be dropped to make the
// graph acyclic.
type FeasibilityResult struct {
	TopoOrder    []string
	Edges        []ConstraintEdge
	DroppedEdges []DroppedEdge
}

// CheckFeasibility builds path-order and dependency constraint edges from
// ownership and the original commit sequence, breaks any cycles by
// dropping the lowest-priority participating edges, and produces a stable
// topological order.
func CheckFeasibility(deltas []Delta, ownership OwnershipMap, declaredDeps []ConstraintEdge) FeasibilityResult {
	edges := buildPathOrderEdges(deltas, ownership)
	edges = append(edges, declaredDeps...)
	edges = dedupeEdges(edges)

	retained, dropped := breakCycles(edges)

	order := topoOrder(allGroupIDs(ownership), retained, earliestCommitDates(deltas, ownership))

	return FeasibilityResult{TopoOrder: order, Edges: retained, DroppedEdges: dropped}
}

// allGroupIDs returns the distinct set of group ids present in ownership.
func allGroupIDs(ownership OwnershipMap) []string {
	set := make(map[string]struct{})
	for _, g := range ownership {
		set[g] = struct{}{}
	}

	ids := make([]string, 0, len(set))
	for g := range set {
		ids = append(ids, g)
	}

	return ids
}

// buildPathOrderEdges collapses each touched path's per-commit group
// sequence into runs of identical group id, and when at least two distinct
// groups remain, emits an edge from the first to the last. A rename carries
// its prior hit history forward onto the new path, so a file's group
// history is tracked by logical identity across renames rather than by its
// current literal path alone.
func buildPathOrderEdges(deltas []Delta, ownership OwnershipMap) []ConstraintEdge {
	type hit struct {
		commitIndex int
		sha         ObjectId
		group       string
	}

	history := make(map[string][]hit)

	for idx, d := range deltas {
		for _, ch := range d.Changes {
			group, ok := ownership[ch.Path]
			if !ok {
				continue
			}

			if ch.Status == Renamed && ch.OldPath != "" {
				if prior, existed := history[ch.OldPath]; existed {
					history[ch.Path] = append(history[ch.Path], prior...)
					delete(history, ch.OldPath)
				}
			}

			history[ch.Path] = append(history[ch.Path], hit{commitIndex: idx, sha: d.SHA, group: group})
		}
	}

	var edges []ConstraintEdge

	for _, path := range mapx.SortedKeys(history) {
		hits := history[path]

		var collapsed []hit

		for _, h := range hits {
			if len(collapsed) > 0 && collapsed[len(collapsed)-1].group == h.group {
				continue
			}

			collapsed = append(collapsed, h)
		}

		if len(collapsed) < 2 { //nolint:mnd // need at least two distinct groups to form an edge
			continue
		}

		first, last := collapsed[0], collapsed[len(collapsed)-1]

		edges = append(edges, ConstraintEdge{
			From: first.group, To: last.group, Kind: PathOrder,
			Evidence: &PathOrderEvidence{
				Path: path, FromCommit: first.sha, ToCommit: last.sha,
				FromCommitIndex: first.commitIndex, ToCommitIndex: last.commitIndex,
			},
		})
	}

	return edges
}

// dedupeEdges keeps only the first occurrence of each (from, to) pair.
func dedupeEdges(edges []ConstraintEdge) []ConstraintEdge {
	seen := make(map[[2]string]struct{}, len(edges))

	out := make([]ConstraintEdge, 0, len(edges))

	for _, e := range edges {
		key := [2]string{e.From, e.To}
		if _, ok := seen[key]; ok {
			continue
		}

		seen[key] = struct{}{}

		out = append(out, e)
	}

	return out
}

// breakCycles runs the mutual-edge pre-pass followed by a priority-ordered
// incremental rebuild, returning the edges that remain and a record of
// every edge dropped along the way.
func breakCycles(edges []ConstraintEdge) ([]ConstraintEdge, []DroppedEdge) {
	var dropped []DroppedEdge

	afterMutualPass := make([]ConstraintEdge, 0, len(edges))
	indexOf := make(map[[2]string]int, len(edges))

	for i, e := range edges {
		indexOf[[2]string{e.From, e.To}] = i
	}

	skip := make(map[int]bool)

	for i, e := range edges {
		if skip[i] {
			continue
		}

		reverseIdx, hasReverse := indexOf[[2]string{e.To, e.From}]
		if !hasReverse || reverseIdx == i {
			continue
		}

		reverse := edges[reverseIdx]

		switch {
		case e.Kind == Dependency && reverse.Kind == PathOrder:
			skip[i] = true
			dropped = append(dropped, DroppedEdge{Edge: e, Reason: "mutual edge pre-pass: dependency dropped in favor of path-order"})
		case reverse.Kind == Dependency && e.Kind == PathOrder:
			skip[reverseIdx] = true
			dropped = append(dropped, DroppedEdge{Edge: reverse, Reason: "mutual edge pre-pass: dependency dropped in favor of path-order"})
		}
	}

	for i, e := range edges {
		if !skip[i] {
			afterMutualPass = append(afterMutualPass, e)
		}
	}

	sort.SliceStable(afterMutualPass, func(i, j int) bool {
		return afterMutualPass[i].Kind.Priority() < afterMutualPass[j].Kind.Priority()
	})

	var retained []ConstraintEdge

	g := toposort.NewGraph()

	for _, e := range afterMutualPass {
		g.AddNode(e.From)
		g.AddNode(e.To)
		g.AddEdge(e.From, e.To)

		if _, acyclic := g.Toposort(); acyclic {
			retained = append(retained, e)

			continue
		}

		g.RemoveEdge(e.From, e.To)

		dropped = append(dropped, DroppedEdge{Edge: e, Reason: "priority-ordered rebuild: edge would introduce a cycle"})
	}

	return retained, dropped
}

// earliestCommitDates computes, for every group, the earliest commit date
// at which any of its owned paths was touched.
func earliestCommitDates(deltas []Delta, ownership OwnershipMap) map[string]time.Time {
	earliest := make(map[string]time.Time)

	for _, d := range deltas {
		for _, ch := range d.Changes {
			group, ok := ownership[ch.Path]
			if !ok {
				continue
			}

			if cur, seen := earliest[group]; !seen || d.Date.Before(cur) {
				earliest[group] = d.Date
			}
		}
	}

	return earliest
}

// topoOrder builds a fresh toposort.Graph with group ids interned in
// (earliest_commit_date, group_id)-sorted order, so the graph's internal
// int-id tie-break during Kahn's algorithm becomes exactly the date-then-id
// tie-break the topological sort requires.
func topoOrder(groupIDs []string, edges []ConstraintEdge, earliest map[string]time.Time) []string {
	groups := append([]string(nil), groupIDs...)

	sort.Slice(groups, func(i, j int) bool {
		di, dj := earliest[groups[i]], earliest[groups[j]]
		if !di.Equal(dj) {
			return di.Before(dj)
		}

		return groups[i] < groups[j]
	})

	g := toposort.NewGraph()
	for _, id := range groups {
		g.AddNode(id)
	}

	for _, e := range edges {
		g.AddEdge(e.From, e.To)
	}

	order, _ := g.Toposort()

	return order
}
