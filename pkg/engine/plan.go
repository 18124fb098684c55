package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/Sumatoshi-tech/newpr-stack/pkg/gitlib"
)

// BuildPlan computes, for every group in topo order, its DAG parents
// (transitively reduced), ancestor closure, owned files and latest deltas,
// and an analytically-expected tree hash built purely from index operations
// over already-known ancestor trees — no commit is written here.
func BuildPlan(c *Context, deltas []Delta, ownership OwnershipMap, topoOrder []string, edges []ConstraintEdge) (*DAGPlan, error) {
	inbound := make(map[string][]string)
	for _, e := range edges {
		inbound[e.To] = append(inbound[e.To], e.From)
	}

	latestByGroup := latestDeltasByGroup(deltas, ownership)
	latestDateByGroup := latestCommitDateByGroup(deltas, ownership)

	plan := &DAGPlan{Groups: make(map[string]*PlannedGroup, len(topoOrder)), TopoOrder: topoOrder}

	for _, id := range topoOrder {
		parents := transitiveReduction(id, inbound, plan.Groups)

		ancestors := make(map[string]struct{})
		for _, p := range parents {
			ancestors[p] = struct{}{}

			for a := range plan.Groups[p].Ancestors {
				ancestors[a] = struct{}{}
			}
		}

		files := make(map[string]struct{})

		for path, g := range ownership {
			if g == id {
				files[path] = struct{}{}
			}
		}

		expectedTree, err := computeExpectedTree(c, plan.Groups, parents, files, latestByGroup[id])
		if err != nil {
			return nil, fmt.Errorf("build plan: group %s: %w", id, err)
		}

		plan.Groups[id] = &PlannedGroup{
			ID: id, Parents: parents, Ancestors: ancestors, ExpectedTree: expectedTree,
			Files: files, DeltasApplied: latestByGroup[id], CommitDate: latestDateByGroup[id],
		}
	}

	return plan, nil
}

// transitiveReduction returns inbound[id] with any predecessor removed that
// is already reachable through another retained predecessor's ancestor set,
// keeping the DAG's immediate-parent edges minimal.
func transitiveReduction(id string, inbound map[string][]string, built map[string]*PlannedGroup) []string {
	candidates := append([]string(nil), inbound[id]...)
	sort.Strings(candidates)

	keep := make([]string, 0, len(candidates))

	for _, cand := range candidates {
		redundant := false

		for _, other := range candidates {
			if other == cand {
				continue
			}

			if pg, ok := built[other]; ok {
				if _, isAncestor := pg.Ancestors[cand]; isAncestor {
					redundant = true

					break
				}
			}
		}

		if !redundant {
			keep = append(keep, cand)
		}
	}

	return keep
}

// latestDeltasByGroup assigns, for every owned path, only the latest
// (Delta-order) FileChange to that path's owning group, so a file touched
// across multiple commits contributes its final state exactly once.
func latestDeltasByGroup(deltas []Delta, ownership OwnershipMap) map[string][]FileChange {
	latest := make(map[string]FileChange)

	for _, d := range deltas {
		for _, ch := range d.Changes {
			latest[ch.Path] = ch
		}
	}

	byGroup := make(map[string][]FileChange)

	for path, ch := range latest {
		group, ok := ownership[path]
		if !ok {
			continue
		}

		byGroup[group] = append(byGroup[group], ch)
	}

	for group := range byGroup {
		sort.Slice(byGroup[group], func(i, j int) bool { return byGroup[group][i].Path < byGroup[group][j].Path })
	}

	return byGroup
}

// latestCommitDateByGroup returns, for every group, the maximum date among
// the Deltas that touched any path currently owned by that group.
func latestCommitDateByGroup(deltas []Delta, ownership OwnershipMap) map[string]time.Time {
	latest := make(map[string]time.Time)

	for _, d := range deltas {
		for _, ch := range d.Changes {
			group, ok := ownership[ch.Path]
			if !ok {
				continue
			}

			if cur, seen := latest[group]; !seen || d.Date.After(cur) {
				latest[group] = d.Date
			}
		}
	}

	return latest
}

// computeExpectedTree builds the merged ancestor index (or the base tree if
// parents is empty), applies this group's own deltas, and hashes the
// result. Because ownership is a partition, each ancestor's files are
// disjoint from every other ancestor's and from this group's own files, so
// union order across parents never matters.
func computeExpectedTree(
	c *Context, built map[string]*PlannedGroup, parents []string, files map[string]struct{}, changes []FileChange,
) (ObjectId, error) {
	var idx *gitlib.Index

	switch {
	case len(parents) == 0:
		baseTree, err := c.Repo.LookupTree(c.BaseTree)
		if err != nil {
			return ObjectId{}, fmt.Errorf("lookup base tree: %w", err)
		}
		defer baseTree.Free()

		idx, err = gitlib.NewIndexFromTree(c.Repo, baseTree)
		if err != nil {
			return ObjectId{}, err
		}
	default:
		idx = gitlib.NewIndex(c.Repo)

		for _, p := range parents {
			parentGroup := built[p]

			parentTree, err := c.Repo.LookupTree(parentGroup.ExpectedTree)
			if err != nil {
				return ObjectId{}, fmt.Errorf("lookup ancestor tree for %s: %w", p, err)
			}

			parentIdx, err := gitlib.NewIndexFromTree(c.Repo, parentTree)
			parentTree.Free()

			if err != nil {
				return ObjectId{}, err
			}

			for _, path := range parentIdx.Paths() {
				entry, _ := parentIdx.Get(path)
				idx.Set(path, entry.Hash, entry.Mode)
			}
		}
	}

	applyChanges(idx, changes)

	tree, err := idx.WriteTree()
	if err != nil {
		return ObjectId{}, fmt.Errorf("write expected tree: %w", err)
	}

	return tree, nil
}

func applyChanges(idx *gitlib.Index, changes []FileChange) {
	for _, ch := range changes {
		switch ch.Status {
		case Deleted:
			idx.Remove(ch.Path)
		case Renamed:
			if ch.OldPath != "" {
				idx.Remove(ch.OldPath)
			}

			idx.Set(ch.Path, ch.NewBlobID, ch.NewMode)
		default:
			idx.Set(ch.Path, ch.NewBlobID, ch.NewMode)
		}
	}
}
