package engine

import (
	"fmt"
	"sort"

	"github.com/Sumatoshi-tech/newpr-stack/pkg/gitlib"
)

// Verify confirms the executed stack's union-of-leaves tree reproduces the
// original head tree exactly, then runs the secondary ref/parent/topo-order
// consistency checks.
func Verify(c *Context, executed *ExecutedStack, plan *DAGPlan) error {
	if executed.FinalTreeSHA != c.HeadTree {
		diffPaths, diffErr := diffTreePaths(c.Repo, c.HeadTree, executed.FinalTreeSHA)
		if diffErr != nil {
			diffPaths = []string{fmt.Sprintf("(unable to compute diff: %v)", diffErr)}
		}

		return &VerifyMismatchError{Expected: c.HeadTree, Actual: executed.FinalTreeSHA, DifferingPaths: diffPaths}
	}

	for _, gc := range executed.GroupCommits {
		if _, err := c.Repo.ResolveBranch(gc.BranchName); err != nil {
			return fmt.Errorf("verify: branch %s does not resolve: %w", gc.BranchName, err)
		}

		for _, parentSHA := range gc.ParentSHAs {
			if !c.Repo.ObjectExists(parentSHA) {
				return fmt.Errorf("verify: commit %s references missing parent %s", gc.CommitSHA, parentSHA)
			}
		}
	}

	return verifyTopoConsistency(executed, plan)
}

// verifyTopoConsistency checks that every group commit's parent SHAs match
// the commits produced for its plan-declared parents.
func verifyTopoConsistency(executed *ExecutedStack, plan *DAGPlan) error {
	commitOf := make(map[string]ObjectId, len(executed.GroupCommits))
	for _, gc := range executed.GroupCommits {
		commitOf[gc.GroupID] = gc.CommitSHA
	}

	for _, gc := range executed.GroupCommits {
		pg, ok := plan.Groups[gc.GroupID]
		if !ok {
			continue // the synthetic merge commit has no plan entry
		}

		want := parentCommitSHAs(pg, commitOf, gc.ParentSHAs[0])
		if len(want) != len(gc.ParentSHAs) {
			return fmt.Errorf("verify: group %s has %d recorded parents, plan expects %d", gc.GroupID, len(gc.ParentSHAs), len(want))
		}

		for i := range want {
			if want[i] != gc.ParentSHAs[i] {
				return fmt.Errorf("verify: group %s parent %d is %s, plan expects %s", gc.GroupID, i, gc.ParentSHAs[i], want[i])
			}
		}
	}

	return nil
}

// diffTreePaths lists every path whose blob id or presence differs between
// two trees, for the VerifyMismatch diagnostic.
func diffTreePaths(repo *gitlib.Repository, expected, actual ObjectId) ([]string, error) {
	expectedTree, err := repo.LookupTree(expected)
	if err != nil {
		return nil, fmt.Errorf("lookup expected tree: %w", err)
	}
	defer expectedTree.Free()

	actualTree, err := repo.LookupTree(actual)
	if err != nil {
		return nil, fmt.Errorf("lookup actual tree: %w", err)
	}
	defer actualTree.Free()

	expectedIdx, err := gitlib.NewIndexFromTree(repo, expectedTree)
	if err != nil {
		return nil, err
	}

	actualIdx, err := gitlib.NewIndexFromTree(repo, actualTree)
	if err != nil {
		return nil, err
	}

	diffSet := make(map[string]struct{})

	for _, p := range expectedIdx.Paths() {
		wantEntry, _ := expectedIdx.Get(p)

		gotEntry, ok := actualIdx.Get(p)
		if !ok || gotEntry.Hash != wantEntry.Hash || gotEntry.Mode != wantEntry.Mode {
			diffSet[p] = struct{}{}
		}
	}

	for _, p := range actualIdx.Paths() {
		if _, ok := expectedIdx.Get(p); !ok {
			diffSet[p] = struct{}{}
		}
	}

	diffPaths := make([]string, 0, len(diffSet))
	for p := range diffSet {
		diffPaths = append(diffPaths, p)
	}

	sort.Strings(diffPaths)

	return diffPaths, nil
}
