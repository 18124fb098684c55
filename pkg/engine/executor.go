package engine

import (
	"context"
	"crypto/sha1" //nolint:gosec // branch-name disambiguator only, not a security boundary
	"encoding/hex"
	"fmt"
	"time"

	"github.com/Sumatoshi-tech/newpr-stack/pkg/gitlib"
)

// safetyBranch returns the ref name pinning the original head SHA for pr.
func safetyBranch(prNumber int) string {
	return fmt.Sprintf("newpr/stack-source/pr-%d", prNumber)
}

// groupBranch returns the ref name for the i-th group commit of pr, suffixed
// with a short hash of the commit it points to so re-running against an
// unchanged plan produces the identical ref name.
func groupBranch(prNumber, index int, commit ObjectId) string {
	return fmt.Sprintf("newpr-stack/pr-%d/%d-%s", prNumber, index, shortHash(commit))
}

func shortHash(id ObjectId) string {
	sum := sha1.Sum(id[:]) //nolint:gosec // disambiguator only
	const shortLen = 6

	return hex.EncodeToString(sum[:])[:shortLen]
}

// Execute materializes the plan's groups as a DAG of commit objects and
// branch refs, in topological order, and returns the resulting stack.
func Execute(ctx context.Context, c *Context, plan *DAGPlan, input RunInput) (*ExecutedStack, error) {
	safetyRef := safetyBranch(input.PRNumber)
	if err := c.Repo.CreateOrUpdateBranch(safetyRef, c.HeadSHA); err != nil {
		return nil, &RefWriteFailureError{Ref: safetyRef, Cause: err}
	}

	commitOf := make(map[string]ObjectId, len(plan.TopoOrder))

	var groupCommits []GroupCommit

	for i, id := range plan.TopoOrder {
		g := plan.Groups[id]

		parentSHAs := parentCommitSHAs(g, commitOf, c.BaseSHA)

		tree, err := materializeTree(ctx, c, parentSHAs, g.DeltasApplied)
		if err != nil {
			return nil, err
		}

		if tree != g.ExpectedTree {
			return nil, &TreeMismatchError{
				Group: id, Expected: g.ExpectedTree, Actual: tree,
				DiffSummary: fmt.Sprintf("materialized tree for group %s diverged from the analytically-expected tree", id),
			}
		}

		message := commitMessage(input.PRTitle, id)
		author := gitlib.Signature{Name: input.PRAuthor.Name, Email: input.PRAuthor.Email, When: g.CommitDate}

		commitSHA, err := c.Repo.CreateCommit(tree, parentSHAs, author, author, message)
		if err != nil {
			return nil, fmt.Errorf("create commit for group %s: %w", id, err)
		}

		branch := groupBranch(input.PRNumber, i, commitSHA)
		if err := c.Repo.CreateOrUpdateBranch(branch, commitSHA); err != nil {
			return nil, &RefWriteFailureError{Ref: branch, Cause: err}
		}

		commitOf[id] = commitSHA

		groupCommits = append(groupCommits, GroupCommit{
			GroupID: id, BranchName: branch, CommitSHA: commitSHA, ParentSHAs: parentSHAs,
		})
	}

	finalTree, err := finalizeStack(c, plan, commitOf, input, &groupCommits)
	if err != nil {
		return nil, err
	}

	return &ExecutedStack{GroupCommits: groupCommits, FinalTreeSHA: finalTree, SourceCopyBranch: safetyRef}, nil
}

// finalizeStack determines the DAG's leaves (groups that are nobody's
// parent), and when there is exactly one, its commit tree is final_tree_sha
// directly; when there are several, it synthesizes one additional merge
// commit whose tree is the union of every leaf's files and whose parents
// are all the leaves, and appends that commit to groupCommits.
func finalizeStack(
	c *Context, plan *DAGPlan, commitOf map[string]ObjectId, input RunInput, groupCommits *[]GroupCommit,
) (ObjectId, error) {
	leaves := leafGroups(plan)

	if len(leaves) == 1 {
		return plan.Groups[leaves[0]].ExpectedTree, nil
	}

	idx := gitlib.NewIndex(c.Repo)

	for _, id := range leaves {
		leafTree, err := c.Repo.LookupTree(plan.Groups[id].ExpectedTree)
		if err != nil {
			return ObjectId{}, fmt.Errorf("finalize stack: lookup leaf tree for %s: %w", id, err)
		}

		leafIdx, err := gitlib.NewIndexFromTree(c.Repo, leafTree)
		leafTree.Free()

		if err != nil {
			return ObjectId{}, err
		}

		for _, path := range leafIdx.Paths() {
			entry, _ := leafIdx.Get(path)
			idx.Set(path, entry.Hash, entry.Mode)
		}
	}

	mergedTree, err := idx.WriteTree()
	if err != nil {
		return ObjectId{}, fmt.Errorf("finalize stack: write merged tree: %w", err)
	}

	parentSHAs := make([]ObjectId, 0, len(leaves))
	for _, id := range leaves {
		parentSHAs = append(parentSHAs, commitOf[id])
	}

	author := gitlib.Signature{Name: input.PRAuthor.Name, Email: input.PRAuthor.Email, When: latestOf(plan, leaves)}
	message := fmt.Sprintf("%s\n\nStacked-Merge: join %d leaves", orTitle(input.PRTitle), len(leaves))

	mergeCommit, err := c.Repo.CreateCommit(mergedTree, parentSHAs, author, author, message)
	if err != nil {
		return ObjectId{}, fmt.Errorf("finalize stack: create merge commit: %w", err)
	}

	branch := groupBranch(input.PRNumber, len(*groupCommits), mergeCommit)
	if err := c.Repo.CreateOrUpdateBranch(branch, mergeCommit); err != nil {
		return ObjectId{}, &RefWriteFailureError{Ref: branch, Cause: err}
	}

	*groupCommits = append(*groupCommits, GroupCommit{
		GroupID: "merge", BranchName: branch, CommitSHA: mergeCommit, ParentSHAs: parentSHAs,
	})

	return mergedTree, nil
}

func orTitle(title string) string {
	if title == "" {
		return "stacked PR"
	}

	return title
}

func latestOf(plan *DAGPlan, ids []string) (latest time.Time) {
	for _, id := range ids {
		if d := plan.Groups[id].CommitDate; d.After(latest) {
			latest = d
		}
	}

	return latest
}

// leafGroups returns the ids of every group that is not listed as a parent
// of any other group, in topo order.
func leafGroups(plan *DAGPlan) []string {
	isParent := make(map[string]bool)

	for _, g := range plan.Groups {
		for _, p := range g.Parents {
			isParent[p] = true
		}
	}

	var leaves []string

	for _, id := range plan.TopoOrder {
		if !isParent[id] {
			leaves = append(leaves, id)
		}
	}

	return leaves
}

func parentCommitSHAs(g *PlannedGroup, commitOf map[string]ObjectId, baseSHA ObjectId) []ObjectId {
	if len(g.Parents) == 0 {
		return []ObjectId{baseSHA}
	}

	shas := make([]ObjectId, 0, len(g.Parents))
	for _, p := range g.Parents {
		shas = append(shas, commitOf[p])
	}

	return shas
}

// materializeTree independently derives a group's actual tree by reading
// back the real parent commit objects Execute just wrote (parentSHAs) and
// applying the group's own deltas on top, rather than recomputing the Plan
// Builder's analytic prediction a second time. Comparing this result against
// g.ExpectedTree in Execute is therefore a genuine correctness gate: a
// corrupted blob write, a stale cached tree, or any execution-time bug that
// diverges from the plan surfaces as TreeMismatch instead of trivially
// matching itself.
func materializeTree(ctx context.Context, c *Context, parentSHAs []ObjectId, changes []FileChange) (ObjectId, error) {
	idx := gitlib.NewIndex(c.Repo)

	for _, parentSHA := range parentSHAs {
		parentCommit, err := c.Repo.LookupCommit(ctx, parentSHA)
		if err != nil {
			return ObjectId{}, fmt.Errorf("materialize tree: lookup parent commit %s: %w", parentSHA, err)
		}

		parentTreeHash := parentCommit.TreeHash()
		parentCommit.Free()

		parentTree, err := c.Repo.LookupTree(parentTreeHash)
		if err != nil {
			return ObjectId{}, fmt.Errorf("materialize tree: lookup parent tree for %s: %w", parentSHA, err)
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

	applyChanges(idx, changes)

	tree, err := idx.WriteTree()
	if err != nil {
		return ObjectId{}, fmt.Errorf("materialize tree: write tree: %w", err)
	}

	return tree, nil
}

func commitMessage(prTitle, groupDisplayName string) string {
	title := prTitle
	if title == "" {
		title = groupDisplayName
	}

	return fmt.Sprintf("%s\n\nStacked-Group: %s", title, groupDisplayName)
}
