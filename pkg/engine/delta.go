package engine

import (
	"context"
	"fmt"
	"sort"

	git2go "github.com/libgit2/git2go/v34"

	"github.com/Sumatoshi-tech/newpr-stack/pkg/gitlib"
)

// maxFirstParentWalk bounds how far back ExtractDeltas will walk the
// first-parent chain while searching for baseSHA, guarding against a
// misconfigured base that is never reached (e.g. on a different branch).
const maxFirstParentWalk = 100000

// ExtractDeltas enumerates the per-commit changes on the first-parent path
// from ctx.BaseSHA (exclusive) to ctx.HeadSHA (inclusive), oldest first.
func ExtractDeltas(ctx context.Context, c *Context) ([]Delta, []Warning, error) {
	commits, err := firstParentChain(ctx, c.Repo, c.HeadSHA, c.BaseSHA)
	if err != nil {
		return nil, nil, err
	}

	deltas := make([]Delta, 0, len(commits))

	var warnings []Warning

	for _, commit := range commits {
		delta, warn, extractErr := extractOneDelta(ctx, c.Repo, commit)
		if extractErr != nil {
			commit.Free()

			return nil, nil, extractErr
		}

		deltas = append(deltas, delta)
		warnings = append(warnings, warn...)
		commit.Free()
	}

	return deltas, warnings, nil
}

// firstParentChain returns the commits strictly between base (exclusive)
// and head (inclusive) along head's first-parent ancestry, oldest first.
func firstParentChain(ctx context.Context, repo *gitlib.Repository, head, base ObjectId) ([]*gitlib.Commit, error) {
	var reversed []*gitlib.Commit

	cur, err := repo.LookupCommit(ctx, head)
	if err != nil {
		return nil, &MissingObjectError{SHA: head.String()}
	}

	for steps := 0; ; steps++ {
		if steps > maxFirstParentWalk {
			cur.Free()

			return nil, fmt.Errorf("first-parent walk exceeded %d steps without reaching base %s", maxFirstParentWalk, base)
		}

		if cur.Hash() == base {
			cur.Free()

			break
		}

		reversed = append(reversed, cur)

		if cur.NumParents() == 0 {
			break
		}

		next, parentErr := cur.Parent(0)
		if parentErr != nil {
			return nil, fmt.Errorf("walk first-parent chain: %w", parentErr)
		}

		cur = next
	}

	commits := make([]*gitlib.Commit, len(reversed))
	for i, commit := range reversed {
		commits[len(reversed)-1-i] = commit
	}

	return commits, nil
}

func extractOneDelta(ctx context.Context, repo *gitlib.Repository, commit *gitlib.Commit) (Delta, []Warning, error) {
	headTree, err := commit.Tree()
	if err != nil {
		return Delta{}, nil, fmt.Errorf("load commit tree: %w", err)
	}
	defer headTree.Free()

	var parentTree *gitlib.Tree

	if commit.NumParents() > 0 {
		parent, parentErr := commit.Parent(0)
		if parentErr != nil {
			return Delta{}, nil, fmt.Errorf("load parent commit: %w", parentErr)
		}
		defer parent.Free()

		parentTree, err = parent.Tree()
		if err != nil {
			return Delta{}, nil, fmt.Errorf("load parent tree: %w", err)
		}
		defer parentTree.Free()
	}

	diff, err := repo.DiffTreeToTree(parentTree, headTree)
	if err != nil {
		return Delta{}, nil, fmt.Errorf("diff commit against first parent: %w", err)
	}
	defer diff.Free()

	if err := diff.FindSimilar(); err != nil {
		return Delta{}, nil, fmt.Errorf("detect renames: %w", err)
	}

	numDeltas, err := diff.NumDeltas()
	if err != nil {
		return Delta{}, nil, fmt.Errorf("count deltas: %w", err)
	}

	changes := make([]FileChange, 0, numDeltas)

	var warnings []Warning

	for i := range numDeltas {
		delta, deltaErr := diff.Delta(i)
		if deltaErr != nil {
			continue
		}

		change, ok := fileChangeFromDelta(delta)
		if !ok {
			continue
		}

		switch {
		case delta.Flags&git2go.DiffFlagBinary != 0:
			warnings = append(warnings, Warning{
				Kind: WarnBinaryFileSkipped, Path: change.Path,
				Detail: "admitted with blob id but not parsed for symbols",
			})
		case delta.NewFile.Mode == git2go.FilemodeCommit || delta.OldFile.Mode == git2go.FilemodeCommit:
			warnings = append(warnings, Warning{
				Kind: WarnSubmoduleChange, Path: change.Path,
				Detail: "submodule pointer change admitted, contributes a path-order edge like any other path",
			})
		}

		changes = append(changes, change)
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })

	return Delta{
		SHA:     commit.Hash(),
		Date:    commit.Author().When,
		Changes: changes,
	}, warnings, nil
}

func fileChangeFromDelta(d gitlib.DiffDelta) (FileChange, bool) {
	switch d.Status {
	case gitlib.DeltaAdded:
		return FileChange{
			Path: d.NewFile.Path, Status: Added,
			NewBlobID: d.NewFile.Hash, NewMode: d.NewFile.Mode,
		}, true
	case gitlib.DeltaDeleted:
		return FileChange{
			Path: d.OldFile.Path, Status: Deleted,
			OldBlobID: d.OldFile.Hash,
		}, true
	case gitlib.DeltaModified, gitlib.DeltaTypeChange:
		return FileChange{
			Path: d.NewFile.Path, Status: Modified,
			NewBlobID: d.NewFile.Hash, NewMode: d.NewFile.Mode,
			OldBlobID: d.OldFile.Hash,
		}, true
	case gitlib.DeltaRenamed, gitlib.DeltaCopied:
		return FileChange{
			Path: d.NewFile.Path, OldPath: d.OldFile.Path, Status: Renamed,
			NewBlobID: d.NewFile.Hash, NewMode: d.NewFile.Mode,
			OldBlobID: d.OldFile.Hash,
		}, true
	default:
		return FileChange{}, false
	}
}
