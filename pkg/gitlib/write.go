package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// CreateCommit writes a new commit object with the given tree and parent
// commits and returns its hash. The object is created directly in the object
// database; no ref is updated and no working-tree checkout occurs.
func (r *Repository) CreateCommit(tree Hash, parents []Hash, author, committer Signature, message string) (Hash, error) {
	treeObj, err := r.LookupTree(tree)
	if err != nil {
		return Hash{}, fmt.Errorf("lookup tree for commit: %w", err)
	}
	defer treeObj.Free()

	parentCommits := make([]*git2go.Commit, 0, len(parents))

	for _, p := range parents {
		pc, lookupErr := r.repo.LookupCommit(p.ToOid())
		if lookupErr != nil {
			return Hash{}, fmt.Errorf("lookup parent commit %s: %w", p, lookupErr)
		}
		defer pc.Free()

		parentCommits = append(parentCommits, pc)
	}

	gitAuthor := &git2go.Signature{Name: author.Name, Email: author.Email, When: author.When}
	gitCommitter := &git2go.Signature{Name: committer.Name, Email: committer.Email, When: committer.When}

	oid, err := r.repo.CreateCommit("", gitAuthor, gitCommitter, message, treeObj.Native(), parentCommits...)
	if err != nil {
		return Hash{}, fmt.Errorf("create commit: %w", err)
	}

	return HashFromOid(oid), nil
}

// CreateOrUpdateBranch points refs/heads/<name> at commit, creating the ref
// if absent and force-updating it otherwise (idempotent on a re-run against
// an unchanged commit).
func (r *Repository) CreateOrUpdateBranch(name string, commit Hash) error {
	commitObj, err := r.repo.LookupCommit(commit.ToOid())
	if err != nil {
		return fmt.Errorf("lookup commit for branch %s: %w", name, err)
	}
	defer commitObj.Free()

	existing, lookupErr := r.repo.LookupBranch(name, git2go.BranchLocal)
	if lookupErr == nil {
		defer existing.Free()
	}

	ref, createErr := r.repo.CreateBranch(name, commitObj, true)
	if createErr != nil {
		return fmt.Errorf("create branch %s: %w", name, createErr)
	}
	defer ref.Free()

	return nil
}

// ResolveBranch returns the commit hash that refs/heads/<name> points at.
func (r *Repository) ResolveBranch(name string) (Hash, error) {
	branch, err := r.repo.LookupBranch(name, git2go.BranchLocal)
	if err != nil {
		return Hash{}, fmt.Errorf("lookup branch %s: %w", name, err)
	}
	defer branch.Free()

	return HashFromOid(branch.Target()), nil
}

// ObjectExists reports whether an object with the given hash is present in
// the repository's object database.
func (r *Repository) ObjectExists(hash Hash) bool {
	odb, err := r.repo.Odb()
	if err != nil {
		return false
	}
	defer odb.Free()

	return odb.Exists(hash.ToOid())
}
