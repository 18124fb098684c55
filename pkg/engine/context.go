package engine

import (
	"context"
	"fmt"

	"github.com/Sumatoshi-tech/newpr-stack/pkg/gitlib"
)

// Context is the output of Context Capture: a repository handle pinned to
// resolved base and head commits. Every later phase reads through it.
type Context struct {
	Repo     *gitlib.Repository
	RepoPath string
	BaseSHA  ObjectId
	HeadSHA  ObjectId
	BaseTree ObjectId
	HeadTree ObjectId
}

// Close releases the underlying repository handle.
func (c *Context) Close() {
	if c.Repo != nil {
		c.Repo.Free()
	}
}

// Capture opens the repository at repoPath and resolves baseSHA/headSHA to
// commit and tree objects. An object missing from the local object database
// triggers one fetch against the repository's configured remote before
// giving up; retries beyond that single fetch attempt are the caller's
// concern, not Capture's. Capture itself performs no writes.
func Capture(ctx context.Context, repoPath, baseSHA, headSHA string) (*Context, error) {
	repo, err := gitlib.OpenRepository(repoPath)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}

	var fetched bool

	baseHash := gitlib.NewHash(baseSHA)

	baseCommit, err := lookupOrFetch(ctx, repo, baseHash, &fetched)
	if err != nil {
		repo.Free()

		return nil, &MissingObjectError{SHA: baseSHA}
	}
	defer baseCommit.Free()

	headHash := gitlib.NewHash(headSHA)

	headCommit, err := lookupOrFetch(ctx, repo, headHash, &fetched)
	if err != nil {
		repo.Free()

		return nil, &MissingObjectError{SHA: headSHA}
	}
	defer headCommit.Free()

	return &Context{
		Repo:     repo,
		RepoPath: repoPath,
		BaseSHA:  baseHash,
		HeadSHA:  headHash,
		BaseTree: baseCommit.TreeHash(),
		HeadTree: headCommit.TreeHash(),
	}, nil
}

// lookupOrFetch resolves hash to a commit, attempting at most one fetch
// from the repository's configured remote across an entire Capture call
// (tracked via fetched) when the first lookup misses. A second miss after
// that fetch, or a fetch that itself fails (no remote configured, network
// error), is reported as the original lookup error.
func lookupOrFetch(ctx context.Context, repo *gitlib.Repository, hash gitlib.Hash, fetched *bool) (*gitlib.Commit, error) {
	commit, err := repo.LookupCommit(ctx, hash)
	if err == nil {
		return commit, nil
	}

	if *fetched {
		return nil, err
	}

	*fetched = true

	if fetchErr := repo.FetchDefaultRemote(); fetchErr != nil {
		return nil, err
	}

	return repo.LookupCommit(ctx, hash)
}
