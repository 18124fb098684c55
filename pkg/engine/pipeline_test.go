package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/newpr-stack/pkg/engine"
	"github.com/Sumatoshi-tech/newpr-stack/pkg/gitlib"
)

// stackTestRepo mirrors gitlib_test.go's own testRepo harness: a throwaway
// on-disk repository built from real git2go commits, so the pipeline is
// exercised against real tree/commit objects rather than mocks.
type stackTestRepo struct {
	t    *testing.T
	path string
	repo *git2go.Repository
}

func newStackTestRepo(t *testing.T) *stackTestRepo {
	t.Helper()

	dir := t.TempDir()

	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)

	t.Cleanup(repo.Free)

	return &stackTestRepo{t: t, path: dir, repo: repo}
}

func (r *stackTestRepo) writeFile(name, content string) {
	r.t.Helper()

	full := filepath.Join(r.path, name)
	require.NoError(r.t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(r.t, os.WriteFile(full, []byte(content), 0o644))
}

func (r *stackTestRepo) commit(when time.Time) gitlib.Hash {
	r.t.Helper()

	idx, err := r.repo.Index()
	require.NoError(r.t, err)
	defer idx.Free()

	require.NoError(r.t, idx.AddAll([]string{"*"}, git2go.IndexAddDefault, nil))
	require.NoError(r.t, idx.Write())

	treeID, err := idx.WriteTree()
	require.NoError(r.t, err)

	tree, err := r.repo.LookupTree(treeID)
	require.NoError(r.t, err)
	defer tree.Free()

	sig := &git2go.Signature{Name: "Author", Email: "author@example.com", When: when}

	var parents []*git2go.Commit

	if head, headErr := r.repo.Head(); headErr == nil {
		parentCommit, lookupErr := r.repo.LookupCommit(head.Target())
		require.NoError(r.t, lookupErr)

		parents = append(parents, parentCommit)

		head.Free()
	}

	oid, err := r.repo.CreateCommit("HEAD", sig, sig, "test commit", tree, parents...)
	require.NoError(r.t, err)

	for _, p := range parents {
		p.Free()
	}

	return gitlib.HashFromOid(oid)
}

// TestRunProducesVerifiedStack builds a three-commit range across two
// independent feature areas plus an unrelated docs change, runs the full
// pipeline with one hint group per feature area, and asserts it completes without error — meaning
// the Verifier's tree-identity check passed internally.
func TestRunProducesVerifiedStack(t *testing.T) {
	repo := newStackTestRepo(t)

	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	repo.writeFile("README.md", "project\n")
	baseSHA := repo.commit(base)

	repo.writeFile("src/auth.ts", "export function login() { return true }\n")
	repo.commit(base.Add(time.Hour))

	repo.writeFile("src/ui.tsx", "export function Page() { return null }\n")
	repo.commit(base.Add(2 * time.Hour))

	repo.writeFile("docs/changelog.md", "- added auth\n- added ui\n")
	headSHA := repo.commit(base.Add(3 * time.Hour))

	ctx := context.Background()

	c, err := engine.Capture(ctx, repo.path, baseSHA.String(), headSHA.String())
	require.NoError(t, err)

	t.Cleanup(c.Close)

	input := engine.RunInput{
		RepoPath: repo.path,
		BaseSHA:  baseSHA.String(),
		HeadSHA:  headSHA.String(),
		HintGroups: []engine.HintGroup{
			{ID: "auth", DisplayName: "Auth", Type: engine.GroupFeature, Files: []string{"src/auth.ts"}},
			{ID: "ui", DisplayName: "UI", Type: engine.GroupFeature, Files: []string{"src/ui.tsx"}},
		},
		PRAuthor: engine.Author{Name: "Author", Email: "author@example.com"},
		PRNumber: 42,
		PRTitle:  "stacked feature work",
	}

	result, err := engine.Run(ctx, c, input, engine.DefaultConfig(), engine.DefaultScoreWeights(), engine.Telemetry{})
	require.NoError(t, err)
	require.NotNil(t, result.Stack)

	assert.Equal(t, c.HeadTree, result.Stack.FinalTreeSHA)
	assert.NotEmpty(t, result.Stack.GroupCommits)

	for _, gc := range result.Stack.GroupCommits {
		resolved, resolveErr := c.Repo.ResolveBranch(gc.BranchName)
		require.NoError(t, resolveErr)
		assert.Equal(t, gc.CommitSHA, resolved)
	}

	safetyResolved, err := c.Repo.ResolveBranch(result.Stack.SourceCopyBranch)
	require.NoError(t, err)
	assert.Equal(t, headSHA, safetyResolved)
}
