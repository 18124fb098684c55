package gitlib_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/newpr-stack/pkg/gitlib"
)

func TestRepository_CreateCommit_SingleParent(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("a.ts", "export const a = 1;\n")
	baseHash := tr.commit("base")

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	baseCommit, err := repo.LookupCommit(t.Context(), baseHash)
	require.NoError(t, err)

	baseTree, err := baseCommit.Tree()
	require.NoError(t, err)

	defer baseTree.Free()

	idx, err := gitlib.NewIndexFromTree(repo, baseTree)
	require.NoError(t, err)

	treeHash, err := idx.WriteTree()
	require.NoError(t, err)

	sig := gitlib.Signature{Name: "Test User", Email: "test@example.com", When: time.Now()}

	commitHash, err := repo.CreateCommit(treeHash, []gitlib.Hash{baseHash}, sig, sig, "group commit")
	require.NoError(t, err)

	commit, err := repo.LookupCommit(t.Context(), commitHash)
	require.NoError(t, err)

	assert.Equal(t, 1, commit.NumParents())
	assert.Equal(t, baseHash, commit.ParentHash(0))
	assert.Equal(t, treeHash, mustTreeHash(t, commit))
}

func TestRepository_CreateCommit_MultiParent(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("a.ts", "export const a = 1;\n")
	baseHash := tr.commit("base")

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	baseCommit, err := repo.LookupCommit(t.Context(), baseHash)
	require.NoError(t, err)

	baseTree, err := baseCommit.Tree()
	require.NoError(t, err)

	defer baseTree.Free()

	treeHash := baseTree.Hash()
	sig := gitlib.Signature{Name: "Test User", Email: "test@example.com", When: time.Now()}

	leftHash, err := repo.CreateCommit(treeHash, []gitlib.Hash{baseHash}, sig, sig, "left")
	require.NoError(t, err)

	rightHash, err := repo.CreateCommit(treeHash, []gitlib.Hash{baseHash}, sig, sig, "right")
	require.NoError(t, err)

	mergeHash, err := repo.CreateCommit(treeHash, []gitlib.Hash{leftHash, rightHash}, sig, sig, "merge")
	require.NoError(t, err)

	merge, err := repo.LookupCommit(t.Context(), mergeHash)
	require.NoError(t, err)

	assert.Equal(t, 2, merge.NumParents())
	assert.Equal(t, leftHash, merge.ParentHash(0))
	assert.Equal(t, rightHash, merge.ParentHash(1))
}

func TestRepository_CreateOrUpdateBranch_IsIdempotent(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("a.ts", "export const a = 1;\n")
	baseHash := tr.commit("base")

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	err = repo.CreateOrUpdateBranch("newpr-stack/pr-42/0-abc123", baseHash)
	require.NoError(t, err)

	err = repo.CreateOrUpdateBranch("newpr-stack/pr-42/0-abc123", baseHash)
	require.NoError(t, err)

	resolved, err := repo.ResolveBranch("newpr-stack/pr-42/0-abc123")
	require.NoError(t, err)
	assert.Equal(t, baseHash, resolved)
}

func TestRepository_ObjectExists(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("a.ts", "export const a = 1;\n")
	baseHash := tr.commit("base")

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	assert.True(t, repo.ObjectExists(baseHash))
	assert.False(t, repo.ObjectExists(gitlib.NewHash("ffffffffffffffffffffffffffffffffffffff")))
}

func mustTreeHash(t *testing.T, c *gitlib.Commit) gitlib.Hash {
	t.Helper()

	tree, err := c.Tree()
	require.NoError(t, err)

	defer tree.Free()

	return tree.Hash()
}
