package gitlib_test

import (
	"testing"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/newpr-stack/pkg/gitlib"
)

func TestIndex_WriteTree_EmptyIndexYieldsEmptyTree(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	defer tr.cleanup()

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	idx := gitlib.NewIndex(repo)

	hash, err := idx.WriteTree()
	require.NoError(t, err)

	tree, err := repo.LookupTree(hash)
	require.NoError(t, err)

	defer tree.Free()

	assert.Equal(t, uint64(0), tree.EntryCount())
}

func TestIndex_WriteTree_FlatAndNestedPaths(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("a.ts", "export const a = 1;\n")
	tr.createFile("src/auth.ts", "export const auth = true;\n")
	tr.createFile("src/ui/panel.tsx", "export const Panel = () => null;\n")
	headHash := tr.commit("initial")

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	headCommit, err := repo.LookupCommit(t.Context(), headHash)
	require.NoError(t, err)

	headTree, err := headCommit.Tree()
	require.NoError(t, err)

	defer headTree.Free()

	idx, err := gitlib.NewIndexFromTree(repo, headTree)
	require.NoError(t, err)

	rebuilt, err := idx.WriteTree()
	require.NoError(t, err)

	assert.Equal(t, headTree.Hash(), rebuilt, "rebuilding an index from a tree must reproduce the same tree hash")
}

func TestIndex_SetAndRemove(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	defer tr.cleanup()

	tr.createFile("keep.ts", "export const keep = 1;\n")
	tr.createFile("drop.ts", "export const drop = 1;\n")
	headHash := tr.commit("initial")

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	headCommit, err := repo.LookupCommit(t.Context(), headHash)
	require.NoError(t, err)

	headTree, err := headCommit.Tree()
	require.NoError(t, err)

	defer headTree.Free()

	idx, err := gitlib.NewIndexFromTree(repo, headTree)
	require.NoError(t, err)

	idx.Remove("drop.ts")

	hash, err := idx.WriteTree()
	require.NoError(t, err)

	tree, err := repo.LookupTree(hash)
	require.NoError(t, err)

	defer tree.Free()

	assert.Equal(t, uint64(1), tree.EntryCount())

	entry, err := tree.EntryByPath("keep.ts")
	require.NoError(t, err)
	assert.Equal(t, "keep.ts", entry.Name())

	_, ok := idx.Get("drop.ts")
	assert.False(t, ok)
}

func TestIndex_Clone_IsIndependent(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	defer tr.cleanup()

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	idx := gitlib.NewIndex(repo)
	idx.Set("a.ts", gitlib.NewHash("0102030405060708090a0b0c0d0e0f1011121314"), git2go.FilemodeBlob)

	clone := idx.Clone()
	clone.Remove("a.ts")

	_, origOK := idx.Get("a.ts")
	_, cloneOK := clone.Get("a.ts")

	assert.True(t, origOK)
	assert.False(t, cloneOK)
}
