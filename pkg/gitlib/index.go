package gitlib

import (
	"fmt"
	"sort"
	"strings"

	git2go "github.com/libgit2/git2go/v34"
)

// Filemode constants re-exported for callers building Index entries without
// importing git2go directly.
const (
	FilemodeBlob       = git2go.FilemodeBlob
	FilemodeBlobExec   = git2go.FilemodeBlobExecutable
	FilemodeTree       = git2go.FilemodeTree
	FilemodeLink       = git2go.FilemodeLink
	FilemodeCommit     = git2go.FilemodeCommit
	FilemodeUnreadable = git2go.FilemodeUnreadable
)

// IndexEntry describes a single blob entry destined for a tree.
type IndexEntry struct {
	Hash Hash
	Mode git2go.Filemode
}

// Index is an in-memory, path-addressed staging area used to synthesize tree
// objects without touching the repository's on-disk index or working copy.
// Entries are keyed by full repo-relative path using '/' separators.
type Index struct {
	repo    *Repository
	entries map[string]IndexEntry
}

// NewIndex returns an empty Index bound to repo.
func NewIndex(repo *Repository) *Index {
	return &Index{repo: repo, entries: make(map[string]IndexEntry)}
}

// NewIndexFromTree returns an Index pre-populated with every blob entry in
// tree. A nil tree yields an empty Index (used for groups with no ancestors).
func NewIndexFromTree(repo *Repository, tree *Tree) (*Index, error) {
	idx := NewIndex(repo)
	if tree == nil {
		return idx, nil
	}

	err := walkTree(repo, tree, "", func(path string, entry *TreeEntry) error {
		if !entry.IsBlob() {
			return nil
		}

		idx.entries[path] = IndexEntry{Hash: entry.Hash(), Mode: entry.Filemode()}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("populate index from tree: %w", err)
	}

	return idx, nil
}

// Set stages path with the given blob hash and mode, overwriting any prior
// entry at that path.
func (idx *Index) Set(path string, hash Hash, mode git2go.Filemode) {
	idx.entries[path] = IndexEntry{Hash: hash, Mode: mode}
}

// Remove unstages path. A no-op if path is not present.
func (idx *Index) Remove(path string) {
	delete(idx.entries, path)
}

// Paths returns every staged path in lexicographic order.
func (idx *Index) Paths() []string {
	paths := make([]string, 0, len(idx.entries))
	for p := range idx.entries {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	return paths
}

// Get returns the entry staged at path, if any.
func (idx *Index) Get(path string) (IndexEntry, bool) {
	e, ok := idx.entries[path]

	return e, ok
}

// Clone returns a deep copy of the index.
func (idx *Index) Clone() *Index {
	clone := NewIndex(idx.repo)
	for k, v := range idx.entries {
		clone.entries[k] = v
	}

	return clone
}

// dirNode is an intermediate node in the path trie used to build nested trees
// bottom-up before writing them as git tree objects.
type dirNode struct {
	files map[string]IndexEntry
	dirs  map[string]*dirNode
}

func newDirNode() *dirNode {
	return &dirNode{files: make(map[string]IndexEntry), dirs: make(map[string]*dirNode)}
}

// WriteTree materializes the staged entries as a (possibly nested) git tree
// object and returns its hash. Directories are created implicitly from path
// components; an Index with zero entries yields the hash of an empty tree.
func (idx *Index) WriteTree() (Hash, error) {
	root := newDirNode()

	for path, entry := range idx.entries {
		insertEntry(root, strings.Split(path, "/"), entry)
	}

	oid, err := writeDirNode(idx.repo, root)
	if err != nil {
		return Hash{}, err
	}

	return HashFromOid(oid), nil
}

func insertEntry(node *dirNode, parts []string, entry IndexEntry) {
	if len(parts) == 1 {
		node.files[parts[0]] = entry

		return
	}

	child, ok := node.dirs[parts[0]]
	if !ok {
		child = newDirNode()
		node.dirs[parts[0]] = child
	}

	insertEntry(child, parts[1:], entry)
}

func writeDirNode(repo *Repository, node *dirNode) (*git2go.Oid, error) {
	builder, err := repo.repo.TreeBuilder()
	if err != nil {
		return nil, fmt.Errorf("create tree builder: %w", err)
	}
	defer builder.Free()

	for name, entry := range node.files {
		insertErr := builder.Insert(name, entry.Hash.ToOid(), entry.Mode)
		if insertErr != nil {
			return nil, fmt.Errorf("insert blob %s: %w", name, insertErr)
		}
	}

	dirNames := make([]string, 0, len(node.dirs))
	for name := range node.dirs {
		dirNames = append(dirNames, name)
	}

	sort.Strings(dirNames)

	for _, name := range dirNames {
		subOid, writeErr := writeDirNode(repo, node.dirs[name])
		if writeErr != nil {
			return nil, writeErr
		}

		insertErr := builder.Insert(name, subOid, git2go.FilemodeTree)
		if insertErr != nil {
			return nil, fmt.Errorf("insert subtree %s: %w", name, insertErr)
		}
	}

	oid, err := builder.Write()
	if err != nil {
		return nil, fmt.Errorf("write tree: %w", err)
	}

	return oid, nil
}
