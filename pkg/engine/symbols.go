package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/newpr-stack/pkg/alg/lru"
	"github.com/Sumatoshi-tech/newpr-stack/pkg/gitlib"
	"github.com/Sumatoshi-tech/newpr-stack/pkg/symflow"
)

// blobCacheSize bounds the treeReader's blob content cache when
// Config.BlobCacheBudget is unset. A PR's touched paths rarely exceed a few
// hundred files, but renames and copies can point several paths at the same
// blob, so caching by hash avoids re-reading it.
const blobCacheSize = 4096

// averageBlobBytes approximates a touched source file's size, used to
// translate a humanize byte budget into an entry-count ceiling for the LRU.
const averageBlobBytes = 8 * 1024

// resolveBlobCacheEntries parses budget (humanize format, e.g. "32MiB") into
// the blob cache's entry-count ceiling. An empty budget keeps blobCacheSize.
func resolveBlobCacheEntries(budget string) (int, error) {
	if budget == "" {
		return blobCacheSize, nil
	}

	bytes, err := humanize.ParseBytes(budget)
	if err != nil {
		return 0, fmt.Errorf("parse blob cache budget %q: %w", budget, err)
	}

	entries := int(bytes / averageBlobBytes)
	if entries < 1 {
		entries = 1
	}

	return entries, nil
}

// treeReader adapts a single resolved tree to symflow.FileReader, so the
// analyzer can read blob content by path without knowing about commits. Blob
// contents are cached by hash, since a rename or copy can surface the same
// blob under multiple touched paths within one analysis pass. preloaded
// holds every touched blob fetched in one batched CGO call up front; cache
// absorbs anything preload missed (a path resolved after preload ran) plus
// repeat hits across renamed/copied paths sharing a hash.
type treeReader struct {
	repo      *gitlib.Repository
	tree      *gitlib.Tree
	cache     *lru.Cache[ObjectId, []byte]
	preloaded map[ObjectId]*gitlib.CachedBlob
}

func newTreeReader(repo *gitlib.Repository, tree *gitlib.Tree, maxEntries int, preloaded map[ObjectId]*gitlib.CachedBlob) *treeReader {
	return &treeReader{
		repo:      repo,
		tree:      tree,
		cache:     lru.New(lru.WithMaxEntries[ObjectId, []byte](maxEntries)),
		preloaded: preloaded,
	}
}

func (r *treeReader) ReadFile(_ context.Context, path string) ([]byte, error) {
	entry, err := r.tree.EntryByPath(path)
	if err != nil {
		return nil, fmt.Errorf("entry by path %q: %w", path, err)
	}

	hash := entry.Hash()

	if blob := r.preloaded[hash]; blob != nil {
		return blob.Data, nil
	}

	if contents, ok := r.cache.Get(hash); ok {
		return contents, nil
	}

	blob, err := r.repo.LookupBlob(context.Background(), hash)
	if err != nil {
		return nil, fmt.Errorf("lookup blob for %q: %w", path, err)
	}
	defer blob.Free()

	contents := blob.Contents()
	r.cache.Put(hash, contents)

	return contents, nil
}

// preloadBlobs batches every touched path's blob into a single CGO call via
// gitlib's CachedBlob batch processor, instead of one CGO round trip per
// file — the same batching cgo_bridge.go/batch.go provide for bulk history
// scans, applied here to one PR's touched-file set.
func preloadBlobs(repo *gitlib.Repository, tree *gitlib.Tree, paths []string) map[ObjectId]*gitlib.CachedBlob {
	hashes := make([]ObjectId, 0, len(paths))

	for _, p := range paths {
		entry, err := tree.EntryByPath(p)
		if err != nil {
			continue
		}

		hashes = append(hashes, entry.Hash())
	}

	if len(hashes) == 0 {
		return nil
	}

	processor := gitlib.NewBatchProcessor(repo, gitlib.DefaultBatchConfig())

	cached := processor.LoadBlobsAsCached(hashes)

	byHash := make(map[ObjectId]*gitlib.CachedBlob, len(hashes))

	for i, blob := range cached {
		if blob != nil {
			byHash[hashes[i]] = blob
		}
	}

	return byHash
}

// AnalyzeSymbols builds the symbol index over every path touched by deltas,
// reading content as it exists in the head tree. Paths deleted by head are
// skipped (there is nothing left to parse); they remain addressable through
// ownership via their Delta history alone.
func AnalyzeSymbols(ctx context.Context, c *Context, deltas []Delta, cfg Config) (SymbolIndex, []Warning, error) {
	headTree, err := c.Repo.LookupTree(c.HeadTree)
	if err != nil {
		return nil, nil, fmt.Errorf("analyze symbols: load head tree: %w", err)
	}
	defer headTree.Free()

	paths := touchedPathsPresentAtHead(deltas, headTree)

	analyzer, err := symflow.NewAnalyzer()
	if err != nil {
		return nil, nil, fmt.Errorf("analyze symbols: build analyzer: %w", err)
	}

	cacheEntries, err := resolveBlobCacheEntries(cfg.BlobCacheBudget)
	if err != nil {
		return nil, nil, fmt.Errorf("analyze symbols: %w", err)
	}

	preloaded := preloadBlobs(c.Repo, headTree, paths)

	reader := newTreeReader(c.Repo, headTree, cacheEntries, preloaded)

	known := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		known[p] = struct{}{}
	}

	idx, warnings, err := analyzer.Analyze(ctx, paths, known, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("analyze symbols: %w", err)
	}

	return idx, warnings, nil
}

func touchedPathsPresentAtHead(deltas []Delta, headTree *gitlib.Tree) []string {
	seen := make(map[string]struct{})

	for _, d := range deltas {
		for _, ch := range d.Changes {
			if ch.Status == Deleted {
				continue
			}

			if _, err := headTree.EntryByPath(ch.Path); err != nil {
				continue
			}

			seen[ch.Path] = struct{}{}
		}
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	return paths
}
