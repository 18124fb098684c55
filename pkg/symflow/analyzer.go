package symflow

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
	"github.com/alexaandru/go-sitter-forest/javascript"
	"github.com/alexaandru/go-sitter-forest/tsx"
	"github.com/alexaandru/go-sitter-forest/typescript"
)

// FileReader reads the content of a path as it exists at the head commit
// under analysis. It decouples this package from any particular repository
// library.
type FileReader interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
}

// Analyzer parses source files with tree-sitter and builds a symbol Index.
// Safe for concurrent use; holds one parser pool per supported grammar.
type Analyzer struct {
	pools map[string]*sync.Pool
}

// NewAnalyzer builds parser pools for javascript, typescript, and tsx.
func NewAnalyzer() (*Analyzer, error) {
	langs := map[string]*sitter.Language{
		"javascript": sitter.NewLanguage(javascript.GetLanguage()),
		"typescript": sitter.NewLanguage(typescript.GetLanguage()),
		"tsx":        sitter.NewLanguage(tsx.GetLanguage()),
	}

	pools := make(map[string]*sync.Pool, len(langs))

	for name, lang := range langs {
		lang := lang

		pools[name] = &sync.Pool{
			New: func() any {
				p := sitter.NewParser()
				p.SetLanguage(lang)

				return p
			},
		}
	}

	return &Analyzer{pools: pools}, nil
}

// Analyze parses every path in paths whose extension is supported, resolves
// relative import specifiers against knownPaths, and returns the resulting
// Index together with any recoverable warnings (unparseable or unresolvable
// specifiers never abort the run).
func (a *Analyzer) Analyze(
	ctx context.Context, paths []string, knownPaths map[string]struct{}, reader FileReader,
) (Index, []Warning, error) {
	type result struct {
		path    string
		record  Record
		warning *Warning
	}

	jobs := make(chan string)
	results := make(chan result)

	workerCount := min(runtime.NumCPU(), max(1, len(paths)))

	var wg sync.WaitGroup

	for range workerCount {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for path := range jobs {
				rec, warn := a.analyzeOne(ctx, path, knownPaths, reader)
				results <- result{path: path, record: rec, warning: warn}
			}
		}()
	}

	go func() {
		defer close(jobs)

		for _, p := range paths {
			select {
			case jobs <- p:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	idx := make(Index, len(paths))

	var warnings []Warning

	for res := range results {
		idx[res.path] = res.record
		if res.warning != nil {
			warnings = append(warnings, *res.warning)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("analyze symbols: %w", err)
	}

	return idx, warnings, nil
}

func (a *Analyzer) analyzeOne(
	ctx context.Context, path string, knownPaths map[string]struct{}, reader FileReader,
) (Record, *Warning) {
	lang := languageOf(path)
	if lang == "" {
		// extension didn't place it; still worth a read if content-sniffing
		// turns up one of the three grammars this analyzer parses.
		content, err := reader.ReadFile(ctx, path)
		if err != nil {
			return Record{}, nil
		}

		lang = contentLanguageOf(path, content)
		if lang == "" {
			return Record{}, nil
		}

		return a.parseContent(ctx, path, lang, content, knownPaths)
	}

	content, err := reader.ReadFile(ctx, path)
	if err != nil {
		return Record{}, &Warning{Path: path, Reason: fmt.Sprintf("read failed: %v", err)}
	}

	return a.parseContent(ctx, path, lang, content, knownPaths)
}

func (a *Analyzer) parseContent(
	ctx context.Context, path, lang string, content []byte, knownPaths map[string]struct{},
) (Record, *Warning) {
	pool := a.pools[lang]

	parser, ok := pool.Get().(*sitter.Parser)
	if !ok {
		return Record{}, &Warning{Path: path, Reason: "parser pool type assertion failed"}
	}

	defer pool.Put(parser)

	tree, err := parser.ParseString(ctx, nil, content)
	if err != nil {
		return Record{}, &Warning{Path: path, Reason: fmt.Sprintf("parse error: %v", err)}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.IsNull() {
		return Record{}, &Warning{Path: path, Reason: "empty parse tree"}
	}

	raw := extractFile(root, content)

	return resolveRecord(path, raw, knownPaths), nil
}

func resolveRecord(fromPath string, raw extracted, knownPaths map[string]struct{}) Record {
	rec := Record{Exports: raw.exports}

	for _, imp := range raw.imports {
		resolved, ok := resolveSpecifier(fromPath, imp.specifier, knownPaths)
		if !ok {
			continue
		}

		rec.Imports = append(rec.Imports, ImportEdge{FromPath: resolved, Names: imp.names})
	}

	return rec
}
