package symflow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/newpr-stack/pkg/symflow"
)

type fakeReader map[string]string

func (f fakeReader) ReadFile(_ context.Context, path string) ([]byte, error) {
	content, ok := f[path]
	if !ok {
		return nil, errors.New("not found")
	}

	return []byte(content), nil
}

func TestAnalyzer_ExportsAndResolvedImports(t *testing.T) {
	t.Parallel()

	files := fakeReader{
		"src/auth.ts": "export const auth = true;\nexport function login() {}\n",
		"src/login.ts": `import { auth, login } from "./auth";
export const handler = () => login();
`,
	}

	known := map[string]struct{}{"src/auth.ts": {}, "src/login.ts": {}}

	analyzer, err := symflow.NewAnalyzer()
	require.NoError(t, err)

	idx, warnings, err := analyzer.Analyze(
		t.Context(), []string{"src/auth.ts", "src/login.ts"}, known, files,
	)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	authRec := idx["src/auth.ts"]
	assert.ElementsMatch(t, []string{"auth", "login"}, authRec.Exports)

	loginRec := idx["src/login.ts"]
	require.Len(t, loginRec.Imports, 1)
	assert.Equal(t, "src/auth.ts", loginRec.Imports[0].FromPath)
	assert.ElementsMatch(t, []string{"auth", "login"}, loginRec.Imports[0].Names)
}

func TestAnalyzer_UnresolvableSpecifierIsDiscarded(t *testing.T) {
	t.Parallel()

	files := fakeReader{
		"src/a.ts": `import { missing } from "./does-not-exist";
export const a = 1;
`,
	}

	known := map[string]struct{}{"src/a.ts": {}}

	analyzer, err := symflow.NewAnalyzer()
	require.NoError(t, err)

	idx, _, err := analyzer.Analyze(t.Context(), []string{"src/a.ts"}, known, files)
	require.NoError(t, err)

	assert.Empty(t, idx["src/a.ts"].Imports)
	assert.Equal(t, []string{"a"}, idx["src/a.ts"].Exports)
}

func TestAnalyzer_UnknownExtensionYieldsEmptyRecordButStaysInIndex(t *testing.T) {
	t.Parallel()

	files := fakeReader{"README.md": "# hello"}

	analyzer, err := symflow.NewAnalyzer()
	require.NoError(t, err)

	idx, warnings, err := analyzer.Analyze(t.Context(), []string{"README.md"}, nil, files)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	rec, ok := idx["README.md"]
	assert.True(t, ok)
	assert.Empty(t, rec.Exports)
	assert.Empty(t, rec.Imports)
}

func TestAnalyzer_ReadFailureProducesWarning(t *testing.T) {
	t.Parallel()

	analyzer, err := symflow.NewAnalyzer()
	require.NoError(t, err)

	idx, warnings, err := analyzer.Analyze(t.Context(), []string{"src/gone.ts"}, nil, fakeReader{})
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, "src/gone.ts", warnings[0].Path)
	assert.Empty(t, idx["src/gone.ts"].Exports)
}

func TestAnalyzer_DefaultExportAndNamespaceImport(t *testing.T) {
	t.Parallel()

	files := fakeReader{
		"src/widget.tsx": "export default function Widget() { return null; }\n",
		"src/app.tsx": `import * as widget from "./widget";
export const App = () => widget;
`,
	}

	known := map[string]struct{}{"src/widget.tsx": {}, "src/app.tsx": {}}

	analyzer, err := symflow.NewAnalyzer()
	require.NoError(t, err)

	idx, _, err := analyzer.Analyze(t.Context(), []string{"src/widget.tsx", "src/app.tsx"}, known, files)
	require.NoError(t, err)

	assert.Equal(t, []string{"default"}, idx["src/widget.tsx"].Exports)

	require.Len(t, idx["src/app.tsx"].Imports, 1)
	assert.Equal(t, "src/widget.tsx", idx["src/app.tsx"].Imports[0].FromPath)
	assert.Equal(t, []string{"*"}, idx["src/app.tsx"].Imports[0].Names)
}
