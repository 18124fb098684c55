package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/newpr-stack/pkg/engine"
	"github.com/Sumatoshi-tech/newpr-stack/pkg/symflow"
)

func sampleDeltas() []engine.Delta {
	return []engine.Delta{
		{
			SHA: hashFromByte(1),
			Changes: []engine.FileChange{
				{Path: "src/feature/widget.ts", Status: engine.Added},
				{Path: "src/feature/widget_helpers.ts", Status: engine.Added},
			},
		},
		{
			SHA: hashFromByte(2),
			Changes: []engine.FileChange{
				{Path: "docs/readme.md", Status: engine.Added},
			},
		},
	}
}

func sampleSymbolIndex() engine.SymbolIndex {
	return symflow.Index{
		"src/feature/widget.ts": {
			Exports: []string{"Widget"},
			Imports: []symflow.ImportEdge{
				{FromPath: "src/feature/widget_helpers.ts", Names: []string{"helperFn"}},
			},
		},
		"src/feature/widget_helpers.ts": {
			Exports: []string{"helperFn"},
		},
		"docs/readme.md": {},
	}
}

// TestPartitionAssignsUnownedByAffinity verifies that an unowned path with a
// resolved import edge into a hint group is assigned to that group rather
// than spun off into its own singleton.
func TestPartitionAssignsUnownedByAffinity(t *testing.T) {
	deltas := sampleDeltas()
	idx := sampleSymbolIndex()

	hints := []engine.HintGroup{
		{ID: "widget-feature", DisplayName: "Widget feature", Type: engine.GroupFeature,
			Files: []string{"src/feature/widget.ts"}},
	}

	result := engine.Partition(deltas, idx, hints, engine.DefaultConfig(), engine.DefaultScoreWeights())

	assert.Equal(t, "widget-feature", result.Ownership["src/feature/widget_helpers.ts"])

	_, docsOwned := result.Ownership["docs/readme.md"]
	require.True(t, docsOwned, "every touched path must be owned")
	assert.NotEqual(t, "widget-feature", result.Ownership["docs/readme.md"])
}

// TestPartitionEveryTouchedPathOwned asserts the partition-is-a-total-
// function-over-touched-paths invariant holds with no hints at all.
func TestPartitionEveryTouchedPathOwned(t *testing.T) {
	deltas := sampleDeltas()
	idx := sampleSymbolIndex()

	result := engine.Partition(deltas, idx, nil, engine.DefaultConfig(), engine.DefaultScoreWeights())

	for _, d := range deltas {
		for _, ch := range d.Changes {
			group, ok := result.Ownership[ch.Path]
			require.True(t, ok, "path %s must be owned", ch.Path)
			assert.NotEmpty(t, group)
		}
	}
}

func hashFromByte(b byte) engine.ObjectId {
	var h engine.ObjectId
	h[0] = b

	return h
}
