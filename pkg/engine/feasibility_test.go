package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/newpr-stack/pkg/engine"
)

// TestCheckFeasibilityRenameCarriesHistory verifies a file renamed partway
// through the range still connects its pre-rename group to its post-rename
// group via a single path-order edge.
func TestCheckFeasibilityRenameCarriesHistory(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	deltas := []engine.Delta{
		{SHA: hashFromByte(1), Date: t0, Changes: []engine.FileChange{
			{Path: "old/widget.ts", Status: engine.Modified},
		}},
		{SHA: hashFromByte(2), Date: t0.Add(time.Hour), Changes: []engine.FileChange{
			{Path: "new/widget.ts", OldPath: "old/widget.ts", Status: engine.Renamed},
		}},
	}

	ownership := engine.OwnershipMap{"old/widget.ts": "group-a", "new/widget.ts": "group-b"}

	result := engine.CheckFeasibility(deltas, ownership, nil)

	require.Equal(t, []string{"group-a", "group-b"}, result.TopoOrder)
	require.Len(t, result.Edges, 1)
	assert.Equal(t, "group-a", result.Edges[0].From)
	assert.Equal(t, "group-b", result.Edges[0].To)
	assert.Equal(t, engine.PathOrder, result.Edges[0].Kind)
}

// TestCheckFeasibilityBreaksMutualCycle verifies that when a path-order
// edge and an opposing declared-dependency edge would form a cycle, the
// dependency edge is dropped and a valid total order over both groups
// remains.
func TestCheckFeasibilityBreaksMutualCycle(t *testing.T) {
	t0 := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	deltas := []engine.Delta{
		{SHA: hashFromByte(1), Date: t0, Changes: []engine.FileChange{
			{Path: "old.ts", Status: engine.Modified},
		}},
		{SHA: hashFromByte(2), Date: t0.Add(time.Hour), Changes: []engine.FileChange{
			{Path: "new.ts", OldPath: "old.ts", Status: engine.Renamed},
		}},
	}

	// old.ts is owned by group-1, its renamed identity new.ts by group-2,
	// so the rename itself produces a group-1 -> group-2 path-order edge.
	ownership := engine.OwnershipMap{"old.ts": "group-1", "new.ts": "group-2"}

	declaredDeps := []engine.ConstraintEdge{{From: "group-2", To: "group-1", Kind: engine.Dependency}}

	result := engine.CheckFeasibility(deltas, ownership, declaredDeps)

	assert.Len(t, result.TopoOrder, 2)
	assert.ElementsMatch(t, []string{"group-1", "group-2"}, result.TopoOrder)

	for _, dropped := range result.DroppedEdges {
		assert.Equal(t, engine.Dependency, dropped.Edge.Kind)
	}
}

// TestCheckFeasibilityDateTieBreak verifies groups with no connecting edge
// are ordered by earliest touching commit date, then by id.
func TestCheckFeasibilityDateTieBreak(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	deltas := []engine.Delta{
		{SHA: hashFromByte(1), Date: t0.Add(2 * time.Hour), Changes: []engine.FileChange{{Path: "z.ts", Status: engine.Added}}},
		{SHA: hashFromByte(2), Date: t0, Changes: []engine.FileChange{{Path: "a.ts", Status: engine.Added}}},
	}

	ownership := engine.OwnershipMap{"z.ts": "group-z", "a.ts": "group-a"}

	result := engine.CheckFeasibility(deltas, ownership, nil)

	require.Equal(t, []string{"group-a", "group-z"}, result.TopoOrder)
}
