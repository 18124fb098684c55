// Package engine implements the stacking pipeline: it decomposes the diff
// between a base and head commit into a dependency-ordered DAG of smaller
// commits whose leaves jointly reproduce the original head tree bit for bit.
package engine

import (
	"time"

	git2go "github.com/libgit2/git2go/v34"

	"github.com/Sumatoshi-tech/newpr-stack/pkg/gitlib"
	"github.com/Sumatoshi-tech/newpr-stack/pkg/symflow"
)

// ObjectId is a git object hash. Two ObjectIds are equal iff their bytes match.
type ObjectId = gitlib.Hash

// ChangeStatus classifies a single file's change within a Delta.
type ChangeStatus int

const (
	// Added means the path did not exist in the commit's first parent.
	Added ChangeStatus = iota
	// Modified means the path's blob changed but the path persisted.
	Modified
	// Deleted means the path existed in the parent but not in the commit.
	Deleted
	// Renamed means the path was detected as a content-similar move from OldPath.
	Renamed
)

// FileChange is one file's transition within a single Delta.
type FileChange struct {
	Path      string
	OldPath   string // non-empty only when Status == Renamed
	Status    ChangeStatus
	NewBlobID ObjectId // zero for Deleted
	NewMode   git2go.Filemode
	OldBlobID ObjectId // zero for Added
}

// Delta is the change set of a single source commit, relative to its first
// parent (or relative to an empty tree for a root commit).
type Delta struct {
	SHA     ObjectId
	Date    time.Time
	Changes []FileChange // sorted lexicographically by Path
}

// Commit is an immutable, already-materialized commit object description.
type Commit struct {
	ID        ObjectId
	Parents   []ObjectId
	Tree      ObjectId
	Author    gitlib.Signature
	Committer gitlib.Signature
	Message   string
}

// SymbolIndex is the per-path export/import map built by the Symbol Flow
// Analyzer. It is a thin alias over symflow.Index so C4/C5 can consume it
// without importing symflow directly in every signature.
type SymbolIndex = symflow.Index

// GroupType classifies the intent of a Group for display and commit messages.
type GroupType string

// Group type constants.
const (
	GroupFeature  GroupType = "feature"
	GroupRefactor GroupType = "refactor"
	GroupBugfix   GroupType = "bugfix"
	GroupChore    GroupType = "chore"
	GroupDocs     GroupType = "docs"
	GroupTest     GroupType = "test"
	GroupConfig   GroupType = "config"
)

// Group is a cohort of changed files intended to become one stacked commit.
type Group struct {
	ID          string
	DisplayName string
	Type        GroupType
	Description string
	Files       map[string]struct{}
	Deps        map[string]struct{} // declared group-level dependencies, by id
}

// HintGroup is the caller-supplied starting grouping fed to the Partitioner.
type HintGroup struct {
	ID          string
	DisplayName string
	Type        GroupType
	Description string
	Files       []string
	Deps        []string
}

// OwnershipMap is the total function path -> group id over every path
// mentioned in any Delta. It always forms a partition of touched paths.
type OwnershipMap map[string]string

// EdgeKind distinguishes the provenance of a ConstraintEdge.
type EdgeKind int

const (
	// PathOrder edges are derived from observing a path edited under one
	// group and later under another across the original commit sequence.
	PathOrder EdgeKind = iota
	// Dependency edges come from caller-declared group dependencies.
	Dependency
)

// Priority returns the cycle-breaking priority of the edge kind; lower
// values are preferred (retained over) higher ones when a cycle forces a
// choice.
func (k EdgeKind) Priority() int {
	return int(k)
}

// String renders the edge kind for warnings and reports.
func (k EdgeKind) String() string {
	if k == PathOrder {
		return "path-order"
	}

	return "dependency"
}

// PathOrderEvidence documents why a path-order edge was emitted.
type PathOrderEvidence struct {
	Path            string
	FromCommit      ObjectId
	ToCommit        ObjectId
	FromCommitIndex int
	ToCommitIndex   int
}

// ConstraintEdge is a directed ordering requirement between two groups.
type ConstraintEdge struct {
	From     string
	To       string
	Kind     EdgeKind
	Evidence *PathOrderEvidence // nil for Dependency edges
}

// PlannedGroup is one node of the DAG Plan: a group augmented with its
// computed DAG position and the analytically-expected tree hash.
type PlannedGroup struct {
	ID            string
	Parents       []string
	Ancestors     map[string]struct{}
	ExpectedTree  ObjectId
	Files         map[string]struct{}
	DeltasApplied []FileChange
	// CommitDate is the maximum commit date among the Deltas that
	// contributed a change to this group, used as the executed commit's
	// author/committer date.
	CommitDate time.Time
}

// DAGPlan is the terminal artifact of the Plan Builder.
type DAGPlan struct {
	Groups    map[string]*PlannedGroup
	TopoOrder []string
}

// GroupCommit records the result of materializing one group.
type GroupCommit struct {
	GroupID    string
	BranchName string
	CommitSHA  ObjectId
	ParentSHAs []ObjectId
}

// ExecutedStack is the terminal artifact of the Executor.
type ExecutedStack struct {
	GroupCommits     []GroupCommit
	FinalTreeSHA     ObjectId
	SourceCopyBranch string
}

// Author identifies a commit author/committer pair for the run.
type Author struct {
	Name  string
	Email string
}
