package engine

import "fmt"

// WarningKind classifies a non-fatal condition surfaced during a run.
type WarningKind string

// Warning kind constants.
const (
	WarnParseIgnored        WarningKind = "parse_ignored"
	WarnLowConfidenceAssign WarningKind = "low_confidence_assignment"
	WarnCycleEdgeDropped    WarningKind = "cycle_edge_dropped"
	WarnEmptyGroupMerged    WarningKind = "empty_group_merged"
	WarnOversizeGroupSplit  WarningKind = "oversize_group_split"
	WarnBinaryFileSkipped   WarningKind = "binary_file_skipped"
	WarnSubmoduleChange     WarningKind = "submodule_change"
)

// Warning is a single recoverable condition encountered by a pipeline
// component. Warnings never abort a run; they are surfaced to the caller,
// and each phase's log record carries only the number it raised.
type Warning struct {
	Kind   WarningKind
	Path   string
	Detail string
}

func (w Warning) String() string {
	if w.Path == "" {
		return fmt.Sprintf("%s: %s", w.Kind, w.Detail)
	}

	return fmt.Sprintf("%s: %s: %s", w.Kind, w.Path, w.Detail)
}

// LowConfidenceAssignment documents a file moved away from the group that
// owned it (RunnerUp) to a better-scoring group (AssignedTo), with the
// winning score as Confidence.
type LowConfidenceAssignment struct {
	Path       string
	AssignedTo string
	RunnerUp   string
	Confidence float64
}

func (l LowConfidenceAssignment) asWarning() Warning {
	return Warning{
		Kind:   WarnLowConfidenceAssign,
		Path:   l.Path,
		Detail: fmt.Sprintf("assigned %s over %s at confidence %.2f", l.AssignedTo, l.RunnerUp, l.Confidence),
	}
}

// DroppedEdge documents a ConstraintEdge removed by the Feasibility & Cycle
// Resolver to break a cycle.
type DroppedEdge struct {
	Edge   ConstraintEdge
	Reason string
}

func (d DroppedEdge) asWarning() Warning {
	return Warning{
		Kind:   WarnCycleEdgeDropped,
		Detail: fmt.Sprintf("%s -> %s (%s): %s", d.Edge.From, d.Edge.To, d.Edge.Kind, d.Reason),
	}
}

// WarningsBag accumulates warnings across an entire pipeline run.
type WarningsBag struct {
	items []Warning
}

// Add appends a warning to the bag.
func (b *WarningsBag) Add(w Warning) {
	b.items = append(b.items, w)
}

// AddLowConfidence appends a LowConfidenceAssignment as a Warning.
func (b *WarningsBag) AddLowConfidence(l LowConfidenceAssignment) {
	b.Add(l.asWarning())
}

// AddDroppedEdge appends a DroppedEdge as a Warning.
func (b *WarningsBag) AddDroppedEdge(d DroppedEdge) {
	b.Add(d.asWarning())
}

// All returns every warning recorded so far, in insertion order.
func (b *WarningsBag) All() []Warning {
	return b.items
}

// CountByKind tallies warnings per kind, for metrics emission.
func (b *WarningsBag) CountByKind() map[WarningKind]int {
	counts := make(map[WarningKind]int)
	for _, w := range b.items {
		counts[w.Kind]++
	}

	return counts
}
