package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/newpr-stack/pkg/engine"
)

// Output format flag values.
const (
	formatTable = "table"
	formatJSON  = "json"
)

// planReport is the machine-readable shape emitted for --format json,
// mirroring the human table one field at a time so neither renderer can
// silently drift from the other.
type planReport struct {
	Groups   []groupReport    `json:"groups"`
	Warnings []warningReport  `json:"warnings"`
	Stack    *stackReport     `json:"stack,omitempty"`
}

type groupReport struct {
	ID           string   `json:"id"`
	Parents      []string `json:"parents"`
	Files        int      `json:"files"`
	ExpectedTree string   `json:"expected_tree"`
}

type warningReport struct {
	Kind   string `json:"kind"`
	Path   string `json:"path,omitempty"`
	Detail string `json:"detail"`
}

type stackReport struct {
	FinalTreeSHA     string             `json:"final_tree_sha"`
	SourceCopyBranch string             `json:"source_copy_branch"`
	Commits          []commitReport     `json:"commits"`
}

type commitReport struct {
	GroupID    string   `json:"group_id"`
	BranchName string   `json:"branch_name"`
	CommitSHA  string   `json:"commit_sha"`
	ParentSHAs []string `json:"parent_shas"`
}

// buildPlanReport assembles the JSON/table-neutral report shape from a
// DAGPlan, its warnings, and (when the run was not a dry one) the executed
// stack.
func buildPlanReport(plan *engine.DAGPlan, warnings []engine.Warning, stack *engine.ExecutedStack) planReport {
	report := planReport{
		Groups:   make([]groupReport, 0, len(plan.TopoOrder)),
		Warnings: make([]warningReport, 0, len(warnings)),
	}

	for _, id := range plan.TopoOrder {
		g := plan.Groups[id]
		report.Groups = append(report.Groups, groupReport{
			ID:           g.ID,
			Parents:      g.Parents,
			Files:        len(g.Files),
			ExpectedTree: g.ExpectedTree.String(),
		})
	}

	for _, w := range warnings {
		report.Warnings = append(report.Warnings, warningReport{
			Kind:   string(w.Kind),
			Path:   w.Path,
			Detail: w.Detail,
		})
	}

	if stack != nil {
		sr := &stackReport{
			FinalTreeSHA:     stack.FinalTreeSHA.String(),
			SourceCopyBranch: stack.SourceCopyBranch,
			Commits:          make([]commitReport, 0, len(stack.GroupCommits)),
		}

		for _, gc := range stack.GroupCommits {
			parents := make([]string, 0, len(gc.ParentSHAs))
			for _, p := range gc.ParentSHAs {
				parents = append(parents, p.String())
			}

			sr.Commits = append(sr.Commits, commitReport{
				GroupID:    gc.GroupID,
				BranchName: gc.BranchName,
				CommitSHA:  gc.CommitSHA.String(),
				ParentSHAs: parents,
			})
		}

		report.Stack = sr
	}

	return report
}

// renderJSON writes the report as indented JSON, the machine-readable
// counterpart to renderTable.
func renderJSON(w io.Writer, report planReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	return nil
}

// renderTable writes the human-readable report: a DAG plan table, a
// warnings table grouped by kind, and (when present) an executed-commits
// table, following the teacher's StyleLight/no-separators convention.
func renderTable(w io.Writer, report planReport, noColor bool) {
	defer func(prev bool) { color.NoColor = prev }(color.NoColor)

	if noColor {
		color.NoColor = true
	}

	renderGroupsTable(w, report.Groups)

	if len(report.Warnings) > 0 {
		renderWarningsTable(w, report.Warnings)
	}

	if report.Stack != nil {
		renderStackTable(w, *report.Stack)
	}
}

func renderGroupsTable(w io.Writer, groups []groupReport) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Options.SeparateRows = false
	t.Style().Options.SeparateColumns = false
	t.Style().Options.DrawBorder = false
	t.Style().Options.SeparateHeader = false

	t.AppendHeader(table.Row{"Group", "Parents", "Files", "Expected Tree"})

	for _, g := range groups {
		t.AppendRow(table.Row{g.ID, joinOrNone(g.Parents), g.Files, shortSHA(g.ExpectedTree)})
	}

	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d groups", len(groups)), ""})

	fmt.Fprintln(w, color.CyanString("DAG plan"))
	t.Render()
}

func renderWarningsTable(w io.Writer, warnings []warningReport) {
	counts := make(map[string]int)
	for _, wr := range warnings {
		counts[wr.Kind]++
	}

	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}

	sort.Strings(kinds)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Options.SeparateRows = false
	t.Style().Options.SeparateColumns = false
	t.Style().Options.DrawBorder = false
	t.Style().Options.SeparateHeader = false

	t.AppendHeader(table.Row{"Kind", "Path", "Detail"})

	for _, kind := range kinds {
		for _, wr := range warnings {
			if wr.Kind == kind {
				t.AppendRow(table.Row{colorizeWarningKind(wr.Kind), wr.Path, wr.Detail})
			}
		}
	}

	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d warnings", len(warnings))})

	fmt.Fprintln(w, color.YellowString("Warnings"))
	t.Render()
}

func renderStackTable(w io.Writer, stack stackReport) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Options.SeparateRows = false
	t.Style().Options.SeparateColumns = false
	t.Style().Options.DrawBorder = false
	t.Style().Options.SeparateHeader = false

	t.AppendHeader(table.Row{"Group", "Branch", "Commit", "Parents"})

	for _, c := range stack.Commits {
		parents := make([]string, 0, len(c.ParentSHAs))
		for _, p := range c.ParentSHAs {
			parents = append(parents, shortSHA(p))
		}

		t.AppendRow(table.Row{c.GroupID, c.BranchName, shortSHA(c.CommitSHA), joinOrNone(parents)})
	}

	fmt.Fprintln(w, color.GreenString("Executed stack (final tree %s, safety branch %s)",
		shortSHA(stack.FinalTreeSHA), stack.SourceCopyBranch))
	t.Render()
}

func colorizeWarningKind(kind string) string {
	switch engine.WarningKind(kind) {
	case engine.WarnCycleEdgeDropped, engine.WarnBinaryFileSkipped:
		return color.RedString(kind)
	case engine.WarnLowConfidenceAssign, engine.WarnOversizeGroupSplit, engine.WarnEmptyGroupMerged:
		return color.YellowString(kind)
	default:
		return kind
	}
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}

	out := items[0]
	for _, s := range items[1:] {
		out += ", " + s
	}

	return out
}

func shortSHA(sha string) string {
	const shortLen = 10
	if len(sha) <= shortLen {
		return sha
	}

	return sha[:shortLen]
}
