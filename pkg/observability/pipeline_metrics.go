package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricFilesTotal    = "newprstack.files.total"
	metricGroupsTotal   = "newprstack.groups.total"
	metricWarningsTotal = "newprstack.warnings.total"
	metricEdgesDropped  = "newprstack.edges.dropped"

	attrKind = "kind"
)

// PipelineMetrics holds OTel instruments for stacking-pipeline-specific metrics.
type PipelineMetrics struct {
	filesTotal    metric.Int64Counter
	groupsTotal   metric.Int64Counter
	warningsTotal metric.Int64Counter
	edgesDropped  metric.Int64Counter
}

// RunStats holds the statistics for a single pipeline run, decoupled from engine types.
type RunStats struct {
	Files              int64
	Groups             int64
	WarningsByKind     map[string]int64
	EdgesDroppedByKind map[string]int64
}

// NewPipelineMetrics creates pipeline metric instruments from the given meter.
func NewPipelineMetrics(mt metric.Meter) (*PipelineMetrics, error) {
	files, err := mt.Int64Counter(metricFilesTotal,
		metric.WithDescription("Total touched files assigned to a group"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFilesTotal, err)
	}

	groups, err := mt.Int64Counter(metricGroupsTotal,
		metric.WithDescription("Total groups produced by the partitioner"),
		metric.WithUnit("{group}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricGroupsTotal, err)
	}

	warnings, err := mt.Int64Counter(metricWarningsTotal,
		metric.WithDescription("Recoverable warnings emitted by kind"),
		metric.WithUnit("{warning}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricWarningsTotal, err)
	}

	edges, err := mt.Int64Counter(metricEdgesDropped,
		metric.WithDescription("Constraint edges dropped during cycle resolution"),
		metric.WithUnit("{edge}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricEdgesDropped, err)
	}

	return &PipelineMetrics{
		filesTotal:    files,
		groupsTotal:   groups,
		warningsTotal: warnings,
		edgesDropped:  edges,
	}, nil
}

// RecordRun records pipeline statistics for a completed run.
// Safe to call on a nil receiver (no-op).
func (pm *PipelineMetrics) RecordRun(ctx context.Context, stats RunStats) {
	if pm == nil {
		return
	}

	pm.filesTotal.Add(ctx, stats.Files)
	pm.groupsTotal.Add(ctx, stats.Groups)

	for kind, count := range stats.WarningsByKind {
		pm.warningsTotal.Add(ctx, count, metric.WithAttributes(attribute.String(attrKind, kind)))
	}

	for kind, count := range stats.EdgesDroppedByKind {
		pm.edgesDropped.Add(ctx, count, metric.WithAttributes(attribute.String(attrKind, kind)))
	}
}
