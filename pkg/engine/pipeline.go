package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/newpr-stack/pkg/observability"
)

// Telemetry bundles the observability providers the pipeline reports
// through. Every field is optional: a nil Tracer/RED/Pipeline metric or a
// nil Logger simply turns that phase's instrumentation into a no-op, so a
// caller that hasn't wired observability.Init still gets a working run.
type Telemetry struct {
	Tracer  trace.Tracer
	Logger  *slog.Logger
	RED     *observability.REDMetrics
	Metrics *observability.PipelineMetrics
}

// Result is the terminal artifact of a full pipeline run: the executed
// stack plus every warning accumulated along the way, grouped by the phase
// that raised it.
type Result struct {
	Plan     *DAGPlan
	Stack    *ExecutedStack
	Warnings []Warning
}

// phaseNames mirrors the nine pipeline components in execution order, used
// only for span/log/metric labels.
const (
	phaseCapture     = "context_capture"
	phaseDelta       = "delta_extraction"
	phaseSymbols     = "symbol_flow"
	phasePartition   = "partition"
	phaseRebalance   = "rebalance"
	phaseFeasibility = "feasibility"
	phasePlan        = "plan_builder"
	phaseExecute     = "executor"
	phaseVerify      = "verifier"
)

// planPhases is the shared rebalanced-groups type threaded between the
// partition, rebalance, and stats-recording steps.
type planPhases struct {
	groups    map[string]*Group
	ownership OwnershipMap
}

// runC2throughC7 runs delta extraction through plan building (C2-C7): every
// phase both Run and Plan share. It never touches the repository's ref
// namespace; only Execute (C8) and Verify (C9) do that.
func runC2throughC7(
	ctx context.Context, c *Context, input RunInput, cfg Config, weights ScoreWeights, tel Telemetry, bag *WarningsBag,
) (*DAGPlan, planPhases, []DroppedEdge, error) {
	deltas, err := runPhase(ctx, tel, phaseDelta, func(ctx context.Context) ([]Delta, []Warning, error) {
		return ExtractDeltas(ctx, c)
	}, bag)
	if err != nil {
		return nil, planPhases{}, nil, err
	}

	idx, err := runPhase(ctx, tel, phaseSymbols, func(ctx context.Context) (SymbolIndex, []Warning, error) {
		return AnalyzeSymbols(ctx, c, deltas, cfg)
	}, bag)
	if err != nil {
		return nil, planPhases{}, nil, err
	}

	partitioned, err := runPhase(ctx, tel, phasePartition, func(_ context.Context) (PartitionResult, []Warning, error) {
		res := Partition(deltas, idx, input.HintGroups, cfg, weights)

		return res, res.Warnings, nil
	}, bag)
	if err != nil {
		return nil, planPhases{}, nil, err
	}

	reb, err := runPhase(ctx, tel, phaseRebalance, func(_ context.Context) (planPhases, []Warning, error) {
		groups, ownership, warnings := Rebalance(partitioned.Groups, partitioned.Ownership, deltas, idx, cfg, weights)

		return planPhases{groups: groups, ownership: ownership}, warnings, nil
	}, bag)
	if err != nil {
		return nil, planPhases{}, nil, err
	}

	feas, err := runPhase(ctx, tel, phaseFeasibility, func(_ context.Context) (FeasibilityResult, []Warning, error) {
		res := CheckFeasibility(deltas, reb.ownership, input.DeclaredDeps)

		warnings := make([]Warning, 0, len(res.DroppedEdges))
		for _, d := range res.DroppedEdges {
			warnings = append(warnings, d.asWarning())
		}

		return res, warnings, nil
	}, bag)
	if err != nil {
		return nil, planPhases{}, nil, err
	}

	plan, err := runPhase(ctx, tel, phasePlan, func(_ context.Context) (*DAGPlan, []Warning, error) {
		p, buildErr := BuildPlan(c, deltas, reb.ownership, feas.TopoOrder, feas.Edges)

		return p, nil, buildErr
	}, bag)
	if err != nil {
		return nil, planPhases{}, nil, err
	}

	return plan, reb, feas.DroppedEdges, nil
}

// PlanResult is the output of running C2-C7 without executing or verifying:
// the computed DAG plan plus every warning raised while building it.
type PlanResult struct {
	Plan     *DAGPlan
	Warnings []Warning
}

// Plan runs delta extraction through plan building (C2-C7) without creating
// any commit or branch, giving a caller a --dry-run preview of the stack
// that Run would produce.
func Plan(ctx context.Context, c *Context, input RunInput, cfg Config, weights ScoreWeights, tel Telemetry) (*PlanResult, error) {
	bag := &WarningsBag{}

	plan, reb, dropped, err := runC2throughC7(ctx, c, input, cfg, weights, tel, bag)
	if err != nil {
		return nil, err
	}

	recordRunStats(ctx, tel, reb.ownership, reb.groups, bag, dropped)

	return &PlanResult{Plan: plan, Warnings: bag.All()}, nil
}

// Run executes the full stacking pipeline against an already-open Context:
// delta extraction, symbol analysis, partitioning, rebalancing, feasibility
// and cycle resolution, plan building, execution, and verification, in that
// order. Every phase is wrapped in its own span and RED measurement so a
// caller's trace backend sees these eight components as eight named
// operations rather than one opaque call.
func Run(ctx context.Context, c *Context, input RunInput, cfg Config, weights ScoreWeights, tel Telemetry) (*Result, error) {
	bag := &WarningsBag{}

	plan, reb, dropped, err := runC2throughC7(ctx, c, input, cfg, weights, tel, bag)
	if err != nil {
		return nil, err
	}

	stack, err := runPhase(ctx, tel, phaseExecute, func(execCtx context.Context) (*ExecutedStack, []Warning, error) {
		s, execErr := Execute(execCtx, c, plan, input)

		return s, nil, execErr
	}, bag)
	if err != nil {
		return nil, err
	}

	if _, err := runPhase(ctx, tel, phaseVerify, func(_ context.Context) (struct{}, []Warning, error) {
		return struct{}{}, nil, Verify(c, stack, plan)
	}, bag); err != nil {
		return nil, err
	}

	recordRunStats(ctx, tel, reb.ownership, reb.groups, bag, dropped)

	return &Result{Plan: plan, Stack: stack, Warnings: bag.All()}, nil
}

// runPhase wraps a single pipeline stage with a span, a log record, and a
// RED measurement, recording the stage's own warnings into bag before
// returning its typed result.
func runPhase[T any](
	ctx context.Context, tel Telemetry, phase string, fn func(context.Context) (T, []Warning, error), bag *WarningsBag,
) (T, error) {
	var zero T

	spanCtx := ctx

	var span trace.Span
	if tel.Tracer != nil {
		spanCtx, span = tel.Tracer.Start(ctx, "newprstack."+phase)
		defer span.End()
	}

	var done func()
	if tel.RED != nil {
		done = tel.RED.TrackInflight(spanCtx, phase)
		defer done()
	}

	start := time.Now()

	result, warnings, err := fn(spanCtx)

	duration := time.Since(start)
	bag.items = append(bag.items, warnings...)

	status := "ok"
	if err != nil {
		status = "error"
	}

	if tel.RED != nil {
		tel.RED.RecordRequest(spanCtx, phase, status, duration)
	}

	if span != nil {
		span.SetAttributes(
			attribute.String("newprstack.phase", phase),
			attribute.Bool("newprstack.error", err != nil),
			attribute.Int("newprstack.phase.warnings", len(warnings)),
		)
	}

	if tel.Logger != nil {
		if err != nil {
			tel.Logger.Error("phase failed", "phase", phase, "duration", duration, "error", err)
		} else {
			tel.Logger.Debug("phase complete", "phase", phase, "duration", duration, "warnings", len(warnings))
		}
	}

	if err != nil {
		return zero, fmt.Errorf("%s: %w", phase, err)
	}

	return result, nil
}

// recordRunStats reports the final shape of the run to PipelineMetrics:
// total owned files, total groups, and warnings/dropped-edges tallied by
// kind.
func recordRunStats(
	ctx context.Context, tel Telemetry, ownership OwnershipMap, groups map[string]*Group,
	bag *WarningsBag, dropped []DroppedEdge,
) {
	if tel.Metrics == nil {
		return
	}

	warningsByKind := make(map[string]int64, len(bag.items))
	for kind, count := range bag.CountByKind() {
		warningsByKind[string(kind)] = int64(count)
	}

	droppedByKind := make(map[string]int64, 2) //nolint:mnd // path-order/dependency, the only two EdgeKinds
	for _, d := range dropped {
		droppedByKind[d.Edge.Kind.String()]++
	}

	tel.Metrics.RecordRun(ctx, observability.RunStats{
		Files:              int64(len(ownership)),
		Groups:             int64(len(groups)),
		WarningsByKind:     warningsByKind,
		EdgesDroppedByKind: droppedByKind,
	})
}
