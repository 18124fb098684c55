package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/newpr-stack/pkg/engine"
	"github.com/Sumatoshi-tech/newpr-stack/pkg/observability"
)

// stackFlags holds every flag NewStackCommand registers, bound directly via
// cobra's pflag setters rather than threaded through globals.
type stackFlags struct {
	repoPath   string
	baseSHA    string
	headSHA    string
	hintsPath  string
	depsPath   string
	configPath string
	prNumber   int
	prTitle    string
	authorName string
	authorMail string
	dryRun     bool
	quiet      bool
	noColor    bool
	format     string

	otlpEndpoint string
	otlpHeaders  string
	otlpInsecure bool
	promEnabled  bool

	cpuProfile  string
	heapProfile string
}

// NewStackCommand builds the "stack" command: it captures the base..head
// range of a repository, runs it through the stacking pipeline, and either
// executes the resulting DAG plan as real branches and commits or, with
// --dry-run, only prints the plan.
func NewStackCommand() *cobra.Command {
	flags := &stackFlags{}

	cmd := &cobra.Command{
		Use:   "stack",
		Short: "Decompose a PR's commit range into a dependency-ordered stack",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStack(cmd.Context(), flags)
		},
	}

	pf := cmd.Flags()
	pf.StringVarP(&flags.repoPath, "path", "p", ".", "path to the git repository")
	pf.StringVar(&flags.baseSHA, "base", "", "base commit SHA (required)")
	pf.StringVar(&flags.headSHA, "head", "", "head commit SHA (required)")
	pf.StringVar(&flags.hintsPath, "hints", "", "YAML file of caller-supplied starting groups")
	pf.StringVar(&flags.depsPath, "deps", "", "YAML file of declared group dependency edges")
	pf.StringVar(&flags.configPath, "config", "", "engine tuning config file")
	pf.IntVar(&flags.prNumber, "pr-number", 0, "pull request number, used in branch names")
	pf.StringVar(&flags.prTitle, "pr-title", "", "pull request title")
	pf.StringVar(&flags.authorName, "pr-author-name", "", "author name for group commits")
	pf.StringVar(&flags.authorMail, "pr-author-email", "", "author email for group commits")
	pf.BoolVar(&flags.dryRun, "dry-run", false, "print the DAG plan without creating branches or commits")
	pf.BoolVarP(&flags.quiet, "quiet", "q", false, "suppress progress bars")
	pf.BoolVar(&flags.noColor, "no-color", false, "disable colorized output")
	pf.StringVar(&flags.format, "format", formatTable, "output format: table or json")
	pf.StringVar(&flags.otlpEndpoint, "otlp-endpoint", "", "OTLP gRPC collector address (e.g. localhost:4317); empty disables OTLP export")
	pf.StringVar(&flags.otlpHeaders, "otlp-headers", "", "OTLP gRPC metadata headers, \"key=value,key=value\"")
	pf.BoolVar(&flags.otlpInsecure, "otlp-insecure", false, "disable TLS for the OTLP gRPC connection")
	pf.BoolVar(&flags.promEnabled, "metrics-prometheus", false, "export metrics via an in-process Prometheus reader when --otlp-endpoint is unset")
	pf.StringVar(&flags.cpuProfile, "cpu-profile", "", "write a CPU profile to this path")
	pf.StringVar(&flags.heapProfile, "heap-profile", "", "write a heap profile to this path after the run completes")

	_ = cmd.MarkFlagRequired("base")
	_ = cmd.MarkFlagRequired("head")

	return cmd
}

func runStack(ctx context.Context, flags *stackFlags) error {
	stopProfiler, err := maybeStartCPUProfile(flags.cpuProfile)
	if err != nil {
		return err
	}

	defer stopProfiler()
	defer maybeWriteHeapProfile(flags.heapProfile)

	cfg, err := loadTuningConfig(flags.configPath)
	if err != nil {
		return err
	}

	hints, err := loadHintGroups(flags.hintsPath)
	if err != nil {
		return err
	}

	deps, err := loadDeclaredDeps(flags.depsPath)
	if err != nil {
		return err
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.Mode = observability.ModeCLI
	obsCfg.OTLPEndpoint = flags.otlpEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(flags.otlpHeaders)
	obsCfg.OTLPInsecure = flags.otlpInsecure
	obsCfg.PrometheusEnabled = flags.promEnabled

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	defer func() { _ = providers.Shutdown(context.Background()) }()

	red, err := observability.NewREDMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("init RED metrics: %w", err)
	}

	pipelineMetrics, err := observability.NewPipelineMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("init pipeline metrics: %w", err)
	}

	tel := engine.Telemetry{Tracer: providers.Tracer, Logger: providers.Logger, RED: red, Metrics: pipelineMetrics}

	progress := newProgressConfig(flags.quiet, flags.noColor, flags.format)
	spinner := newPhaseSpinner(progress, "capturing commit range")

	capCtx, err := engine.Capture(ctx, flags.repoPath, flags.baseSHA, flags.headSHA)
	finishBar(spinner)

	if err != nil {
		return fmt.Errorf("capture range: %w", err)
	}
	defer capCtx.Close()

	input := engine.RunInput{
		RepoPath:     flags.repoPath,
		BaseSHA:      flags.baseSHA,
		HeadSHA:      flags.headSHA,
		HintGroups:   hints,
		DeclaredDeps: deps,
		PRAuthor:     engine.Author{Name: flags.authorName, Email: flags.authorMail},
		PRNumber:     flags.prNumber,
		PRTitle:      flags.prTitle,
	}

	weights := engine.DefaultScoreWeights()

	runSpinner := newPhaseSpinner(progress, "running stacking pipeline")
	defer finishBar(runSpinner)

	if flags.dryRun {
		result, planErr := engine.Plan(ctx, capCtx, input, cfg, weights, tel)
		if planErr != nil {
			return fmt.Errorf("plan stack: %w", planErr)
		}

		return emitReport(buildPlanReport(result.Plan, result.Warnings, nil), flags.format, flags.noColor)
	}

	result, runErr := engine.Run(ctx, capCtx, input, cfg, weights, tel)
	if runErr != nil {
		return fmt.Errorf("run stack: %w", runErr)
	}

	return emitReport(buildPlanReport(result.Plan, result.Warnings, result.Stack), flags.format, flags.noColor)
}

// emitReport writes the final report to stdout in the requested format.
func emitReport(report planReport, format string, noColor bool) error {
	if format == formatJSON {
		return renderJSON(os.Stdout, report)
	}

	renderTable(os.Stdout, report, noColor)

	return nil
}
