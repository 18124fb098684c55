package commands

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// progressConfig determines whether and how the CLI shows progress while it
// captures the commit range and while it runs the stacking pipeline.
type progressConfig struct {
	enabled bool
	writer  io.Writer
	noColor bool
}

// newProgressConfig disables progress bars for --quiet runs, --format json
// runs, and whenever stderr is not a terminal (piped output, CI).
func newProgressConfig(quiet, noColor bool, format string) progressConfig {
	enabled := !quiet && format != formatJSON && isatty.IsTerminal(os.Stderr.Fd())

	return progressConfig{enabled: enabled, writer: os.Stderr, noColor: noColor}
}

// newPhaseSpinner creates an indeterminate spinner for a phase whose total
// work item count is not known up front. Returns nil when progress is
// disabled, so callers can call methods on it unconditionally via the
// nil-safe helpers below.
func newPhaseSpinner(cfg progressConfig, description string) *progressbar.ProgressBar {
	if !cfg.enabled {
		return nil
	}

	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(cfg.writer),
		progressbar.OptionSpinnerType(14), //nolint:mnd // progressbar's dot spinner
		progressbar.OptionClearOnFinish(),
		progressbar.OptionEnableColorCodes(!cfg.noColor),
		progressbar.OptionThrottle(throttleInterval),
	)
}

// newPhaseBar creates a determinate progress bar over a known item count.
func newPhaseBar(cfg progressConfig, total int64, description string) *progressbar.ProgressBar {
	if !cfg.enabled {
		return nil
	}

	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(cfg.writer),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionEnableColorCodes(!cfg.noColor),
		progressbar.OptionThrottle(throttleInterval),
	)
}

const throttleInterval = 65 * time.Millisecond

// finishBar clears a progress bar or spinner, tolerating a nil receiver so
// call sites don't need to branch on whether progress is enabled.
func finishBar(bar *progressbar.ProgressBar) {
	if bar == nil {
		return
	}

	_ = bar.Finish()
}
