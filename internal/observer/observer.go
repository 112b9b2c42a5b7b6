// Package observer drives progress reporting: a schollz/progressbar/v3 bar
// in --progress mode, verbose per-batch logging in --verbose mode (the two
// are mutually exclusive, enforced by config.Validate), and end-of-run
// warning/error log files. Grounded on the retrieval pack's
// vjache-cie/cmd/cie/index.go, which recreates a progressbar.ProgressBar
// from a pipeline progress callback in the same producer/consumer shape.
package observer

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"github.com/cockroachdb-vectors/vectorize/internal/updater"
)

// Observer implements scheduler.Observer.
type Observer struct {
	log      zerolog.Logger
	progress bool
	verbose  bool

	bar *progressbar.ProgressBar

	warnings []updater.Entry
	errors   []updater.Entry

	logDir string
	now    func() time.Time
}

// New constructs an Observer. total sizes the progress bar: the embed
// command passes the NULL-row count from selector.CountNullIDs in follow
// mode and batch_size*num_batches otherwise; pass -1 if unknown (the bar
// falls back to an indeterminate spinner).
func New(log zerolog.Logger, progress, verbose bool, total int64, logDir string) *Observer {
	o := &Observer{log: log, progress: progress, verbose: verbose, logDir: logDir, now: time.Now}
	if progress {
		o.bar = progressbar.NewOptions64(total,
			progressbar.OptionSetDescription("embedding"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
	}
	return o
}

// BatchStarted logs batch start in verbose mode; the progress bar has
// nothing to show yet until COLLECT/UPDATE produce a count.
func (o *Observer) BatchStarted(runIndex, batchIndex int) {
	if o.verbose {
		o.log.Info().Int("run", runIndex).Int("batch", batchIndex).Msg("selecting batch")
	}
}

// BatchEmpty logs the page-empty transition to IDLE.
func (o *Observer) BatchEmpty(runIndex, batchIndex int) {
	if o.verbose {
		o.log.Info().Int("run", runIndex).Int("batch", batchIndex).Msg("no null rows found, going idle")
	}
}

// BatchCompleted advances the progress bar (or logs, in verbose mode) and
// accumulates the batch's warnings/errors for the end-of-run log files.
func (o *Observer) BatchCompleted(runIndex, batchIndex int, report updater.Report) {
	if o.progress && o.bar != nil {
		_ = o.bar.Add64(int64(report.Applied))
	}
	if o.verbose {
		o.log.Info().Int("run", runIndex).Int("batch", batchIndex).
			Int("applied", report.Applied).
			Int("warnings", len(report.Warnings)).
			Int("errors", len(report.Errors)).
			Msg("batch applied")
	}
	o.warnings = append(o.warnings, report.Warnings...)
	o.errors = append(o.errors, report.Errors...)
}

// IdleWaiting logs the exponential idle-backoff sleep in verbose mode.
func (o *Observer) IdleWaiting(d time.Duration, spent, budget float64) {
	if o.verbose {
		ev := o.log.Info().Dur("sleep", d).Float64("idle_spent", spent)
		if budget > 0 {
			ev = ev.Float64("idle_budget", budget)
		}
		ev.Msg("idle, backing off")
	}
}

// RunFinished finishes the progress bar and resets the same bar for the
// next follow-mode run (its total is unchanged), then logs "run complete"
// with the run index.
func (o *Observer) RunFinished(runIndex int) {
	if o.bar != nil {
		_ = o.bar.Finish()
		o.bar.Reset()
	}
	o.log.Info().Int("run", runIndex).Msg("run complete")
}

// Finish writes accumulated warnings/errors to timestamped log files (one
// entry per line) and prints a one-line summary count via the logger.
// Call once after the scheduler returns.
func (o *Observer) Finish() error {
	if o.bar != nil {
		_ = o.bar.Finish()
	}
	ts := o.now().Format("20060102_150405")

	if len(o.warnings) > 0 {
		path := filepath.Join(o.logDir, fmt.Sprintf("warnings_%s.log", ts))
		if err := writeEntries(path, o.warnings); err != nil {
			return fmt.Errorf("write warnings log: %w", err)
		}
	}
	if len(o.errors) > 0 {
		path := filepath.Join(o.logDir, fmt.Sprintf("errors_%s.log", ts))
		if err := writeEntries(path, o.errors); err != nil {
			return fmt.Errorf("write errors log: %w", err)
		}
	}

	o.log.Info().Int("warnings", len(o.warnings)).Int("errors", len(o.errors)).Msg("run summary")
	return nil
}

func writeEntries(path string, entries []updater.Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, e := range entries {
		if _, err := fmt.Fprintf(f, "%s batch=%d %s\n", e.At.Format(time.RFC3339), e.BatchIndex, e.Message); err != nil {
			return err
		}
	}
	return nil
}
