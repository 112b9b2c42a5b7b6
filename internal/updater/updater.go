// Package updater applies encoded (key, vector) pairs back to the table as
// one batched UPDATE per call, retrying transient failures with the same
// jittered linear backoff as internal/selector, grounded on
// original_source/vectorize.py:vectorize_batch.
package updater

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/cockroachdb-vectors/vectorize/internal/engineerr"
	"github.com/cockroachdb-vectors/vectorize/internal/provider"
)

// MaxAttempts is the retry budget for applying a single batch.
const MaxAttempts = 10

// Store is the narrow seam this package needs from internal/store.Store.
type Store interface {
	ApplyEmbeddings(ctx context.Context, table, outputCol, pk, pkType string, keys []any, vectors []string) error
}

// Entry records one terminal or retried-but-recovered event, carrying the
// batch index so the Observer can attribute it in its log files.
type Entry struct {
	BatchIndex int
	At         time.Time
	Message    string
}

// Report is the per-batch outcome the Scheduler folds into the run's
// overall counters and the Observer's end-of-run log files.
type Report struct {
	Applied  int
	Warnings []Entry
	Errors   []Entry
}

// Updater applies EncodedRow batches with retry/backoff.
type Updater struct {
	store Store
	log   zerolog.Logger

	backoff func(attempt int) time.Duration
}

// New returns an Updater.
func New(store Store, log zerolog.Logger) *Updater {
	return &Updater{store: store, log: log, backoff: defaultBackoff}
}

func defaultBackoff(attempt int) time.Duration {
	secs := 0.5*float64(attempt) + rand.Float64()*0.3
	return time.Duration(secs * float64(time.Second))
}

// Apply writes pairs back to table.outputCol, keyed by pk (cast to
// pkType, REDESIGN FLAGS decision: cast the incoming literal, not the
// column). Retries up to MaxAttempts times; exhaustion is recorded as a
// terminal error in Report, not propagated — a failed batch does not stop
// the run.
func (u *Updater) Apply(ctx context.Context, table, outputCol, pk, pkType string, pairs []provider.EncodedRow, batchIndex int) Report {
	var report Report
	if len(pairs) == 0 {
		return report
	}

	keys := make([]any, len(pairs))
	vectors := make([]string, len(pairs))
	for i, pair := range pairs {
		keys[i] = pair.Key
		vectors[i] = provider.VectorLiteral(pair.Vector)
	}

	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		err := u.store.ApplyEmbeddings(ctx, table, outputCol, pk, pkType, keys, vectors)
		if err == nil {
			report.Applied = len(pairs)
			if attempt > 1 {
				report.Warnings = append(report.Warnings, Entry{
					BatchIndex: batchIndex,
					At:         time.Now(),
					Message:    fmt.Sprintf("update succeeded on attempt %d", attempt),
				})
			}
			return report
		}
		lastErr = err
		u.log.Warn().Err(err).Int("attempt", attempt).Int("batch", batchIndex).Msg("apply embeddings failed, retrying")

		if attempt == MaxAttempts {
			break
		}
		if !u.wait(ctx, u.backoff(attempt)) {
			lastErr = ctx.Err()
			break
		}
	}

	wrapped := fmt.Errorf("%w: batch %d: %v", engineerr.ErrUpdateFailed, batchIndex, lastErr)
	report.Errors = append(report.Errors, Entry{BatchIndex: batchIndex, At: time.Now(), Message: wrapped.Error()})
	u.log.Error().Err(wrapped).Msg("batch update exhausted retries")
	return report
}

func (u *Updater) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
