// Package selector implements the Work Selector: a paged scan for
// primary-key values whose output column is NULL, retried with jittered
// linear backoff the way original_source/vectorize.go:fetch_null_vector_ids
// retries a transient CockroachDB read.
package selector

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/cockroachdb-vectors/vectorize/internal/engineerr"
)

// MaxAttempts is the retry budget for a single SelectNullIDs/CountNullIDs
// call before giving up.
const MaxAttempts = 10

// ErrSelectExhausted wraps engineerr.ErrSelectTransient once all attempts
// are spent; fatal to the engine run.
var ErrSelectExhausted = fmt.Errorf("work selector: %w", engineerr.ErrSelectTransient)

// Store is the narrow seam this package needs from internal/store.Store.
type Store interface {
	SelectNullIDs(ctx context.Context, table, outputCol, pk string, limit int) ([]any, error)
	CountNullIDs(ctx context.Context, table, outputCol, pk string) (int64, error)
}

// Selector retries Store calls with jittered linear backoff.
type Selector struct {
	store Store
	log   zerolog.Logger

	// backoff computes the sleep before retry attempt; overridable in
	// tests to avoid real delays.
	backoff func(attempt int) time.Duration
}

// New returns a Selector.
func New(store Store, log zerolog.Logger) *Selector {
	return &Selector{store: store, log: log, backoff: defaultBackoff}
}

func defaultBackoff(attempt int) time.Duration {
	secs := 0.5*float64(attempt) + rand.Float64()*0.3
	return time.Duration(secs * float64(time.Second))
}

// SelectNullIDs returns up to limit primary-key values whose output column
// is NULL, retrying transient failures up to MaxAttempts times.
func (s *Selector) SelectNullIDs(ctx context.Context, table, outputCol, pk string, limit int) ([]any, error) {
	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		ids, err := s.store.SelectNullIDs(ctx, table, outputCol, pk, limit)
		if err == nil {
			return ids, nil
		}
		lastErr = err
		s.log.Warn().Err(err).Int("attempt", attempt).Str("table", table).Msg("select null ids failed, retrying")

		if attempt == MaxAttempts {
			break
		}
		if !s.wait(ctx, s.backoff(attempt)) {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("%w: %s: %v", ErrSelectExhausted, table, lastErr)
}

// CountNullIDs retries the same way as SelectNullIDs.
func (s *Selector) CountNullIDs(ctx context.Context, table, outputCol, pk string) (int64, error) {
	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		n, err := s.store.CountNullIDs(ctx, table, outputCol, pk)
		if err == nil {
			return n, nil
		}
		lastErr = err
		s.log.Warn().Err(err).Int("attempt", attempt).Str("table", table).Msg("count null ids failed, retrying")

		if attempt == MaxAttempts {
			break
		}
		if !s.wait(ctx, s.backoff(attempt)) {
			return 0, ctx.Err()
		}
	}
	return 0, fmt.Errorf("%w: %s: %v", ErrSelectExhausted, table, lastErr)
}

// wait sleeps for d or returns false if ctx is cancelled first.
func (s *Selector) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
