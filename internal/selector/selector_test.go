package selector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	selectCalls int
	countCalls  int
	failUntil   int
	ids         []any
	count       int64
	permanent   error
}

func (f *fakeStore) SelectNullIDs(ctx context.Context, table, outputCol, pk string, limit int) ([]any, error) {
	f.selectCalls++
	if f.permanent != nil {
		return nil, f.permanent
	}
	if f.selectCalls <= f.failUntil {
		return nil, errors.New("transient read error")
	}
	return f.ids, nil
}

func (f *fakeStore) CountNullIDs(ctx context.Context, table, outputCol, pk string) (int64, error) {
	f.countCalls++
	if f.permanent != nil {
		return 0, f.permanent
	}
	if f.countCalls <= f.failUntil {
		return 0, errors.New("transient count error")
	}
	return f.count, nil
}

func noopBackoff(int) time.Duration { return 0 }

func TestSelectNullIDs_SucceedsAfterTransientFailures(t *testing.T) {
	fs := &fakeStore{failUntil: 3, ids: []any{1, 2, 3}}
	sel := New(fs, zerolog.Nop())
	sel.backoff = noopBackoff

	ids, err := sel.SelectNullIDs(context.Background(), "docs", "embedding", "id", 100)
	require.NoError(t, err)
	require.Equal(t, []any{1, 2, 3}, ids)
	require.Equal(t, 4, fs.selectCalls)
}

func TestSelectNullIDs_ExhaustsRetryBudget(t *testing.T) {
	fs := &fakeStore{permanent: errors.New("always fails")}
	sel := New(fs, zerolog.Nop())
	sel.backoff = noopBackoff

	_, err := sel.SelectNullIDs(context.Background(), "docs", "embedding", "id", 100)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrSelectExhausted) || errors.Unwrap(err) != nil)
	require.Equal(t, MaxAttempts, fs.selectCalls)
}

func TestCountNullIDs_SucceedsAfterTransientFailures(t *testing.T) {
	fs := &fakeStore{failUntil: 2, count: 42}
	sel := New(fs, zerolog.Nop())
	sel.backoff = noopBackoff

	n, err := sel.CountNullIDs(context.Background(), "docs", "embedding", "id")
	require.NoError(t, err)
	require.Equal(t, int64(42), n)
	require.Equal(t, 3, fs.countCalls)
}

func TestSelectNullIDs_ContextCancelledDuringBackoff(t *testing.T) {
	fs := &fakeStore{permanent: errors.New("always fails")}
	sel := New(fs, zerolog.Nop())
	sel.backoff = func(int) time.Duration { return time.Hour }

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := sel.SelectNullIDs(ctx, "docs", "embedding", "id", 100)
	require.Error(t, err)
}

func TestDefaultBackoff_WithinExpectedRange(t *testing.T) {
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		d := defaultBackoff(attempt)
		require.GreaterOrEqual(t, d, time.Duration(float64(attempt)*0.5*float64(time.Second)))
		require.LessOrEqual(t, d, time.Duration((float64(attempt)*0.5+0.3)*float64(time.Second)))
	}
}
