package updater

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/cockroachdb-vectors/vectorize/internal/provider"
)

type fakeStore struct {
	calls     int
	failUntil int
	permanent error
}

func (f *fakeStore) ApplyEmbeddings(ctx context.Context, table, outputCol, pk, pkType string, keys []any, vectors []string) error {
	f.calls++
	if f.permanent != nil {
		return f.permanent
	}
	if f.calls <= f.failUntil {
		return errors.New("transient write error")
	}
	return nil
}

func noopBackoff(int) time.Duration { return 0 }

func samplePairs() []provider.EncodedRow {
	return []provider.EncodedRow{
		{Key: 1, Vector: []float32{0.1, 0.2}},
		{Key: 2, Vector: []float32{0.3, 0.4}},
	}
}

func TestApply_SucceedsImmediately(t *testing.T) {
	fs := &fakeStore{}
	u := New(fs, zerolog.Nop())
	u.backoff = noopBackoff

	report := u.Apply(context.Background(), "docs", "embedding", "id", "INT8", samplePairs(), 0)
	require.Equal(t, 2, report.Applied)
	require.Empty(t, report.Errors)
	require.Empty(t, report.Warnings)
	require.Equal(t, 1, fs.calls)
}

func TestApply_SucceedsAfterRetry(t *testing.T) {
	fs := &fakeStore{failUntil: 2}
	u := New(fs, zerolog.Nop())
	u.backoff = noopBackoff

	report := u.Apply(context.Background(), "docs", "embedding", "id", "INT8", samplePairs(), 3)
	require.Equal(t, 2, report.Applied)
	require.Len(t, report.Warnings, 1)
	require.Equal(t, 3, fs.calls)
}

func TestApply_ExhaustsRetryBudget(t *testing.T) {
	fs := &fakeStore{permanent: errors.New("always fails")}
	u := New(fs, zerolog.Nop())
	u.backoff = noopBackoff

	report := u.Apply(context.Background(), "docs", "embedding", "id", "INT8", samplePairs(), 7)
	require.Equal(t, 0, report.Applied)
	require.Len(t, report.Errors, 1)
	require.Equal(t, 7, report.Errors[0].BatchIndex)
	require.Equal(t, MaxAttempts, fs.calls)
}

func TestApply_EmptyPairsNoOp(t *testing.T) {
	fs := &fakeStore{}
	u := New(fs, zerolog.Nop())

	report := u.Apply(context.Background(), "docs", "embedding", "id", "INT8", nil, 0)
	require.Equal(t, Report{}, report)
	require.Equal(t, 0, fs.calls)
}
