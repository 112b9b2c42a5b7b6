package config

import (
	"errors"
	"testing"

	"github.com/cockroachdb-vectors/vectorize/internal/engineerr"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	cfg, err := New("postgresql://root@localhost/mydb", "docs", "body", "embedding", "local/minilm",
		DefaultBatchSize, DefaultNumBatches, false, DefaultMaxIdleMin, DefaultMinIdleSec, DefaultWorkers,
		false, false, false)
	require.NoError(t, err)
	require.Equal(t, DefaultBatchSize, cfg.BatchSize)
	require.Equal(t, DefaultMaxIdleMin*60.0, cfg.MaxIdleSecs)
	require.False(t, cfg.DryRun)
}

func TestNew_DryRunForcesOverrides(t *testing.T) {
	cfg, err := New("postgresql://root@localhost/mydb", "docs", "body", "embedding", "local/minilm",
		100, 1, false, 1.0, 1.0, 8, true, false, true)
	require.NoError(t, err)
	require.Equal(t, 1, cfg.Workers)
	require.True(t, cfg.Verbose)
	require.False(t, cfg.Progress)
}

func TestNew_ProgressAndVerboseMutuallyExclusive(t *testing.T) {
	_, err := New("postgresql://root@localhost/mydb", "docs", "body", "embedding", "local/minilm",
		100, 1, false, 1.0, 1.0, 1, true, true, false)
	require.Error(t, err)
	require.True(t, errors.Is(err, engineerr.ErrConfig))
}

func TestNew_MissingRequiredFields(t *testing.T) {
	_, err := New("", "docs", "body", "embedding", "local/minilm",
		100, 1, false, 1.0, 1.0, 1, false, false, false)
	require.Error(t, err)
	require.True(t, errors.Is(err, engineerr.ErrConfig))
}

func TestIdleBudgetSeconds_ZeroMeansUnbounded(t *testing.T) {
	cfg := &EngineConfig{MaxIdleSecs: 0}
	require.Equal(t, 0.0, cfg.IdleBudgetSeconds())

	cfg.MaxIdleSecs = 120
	require.Equal(t, 120.0, cfg.IdleBudgetSeconds())
}

func TestNew_MinIdleFloorApplied(t *testing.T) {
	cfg, err := New("postgresql://root@localhost/mydb", "docs", "body", "embedding", "local/minilm",
		100, 1, false, 1.0, 0, 1, false, false, false)
	require.NoError(t, err)
	require.GreaterOrEqual(t, cfg.MinIdleSecs, minIdleFloor)
}
