// Package config builds and validates the engine's run configuration from
// CLI flags. Unlike a long-lived server, this is a single-shot batch job,
// so configuration is flag-sourced rather than environment-sourced — but
// validation follows the same fail-fast-before-work-starts discipline the
// teacher's internal/config.New applies.
package config

import (
	"runtime"

	"github.com/cockroachdb-vectors/vectorize/internal/engineerr"
)

// EngineConfig is constructed once by the CLI façade and is read-only for
// the life of an engine run.
type EngineConfig struct {
	URL        string
	Table      string
	InputCol   string
	OutputCol  string
	ProviderID string

	BatchSize     int
	NumBatches    int
	Follow        bool
	MaxIdleSecs   float64
	MinIdleSecs   float64
	Workers       int
	Progress      bool
	Verbose       bool
	DryRun        bool
}

// Defaults matching the CLI flag surface.
const (
	DefaultBatchSize  = 1000
	DefaultNumBatches = 1
	DefaultMaxIdleMin = 60.0
	DefaultMinIdleSec = 15.0
	DefaultWorkers    = 1

	minIdleFloor = 0.001 // seconds; avoids a zero-wait busy loop
)

// New returns an EngineConfig with max-idle converted from minutes to
// seconds, the min-idle floor and worker clamps applied, and dry-run's
// forced overrides (§4.6: dry_run forces workers=1, verbose=true,
// progress=false) already resolved, then validates it. It fills in no
// defaults; the Default* constants are the CLI flag defaults.
func New(url, table, inputCol, outputCol, providerID string, batchSize, numBatches int, follow bool, maxIdleMinutes, minIdleSeconds float64, workers int, progress, verbose, dryRun bool) (*EngineConfig, error) {
	cfg := &EngineConfig{
		URL:         url,
		Table:       table,
		InputCol:    inputCol,
		OutputCol:   outputCol,
		ProviderID:  providerID,
		BatchSize:   batchSize,
		NumBatches:  numBatches,
		Follow:      follow,
		MaxIdleSecs: maxIdleMinutes * 60.0,
		MinIdleSecs: minIdleSeconds,
		Workers:     workers,
		Progress:    progress,
		Verbose:     verbose,
		DryRun:      dryRun,
	}

	if cfg.DryRun {
		cfg.Workers = 1
		cfg.Verbose = true
		cfg.Progress = false
	}

	if cfg.MinIdleSecs < minIdleFloor {
		cfg.MinIdleSecs = minIdleFloor
	}
	if cfg.MaxIdleSecs < 0 {
		cfg.MaxIdleSecs = 0
	}
	if cfg.Workers > runtime.GOMAXPROCS(0) {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that must hold before any work starts.
func (c *EngineConfig) Validate() error {
	if c.URL == "" {
		return engineerr.Config("database url is required")
	}
	if c.Table == "" {
		return engineerr.Config("table is required")
	}
	if c.InputCol == "" {
		return engineerr.Config("input column is required")
	}
	if c.OutputCol == "" {
		return engineerr.Config("output column is required")
	}
	if c.ProviderID == "" {
		return engineerr.Config("model/provider id is required")
	}
	if c.Progress && c.Verbose {
		return engineerr.Config("--progress and --verbose are mutually exclusive")
	}
	if c.BatchSize <= 0 {
		return engineerr.Config("batch size must be positive")
	}
	if c.NumBatches <= 0 {
		return engineerr.Config("num-batches must be positive")
	}
	return nil
}

// IdleBudgetSeconds returns the immutable idle budget for the run; 0 means
// unbounded.
func (c *EngineConfig) IdleBudgetSeconds() float64 {
	if c.MaxIdleSecs <= 0 {
		return 0
	}
	return c.MaxIdleSecs
}
