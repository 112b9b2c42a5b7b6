package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cockroachdb-vectors/vectorize/internal/config"
	"github.com/cockroachdb-vectors/vectorize/internal/dburl"
	"github.com/cockroachdb-vectors/vectorize/internal/observer"
	"github.com/cockroachdb-vectors/vectorize/internal/scheduler"
	"github.com/cockroachdb-vectors/vectorize/internal/selector"
	"github.com/cockroachdb-vectors/vectorize/internal/store/postgres"
	"github.com/cockroachdb-vectors/vectorize/internal/updater"
	"github.com/cockroachdb-vectors/vectorize/internal/worker"
)

func newEmbedCmd(log zerolog.Logger) *cobra.Command {
	var (
		url, table, inputCol, outputCol, modelID string
		batchSize, numBatches, workers            int
		follow, progress, verbose, dryRun         bool
		maxIdleMinutes, minIdleSeconds            float64
	)

	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Scan a table for NULL-embedding rows and fill them in",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New(url, table, inputCol, outputCol, modelID,
				batchSize, numBatches, follow, maxIdleMinutes, minIdleSeconds,
				workers, progress, verbose, dryRun)
			if err != nil {
				return err
			}
			return runEmbed(cmd.Context(), cfg, log)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&url, "url", "u", "", "CockroachDB connection URL (required)")
	f.StringVarP(&table, "table", "t", "", "target table (required)")
	f.StringVarP(&inputCol, "input", "i", "", "input text column (required)")
	f.StringVarP(&outputCol, "output", "o", "", "output vector column (required)")
	f.StringVarP(&modelID, "model", "m", "", "provider id, e.g. local/minilm (required)")
	f.IntVarP(&batchSize, "batch", "b", config.DefaultBatchSize, "rows per batch")
	f.IntVarP(&numBatches, "num-batches", "n", config.DefaultNumBatches, "batches per run")
	f.BoolVarP(&follow, "follow", "F", false, "run indefinitely across successive runs")
	f.Float64Var(&maxIdleMinutes, "max-idle", config.DefaultMaxIdleMin, "idle budget in minutes (0 = unbounded)")
	f.Float64Var(&minIdleSeconds, "min-idle", config.DefaultMinIdleSec, "initial idle backoff in seconds")
	f.IntVarP(&workers, "workers", "w", config.DefaultWorkers, "worker goroutines")
	f.BoolVarP(&progress, "progress", "p", false, "show a progress bar (mutually exclusive with --verbose)")
	f.BoolVarP(&verbose, "verbose", "v", false, "per-batch/per-row logging (mutually exclusive with --progress)")
	f.BoolVarP(&dryRun, "dry-run", "d", false, "force workers=1, verbose=true, skip writes")

	for _, name := range []string{"url", "table", "input", "output", "model"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

// runEmbed wires schema introspection, the provider, the per-worker store
// pool, and the scheduler together for one embed invocation. Grounded on
// internal/outboxworker/run.go's signal.NotifyContext shutdown wiring.
func runEmbed(ctx context.Context, cfg *config.EngineConfig, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	parsed, err := dburl.Parse(cfg.URL)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	mainStore, err := postgres.Open(ctx, parsed.ConnString, int32(cfg.Workers), log)
	if err != nil {
		return fmt.Errorf("embed: connect: %w", err)
	}
	defer mainStore.Close()

	workerStores := make([]worker.Store, cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		ws, err := postgres.Open(ctx, parsed.ConnString, 2, log)
		if err != nil {
			return fmt.Errorf("embed: connect worker %d: %w", i, err)
		}
		defer ws.Close()
		workerStores[i] = ws
	}

	reg := buildRegistry()
	prov, err := reg.Resolve(cfg.ProviderID)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	if _, err := prov.EncodeOne(ctx, "vectorize startup check"); err != nil {
		return fmt.Errorf("embed: provider not ready: %w", err)
	}

	pk, pkType, err := mainStore.PrimaryKey(ctx, cfg.Table)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if err := mainStore.EnsureVectorColumn(ctx, cfg.Table, cfg.OutputCol, prov.Dimension(), cfg.DryRun); err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	sel := selector.New(mainStore, log)
	pool := worker.New(workerStores, prov, cfg.Table, cfg.InputCol, pk, log)
	upd := updater.New(mainStore, log)

	var total int64
	if cfg.Follow {
		total, _ = sel.CountNullIDs(ctx, cfg.Table, cfg.OutputCol, pk)
	} else {
		total = int64(cfg.BatchSize) * int64(cfg.NumBatches)
	}
	obs := observer.New(log, cfg.Progress, cfg.Verbose, total, ".")

	schedCfg := scheduler.Config{
		Table:          cfg.Table,
		OutputCol:      cfg.OutputCol,
		PK:             pk,
		PKType:         pkType,
		BatchSize:      cfg.BatchSize,
		NumBatches:     cfg.NumBatches,
		Follow:         cfg.Follow,
		Workers:        cfg.Workers,
		MinIdleSeconds: cfg.MinIdleSecs,
		MaxIdleSeconds: cfg.MaxIdleSecs,
		DryRun:         cfg.DryRun,
		Verbose:        cfg.Verbose,
	}
	sched := scheduler.New(schedCfg, sel, pool, upd, obs, log)

	runErr := sched.Run(ctx)
	if finishErr := obs.Finish(); finishErr != nil {
		log.Error().Err(finishErr).Msg("observer finish")
	}
	return runErr
}
