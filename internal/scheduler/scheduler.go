// Package scheduler drives the engine's main loop as an explicit state
// machine: INIT -> PREPARE -> SELECT -> (EMPTY|DISPATCH) -> COLLECT ->
// UPDATE -> DECIDE -> (SELECT|IDLE|RUN_END|EXIT). Grounded on the
// teacher's internal/indexer-prototype.Indexer.Run loop shape (warm-up,
// a runCycle closure, ticker+ctx.Done select), retargeted from a
// Spanner-watermark cursor to NULL-predicate paged scanning with a
// bounded idle budget instead of a fixed poll interval.
package scheduler

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/cockroachdb-vectors/vectorize/internal/engineerr"
	"github.com/cockroachdb-vectors/vectorize/internal/provider"
	"github.com/cockroachdb-vectors/vectorize/internal/updater"
	"github.com/cockroachdb-vectors/vectorize/internal/worker"
)

type state int

const (
	stInit state = iota
	stPrepare
	stSelect
	stEmpty
	stDispatch
	stCollect
	stUpdate
	stDecide
	stIdle
	stRunEnd
	stExit
)

// Selector is the narrow seam this package needs from internal/selector.
type Selector interface {
	SelectNullIDs(ctx context.Context, table, outputCol, pk string, limit int) ([]any, error)
}

// Pool is the narrow seam this package needs from internal/worker.Pool.
type Pool interface {
	Dispatch(ctx context.Context, shards [][]any, batchIndex int, verbose bool) []worker.ShardResult
}

// Updater is the narrow seam this package needs from internal/updater.Updater.
type Updater interface {
	Apply(ctx context.Context, table, outputCol, pk, pkType string, pairs []provider.EncodedRow, batchIndex int) updater.Report
}

// Observer receives progress/log callbacks; see internal/observer.
type Observer interface {
	BatchStarted(runIndex, batchIndex int)
	BatchEmpty(runIndex, batchIndex int)
	BatchCompleted(runIndex, batchIndex int, report updater.Report)
	IdleWaiting(d time.Duration, spent, budget float64)
	RunFinished(runIndex int)
}

// Config holds everything the state machine needs to drive one call to
// Run. It is immutable for the life of the run, mirroring config.EngineConfig.
type Config struct {
	Table, OutputCol, PK, PKType string
	BatchSize                   int
	NumBatches                  int
	Follow                      bool
	Workers                     int
	MinIdleSeconds              float64
	MaxIdleSeconds              float64 // 0 == unbounded
	DryRun                      bool
	Verbose                     bool
}

// idleState tracks the exponential idle-backoff window for one run,
// tracking idle_wait, idle_spent, and idle_budget.
type idleState struct {
	wait   float64
	spent  float64
	budget float64 // 0 means unbounded
}

func newIdleState(minIdle, maxIdle float64) idleState {
	return idleState{wait: minIdle, spent: 0, budget: maxIdle}
}

func (s *idleState) reset(minIdle float64) {
	s.wait = minIdle
	// idle_spent is monotonically non-decreasing within a run;
	// only idle_wait resets on progress.
}

// next computes the sleep duration for this idle cycle, clamping to the
// remaining budget only when bounded (Open Question 4), and reports
// whether the budget is already exhausted.
func (s *idleState) next() (sleep time.Duration, exhausted bool) {
	if s.budget > 0 && s.spent >= s.budget {
		return 0, true
	}
	toSleep := s.wait
	if s.budget > 0 {
		remaining := s.budget - s.spent
		toSleep = math.Min(toSleep, remaining)
	}
	return time.Duration(toSleep * float64(time.Second)), false
}

func (s *idleState) advance(slept time.Duration) {
	s.spent += slept.Seconds()
	s.wait *= 2
}

// Scheduler runs the state machine.
type Scheduler struct {
	cfg      Config
	selector Selector
	pool     Pool
	updater  Updater
	observer Observer
	log      zerolog.Logger

	sleep func(ctx context.Context, d time.Duration) bool
}

// New constructs a Scheduler.
func New(cfg Config, sel Selector, pool Pool, upd Updater, obs Observer, log zerolog.Logger) *Scheduler {
	return &Scheduler{cfg: cfg, selector: sel, pool: pool, updater: upd, observer: obs, log: log, sleep: ctxSleep}
}

func ctxSleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Run drives the state machine to completion: EXIT (idle budget exhausted
// or single-run batch count reached without follow), or ctx cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	minIdle := s.cfg.MinIdleSeconds
	if minIdle < 0.001 {
		minIdle = 0.001
	}

	idle := newIdleState(minIdle, s.cfg.MaxIdleSeconds)
	runIndex := 1
	batchIndex := 1
	st := stInit

	var pairs []provider.EncodedRow

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch st {
		case stInit:
			s.log.Info().Str("table", s.cfg.Table).Msg("scheduler init")
			st = stPrepare

		case stPrepare:
			runIndex = 1
			batchIndex = 1
			idle = newIdleState(minIdle, s.cfg.MaxIdleSeconds)
			st = stSelect

		case stSelect:
			s.observer.BatchStarted(runIndex, batchIndex)
			ids, err := s.selector.SelectNullIDs(ctx, s.cfg.Table, s.cfg.OutputCol, s.cfg.PK, s.cfg.BatchSize)
			if err != nil {
				return fmt.Errorf("scheduler select: %w", err)
			}
			if len(ids) == 0 {
				st = stEmpty
				continue
			}
			shards := worker.Shard(ids, s.cfg.Workers)
			results := s.pool.Dispatch(ctx, shards, batchIndex, s.cfg.Verbose)
			idle.reset(minIdle)

			pairs = pairs[:0]
			for _, r := range results {
				if r.Err != nil {
					s.log.Error().Err(r.Err).Int("shard", r.ShardIndex).
						Msg(engineerr.ErrWorkerFailure.Error())
					continue
				}
				pairs = append(pairs, r.Pairs...)
			}
			st = stCollect

		case stEmpty:
			s.observer.BatchEmpty(runIndex, batchIndex)
			st = stIdle

		case stCollect:
			st = stUpdate

		case stUpdate:
			if s.cfg.DryRun {
				s.observer.BatchCompleted(runIndex, batchIndex, updater.Report{Applied: len(pairs)})
			} else {
				report := s.updater.Apply(ctx, s.cfg.Table, s.cfg.OutputCol, s.cfg.PK, s.cfg.PKType, pairs, batchIndex)
				s.observer.BatchCompleted(runIndex, batchIndex, report)
			}
			st = stDecide

		case stDecide:
			batchIndex++
			switch {
			case !s.cfg.Follow && batchIndex > s.cfg.NumBatches:
				st = stExit
			case s.cfg.Follow && batchIndex > s.cfg.NumBatches:
				st = stRunEnd
			default:
				st = stSelect
			}

		case stRunEnd:
			s.observer.RunFinished(runIndex)
			runIndex++
			batchIndex = 1
			st = stSelect

		case stIdle:
			sleepFor, exhausted := idle.next()
			if exhausted {
				st = stExit
				continue
			}
			s.observer.IdleWaiting(sleepFor, idle.spent, idle.budget)
			if !s.sleep(ctx, sleepFor) {
				return ctx.Err()
			}
			idle.advance(sleepFor)
			st = stSelect

		case stExit:
			s.log.Info().Msg("scheduler exit")
			return nil
		}
	}
}
