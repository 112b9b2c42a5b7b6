// Package worker implements the fixed-size worker pool that fetches texts
// for an ID shard and runs them through the shared embedding provider.
// Each worker owns a small private connection pool
// (MinConns=1, MaxConns=2); the provider handle is resolved once
// at startup and shared read-only across every worker for the run.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cockroachdb-vectors/vectorize/internal/engineerr"
	"github.com/cockroachdb-vectors/vectorize/internal/provider"
	"github.com/cockroachdb-vectors/vectorize/internal/store"
)

// Store is the narrow seam this package needs from internal/store.Store.
type Store interface {
	FetchTexts(ctx context.Context, table, inputCol, pk string, keys []any) ([]store.TextRow, error)
}

// ShardResult is one worker's outcome for one ID shard.
type ShardResult struct {
	ShardIndex int
	Pairs      []provider.EncodedRow
	Err        error
}

// job is one unit of dispatched work: a shard of primary-key values to
// fetch, encode, and report back.
type job struct {
	shardIndex int
	keys       []any
}

// Pool fans shards out over a fixed set of worker goroutines, each with
// its own Store (its own small connection pool) but sharing one provider
// handle.
type Pool struct {
	stores   []Store
	provider provider.Provider
	log      zerolog.Logger

	table, inputCol, pk string
}

// New constructs a Pool with one Store per worker (each backed by its own
// small connection pool) and a shared provider handle.
func New(stores []Store, prov provider.Provider, table, inputCol, pk string, log zerolog.Logger) *Pool {
	if len(stores) < 1 {
		panic("worker: New requires at least one store")
	}
	return &Pool{stores: stores, provider: prov, table: table, inputCol: inputCol, pk: pk, log: log}
}

// Size returns the number of workers in the pool.
func (p *Pool) Size() int { return len(p.stores) }

// Dispatch fans shards out across the pool's workers and blocks until
// every shard has been fetched and encoded (or failed independently).
// A worker error for one shard does not stop the others — captured into
// ShardResult.Err and the batch continues.
func (p *Pool) Dispatch(ctx context.Context, shards [][]any, batchIndex int, verbose bool) []ShardResult {
	jobs := make(chan job, len(shards))
	for i, shard := range shards {
		if len(shard) == 0 {
			continue
		}
		jobs <- job{shardIndex: i, keys: shard}
	}
	close(jobs)

	results := make([]ShardResult, len(shards))
	for i := range results {
		results[i] = ShardResult{ShardIndex: i}
	}

	var mu sync.Mutex
	var wg sync.WaitGroup

	for w := 0; w < len(p.stores); w++ {
		wg.Add(1)
		go func(workerStore Store) {
			defer wg.Done()
			for j := range jobs {
				res := p.runShard(ctx, workerStore, j, batchIndex, verbose)
				mu.Lock()
				results[j.shardIndex] = res
				mu.Unlock()
			}
		}(p.stores[w])
	}
	wg.Wait()

	return results
}

func (p *Pool) runShard(ctx context.Context, s Store, j job, batchIndex int, verbose bool) ShardResult {
	rows, err := s.FetchTexts(ctx, p.table, p.inputCol, p.pk, j.keys)
	if err != nil {
		return ShardResult{ShardIndex: j.shardIndex, Err: fmt.Errorf("%w: %w", engineerr.ErrWorkerFailure, err)}
	}
	if len(rows) == 0 {
		return ShardResult{ShardIndex: j.shardIndex}
	}

	if verbose {
		for i, r := range rows {
			p.log.Info().Msg(fmt.Sprintf("(batch %d, %d/%d) Updating vector for row id %v: '%s'",
				batchIndex, i+1, len(rows), r.Key, truncate40(r.Text)))
		}
	}

	pairs, err := p.provider.EncodeBatch(ctx, batchIndex, rows, verbose)
	if err != nil {
		return ShardResult{ShardIndex: j.shardIndex, Err: fmt.Errorf("%w: %w", engineerr.ErrWorkerFailure, err)}
	}
	return ShardResult{ShardIndex: j.shardIndex, Pairs: pairs}
}

// truncate40 returns the first 40 runes of s, for runShard's verbose
// per-row log line.
func truncate40(s string) string {
	runes := []rune(s)
	if len(runes) <= 40 {
		return s
	}
	return string(runes[:40])
}

// Shard splits ids into up to n roughly-equal, order-preserving shards.
func Shard(ids []any, n int) [][]any {
	if n < 1 {
		n = 1
	}
	if len(ids) == 0 {
		return nil
	}
	if n > len(ids) {
		n = len(ids)
	}
	shards := make([][]any, n)
	per := len(ids) / n
	rem := len(ids) % n
	start := 0
	for i := 0; i < n; i++ {
		size := per
		if i < rem {
			size++
		}
		shards[i] = ids[start : start+size]
		start += size
	}
	return shards
}
