// Package store defines the storage-side seam the vectorization engine
// drives — schema introspection, paged NULL-ID selection, text fetch, and
// batched embedding application — independent of the concrete backend.
// Concrete CockroachDB access lives in internal/store/postgres; unit tests
// across the engine exercise this interface with fakes, the way the
// retrieval pack's backfill tool tests against a backfillDB seam.
package store

import "context"

// TextRow is one (primary_key_value, input_text) pair fetched for a shard.
type TextRow struct {
	Key  any
	Text string
}

// Schema is what the Schema Introspector discovers about the target table.
type Schema struct {
	PrimaryKeyName   string
	PrimaryKeySQL    string
	OutputColExists  bool
	OutputColDim     int
}

// Store is the seam every SQL operation the engine needs goes through.
// The postgres package provides the only production implementation;
// package-level tests use hand-written fakes.
type Store interface {
	// PrimaryKey discovers the table's primary-key column name and SQL
	// type. The postgres implementation returns postgres.ErrNoPrimaryKey
	// if the table has none.
	PrimaryKey(ctx context.Context, table string) (name, sqlType string, err error)

	// EnsureVectorColumn verifies (or, unless dryRun, creates) the output
	// vector column. The postgres implementation returns
	// postgres.ErrNotVectorColumn if a column of that name already exists
	// with a non-vector type.
	EnsureVectorColumn(ctx context.Context, table, column string, dim int, dryRun bool) error

	// SelectNullIDs returns up to limit primary-key values whose output
	// column is NULL, in the Work Selector's retry loop.
	SelectNullIDs(ctx context.Context, table, outputCol, pk string, limit int) ([]any, error)

	// CountNullIDs is the Observer's follow-mode progress-bar total.
	CountNullIDs(ctx context.Context, table, outputCol, pk string) (int64, error)

	// FetchTexts loads the input text for exactly the given key shard.
	FetchTexts(ctx context.Context, table, inputCol, pk string, keys []any) ([]TextRow, error)

	// ApplyEmbeddings runs one batched UPDATE, casting each key literal to
	// pkType, inside its own transaction. One attempt; retry/backoff is
	// the updater package's responsibility, not the store's.
	ApplyEmbeddings(ctx context.Context, table, outputCol, pk, pkType string, keys []any, vectors []string) error

	// Close releases any pooled connections. Safe to call once at
	// process shutdown.
	Close()
}
