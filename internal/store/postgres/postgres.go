// Package postgres is the CockroachDB-backed store.Store implementation:
// schema introspection, paged NULL-ID selection, text fetch, and batched
// embedding UPDATEs, all over jackc/pgx/v5's pgxpool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/cockroachdb-vectors/vectorize/internal/engineerr"
	"github.com/cockroachdb-vectors/vectorize/internal/store"
)

var (
	// ErrNoPrimaryKey is returned by PrimaryKey when the table has none.
	ErrNoPrimaryKey = fmt.Errorf("%w: table has no primary key", engineerr.ErrSchema)
	// ErrNotVectorColumn is returned by EnsureVectorColumn when the named
	// column exists but is not a VECTOR type.
	ErrNotVectorColumn = fmt.Errorf("%w: column exists and is not a vector column", engineerr.ErrSchema)
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// pgIdent double-quotes a SQL identifier after validating it against a
// strict allow-list, so table/column names supplied on the command line
// can never be used to inject SQL via the identifier position.
func pgIdent(name string) (string, error) {
	if !identRe.MatchString(name) {
		return "", fmt.Errorf("invalid identifier %q", name)
	}
	return `"` + name + `"`, nil
}

// Store implements store.Store against a CockroachDB cluster.
type Store struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// Open connects with the given pool configuration. maxConns bounds the
// pool's MaxConns; callers pass workers for the main pool and 2 for each
// per-worker pool. log is attached to the Store for dry-run DDL reporting
// and other store-level diagnostics, mirroring how Updater and Scheduler
// take their own zerolog.Logger.
func Open(ctx context.Context, connString string, maxConns int32, log zerolog.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	cfg.MaxConns = maxConns
	if cfg.MinConns < 1 {
		cfg.MinConns = 1
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// PrimaryKey discovers the table's primary-key column and SQL type by
// walking pg_index/pg_attribute/pg_type, the same catalog query CockroachDB
// exposes for Postgres-wire compatibility.
func (s *Store) PrimaryKey(ctx context.Context, table string) (string, string, error) {
	const q = `
		SELECT a.attname, format_type(a.atttypid, a.atttypmod)
		FROM pg_index i
		JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
		WHERE i.indrelid = $1::regclass AND i.indisprimary
		ORDER BY array_position(i.indkey, a.attnum)
		LIMIT 1
	`
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return "", "", fmt.Errorf("acquire: %w", err)
	}
	defer conn.Release()

	var name, sqlType string
	if err := conn.QueryRow(ctx, q, table).Scan(&name, &sqlType); err != nil {
		return "", "", fmt.Errorf("%w: %s: %v", ErrNoPrimaryKey, table, err)
	}
	return name, sqlType, nil
}

// EnsureVectorColumn verifies or creates the output vector column.
func (s *Store) EnsureVectorColumn(ctx context.Context, table, column string, dim int, dryRun bool) error {
	qTable, err := pgIdent(table)
	if err != nil {
		return err
	}
	qCol, err := pgIdent(column)
	if err != nil {
		return err
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire: %w", err)
	}
	defer conn.Release()

	const existsQ = `
		SELECT format_type(a.atttypid, a.atttypmod)
		FROM pg_attribute a
		WHERE a.attrelid = $1::regclass AND a.attname = $2 AND NOT a.attisdropped
	`
	var existingType string
	err = conn.QueryRow(ctx, existsQ, table, column).Scan(&existingType)
	if err == nil {
		if !strings.Contains(strings.ToLower(existingType), "vector") {
			return fmt.Errorf("%w: %s.%s is %q", ErrNotVectorColumn, table, column, existingType)
		}
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("check existing column: %w", err)
	}

	ddl := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s VECTOR(%d)", qTable, qCol, dim)
	if dryRun {
		s.log.Info().Str("ddl", ddl).Msg("dry-run: would execute")
		return nil
	}
	_, err = conn.Exec(ctx, ddl)
	if err != nil {
		return fmt.Errorf("add vector column: %w", err)
	}
	return nil
}

// SelectNullIDs returns up to limit primary-key values whose output
// column is NULL. One attempt; retry lives in internal/selector.
func (s *Store) SelectNullIDs(ctx context.Context, table, outputCol, pk string, limit int) ([]any, error) {
	qTable, err := pgIdent(table)
	if err != nil {
		return nil, err
	}
	qOut, err := pgIdent(outputCol)
	if err != nil {
		return nil, err
	}
	qPK, err := pgIdent(pk)
	if err != nil {
		return nil, err
	}

	sqlStr := fmt.Sprintf(`SELECT %s FROM %s WHERE %s IS NULL LIMIT $1`, qPK, qTable, qOut)

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, sqlStr, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []any
	for rows.Next() {
		var id any
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountNullIDs counts rows whose output column is NULL, for the Observer's
// follow-mode progress-bar total.
func (s *Store) CountNullIDs(ctx context.Context, table, outputCol, pk string) (int64, error) {
	qTable, err := pgIdent(table)
	if err != nil {
		return 0, err
	}
	qOut, err := pgIdent(outputCol)
	if err != nil {
		return 0, err
	}
	_ = pk

	sqlStr := fmt.Sprintf(`SELECT count(*) FROM %s WHERE %s IS NULL`, qTable, qOut)

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire: %w", err)
	}
	defer conn.Release()

	var n int64
	if err := conn.QueryRow(ctx, sqlStr).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// FetchTexts loads the input text for exactly the given key shard.
func (s *Store) FetchTexts(ctx context.Context, table, inputCol, pk string, keys []any) ([]store.TextRow, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	qTable, err := pgIdent(table)
	if err != nil {
		return nil, err
	}
	qIn, err := pgIdent(inputCol)
	if err != nil {
		return nil, err
	}
	qPK, err := pgIdent(pk)
	if err != nil {
		return nil, err
	}

	sqlStr := fmt.Sprintf(`SELECT %s, %s FROM %s WHERE %s = ANY($1)`, qPK, qIn, qTable, qPK)

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, sqlStr, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.TextRow
	for rows.Next() {
		var r store.TextRow
		if err := rows.Scan(&r.Key, &r.Text); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ApplyEmbeddings runs one batched UPDATE inside its own transaction,
// casting each key literal to pkType (REDESIGN FLAGS: cast the incoming
// literal to the primary key's declared type, not the pk column to
// ::STRING).
func (s *Store) ApplyEmbeddings(ctx context.Context, table, outputCol, pk, pkType string, keys []any, vectors []string) error {
	if len(keys) != len(vectors) {
		return fmt.Errorf("keys/vectors length mismatch: %d vs %d", len(keys), len(vectors))
	}
	if len(keys) == 0 {
		return nil
	}
	qTable, err := pgIdent(table)
	if err != nil {
		return err
	}
	qOut, err := pgIdent(outputCol)
	if err != nil {
		return err
	}
	qPK, err := pgIdent(pk)
	if err != nil {
		return err
	}

	valueRows := make([]string, len(keys))
	args := make([]any, 0, len(keys)*2)
	for i := range keys {
		n1 := len(args) + 1
		n2 := len(args) + 2
		valueRows[i] = fmt.Sprintf("($%d::%s, $%d::vector)", n1, pkType, n2)
		args = append(args, keys[i], vectors[i])
	}

	sqlStr := fmt.Sprintf(
		`UPDATE %s AS t SET %s = v.embedding FROM (VALUES %s) AS v(pk, embedding) WHERE t.%s = v.pk`,
		qTable, qOut, strings.Join(valueRows, ", "), qPK,
	)

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.Exec(ctx, sqlStr, args...); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("update: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
