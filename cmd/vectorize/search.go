package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cockroachdb-vectors/vectorize/internal/dburl"
	"github.com/cockroachdb-vectors/vectorize/internal/search"
)

func newSearchCmd(log zerolog.Logger) *cobra.Command {
	var (
		url, table, modelID, text, sourceCol, embeddingCol string
		limit                                              int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run a one-shot cosine-similarity query against a table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), log, url, table, modelID, text, sourceCol, embeddingCol, limit)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&url, "url", "u", "", "CockroachDB connection URL (required)")
	f.StringVarP(&table, "table", "t", "", "target table (required)")
	f.StringVarP(&modelID, "model", "m", "", "provider id, e.g. local/minilm (required)")
	f.StringVar(&text, "text", "", "query text (required)")
	f.StringVar(&sourceCol, "source", "", "column to print alongside each result (required)")
	f.StringVar(&embeddingCol, "embedding", "", "vector column to rank against (required)")
	f.IntVar(&limit, "limit", 10, "max results")

	for _, name := range []string{"url", "table", "model", "text", "source", "embedding"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func runSearch(ctx context.Context, log zerolog.Logger, url, table, modelID, text, sourceCol, embeddingCol string, limit int) error {
	parsed, err := dburl.Parse(url)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	pool, err := pgxpool.New(ctx, parsed.ConnString)
	if err != nil {
		return fmt.Errorf("search: connect: %w", err)
	}
	defer pool.Close()

	reg := buildRegistry()
	prov, err := reg.Resolve(modelID)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	pkName, _, err := schemaPrimaryKey(ctx, pool, table)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	results, err := search.Run(ctx, pool, prov, table, pkName, sourceCol, embeddingCol, text, limit)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	for _, r := range results {
		fmt.Print(search.FormatResult(r))
	}
	if len(results) == 0 {
		log.Info().Str("table", table).Msg("no matching rows")
	}
	return nil
}

// schemaPrimaryKey discovers table's primary-key column directly, the same
// catalog query store/postgres.Store.PrimaryKey runs, duplicated here since
// search deliberately has no dependency on internal/store (it only needs a
// raw *pgxpool.Pool for one read-only query).
func schemaPrimaryKey(ctx context.Context, pool *pgxpool.Pool, table string) (string, string, error) {
	const q = `
		SELECT a.attname, format_type(a.atttypid, a.atttypmod)
		FROM pg_index i
		JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
		WHERE i.indrelid = $1::regclass AND i.indisprimary
		ORDER BY array_position(i.indkey, a.attnum)
		LIMIT 1
	`
	var name, sqlType string
	if err := pool.QueryRow(ctx, q, table).Scan(&name, &sqlType); err != nil {
		return "", "", fmt.Errorf("primary key lookup for %s: %w", table, err)
	}
	return name, sqlType, nil
}
