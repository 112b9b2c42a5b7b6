// Package search implements the one-shot similarity-search query behind
// the "vectorize search" subcommand: encode a query string once, then run
// a single cosine-distance-ordered SELECT against the target table using
// CockroachDB's follower-read timestamp for a cheap, slightly-stale read.
package search

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cockroachdb-vectors/vectorize/internal/provider"
)

// Result is one ranked row: distance ascending (closer first).
type Result struct {
	PK       any
	Source   string
	Distance float64
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func pgIdent(name string) (string, error) {
	if !identRe.MatchString(name) {
		return "", fmt.Errorf("invalid identifier %q", name)
	}
	return `"` + name + `"`, nil
}

// Run encodes query via prov, then runs the cosine-distance ranking query
// against table, returning up to limit results ordered by distance.
func Run(ctx context.Context, pool *pgxpool.Pool, prov provider.Provider, table, pk, sourceCol, embeddingCol, query string, limit int) ([]Result, error) {
	vec, err := prov.EncodeOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	literal := provider.VectorLiteral(vec)

	qTable, err := pgIdent(table)
	if err != nil {
		return nil, err
	}
	qPK, err := pgIdent(pk)
	if err != nil {
		return nil, err
	}
	qSource, err := pgIdent(sourceCol)
	if err != nil {
		return nil, err
	}
	qEmbed, err := pgIdent(embeddingCol)
	if err != nil {
		return nil, err
	}

	sqlStr := fmt.Sprintf(`
		SELECT %s, %s, %s <=> $1 AS distance
		FROM %s AS OF SYSTEM TIME follower_read_timestamp()
		WHERE %s IS NOT NULL
		ORDER BY %s <=> $1
		LIMIT $2
	`, qPK, qSource, qEmbed, qTable, qEmbed, qEmbed)

	rows, err := pool.Query(ctx, sqlStr, literal, limit)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.PK, &r.Source, &r.Distance); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FormatResult renders one result the way §6 specifies:
// "distance --> pk\nsource\n".
func FormatResult(r Result) string {
	return fmt.Sprintf("%g --> %v\n%s\n", r.Distance, r.PK, r.Source)
}
