// Package provider defines the embedding-provider capability surface the
// vectorization engine drives — one provider handle resolved at startup
// and shared read-only across the worker pool for the life of a run.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb-vectors/vectorize/internal/store"
)

// EncodedRow pairs a primary-key value with the vector computed for it.
// Key is opaque (driver-scanned) the same way store.TextRow's Key is.
type EncodedRow struct {
	Key    any
	Vector []float32
}

// Provider is the uniform capability surface every embedding backend
// implements, whether it calls a hosted API or runs in-process.
type Provider interface {
	ID() string
	Label() string
	Description() string
	Dimension() int
	EncodeOne(ctx context.Context, text string) ([]float32, error)
	EncodeBatch(ctx context.Context, batchIndex int, rows []store.TextRow, verbose bool) ([]EncodedRow, error)
}

// Non-retriable validation errors. The engine treats all three as
// batch-fatal (wrapped into engineerr.ErrWorkerFailure by the worker pool)
// rather than retrying — retrying a too-large input cannot succeed.
var (
	ErrInputTooLarge  = errors.New("input exceeds provider token limit")
	ErrBatchTooLarge  = errors.New("batch exceeds provider batch-size limit")
	ErrBudgetExceeded = errors.New("batch exceeds provider total-token budget")
)

// VectorLiteral renders vec in the wire format CockroachDB's VECTOR type
// parses: "[f1,f2,...]". Used by both the updater (UPDATE statements) and
// the search package (query vector literal).
func VectorLiteral(vec []float32) string {
	buf := make([]byte, 0, len(vec)*8+2)
	buf = append(buf, '[')
	for i, f := range vec {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = appendFloat32(buf, f)
	}
	buf = append(buf, ']')
	return string(buf)
}

func appendFloat32(buf []byte, f float32) []byte {
	return append(buf, []byte(fmt.Sprintf("%g", f))...)
}
