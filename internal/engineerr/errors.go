// Package engineerr defines the typed error taxonomy shared across the
// vectorization engine, so call sites can branch with errors.Is/errors.As
// instead of matching on message strings.
package engineerr

import "errors"

// Sentinel kinds. Wrap a cause with fmt.Errorf("...: %w", ErrX) or use the
// constructors below to attach context.
var (
	// ErrConfig marks an invalid configuration discovered before any work
	// starts (bad flags, unknown provider, verbose+progress together).
	ErrConfig = errors.New("config error")

	// ErrSchema marks a fatal mismatch between the declared table and what
	// the engine needs (no primary key, output column exists with a
	// non-vector type).
	ErrSchema = errors.New("schema error")

	// ErrSelectTransient marks exhaustion of the Work Selector's retry
	// budget; fatal to the run.
	ErrSelectTransient = errors.New("select transient error")

	// ErrUpdateFailed marks exhaustion of the Updater's retry budget for a
	// single batch; recorded in the batch report, not fatal to the run.
	ErrUpdateFailed = errors.New("update failed after retries")

	// ErrWorkerFailure marks a worker-side failure for one shard (including
	// provider validation errors); recorded and the run continues.
	ErrWorkerFailure = errors.New("worker failure")
)

// Config returns a ConfigError carrying msg.
func Config(msg string) error { return &taggedError{kind: ErrConfig, msg: msg} }

// Schema returns a SchemaError carrying msg.
func Schema(msg string) error { return &taggedError{kind: ErrSchema, msg: msg} }

type taggedError struct {
	kind error
	msg  string
}

func (e *taggedError) Error() string { return e.msg }
func (e *taggedError) Unwrap() error { return e.kind }
