// Package ledger records which output files have been finalized and
// which were withheld, so a re-run of the same query range
// does not need to re-derive that state from the object store alone.
package ledger

import "context"

// FailedFile is one item that could not be finalized, kept for
// operator triage rather than retried automatically.
type FailedFile struct {
	ObjectKey string
	URL       string
	Reason    string
}

// Ledger is the finalize stage's audit trail. A request's caller
// consults it after planning and before submitting work (skip object
// keys already recorded) and writes to it after a file finalizes or is
// withheld.
type Ledger interface {
	// IsFinalized reports whether objectKey has already been written,
	// independent of what the object store itself reports (the object
	// store and ledger can disagree after a partial failure; the
	// caller decides which to trust).
	IsFinalized(ctx context.Context, objectKey string) (bool, error)

	// MarkFinalized records objectKey as written with rows rows.
	MarkFinalized(ctx context.Context, objectKey string, rows int64) error

	// RecordFailures appends to the failed-item audit trail. Never
	// returns a "duplicate" error; re-recording the same failure is a
	// no-op.
	RecordFailures(ctx context.Context, files []FailedFile) error
}

// Noop discards everything. Used when no Postgres DSN is configured.
type Noop struct{}

func (Noop) IsFinalized(context.Context, string) (bool, error)  { return false, nil }
func (Noop) MarkFinalized(context.Context, string, int64) error { return nil }
func (Noop) RecordFailures(context.Context, []FailedFile) error { return nil }

var _ Ledger = Noop{}
