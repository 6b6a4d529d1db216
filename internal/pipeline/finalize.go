package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"thetaclient/internal/metrics"
	"thetaclient/internal/table"
)

// Backend is the terminal sink finalize writes a completed file to, an
// S3-compatible object store for Request. Stream does not use a
// Backend; it runs its own finalize function that publishes tables on
// a channel. Put must be idempotent under the same objectKey.
type Backend interface {
	Put(ctx context.Context, objectKey string, parquet []byte) error
}

// Hooks lets a caller observe finalize outcomes beyond the Backend
// write itself, such as an audit ledger entry, without the stage
// needing to know about that concern directly. Either
// field may be nil.
type Hooks struct {
	// OnFinalized runs after a successful Put, with the final row
	// count. A non-nil error fails the stage the same as a Put
	// failure.
	OnFinalized func(ctx context.Context, objectKey string, rows int64) error

	// OnSkipped runs instead of Put when a file is withheld because at
	// least one constituent item had no upstream data.
	OnSkipped func(ctx context.Context, objectKey string) error
}

// FinalizeStage builds the terminal stage's ProcessFunc: once a
// FileWriteJob's every item has crossed the barrier, concatenate its
// tables, serialize to Parquet, and hand the bytes to backend. A
// FileWriteJob with any skipped item is dropped entirely ("all or
// nothing" file semantics) rather than partially written.
//
// Every item of a FileWriteJob is its own *Job sharing the same Parent,
// so this stage is invoked once per item, but only the one item whose
// decode call closed the barrier (job.BarrierClosed) acts — every
// other invocation for the same file is a no-op. Checking
// Parent.IsComplete() here instead would have every sibling item
// observe completion as true and emit the file once per item.
func FinalizeStage(ctx context.Context, backend Backend, hooks Hooks, met metrics.Collector, log *zap.SugaredLogger) ProcessFunc {
	return func(job *Job) (*Job, bool, error) {
		if !job.BarrierClosed {
			return nil, false, nil
		}
		parent := job.Parent

		objectKey := parent.ObjectKey

		if parent.HasSkips() {
			if log != nil {
				log.Warnw("file withheld, at least one item had no data", "object_key", objectKey)
			}
			if met != nil {
				met.RecordFileSkipped(objectKey)
			}
			if hooks.OnSkipped != nil {
				if err := hooks.OnSkipped(ctx, objectKey); err != nil {
					return nil, false, fmt.Errorf("finalize %s: %w", objectKey, err)
				}
			}
			return nil, false, nil
		}

		tables := parent.Tables()
		if len(tables) == 0 {
			if log != nil {
				log.Warnw("file has no tables to write", "object_key", objectKey)
			}
			return nil, false, nil
		}

		merged, err := table.Concat(tables)
		if err != nil {
			return nil, false, fmt.Errorf("finalize %s: %w", objectKey, err)
		}
		defer merged.Release()

		payload, err := table.EncodeParquet(merged)
		if err != nil {
			return nil, false, fmt.Errorf("finalize %s: %w", objectKey, err)
		}

		if err := backend.Put(ctx, objectKey, payload); err != nil {
			return nil, false, fmt.Errorf("finalize %s: %w", objectKey, err)
		}
		if hooks.OnFinalized != nil {
			if err := hooks.OnFinalized(ctx, objectKey, merged.NumRows()); err != nil {
				return nil, false, fmt.Errorf("finalize %s: recording outcome: %w", objectKey, err)
			}
		}

		if log != nil {
			log.Debugw("file finalized", "object_key", objectKey, "rows", merged.NumRows(), "bytes", len(payload))
		}
		if met != nil {
			met.RecordFileFinalized(objectKey, int(merged.NumRows()))
		}

		return nil, false, nil
	}
}
