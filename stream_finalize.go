package thetaclient

import (
	"context"

	"go.uber.org/zap"

	"thetaclient/internal/metrics"
	"thetaclient/internal/pipeline"
	"thetaclient/internal/table"
)

// streamFinalizeFunc builds the streaming variant of the finalize
// stage: instead of serializing to Parquet and uploading, it publishes
// the merged in-memory table (or a skip marker) on results. Same
// completion-barrier semantics as pipeline.FinalizeStage — only the
// item whose decode call closed the barrier emits; every other
// sibling invocation for the same file is a no-op.
func streamFinalizeFunc(ctx context.Context, results chan<- StreamResult, met metrics.Collector, log *zap.SugaredLogger) pipeline.ProcessFunc {
	return func(job *pipeline.Job) (*pipeline.Job, bool, error) {
		if !job.BarrierClosed {
			return nil, false, nil
		}
		parent := job.Parent

		objectKey := parent.ObjectKey

		if parent.HasSkips() {
			if met != nil {
				met.RecordFileSkipped(objectKey)
			}
			return publish(ctx, results, StreamResult{ObjectKey: objectKey, Skipped: true})
		}

		tables := parent.Tables()
		if len(tables) == 0 {
			return publish(ctx, results, StreamResult{ObjectKey: objectKey, Skipped: true})
		}

		merged, err := table.Concat(tables)
		if err != nil {
			return nil, false, err
		}

		if log != nil {
			log.Debugw("stream item finalized", "object_key", objectKey, "rows", merged.NumRows())
		}
		if met != nil {
			met.RecordFileFinalized(objectKey, int(merged.NumRows()))
		}

		return publish(ctx, results, StreamResult{ObjectKey: objectKey, Table: merged})
	}
}

func publish(ctx context.Context, results chan<- StreamResult, r StreamResult) (*pipeline.Job, bool, error) {
	select {
	case results <- r:
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
	return nil, false, nil
}
