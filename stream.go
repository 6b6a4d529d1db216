package thetaclient

import (
	"context"
	"time"

	"thetaclient/internal/pipeline"
	"thetaclient/internal/planner"
	"thetaclient/internal/table"
)

// StreamResult is one item of a Stream sequence: either a finalized
// table (Skipped false) or a placeholder for a file withheld because a
// constituent item had no upstream data (Skipped true, Table zero
// value).
type StreamResult struct {
	ObjectKey string
	Table     table.Table
	Skipped   bool
}

// Stream runs query through a dedicated pipeline (its own fetch/decode/
// finalize stages, sharing this Client's HTTP client, calendar, and
// dedup state) and returns a channel yielding exactly one StreamResult
// per planned file, in finalization order, then closing. The returned
// error channel carries at most one error, after which result delivery
// stops. Unlike Request, a streamed file's tables are handed directly
// to the caller rather than serialized to Parquet and uploaded — the
// finalize stage's Backend/ledger hooks don't apply here.
func (c *Client) Stream(ctx context.Context, query planner.Query) (<-chan StreamResult, <-chan error) {
	results := make(chan StreamResult, 1)
	errs := make(chan error, 1)

	go func() {
		defer close(results)
		defer close(errs)

		groups, totalHTTP, err := c.planAndFilter(ctx, query)
		if err != nil {
			errs <- err
			return
		}
		c.met.StartRequest(totalHTTP, len(groups))
		start := time.Now()
		var runErr error
		defer func() { c.met.EndRequest(time.Since(start), runErr) }()

		fetch := pipeline.NewQueueWorker("stream-fetch", c.cfg.NumThreads, pipeline.FetchStage(c.httpClient, c.met, c.log), c.log)
		decode := pipeline.NewQueueWorker("stream-decode", 1, pipeline.DecodeStage(c.met, c.log), c.log)
		finalize := pipeline.NewQueueWorker("stream-finalize", 1, streamFinalizeFunc(ctx, results, c.met, c.log), c.log)

		fetch.Chain(decode).Chain(finalize)
		fetch.Start()
		decode.Start()
		finalize.Start()
		defer func() {
			fetch.Stop()
			decode.Stop()
			finalize.Stop()
		}()

		schema := pipeline.Schema(query.Schema())
		for _, g := range groups {
			fwj := pipeline.NewFileWriteJob(g.ObjectKey, len(g.URLs))
			for _, url := range g.URLs {
				fetch.Submit(&pipeline.Job{URL: url, Schema: schema, Parent: fwj})
			}
		}

		fetch.WaitForDrain()
		if err := fetch.RaiseIfFailed(); err != nil {
			runErr = err
			errs <- err
			return
		}
		decode.WaitForDrain()
		if err := decode.RaiseIfFailed(); err != nil {
			runErr = err
			errs <- err
			return
		}
		finalize.WaitForDrain()
		if err := finalize.RaiseIfFailed(); err != nil {
			runErr = err
			errs <- err
			return
		}
	}()

	return results, errs
}
