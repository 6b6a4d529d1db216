package pipeline

import (
	"go.uber.org/zap"

	"thetaclient/internal/metrics"
	"thetaclient/internal/table"
)

// DecodeStage builds the decode stage's ProcessFunc: parse job.Body as
// CSV against job.Schema and attach the resulting table to the parent
// FileWriteJob, or mark the item skipped if fetch found no data. Every
// Job is forwarded to finalize, with job.BarrierClosed set to whether
// this item's call closed the parent's barrier; finalize acts on that
// flag rather than polling the FileWriteJob.
func DecodeStage(met metrics.Collector, log *zap.SugaredLogger) ProcessFunc {
	return func(job *Job) (*Job, bool, error) {
		if job.Body == nil {
			job.BarrierClosed = job.Parent.MarkItemSkipped()
			if log != nil {
				log.Debugw("item skipped, no upstream data", "object_key", job.Parent.ObjectKey, "url", job.URL)
			}
			return job, true, nil
		}

		t, err := table.DecodeCSV(string(job.Schema), job.Body)
		if err != nil {
			return nil, false, err
		}

		job.BarrierClosed = job.Parent.AddTable(t)
		if met != nil {
			met.RecordRowsProcessed(int(t.NumRows()))
		}
		if log != nil {
			log.Debugw("decoded item", "object_key", job.Parent.ObjectKey, "rows", t.NumRows())
		}

		job.Body = nil
		return job, true, nil
	}
}
