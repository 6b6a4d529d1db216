package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	puts int
	key  string
}

func (f *fakeBackend) Put(ctx context.Context, objectKey string, parquet []byte) error {
	f.puts++
	f.key = objectKey
	return nil
}

func decodedCSVJob(t *testing.T, parent *FileWriteJob, rows string) *Job {
	t.Helper()
	job := &Job{Schema: SchemaStockEOD, Body: []byte(stockEODHeader + rows), Parent: parent}
	stage := DecodeStage(nil, nil)
	_, _, err := stage(job)
	require.NoError(t, err)
	return job
}

const stockEODHeader = "created,last_trade,open,high,low,close,volume,count,bid_size,bid_exchange,bid,bid_condition,ask_size,ask_exchange,ask,ask_condition\n"

// TestFinalizeStageEmitsOnceAcrossSiblingJobs reproduces three decoded
// items sharing one FileWriteJob and running them all through finalize:
// only the item whose decode call closed the barrier should trigger a
// Put, never every sibling re-observing IsComplete() as true.
func TestFinalizeStageEmitsOnceAcrossSiblingJobs(t *testing.T) {
	fwj := NewFileWriteJob("obj", 3)
	row := "2024-01-02T09:30:00.000,2024-01-02T16:00:00.000,100.0,101.5,99.5,101.0,1000000,5000,10,1,100.9,0,10,1,101.1,0\n"

	jobs := []*Job{
		decodedCSVJob(t, fwj, row),
		decodedCSVJob(t, fwj, row),
		decodedCSVJob(t, fwj, row),
	}

	closed := 0
	for _, j := range jobs {
		if j.BarrierClosed {
			closed++
		}
	}
	require.Equal(t, 1, closed, "exactly one decoded item should observe the barrier closing")

	backend := &fakeBackend{}
	var finalizedCalls int
	hooks := Hooks{OnFinalized: func(ctx context.Context, objectKey string, rows int64) error {
		finalizedCalls++
		return nil
	}}
	stage := FinalizeStage(context.Background(), backend, hooks, nil, nil)

	for _, j := range jobs {
		_, fwd, err := stage(j)
		require.NoError(t, err)
		assert.False(t, fwd)
	}

	assert.Equal(t, 1, backend.puts, "finalize must write the file exactly once")
	assert.Equal(t, 1, finalizedCalls, "OnFinalized must run exactly once")
	assert.Equal(t, "obj", backend.key)
}

// TestFinalizeStageSkipsOnlyOnBarrierClose verifies the withheld-file
// path also fires exactly once, via OnSkipped, when any sibling item
// had no upstream data.
func TestFinalizeStageSkipsOnlyOnBarrierClose(t *testing.T) {
	fwj := NewFileWriteJob("obj-skip", 2)

	nilBodyJob := &Job{Schema: SchemaStockEOD, Body: nil, Parent: fwj}
	decodeStage := DecodeStage(nil, nil)
	_, _, err := decodeStage(nilBodyJob)
	require.NoError(t, err)

	row := "2024-01-02T09:30:00.000,2024-01-02T16:00:00.000,100.0,101.5,99.5,101.0,1000000,5000,10,1,100.9,0,10,1,101.1,0\n"
	secondJob := decodedCSVJob(t, fwj, row)

	jobs := []*Job{nilBodyJob, secondJob}
	closed := 0
	for _, j := range jobs {
		if j.BarrierClosed {
			closed++
		}
	}
	require.Equal(t, 1, closed)

	backend := &fakeBackend{}
	var skippedCalls int
	hooks := Hooks{OnSkipped: func(ctx context.Context, objectKey string) error {
		skippedCalls++
		return nil
	}}
	stage := FinalizeStage(context.Background(), backend, hooks, nil, nil)

	for _, j := range jobs {
		_, fwd, err := stage(j)
		require.NoError(t, err)
		assert.False(t, fwd)
	}

	assert.Equal(t, 0, backend.puts)
	assert.Equal(t, 1, skippedCalls, "OnSkipped must run exactly once")
}
