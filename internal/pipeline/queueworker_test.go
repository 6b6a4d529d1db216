package pipeline

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueWorkerForwardsToChained(t *testing.T) {
	var received int32

	sink := NewQueueWorker("sink", 1, func(job *Job) (*Job, bool, error) {
		atomic.AddInt32(&received, 1)
		return nil, false, nil
	}, nil)

	source := NewQueueWorker("source", 2, func(job *Job) (*Job, bool, error) {
		return job, true, nil
	}, nil)
	source.Chain(sink)

	source.Start()
	sink.Start()
	defer source.Stop()
	defer sink.Stop()

	for i := 0; i < 10; i++ {
		source.Submit(&Job{URL: "http://example.test"})
	}

	source.WaitForDrain()
	sink.WaitForDrain()

	require.NoError(t, source.RaiseIfFailed())
	assert.EqualValues(t, 10, atomic.LoadInt32(&received))
}

func TestQueueWorkerLatchesFirstError(t *testing.T) {
	boom := errors.New("boom")
	w := NewQueueWorker("failing", 1, func(job *Job) (*Job, bool, error) {
		return nil, false, boom
	}, nil)
	w.Start()

	w.Submit(&Job{})
	w.WaitForDrain()

	require.Error(t, w.RaiseIfFailed())
	assert.ErrorIs(t, w.RaiseIfFailed(), boom)
	w.Stop()
}

// TestQueueWorkerDrainsAbandonedJobsAfterLatchedError reproduces a
// stage with several jobs already buffered when one of them fails:
// WaitForDrain must still return instead of hanging on the jobs that
// were never picked up once the stage stopped.
func TestQueueWorkerDrainsAbandonedJobsAfterLatchedError(t *testing.T) {
	boom := errors.New("boom")
	var processed int32
	w := NewQueueWorker("failing", 1, func(job *Job) (*Job, bool, error) {
		n := atomic.AddInt32(&processed, 1)
		if n == 1 {
			return nil, false, boom
		}
		return nil, false, nil
	}, nil)
	w.Start()

	for i := 0; i < 5; i++ {
		w.Submit(&Job{})
	}

	done := make(chan struct{})
	go func() {
		w.WaitForDrain()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForDrain hung on abandoned jobs after a latched error")
	}

	require.Error(t, w.RaiseIfFailed())
	assert.ErrorIs(t, w.RaiseIfFailed(), boom)
	w.Stop()
}

func TestQueueWorkerStopIsIdempotent(t *testing.T) {
	w := NewQueueWorker("noop", 1, func(job *Job) (*Job, bool, error) {
		return nil, false, nil
	}, nil)
	w.Start()
	w.Stop()
	w.Stop()

	// Restarting after stop should work.
	w.Start()
	w.Submit(&Job{})
	done := make(chan struct{})
	go func() {
		w.WaitForDrain()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for drain after restart")
	}
	w.Stop()
}
