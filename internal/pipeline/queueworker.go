package pipeline

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// pollInterval is how often a worker goroutine wakes to check whether
// the stage has been asked to stop, in between items arriving on the
// input channel.
const pollInterval = 100 * time.Millisecond

// drainJoinTimeout bounds how long Stop waits for worker goroutines to
// exit before giving up and returning anyway.
const drainJoinTimeout = 2 * time.Second

// ProcessFunc performs a stage's work on one Job. A forwarding stage
// returns the Job to pass to the next stage and ok=true; a terminal
// stage (or a stage that intentionally drops this Job, e.g. an
// incomplete FileWriteJob at finalize) returns ok=false. An error
// latches the stage and stops all of its workers.
type ProcessFunc func(job *Job) (out *Job, ok bool, err error)

// QueueWorker is a generic bounded-queue pipeline stage: numThreads
// goroutines pull from an input channel, call process, and forward a
// non-nil result to the chained stage if one is set. The first error
// observed by any worker is latched and surfaces via RaiseIfFailed();
// later errors are dropped.
type QueueWorker struct {
	name       string
	numThreads int
	process    ProcessFunc
	log        *zap.SugaredLogger

	queue   chan *Job
	chained *QueueWorker

	running int32 // atomic bool
	wg      sync.WaitGroup

	errOnce sync.Once
	errMu   sync.Mutex
	err     error

	inFlight sync.WaitGroup // tracks jobs submitted but not yet fully processed
}

// NewQueueWorker constructs a stage named name with numThreads worker
// goroutines, each invoking process. Use Chain to wire a successor
// before calling Start.
func NewQueueWorker(name string, numThreads int, process ProcessFunc, log *zap.SugaredLogger) *QueueWorker {
	if numThreads < 1 {
		numThreads = 1
	}
	return &QueueWorker{
		name:       name,
		numThreads: numThreads,
		process:    process,
		log:        log,
		queue:      make(chan *Job, 4096),
	}
}

// Chain sets this worker's successor stage and returns it, so callers
// can write fetch.Chain(decode).Chain(finalize). A worker has at most
// one successor.
func (q *QueueWorker) Chain(next *QueueWorker) *QueueWorker {
	q.chained = next
	return next
}

// Submit enqueues a Job for this stage. Non-blocking unless the
// (large) internal buffer is full.
func (q *QueueWorker) Submit(job *Job) {
	q.inFlight.Add(1)
	q.queue <- job
}

// QueueDepth reports the number of Jobs currently buffered for this
// stage, for diagnostic logging.
func (q *QueueWorker) QueueDepth() int {
	return len(q.queue)
}

// Start spawns numThreads worker goroutines. Idempotent.
func (q *QueueWorker) Start() {
	if !atomic.CompareAndSwapInt32(&q.running, 0, 1) {
		return
	}
	q.errMu.Lock()
	q.err = nil
	q.errMu.Unlock()
	q.errOnce = sync.Once{}

	if q.log != nil {
		q.log.Debugw("starting pipeline stage", "stage", q.name, "threads", q.numThreads)
	}

	for i := 0; i < q.numThreads; i++ {
		q.wg.Add(1)
		go q.work()
	}
}

func (q *QueueWorker) work() {
	defer q.wg.Done()
	for {
		if atomic.LoadInt32(&q.running) == 0 {
			q.drainAbandoned()
			return
		}

		var job *Job
		select {
		case j, ok := <-q.queue:
			if !ok {
				return
			}
			job = j
		case <-time.After(pollInterval):
			continue
		}

		out, fwd, err := q.process(job)
		if err != nil {
			q.latch(err)
			atomic.StoreInt32(&q.running, 0)
			q.inFlight.Done()
			q.drainAbandoned()
			continue
		}
		if fwd && q.chained != nil && out != nil {
			q.chained.Submit(out)
		}
		q.inFlight.Done()
	}
}

// drainAbandoned discards whatever is currently buffered in the queue
// without processing it, calling inFlight.Done() for each so a pending
// WaitForDrain unblocks instead of hanging on jobs that will never be
// picked up after a latched error stops the stage. Safe to call from
// multiple workers concurrently — each buffered Job is received by
// exactly one of them.
func (q *QueueWorker) drainAbandoned() {
	for {
		select {
		case <-q.queue:
			q.inFlight.Done()
		default:
			return
		}
	}
}

func (q *QueueWorker) latch(err error) {
	q.errOnce.Do(func() {
		q.errMu.Lock()
		q.err = err
		q.errMu.Unlock()
		if q.log != nil {
			q.log.Errorw("pipeline stage failed", "stage", q.name, "error", err)
		}
	})
}

// WaitForDrain blocks until every Job submitted to this stage has
// either been forwarded or consumed.
func (q *QueueWorker) WaitForDrain() {
	q.inFlight.Wait()
}

// RaiseIfFailed returns the first error captured by any worker in this
// stage, or nil.
func (q *QueueWorker) RaiseIfFailed() error {
	q.errMu.Lock()
	defer q.errMu.Unlock()
	return q.err
}

// Stop signals the worker goroutines to exit and joins them with a
// bounded timeout. Idempotent. Any Jobs still buffered are discarded.
func (q *QueueWorker) Stop() {
	if !atomic.CompareAndSwapInt32(&q.running, 1, 0) {
		return
	}
	if q.log != nil {
		q.log.Debugw("stopping pipeline stage", "stage", q.name)
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(drainJoinTimeout):
		if q.log != nil {
			q.log.Warnw("timed out joining stage workers", "stage", q.name)
		}
	}

	// Each worker already drains its own queue on the way out (see
	// work()/drainAbandoned), but a timed-out join can leave a worker
	// goroutine running past this point; sweep once more so a future
	// Start()+Submit()+WaitForDrain() on this same instance never
	// blocks on an inFlight count left over from a discarded Job.
	q.drainAbandoned()
}
