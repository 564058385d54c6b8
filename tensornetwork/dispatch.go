package tensornetwork

import (
	"sync"

	"github.com/theapemachine/errnie"
)

// dispatchQueue is the façade's single-consumer FIFO of closures (spec
// §4.3/§5). Grounded in qpool.Q's job-channel + background worker, adapted
// down from a scaling worker pool to exactly one consumer goroutine, since
// FIFO between a single producer and the consumer is a spec invariant a
// multi-worker pool would violate.
type dispatchQueue struct {
	jobs chan func()

	mu      sync.Mutex
	cond    *sync.Cond
	pending int
}

func newDispatchQueue() *dispatchQueue {
	q := &dispatchQueue{jobs: make(chan func(), 256)}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

func (q *dispatchQueue) run() {
	for fn := range q.jobs {
		fn()
		q.mu.Lock()
		q.pending--
		if q.pending == 0 {
			q.cond.Broadcast()
		}
		q.mu.Unlock()
	}
}

// submit enqueues fn for the consumer goroutine. Callers must have already
// validated fn's inputs; per spec §7/§9, gate kernels dispatched onto the
// queue perform no fallible checks.
func (q *dispatchQueue) submit(fn func()) {
	q.mu.Lock()
	q.pending++
	q.mu.Unlock()
	q.jobs <- fn
}

// Finish blocks until every submitted closure, as of the call, has run.
func (q *dispatchQueue) Finish() {
	q.mu.Lock()
	for q.pending > 0 {
		q.cond.Wait()
	}
	q.mu.Unlock()
}

// IsFinished polls whether the queue is currently drained.
func (q *dispatchQueue) IsFinished() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending == 0
}

// Dump discards every closure still sitting in the channel without running
// it. In-flight closures (already handed to the consumer) complete, matching
// spec §5's "dump abandons queued gates; in-flight gates complete."
func (q *dispatchQueue) Dump() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		select {
		case <-q.jobs:
			q.pending--
			errnie.Error("dispatchQueue.Dump - dropped a queued closure")
		default:
			if q.pending == 0 {
				q.cond.Broadcast()
			}
			return
		}
	}
}
