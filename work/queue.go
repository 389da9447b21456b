package work

import (
	"context"
	"sync"

	"k8s.io/klog/v2"
)

// Queue is a bounded pool of worker goroutines draining a single shared FIFO queue of
// Work items. All workers pull from the same deque (no per-worker
// queues), so enqueue order determines start order across the whole pool, and a
// Snapshot can see every item any worker currently holds as well as everything still
// waiting -- the invariant Barrier's fencing depends on.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond // unused today (queue is unbounded); kept so a future bounded mode needs no field changes

	pending []Work
	running []Work // one slot per worker; nil when that worker is idle

	stopped bool
	wg      sync.WaitGroup

	ctx context.Context
}

// NewQueue starts numWorkers worker goroutines draining work enqueued via Enqueue, each
// run with ctx. Workers exit once Shutdown has been called and all pending work drained.
func NewQueue(ctx context.Context, numWorkers int) *Queue {
	if numWorkers < 1 {
		numWorkers = 1
	}
	q := &Queue{running: make([]Work, numWorkers), ctx: ctx}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	for i := 0; i < numWorkers; i++ {
		q.wg.Add(1)
		go q.runloop(i)
	}
	return q
}

// Enqueue appends w to the tail of the pending queue. It returns an error if the queue
// has been shut down.
func (q *Queue) Enqueue(w Work) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return errShutdown
	}
	q.pending = append(q.pending, w)
	q.notEmpty.Signal()
	return nil
}

func (q *Queue) runloop(slot int) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.stopped {
			q.notEmpty.Wait()
		}
		if len(q.pending) == 0 && q.stopped {
			q.mu.Unlock()
			return
		}
		w := q.pending[0]
		q.pending = q.pending[1:]
		q.running[slot] = w
		q.mu.Unlock()

		func() {
			defer func() {
				if r := recover(); r != nil {
					klog.Errorf("work: worker %d recovered from panic running work item: %v", slot, r)
				}
			}()
			_ = w.run(q.ctx)
		}()

		q.mu.Lock()
		q.running[slot] = nil
		q.mu.Unlock()
	}
}

// Snapshot returns every Work item the queue currently knows about: all items any worker
// is actively running, plus every item still waiting in the pending queue. Barrier uses
// this to fence on "everything enqueued so far" without needing a separate
// synchronization channel.
func (q *Queue) Snapshot() []Work {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Work, 0, len(q.pending)+len(q.running))
	for _, w := range q.running {
		if w != nil {
			out = append(out, w)
		}
	}
	out = append(out, q.pending...)
	return out
}

// Shutdown stops accepting new work and blocks until every worker has drained the
// pending queue and exited. Any work already enqueued still runs to completion.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	q.stopped = true
	q.notEmpty.Broadcast()
	q.mu.Unlock()
	q.wg.Wait()
}
