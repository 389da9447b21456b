// Package work implements the asynchronous unit-of-work abstraction and bounded worker
// pool collectives run on, grounded on gomlx's internal/workerspool (mutex+cond FIFO job
// queue with a fixed worker count) generalized to also expose the in-flight snapshot a
// Barrier needs for fencing.
package work

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// Work is one asynchronous collective invocation, enqueued on a Queue and run by a
// worker goroutine. Implementations provide run, which executes the body and records
// its completion and error for Wait; Queue only schedules run on a worker goroutine.
type Work interface {
	// Wait blocks until the work item has completed, then returns its error (nil on
	// success). Wait is idempotent: calling it multiple times, concurrently or not,
	// always returns the same result.
	Wait() error

	// IsCompleted reports whether the work item has finished, without blocking.
	IsCompleted() bool

	// run executes the work body on a worker goroutine. It is unexported: only a Queue's
	// runloop may invoke it.
	run(ctx context.Context) error
}

// SourceRanker is implemented by Work produced from a RecvAnysource-style operation,
// exposing which rank the transfer actually matched.
type SourceRanker interface {
	// SourceRank returns the rank the operation matched against. Valid only after Wait
	// returns.
	SourceRank() (int, error)
}

// Synchronizer is implemented by Work whose completion only guarantees the operation has
// been enqueued on the owning device stream, not that the device has finished executing
// it; Synchronize orders the caller's default device stream after that work. It does not
// block the calling goroutine until the device stream has drained.
type Synchronizer interface {
	Synchronize() error
}

// base provides the Wait/IsCompleted machinery shared by every Work implementation: a
// single completion latch guarded by a mutex/cond pair, written exactly once by the
// worker goroutine that runs it.
type base struct {
	mu        sync.Mutex
	cond      *sync.Cond
	completed bool
	err       error
}

func newBase() base {
	return base{}
}

// condLocked returns b's cond, bound to b's own mu, creating it on first use so it is
// never bound to the mutex of a copy. b.mu must be held.
func (b *base) condLocked() *sync.Cond {
	if b.cond == nil {
		b.cond = sync.NewCond(&b.mu)
	}
	return b.cond
}

func (b *base) finish(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.completed {
		return
	}
	b.completed = true
	b.err = err
	b.condLocked().Broadcast()
}

func (b *base) Wait() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for !b.completed {
		b.condLocked().Wait()
	}
	return b.err
}

func (b *base) IsCompleted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.completed
}

// Func adapts a plain function into a Work, for operations with no source-rank
// component (everything but Recv and RecvAnysource); device-resident collectives wrap a
// Func in WithSynchronize.
type Func struct {
	base
	fn func(ctx context.Context) error
}

// NewFunc wraps fn as a Work.
func NewFunc(fn func(ctx context.Context) error) *Func {
	return &Func{base: newBase(), fn: fn}
}

func (w *Func) run(ctx context.Context) error {
	err := w.fn(ctx)
	w.finish(err)
	return err
}

var _ Work = (*Func)(nil)

// WithSource adapts a function returning a matched source rank into a Work that also
// implements SourceRanker, used for RecvAnysource.
type WithSource struct {
	base
	fn     func(ctx context.Context) (int, error)
	source int
}

func NewWithSource(fn func(ctx context.Context) (int, error)) *WithSource {
	return &WithSource{base: newBase(), fn: fn}
}

func (w *WithSource) run(ctx context.Context) error {
	src, err := w.fn(ctx)
	w.mu.Lock()
	w.source = src
	w.mu.Unlock()
	w.finish(err)
	return err
}

func (w *WithSource) SourceRank() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.completed {
		return 0, errors.New("work: SourceRank called before Wait completed")
	}
	return w.source, nil
}

var (
	_ Work         = (*WithSource)(nil)
	_ SourceRanker = (*WithSource)(nil)
)

// WithSynchronize wraps a Work with an additional caller-stream fence step, used by
// device-resident collectives whose completion only means "enqueued".
type WithSynchronize struct {
	Work
	synchronize func() error
}

// NewWithSynchronize wraps w so that Synchronize calls synchronize.
func NewWithSynchronize(w Work, synchronize func() error) *WithSynchronize {
	return &WithSynchronize{Work: w, synchronize: synchronize}
}

func (w *WithSynchronize) Synchronize() error {
	return w.synchronize()
}

var (
	_ Work         = (*WithSynchronize)(nil)
	_ Synchronizer = (*WithSynchronize)(nil)
)
