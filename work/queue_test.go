package work

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRunsEnqueuedWork(t *testing.T) {
	q := NewQueue(context.Background(), 2)
	defer q.Shutdown()

	var n int32
	var items []*Func
	for i := 0; i < 10; i++ {
		w := NewFunc(func(ctx context.Context) error {
			atomic.AddInt32(&n, 1)
			return nil
		})
		items = append(items, w)
		require.NoError(t, q.Enqueue(w))
	}
	for _, w := range items {
		require.NoError(t, w.Wait())
		assert.True(t, w.IsCompleted())
	}
	assert.EqualValues(t, 10, atomic.LoadInt32(&n))
}

func TestQueueFIFOOrderWithinOneWorker(t *testing.T) {
	q := NewQueue(context.Background(), 1)
	defer q.Shutdown()

	var order []int
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		i := i
		w := NewFunc(func(ctx context.Context) error {
			order = append(order, i)
			if i == 4 {
				close(done)
			}
			return nil
		})
		require.NoError(t, q.Enqueue(w))
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for work to drain")
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestQueueShutdownDrainsPendingWork(t *testing.T) {
	q := NewQueue(context.Background(), 2)

	var n int32
	for i := 0; i < 20; i++ {
		w := NewFunc(func(ctx context.Context) error {
			atomic.AddInt32(&n, 1)
			return nil
		})
		require.NoError(t, q.Enqueue(w))
	}
	q.Shutdown()
	assert.EqualValues(t, 20, atomic.LoadInt32(&n))

	err := q.Enqueue(NewFunc(func(ctx context.Context) error { return nil }))
	assert.ErrorIs(t, err, errShutdown)
}

func TestQueueWaitIsIdempotent(t *testing.T) {
	q := NewQueue(context.Background(), 1)
	defer q.Shutdown()

	w := NewFunc(func(ctx context.Context) error { return assertErr })
	require.NoError(t, q.Enqueue(w))
	err1 := w.Wait()
	err2 := w.Wait()
	assert.Equal(t, err1, err2)
	assert.True(t, w.IsCompleted())
}

var assertErr = errSentinel{}

type errSentinel struct{}

func (errSentinel) Error() string { return "sentinel" }

func TestQueueSnapshotIncludesRunningAndPending(t *testing.T) {
	q := NewQueue(context.Background(), 1)
	defer q.Shutdown()

	block := make(chan struct{})
	started := make(chan struct{})
	first := NewFunc(func(ctx context.Context) error {
		close(started)
		<-block
		return nil
	})
	require.NoError(t, q.Enqueue(first))
	<-started

	second := NewFunc(func(ctx context.Context) error { return nil })
	require.NoError(t, q.Enqueue(second))

	snap := q.Snapshot()
	assert.Len(t, snap, 2)

	close(block)
	require.NoError(t, first.Wait())
	require.NoError(t, second.Wait())
}
