package inmemory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procgroup/procgroup/store"
	"github.com/procgroup/procgroup/transport"
	"github.com/procgroup/procgroup/transport/inmemory"
)

func connectAll(t *testing.T, hub *inmemory.Hub, dev transport.Device, size int) []transport.Context {
	t.Helper()
	mem := store.NewMemStore()
	adapter := store.NewAdapter(mem)

	contexts := make([]transport.Context, size)
	errs := make([]error, size)
	var wg sync.WaitGroup
	for rank := 0; rank < size; rank++ {
		rank := rank
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := hub.NewContext(dev, rank, size)
			dctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			errs[rank] = ctx.Connect(dctx, adapter)
			contexts[rank] = ctx
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	return contexts
}

func TestBroadcastRendezvous(t *testing.T) {
	hub := inmemory.NewHub()
	dev := transport.Device{Name: "t"}
	contexts := connectAll(t, hub, dev, 3)

	bufs := make([][]byte, 3)
	for i := range bufs {
		bufs[i] = make([]byte, 4)
	}
	bufs[1] = []byte{9, 9, 9, 9}

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i, c := range contexts {
		i, c := i, c
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = c.Broadcast(context.Background(), transport.BroadcastOptions{
				Tag: 1, RootRank: 1, Input: bufs[i],
			})
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	for i, b := range bufs {
		assert.Equal(t, []byte{9, 9, 9, 9}, b, "rank %d", i)
	}
}

func TestSendRecvMatches(t *testing.T) {
	hub := inmemory.NewHub()
	dev := transport.Device{Name: "t"}
	contexts := connectAll(t, hub, dev, 2)

	sendData := []byte{1, 2, 3}
	recvData := make([]byte, 3)

	done := make(chan error, 2)
	go func() {
		ub := contexts[0].CreateUnboundBuffer(sendData)
		if err := ub.Send(1, 7); err != nil {
			done <- err
			return
		}
		done <- ub.WaitSend(context.Background())
	}()
	go func() {
		ub := contexts[1].CreateUnboundBuffer(recvData)
		if err := ub.Recv(0, 7); err != nil {
			done <- err
			return
		}
		_, err := ub.WaitRecv(context.Background())
		done <- err
	}()
	require.NoError(t, <-done)
	require.NoError(t, <-done)
	assert.Equal(t, []byte{1, 2, 3}, recvData)
}
