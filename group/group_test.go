package group_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/procgroup/procgroup/group"
	"github.com/procgroup/procgroup/store"
	"github.com/procgroup/procgroup/transport"
	"github.com/procgroup/procgroup/transport/inmemory"
)

// connectGroups builds and fullmesh-connects size Groups sharing one in-memory hub and
// store, the way a real multi-process deployment would share one external rendezvous
// store and one transport library instance per device.
func connectGroups(t *testing.T, size int) []*group.Group {
	t.Helper()
	mem := store.NewMemStore()
	hub := inmemory.NewHub()
	dev := transport.Device{Name: "test"}

	groups := make([]*group.Group, size)
	errs := make([]error, size)
	var wg sync.WaitGroup
	for rank := 0; rank < size; rank++ {
		rank := rank
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			g, err := group.New(ctx, mem, rank, size, group.Options{
				Devices: []transport.Device{dev},
				Factory: hub,
				Threads: 2,
			})
			groups[rank] = g
			errs[rank] = err
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	t.Cleanup(func() {
		for _, g := range groups {
			_ = g.Close()
		}
	})
	return groups
}

func TestNewRejectsEmptyDevices(t *testing.T) {
	mem := store.NewMemStore()
	_, err := group.New(context.Background(), mem, 0, 1, group.Options{})
	require.Error(t, err)
}

func TestNewRejectsRankOutOfRange(t *testing.T) {
	mem := store.NewMemStore()
	hub := inmemory.NewHub()
	_, err := group.New(context.Background(), mem, 5, 3, group.Options{
		Devices: []transport.Device{{Name: "x"}},
		Factory: hub,
	})
	require.Error(t, err)
}

func TestGetGroupRankUnsupported(t *testing.T) {
	groups := connectGroups(t, 2)
	_, err := groups[0].GetGroupRank()
	require.Error(t, err)
}
