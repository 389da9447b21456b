package group_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/procgroup/procgroup/device/simdevice"
	"github.com/procgroup/procgroup/group"
	"github.com/procgroup/procgroup/store"
	"github.com/procgroup/procgroup/tensor"
	"github.com/procgroup/procgroup/transport"
	"github.com/procgroup/procgroup/transport/inmemory"
)

// connectGroupsWithDevice is connectGroups plus the simulated accelerator stack wired
// into Options, for exercising the device-resident collective path. It also returns the
// shared stream pool, whose default streams are the caller streams Synchronize fences.
func connectGroupsWithDevice(t *testing.T, size int) ([]*group.Group, *simdevice.Pool) {
	t.Helper()
	mem := store.NewMemStore()
	hub := inmemory.NewHub()
	dev := transport.Device{Name: "test-device"}
	pool := simdevice.NewPool()

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
				Devices:     []transport.Device{dev},
				Factory:     hub,
				Threads:     2,
				StreamPool:  pool,
				Events:      simdevice.Events{},
				PinnedAlloc: hostPinned{},
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
	return groups, pool
}

// hostPinned is a trivial device.PinnedAllocator for tests: plain heap memory, no actual
// page-locking (device.HostPinnedAllocator, which mlocks on Linux, is not used here).
type hostPinned struct{}

func (hostPinned) AllocPinned(size int64) ([]byte, func(), error) {
	return make([]byte, size), func() {}, nil
}

func newDeviceInt64(t *testing.T, vals []int64) tensor.ArrayBuffer {
	t.Helper()
	buf := simdevice.NewDeviceBuffer(tensor.I64, []int{len(vals)}, 0)
	host := tensor.FromInt64s(vals, []int{len(vals)})
	require.NoError(t, buf.CopyFrom(hostToDeviceShim{host}, false))
	return buf
}

// hostToDeviceShim adapts a host ArrayBuffer to satisfy tensor.DeviceResident's
// DeviceBytes accessor so newDeviceInt64 can seed a DeviceBuffer's initial contents
// directly in tests, bypassing the staging protocol (which is what production code under
// test exercises instead).
type hostToDeviceShim struct {
	tensor.ArrayBuffer
}

func (h hostToDeviceShim) DeviceBytes() []byte { return h.Bytes() }
