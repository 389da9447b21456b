package group_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procgroup/procgroup/group"
	"github.com/procgroup/procgroup/reduceop"
	"github.com/procgroup/procgroup/tensor"
)

func TestAllReduceSumSizeFour(t *testing.T) {
	groups := connectGroups(t, 4)
	bufs := make([]tensor.ArrayBuffer, 4)
	for r := range bufs {
		bufs[r] = tensor.FromInt64s([]int64{int64(r + 1)}, []int{1})
	}

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for r, g := range groups {
		r, g := r, g
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := g.AllReduce(context.Background(), []tensor.ArrayBuffer{bufs[r]}, reduceop.SUM)
			if err != nil {
				errs[r] = err
				return
			}
			errs[r] = w.Wait()
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	for r, buf := range bufs {
		vals, err := tensor.Int64s(buf)
		require.NoError(t, err)
		assert.Equal(t, []int64{10}, vals, "rank %d", r)
	}
}

func TestBroadcastRootOneRootTensorZero(t *testing.T) {
	groups := connectGroups(t, 3)
	inputs := make([][]tensor.ArrayBuffer, 3)
	for r := range inputs {
		val := int64(0)
		if r == 1 {
			val = 99
		}
		inputs[r] = []tensor.ArrayBuffer{tensor.FromInt64s([]int64{val}, []int{1})}
	}

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for r, g := range groups {
		r, g := r, g
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := g.Broadcast(context.Background(), inputs[r], 1, 0)
			if err != nil {
				errs[r] = err
				return
			}
			errs[r] = w.Wait()
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	for r, in := range inputs {
		vals, err := tensor.Int64s(in[0])
		require.NoError(t, err)
		assert.Equal(t, []int64{99}, vals, "rank %d", r)
	}
}

func TestSendRecvWithTag(t *testing.T) {
	groups := connectGroups(t, 2)
	sendBuf := tensor.FromInt64s([]int64{7, 8, 9}, []int{3})
	recvBuf := tensor.FromInt64s([]int64{0, 0, 0}, []int{3})

	var wg sync.WaitGroup
	var sendErr, recvErr error
	var recvWork group.RecvHandle

	wg.Add(2)
	go func() {
		defer wg.Done()
		w, err := groups[0].Send(context.Background(), sendBuf, 1, 42)
		if err != nil {
			sendErr = err
			return
		}
		sendErr = w.Wait()
	}()
	go func() {
		defer wg.Done()
		w, err := groups[1].Recv(context.Background(), recvBuf, 0, 42)
		if err != nil {
			recvErr = err
			return
		}
		recvErr = w.Wait()
		recvWork = w
	}()
	wg.Wait()

	require.NoError(t, sendErr)
	require.NoError(t, recvErr)
	source, err := recvWork.SourceRank()
	require.NoError(t, err)
	assert.Equal(t, 0, source)

	vals, err := tensor.Int64s(recvBuf)
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 8, 9}, vals)
}

func TestAllGatherInt64SizeFour(t *testing.T) {
	groups := connectGroups(t, 4)
	inputs := make([]tensor.ArrayBuffer, 4)
	outGroups := make([][]tensor.ArrayBuffer, 4)
	for r := range groups {
		inputs[r] = tensor.FromInt64s([]int64{int64(r)}, []int{1})
		out := make([]tensor.ArrayBuffer, 4)
		for j := range out {
			out[j] = tensor.FromInt64s([]int64{-1}, []int{1})
		}
		outGroups[r] = out
	}

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for r, g := range groups {
		r, g := r, g
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := g.AllGather(context.Background(), [][]tensor.ArrayBuffer{outGroups[r]}, []tensor.ArrayBuffer{inputs[r]})
			if err != nil {
				errs[r] = err
				return
			}
			errs[r] = w.Wait()
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	for r := range groups {
		for j, out := range outGroups[r] {
			vals, err := tensor.Int64s(out)
			require.NoError(t, err)
			assert.Equal(t, []int64{int64(j)}, vals, "rank %d output %d", r, j)
		}
	}
}

// readDeviceInt64 reads back a device-resident I64 buffer's raw bytes without going
// through the staging protocol, so a test can check what a collective actually wrote to
// the device side.
func readDeviceInt64(t *testing.T, buf tensor.ArrayBuffer) []int64 {
	t.Helper()
	resident, ok := buf.(tensor.DeviceResident)
	require.True(t, ok)
	data := resident.DeviceBytes()
	out := make([]int64, len(data)/8)
	for i := range out {
		out[i] = tensor.DecodeI64(data, i)
	}
	return out
}

func TestAllReduceDeviceSizeTwo(t *testing.T) {
	groups, pool := connectGroupsWithDevice(t, 2)
	bufs := []tensor.ArrayBuffer{
		newDeviceInt64(t, []int64{3}),
		newDeviceInt64(t, []int64{4}),
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for r, g := range groups {
		r, g := r, g
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := g.AllReduceDevice(context.Background(), bufs[r], reduceop.SUM, 0)
			if err != nil {
				errs[r] = err
				return
			}
			errs[r] = w.Wait()
			if errs[r] == nil {
				errs[r] = w.Synchronize()
			}
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	// Synchronize only orders the caller's default stream; drain it before reading.
	require.NoError(t, pool.Default(0).Synchronize())
	for r := range bufs {
		assert.Equal(t, []int64{7}, readDeviceInt64(t, bufs[r]), "rank %d post-synchronize device buffer", r)
	}
}
