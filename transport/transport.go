// Package transport defines the interfaces procgroup consumes from the underlying
// collective-communication transport library (the wire algorithms and the connection
// fullmesh rendezvous). The transport library itself is an external collaborator, out of
// scope for this module.
//
// The inmemory sub-package provides a minimal, in-process reference implementation good
// enough to exercise and test the dispatch layer without a real network transport.
package transport

import (
	"context"
	"time"
)

// Device names one configured transport endpoint (e.g. a network interface or fabric),
// analogous to a gloo "transport device".
type Device struct {
	Name string
}

// RendezvousStore is the store interface the transport's fullmesh connect consumes. It
// is implemented by store.Adapter.
type RendezvousStore interface {
	Set(key string, value []byte) error
	Get(key string) ([]byte, error)
	Wait(keys []string, timeout time.Duration) error
}

// ReduceFunc is a typed reducer applied element-wise by Reduce/AllReduce. dst, a and b
// point at buffers of n elements of one scalar type; the function must combine a and b
// element-wise and write the result into dst's backing bytes.
type ReduceFunc func(dst, a, b []byte) error

// BroadcastOptions configures a Context.Broadcast call.
type BroadcastOptions struct {
	Tag      uint32
	RootRank int
	Input    []byte // root's contiguous input/output bytes; every other rank's bytes are overwritten with the root's value
}

// AllReduceOptions configures a Context.AllReduce call.
type AllReduceOptions struct {
	Tag      uint32
	Reduce   ReduceFunc
	NumElems int
	Input    []byte // in-place: also the output
}

// ReduceOptions configures a Context.Reduce call.
type ReduceOptions struct {
	Tag      uint32
	RootRank int
	Reduce   ReduceFunc
	NumElems int
	Input    []byte
}

// AllGatherOptions configures a Context.AllGather call.
type AllGatherOptions struct {
	Tag    uint32
	Input  []byte // this rank's contribution
	Output []byte // size()*len(Input) bytes, filled with every rank's contribution in rank order
}

// GatherOptions configures a Context.Gather call.
type GatherOptions struct {
	Tag      uint32
	RootRank int
	Input    []byte
	Output   []byte // only read/written on the root: size()*len(Input) bytes
}

// ScatterOptions configures a Context.Scatter call.
type ScatterOptions struct {
	Tag      uint32
	RootRank int
	Input    []byte // only read on the root: size()*len(Output) bytes, rank-major
	Output   []byte
}

// BarrierOptions configures a Context.Barrier call.
type BarrierOptions struct {
	Tag uint32
}

// UnboundBuffer is a point-to-point staging region bound to caller memory, used for
// send/recv.
type UnboundBuffer interface {
	Send(dstRank int, tag uint32) error
	Recv(srcRank int, tag uint32) error
	// RecvAny waits for a message from any of the given ranks, tagged tag.
	RecvAny(srcRanks []int, tag uint32) error
	WaitSend(ctx context.Context) error
	// WaitRecv blocks until the matching Recv/RecvAny completes and returns the rank
	// the message was actually received from.
	WaitRecv(ctx context.Context) (sourceRank int, err error)
}

// Context is one connected communication group bound to a single transport Device,
// providing the collective primitives and unbound buffers for point-to-point transfer.
type Context interface {
	Rank() int
	Size() int

	// Connect performs out-of-band fullmesh rendezvous against store, exchanging
	// O(size^2) peer addresses before any collective can run. It blocks until every
	// peer has reached the rendezvous point, or ctx is done.
	Connect(ctx context.Context, store RendezvousStore) error

	Broadcast(ctx context.Context, opts BroadcastOptions) error
	AllReduce(ctx context.Context, opts AllReduceOptions) error
	Reduce(ctx context.Context, opts ReduceOptions) error
	AllGather(ctx context.Context, opts AllGatherOptions) error
	Gather(ctx context.Context, opts GatherOptions) error
	Scatter(ctx context.Context, opts ScatterOptions) error
	Barrier(ctx context.Context, opts BarrierOptions) error

	// CreateUnboundBuffer binds data as the memory region used by a single send/recv.
	CreateUnboundBuffer(data []byte) UnboundBuffer

	Close() error
}

// Factory constructs a Context bound to one Device for the given rank/size. Implemented
// by each concrete transport (e.g. transport/inmemory).
type Factory interface {
	NewContext(device Device, rank, size int) Context
}
