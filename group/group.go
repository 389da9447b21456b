// Package group implements the process-group API: construction (fullmesh rendezvous
// connect across every configured transport device) and the seven collectives plus
// point-to-point send/recv, each dispatched onto a bounded worker queue and returned as
// an asynchronous Work handle. It is the collective-communication analogue of PyTorch's
// ProcessGroupGloo, generalized behind the transport.Factory/Context ports so any
// reliable transport library can back it.
package group

import (
	"context"
	"time"

	"k8s.io/klog/v2"

	"github.com/procgroup/procgroup/device"
	"github.com/procgroup/procgroup/errkind"
	"github.com/procgroup/procgroup/store"
	"github.com/procgroup/procgroup/transport"
	"github.com/procgroup/procgroup/work"
)

// Options configures a Group. Zero values are replaced by defaults in New.
type Options struct {
	// Devices lists the transport devices to fullmesh-connect, one Context per device.
	// Multiple devices let independent collectives run over separate physical links
	// concurrently; most callers configure exactly one.
	Devices []transport.Device

	// Factory constructs the transport.Context for each configured Device.
	Factory transport.Factory

	// Timeout bounds the initial fullmesh Connect and, absent a caller-supplied context
	// deadline, each collective call. Defaults to 10s.
	Timeout time.Duration

	// Threads sizes the worker pool collectives are dispatched onto. Defaults to 2,
	// matching Gloo's historical default.
	Threads int

	// CacheNumAlgorithmEntries is reserved for future algorithm-variant caching
	// (this mirrors a cacheNumAlgorithmEntries knob from elsewhere in this lineage); procgroup has only one
	// algorithm per collective today, so this is accepted and stored but otherwise
	// unused. Defaults to 1.
	CacheNumAlgorithmEntries int

	// Devices accelerator-resident collectives stage through. Optional: host-only
	// callers never need these.
	StreamPool  device.StreamPool
	Events      device.EventFactory
	PinnedAlloc device.PinnedAllocator
	DeviceGuard device.Guard
}

func (o *Options) setDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.Threads <= 0 {
		o.Threads = 2
	}
	if o.CacheNumAlgorithmEntries <= 0 {
		o.CacheNumAlgorithmEntries = 1
	}
}

// Handle is the asynchronous result of any collective or point-to-point call.
type Handle = work.Work

// RecvHandle is the Handle returned by Recv/RecvAnysource, additionally exposing which
// rank the transfer matched.
type RecvHandle interface {
	Handle
	SourceRank() (int, error)
}

// DeviceHandle is the Handle returned by a device-staged collective, additionally
// exposing Synchronize, which makes the caller's default device stream wait on the
// staging copies' completion event without blocking the calling goroutine.
type DeviceHandle interface {
	Handle
	Synchronize() error
}

// Group is one connected collective-communication process group.
type Group struct {
	rank, size int
	opts       Options
	ctxSet     *contextSet
	queue      *work.Queue
	tags       tagCounter

	cancel context.CancelFunc
}

// New fullmesh-connects a Group of size ranks using st for out-of-band rendezvous, and
// starts its worker pool. Every configured device is connected concurrently; if any
// device fails to connect, New returns an error and no partial Group is returned.
func New(ctx context.Context, st store.Store, rank, size int, opts Options) (*Group, error) {
	opts.setDefaults()
	if len(opts.Devices) == 0 {
		return nil, errkind.Fatalf("group: New requires at least one transport Device")
	}
	if opts.Factory == nil {
		return nil, errkind.Fatalf("group: New requires a transport.Factory")
	}
	if rank < 0 || rank >= size {
		return nil, errkind.Argf("group: rank %d out of range [0,%d)", rank, size)
	}

	adapter := store.NewAdapter(st)

	connectCtx := ctx
	var cancel context.CancelFunc
	if _, ok := ctx.Deadline(); !ok {
		connectCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
	}

	cs, err := newContextSet(connectCtx, opts.Factory, opts.Devices, rank, size, adapter)
	if cancel != nil {
		cancel()
	}
	if err != nil {
		return nil, err
	}

	queueCtx, queueCancel := context.WithCancel(context.Background())
	g := &Group{
		rank:   rank,
		size:   size,
		opts:   opts,
		ctxSet: cs,
		queue:  work.NewQueue(queueCtx, opts.Threads),
		cancel: queueCancel,
	}
	klog.V(2).Infof("group: connected rank %d/%d across %d device(s)", rank, size, len(opts.Devices))
	return g, nil
}

// Rank returns this process's rank within the group.
func (g *Group) Rank() int { return g.rank }

// Size returns the number of ranks in the group.
func (g *Group) Size() int { return g.size }

// GetGroupRank is unsupported: procgroup has no
// notion of a parent group a sub-group rank could be resolved against.
func (g *Group) GetGroupRank() (int, error) {
	return 0, &errkind.UnsupportedError{Op: "GetGroupRank"}
}

// Close drains the worker pool and closes every underlying transport Context. It blocks
// until all in-flight work has completed.
func (g *Group) Close() error {
	g.queue.Shutdown()
	g.cancel()
	return g.ctxSet.closeAll()
}

// timeoutFor returns ctx as-is if it already carries a deadline, otherwise wraps it with
// the Group's configured Timeout.
func (g *Group) timeoutFor(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.opts.Timeout)
}
