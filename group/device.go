package group

import (
	"context"

	"github.com/procgroup/procgroup/device"
	"github.com/procgroup/procgroup/errkind"
	"github.com/procgroup/procgroup/internal/validate"
	"github.com/procgroup/procgroup/reduceop"
	"github.com/procgroup/procgroup/tensor"
	"github.com/procgroup/procgroup/transport"
	"github.com/procgroup/procgroup/work"
)

// deviceStack bundles the Options fields a device-resident collective needs, and checks
// they are all present each time a *Device method is called (New does not check them).
func (g *Group) deviceStack(op string) (device.StreamPool, device.EventFactory, device.PinnedAllocator, error) {
	if g.opts.StreamPool == nil || g.opts.Events == nil || g.opts.PinnedAlloc == nil {
		return nil, nil, nil, errkind.Fatalf("%s: Options.StreamPool, Events and PinnedAlloc must be configured for device-resident collectives", op)
	}
	return g.opts.StreamPool, g.opts.Events, g.opts.PinnedAlloc, nil
}

// BroadcastDevice is the accelerator-resident variant of Broadcast, implementing the
// staging protocol: only the root rank's rootTensor stages out to a
// pinned host buffer; the host-side transport broadcast result is then staged back into
// every device-resident input on every rank, and Synchronize fences the caller's default
// stream on that staging completion without ever blocking the host.
func (g *Group) BroadcastDevice(ctx context.Context, inputs []tensor.ArrayBuffer, rootRank, rootTensor, deviceIndex int) (w DeviceHandle, err error) {
	defer errkind.Catch(&err)
	validate.NonEmpty(inputs, "BroadcastDevice")
	validate.RootRank(rootRank, g.size, "BroadcastDevice")
	validate.Require(rootTensor >= 0 && rootTensor < len(inputs), "BroadcastDevice: rootTensor %d out of range [0,%d)", rootTensor, len(inputs))
	validate.SameTypeAndShape(inputs, "BroadcastDevice")
	residents := make([]tensor.DeviceResident, len(inputs))
	for i, in := range inputs {
		validate.Require(in.Placement().Kind == tensor.Accelerator, "BroadcastDevice: input %d must be accelerator-resident", i)
		r, ok := in.(tensor.DeviceResident)
		validate.Require(ok, "BroadcastDevice: input %d does not implement tensor.DeviceResident", i)
		residents[i] = r
	}

	pool, events, pinned, stackErr := g.deviceStack("BroadcastDevice")
	if stackErr != nil {
		errkind.Throw(stackErr)
	}

	root := inputs[rootTensor]
	isRoot := g.rank == rootRank
	stage, stageErr := device.New(pool, pinned, events, g.opts.DeviceGuard, deviceIndex, root.ByteSize())
	if stageErr != nil {
		errkind.Throw(errkind.Transportf(stageErr, "BroadcastDevice: staging setup failed"))
	}

	tag := g.tags.nextTag()
	tctx := g.ctxSet.primary()

	base := work.NewFunc(func(ctx context.Context) error {
		if isRoot {
			if err := stage.StageOut(residents[rootTensor].DeviceBytes()); err != nil {
				return errkind.Transportf(err, "BroadcastDevice: stage-out failed")
			}
			if err := stage.BlockUntilStaged(); err != nil {
				return errkind.Transportf(err, "BroadcastDevice: staging sync failed")
			}
		}
		runCtx, cancel := g.timeoutFor(ctx)
		defer cancel()
		if err := tctx.Broadcast(runCtx, transport.BroadcastOptions{
			Tag:      wireTag(tag),
			RootRank: rootRank,
			Input:    stage.HostBytes(),
		}); err != nil {
			return err
		}
		for _, r := range residents {
			if err := stage.StageIn(r.DeviceBytes(), events); err != nil {
				return errkind.Transportf(err, "BroadcastDevice: stage-in failed")
			}
		}
		return nil
	})
	item := work.NewWithSynchronize(base, func() error {
		defer stage.Close()
		return stage.FenceCaller()
	})
	if err := g.queue.Enqueue(item); err != nil {
		return nil, errkind.Transportf(err, "BroadcastDevice: enqueue failed")
	}
	return item, nil
}

// AllReduceDevice is the accelerator-resident variant of AllReduce for a single
// device-resident buffer: it stages out to a pinned host buffer, the host-side allreduce
// combines it across ranks, and the combined result stages back into the device input.
// Unlike the host path, the device path does not bucket multiple tensors into one
// flattened transfer -- each accelerator-resident buffer stages independently, since
// Staging owns exactly one pinned buffer per device input.
func (g *Group) AllReduceDevice(ctx context.Context, buf tensor.ArrayBuffer, op reduceop.Op, deviceIndex int) (w DeviceHandle, err error) {
	defer errkind.Catch(&err)
	validate.Require(buf != nil, "AllReduceDevice: buf must not be nil")
	validate.Require(buf.Placement().Kind == tensor.Accelerator, "AllReduceDevice: buf must be accelerator-resident")
	validate.Require(op != reduceop.UNUSED, "AllReduceDevice: reduce op must not be UNUSED")
	resident, ok := buf.(tensor.DeviceResident)
	validate.Require(ok, "AllReduceDevice: buf does not implement tensor.DeviceResident")

	pool, events, pinned, stackErr := g.deviceStack("AllReduceDevice")
	if stackErr != nil {
		errkind.Throw(stackErr)
	}
	reduceFn, lookupErr := reduceop.Lookup(op, buf.DType())
	if lookupErr != nil {
		errkind.Throw(lookupErr)
	}

	stage, stageErr := device.New(pool, pinned, events, g.opts.DeviceGuard, deviceIndex, buf.ByteSize())
	if stageErr != nil {
		errkind.Throw(errkind.Transportf(stageErr, "AllReduceDevice: staging setup failed"))
	}

	tag := g.tags.nextTag()
	tctx := g.ctxSet.primary()
	numElems := buf.NumElements()

	base := work.NewFunc(func(ctx context.Context) error {
		if err := stage.StageOut(resident.DeviceBytes()); err != nil {
			return errkind.Transportf(err, "AllReduceDevice: stage-out failed")
		}
		if err := stage.BlockUntilStaged(); err != nil {
			return errkind.Transportf(err, "AllReduceDevice: staging sync failed")
		}
		runCtx, cancel := g.timeoutFor(ctx)
		defer cancel()
		if err := tctx.AllReduce(runCtx, transport.AllReduceOptions{
			Tag:      wireTag(tag),
			Reduce:   reduceFn,
			NumElems: numElems,
			Input:    stage.HostBytes(),
		}); err != nil {
			return err
		}
		return stage.StageIn(resident.DeviceBytes(), events)
	})
	item := work.NewWithSynchronize(base, func() error {
		defer stage.Close()
		return stage.FenceCaller()
	})
	if err := g.queue.Enqueue(item); err != nil {
		return nil, errkind.Transportf(err, "AllReduceDevice: enqueue failed")
	}
	return item, nil
}
