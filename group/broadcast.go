package group

import (
	"context"

	"github.com/procgroup/procgroup/errkind"
	"github.com/procgroup/procgroup/internal/validate"
	"github.com/procgroup/procgroup/tensor"
	"github.com/procgroup/procgroup/transport"
	"github.com/procgroup/procgroup/work"
)

// Broadcast issues a transport broadcast on inputs[rootTensor] from rootRank, then
// copies the result locally into every other buffer in inputs on this rank.
func (g *Group) Broadcast(ctx context.Context, inputs []tensor.ArrayBuffer, rootRank, rootTensor int) (w Handle, err error) {
	defer errkind.Catch(&err)
	validate.NonEmpty(inputs, "Broadcast")
	validate.RootRank(rootRank, g.size, "Broadcast")
	validate.Require(rootTensor >= 0 && rootTensor < len(inputs), "Broadcast: rootTensor %d out of range [0,%d)", rootTensor, len(inputs))
	validate.SameTypeAndShape(inputs, "Broadcast")
	for i, in := range inputs {
		validate.Require(in.Dense() && in.Contiguous(), "Broadcast: input %d must be dense and contiguous", i)
	}
	validate.Require(tensor.SameDeviceKind(inputs), "Broadcast: all inputs must share one device kind")
	validate.Require(inputs[0].Placement().Kind == tensor.Host, "Broadcast: host-only; use BroadcastDevice for accelerator buffers")

	tag := g.tags.nextTag()
	tctx := g.ctxSet.primary()
	root := inputs[rootTensor]

	item := work.NewFunc(func(ctx context.Context) error {
		runCtx, cancel := g.timeoutFor(ctx)
		defer cancel()
		if err := tctx.Broadcast(runCtx, transport.BroadcastOptions{
			Tag:      wireTag(tag),
			RootRank: rootRank,
			Input:    root.Bytes(),
		}); err != nil {
			return err
		}
		for i, in := range inputs {
			if i == rootTensor {
				continue
			}
			if err := in.CopyFrom(root, false); err != nil {
				return errkind.Transportf(err, "Broadcast: local copy to input %d failed", i)
			}
		}
		return nil
	})
	if err := g.queue.Enqueue(item); err != nil {
		return nil, errkind.Transportf(err, "Broadcast: enqueue failed")
	}
	return item, nil
}
