package group

import (
	"context"

	"github.com/procgroup/procgroup/errkind"
	"github.com/procgroup/procgroup/internal/validate"
	"github.com/procgroup/procgroup/reduceop"
	"github.com/procgroup/procgroup/tensor"
	"github.com/procgroup/procgroup/transport"
	"github.com/procgroup/procgroup/work"
)

// AllReduce combines inputs across every rank with op, in place, leaving the combined
// result on every rank. Only SUM, PRODUCT, MIN and MAX are
// valid here; UNUSED is a programming error.
func (g *Group) AllReduce(ctx context.Context, inputs []tensor.ArrayBuffer, op reduceop.Op) (w Handle, err error) {
	defer errkind.Catch(&err)
	validate.NonEmpty(inputs, "AllReduce")
	validate.SameTypeAndShape(inputs, "AllReduce")
	for i, in := range inputs {
		validate.Require(in.Dense() && in.Contiguous(), "AllReduce: input %d must be dense and contiguous", i)
		validate.Require(in.Placement().Kind == tensor.Host, "AllReduce: host-only; use AllReduceDevice for accelerator buffers")
	}
	validate.Require(op != reduceop.UNUSED, "AllReduce: reduce op must not be UNUSED")

	flat, flatErr := tensor.Flatten(inputs)
	if flatErr != nil {
		errkind.Throw(errkind.Argf("AllReduce: %v", flatErr))
	}
	reduceFn, lookupErr := reduceop.Lookup(op, inputs[0].DType())
	if lookupErr != nil {
		errkind.Throw(lookupErr)
	}

	tag := g.tags.nextTag()
	tctx := g.ctxSet.primary()
	numElems := flat.NumElements()

	item := work.NewFunc(func(ctx context.Context) error {
		runCtx, cancel := g.timeoutFor(ctx)
		defer cancel()
		if err := tctx.AllReduce(runCtx, transport.AllReduceOptions{
			Tag:      wireTag(tag),
			Reduce:   reduceFn,
			NumElems: numElems,
			Input:    flat.Bytes(),
		}); err != nil {
			return err
		}
		return tensor.Unflatten(flat, inputs)
	})
	if err := g.queue.Enqueue(item); err != nil {
		return nil, errkind.Transportf(err, "AllReduce: enqueue failed")
	}
	return item, nil
}
