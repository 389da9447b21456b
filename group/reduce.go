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

// Reduce combines inputs[0] across every rank with op, leaving the combined result only
// on rootRank. rootTensor is accepted for symmetry with Broadcast, but inputs must be a
// single-element list: reduce has no multi-tensor variant.
func (g *Group) Reduce(ctx context.Context, inputs []tensor.ArrayBuffer, rootRank, rootTensor int, op reduceop.Op) (w Handle, err error) {
	defer errkind.Catch(&err)
	validate.Require(len(inputs) == 1, "Reduce: inputs must be a single-element list")
	validate.RootRank(rootRank, g.size, "Reduce")
	validate.Require(rootTensor == 0, "Reduce: rootTensor must be 0 for a single-element input list")
	buf := inputs[0]
	validate.Require(buf.Dense() && buf.Contiguous(), "Reduce: input must be dense and contiguous")
	validate.Require(buf.Placement().Kind == tensor.Host, "Reduce: host-only")
	validate.Require(op != reduceop.UNUSED, "Reduce: reduce op must not be UNUSED")

	reduceFn, lookupErr := reduceop.Lookup(op, buf.DType())
	if lookupErr != nil {
		errkind.Throw(lookupErr)
	}

	tag := g.tags.nextTag()
	tctx := g.ctxSet.primary()
	numElems := buf.NumElements()

	item := work.NewFunc(func(ctx context.Context) error {
		runCtx, cancel := g.timeoutFor(ctx)
		defer cancel()
		return tctx.Reduce(runCtx, transport.ReduceOptions{
			Tag:      wireTag(tag),
			RootRank: rootRank,
			Reduce:   reduceFn,
			NumElems: numElems,
			Input:    buf.Bytes(),
		})
	})
	if err := g.queue.Enqueue(item); err != nil {
		return nil, errkind.Transportf(err, "Reduce: enqueue failed")
	}
	return item, nil
}
