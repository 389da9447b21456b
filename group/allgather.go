package group

import (
	"context"

	"github.com/procgroup/procgroup/errkind"
	"github.com/procgroup/procgroup/internal/validate"
	"github.com/procgroup/procgroup/tensor"
	"github.com/procgroup/procgroup/transport"
	"github.com/procgroup/procgroup/work"
)

// AllGather flattens inputs into one contiguous host buffer, gathers every rank's
// contribution into a flat buffer of len(inputs)*size elements, and copies that result
// into every group in outputs. len(outputs) must equal
// len(inputs), and each outputs[i] must be a list of exactly len(inputs)*size buffers
// matching inputs[0]'s dtype/shape -- every group receives an identical full copy of the
// gathered result, so every bucket observes the same multi-bucket allgather result.
func (g *Group) AllGather(ctx context.Context, outputs [][]tensor.ArrayBuffer, inputs []tensor.ArrayBuffer) (w Handle, err error) {
	defer errkind.Catch(&err)
	validate.NonEmpty(inputs, "AllGather")
	validate.SameTypeAndShape(inputs, "AllGather")
	for i, in := range inputs {
		validate.Require(in.Dense() && in.Contiguous(), "AllGather: input %d must be dense and contiguous", i)
		validate.Require(in.Placement().Kind == tensor.Host, "AllGather: host-only")
	}
	validate.Require(len(outputs) == len(inputs), "AllGather: len(outputs) (%d) must equal len(inputs) (%d)", len(outputs), len(inputs))
	expected := len(inputs) * g.size
	for i, group := range outputs {
		validate.Require(len(group) == expected, "AllGather: outputs[%d] must have length len(inputs)*size = %d, got %d", i, expected, len(group))
		flatGroup := append([]tensor.ArrayBuffer(nil), group...)
		validate.SameTypeAndShape(append(flatGroup, inputs[0]), "AllGather")
	}

	flatIn, flatErr := tensor.Flatten(inputs)
	if flatErr != nil {
		errkind.Throw(errkind.Argf("AllGather: %v", flatErr))
	}
	flatOut := tensor.NewLikeFlat(expected, inputs[0])

	tag := g.tags.nextTag()
	tctx := g.ctxSet.primary()

	item := work.NewFunc(func(ctx context.Context) error {
		runCtx, cancel := g.timeoutFor(ctx)
		defer cancel()
		if err := tctx.AllGather(runCtx, transport.AllGatherOptions{
			Tag:    wireTag(tag),
			Input:  flatIn.Bytes(),
			Output: flatOut.Bytes(),
		}); err != nil {
			return err
		}
		for i, group := range outputs {
			if err := tensor.Unflatten(flatOut, group); err != nil {
				return errkind.Transportf(err, "AllGather: unflatten into outputs[%d] failed", i)
			}
		}
		return nil
	})
	if err := g.queue.Enqueue(item); err != nil {
		return nil, errkind.Transportf(err, "AllGather: enqueue failed")
	}
	return item, nil
}
