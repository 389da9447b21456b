package group

import (
	"context"

	"github.com/procgroup/procgroup/errkind"
	"github.com/procgroup/procgroup/internal/validate"
	"github.com/procgroup/procgroup/tensor"
	"github.com/procgroup/procgroup/transport"
	"github.com/procgroup/procgroup/work"
)

// Gather collects inputs[0] from every rank into outputs[0] (a size-length list,
// populated only on rootRank). Non-root ranks must pass an
// empty outputs list.
func (g *Group) Gather(ctx context.Context, outputs [][]tensor.ArrayBuffer, inputs []tensor.ArrayBuffer, rootRank int) (w Handle, err error) {
	defer errkind.Catch(&err)
	validate.RootRank(rootRank, g.size, "Gather")
	validate.Require(len(inputs) == 1, "Gather: inputs must be a single-element list")
	in := inputs[0]
	validate.Require(in.Dense() && in.Contiguous(), "Gather: input must be dense and contiguous")
	validate.Require(in.Placement().Kind == tensor.Host, "Gather: host-only")

	isRoot := g.rank == rootRank
	var perRank []tensor.ArrayBuffer
	if isRoot {
		validate.Require(len(outputs) == 1, "Gather: root requires a single-element output list")
		perRank = outputs[0]
	} else {
		validate.Require(len(outputs) == 0, "Gather: non-root ranks must not provide an output list")
	}
	validate.RootSideLen(isRoot, perRank, g.size, "Gather")
	if isRoot {
		check := append([]tensor.ArrayBuffer(nil), outputs[0]...)
		validate.SameTypeAndShape(append(check, in), "Gather")
	}

	tag := g.tags.nextTag()
	tctx := g.ctxSet.primary()

	var flatOut tensor.ArrayBuffer
	if isRoot {
		flatOut = tensor.NewLikeFlat(g.size, in)
	}

	item := work.NewFunc(func(ctx context.Context) error {
		runCtx, cancel := g.timeoutFor(ctx)
		defer cancel()
		var outBytes []byte
		if isRoot {
			outBytes = flatOut.Bytes()
		}
		if err := tctx.Gather(runCtx, transport.GatherOptions{
			Tag:      wireTag(tag),
			RootRank: rootRank,
			Input:    in.Bytes(),
			Output:   outBytes,
		}); err != nil {
			return err
		}
		if isRoot {
			return tensor.Unflatten(flatOut, outputs[0])
		}
		return nil
	})
	if err := g.queue.Enqueue(item); err != nil {
		return nil, errkind.Transportf(err, "Gather: enqueue failed")
	}
	return item, nil
}
