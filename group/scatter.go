package group

import (
	"context"

	"github.com/procgroup/procgroup/errkind"
	"github.com/procgroup/procgroup/internal/validate"
	"github.com/procgroup/procgroup/tensor"
	"github.com/procgroup/procgroup/transport"
	"github.com/procgroup/procgroup/work"
)

// Scatter slices inputs[0] (a size-length list, only meaningful on rootRank) into
// per-rank chunks and distributes one chunk to each rank's outputs[0]. Non-root ranks
// must pass an empty inputs list.
func (g *Group) Scatter(ctx context.Context, outputs []tensor.ArrayBuffer, inputs [][]tensor.ArrayBuffer, rootRank int) (w Handle, err error) {
	defer errkind.Catch(&err)
	validate.RootRank(rootRank, g.size, "Scatter")
	validate.Require(len(outputs) == 1, "Scatter: outputs must be a single-element list")
	out := outputs[0]
	validate.Require(out.Dense() && out.Contiguous(), "Scatter: output must be dense and contiguous")
	validate.Require(out.Placement().Kind == tensor.Host, "Scatter: host-only")

	isRoot := g.rank == rootRank
	var perRank []tensor.ArrayBuffer
	if isRoot {
		validate.Require(len(inputs) == 1, "Scatter: root requires a single-element input list")
		perRank = inputs[0]
	} else {
		validate.Require(len(inputs) == 0, "Scatter: non-root ranks must not provide an input list")
	}
	validate.RootSideLen(isRoot, perRank, g.size, "Scatter")
	if isRoot {
		check := append([]tensor.ArrayBuffer(nil), inputs[0]...)
		validate.SameTypeAndShape(append(check, out), "Scatter")
	}

	tag := g.tags.nextTag()
	tctx := g.ctxSet.primary()

	var flatIn tensor.ArrayBuffer
	if isRoot {
		flatIn, err = tensor.Flatten(inputs[0])
		if err != nil {
			errkind.Throw(errkind.Argf("Scatter: %v", err))
		}
	}

	item := work.NewFunc(func(ctx context.Context) error {
		runCtx, cancel := g.timeoutFor(ctx)
		defer cancel()
		var inBytes []byte
		if isRoot {
			inBytes = flatIn.Bytes()
		}
		return tctx.Scatter(runCtx, transport.ScatterOptions{
			Tag:      wireTag(tag),
			RootRank: rootRank,
			Input:    inBytes,
			Output:   out.Bytes(),
		})
	})
	if err := g.queue.Enqueue(item); err != nil {
		return nil, errkind.Transportf(err, "Scatter: enqueue failed")
	}
	return item, nil
}
