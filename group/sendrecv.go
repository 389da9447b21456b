package group

import (
	"context"

	"github.com/procgroup/procgroup/errkind"
	"github.com/procgroup/procgroup/internal/validate"
	"github.com/procgroup/procgroup/tensor"
	"github.com/procgroup/procgroup/work"
)

// Send transmits buf to dstRank tagged tag. buf must be a
// single dense contiguous host buffer.
func (g *Group) Send(ctx context.Context, buf tensor.ArrayBuffer, dstRank int, tag int) (w Handle, err error) {
	defer errkind.Catch(&err)
	validate.Rank(dstRank, g.size, "Send")
	validate.Tag(tag, "Send")
	validate.Require(buf.Dense() && buf.Contiguous(), "Send: buf must be dense and contiguous")
	validate.Require(buf.Placement().Kind == tensor.Host, "Send: host-only")

	tctx := g.ctxSet.primary()
	ub := tctx.CreateUnboundBuffer(buf.Bytes())

	item := work.NewFunc(func(ctx context.Context) error {
		if err := ub.Send(dstRank, wireTag(uint64(tag))); err != nil {
			return errkind.Transportf(err, "Send: failed")
		}
		return ub.WaitSend(ctx)
	})
	if err := g.queue.Enqueue(item); err != nil {
		return nil, errkind.Transportf(err, "Send: enqueue failed")
	}
	return item, nil
}

// Recv receives into buf from srcRank tagged tag. The returned RecvHandle exposes
// SourceRank once Wait completes (trivially equal to srcRank here; RecvAnysource is
// where the source is actually discovered).
func (g *Group) Recv(ctx context.Context, buf tensor.ArrayBuffer, srcRank int, tag int) (w RecvHandle, err error) {
	defer errkind.Catch(&err)
	validate.Rank(srcRank, g.size, "Recv")
	validate.Tag(tag, "Recv")
	validate.Require(buf.Dense() && buf.Contiguous(), "Recv: buf must be dense and contiguous")
	validate.Require(buf.Placement().Kind == tensor.Host, "Recv: host-only")

	tctx := g.ctxSet.primary()
	ub := tctx.CreateUnboundBuffer(buf.Bytes())

	item := work.NewWithSource(func(ctx context.Context) (int, error) {
		if err := ub.Recv(srcRank, wireTag(uint64(tag))); err != nil {
			return 0, errkind.Transportf(err, "Recv: failed")
		}
		source, err := ub.WaitRecv(ctx)
		if err != nil {
			return 0, err
		}
		return source, nil
	})
	if err := g.queue.Enqueue(item); err != nil {
		return nil, errkind.Transportf(err, "Recv: enqueue failed")
	}
	return item, nil
}

// RecvAnysource receives into buf from any rank tagged tag, matching whichever of
// [0,size) sends first. The candidate rank list emitted here is exactly [0,size); a
// resize-then-push bug elsewhere in this lineage doubles that list to size entries of
// zero followed by [0,size), and is deliberately not reproduced (see DESIGN.md).
func (g *Group) RecvAnysource(ctx context.Context, buf tensor.ArrayBuffer, tag int) (w RecvHandle, err error) {
	defer errkind.Catch(&err)
	validate.Tag(tag, "RecvAnysource")
	validate.Require(buf.Dense() && buf.Contiguous(), "RecvAnysource: buf must be dense and contiguous")
	validate.Require(buf.Placement().Kind == tensor.Host, "RecvAnysource: host-only")

	ranks := make([]int, g.size)
	for i := range ranks {
		ranks[i] = i
	}

	tctx := g.ctxSet.primary()
	ub := tctx.CreateUnboundBuffer(buf.Bytes())

	item := work.NewWithSource(func(ctx context.Context) (int, error) {
		if err := ub.RecvAny(ranks, wireTag(uint64(tag))); err != nil {
			return 0, errkind.Transportf(err, "RecvAnysource: failed")
		}
		return ub.WaitRecv(ctx)
	})
	if err := g.queue.Enqueue(item); err != nil {
		return nil, errkind.Transportf(err, "RecvAnysource: enqueue failed")
	}
	return item, nil
}
