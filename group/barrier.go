package group

import (
	"context"

	"github.com/procgroup/procgroup/errkind"
	"github.com/procgroup/procgroup/transport"
	"github.com/procgroup/procgroup/work"
)

// Barrier fences every collective previously submitted on this rank before the transport
// barrier itself runs: it snapshots everything currently
// enqueued or in flight on the worker queue, waits for each of them, and only then
// issues the transport barrier. New work submitted after the snapshot is taken is not
// fenced.
func (g *Group) Barrier(ctx context.Context) (w Handle, err error) {
	defer errkind.Catch(&err)

	tag := g.tags.nextTag()
	tctx := g.ctxSet.primary()
	fence := g.queue.Snapshot()

	item := work.NewFunc(func(ctx context.Context) error {
		for _, prior := range fence {
			if err := prior.Wait(); err != nil {
				return errkind.Transportf(err, "Barrier: a fenced collective failed")
			}
		}
		runCtx, cancel := g.timeoutFor(ctx)
		defer cancel()
		return tctx.Barrier(runCtx, transport.BarrierOptions{Tag: wireTag(tag)})
	})
	if err := g.queue.Enqueue(item); err != nil {
		return nil, errkind.Transportf(err, "Barrier: enqueue failed")
	}
	return item, nil
}
