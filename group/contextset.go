package group

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/procgroup/procgroup/errkind"
	"github.com/procgroup/procgroup/transport"
)

// contextSet holds one connected transport.Context per configured Device, keyed by
// device name.
type contextSet struct {
	byDevice map[string]transport.Context
	order    []string // connection order, preserved for deterministic iteration/logging
}

// newContextSet builds a Context for each device via factory and connects all of them
// concurrently against rendezvous, using golang.org/x/sync/errgroup so the first failure
// cancels the rest rather than leaving the caller waiting on peers that will never show
// up. On any failure, every successfully connected Context is closed before returning,
// so New never hands back a partially-connected Group.
func newContextSet(ctx context.Context, factory transport.Factory, devices []transport.Device, rank, size int, rendezvous transport.RendezvousStore) (*contextSet, error) {
	cs := &contextSet{byDevice: make(map[string]transport.Context, len(devices))}
	contexts := make([]transport.Context, len(devices))

	g, gctx := errgroup.WithContext(ctx)
	for i, dev := range devices {
		i, dev := i, dev
		tctx := factory.NewContext(dev, rank, size)
		contexts[i] = tctx
		g.Go(func() error {
			if err := tctx.Connect(gctx, rendezvous); err != nil {
				return errkind.Transportf(err, "group: connect failed on device %q", dev.Name)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, c := range contexts {
			if c != nil {
				_ = c.Close()
			}
		}
		return nil, err
	}

	for i, dev := range devices {
		cs.byDevice[dev.Name] = contexts[i]
		cs.order = append(cs.order, dev.Name)
	}
	return cs, nil
}

// primary returns the Context collectives dispatch onto by default: the first
// configured device. Multi-device fanout beyond "one collective per device" is outside
// this module's scope.
func (cs *contextSet) primary() transport.Context {
	return cs.byDevice[cs.order[0]]
}

func (cs *contextSet) closeAll() error {
	var firstErr error
	for _, name := range cs.order {
		if err := cs.byDevice[name].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
