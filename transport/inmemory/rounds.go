package inmemory

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/procgroup/procgroup/transport"
)

const defaultConnectTimeout = 10 * time.Second

func deadlineToTimeout(deadline time.Time) time.Duration {
	d := time.Until(deadline)
	if d <= 0 {
		return 0
	}
	return d
}

// round is a one-shot rendezvous point shared by every rank participating in one
// collective call, keyed by (device, tag). The last rank to arrive computes the result
// for everyone via finalize and wakes the others.
type round struct {
	size     int
	mu       chan struct{} // 1-buffered mutex, so it composes with select on ctx.Done()
	arrived  int
	inputs   [][]byte
	outputs  [][]byte
	err      error
	doneCh   chan struct{}
}

func newRound(size int) *round {
	r := &round{
		size:   size,
		mu:     make(chan struct{}, 1),
		inputs: make([][]byte, size),
		doneCh: make(chan struct{}),
	}
	r.mu <- struct{}{}
	return r
}

func (h *Hub) roundFor(device transport.Device, tag uint32, size int) *round {
	key := fmt.Sprintf("%s/%d", device.Name, tag)
	h.roundsMu.Lock()
	defer h.roundsMu.Unlock()
	r, ok := h.rounds[key]
	if !ok {
		r = newRound(size)
		h.rounds[key] = r
	}
	return r
}

func (h *Hub) forgetRound(device transport.Device, tag uint32) {
	key := fmt.Sprintf("%s/%d", device.Name, tag)
	h.roundsMu.Lock()
	delete(h.rounds, key)
	h.roundsMu.Unlock()
}

// rendezvous registers rank's input in the round for tag, and once every rank has
// arrived, runs finalize exactly once (on whichever goroutine arrives last) to compute
// per-rank outputs. It returns this rank's output.
func (c *inmemoryContext) rendezvous(ctx context.Context, tag uint32, input []byte, finalize func(inputs [][]byte) ([][]byte, error)) ([]byte, error) {
	r := c.hub.roundFor(c.device, tag, c.size)

	select {
	case <-r.mu:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	r.inputs[c.rank] = input
	r.arrived++
	last := r.arrived == r.size
	if last {
		outputs, err := finalize(r.inputs)
		r.outputs = outputs
		r.err = err
		close(r.doneCh)
		c.hub.forgetRound(c.device, tag)
	}
	r.mu <- struct{}{}

	select {
	case <-r.doneCh:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.outputs[c.rank], nil
}

func (c *inmemoryContext) Broadcast(ctx context.Context, opts transport.BroadcastOptions) error {
	out, err := c.rendezvous(ctx, opts.Tag, opts.Input, func(inputs [][]byte) ([][]byte, error) {
		root := inputs[opts.RootRank]
		outputs := make([][]byte, len(inputs))
		for i := range outputs {
			outputs[i] = append([]byte(nil), root...)
		}
		return outputs, nil
	})
	if err != nil {
		return err
	}
	copy(opts.Input, out)
	return nil
}

func (c *inmemoryContext) AllReduce(ctx context.Context, opts transport.AllReduceOptions) error {
	out, err := c.rendezvous(ctx, opts.Tag, opts.Input, func(inputs [][]byte) ([][]byte, error) {
		combined := append([]byte(nil), inputs[0]...)
		for i := 1; i < len(inputs); i++ {
			if err := opts.Reduce(combined, combined, inputs[i]); err != nil {
				return nil, err
			}
		}
		outputs := make([][]byte, len(inputs))
		for i := range outputs {
			outputs[i] = combined
		}
		return outputs, nil
	})
	if err != nil {
		return err
	}
	copy(opts.Input, out)
	return nil
}

func (c *inmemoryContext) Reduce(ctx context.Context, opts transport.ReduceOptions) error {
	out, err := c.rendezvous(ctx, opts.Tag, opts.Input, func(inputs [][]byte) ([][]byte, error) {
		combined := append([]byte(nil), inputs[0]...)
		for i := 1; i < len(inputs); i++ {
			if err := opts.Reduce(combined, combined, inputs[i]); err != nil {
				return nil, err
			}
		}
		outputs := make([][]byte, len(inputs))
		outputs[opts.RootRank] = combined
		return outputs, nil
	})
	if err != nil {
		return err
	}
	if c.rank == opts.RootRank {
		copy(opts.Input, out)
	}
	return nil
}

func (c *inmemoryContext) AllGather(ctx context.Context, opts transport.AllGatherOptions) error {
	out, err := c.rendezvous(ctx, opts.Tag, opts.Input, func(inputs [][]byte) ([][]byte, error) {
		flat := make([]byte, 0, len(inputs)*len(inputs[0]))
		for _, in := range inputs {
			flat = append(flat, in...)
		}
		outputs := make([][]byte, len(inputs))
		for i := range outputs {
			outputs[i] = flat
		}
		return outputs, nil
	})
	if err != nil {
		return err
	}
	copy(opts.Output, out)
	return nil
}

func (c *inmemoryContext) Gather(ctx context.Context, opts transport.GatherOptions) error {
	out, err := c.rendezvous(ctx, opts.Tag, opts.Input, func(inputs [][]byte) ([][]byte, error) {
		flat := make([]byte, 0, len(inputs)*len(inputs[0]))
		for _, in := range inputs {
			flat = append(flat, in...)
		}
		outputs := make([][]byte, len(inputs))
		outputs[opts.RootRank] = flat
		return outputs, nil
	})
	if err != nil {
		return err
	}
	if c.rank == opts.RootRank {
		copy(opts.Output, out)
	}
	return nil
}

func (c *inmemoryContext) Scatter(ctx context.Context, opts transport.ScatterOptions) error {
	chunkSize := len(opts.Output)
	input := opts.Input // only meaningful on the root
	out, err := c.rendezvous(ctx, opts.Tag, input, func(inputs [][]byte) ([][]byte, error) {
		rootInput := inputs[opts.RootRank]
		if chunkSize == 0 || len(rootInput) != chunkSize*len(inputs) {
			return nil, errors.Errorf("inmemory: scatter root input size %d does not match %d ranks * %d chunk", len(rootInput), len(inputs), chunkSize)
		}
		outputs := make([][]byte, len(inputs))
		for i := range outputs {
			outputs[i] = rootInput[i*chunkSize : (i+1)*chunkSize]
		}
		return outputs, nil
	})
	if err != nil {
		return err
	}
	copy(opts.Output, out)
	return nil
}

func (c *inmemoryContext) Barrier(ctx context.Context, opts transport.BarrierOptions) error {
	_, err := c.rendezvous(ctx, opts.Tag, nil, func(inputs [][]byte) ([][]byte, error) {
		return make([][]byte, len(inputs)), nil
	})
	return err
}
