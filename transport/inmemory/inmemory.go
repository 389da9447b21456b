// Package inmemory is a reference transport.Factory that rendezvouses and exchanges data
// entirely in-process over Go channels. It exists to exercise and test procgroup's
// dispatch layer (work queue, staging, validation, collective algorithms) without a real
// network transport, the wire algorithms of which are out of scope for this module --
//
//
// The matching logic here is grounded on the message-passing idiom used by the
// simulated-network examples in the retrieval pack (dist-sys's Host.Send/Recv and a
// direct channel rendezvous), adapted to the transport.Context/UnboundBuffer interfaces.
package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/procgroup/procgroup/transport"
)

// Hub is the shared in-process "network": every rank's Context for one logical group
// must be built from the same Hub.
type Hub struct {
	mu       sync.Mutex
	contexts map[string]*inmemoryContext // key: device.Name + "/" + rank

	roundsMu sync.Mutex
	rounds   map[string]*round // key: device.Name + "/" + tag
}

// NewHub creates a fresh, empty in-memory network.
func NewHub() *Hub {
	return &Hub{
		contexts: make(map[string]*inmemoryContext),
		rounds:   make(map[string]*round),
	}
}

// NewContext implements transport.Factory.
func (h *Hub) NewContext(device transport.Device, rank, size int) transport.Context {
	c := &inmemoryContext{hub: h, device: device, rank: rank, size: size}
	h.mu.Lock()
	h.contexts[contextKey(device, rank)] = c
	h.mu.Unlock()
	return c
}

func contextKey(device transport.Device, rank int) string {
	return fmt.Sprintf("%s/%d", device.Name, rank)
}

func (h *Hub) peer(device transport.Device, rank int) (*inmemoryContext, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.contexts[contextKey(device, rank)]
	if !ok {
		return nil, errors.Errorf("inmemory: no context registered for device %q rank %d", device.Name, rank)
	}
	return c, nil
}

type inmemoryContext struct {
	hub    *Hub
	device transport.Device
	rank   int
	size   int

	inboxMu  sync.Mutex
	messages []pendingMessage
	waiters  []pendingRecv
}

type pendingMessage struct {
	srcRank int
	tag     uint32
	data    []byte
	ackCh   chan error
}

type pendingRecv struct {
	allowed []int
	tag     uint32
	dst     []byte
	resultC chan matchResult
}

type matchResult struct {
	srcRank int
	err     error
}

func allowedContains(allowed []int, rank int) bool {
	for _, r := range allowed {
		if r == rank {
			return true
		}
	}
	return false
}

func (c *inmemoryContext) Rank() int { return c.rank }
func (c *inmemoryContext) Size() int { return c.size }

// Connect performs fullmesh rendezvous by having every rank publish a marker key and
// waiting for every other rank's key, genuinely exercising the RendezvousStore.
func (c *inmemoryContext) Connect(ctx context.Context, store transport.RendezvousStore) error {
	selfKey := fmt.Sprintf("inmemory/%s/%d", c.device.Name, c.rank)
	if err := store.Set(selfKey, []byte("ready")); err != nil {
		return errors.Wrap(err, "inmemory: publishing rendezvous key")
	}
	keys := make([]string, c.size)
	for r := 0; r < c.size; r++ {
		keys[r] = fmt.Sprintf("inmemory/%s/%d", c.device.Name, r)
	}
	deadline, hasDeadline := ctx.Deadline()
	timeout := defaultConnectTimeout
	if hasDeadline {
		timeout = deadlineToTimeout(deadline)
	}
	if err := store.Wait(keys, timeout); err != nil {
		return errors.Wrap(err, "inmemory: fullmesh rendezvous")
	}
	return nil
}

func (c *inmemoryContext) CreateUnboundBuffer(data []byte) transport.UnboundBuffer {
	return &unboundBuffer{ctx: c, data: data}
}

func (c *inmemoryContext) Close() error { return nil }

// deliverSend matches an incoming send against a pending recv, or queues it.
func (c *inmemoryContext) deliverSend(srcRank int, tag uint32, data []byte, ackCh chan error) {
	c.inboxMu.Lock()
	for i, w := range c.waiters {
		if w.tag == tag && allowedContains(w.allowed, srcRank) {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			c.inboxMu.Unlock()
			deliverMatch(w, srcRank, data, ackCh)
			return
		}
	}
	c.messages = append(c.messages, pendingMessage{srcRank: srcRank, tag: tag, data: data, ackCh: ackCh})
	c.inboxMu.Unlock()
}

// registerRecv matches a pending recv against a queued message, or registers it to wait.
func (c *inmemoryContext) registerRecv(allowed []int, tag uint32, dst []byte, resultC chan matchResult) {
	c.inboxMu.Lock()
	for i, m := range c.messages {
		if m.tag == tag && allowedContains(allowed, m.srcRank) {
			c.messages = append(c.messages[:i], c.messages[i+1:]...)
			c.inboxMu.Unlock()
			deliverMatch(pendingRecv{allowed: allowed, tag: tag, dst: dst, resultC: resultC}, m.srcRank, m.data, m.ackCh)
			return
		}
	}
	c.waiters = append(c.waiters, pendingRecv{allowed: allowed, tag: tag, dst: dst, resultC: resultC})
	c.inboxMu.Unlock()
}

func deliverMatch(w pendingRecv, srcRank int, data []byte, ackCh chan error) {
	var err error
	if len(data) != len(w.dst) {
		err = errors.Errorf("inmemory: recv size mismatch: want %d bytes, got %d", len(w.dst), len(data))
	} else {
		copy(w.dst, data)
	}
	w.resultC <- matchResult{srcRank: srcRank, err: err}
	if ackCh != nil {
		ackCh <- err
	}
}
