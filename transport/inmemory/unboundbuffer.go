package inmemory

import (
	"context"

	"github.com/pkg/errors"
)

type unboundBuffer struct {
	ctx  *inmemoryContext
	data []byte

	sendDone chan error
	recvDone chan matchResult
}

func (ub *unboundBuffer) Send(dstRank int, tag uint32) error {
	peer, err := ub.ctx.hub.peer(ub.ctx.device, dstRank)
	if err != nil {
		return err
	}
	payload := append([]byte(nil), ub.data...)
	ub.sendDone = make(chan error, 1)
	peer.deliverSend(ub.ctx.rank, tag, payload, ub.sendDone)
	return nil
}

func (ub *unboundBuffer) WaitSend(ctx context.Context) error {
	if ub.sendDone == nil {
		return errors.New("inmemory: WaitSend called before Send")
	}
	select {
	case err := <-ub.sendDone:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (ub *unboundBuffer) Recv(srcRank int, tag uint32) error {
	return ub.startRecv([]int{srcRank}, tag)
}

func (ub *unboundBuffer) RecvAny(srcRanks []int, tag uint32) error {
	return ub.startRecv(srcRanks, tag)
}

func (ub *unboundBuffer) startRecv(allowed []int, tag uint32) error {
	ub.recvDone = make(chan matchResult, 1)
	ub.ctx.registerRecv(allowed, tag, ub.data, ub.recvDone)
	return nil
}

func (ub *unboundBuffer) WaitRecv(ctx context.Context) (int, error) {
	if ub.recvDone == nil {
		return 0, errors.New("inmemory: WaitRecv called before Recv/RecvAny")
	}
	select {
	case res := <-ub.recvDone:
		return res.srcRank, res.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
