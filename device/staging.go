package device

import "github.com/pkg/errors"

// Staging implements the per-input device-staging protocol: one pinned host buffer,
// one dedicated non-default stream, and one event,
// index-aligned with a single device-resident input buffer.
//
// Lifecycle:
//  1. New allocates the pinned buffer and dedicated stream, and serializes the dedicated
//     stream with the caller's prior work on the default stream (so the staging copy
//     never races a compute kernel the caller already queued).
//  2. StageOut (sender / allreduce side) enqueues a non-blocking device->pinned copy on
//     the dedicated stream.
//  3. BlockUntilStaged, called from the worker goroutine right before the transport call,
//     synchronizes the dedicated stream so the host-side transport call observes valid
//     data.
//  4. StageIn enqueues the non-blocking pinned->device copy after the transport call
//     completes, and records the completion event.
//  5. FenceCaller, called from the caller's goroutine in Work.Synchronize, makes the
//     caller's default stream wait on the completion event -- the caller is correctly
//     ordered after the collective without ever blocking on the host.
type Staging struct {
	pool        StreamPool
	deviceIndex int

	buf     []byte
	freeBuf func()
	stream  Stream

	guardRelease func()

	completion Event
}

// New allocates a Staging for one device-resident input of byteSize bytes on
// deviceIndex. If guard is non-nil, deviceIndex becomes the active device for the
// duration of the Staging's lifetime (released on Close), bracketing every stream
// operation New through Close enqueues, the way gloo's CUDAGuard brackets its staged
// copies. guard may be nil for a single-device setup with no ambient "current device"
// to switch.
//
// New also records an event on the caller's current default stream and has the newly
// acquired dedicated stream wait on it, per step 1 above.
func New(pool StreamPool, pinned PinnedAllocator, events EventFactory, guard Guard, deviceIndex int, byteSize int64) (*Staging, error) {
	var guardRelease func()
	if guard != nil {
		release, err := guard.SetDevice(deviceIndex)
		if err != nil {
			return nil, errors.Wrap(err, "device: setting active device")
		}
		guardRelease = release
	}
	buf, free, err := pinned.AllocPinned(byteSize)
	if err != nil {
		if guardRelease != nil {
			guardRelease()
		}
		return nil, errors.Wrap(err, "device: allocating pinned staging buffer")
	}
	stream, err := pool.Acquire(deviceIndex, true)
	if err != nil {
		free()
		if guardRelease != nil {
			guardRelease()
		}
		return nil, errors.Wrap(err, "device: acquiring staging stream")
	}
	startEvent, err := events.NewEvent(deviceIndex)
	if err != nil {
		pool.Release(stream)
		free()
		if guardRelease != nil {
			guardRelease()
		}
		return nil, errors.Wrap(err, "device: creating staging start event")
	}
	defaultStream := pool.Default(deviceIndex)
	if err := startEvent.Record(defaultStream); err != nil {
		pool.Release(stream)
		free()
		if guardRelease != nil {
			guardRelease()
		}
		return nil, errors.Wrap(err, "device: recording start event on caller stream")
	}
	if err := stream.WaitEvent(startEvent); err != nil {
		pool.Release(stream)
		free()
		if guardRelease != nil {
			guardRelease()
		}
		return nil, errors.Wrap(err, "device: serializing staging stream with caller's prior work")
	}
	return &Staging{
		pool:         pool,
		deviceIndex:  deviceIndex,
		buf:          buf,
		freeBuf:      free,
		stream:       stream,
		guardRelease: guardRelease,
	}, nil
}

// HostBytes returns the pinned host buffer backing this staging area.
func (s *Staging) HostBytes() []byte { return s.buf }

// StageOut enqueues a non-blocking copy of deviceBytes into the pinned host buffer.
func (s *Staging) StageOut(deviceBytes []byte) error {
	return s.stream.EnqueueCopy(s.buf, deviceBytes)
}

// BlockUntilStaged blocks the calling goroutine (the worker running Work.run) until the
// dedicated stream's enqueued copies have completed.
func (s *Staging) BlockUntilStaged() error {
	return s.stream.Synchronize()
}

// StageIn enqueues a non-blocking copy of the pinned host buffer back into deviceBytes,
// and records the completion event used by FenceCaller.
func (s *Staging) StageIn(deviceBytes []byte, events EventFactory) error {
	if err := s.stream.EnqueueCopy(deviceBytes, s.buf); err != nil {
		return err
	}
	ev, err := events.NewEvent(s.deviceIndex)
	if err != nil {
		return errors.Wrap(err, "device: creating staging completion event")
	}
	if err := ev.Record(s.stream); err != nil {
		return errors.Wrap(err, "device: recording staging completion event")
	}
	s.completion = ev
	return nil
}

// FenceCaller makes the caller's current default stream wait on the staging completion
// event, so the caller's subsequent enqueued work is correctly ordered after the
// collective's device-side copies without the caller ever blocking the host.
func (s *Staging) FenceCaller() error {
	if s.completion == nil {
		return errors.New("device: FenceCaller called before StageIn")
	}
	callerStream := s.pool.Default(s.deviceIndex)
	return callerStream.WaitEvent(s.completion)
}

// Close releases the dedicated stream, frees the pinned buffer, and releases the device
// guard acquired in New, if any. Safe to call once, after the work item holding this
// Staging has completed.
func (s *Staging) Close() {
	s.pool.Release(s.stream)
	if s.freeBuf != nil {
		s.freeBuf()
	}
	if s.guardRelease != nil {
		s.guardRelease()
	}
}
