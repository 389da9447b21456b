// Package simdevice is a minimal in-process accelerator simulator: device-resident
// buffers backed by a distinct Go byte slice from their host counterpart, and
// goroutine-driven streams/events standing in for real hardware queues. It exists to
// exercise and test procgroup's device-staging path (package device) without real
// accelerator hardware, grounded on the device/stream split used by ALXDeng-dsml's
// simulated-GPU device and stream types.
package simdevice

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/procgroup/procgroup/device"
	"github.com/procgroup/procgroup/tensor"
)

// DeviceBuffer is a tensor.ArrayBuffer placed on a simulated accelerator. Its data lives
// in its own byte slice, distinct from host memory; crossing between the two requires
// going through a device.Staging, the same path real hardware takes.
type DeviceBuffer struct {
	dtype tensor.DType
	shape []int
	index int
	data  []byte
}

// NewDeviceBuffer allocates a zeroed dense, contiguous buffer on the simulated device at
// deviceIndex.
func NewDeviceBuffer(dtype tensor.DType, shape []int, deviceIndex int) *DeviceBuffer {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return &DeviceBuffer{
		dtype: dtype,
		shape: append([]int(nil), shape...),
		index: deviceIndex,
		data:  make([]byte, n*dtype.ByteWidth()),
	}
}

func (b *DeviceBuffer) DType() tensor.DType { return b.dtype }
func (b *DeviceBuffer) Shape() []int        { return b.shape }
func (b *DeviceBuffer) Placement() tensor.Placement {
	return tensor.Placement{Kind: tensor.Accelerator, Index: b.index}
}
func (b *DeviceBuffer) Dense() bool      { return true }
func (b *DeviceBuffer) Contiguous() bool { return true }

// Bytes returns nil: per tensor.ArrayBuffer's contract, raw bytes are only directly
// addressable for host-placed buffers. Use DeviceBytes (package device's staging path)
// instead.
func (b *DeviceBuffer) Bytes() []byte { return nil }

// DeviceBytes implements tensor.DeviceResident, giving the staging path raw access to
// this buffer's simulated device memory.
func (b *DeviceBuffer) DeviceBytes() []byte { return b.data }

func (b *DeviceBuffer) NumElements() int {
	n := 1
	for _, d := range b.shape {
		n *= d
	}
	return n
}

func (b *DeviceBuffer) ByteSize() int64 { return int64(len(b.data)) }

// CopyFrom copies directly when src is also device-resident on the same simulated
// device; any host<->device crossing must instead go through device.Staging, since that
// is where the async/pinned/stream/event protocol lives.
func (b *DeviceBuffer) CopyFrom(src tensor.ArrayBuffer, nonblocking bool) error {
	resident, ok := src.(tensor.DeviceResident)
	if !ok {
		return errors.New("simdevice: DeviceBuffer.CopyFrom requires a device-resident source; host<->device copies must go through device.Staging")
	}
	data := resident.DeviceBytes()
	if len(data) != len(b.data) {
		return errors.Errorf("simdevice: CopyFrom size mismatch: dst=%d bytes, src=%d bytes", len(b.data), len(data))
	}
	copy(b.data, data)
	return nil
}

var _ tensor.DeviceResident = (*DeviceBuffer)(nil)

// job is one unit of work enqueued on a simulated stream.
type job struct {
	fn func() error
}

type stream struct {
	jobs      chan job
	closeOnce sync.Once

	mu      sync.Mutex
	lastErr error
}

func newStream() *stream {
	s := &stream{jobs: make(chan job, 64)}
	go s.run()
	return s
}

func (s *stream) run() {
	for j := range s.jobs {
		if err := j.fn(); err != nil {
			s.mu.Lock()
			s.lastErr = err
			s.mu.Unlock()
		}
	}
}

func (s *stream) enqueue(fn func() error) {
	s.jobs <- job{fn: fn}
}

func (s *stream) EnqueueCopy(dst, src []byte) error {
	if len(dst) != len(src) {
		return errors.Errorf("simdevice: copy size mismatch dst=%d src=%d", len(dst), len(src))
	}
	s.enqueue(func() error {
		copy(dst, src)
		return nil
	})
	return nil
}

func (s *stream) Synchronize() error {
	done := make(chan struct{})
	s.enqueue(func() error {
		close(done)
		return nil
	})
	<-done
	s.mu.Lock()
	err := s.lastErr
	s.lastErr = nil
	s.mu.Unlock()
	return err
}

func (s *stream) WaitEvent(ev device.Event) error {
	e, ok := ev.(*event)
	if !ok {
		return errors.New("simdevice: foreign Event implementation")
	}
	s.enqueue(func() error {
		<-e.ch
		return nil
	})
	return nil
}

func (s *stream) close() {
	s.closeOnce.Do(func() { close(s.jobs) })
}

type event struct {
	ch   chan struct{}
	once sync.Once
}

func (e *event) Record(st device.Stream) error {
	s, ok := st.(*stream)
	if !ok {
		return errors.New("simdevice: foreign Stream implementation")
	}
	s.enqueue(func() error {
		e.once.Do(func() { close(e.ch) })
		return nil
	})
	return nil
}

// Events is a device.EventFactory producing simulated events.
type Events struct{}

func (Events) NewEvent(deviceIndex int) (device.Event, error) {
	return &event{ch: make(chan struct{})}, nil
}

// Pool is a device.StreamPool backed by simulated streams: one persistent default
// stream per device index, plus freshly created dedicated streams on Acquire.
type Pool struct {
	mu       sync.Mutex
	defaults map[int]*stream
}

// NewPool returns an empty simulated stream pool.
func NewPool() *Pool {
	return &Pool{defaults: make(map[int]*stream)}
}

func (p *Pool) Default(deviceIndex int) device.Stream {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.defaults[deviceIndex]
	if !ok {
		s = newStream()
		p.defaults[deviceIndex] = s
	}
	return s
}

// Acquire ignores highPriority: the simulated scheduler has no real preemption, it only
// needs to hand back a stream distinct from the device's default one.
func (p *Pool) Acquire(deviceIndex int, highPriority bool) (device.Stream, error) {
	return newStream(), nil
}

func (p *Pool) Release(s device.Stream) {
	if impl, ok := s.(*stream); ok {
		impl.close()
	}
}

// Guard is a no-op device.Guard: the simulation never actually changes an OS-level
// current device, it only threads deviceIndex through explicitly.
type Guard struct{}

func (Guard) SetDevice(deviceIndex int) (func(), error) {
	return func() {}, nil
}

var (
	_ device.StreamPool   = (*Pool)(nil)
	_ device.EventFactory = Events{}
	_ device.Guard        = Guard{}
)
