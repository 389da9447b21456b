package tensor

import "github.com/pkg/errors"

// hostBuffer is a dense, contiguous, host-resident ArrayBuffer backed by a plain Go
// byte slice. It is the reference implementation used by procgroup's tests and the
// demo binary; a real binding would instead wrap the numeric runtime's own tensor type.
type hostBuffer struct {
	dtype DType
	shape []int
	data  []byte
}

// NewHost allocates a zeroed, dense, contiguous host buffer of the given DType and shape.
func NewHost(dtype DType, shape []int) ArrayBuffer {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return &hostBuffer{
		dtype: dtype,
		shape: append([]int(nil), shape...),
		data:  make([]byte, n*dtype.ByteWidth()),
	}
}

// wrapBytes builds a host buffer that aliases an existing byte slice, without copying.
// Used internally to adapt a slice of a larger buffer into an ArrayBuffer for CopyFrom.
func wrapBytes(dtype DType, shape []int, data []byte) ArrayBuffer {
	return &hostBuffer{dtype: dtype, shape: append([]int(nil), shape...), data: data}
}

func (b *hostBuffer) DType() DType       { return b.dtype }
func (b *hostBuffer) Shape() []int       { return b.shape }
func (b *hostBuffer) Placement() Placement { return Placement{Kind: Host} }
func (b *hostBuffer) Dense() bool        { return true }
func (b *hostBuffer) Contiguous() bool   { return true }
func (b *hostBuffer) Bytes() []byte      { return b.data }

func (b *hostBuffer) NumElements() int {
	n := 1
	for _, d := range b.shape {
		n *= d
	}
	return n
}

func (b *hostBuffer) ByteSize() int64 { return int64(len(b.data)) }

func (b *hostBuffer) CopyFrom(src ArrayBuffer, nonblocking bool) error {
	if src.Placement().Kind != Host {
		return errors.New("tensor: hostBuffer.CopyFrom requires a host-placed source; accelerator sources must stage through device.Staging")
	}
	srcBytes := src.Bytes()
	if len(srcBytes) != len(b.data) {
		return errors.Errorf("tensor: CopyFrom size mismatch: dst=%d bytes, src=%d bytes", len(b.data), len(srcBytes))
	}
	copy(b.data, srcBytes)
	return nil
}

// FromFloat32s builds a dense host F32 buffer with the given shape, filled from flat.
// len(flat) must equal the product of shape.
func FromFloat32s(flat []float32, shape []int) ArrayBuffer {
	buf := NewHost(F32, shape).(*hostBuffer)
	for i, v := range flat {
		putF32(buf.data[i*4:], v)
	}
	return buf
}

// Float32s returns the buffer's contents as a []float32. The buffer must be F32, dense,
// contiguous and host-placed.
func Float32s(b ArrayBuffer) ([]float32, error) {
	if b.DType() != F32 {
		return nil, errors.Errorf("tensor.Float32s: buffer has dtype %s, want f32", b.DType())
	}
	if b.Placement().Kind != Host || !b.Dense() || !b.Contiguous() {
		return nil, errors.New("tensor.Float32s: buffer must be dense, contiguous and host-placed")
	}
	data := b.Bytes()
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = getF32(data[i*4:])
	}
	return out, nil
}

// FromInt64s builds a dense host I64 buffer with the given shape, filled from flat.
func FromInt64s(flat []int64, shape []int) ArrayBuffer {
	buf := NewHost(I64, shape).(*hostBuffer)
	for i, v := range flat {
		putI64(buf.data[i*8:], v)
	}
	return buf
}

// Int64s returns the buffer's contents as a []int64. The buffer must be I64, dense,
// contiguous and host-placed.
func Int64s(b ArrayBuffer) ([]int64, error) {
	if b.DType() != I64 {
		return nil, errors.Errorf("tensor.Int64s: buffer has dtype %s, want i64", b.DType())
	}
	if b.Placement().Kind != Host || !b.Dense() || !b.Contiguous() {
		return nil, errors.New("tensor.Int64s: buffer must be dense, contiguous and host-placed")
	}
	data := b.Bytes()
	out := make([]int64, len(data)/8)
	for i := range out {
		out[i] = getI64(data[i*8:])
	}
	return out, nil
}
