// Package tensor defines the array-buffer interface consumed by procgroup's collective
// operations.
//
// The real numeric-array runtime (allocation, device guards, kernels) is an external
// collaborator out of scope for this module. This package
// only defines the narrow surface procgroup needs: scalar type, shape, device placement,
// density/contiguity, byte access, and an allocator-aware copy. hostbuffer.go in this
// package provides a minimal host-resident implementation good enough to exercise and
// test the collectives without a real accelerator.
package tensor

import "github.com/pkg/errors"

// DType is the scalar element type of an ArrayBuffer.
type DType int

const (
	F32 DType = iota
	F64
	F16
	I8
	U8
	I32
	I64
)

func (d DType) String() string {
	switch d {
	case F32:
		return "f32"
	case F64:
		return "f64"
	case F16:
		return "f16"
	case I8:
		return "i8"
	case U8:
		return "u8"
	case I32:
		return "i32"
	case I64:
		return "i64"
	default:
		return "unknown"
	}
}

// ByteWidth returns the size in bytes of one element of the given type.
func (d DType) ByteWidth() int {
	switch d {
	case F32, I32:
		return 4
	case F64, I64:
		return 8
	case F16:
		return 2
	case I8, U8:
		return 1
	default:
		return 0
	}
}

// DeviceKind discriminates where an ArrayBuffer's data lives.
type DeviceKind int

const (
	Host DeviceKind = iota
	Accelerator
)

func (k DeviceKind) String() string {
	if k == Accelerator {
		return "accelerator"
	}
	return "host"
}

// Placement names where a buffer lives: a device kind plus, for Accelerator, a device
// index.
type Placement struct {
	Kind  DeviceKind
	Index int
}

// ArrayBuffer is the opaque handle procgroup operates on: a multi-dimensional numeric
// array with a scalar type, shape, device placement, and density/contiguity flags.
type ArrayBuffer interface {
	// DType is the scalar element type.
	DType() DType

	// Shape returns the buffer's dimensions. Callers must not mutate the returned slice.
	Shape() []int

	// NumElements is the product of Shape.
	NumElements() int

	// ByteSize is NumElements * DType.ByteWidth, valid only for dense buffers.
	ByteSize() int64

	// Placement reports where the buffer's data resides.
	Placement() Placement

	// Dense reports whether the buffer has no gaps between logical elements (no sparse
	// storage).
	Dense() bool

	// Contiguous reports whether the buffer's strides match a row-major dense layout.
	Contiguous() bool

	// Bytes returns the buffer's raw storage as a byte slice. It is only valid for
	// host-placed, dense, contiguous buffers; callers must check Placement/Dense/
	// Contiguous first. The returned slice aliases the buffer's storage.
	Bytes() []byte

	// CopyFrom copies the contents of src into the receiver. If nonblocking is true and
	// the copy crosses device placements, the call may return before the copy has
	// completed; the caller must synchronize through the owning device stream/event
	// before relying on the destination.
	CopyFrom(src ArrayBuffer, nonblocking bool) error
}

// DeviceResident is implemented by ArrayBuffer values placed on an accelerator, giving
// the owning backend's staging logic (package device) access to the raw device-side
// bytes. Host buffers do not implement this; Bytes() already exposes their storage
// directly.
type DeviceResident interface {
	ArrayBuffer
	DeviceBytes() []byte
}

// SameTypeAndShape reports whether all buffers share one DType and one Shape.
func SameTypeAndShape(buffers []ArrayBuffer) bool {
	if len(buffers) == 0 {
		return true
	}
	dtype := buffers[0].DType()
	shape := buffers[0].Shape()
	for _, b := range buffers[1:] {
		if b.DType() != dtype || !shapeEqual(b.Shape(), shape) {
			return false
		}
	}
	return true
}

// SameDeviceKind reports whether all buffers are on the same DeviceKind (all Host or all
// Accelerator); it does not require the same device Index.
func SameDeviceKind(buffers []ArrayBuffer) bool {
	if len(buffers) == 0 {
		return true
	}
	kind := buffers[0].Placement().Kind
	for _, b := range buffers[1:] {
		if b.Placement().Kind != kind {
			return false
		}
	}
	return true
}

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Flatten concatenates a list of dense, same-typed buffers along a new leading dimension
// into one new contiguous host buffer of shape [len(buffers), *sizes]. All inputs must
// share DType, Shape, Dense and Contiguous, and be Host-placed.
func Flatten(buffers []ArrayBuffer) (ArrayBuffer, error) {
	if len(buffers) == 0 {
		return nil, errors.New("tensor.Flatten: empty buffer list")
	}
	if !SameTypeAndShape(buffers) {
		return nil, errors.New("tensor.Flatten: buffers do not share dtype/shape")
	}
	dtype := buffers[0].DType()
	innerShape := buffers[0].Shape()
	shape := append([]int{len(buffers)}, innerShape...)
	out := NewHost(dtype, shape)
	stride := buffers[0].ByteSize()
	data := out.Bytes()
	for i, b := range buffers {
		if b.Placement().Kind != Host || !b.Dense() || !b.Contiguous() {
			return nil, errors.Errorf("tensor.Flatten: input %d is not a dense contiguous host buffer", i)
		}
		copy(data[int64(i)*stride:], b.Bytes())
	}
	return out, nil
}

// NewLikeFlat builds a new contiguous host buffer shaped [n, *sample.Shape()], matching
// sample's DType. It is used by allgather/gather to allocate the flat receive buffer
// before the transport call fills it and it is unflattened into the caller-provided
// outputs.
func NewLikeFlat(n int, sample ArrayBuffer) ArrayBuffer {
	shape := append([]int{n}, sample.Shape()...)
	return NewHost(sample.DType(), shape)
}

// Unflatten slices flat (shaped [n, *innerShape]) along its leading dimension into n
// chunks, copying each into the corresponding entry of outputs. len(outputs) must equal
// the leading dimension of flat.
func Unflatten(flat ArrayBuffer, outputs []ArrayBuffer) error {
	shape := flat.Shape()
	if len(shape) == 0 {
		return errors.New("tensor.Unflatten: flat buffer has no leading dimension")
	}
	n := shape[0]
	if n != len(outputs) {
		return errors.Errorf("tensor.Unflatten: flat leading dimension %d does not match %d outputs", n, len(outputs))
	}
	data := flat.Bytes()
	chunk := int64(0)
	if n > 0 {
		chunk = int64(len(data)) / int64(n)
	}
	for i, out := range outputs {
		if err := out.CopyFrom(wrapBytes(out.DType(), out.Shape(), data[int64(i)*chunk:(int64(i)+1)*chunk]), false); err != nil {
			return errors.Wrapf(err, "tensor.Unflatten: output %d", i)
		}
	}
	return nil
}
