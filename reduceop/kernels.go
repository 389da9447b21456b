package reduceop

import (
	"github.com/x448/float16"

	"github.com/procgroup/procgroup/tensor"
)

// Each kernel reduces byte-encoded arrays a and b element-wise into dst, where dst may
// alias a. All three slices must have equal length, a multiple of the scalar's byte
// width; this is enforced by the callers in package group before the transport ever
// invokes a ReduceFunc.

func f32Func(op Op) func(dst, a, b []byte) error {
	return func(dst, a, b []byte) error {
		n := len(a) / 4
		for i := 0; i < n; i++ {
			x := tensor.DecodeF32(a, i)
			y := tensor.DecodeF32(b, i)
			tensor.EncodeF32(dst, i, combineF32(op, x, y))
		}
		return nil
	}
}

// f16Func widens each f16 scalar to float32, combines, and narrows the result back,
// since float16.Float16 carries no arithmetic operators of its own.
func f16Func(op Op) func(dst, a, b []byte) error {
	return func(dst, a, b []byte) error {
		n := len(a) / 2
		for i := 0; i < n; i++ {
			x := float16.Float16(tensor.DecodeU16(a, i)).Float32()
			y := float16.Float16(tensor.DecodeU16(b, i)).Float32()
			tensor.EncodeU16(dst, i, uint16(float16.Fromfloat32(combineF32(op, x, y))))
		}
		return nil
	}
}

func f64Func(op Op) func(dst, a, b []byte) error {
	return func(dst, a, b []byte) error {
		n := len(a) / 8
		for i := 0; i < n; i++ {
			x := tensor.DecodeF64(a, i)
			y := tensor.DecodeF64(b, i)
			tensor.EncodeF64(dst, i, combineF64(op, x, y))
		}
		return nil
	}
}

func i32Func(op Op) func(dst, a, b []byte) error {
	return func(dst, a, b []byte) error {
		n := len(a) / 4
		for i := 0; i < n; i++ {
			x := tensor.DecodeI32(a, i)
			y := tensor.DecodeI32(b, i)
			tensor.EncodeI32(dst, i, int32(combineI64(op, int64(x), int64(y))))
		}
		return nil
	}
}

func i64Func(op Op) func(dst, a, b []byte) error {
	return func(dst, a, b []byte) error {
		n := len(a) / 8
		for i := 0; i < n; i++ {
			x := tensor.DecodeI64(a, i)
			y := tensor.DecodeI64(b, i)
			tensor.EncodeI64(dst, i, combineI64(op, x, y))
		}
		return nil
	}
}

func i8Func(op Op) func(dst, a, b []byte) error {
	return func(dst, a, b []byte) error {
		n := len(a)
		for i := 0; i < n; i++ {
			x := int64(int8(a[i]))
			y := int64(int8(b[i]))
			dst[i] = byte(int8(combineI64(op, x, y)))
		}
		return nil
	}
}

func u8Func(op Op) func(dst, a, b []byte) error {
	return func(dst, a, b []byte) error {
		n := len(a)
		for i := 0; i < n; i++ {
			x := int64(a[i])
			y := int64(b[i])
			dst[i] = byte(combineI64(op, x, y))
		}
		return nil
	}
}

func combineF32(op Op, x, y float32) float32 {
	switch op {
	case SUM:
		return x + y
	case PRODUCT:
		return x * y
	case MIN:
		if x < y {
			return x
		}
		return y
	case MAX:
		if x > y {
			return x
		}
		return y
	default:
		return x
	}
}

func combineF64(op Op, x, y float64) float64 {
	switch op {
	case SUM:
		return x + y
	case PRODUCT:
		return x * y
	case MIN:
		if x < y {
			return x
		}
		return y
	case MAX:
		if x > y {
			return x
		}
		return y
	default:
		return x
	}
}

func combineI64(op Op, x, y int64) int64 {
	switch op {
	case SUM:
		return x + y
	case PRODUCT:
		return x * y
	case MIN:
		if x < y {
			return x
		}
		return y
	case MAX:
		if x > y {
			return x
		}
		return y
	default:
		return x
	}
}
