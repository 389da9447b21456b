// Package reduceop implements the element-wise reduction functions used by AllReduce and
// Reduce, dispatching on (Op, tensor.DType) pairs. It is grounded on gomlx's pattern of a
// static dispatch table populated at init() (see types/tensors dtype-keyed kernel
// registries) rather than a type switch repeated at every call site.
package reduceop

import (
	"github.com/procgroup/procgroup/errkind"
	"github.com/procgroup/procgroup/tensor"
	"github.com/procgroup/procgroup/transport"
)

// Op identifies a reduction operator.
type Op int

const (
	SUM Op = iota
	PRODUCT
	MIN
	MAX
	// UNUSED marks a reduce slot that carries no data (e.g. Barrier); looking it up is
	// always a fatal error.
	UNUSED
)

func (o Op) String() string {
	switch o {
	case SUM:
		return "sum"
	case PRODUCT:
		return "product"
	case MIN:
		return "min"
	case MAX:
		return "max"
	case UNUSED:
		return "unused"
	default:
		return "unknown"
	}
}

type key struct {
	op    Op
	dtype tensor.DType
}

var table map[key]transport.ReduceFunc

func init() {
	table = make(map[key]transport.ReduceFunc)
	registerNumeric(SUM)
	registerNumeric(PRODUCT)
	registerNumeric(MIN)
	registerNumeric(MAX)
}

func registerNumeric(op Op) {
	table[key{op, tensor.F32}] = f32Func(op)
	table[key{op, tensor.F64}] = f64Func(op)
	table[key{op, tensor.F16}] = f16Func(op)
	table[key{op, tensor.I32}] = i32Func(op)
	table[key{op, tensor.I64}] = i64Func(op)
	table[key{op, tensor.I8}] = i8Func(op)
	table[key{op, tensor.U8}] = u8Func(op)
}

// Lookup returns the ReduceFunc implementing op over dtype. UNUSED, or any (op, dtype)
// pair with no registered kernel (e.g. a dtype outside F32/F64/F16/I32/I64/I8/U8),
// returns a FatalError: a group is constructed with a
// fixed device/dtype and an invalid reduce op is a programming error, not a transient
// one.
func Lookup(op Op, dtype tensor.DType) (transport.ReduceFunc, error) {
	fn, ok := table[key{op, dtype}]
	if !ok {
		return nil, errkind.Fatalf("reduceop: no reduction registered for op=%s dtype=%s", op, dtype)
	}
	return fn, nil
}
