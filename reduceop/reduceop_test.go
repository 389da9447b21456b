package reduceop_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"

	"github.com/procgroup/procgroup/reduceop"
	"github.com/procgroup/procgroup/tensor"
)

func TestLookupSumF32(t *testing.T) {
	fn, err := reduceop.Lookup(reduceop.SUM, tensor.F32)
	require.NoError(t, err)

	a := tensor.FromFloat32s([]float32{1, 2, 3}, []int{3}).Bytes()
	b := tensor.FromFloat32s([]float32{10, 20, 30}, []int{3}).Bytes()
	dst := make([]byte, len(a))
	require.NoError(t, fn(dst, a, b))

	out := tensor.NewHost(tensor.F32, []int{3})
	copy(out.Bytes(), dst)
	vals, err := tensor.Float32s(out)
	require.NoError(t, err)
	assert.Equal(t, []float32{11, 22, 33}, vals)
}

func TestLookupSumF16(t *testing.T) {
	fn, err := reduceop.Lookup(reduceop.SUM, tensor.F16)
	require.NoError(t, err)

	a := make([]byte, 4)
	b := make([]byte, 4)
	tensor.EncodeU16(a, 0, uint16(float16.Fromfloat32(1)))
	tensor.EncodeU16(a, 1, uint16(float16.Fromfloat32(2)))
	tensor.EncodeU16(b, 0, uint16(float16.Fromfloat32(10)))
	tensor.EncodeU16(b, 1, uint16(float16.Fromfloat32(20)))
	dst := make([]byte, len(a))
	require.NoError(t, fn(dst, a, b))

	got0 := float16.Float16(tensor.DecodeU16(dst, 0)).Float32()
	got1 := float16.Float16(tensor.DecodeU16(dst, 1)).Float32()
	assert.Equal(t, float32(11), got0)
	assert.Equal(t, float32(22), got1)
}

func TestLookupMaxI64(t *testing.T) {
	fn, err := reduceop.Lookup(reduceop.MAX, tensor.I64)
	require.NoError(t, err)

	a := tensor.FromInt64s([]int64{1, 20, 3}, []int{3}).Bytes()
	b := tensor.FromInt64s([]int64{10, 2, 30}, []int{3}).Bytes()
	dst := make([]byte, len(a))
	require.NoError(t, fn(dst, a, b))

	out := tensor.NewHost(tensor.I64, []int{3})
	copy(out.Bytes(), dst)
	vals, err := tensor.Int64s(out)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20, 30}, vals)
}

func TestLookupUnusedIsFatal(t *testing.T) {
	_, err := reduceop.Lookup(reduceop.UNUSED, tensor.F32)
	require.Error(t, err)
}
