package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenUnflatten(t *testing.T) {
	a := FromFloat32s([]float32{0}, []int{1})
	b := FromFloat32s([]float32{1}, []int{1})
	c := FromFloat32s([]float32{2}, []int{1})
	d := FromFloat32s([]float32{3}, []int{1})

	flat, err := Flatten([]ArrayBuffer{a, b, c, d})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 1}, flat.Shape())

	got, err := Float32s(flat)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 2, 3}, got)

	outs := []ArrayBuffer{NewHost(F32, []int{1}), NewHost(F32, []int{1}), NewHost(F32, []int{1}), NewHost(F32, []int{1})}
	require.NoError(t, Unflatten(flat, outs))
	for i, out := range outs {
		v, err := Float32s(out)
		require.NoError(t, err)
		assert.Equal(t, float32(i), v[0])
	}
}

func TestSameTypeAndShape(t *testing.T) {
	a := NewHost(F32, []int{2, 2})
	b := NewHost(F32, []int{2, 2})
	c := NewHost(F64, []int{2, 2})
	assert.True(t, SameTypeAndShape([]ArrayBuffer{a, b}))
	assert.False(t, SameTypeAndShape([]ArrayBuffer{a, c}))
}

func TestNewLikeFlat(t *testing.T) {
	sample := NewHost(I64, []int{3})
	flat := NewLikeFlat(4, sample)
	assert.Equal(t, []int{4, 3}, flat.Shape())
	assert.Equal(t, I64, flat.DType())
}
