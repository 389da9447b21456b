package group_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/procgroup/procgroup/reduceop"
	"github.com/procgroup/procgroup/tensor"
)

func TestAllGatherEmptyInputIsArgumentError(t *testing.T) {
	groups := connectGroups(t, 2)
	_, err := groups[0].AllGather(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestGatherNonRootProvidingOutputsIsArgumentError(t *testing.T) {
	groups := connectGroups(t, 3)
	in := []tensor.ArrayBuffer{tensor.FromInt64s([]int64{1}, []int{1})}
	bogusOutputs := [][]tensor.ArrayBuffer{{tensor.FromInt64s([]int64{0}, []int{1})}}
	// rank 1 is not root (root is rank 0) but supplies a non-empty outputs list.
	_, err := groups[1].Gather(context.Background(), bogusOutputs, in, 0)
	assert.Error(t, err)
}

func TestScatterNonRootProvidingInputsIsArgumentError(t *testing.T) {
	groups := connectGroups(t, 3)
	out := []tensor.ArrayBuffer{tensor.FromInt64s([]int64{0}, []int{1})}
	bogusInputs := [][]tensor.ArrayBuffer{{
		tensor.FromInt64s([]int64{0}, []int{1}),
		tensor.FromInt64s([]int64{1}, []int{1}),
		tensor.FromInt64s([]int64{2}, []int{1}),
	}}
	_, err := groups[1].Scatter(context.Background(), out, bogusInputs, 0)
	assert.Error(t, err)
}

func TestSendNegativeTagIsArgumentError(t *testing.T) {
	groups := connectGroups(t, 2)
	buf := tensor.FromInt64s([]int64{1}, []int{1})
	_, err := groups[0].Send(context.Background(), buf, 1, -1)
	assert.Error(t, err)
}

func TestAllReduceUnusedOpIsArgumentError(t *testing.T) {
	groups := connectGroups(t, 2)
	buf := tensor.FromInt64s([]int64{1}, []int{1})
	_, err := groups[0].AllReduce(context.Background(), []tensor.ArrayBuffer{buf}, reduceop.UNUSED)
	assert.Error(t, err)
}

func TestRootRankOutOfRangeIsArgumentError(t *testing.T) {
	groups := connectGroups(t, 2)
	buf := []tensor.ArrayBuffer{tensor.FromInt64s([]int64{1}, []int{1})}
	_, err := groups[0].Broadcast(context.Background(), buf, 5, 0)
	assert.Error(t, err)
}
