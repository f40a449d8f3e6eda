package cpu

import (
	"testing"

	"github.com/born-ml/mlconvert/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSlice[T tensor.DType](t *testing.T, data []T, shape ...int) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.FromSlice(data, tensor.Shape(shape))
	require.NoError(t, err)
	return raw
}

func TestGather1D(t *testing.T) {
	backend := New()

	input := mustSlice(t, []float32{10, 20, 30, 40}, 4)
	index := mustSlice(t, []int32{2, 0, 3}, 3)

	result := backend.Gather(input, 0, index)

	assert.Equal(t, tensor.Shape{3}, result.Shape())
	assert.Equal(t, []float32{30, 10, 40}, result.AsFloat32())
}

func TestGatherRows(t *testing.T) {
	backend := New()

	// [[1, 2], [3, 4], [5, 6]]
	input := mustSlice(t, []int64{1, 2, 3, 4, 5, 6}, 3, 2)
	index := mustSlice(t, []int64{2, -3}, 2)

	result := backend.Gather(input, 0, index)

	assert.Equal(t, tensor.Shape{2, 2}, result.Shape())
	assert.Equal(t, []int64{5, 6, 1, 2}, result.AsInt64())
}

func TestGatherAxis1ScalarIndex(t *testing.T) {
	backend := New()

	// [[1, 2, 3], [4, 5, 6]]
	input := mustSlice(t, []int64{1, 2, 3, 4, 5, 6}, 2, 3)

	result := backend.Gather(input, 1, tensor.Scalar[int64](1))

	assert.Equal(t, tensor.Shape{2}, result.Shape())
	assert.Equal(t, []int64{2, 5}, result.AsInt64())
}

func TestGatherOutOfRangePanics(t *testing.T) {
	backend := New()

	input := mustSlice(t, []int64{1, 2}, 2)
	index := mustSlice(t, []int64{2}, 1)

	assert.Panics(t, func() { backend.Gather(input, 0, index) })
}

func TestWhereBroadcast(t *testing.T) {
	backend := New()

	cond := mustSlice(t, []bool{true, false, true}, 3)
	x := mustSlice(t, []int64{1, 2, 3}, 3)
	fallback := tensor.Scalar[int64](-1)

	result := backend.Where(cond, x, fallback)

	assert.Equal(t, []int64{1, -1, 3}, result.AsInt64())
}

func TestWhereRejectsNonBoolCondition(t *testing.T) {
	backend := New()

	x := mustSlice(t, []int64{1, 2}, 2)
	assert.Panics(t, func() { backend.Where(x, x, x) })
}

func TestNonZero(t *testing.T) {
	backend := New()

	// [[0, 1, 0], [1, 0, 1]]
	x := mustSlice(t, []int32{0, 1, 0, 1, 0, 1}, 2, 3)

	result := backend.NonZero(x)

	assert.Equal(t, tensor.Shape{2, 3}, result.Shape())
	assert.Equal(t, []int64{
		0, 1, 1, // rows
		1, 0, 2, // cols
	}, result.AsInt64())
}

func TestNonZeroEmpty(t *testing.T) {
	backend := New()

	x := mustSlice(t, []bool{false, false}, 2)

	result := backend.NonZero(x)

	assert.Equal(t, tensor.Shape{1, 0}, result.Shape())
	assert.Empty(t, result.AsInt64())
}

func TestConcatLastAxis(t *testing.T) {
	backend := New()

	a := mustSlice(t, []int32{1, 2, 3, 4}, 2, 2)
	b := mustSlice(t, []int32{9, 8}, 2, 1)

	result := backend.Concat([]*tensor.RawTensor{a, b}, -1)

	assert.Equal(t, tensor.Shape{2, 3}, result.Shape())
	assert.Equal(t, []int32{1, 2, 9, 3, 4, 8}, result.AsInt32())
}

func TestConcatFirstAxis(t *testing.T) {
	backend := New()

	a := mustSlice(t, []float64{1, 2}, 1, 2)
	b := mustSlice(t, []float64{3, 4, 5, 6}, 2, 2)

	result := backend.Concat([]*tensor.RawTensor{a, b}, 0)

	assert.Equal(t, tensor.Shape{3, 2}, result.Shape())
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, result.AsFloat64())
}

func TestConcatShapeMismatchPanics(t *testing.T) {
	backend := New()

	a := mustSlice(t, []int32{1, 2}, 1, 2)
	b := mustSlice(t, []int32{1, 2, 3}, 1, 3)

	assert.Panics(t, func() { backend.Concat([]*tensor.RawTensor{a, b}, 0) })
}
