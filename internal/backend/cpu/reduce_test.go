package cpu

import (
	"testing"

	"github.com/born-ml/mlconvert/internal/tensor"
	"github.com/stretchr/testify/assert"
)

func TestReduceSumLastAxis(t *testing.T) {
	backend := New()

	x := mustSlice(t, []int64{1, 2, 3, 4, 5, 6}, 2, 3)

	result := backend.ReduceSum(x, -1, false)
	assert.Equal(t, tensor.Shape{2}, result.Shape())
	assert.Equal(t, []int64{6, 15}, result.AsInt64())

	kept := backend.ReduceSum(x, 0, true)
	assert.Equal(t, tensor.Shape{1, 3}, kept.Shape())
	assert.Equal(t, []int64{5, 7, 9}, kept.AsInt64())
}

func TestReduceMinMaxAsLogic(t *testing.T) {
	backend := New()

	// Chunk matches for two rows of three chunks each.
	x := mustSlice(t, []int32{1, 1, 1, 1, 0, 1}, 2, 3)

	and := backend.ReduceMin(x, -1, false)
	assert.Equal(t, []int32{1, 0}, and.AsInt32())

	or := backend.ReduceMax(and, -1, true)
	assert.Equal(t, tensor.Shape{1}, or.Shape())
	assert.Equal(t, []int32{1}, or.AsInt32())
}

func TestReduceMinEmptyAxisPanics(t *testing.T) {
	backend := New()

	x, err := tensor.NewRaw(tensor.Shape{2, 0}, tensor.Int32, tensor.CPU)
	assert.NoError(t, err)

	assert.Panics(t, func() { backend.ReduceMin(x, 1, false) })
	assert.Equal(t, []int32{0, 0}, backend.ReduceSum(x, 1, false).AsInt32())
}

func TestArgmaxFirstWins(t *testing.T) {
	backend := New()

	x := mustSlice(t, []float32{0.1, 0.7, 0.7, 0.9, 0.2, 0.3}, 2, 3)

	result := backend.Argmax(x, 1, false)

	assert.Equal(t, tensor.Int64, result.DType())
	assert.Equal(t, []int64{1, 0}, result.AsInt64())
}
