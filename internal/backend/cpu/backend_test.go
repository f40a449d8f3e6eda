package cpu

import (
	"sync"
	"testing"

	"github.com/born-ml/mlconvert/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCPUBackendMetadata(t *testing.T) {
	backend := New()

	assert.Equal(t, "CPU", backend.Name())
	assert.Equal(t, tensor.CPU, backend.Device())

	var _ tensor.Backend = backend
}

func TestArithmeticBroadcast(t *testing.T) {
	backend := New()

	x := mustSlice(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	offset := mustSlice(t, []float32{1, 1, 1}, 3)
	scale := mustSlice(t, []float32{2, 0.5, 1}, 3)

	result := backend.Mul(backend.Sub(x, offset), scale)

	assert.Equal(t, tensor.Shape{2, 3}, result.Shape())
	assert.InDeltaSlice(t, []float32{0, 0.5, 2, 6, 2, 5}, result.AsFloat32(), 1e-6)

	clamped := backend.Min(mustSlice(t, []int64{0, 3, 9}, 3), tensor.Scalar[int64](4))
	assert.Equal(t, []int64{0, 3, 4}, clamped.AsInt64())

	sum := backend.Add(mustSlice(t, []int32{1}, 1), mustSlice(t, []int32{1, 2}, 2, 1))
	assert.Equal(t, tensor.Shape{2, 1}, sum.Shape())
	assert.Equal(t, []int32{2, 3}, sum.AsInt32())
}

func TestArithmeticDTypeMismatchPanics(t *testing.T) {
	backend := New()

	a := mustSlice(t, []int32{1}, 1)
	b := mustSlice(t, []int64{1}, 1)

	assert.Panics(t, func() { backend.Add(a, b) })
}

func TestComparisons(t *testing.T) {
	backend := New()

	keys := mustSlice(t, []int64{0, 1, 2, 4, 5}, 5)
	x := backend.Unsqueeze(mustSlice(t, []int64{3, 5}, 2), -1)

	less := backend.Less(keys, x)
	assert.Equal(t, tensor.Shape{2, 5}, less.Shape())
	assert.Equal(t, []bool{
		true, true, true, false, false,
		true, true, true, true, false,
	}, less.AsBool())

	eq := backend.Equal(mustSlice(t, []bool{true, false}, 2), tensor.Scalar(true))
	assert.Equal(t, []bool{true, false}, eq.AsBool())

	gt := backend.Greater(mustSlice(t, []float64{0.2, 0.8}, 2), tensor.Scalar(0.5))
	assert.Equal(t, []bool{false, true}, gt.AsBool())
}

func TestBooleanOps(t *testing.T) {
	backend := New()

	a := mustSlice(t, []bool{true, true, false}, 3)
	b := mustSlice(t, []bool{true, false, false}, 3)

	assert.Equal(t, []bool{true, false, false}, backend.And(a, b).AsBool())
	assert.Equal(t, []bool{true, true, false}, backend.Or(a, b).AsBool())
	assert.Equal(t, []bool{false, false, true}, backend.Not(a).AsBool())
}

func TestShapeOps(t *testing.T) {
	backend := New()

	x := mustSlice(t, []int32{1, 2, 3, 4, 5, 6}, 6)

	assert.Equal(t, tensor.Shape{2, 3}, backend.Reshape(x, tensor.Shape{-1, 3}).Shape())
	assert.Equal(t, tensor.Shape{1, 6}, backend.Unsqueeze(x, 0).Shape())
	assert.Equal(t, tensor.Shape{6}, backend.Squeeze(backend.Unsqueeze(x, -1), -1).Shape())
	assert.Panics(t, func() { backend.Squeeze(x, 0) })
	assert.Panics(t, func() { backend.Reshape(x, tensor.Shape{4, -1}) })
}

func TestCast(t *testing.T) {
	backend := New()

	f := mustSlice(t, []float32{1.9, -2.5, 0}, 3)

	assert.Equal(t, []int64{1, -2, 0}, backend.Cast(f, tensor.Int64).AsInt64())
	assert.Equal(t, []bool{true, true, false}, backend.Cast(f, tensor.Bool).AsBool())

	b := mustSlice(t, []bool{true, false}, 2)
	assert.Equal(t, []int32{1, 0}, backend.Cast(b, tensor.Int32).AsInt32())
	assert.Equal(t, []float64{1, 0}, backend.Cast(b, tensor.Float64).AsFloat64())

	same := backend.Cast(f, tensor.Float32)
	assert.Same(t, f, same)
}

func TestKernelsLeaveInputsUntouched(t *testing.T) {
	backend := New()

	x := mustSlice(t, []int64{3, 1, 2}, 3)
	before := append([]int64(nil), x.AsInt64()...)

	backend.Add(x, x)
	backend.Min(x, tensor.Scalar[int64](0))
	backend.Gather(x, 0, mustSlice(t, []int64{0, 0}, 2))
	backend.Cast(x, tensor.Float32)

	require.Equal(t, before, x.AsInt64())
}

func TestConcurrentKernels(t *testing.T) {
	backend := New()

	keys := mustSlice(t, []int64{1, 2, 3}, 3)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v int64) {
			defer wg.Done()
			got := backend.Equal(keys, tensor.Scalar(v))
			assert.Len(t, got.AsBool(), 3)
		}(int64(i))
	}
	wg.Wait()
}
