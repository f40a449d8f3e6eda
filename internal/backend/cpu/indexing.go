package cpu

import (
	"fmt"

	"github.com/born-ml/mlconvert/internal/tensor"
)

// Gather selects slices of x along axis using an int32/int64 index tensor.
//
// The output shape is x.shape[:axis] + index.shape + x.shape[axis+1:], so a
// rank-0 index removes the axis. Negative indices count from the end.
func (cpu *CPUBackend) Gather(x *tensor.RawTensor, axis int, index *tensor.RawTensor) *tensor.RawTensor {
	shape := x.Shape()
	axis, err := tensor.NormalizeAxis(axis, len(shape))
	if err != nil {
		panic(fmt.Sprintf("gather: %v", err))
	}

	indices := indexValues("gather", index)

	outShape := make(tensor.Shape, 0, len(shape)+len(index.Shape()))
	outShape = append(outShape, shape[:axis]...)
	outShape = append(outShape, index.Shape()...)
	outShape = append(outShape, shape[axis+1:]...)
	result := cpu.newResult("gather", outShape, x.DType())

	outer, inner := 1, 1
	for i := 0; i < axis; i++ {
		outer *= shape[i]
	}
	for i := axis + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	dim := shape[axis]
	chunk := inner * x.DType().Size()

	src, dst := x.Data(), result.Data()
	n := len(indices)
	for o := 0; o < outer; o++ {
		for j, idx := range indices {
			if idx < 0 {
				idx += dim
			}
			if idx < 0 || idx >= dim {
				panic(fmt.Sprintf("gather: index %d out of range for axis of size %d", indices[j], dim))
			}
			from := (o*dim + idx) * chunk
			copy(dst[(o*n+j)*chunk:], src[from:from+chunk])
		}
	}

	return result
}

// indexValues reads an int32/int64 tensor as ints.
func indexValues(op string, index *tensor.RawTensor) []int {
	out := make([]int, index.NumElements())
	switch index.DType() {
	case tensor.Int32:
		for i, v := range index.AsInt32() {
			out[i] = int(v)
		}
	case tensor.Int64:
		for i, v := range index.AsInt64() {
			out[i] = int(v)
		}
	default:
		panic(fmt.Sprintf("%s: index tensor must be int32 or int64, got %s", op, index.DType()))
	}
	return out
}

// Where selects x where condition holds and y elsewhere, broadcasting all three.
func (cpu *CPUBackend) Where(condition, x, y *tensor.RawTensor) *tensor.RawTensor {
	if condition.DType() != tensor.Bool {
		panic(fmt.Sprintf("where: condition must be bool, got %s", condition.DType()))
	}
	if x.DType() != y.DType() {
		panic(fmt.Sprintf("where: dtype mismatch %s vs %s", x.DType(), y.DType()))
	}

	partial, _, err := tensor.BroadcastShapes(condition.Shape(), x.Shape())
	if err != nil {
		panic(fmt.Sprintf("where: %v", err))
	}
	outShape, _, err := tensor.BroadcastShapes(partial, y.Shape())
	if err != nil {
		panic(fmt.Sprintf("where: %v", err))
	}
	result := cpu.newResult("where", outShape, x.DType())

	outStrides := outShape.ComputeStrides()
	cStrides := computeBroadcastStridesForShape(condition.Shape(), outShape)
	xStrides := computeBroadcastStridesForShape(x.Shape(), outShape)
	yStrides := computeBroadcastStridesForShape(y.Shape(), outShape)

	cond := condition.AsBool()
	elem := x.DType().Size()
	xData, yData, dst := x.Data(), y.Data(), result.Data()
	for i := 0; i < result.NumElements(); i++ {
		var src []byte
		var at int
		if cond[computeFlatIndex(i, outStrides, cStrides)] {
			src, at = xData, computeFlatIndex(i, outStrides, xStrides)
		} else {
			src, at = yData, computeFlatIndex(i, outStrides, yStrides)
		}
		copy(dst[i*elem:(i+1)*elem], src[at*elem:(at+1)*elem])
	}

	return result
}

// NonZero returns the coordinates of non-zero elements as an int64 tensor of
// shape [rank, count], in row-major order of the input.
func (cpu *CPUBackend) NonZero(x *tensor.RawTensor) *tensor.RawTensor {
	shape := x.Shape()
	if len(shape) == 0 {
		panic("nonZero: scalar input is not supported")
	}

	mask := nonZeroMask(x)
	count := 0
	for _, ok := range mask {
		if ok {
			count++
		}
	}

	result := cpu.newResult("nonZero", tensor.Shape{len(shape), count}, tensor.Int64)
	dst := result.AsInt64()
	strides := shape.ComputeStrides()
	k := 0
	for flat, ok := range mask {
		if !ok {
			continue
		}
		rem := flat
		for d := range shape {
			dst[d*count+k] = int64(rem / strides[d])
			rem %= strides[d]
		}
		k++
	}

	return result
}

func nonZeroMask(x *tensor.RawTensor) []bool {
	switch x.DType() {
	case tensor.Bool:
		return append([]bool(nil), x.AsBool()...)
	case tensor.Float32:
		return maskOf(x.AsFloat32())
	case tensor.Float64:
		return maskOf(x.AsFloat64())
	case tensor.Int32:
		return maskOf(x.AsInt32())
	case tensor.Int64:
		return maskOf(x.AsInt64())
	case tensor.Uint8:
		return maskOf(x.AsUint8())
	default:
		panic(fmt.Sprintf("nonZero: unsupported dtype %s", x.DType()))
	}
}

func maskOf[T number](data []T) []bool {
	mask := make([]bool, len(data))
	for i, v := range data {
		mask[i] = v != 0
	}
	return mask
}
