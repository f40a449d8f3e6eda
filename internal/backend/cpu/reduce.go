package cpu

import (
	"fmt"

	"github.com/born-ml/mlconvert/internal/tensor"
)

type reduceOp int

const (
	reduceSum reduceOp = iota
	reduceMin
	reduceMax
)

func (op reduceOp) String() string {
	switch op {
	case reduceSum:
		return "reduceSum"
	case reduceMin:
		return "reduceMin"
	default:
		return "reduceMax"
	}
}

// ReduceSum sums x along axis.
func (cpu *CPUBackend) ReduceSum(x *tensor.RawTensor, axis int, keepDim bool) *tensor.RawTensor {
	return cpu.reduce(reduceSum, x, axis, keepDim)
}

// ReduceMin takes the minimum of x along axis.
// On 0/1 integer tensors this is a logical AND.
func (cpu *CPUBackend) ReduceMin(x *tensor.RawTensor, axis int, keepDim bool) *tensor.RawTensor {
	return cpu.reduce(reduceMin, x, axis, keepDim)
}

// ReduceMax takes the maximum of x along axis.
// On 0/1 integer tensors this is a logical OR.
func (cpu *CPUBackend) ReduceMax(x *tensor.RawTensor, axis int, keepDim bool) *tensor.RawTensor {
	return cpu.reduce(reduceMax, x, axis, keepDim)
}

// reduceLayout splits shape around axis into outer*dim*inner and
// returns the shape of the reduced result.
func reduceLayout(op string, shape tensor.Shape, axis int, keepDim bool) (outer, dim, inner int, outShape tensor.Shape) {
	axis, err := tensor.NormalizeAxis(axis, len(shape))
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	outer, inner = 1, 1
	for i := 0; i < axis; i++ {
		outer *= shape[i]
	}
	for i := axis + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	dim = shape[axis]

	outShape = make(tensor.Shape, 0, len(shape))
	outShape = append(outShape, shape[:axis]...)
	if keepDim {
		outShape = append(outShape, 1)
	}
	outShape = append(outShape, shape[axis+1:]...)
	return outer, dim, inner, outShape
}

func reduceAxis[T number](op reduceOp, dst, src []T, outer, dim, inner int) {
	if dim == 0 && op != reduceSum {
		panic(fmt.Sprintf("%s: cannot reduce an empty axis", op))
	}
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			base := o*dim*inner + i
			var acc T
			if dim > 0 {
				acc = src[base]
			}
			for d := 1; d < dim; d++ {
				v := src[base+d*inner]
				switch op {
				case reduceSum:
					acc += v
				case reduceMin:
					acc = min(acc, v)
				case reduceMax:
					acc = max(acc, v)
				}
			}
			dst[o*inner+i] = acc
		}
	}
}

func (cpu *CPUBackend) reduce(op reduceOp, x *tensor.RawTensor, axis int, keepDim bool) *tensor.RawTensor {
	outer, dim, inner, outShape := reduceLayout(op.String(), x.Shape(), axis, keepDim)
	result := cpu.newResult(op.String(), outShape, x.DType())

	switch x.DType() {
	case tensor.Float32:
		reduceAxis(op, result.AsFloat32(), x.AsFloat32(), outer, dim, inner)
	case tensor.Float64:
		reduceAxis(op, result.AsFloat64(), x.AsFloat64(), outer, dim, inner)
	case tensor.Int32:
		reduceAxis(op, result.AsInt32(), x.AsInt32(), outer, dim, inner)
	case tensor.Int64:
		reduceAxis(op, result.AsInt64(), x.AsInt64(), outer, dim, inner)
	case tensor.Uint8:
		reduceAxis(op, result.AsUint8(), x.AsUint8(), outer, dim, inner)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, x.DType()))
	}

	return result
}

// Argmax returns the int64 index of the first maximum along axis.
func (cpu *CPUBackend) Argmax(x *tensor.RawTensor, axis int, keepDim bool) *tensor.RawTensor {
	outer, dim, inner, outShape := reduceLayout("argmax", x.Shape(), axis, keepDim)
	if dim == 0 {
		panic("argmax: cannot reduce an empty axis")
	}
	result := cpu.newResult("argmax", outShape, tensor.Int64)
	dst := result.AsInt64()

	switch x.DType() {
	case tensor.Float32:
		argmaxAxis(dst, x.AsFloat32(), outer, dim, inner)
	case tensor.Float64:
		argmaxAxis(dst, x.AsFloat64(), outer, dim, inner)
	case tensor.Int32:
		argmaxAxis(dst, x.AsInt32(), outer, dim, inner)
	case tensor.Int64:
		argmaxAxis(dst, x.AsInt64(), outer, dim, inner)
	case tensor.Uint8:
		argmaxAxis(dst, x.AsUint8(), outer, dim, inner)
	default:
		panic(fmt.Sprintf("argmax: unsupported dtype %s", x.DType()))
	}

	return result
}

func argmaxAxis[T number](dst []int64, src []T, outer, dim, inner int) {
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			base := o*dim*inner + i
			maxVal := src[base]
			maxIdx := 0
			for d := 1; d < dim; d++ {
				if v := src[base+d*inner]; v > maxVal {
					maxVal = v
					maxIdx = d
				}
			}
			dst[o*inner+i] = int64(maxIdx)
		}
	}
}
