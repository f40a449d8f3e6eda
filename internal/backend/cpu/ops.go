package cpu

import (
	"fmt"

	"github.com/born-ml/mlconvert/internal/tensor"
)

// number covers the element types arithmetic kernels accept.
type number interface {
	~float32 | ~float64 | ~int32 | ~int64 | ~uint8
}

type arithOp int

const (
	opAdd arithOp = iota
	opSub
	opMul
	opMin
)

func (op arithOp) String() string {
	switch op {
	case opAdd:
		return "add"
	case opSub:
		return "sub"
	case opMul:
		return "mul"
	case opMin:
		return "min"
	default:
		return "arith"
	}
}

func arithFunc[T number](op arithOp) func(x, y T) T {
	switch op {
	case opAdd:
		return func(x, y T) T { return x + y }
	case opSub:
		return func(x, y T) T { return x - y }
	case opMul:
		return func(x, y T) T { return x * y }
	default:
		return func(x, y T) T { return min(x, y) }
	}
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.arithmetic(opAdd, a, b)
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.arithmetic(opSub, a, b)
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.arithmetic(opMul, a, b)
}

// Min returns the element-wise minimum with broadcasting.
func (cpu *CPUBackend) Min(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.arithmetic(opMin, a, b)
}

func (cpu *CPUBackend) arithmetic(op arithOp, a, b *tensor.RawTensor) *tensor.RawTensor {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", op, a.DType(), b.DType()))
	}
	outShape, _, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}
	result := cpu.newResult(op.String(), outShape, a.DType())

	switch a.DType() {
	case tensor.Float32:
		broadcastApply(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), a.Shape(), b.Shape(), outShape, arithFunc[float32](op))
	case tensor.Float64:
		broadcastApply(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), a.Shape(), b.Shape(), outShape, arithFunc[float64](op))
	case tensor.Int32:
		broadcastApply(result.AsInt32(), a.AsInt32(), b.AsInt32(), a.Shape(), b.Shape(), outShape, arithFunc[int32](op))
	case tensor.Int64:
		broadcastApply(result.AsInt64(), a.AsInt64(), b.AsInt64(), a.Shape(), b.Shape(), outShape, arithFunc[int64](op))
	case tensor.Uint8:
		broadcastApply(result.AsUint8(), a.AsUint8(), b.AsUint8(), a.Shape(), b.Shape(), outShape, arithFunc[uint8](op))
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, a.DType()))
	}

	return result
}
