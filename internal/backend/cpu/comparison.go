package cpu

import (
	"fmt"

	"github.com/born-ml/mlconvert/internal/tensor"
)

// Comparison operations - return bool tensors.

type cmpOp int

const (
	cmpEqual cmpOp = iota
	cmpLess
	cmpGreater
)

func (op cmpOp) String() string {
	switch op {
	case cmpEqual:
		return "equal"
	case cmpLess:
		return "less"
	default:
		return "greater"
	}
}

func cmpFunc[T number](op cmpOp) func(x, y T) bool {
	switch op {
	case cmpEqual:
		return func(x, y T) bool { return x == y }
	case cmpLess:
		return func(x, y T) bool { return x < y }
	default:
		return func(x, y T) bool { return x > y }
	}
}

// Equal returns a == b element-wise.
func (cpu *CPUBackend) Equal(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.compare(cmpEqual, a, b)
}

// Less returns a < b element-wise.
func (cpu *CPUBackend) Less(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.compare(cmpLess, a, b)
}

// Greater returns a > b element-wise.
func (cpu *CPUBackend) Greater(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.compare(cmpGreater, a, b)
}

func (cpu *CPUBackend) compare(op cmpOp, a, b *tensor.RawTensor) *tensor.RawTensor {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", op, a.DType(), b.DType()))
	}
	outShape, _, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}
	result := cpu.newResult(op.String(), outShape, tensor.Bool)
	dst := result.AsBool()

	switch a.DType() {
	case tensor.Float32:
		broadcastApply(dst, a.AsFloat32(), b.AsFloat32(), a.Shape(), b.Shape(), outShape, cmpFunc[float32](op))
	case tensor.Float64:
		broadcastApply(dst, a.AsFloat64(), b.AsFloat64(), a.Shape(), b.Shape(), outShape, cmpFunc[float64](op))
	case tensor.Int32:
		broadcastApply(dst, a.AsInt32(), b.AsInt32(), a.Shape(), b.Shape(), outShape, cmpFunc[int32](op))
	case tensor.Int64:
		broadcastApply(dst, a.AsInt64(), b.AsInt64(), a.Shape(), b.Shape(), outShape, cmpFunc[int64](op))
	case tensor.Uint8:
		broadcastApply(dst, a.AsUint8(), b.AsUint8(), a.Shape(), b.Shape(), outShape, cmpFunc[uint8](op))
	case tensor.Bool:
		if op != cmpEqual {
			panic(fmt.Sprintf("%s: bool tensors only support equality", op))
		}
		broadcastApply(dst, a.AsBool(), b.AsBool(), a.Shape(), b.Shape(), outShape, func(x, y bool) bool { return x == y })
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, a.DType()))
	}

	return result
}
