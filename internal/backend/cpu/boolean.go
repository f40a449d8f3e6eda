package cpu

import (
	"fmt"

	"github.com/born-ml/mlconvert/internal/tensor"
)

// Boolean operations - work on bool tensors.

// Or computes element-wise logical OR.
func (cpu *CPUBackend) Or(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.logical("or", a, b, func(x, y bool) bool { return x || y })
}

// And computes element-wise logical AND.
func (cpu *CPUBackend) And(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.logical("and", a, b, func(x, y bool) bool { return x && y })
}

// Not computes element-wise logical NOT.
func (cpu *CPUBackend) Not(x *tensor.RawTensor) *tensor.RawTensor {
	if x.DType() != tensor.Bool {
		panic("not: tensor must be bool dtype")
	}

	result := cpu.newResult("not", x.Shape(), tensor.Bool)
	src := x.AsBool()
	dst := result.AsBool()
	for i := range dst {
		dst[i] = !src[i]
	}

	return result
}

func (cpu *CPUBackend) logical(op string, a, b *tensor.RawTensor, f func(x, y bool) bool) *tensor.RawTensor {
	if a.DType() != tensor.Bool || b.DType() != tensor.Bool {
		panic(fmt.Sprintf("%s: both tensors must be bool dtype", op))
	}

	outShape, _, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	result := cpu.newResult(op, outShape, tensor.Bool)
	broadcastApply(result.AsBool(), a.AsBool(), b.AsBool(), a.Shape(), b.Shape(), outShape, f)
	return result
}
