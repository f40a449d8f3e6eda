package cpu

import (
	"fmt"

	"github.com/born-ml/mlconvert/internal/tensor"
)

// Concat joins tensors along axis. All inputs must share dtype and every
// dimension except axis.
func (cpu *CPUBackend) Concat(tensors []*tensor.RawTensor, axis int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("concat: no input tensors")
	}

	first := tensors[0]
	shape := first.Shape()
	axis, err := tensor.NormalizeAxis(axis, len(shape))
	if err != nil {
		panic(fmt.Sprintf("concat: %v", err))
	}

	total := 0
	for i, t := range tensors {
		if t.DType() != first.DType() {
			panic(fmt.Sprintf("concat: tensor %d has dtype %s, expected %s", i, t.DType(), first.DType()))
		}
		ts := t.Shape()
		if len(ts) != len(shape) {
			panic(fmt.Sprintf("concat: tensor %d has rank %d, expected %d", i, len(ts), len(shape)))
		}
		for d := range ts {
			if d != axis && ts[d] != shape[d] {
				panic(fmt.Sprintf("concat: tensor %d has shape %v, incompatible with %v on axis %d", i, ts, shape, axis))
			}
		}
		total += ts[axis]
	}

	outShape := shape.Clone()
	outShape[axis] = total
	result := cpu.newResult("concat", outShape, first.DType())

	outer, inner := 1, 1
	for i := 0; i < axis; i++ {
		outer *= shape[i]
	}
	for i := axis + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	elem := first.DType().Size()

	dst := result.Data()
	pos := 0
	for o := 0; o < outer; o++ {
		for _, t := range tensors {
			chunk := t.Shape()[axis] * inner * elem
			copy(dst[pos:pos+chunk], t.Data()[o*chunk:(o+1)*chunk])
			pos += chunk
		}
	}

	return result
}
