package cpu

import (
	"fmt"

	"github.com/born-ml/mlconvert/internal/tensor"
)

// Cast converts the tensor to a different data type.
// Float to integer conversion truncates toward zero; any non-zero value
// becomes true when casting to bool.
func (cpu *CPUBackend) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	// No-op if same dtype
	if x.DType() == dtype {
		return x
	}

	result := cpu.newResult("cast", x.Shape(), dtype)

	switch x.DType() {
	case tensor.Float32:
		castFloats(result, x.AsFloat32())
	case tensor.Float64:
		castFloats(result, x.AsFloat64())
	case tensor.Int32:
		castInts(result, x.AsInt32())
	case tensor.Int64:
		castInts(result, x.AsInt64())
	case tensor.Uint8:
		castInts(result, x.AsUint8())
	case tensor.Bool:
		src := x.AsBool()
		ints := make([]int64, len(src))
		for i, v := range src {
			if v {
				ints[i] = 1
			}
		}
		castInts(result, ints)
	default:
		panic(fmt.Sprintf("cast: unsupported source dtype %v", x.DType()))
	}

	return result
}

func castFloats[S ~float32 | ~float64](result *tensor.RawTensor, src []S) {
	switch result.DType() {
	case tensor.Float32:
		store(result.AsFloat32(), src)
	case tensor.Float64:
		store(result.AsFloat64(), src)
	case tensor.Int32:
		store(result.AsInt32(), src)
	case tensor.Int64:
		store(result.AsInt64(), src)
	case tensor.Uint8:
		store(result.AsUint8(), src)
	case tensor.Bool:
		storeBool(result.AsBool(), src)
	default:
		panic(fmt.Sprintf("cast: unsupported target dtype %v", result.DType()))
	}
}

func castInts[S ~int32 | ~int64 | ~uint8](result *tensor.RawTensor, src []S) {
	switch result.DType() {
	case tensor.Float32:
		store(result.AsFloat32(), src)
	case tensor.Float64:
		store(result.AsFloat64(), src)
	case tensor.Int32:
		store(result.AsInt32(), src)
	case tensor.Int64:
		store(result.AsInt64(), src)
	case tensor.Uint8:
		store(result.AsUint8(), src)
	case tensor.Bool:
		storeBool(result.AsBool(), src)
	default:
		panic(fmt.Sprintf("cast: unsupported target dtype %v", result.DType()))
	}
}

func store[D, S number](dst []D, src []S) {
	for i, v := range src {
		dst[i] = D(v)
	}
}

func storeBool[S number](dst []bool, src []S) {
	for i, v := range src {
		dst[i] = v != 0
	}
}
