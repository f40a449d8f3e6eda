package tensor

import "fmt"

// FromSlice creates a CPU tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice[T DType](data []T, shape Shape) (*RawTensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}

	var dummy T
	raw, err := NewRaw(shape, inferDataType(dummy), CPU)
	if err != nil {
		return nil, err
	}
	copy(Values[T](raw), data)
	return raw, nil
}

// Scalar creates a rank-0 tensor holding v.
func Scalar[T DType](v T) *RawTensor {
	raw, err := FromSlice([]T{v}, Shape{})
	if err != nil {
		panic(fmt.Sprintf("scalar: %v", err))
	}
	return raw
}

// Values returns the typed view of r's elements.
// Panics if T does not match r's dtype.
func Values[T DType](r *RawTensor) []T {
	var dummy T
	var out any
	switch inferDataType(dummy) {
	case Float32:
		out = r.AsFloat32()
	case Float64:
		out = r.AsFloat64()
	case Int32:
		out = r.AsInt32()
	case Int64:
		out = r.AsInt64()
	case Uint8:
		out = r.AsUint8()
	case Bool:
		out = r.AsBool()
	}
	if v, ok := out.([]T); ok {
		return v
	}
	// Named types (~T) land here; they share the underlying layout.
	panic(fmt.Sprintf("tensor values: unsupported element type %T", dummy))
}
