// Package tensor provides the tensor types shared by the lowering engine and the
// tensor runtime: runtime data types, shapes, value specs and raw tensors.
package tensor

// DType is a constraint for element types that can back a RawTensor.
type DType interface {
	~float32 | ~float64 | ~int32 | ~int64 | ~uint8 | ~bool
}

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types.
//
// String is declarative only: it describes interchange-graph values
// (e.g. the input of a categorical encoder) and can never back a RawTensor.
const (
	Float32 DataType = iota
	Float64
	Int32
	Int64
	Uint8
	Bool
	String
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case Uint8, Bool:
		return 1
	default:
		panic("unknown data type")
	}
}

// IsNumeric reports whether values of dt can be stored in a RawTensor
// and compared arithmetically.
func (dt DataType) IsNumeric() bool {
	switch dt {
	case Float32, Float64, Int32, Int64, Uint8:
		return true
	default:
		return false
	}
}

// IsInteger reports whether dt is an integer family type.
func (dt DataType) IsInteger() bool {
	return dt == Int32 || dt == Int64 || dt == Uint8
}

// Storable reports whether a RawTensor can hold values of dt.
func (dt DataType) Storable() bool {
	return dt != String && dt >= Float32 && dt <= Bool
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Bool:
		return "bool"
	case String:
		return "string"
	default:
		return "unknown"
	}
}

// inferDataType infers DataType from a generic type T.
func inferDataType[T DType](dummy T) DataType {
	switch any(dummy).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	case int32:
		return Int32
	case int64:
		return Int64
	case uint8:
		return Uint8
	case bool:
		return Bool
	default:
		panic("unsupported type")
	}
}
