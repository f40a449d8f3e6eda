package tensor

import (
	"fmt"
	"strings"
)

// Unknown marks a symbolic dimension (e.g. the batch size) in a Spec.
const Unknown = -1

// Spec describes a tensor value without holding data: its element type and
// its dimensions, where Unknown stands for a dimension resolved only at call time.
type Spec struct {
	DType DataType
	Dims  []int
}

// SpecOf returns the fully static spec of a shape.
func SpecOf(dtype DataType, shape Shape) Spec {
	return Spec{DType: dtype, Dims: append([]int(nil), shape...)}
}

// Rank returns the number of dimensions.
func (s Spec) Rank() int {
	return len(s.Dims)
}

// IsStatic reports whether every dimension is known.
func (s Spec) IsStatic() bool {
	for _, d := range s.Dims {
		if d == Unknown {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the spec.
func (s Spec) Clone() Spec {
	return Spec{DType: s.DType, Dims: append([]int(nil), s.Dims...)}
}

// Equal reports whether two specs are identical, unknown dims included.
func (s Spec) Equal(other Spec) bool {
	if s.DType != other.DType || len(s.Dims) != len(other.Dims) {
		return false
	}
	for i := range s.Dims {
		if s.Dims[i] != other.Dims[i] {
			return false
		}
	}
	return true
}

// Matches reports whether a concrete shape satisfies the spec.
// Unknown dims accept any size.
func (s Spec) Matches(shape Shape) bool {
	if len(shape) != len(s.Dims) {
		return false
	}
	for i, d := range s.Dims {
		if d != Unknown && d != shape[i] {
			return false
		}
	}
	return true
}

// String renders the spec as "int64[?,3]".
func (s Spec) String() string {
	dims := make([]string, len(s.Dims))
	for i, d := range s.Dims {
		if d == Unknown {
			dims[i] = "?"
			continue
		}
		dims[i] = fmt.Sprint(d)
	}
	return fmt.Sprintf("%s[%s]", s.DType, strings.Join(dims, ","))
}
