// Package program defines the tensor program a graph is lowered to: an
// ordered list of primitive tensor operations over named values, plus the
// builder that assembles per-node lowerings into one program.
package program

import (
	"fmt"
	"sync"

	"github.com/born-ml/mlconvert/internal/capability"
	"github.com/born-ml/mlconvert/internal/tensor"
)

// OpType is a tensor primitive.
type OpType string

// Tensor primitives.
const (
	OpIdentity  OpType = "Identity"
	OpCast      OpType = "Cast"
	OpReshape   OpType = "Reshape"
	OpUnsqueeze OpType = "Unsqueeze"
	OpSqueeze   OpType = "Squeeze"
	OpEqual     OpType = "Equal"
	OpLess      OpType = "Less"
	OpGreater   OpType = "Greater"
	OpAdd       OpType = "Add"
	OpSub       OpType = "Sub"
	OpMul       OpType = "Mul"
	OpMin       OpType = "Min"
	OpReduceSum OpType = "ReduceSum"
	OpReduceMin OpType = "ReduceMin"
	OpReduceMax OpType = "ReduceMax"
	OpArgMax    OpType = "ArgMax"
	OpGather    OpType = "Gather"
	OpWhere     OpType = "Where"
	OpNonZero   OpType = "NonZero"
	OpConcat    OpType = "Concat"

	// OpAssertAll passes its bool input through and fails the call when any
	// element is false. Categorical lowerings use it to reject values absent
	// from the category table.
	OpAssertAll OpType = "AssertAll"
)

// Ops returns every primitive.
func Ops() []OpType {
	return []OpType{
		OpIdentity, OpCast, OpReshape, OpUnsqueeze, OpSqueeze,
		OpEqual, OpLess, OpGreater,
		OpAdd, OpSub, OpMul, OpMin,
		OpReduceSum, OpReduceMin, OpReduceMax, OpArgMax,
		OpGather, OpWhere, OpNonZero, OpConcat, OpAssertAll,
	}
}

// Capabilities returns the capability table of all primitives.
var Capabilities = sync.OnceValue(func() *capability.Table {
	ops := Ops()
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = string(op)
	}
	return capability.NewTable(names)
})

// Attrs holds the static parameters of a primitive. Only the fields the
// primitive uses are meaningful.
type Attrs struct {
	Axis     int             // Unsqueeze, Squeeze, Reduce*, ArgMax, Gather, Concat
	KeepDims bool            // Reduce*, ArgMax
	To       tensor.DataType // Cast
	Shape    []int           // Reshape; one entry may be tensor.Unknown
	Message  string          // AssertAll
}

// Node is one primitive application producing a single output.
type Node struct {
	Name       string
	Op         OpType
	Inputs     []string
	Output     string
	OutputType tensor.DataType
	Attrs      Attrs
}

// String identifies the node in error messages.
func (n *Node) String() string {
	return fmt.Sprintf("%s %q", n.Op, n.Name)
}

// clone returns a deep copy of n.
func (n *Node) clone() *Node {
	c := *n
	c.Inputs = append([]string(nil), n.Inputs...)
	c.Attrs.Shape = append([]int(nil), n.Attrs.Shape...)
	return &c
}

// arity returns the minimum and maximum input count of op; max < 0 is unbounded.
func arity(op OpType) (lo, hi int) {
	switch op {
	case OpEqual, OpLess, OpGreater, OpAdd, OpSub, OpMul, OpMin, OpGather:
		return 2, 2
	case OpWhere:
		return 3, 3
	case OpConcat:
		return 1, -1
	default:
		return 1, 1
	}
}

// InferType returns the output dtype of op applied to inputs of the given dtypes.
func InferType(op OpType, attrs Attrs, in []tensor.DataType) (tensor.DataType, error) {
	lo, hi := arity(op)
	if len(in) < lo || (hi >= 0 && len(in) > hi) {
		return 0, fmt.Errorf("%s takes %d..%d inputs, got %d", op, lo, hi, len(in))
	}
	for _, dt := range in {
		if !dt.Storable() {
			return 0, fmt.Errorf("%s: %s values cannot be computed on", op, dt)
		}
	}

	same := func() error {
		for _, dt := range in[1:] {
			if dt != in[0] {
				return fmt.Errorf("%s: dtype mismatch %s vs %s", op, in[0], dt)
			}
		}
		return nil
	}
	numeric := func() error {
		if !in[0].IsNumeric() {
			return fmt.Errorf("%s: %s is not numeric", op, in[0])
		}
		return nil
	}

	switch op {
	case OpIdentity, OpReshape, OpUnsqueeze, OpSqueeze:
		return in[0], nil
	case OpCast:
		if !attrs.To.Storable() {
			return 0, fmt.Errorf("%s: cannot cast to %s", op, attrs.To)
		}
		return attrs.To, nil
	case OpEqual:
		return tensor.Bool, same()
	case OpLess, OpGreater:
		if err := same(); err != nil {
			return 0, err
		}
		return tensor.Bool, numeric()
	case OpAdd, OpSub, OpMul, OpMin, OpReduceSum, OpReduceMin, OpReduceMax:
		if err := same(); err != nil {
			return 0, err
		}
		return in[0], numeric()
	case OpArgMax:
		return tensor.Int64, numeric()
	case OpGather:
		if in[1] != tensor.Int32 && in[1] != tensor.Int64 {
			return 0, fmt.Errorf("%s: index must be int32 or int64, got %s", op, in[1])
		}
		return in[0], nil
	case OpWhere:
		if in[0] != tensor.Bool {
			return 0, fmt.Errorf("%s: condition must be bool, got %s", op, in[0])
		}
		if in[1] != in[2] {
			return 0, fmt.Errorf("%s: dtype mismatch %s vs %s", op, in[1], in[2])
		}
		return in[1], nil
	case OpNonZero:
		return tensor.Int64, nil
	case OpConcat:
		return in[0], same()
	case OpAssertAll:
		if in[0] != tensor.Bool {
			return 0, fmt.Errorf("%s: condition must be bool, got %s", op, in[0])
		}
		return tensor.Bool, nil
	default:
		return 0, fmt.Errorf("unknown primitive %q", op)
	}
}
