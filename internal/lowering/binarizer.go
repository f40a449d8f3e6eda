package lowering

import (
	"fmt"

	"github.com/born-ml/mlconvert/internal/program"
	"github.com/born-ml/mlconvert/internal/tensor"
)

// lowerBinarizer maps values above threshold to 1 and the rest to 0, keeping
// the input dtype.
func lowerBinarizer(c *Context) error {
	n := c.Node()
	x := n.Inputs[0]
	dt, _ := c.DType(x)
	if !dt.IsNumeric() {
		return c.Unsupported("input must be numeric, got %s", dt)
	}

	threshold, err := scalarOf(dt, float64(n.Float("threshold", 0)))
	ch := &chain{c: c}
	t := ch.constant("threshold", threshold, err)
	above := ch.emit(program.OpGreater, program.Attrs{}, "above", x, t)
	ch.emitTo(n.Outputs[0], program.OpCast, program.Attrs{To: dt}, above)
	return ch.err
}

// scalarOf returns v as a rank-0 tensor of dtype dt. Integer dtypes truncate.
func scalarOf(dt tensor.DataType, v float64) (*tensor.RawTensor, error) {
	switch dt {
	case tensor.Float32:
		return tensor.Scalar(float32(v)), nil
	case tensor.Float64:
		return tensor.Scalar(v), nil
	case tensor.Int32:
		return tensor.Scalar(int32(v)), nil
	case tensor.Int64:
		return tensor.Scalar(int64(v)), nil
	case tensor.Uint8:
		return tensor.Scalar(uint8(v)), nil
	default:
		return nil, fmt.Errorf("no numeric scalar of type %s", dt)
	}
}
