package lowering

import (
	"github.com/born-ml/mlconvert/internal/program"
	"github.com/born-ml/mlconvert/internal/tensor"
)

// lowerScaler computes (x - offset) * scale in float32. A one-element offset
// or scale applies to every feature; a longer one runs over the last axis.
func lowerScaler(c *Context) error {
	n := c.Node()
	x := n.Inputs[0]
	out := n.Outputs[0]
	offset, scale := n.Floats("offset"), n.Floats("scale")

	dt, _ := c.DType(x)
	if !dt.IsNumeric() {
		return c.Unsupported("input must be numeric, got %s", dt)
	}

	type step struct {
		op     program.OpType
		hint   string
		params []float32
	}
	var steps []step
	if len(offset) > 0 {
		steps = append(steps, step{program.OpSub, "offset", offset})
	}
	if len(scale) > 0 {
		steps = append(steps, step{program.OpMul, "scale", scale})
	}

	ch := &chain{c: c}
	cur := x
	if dt != tensor.Float32 {
		if len(steps) == 0 {
			ch.emitTo(out, program.OpCast, program.Attrs{To: tensor.Float32}, x)
			return ch.err
		}
		cur = ch.emit(program.OpCast, program.Attrs{To: tensor.Float32}, "x", x)
	}
	if len(steps) == 0 {
		return c.EmitTo(out, program.OpIdentity, program.Attrs{}, x)
	}

	for i, s := range steps {
		params, err := tensor.FromSlice(s.params, tensor.Shape{len(s.params)})
		name := ch.constant(s.hint, params, err)
		if i == len(steps)-1 {
			ch.emitTo(out, s.op, program.Attrs{}, cur, name)
			break
		}
		cur = ch.emit(s.op, program.Attrs{}, "scaled", cur, name)
	}
	return ch.err
}
