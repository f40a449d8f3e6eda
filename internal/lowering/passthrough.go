package lowering

import (
	"github.com/born-ml/mlconvert/internal/onnx"
	"github.com/born-ml/mlconvert/internal/program"
)

func lowerIdentity(c *Context) error {
	n := c.Node()
	return c.EmitTo(n.Outputs[0], program.OpIdentity, program.Attrs{}, n.Inputs[0])
}

func lowerCast(c *Context) error {
	n := c.Node()
	to, err := onnx.DataTypeFromProto(int32(n.Int("to", 0))) //nolint:gosec // G115: enum value.
	if err != nil {
		return c.Unsupported("%v", err)
	}
	if !to.Storable() {
		return c.Unsupported("cannot cast to %s", to)
	}
	return c.EmitTo(n.Outputs[0], program.OpCast, program.Attrs{To: to}, n.Inputs[0])
}
