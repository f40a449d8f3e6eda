package runtime

import (
	"fmt"
	"sync"

	"github.com/born-ml/mlconvert/internal/program"
	"github.com/born-ml/mlconvert/internal/tensor"
)

// opHandler executes one primitive on the backend.
type opHandler func(b tensor.Backend, n *program.Node, inputs []*tensor.RawTensor) (*tensor.RawTensor, error)

// registry maps primitives to handlers.
type registry struct {
	handlers map[program.OpType]opHandler
}

// handlers is the process-wide handler table; it is read-only once built.
var handlers = sync.OnceValue(func() *registry {
	r := &registry{
		handlers: make(map[program.OpType]opHandler),
	}

	r.registerElementwise()
	r.registerReductions()
	r.registerIndexing()
	r.registerShapeOps()
	r.registerUtilityOps()

	return r
})

func (r *registry) register(op program.OpType, h opHandler) {
	r.handlers[op] = h
}

func (r *registry) get(op program.OpType) (opHandler, bool) {
	h, ok := r.handlers[op]
	return h, ok
}

// binary adapts a two-operand kernel, e.g. tensor.Backend.Add.
func binary(kernel func(b tensor.Backend, x, y *tensor.RawTensor) *tensor.RawTensor) opHandler {
	return func(b tensor.Backend, _ *program.Node, in []*tensor.RawTensor) (*tensor.RawTensor, error) {
		return kernel(b, in[0], in[1]), nil
	}
}

// reduction adapts a single-axis reduction kernel.
func reduction(kernel func(b tensor.Backend, x *tensor.RawTensor, axis int, keepDim bool) *tensor.RawTensor) opHandler {
	return func(b tensor.Backend, n *program.Node, in []*tensor.RawTensor) (*tensor.RawTensor, error) {
		return kernel(b, in[0], n.Attrs.Axis, n.Attrs.KeepDims), nil
	}
}

func (r *registry) registerElementwise() {
	r.register(program.OpAdd, binary(tensor.Backend.Add))
	r.register(program.OpSub, binary(tensor.Backend.Sub))
	r.register(program.OpMul, binary(tensor.Backend.Mul))
	r.register(program.OpMin, binary(tensor.Backend.Min))
	r.register(program.OpEqual, binary(tensor.Backend.Equal))
	r.register(program.OpLess, binary(tensor.Backend.Less))
	r.register(program.OpGreater, binary(tensor.Backend.Greater))
}

func (r *registry) registerReductions() {
	r.register(program.OpReduceSum, reduction(tensor.Backend.ReduceSum))
	r.register(program.OpReduceMin, reduction(tensor.Backend.ReduceMin))
	r.register(program.OpReduceMax, reduction(tensor.Backend.ReduceMax))
	r.register(program.OpArgMax, reduction(tensor.Backend.Argmax))
}

func (r *registry) registerIndexing() {
	r.register(program.OpGather, handleGather)
	r.register(program.OpWhere, handleWhere)
	r.register(program.OpNonZero, handleNonZero)
}

func (r *registry) registerShapeOps() {
	r.register(program.OpReshape, handleReshape)
	r.register(program.OpUnsqueeze, handleUnsqueeze)
	r.register(program.OpSqueeze, handleSqueeze)
	r.register(program.OpConcat, handleConcat)
}

func (r *registry) registerUtilityOps() {
	r.register(program.OpIdentity, handleIdentity)
	r.register(program.OpCast, handleCast)
	r.register(program.OpAssertAll, handleAssertAll)
}

func handleGather(b tensor.Backend, n *program.Node, in []*tensor.RawTensor) (*tensor.RawTensor, error) {
	return b.Gather(in[0], n.Attrs.Axis, in[1]), nil
}

func handleWhere(b tensor.Backend, _ *program.Node, in []*tensor.RawTensor) (*tensor.RawTensor, error) {
	return b.Where(in[0], in[1], in[2]), nil
}

func handleNonZero(b tensor.Backend, _ *program.Node, in []*tensor.RawTensor) (*tensor.RawTensor, error) {
	return b.NonZero(in[0]), nil
}

func handleReshape(b tensor.Backend, n *program.Node, in []*tensor.RawTensor) (*tensor.RawTensor, error) {
	return b.Reshape(in[0], tensor.Shape(n.Attrs.Shape)), nil
}

func handleUnsqueeze(b tensor.Backend, n *program.Node, in []*tensor.RawTensor) (*tensor.RawTensor, error) {
	return b.Unsqueeze(in[0], n.Attrs.Axis), nil
}

func handleSqueeze(b tensor.Backend, n *program.Node, in []*tensor.RawTensor) (*tensor.RawTensor, error) {
	return b.Squeeze(in[0], n.Attrs.Axis), nil
}

func handleConcat(b tensor.Backend, n *program.Node, in []*tensor.RawTensor) (*tensor.RawTensor, error) {
	return b.Concat(in, n.Attrs.Axis), nil
}

func handleIdentity(_ tensor.Backend, _ *program.Node, in []*tensor.RawTensor) (*tensor.RawTensor, error) {
	return in[0], nil
}

func handleCast(b tensor.Backend, n *program.Node, in []*tensor.RawTensor) (*tensor.RawTensor, error) {
	return b.Cast(in[0], n.Attrs.To), nil
}

// handleAssertAll passes its input through when every element is true.
func handleAssertAll(_ tensor.Backend, n *program.Node, in []*tensor.RawTensor) (*tensor.RawTensor, error) {
	misses := 0
	for _, ok := range in[0].AsBool() {
		if !ok {
			misses++
		}
	}
	if misses > 0 {
		return nil, fmt.Errorf("%s: %d of %d values: %w", n.Attrs.Message, misses, in[0].NumElements(), ErrUnmatchedCategory)
	}
	return in[0], nil
}
