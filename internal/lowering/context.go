package lowering

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/born-ml/mlconvert/internal/capability"
	"github.com/born-ml/mlconvert/internal/graph"
	"github.com/born-ml/mlconvert/internal/program"
	"github.com/born-ml/mlconvert/internal/tensor"
)

// Options configure the lowering of every node of one conversion.
type Options struct {
	Target capability.Target
	Policy UnknownPolicy
	Logger logr.Logger
}

// Context is the scratch state of one node's lowering. It is owned by a
// single goroutine and discarded once its Subgraph is taken.
//
// Generated names have the form "n<index>/<hint>_<k>", unique within the
// program because the index is the node's position in the graph.
type Context struct {
	graph    *graph.Graph
	node     *graph.Node
	opts     Options
	scope    string
	counter  int
	nodes    []*program.Node
	inits    []program.Initializer
	bindings []program.Binding
	dtypes   map[string]tensor.DataType
}

// NewContext prepares the lowering of n, a node of g.
func NewContext(g *graph.Graph, n *graph.Node, opts Options) *Context {
	return &Context{
		graph:  g,
		node:   n,
		opts:   opts,
		scope:  fmt.Sprintf("n%d", n.Index),
		dtypes: make(map[string]tensor.DataType),
	}
}

// Node returns the node being lowered.
func (c *Context) Node() *graph.Node { return c.node }

// Target returns the conversion target.
func (c *Context) Target() capability.Target { return c.opts.Target }

// Policy returns the unknown-category policy.
func (c *Context) Policy() UnknownPolicy { return c.opts.Policy }

// Logger returns the conversion logger.
func (c *Context) Logger() logr.Logger { return c.opts.Logger }

// Fresh allocates a new local name.
func (c *Context) Fresh(hint string) string {
	name := fmt.Sprintf("%s/%s_%d", c.scope, hint, c.counter)
	c.counter++
	return name
}

// Constant registers a new initializer and returns its name.
func (c *Context) Constant(hint string, t *tensor.RawTensor) string {
	name := c.Fresh(hint)
	c.inits = append(c.inits, program.Initializer{Name: name, Tensor: t})
	c.dtypes[name] = t.DType()
	return name
}

// Require checks that the target provides op.
func (c *Context) Require(op program.OpType) error {
	return program.Capabilities().Require(c.opts.Target, string(op))
}

// Emit appends op applied to inputs under a fresh name and returns that name.
// The output dtype follows program.InferType.
func (c *Context) Emit(op program.OpType, attrs program.Attrs, hint string, inputs ...string) (string, error) {
	out := c.Fresh(hint)
	if err := c.EmitTo(out, op, attrs, inputs...); err != nil {
		return "", err
	}
	return out, nil
}

// EmitTo appends op applied to inputs, writing the named output.
func (c *Context) EmitTo(out string, op program.OpType, attrs program.Attrs, inputs ...string) error {
	if err := c.Require(op); err != nil {
		return err
	}
	in := make([]tensor.DataType, len(inputs))
	for i, name := range inputs {
		dt, ok := c.DType(name)
		if !ok {
			return fmt.Errorf("lowering %s: %s consumes %q of unknown dtype", c.node, op, name)
		}
		in[i] = dt
	}
	dt, err := program.InferType(op, attrs, in)
	if err != nil {
		return fmt.Errorf("lowering %s: %w", c.node, err)
	}
	c.nodes = append(c.nodes, &program.Node{
		Name:       out,
		Op:         op,
		Inputs:     append([]string(nil), inputs...),
		Output:     out,
		OutputType: dt,
		Attrs:      attrs,
	})
	c.dtypes[out] = dt
	return nil
}

// DType returns the dtype of a name visible to this lowering: a local value,
// a (possibly re-bound) graph input, or a graph value.
func (c *Context) DType(name string) (tensor.DataType, bool) {
	if dt, ok := c.dtypes[name]; ok {
		return dt, true
	}
	if v, ok := c.graph.Input(name); ok {
		return v.Spec.DType, true
	}
	return c.graph.DType(name)
}

// InputSpec returns the resolved spec of a graph input.
func (c *Context) InputSpec(name string) (tensor.Spec, bool) {
	v, ok := c.graph.Input(name)
	if !ok {
		return tensor.Spec{}, false
	}
	return v.Spec.Clone(), true
}

// Bind re-declares a graph input for the runtime.
func (c *Context) Bind(name string, spec tensor.Spec) {
	c.bindings = append(c.bindings, program.Binding{Name: name, Spec: spec.Clone()})
	c.dtypes[name] = spec.DType
}

// Unsupported returns an *UnsupportedOperatorError for the current node.
func (c *Context) Unsupported(format string, args ...any) error {
	return &UnsupportedOperatorError{
		OpType: c.node.OpType,
		Domain: c.node.Domain,
		Reason: fmt.Sprintf(format, args...),
	}
}

// Subgraph returns the lowering result.
func (c *Context) Subgraph() *program.Subgraph {
	return &program.Subgraph{
		Source:       c.node.String(),
		Nodes:        c.nodes,
		Initializers: c.inits,
		Bindings:     c.bindings,
		Outputs:      append([]string(nil), c.node.Outputs...),
	}
}
