// Package runtime executes tensor programs on a tensor.Backend.
package runtime

import (
	"errors"
	"fmt"

	"github.com/born-ml/mlconvert/internal/program"
	"github.com/born-ml/mlconvert/internal/tensor"
)

// Call failures other than shape mismatches and unmatched categories.
var (
	// ErrMissingInput indicates a declared input absent from the call.
	ErrMissingInput = errors.New("missing input")

	// ErrUnexpectedInput indicates a call input the program does not declare.
	ErrUnexpectedInput = errors.New("unexpected input")

	// ErrKernel indicates a kernel failure during a call.
	ErrKernel = errors.New("kernel failure")
)

// Transform is a compiled, callable tensor program.
//
// A Transform never mutates its program, its initializers or the caller's
// inputs, so concurrent calls need no synchronization.
type Transform struct {
	prog     *program.Program
	backend  tensor.Backend
	consts   map[string]*tensor.RawTensor
	handlers []opHandler // parallel to prog.Nodes
}

// NewTransform prepares prog for execution on backend.
func NewTransform(prog *program.Program, backend tensor.Backend) (*Transform, error) {
	if prog == nil {
		return nil, errors.New("runtime: nil program")
	}
	if backend == nil {
		return nil, errors.New("runtime: nil backend")
	}

	consts := make(map[string]*tensor.RawTensor, len(prog.Initializers))
	for _, init := range prog.Initializers {
		consts[init.Name] = init.Tensor
	}

	table := handlers()
	hs := make([]opHandler, len(prog.Nodes))
	for i, n := range prog.Nodes {
		h, ok := table.get(n.Op)
		if !ok {
			return nil, fmt.Errorf("runtime: node %s: no kernel for %s", n, n.Op)
		}
		hs[i] = h
	}

	return &Transform{
		prog:     prog,
		backend:  backend,
		consts:   consts,
		handlers: hs,
	}, nil
}

// Program returns the executed program.
func (t *Transform) Program() *program.Program {
	return t.prog
}

// Inputs returns the declared program inputs.
func (t *Transform) Inputs() []program.Value {
	return t.prog.Inputs
}

// Outputs returns the declared program outputs.
func (t *Transform) Outputs() []program.Value {
	return t.prog.Outputs
}

// Transform runs a program with exactly one input and one output.
func (t *Transform) Transform(input *tensor.RawTensor) (*tensor.RawTensor, error) {
	if len(t.prog.Inputs) != 1 {
		return nil, fmt.Errorf("program has %d inputs, use TransformNamed", len(t.prog.Inputs))
	}
	if len(t.prog.Outputs) != 1 {
		return nil, fmt.Errorf("program has %d outputs, use TransformNamed", len(t.prog.Outputs))
	}

	outputs, err := t.TransformNamed(map[string]*tensor.RawTensor{
		t.prog.Inputs[0].Name: input,
	})
	if err != nil {
		return nil, err
	}
	return outputs[t.prog.Outputs[0].Name], nil
}

// TransformNamed runs the program on named inputs and returns every declared
// output by name.
func (t *Transform) TransformNamed(inputs map[string]*tensor.RawTensor) (map[string]*tensor.RawTensor, error) {
	if err := t.checkInputs(inputs); err != nil {
		return nil, err
	}

	values := make(map[string]*tensor.RawTensor, len(t.consts)+len(inputs)+len(t.prog.Nodes))
	for name, c := range t.consts {
		values[name] = c
	}
	for name, v := range inputs {
		values[name] = v
	}

	for i, n := range t.prog.Nodes {
		in := make([]*tensor.RawTensor, len(n.Inputs))
		for j, name := range n.Inputs {
			v, ok := values[name]
			if !ok {
				return nil, fmt.Errorf("node %s: value %q not computed", n, name)
			}
			in[j] = v
		}

		out, err := t.exec(i, n, in)
		if err != nil {
			return nil, err
		}
		values[n.Output] = out
	}

	result := make(map[string]*tensor.RawTensor, len(t.prog.Outputs))
	for _, o := range t.prog.Outputs {
		v, ok := values[o.Name]
		if !ok {
			return nil, fmt.Errorf("output %q not computed", o.Name)
		}
		result[o.Name] = v
	}
	return result, nil
}

// exec runs one node, turning kernel panics into an error for this call.
func (t *Transform) exec(i int, n *program.Node, in []*tensor.RawTensor) (out *tensor.RawTensor, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("node %s: %w: %v", n, ErrKernel, r)
		}
	}()

	out, err = t.handlers[i](t.backend, n, in)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", n, err)
	}
	if out.DType() != n.OutputType {
		return nil, fmt.Errorf("node %s: %w: produced %s, declared %s", n, ErrKernel, out.DType(), n.OutputType)
	}
	return out, nil
}

func (t *Transform) checkInputs(inputs map[string]*tensor.RawTensor) error {
	for _, want := range t.prog.Inputs {
		got, ok := inputs[want.Name]
		if !ok || got == nil {
			return fmt.Errorf("%w %q", ErrMissingInput, want.Name)
		}
		if got.DType() != want.Spec.DType || !want.Spec.Matches(got.Shape()) {
			return &InputShapeMismatchError{Input: want.Name, Want: want.Spec, Got: got.Spec()}
		}
	}
	for name := range inputs {
		if _, ok := t.prog.Input(name); !ok {
			return fmt.Errorf("%w %q", ErrUnexpectedInput, name)
		}
	}
	return nil
}
