package program

import (
	"fmt"

	"github.com/born-ml/mlconvert/internal/tensor"
)

// Builder assembles lowered subgraphs into a Program. Subgraphs must be added
// in the original node order. The first failure is sticky: later calls to Add
// and Build return it.
type Builder struct {
	inputs   []Value
	outputs  []Value
	inputIdx map[string]int
	bound    map[string]bool
	consumed map[string]bool
	reserved map[string]bool
	dtypes   map[string]tensor.DataType
	nodes    []*Node
	inits    []Initializer
	err      error
}

// NewBuilder starts a program with the given declared inputs, outputs and
// original initializers.
func NewBuilder(inputs, outputs []Value, initializers []Initializer) *Builder {
	b := &Builder{
		inputIdx: make(map[string]int, len(inputs)),
		bound:    make(map[string]bool),
		consumed: make(map[string]bool),
		reserved: make(map[string]bool),
		dtypes:   make(map[string]tensor.DataType),
	}
	for i, v := range inputs {
		b.inputs = append(b.inputs, Value{Name: v.Name, Spec: v.Spec.Clone()})
		b.inputIdx[v.Name] = i
		b.dtypes[v.Name] = v.Spec.DType
	}
	for _, v := range outputs {
		b.outputs = append(b.outputs, Value{Name: v.Name, Spec: v.Spec.Clone()})
		b.reserved[v.Name] = true
	}
	for _, init := range initializers {
		b.inits = append(b.inits, init)
		b.dtypes[init.Name] = init.Tensor.DType()
	}
	return b
}

// Reserve marks names that generated locals must not take, typically every
// value name of the source graph.
func (b *Builder) Reserve(names ...string) {
	for _, name := range names {
		b.reserved[name] = true
	}
}

// Add merges one subgraph, renaming its generated locals to globally unique
// names and checking chaining and dtypes.
func (b *Builder) Add(sg *Subgraph) error {
	if b.err != nil {
		return b.err
	}
	if err := b.add(sg); err != nil {
		b.err = &ProgramAssemblyError{Source: sg.Source, Err: err}
	}
	return b.err
}

func (b *Builder) add(sg *Subgraph) error {
	if err := b.bind(sg.Bindings); err != nil {
		return err
	}

	public := make(map[string]bool, len(sg.Outputs))
	for _, out := range sg.Outputs {
		if _, taken := b.dtypes[out]; taken {
			return fmt.Errorf("%w: output %q is already produced", ErrNameCollision, out)
		}
		public[out] = true
	}

	renames := b.renameLocals(sg, public)
	rename := func(name string) string {
		if r, ok := renames[name]; ok {
			return r
		}
		return name
	}

	for _, init := range sg.Initializers {
		name := rename(init.Name)
		if _, taken := b.dtypes[name]; taken {
			return fmt.Errorf("%w: initializer %q", ErrNameCollision, name)
		}
		b.inits = append(b.inits, Initializer{Name: name, Tensor: init.Tensor})
		b.dtypes[name] = init.Tensor.DType()
	}

	produced := make(map[string]bool)
	for _, orig := range sg.Nodes {
		n := orig.clone()
		n.Output = rename(n.Output)

		in := make([]tensor.DataType, len(n.Inputs))
		for i, name := range n.Inputs {
			name = rename(name)
			n.Inputs[i] = name
			dt, ok := b.dtypes[name]
			if !ok {
				return fmt.Errorf("%w: node %s consumes %q before it is produced", ErrUnresolvedName, n, name)
			}
			if _, isInput := b.inputIdx[name]; isInput {
				b.consumed[name] = true
			}
			in[i] = dt
		}

		want, err := InferType(n.Op, n.Attrs, in)
		if err != nil {
			return fmt.Errorf("%w: node %s: %w", ErrTypeMismatch, n, err)
		}
		if want != n.OutputType {
			return fmt.Errorf("%w: node %s declares %s, type rules give %s", ErrTypeMismatch, n, n.OutputType, want)
		}
		if _, taken := b.dtypes[n.Output]; taken {
			return fmt.Errorf("%w: node %s output %q", ErrNameCollision, n, n.Output)
		}

		b.dtypes[n.Output] = n.OutputType
		produced[n.Output] = true
		b.nodes = append(b.nodes, n)
	}

	for _, out := range sg.Outputs {
		if !produced[out] {
			return fmt.Errorf("%w: subgraph does not produce output %q", ErrUnresolvedName, out)
		}
	}
	return nil
}

// bind applies input re-bindings. Re-binding the same input twice is allowed
// only with an identical spec, and never after the input was consumed under
// its previous dtype.
func (b *Builder) bind(bindings []Binding) error {
	for _, bnd := range bindings {
		i, ok := b.inputIdx[bnd.Name]
		if !ok {
			return fmt.Errorf("%w: binding of unknown input %q", ErrUnresolvedName, bnd.Name)
		}
		current := b.inputs[i].Spec
		if current.Equal(bnd.Spec) {
			continue
		}
		if b.bound[bnd.Name] {
			return fmt.Errorf("%w: input %q bound as %s and %s", ErrBindingConflict, bnd.Name, current, bnd.Spec)
		}
		if b.consumed[bnd.Name] && current.DType != bnd.Spec.DType {
			return fmt.Errorf("%w: input %q already consumed as %s", ErrBindingConflict, bnd.Name, current)
		}
		b.inputs[i].Spec = bnd.Spec.Clone()
		b.bound[bnd.Name] = true
		b.dtypes[bnd.Name] = bnd.Spec.DType
	}
	return nil
}

// renameLocals picks a unique name for every generated local that collides
// with a name already in the program or reserved by the source graph.
func (b *Builder) renameLocals(sg *Subgraph, public map[string]bool) map[string]string {
	locals := make(map[string]bool)
	for _, init := range sg.Initializers {
		locals[init.Name] = true
	}
	for _, n := range sg.Nodes {
		if !public[n.Output] {
			locals[n.Output] = true
		}
	}

	taken := func(name string) bool {
		_, used := b.dtypes[name]
		return used || b.reserved[name] || public[name]
	}

	renames := make(map[string]string)
	// Iterate in emission order so renaming is deterministic.
	visit := func(name string) {
		if !locals[name] || !taken(name) {
			return
		}
		if _, done := renames[name]; done {
			return
		}
		for k := 1; ; k++ {
			candidate := fmt.Sprintf("%s_%d", name, k)
			if !taken(candidate) && !locals[candidate] && !renamedTo(renames, candidate) {
				renames[name] = candidate
				return
			}
		}
	}
	for _, init := range sg.Initializers {
		visit(init.Name)
	}
	for _, n := range sg.Nodes {
		visit(n.Output)
	}
	return renames
}

func renamedTo(renames map[string]string, name string) bool {
	for _, r := range renames {
		if r == name {
			return true
		}
	}
	return false
}

// Build checks the declared outputs and returns the program.
func (b *Builder) Build() (*Program, error) {
	if b.err != nil {
		return nil, b.err
	}
	for _, out := range b.outputs {
		dt, ok := b.dtypes[out.Name]
		if !ok {
			return nil, &ProgramAssemblyError{Err: fmt.Errorf("%w: output %q is never produced", ErrUnresolvedName, out.Name)}
		}
		if dt != out.Spec.DType {
			return nil, &ProgramAssemblyError{Err: fmt.Errorf("%w: output %q declared %s, produced %s",
				ErrTypeMismatch, out.Name, out.Spec.DType, dt)}
		}
	}

	return &Program{
		Inputs:       append([]Value(nil), b.inputs...),
		Outputs:      append([]Value(nil), b.outputs...),
		Nodes:        append([]*Node(nil), b.nodes...),
		Initializers: append([]Initializer(nil), b.inits...),
	}, nil
}
