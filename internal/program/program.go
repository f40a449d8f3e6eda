package program

import (
	"fmt"

	"github.com/born-ml/mlconvert/internal/capability"
	"github.com/born-ml/mlconvert/internal/tensor"
)

// Value is a named program input or output.
type Value struct {
	Name string
	Spec tensor.Spec
}

// Initializer is a named constant tensor of the program.
type Initializer struct {
	Name   string
	Tensor *tensor.RawTensor
}

// Binding replaces the spec of a program input. Lowerings use it when the
// runtime representation of an input differs from its declaration, e.g.
// string labels fed as int32 chunk codes.
type Binding struct {
	Name string
	Spec tensor.Spec
}

// Subgraph is the lowering of one graph node, handed to the Builder.
type Subgraph struct {
	Source       string // the lowered node, for error messages
	Nodes        []*Node
	Initializers []Initializer
	Bindings     []Binding
	Outputs      []string // names of the source node's outputs
}

// Program is an assembled tensor program. It is immutable once built and
// safe to share between goroutines.
type Program struct {
	Inputs       []Value
	Outputs      []Value
	Nodes        []*Node
	Initializers []Initializer
}

// Initializer returns the named constant.
func (p *Program) Initializer(name string) (*tensor.RawTensor, bool) {
	for _, init := range p.Initializers {
		if init.Name == name {
			return init.Tensor, true
		}
	}
	return nil, false
}

// Input returns the named program input.
func (p *Program) Input(name string) (Value, bool) {
	for _, v := range p.Inputs {
		if v.Name == name {
			return v, true
		}
	}
	return Value{}, false
}

// Validate checks every primitive of the program against the capability
// table for target. The first unavailable primitive is reported as a
// *capability.UnsupportedTargetVersionError.
func (p *Program) Validate(target capability.Target) error {
	table := Capabilities()
	for _, n := range p.Nodes {
		if err := table.Require(target, string(n.Op)); err != nil {
			return fmt.Errorf("node %s: %w", n, err)
		}
	}
	return nil
}

// OpCounts returns how many times each primitive occurs.
func (p *Program) OpCounts() map[OpType]int {
	counts := make(map[OpType]int)
	for _, n := range p.Nodes {
		counts[n.Op]++
	}
	return counts
}
