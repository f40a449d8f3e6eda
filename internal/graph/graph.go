// Package graph is the in-memory model of an interchange graph: typed nodes,
// initializers and declared inputs/outputs, validated and topologically
// ordered by Load.
package graph

import (
	"fmt"

	"github.com/born-ml/mlconvert/internal/tensor"
)

// AttributeKind is the declared type of a node attribute.
type AttributeKind int

// Attribute kinds. AttrOther covers kinds no lowering consumes (subgraphs,
// sparse tensors); such attributes are kept by name only.
const (
	AttrOther AttributeKind = iota
	AttrFloat
	AttrInt
	AttrString
	AttrTensor
	AttrFloats
	AttrInts
	AttrStrings
)

// String returns the attribute kind name as used by ONNX.
func (k AttributeKind) String() string {
	switch k {
	case AttrFloat:
		return "FLOAT"
	case AttrInt:
		return "INT"
	case AttrString:
		return "STRING"
	case AttrTensor:
		return "TENSOR"
	case AttrFloats:
		return "FLOATS"
	case AttrInts:
		return "INTS"
	case AttrStrings:
		return "STRINGS"
	default:
		return "OTHER"
	}
}

// IsList reports whether the kind holds a list of values.
func (k AttributeKind) IsList() bool {
	return k == AttrFloats || k == AttrInts || k == AttrStrings
}

// Attribute is a typed node attribute. Only the field matching Kind is set.
type Attribute struct {
	Name    string
	Kind    AttributeKind
	F       float32
	I       int64
	S       string
	T       *tensor.RawTensor
	Floats  []float32
	Ints    []int64
	Strings []string
}

// Len returns the number of elements of a list attribute, or 1 for scalars.
func (a Attribute) Len() int {
	switch a.Kind {
	case AttrFloats:
		return len(a.Floats)
	case AttrInts:
		return len(a.Ints)
	case AttrStrings:
		return len(a.Strings)
	default:
		return 1
	}
}

// Node is one operator of the graph. Nodes are immutable once loaded.
type Node struct {
	Index      int // position in topological order
	Name       string
	OpType     string
	Domain     string
	Inputs     []string
	Outputs    []string
	Attributes map[string]Attribute
}

// String identifies the node in error messages.
func (n *Node) String() string {
	name := n.Name
	if name == "" {
		name = fmt.Sprintf("#%d", n.Index)
	}
	if n.Domain == "" {
		return fmt.Sprintf("%s %q", n.OpType, name)
	}
	return fmt.Sprintf("%s %q (%s)", n.OpType, name, n.Domain)
}

// Attr returns the named attribute.
func (n *Node) Attr(name string) (Attribute, bool) {
	a, ok := n.Attributes[name]
	return a, ok
}

// Has reports whether the node carries the named attribute.
func (n *Node) Has(name string) bool {
	_, ok := n.Attributes[name]
	return ok
}

// Int returns an integer attribute or default value.
func (n *Node) Int(name string, defaultVal int64) int64 {
	if a, ok := n.Attributes[name]; ok && a.Kind == AttrInt {
		return a.I
	}
	return defaultVal
}

// Float returns a float attribute or default value.
func (n *Node) Float(name string, defaultVal float32) float32 {
	if a, ok := n.Attributes[name]; ok && a.Kind == AttrFloat {
		return a.F
	}
	return defaultVal
}

// Str returns a string attribute or default value.
func (n *Node) Str(name, defaultVal string) string {
	if a, ok := n.Attributes[name]; ok && a.Kind == AttrString {
		return a.S
	}
	return defaultVal
}

// Ints returns an integer list attribute.
func (n *Node) Ints(name string) []int64 {
	if a, ok := n.Attributes[name]; ok && a.Kind == AttrInts {
		return a.Ints
	}
	return nil
}

// Floats returns a float list attribute.
func (n *Node) Floats(name string) []float32 {
	if a, ok := n.Attributes[name]; ok && a.Kind == AttrFloats {
		return a.Floats
	}
	return nil
}

// Strings returns a string list attribute.
func (n *Node) Strings(name string) []string {
	if a, ok := n.Attributes[name]; ok && a.Kind == AttrStrings {
		return a.Strings
	}
	return nil
}

// Initializer is a named constant tensor owned by the graph.
type Initializer struct {
	Name   string
	Tensor *tensor.RawTensor
}

// Value is a declared graph input or output.
type Value struct {
	Name string
	Spec tensor.Spec
}

// Graph is a validated interchange graph.
type Graph struct {
	Name         string
	Nodes        []*Node // topological order
	Initializers []Initializer
	Inputs       []Value // declared inputs that are not initializers
	Outputs      []Value
	Opsets       map[string]int64 // domain -> version; "" is the default domain

	dtypes map[string]tensor.DataType
}

// DType returns the element type known for a value name, either declared or
// inferred from the producing node.
func (g *Graph) DType(name string) (tensor.DataType, bool) {
	dt, ok := g.dtypes[name]
	return dt, ok
}

// Initializer returns the named constant tensor.
func (g *Graph) Initializer(name string) (*tensor.RawTensor, bool) {
	for _, init := range g.Initializers {
		if init.Name == name {
			return init.Tensor, true
		}
	}
	return nil, false
}

// Input returns the named declared input.
func (g *Graph) Input(name string) (Value, bool) {
	for _, v := range g.Inputs {
		if v.Name == name {
			return v, true
		}
	}
	return Value{}, false
}

// WithInputs returns a shallow copy of g whose declared inputs are replaced.
// Nodes and initializers are shared; the copy is used to resolve symbolic
// dimensions without mutating the loaded graph.
func (g *Graph) WithInputs(inputs []Value) *Graph {
	clone := *g
	clone.Inputs = inputs
	return &clone
}
