package graph

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"golang.org/x/exp/slices"

	"github.com/born-ml/mlconvert/internal/onnx"
	"github.com/born-ml/mlconvert/internal/tensor"
)

// attrSpec describes one attribute of a known operator.
type attrSpec struct {
	kind     AttributeKind
	required bool
	nonEmpty bool
}

// Schema describes a known operator: arity, attributes and output dtype.
type Schema struct {
	OpType  string
	Domain  string
	Inputs  int
	Outputs int
	Attrs   map[string]attrSpec

	// OneOf lists attribute groups of which exactly one member must be present.
	OneOf [][]string

	// Check performs operator-specific consistency checks on attribute values.
	Check func(n *Node) error

	// Infer returns the output dtype for the given input dtype.
	Infer func(n *Node, in tensor.DataType) (tensor.DataType, error)
}

var schemas = []*Schema{
	labelEncoderSchema,
	{
		OpType:  "Scaler",
		Domain:  onnx.DomainML,
		Inputs:  1,
		Outputs: 1,
		Attrs: map[string]attrSpec{
			"offset": {kind: AttrFloats},
			"scale":  {kind: AttrFloats},
		},
		Check: checkScaler,
		Infer: func(_ *Node, in tensor.DataType) (tensor.DataType, error) {
			if !in.IsNumeric() {
				return 0, fmt.Errorf("input must be numeric, got %s", in)
			}
			return tensor.Float32, nil
		},
	},
	{
		OpType:  "Binarizer",
		Domain:  onnx.DomainML,
		Inputs:  1,
		Outputs: 1,
		Attrs: map[string]attrSpec{
			"threshold": {kind: AttrFloat},
		},
		Infer: func(_ *Node, in tensor.DataType) (tensor.DataType, error) {
			if !in.IsNumeric() {
				return 0, fmt.Errorf("input must be numeric, got %s", in)
			}
			return in, nil
		},
	},
	{
		OpType:  "Cast",
		Inputs:  1,
		Outputs: 1,
		Attrs: map[string]attrSpec{
			"to":       {kind: AttrInt, required: true},
			"saturate": {kind: AttrInt},
		},
		Check: func(n *Node) error {
			if _, err := onnx.DataTypeFromProto(int32(n.Int("to", 0))); err != nil { //nolint:gosec // G115: enum value.
				return nodeProblem(n, ErrInvalidAttribute, "to: %v", err)
			}
			return nil
		},
		Infer: func(n *Node, _ tensor.DataType) (tensor.DataType, error) {
			return onnx.DataTypeFromProto(int32(n.Int("to", 0))) //nolint:gosec // G115: enum value.
		},
	},
	{
		OpType:  "Identity",
		Inputs:  1,
		Outputs: 1,
		Infer: func(_ *Node, in tensor.DataType) (tensor.DataType, error) {
			return in, nil
		},
	},
}

// LookupSchema returns the schema of a known operator. The default domain may
// be spelled "" or "ai.onnx".
func LookupSchema(opType, domain string) (*Schema, bool) {
	for _, s := range schemas {
		if s.OpType == opType && sameDomain(s.Domain, domain) {
			return s, true
		}
	}
	return nil, false
}

// KnownOps returns the operator types with a schema, sorted.
func KnownOps() []string {
	ops := make([]string, len(schemas))
	for i, s := range schemas {
		ops[i] = s.OpType
	}
	slices.Sort(ops)
	return ops
}

func sameDomain(a, b string) bool {
	norm := func(d string) string {
		if d == onnx.DomainDefault {
			return ""
		}
		return d
	}
	return norm(a) == norm(b)
}

// validate checks a node against its schema and returns every problem found.
func (s *Schema) validate(n *Node) error {
	var problems error

	if len(n.Inputs) != s.Inputs || len(n.Outputs) != s.Outputs {
		problems = multierr.Append(problems, nodeProblem(n, ErrArity,
			"got %d inputs and %d outputs, expected %d and %d", len(n.Inputs), len(n.Outputs), s.Inputs, s.Outputs))
	}

	names := make([]string, 0, len(n.Attributes))
	for name := range n.Attributes {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		attr := n.Attributes[name]
		spec, ok := s.Attrs[name]
		switch {
		case !ok:
			problems = multierr.Append(problems, nodeProblem(n, ErrInvalidAttribute, "unknown attribute %q", name))
		case attr.Kind != spec.kind:
			problems = multierr.Append(problems, nodeProblem(n, ErrAttributeType, "%q is %s, expected %s", name, attr.Kind, spec.kind))
		case spec.nonEmpty && attr.Len() == 0:
			problems = multierr.Append(problems, nodeProblem(n, ErrEmptyAttribute, "%q", name))
		}
	}

	required := make([]string, 0, len(s.Attrs))
	for name, spec := range s.Attrs {
		if spec.required && !n.Has(name) {
			required = append(required, name)
		}
	}
	slices.Sort(required)
	for _, name := range required {
		problems = multierr.Append(problems, nodeProblem(n, ErrMissingAttribute, "%q", name))
	}

	for _, group := range s.OneOf {
		var present []string
		for _, name := range group {
			if n.Has(name) {
				present = append(present, name)
			}
		}
		switch len(present) {
		case 0:
			problems = multierr.Append(problems, nodeProblem(n, ErrMissingAttribute, "one of %s", strings.Join(group, ", ")))
		case 1:
		default:
			problems = multierr.Append(problems, nodeProblem(n, ErrInvalidAttribute, "only one of %s may be set", strings.Join(present, ", ")))
		}
	}

	// Value checks assume well-formed attributes.
	if problems == nil && s.Check != nil {
		problems = s.Check(n)
	}
	return problems
}

func checkScaler(n *Node) error {
	offset, scale := n.Floats("offset"), n.Floats("scale")
	if len(offset) > 1 && len(scale) > 1 && len(offset) != len(scale) {
		return nodeProblem(n, ErrInvalidAttribute, "offset has %d values, scale has %d", len(offset), len(scale))
	}
	return nil
}
