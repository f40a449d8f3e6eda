package graph

import (
	"fmt"
	"math"

	"go.uber.org/multierr"

	"github.com/born-ml/mlconvert/internal/onnx"
	"github.com/born-ml/mlconvert/internal/tensor"
)

// LabelEncoder attribute names. Opset 1 carries the categories in
// classes_strings and maps them to their position; opset 2 carries explicit
// keys and values.
const (
	AttrKeysInt64s     = "keys_int64s"
	AttrKeysFloats     = "keys_floats"
	AttrKeysStrings    = "keys_strings"
	AttrClassesStrings = "classes_strings"
	AttrValuesInt64s   = "values_int64s"
	AttrValuesFloats   = "values_floats"
	AttrValuesStrings  = "values_strings"
	AttrDefaultInt64   = "default_int64"
	AttrDefaultFloat   = "default_float"
	AttrDefaultString  = "default_string"
)

var labelEncoderSchema = &Schema{
	OpType:  "LabelEncoder",
	Domain:  onnx.DomainML,
	Inputs:  1,
	Outputs: 1,
	Attrs: map[string]attrSpec{
		AttrKeysInt64s:     {kind: AttrInts, nonEmpty: true},
		AttrKeysFloats:     {kind: AttrFloats, nonEmpty: true},
		AttrKeysStrings:    {kind: AttrStrings, nonEmpty: true},
		AttrClassesStrings: {kind: AttrStrings, nonEmpty: true},
		AttrValuesInt64s:   {kind: AttrInts},
		AttrValuesFloats:   {kind: AttrFloats},
		AttrValuesStrings:  {kind: AttrStrings},
		AttrDefaultInt64:   {kind: AttrInt},
		AttrDefaultFloat:   {kind: AttrFloat},
		AttrDefaultString:  {kind: AttrString},
	},
	OneOf: [][]string{{AttrKeysInt64s, AttrKeysFloats, AttrKeysStrings, AttrClassesStrings}},
	Check: checkLabelEncoder,
	Infer: inferLabelEncoder,
}

// categoryCount returns the number of categories of a LabelEncoder and the
// attribute that holds them.
func categoryCount(n *Node) (int, string) {
	for _, name := range []string{AttrKeysInt64s, AttrKeysFloats, AttrKeysStrings, AttrClassesStrings} {
		if a, ok := n.Attr(name); ok {
			return a.Len(), name
		}
	}
	return 0, ""
}

func checkLabelEncoder(n *Node) error {
	var problems error

	k, keys := categoryCount(n)
	var values []string
	for _, name := range []string{AttrValuesInt64s, AttrValuesFloats, AttrValuesStrings} {
		a, ok := n.Attr(name)
		if !ok {
			continue
		}
		values = append(values, name)
		if a.Len() != k {
			problems = multierr.Append(problems, nodeProblem(n, ErrInvalidAttribute,
				"%s has %d entries, %s has %d", name, a.Len(), keys, k))
		}
	}
	if len(values) > 1 {
		problems = multierr.Append(problems, nodeProblem(n, ErrInvalidAttribute, "only one of %v may be set", values))
	}
	if keys == AttrClassesStrings && len(values) > 0 {
		problems = multierr.Append(problems, nodeProblem(n, ErrInvalidAttribute, "%s cannot be combined with %s", AttrClassesStrings, values[0]))
	}

	if dup, ok := duplicateKey(n, keys); ok {
		problems = multierr.Append(problems, nodeProblem(n, ErrInvalidAttribute, "%s contains %v more than once", keys, dup))
	}
	if keys == AttrKeysFloats {
		a, _ := n.Attr(keys)
		for i, f := range a.Floats {
			if math.IsNaN(float64(f)) {
				problems = multierr.Append(problems, nodeProblem(n, ErrInvalidAttribute, "%s[%d] is NaN", keys, i))
				break
			}
		}
	}
	return problems
}

func duplicateKey(n *Node, keys string) (any, bool) {
	a, _ := n.Attr(keys)
	switch a.Kind {
	case AttrInts:
		return firstDuplicate(a.Ints)
	case AttrFloats:
		return firstDuplicate(a.Floats)
	case AttrStrings:
		return firstDuplicate(a.Strings)
	default:
		return nil, false
	}
}

func firstDuplicate[T comparable](values []T) (any, bool) {
	seen := make(map[T]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			return v, true
		}
		seen[v] = struct{}{}
	}
	return nil, false
}

func inferLabelEncoder(n *Node, in tensor.DataType) (tensor.DataType, error) {
	_, keys := categoryCount(n)
	switch keys {
	case AttrKeysInt64s:
		if !in.IsInteger() {
			return 0, fmt.Errorf("integer keys need an integer input, got %s", in)
		}
	case AttrKeysFloats:
		if in != tensor.Float32 && in != tensor.Float64 {
			return 0, fmt.Errorf("float keys need a float input, got %s", in)
		}
	default:
		// String categories accept strings or their fixed-width int32/int64 codes.
		if in != tensor.String && in != tensor.Int32 && in != tensor.Int64 {
			return 0, fmt.Errorf("string keys need a string input, got %s", in)
		}
	}

	switch {
	case n.Has(AttrValuesStrings):
		return tensor.String, nil
	case n.Has(AttrValuesFloats):
		return tensor.Float32, nil
	default:
		return tensor.Int64, nil
	}
}
