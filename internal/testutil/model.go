// Package testutil builds interchange models and reference results for tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slices"

	"github.com/born-ml/mlconvert/internal/onnx"
	"github.com/born-ml/mlconvert/internal/tensor"
)

// ModelBuilder assembles an ONNX model in memory.
type ModelBuilder struct {
	model *onnx.ModelProto
}

// NewModel starts a model importing the default domain at opset 13 and the
// ML domain at opset 2.
func NewModel(name string) *ModelBuilder {
	return &ModelBuilder{model: &onnx.ModelProto{
		IRVersion:       8,
		ProducerName:    "testutil",
		ProducerVersion: "1",
		OpsetImport: []onnx.OperatorSetID{
			{Domain: "", Version: 13},
			{Domain: onnx.DomainML, Version: 2},
		},
		Graph: &onnx.GraphProto{Name: name},
	}}
}

// Input declares a graph input.
func (b *ModelBuilder) Input(name string, spec tensor.Spec) *ModelBuilder {
	b.model.Graph.Inputs = append(b.model.Graph.Inputs, onnx.ValueInfo(name, spec))
	return b
}

// Output declares a graph output.
func (b *ModelBuilder) Output(name string, spec tensor.Spec) *ModelBuilder {
	b.model.Graph.Outputs = append(b.model.Graph.Outputs, onnx.ValueInfo(name, spec))
	return b
}

// Initializer adds a constant tensor.
func (b *ModelBuilder) Initializer(name string, t *tensor.RawTensor) *ModelBuilder {
	b.model.Graph.Initializers = append(b.model.Graph.Initializers, onnx.TensorToProto(name, t))
	return b
}

// Node appends a node.
func (b *ModelBuilder) Node(n onnx.NodeProto) *ModelBuilder {
	b.model.Graph.Nodes = append(b.model.Graph.Nodes, n)
	return b
}

// Build returns the model.
func (b *ModelBuilder) Build() *onnx.ModelProto {
	return b.model
}

// Node returns a node proto.
func Node(opType, domain string, inputs, outputs []string, attrs ...onnx.AttributeProto) onnx.NodeProto {
	return onnx.NodeProto{
		Name:       opType + "_" + outputs[0],
		OpType:     opType,
		Domain:     domain,
		Inputs:     inputs,
		Outputs:    outputs,
		Attributes: attrs,
	}
}

// LabelEncoder returns an ML-domain LabelEncoder node.
func LabelEncoder(in, out string, attrs ...onnx.AttributeProto) onnx.NodeProto {
	return Node("LabelEncoder", onnx.DomainML, []string{in}, []string{out}, attrs...)
}

// Int returns an INT attribute.
func Int(name string, v int64) onnx.AttributeProto {
	return onnx.AttributeProto{Name: name, Type: onnx.AttributeProtoInt, I: v}
}

// Float returns a FLOAT attribute.
func Float(name string, v float32) onnx.AttributeProto {
	return onnx.AttributeProto{Name: name, Type: onnx.AttributeProtoFloat, F: v}
}

// String returns a STRING attribute.
func String(name, v string) onnx.AttributeProto {
	return onnx.AttributeProto{Name: name, Type: onnx.AttributeProtoString, S: []byte(v)}
}

// Ints returns an INTS attribute.
func Ints(name string, v ...int64) onnx.AttributeProto {
	return onnx.AttributeProto{Name: name, Type: onnx.AttributeProtoInts, Ints: v}
}

// Floats returns a FLOATS attribute.
func Floats(name string, v ...float32) onnx.AttributeProto {
	return onnx.AttributeProto{Name: name, Type: onnx.AttributeProtoFloats, Floats: v}
}

// Strings returns a STRINGS attribute.
func Strings(name string, v ...string) onnx.AttributeProto {
	out := make([][]byte, len(v))
	for i, s := range v {
		out[i] = []byte(s)
	}
	return onnx.AttributeProto{Name: name, Type: onnx.AttributeProtoStrings, Strings: out}
}

// Vector returns the spec of a 1-D value with a symbolic length.
func Vector(dt tensor.DataType) tensor.Spec {
	return tensor.Spec{DType: dt, Dims: []int{tensor.Unknown}}
}

// IntLabelEncoder returns a model mapping int64 "x" to its index among keys.
func IntLabelEncoder(keys ...int64) *onnx.ModelProto {
	return NewModel("int_label_encoder").
		Input("x", Vector(tensor.Int64)).
		Output("y", Vector(tensor.Int64)).
		Node(LabelEncoder("x", "y", Ints("keys_int64s", keys...))).
		Build()
}

// StringLabelEncoder returns a model mapping string "x" to its index among
// classes.
func StringLabelEncoder(classes ...string) *onnx.ModelProto {
	return NewModel("string_label_encoder").
		Input("x", Vector(tensor.String)).
		Output("y", Vector(tensor.Int64)).
		Node(LabelEncoder("x", "y", Strings("keys_strings", classes...))).
		Build()
}

// Tensor builds a tensor or fails the test.
func Tensor[T tensor.DType](t testing.TB, data []T, shape ...int) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.FromSlice(data, tensor.Shape(shape))
	require.NoError(t, err)
	return raw
}

// SortedIndex is the reference LabelEncoder: the index of each query value in
// the ascending category table, or def when absent.
func SortedIndex[T int64 | float32 | float64 | string](categories, query []T, def int64) []int64 {
	sorted := append([]T(nil), categories...)
	slices.Sort(sorted)
	index := make(map[T]int64, len(sorted))
	for i, c := range sorted {
		index[c] = int64(i)
	}

	out := make([]int64, len(query))
	for i, q := range query {
		pos, ok := index[q]
		if !ok {
			pos = def
		}
		out[i] = pos
	}
	return out
}
