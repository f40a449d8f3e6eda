package onnx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/mlconvert/internal/program"
	"github.com/born-ml/mlconvert/internal/tensor"
)

func exportFixture(t *testing.T) *program.Program {
	t.Helper()
	keys, err := tensor.FromSlice([]int64{1, 4}, tensor.Shape{2})
	require.NoError(t, err)
	vec := tensor.Spec{DType: tensor.Int64, Dims: []int{tensor.Unknown}}
	return &program.Program{
		Inputs:  []program.Value{{Name: "x", Spec: vec}},
		Outputs: []program.Value{{Name: "y", Spec: vec}},
		Initializers: []program.Initializer{
			{Name: "keys", Tensor: keys},
		},
		Nodes: []*program.Node{
			{Name: "n0/col_0", Op: program.OpUnsqueeze, Inputs: []string{"x"}, Output: "n0/col_0", OutputType: tensor.Int64, Attrs: program.Attrs{Axis: -1}},
			{Name: "n0/below_1", Op: program.OpLess, Inputs: []string{"keys", "n0/col_0"}, Output: "n0/below_1", OutputType: tensor.Bool},
			{Name: "n0/count_2", Op: program.OpCast, Inputs: []string{"n0/below_1"}, Output: "n0/count_2", OutputType: tensor.Int64, Attrs: program.Attrs{To: tensor.Int64}},
			{Name: "n0/pos_3", Op: program.OpReduceSum, Inputs: []string{"n0/count_2"}, Output: "n0/pos_3", OutputType: tensor.Int64, Attrs: program.Attrs{Axis: -1}},
			{Name: "n0/max_4", Op: program.OpReduceMax, Inputs: []string{"n0/count_2"}, Output: "n0/max_4", OutputType: tensor.Int64, Attrs: program.Attrs{Axis: -1, KeepDims: true}},
			{Name: "n0/rows_5", Op: program.OpReshape, Inputs: []string{"n0/pos_3"}, Output: "n0/rows_5", OutputType: tensor.Int64, Attrs: program.Attrs{Shape: []int{tensor.Unknown, 1}}},
			{Name: "n0/found_6", Op: program.OpEqual, Inputs: []string{"n0/pos_3", "n0/pos_3"}, Output: "n0/found_6", OutputType: tensor.Bool},
			{Name: "n0/known_7", Op: program.OpAssertAll, Inputs: []string{"n0/found_6"}, Output: "n0/known_7", OutputType: tensor.Bool, Attrs: program.Attrs{Message: "LabelEncoder \"le\""}},
			{Name: "y", Op: program.OpGather, Inputs: []string{"keys", "n0/pos_3"}, Output: "y", OutputType: tensor.Int64},
		},
	}
}

func findNode(t *testing.T, g *GraphProto, name string) NodeProto {
	t.Helper()
	for _, n := range g.Nodes {
		if n.Name == name {
			return n
		}
	}
	t.Fatalf("node %q not exported", name)
	return NodeProto{}
}

func findInitializer(t *testing.T, g *GraphProto, name string) *tensor.RawTensor {
	t.Helper()
	for i := range g.Initializers {
		if g.Initializers[i].Name == name {
			raw, err := TensorFromProto(&g.Initializers[i])
			require.NoError(t, err)
			return raw
		}
	}
	t.Fatalf("initializer %q not exported", name)
	return nil
}

func TestExportProgram(t *testing.T) {
	model, err := ExportProgram(exportFixture(t))
	require.NoError(t, err)

	// The export must survive the wire format.
	model, err = Parse(Marshal(model))
	require.NoError(t, err)

	assert.Equal(t, int64(ExportOpset), model.OpsetVersion(""))
	assert.Equal(t, int64(1), model.OpsetVersion(DomainRuntime))

	g := model.Graph
	require.Len(t, g.Nodes, 9)
	assert.Equal(t, "Unsqueeze", g.Nodes[0].OpType)

	unsqueeze := findNode(t, g, "n0/col_0")
	assert.Equal(t, []string{"x", "n0/col_0/axes"}, unsqueeze.Inputs)
	assert.Equal(t, []int64{-1}, findInitializer(t, g, "n0/col_0/axes").AsInt64())

	reshape := findNode(t, g, "n0/rows_5")
	assert.Equal(t, []int64{-1, 1}, findInitializer(t, g, reshape.Inputs[1]).AsInt64())

	cast := findNode(t, g, "n0/count_2")
	require.Len(t, cast.Attributes, 1)
	assert.Equal(t, int64(TensorProtoInt64), cast.Attributes[0].I)

	reduceSum := findNode(t, g, "n0/pos_3")
	assert.Len(t, reduceSum.Inputs, 2)
	assert.Equal(t, "keepdims", reduceSum.Attributes[0].Name)
	assert.Zero(t, reduceSum.Attributes[0].I)

	reduceMax := findNode(t, g, "n0/max_4")
	assert.Len(t, reduceMax.Inputs, 1)
	assert.Equal(t, []int64{-1}, reduceMax.Attributes[0].Ints)
	assert.Equal(t, int64(1), reduceMax.Attributes[1].I)

	assert.Equal(t, DomainRuntime, findNode(t, g, "n0/known_7").Domain)
	assert.Equal(t, []int64{1, 4}, findInitializer(t, g, "keys").AsInt64())

	spec, err := SpecFromValueInfo(&g.Inputs[0])
	require.NoError(t, err)
	assert.Equal(t, tensor.Spec{DType: tensor.Int64, Dims: []int{tensor.Unknown}}, spec)
	assert.Len(t, g.ValueInfo, 9)
}

func TestExportProgramUnknownPrimitive(t *testing.T) {
	prog := exportFixture(t)
	prog.Nodes[0].Op = "Softmax"
	_, err := ExportProgram(prog)
	assert.ErrorContains(t, err, "no ONNX form")
}

func TestDataTypeConversions(t *testing.T) {
	for _, dt := range []tensor.DataType{tensor.Float32, tensor.Float64, tensor.Int32, tensor.Int64, tensor.Uint8, tensor.Bool, tensor.String} {
		got, err := DataTypeFromProto(DataTypeToProto(dt))
		require.NoError(t, err)
		assert.Equal(t, dt, got)
	}
	_, err := DataTypeFromProto(TensorProtoFloat16)
	assert.ErrorIs(t, err, ErrUnsupportedDataType)
}

func TestTensorFromProtoLegacyFields(t *testing.T) {
	f, err := TensorFromProto(&TensorProto{Name: "f", DataType: TensorProtoFloat, Dims: []int64{2}, FloatData: []float32{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, f.AsFloat32())

	b, err := TensorFromProto(&TensorProto{Name: "b", DataType: TensorProtoBool, Dims: []int64{2}, Int32Data: []int32{0, 1}})
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true}, b.AsBool())

	_, err = TensorFromProto(&TensorProto{Name: "s", DataType: TensorProtoString, Dims: []int64{1}, StringData: [][]byte{[]byte("a")}})
	assert.ErrorIs(t, err, ErrUnsupportedDataType)

	_, err = TensorFromProto(&TensorProto{Name: "short", DataType: TensorProtoInt64, Dims: []int64{2}, RawData: []byte{1}})
	assert.Error(t, err)

	_, err = TensorFromProto(&TensorProto{Name: "empty", DataType: TensorProtoInt64, Dims: []int64{3}})
	assert.Error(t, err)
}
