package lowering

import (
	"errors"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/mlconvert/internal/backend/cpu"
	"github.com/born-ml/mlconvert/internal/capability"
	"github.com/born-ml/mlconvert/internal/graph"
	"github.com/born-ml/mlconvert/internal/onnx"
	"github.com/born-ml/mlconvert/internal/program"
	"github.com/born-ml/mlconvert/internal/runtime"
	"github.com/born-ml/mlconvert/internal/strcode"
	"github.com/born-ml/mlconvert/internal/tensor"
	"github.com/born-ml/mlconvert/internal/testutil"
)

func tensorTarget() capability.Target {
	return capability.DefaultTarget(capability.KindTensor)
}

func load(t *testing.T, model *onnx.ModelProto) *graph.Graph {
	t.Helper()
	g, err := graph.Load(model)
	require.NoError(t, err)
	return g
}

// lowerGraph lowers every node of g and assembles the program.
func lowerGraph(t *testing.T, g *graph.Graph, opts Options) (*program.Program, error) {
	t.Helper()
	if opts.Target.Kind == "" {
		opts.Target = tensorTarget()
	}
	opts.Logger = testr.New(t)

	inputs := make([]program.Value, len(g.Inputs))
	for i, v := range g.Inputs {
		inputs[i] = program.Value{Name: v.Name, Spec: v.Spec}
	}
	outputs := make([]program.Value, len(g.Outputs))
	for i, v := range g.Outputs {
		outputs[i] = program.Value{Name: v.Name, Spec: v.Spec}
	}
	b := program.NewBuilder(inputs, outputs, nil)
	for _, n := range g.Nodes {
		sg, err := Default().Lower(NewContext(g, n, opts))
		if err != nil {
			return nil, err
		}
		require.NoError(t, b.Add(sg))
	}
	return b.Build()
}

func run(t *testing.T, prog *program.Program, input *tensor.RawTensor) (*tensor.RawTensor, error) {
	t.Helper()
	tr, err := runtime.NewTransform(prog, cpu.New())
	require.NoError(t, err)
	return tr.Transform(input)
}

func TestCategoryTable(t *testing.T) {
	table, err := newCategoryTable([]int64{5, 0, 4, 2, 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 2, 4, 5}, table.keys)
	assert.Equal(t, []int{1, 4, 3, 2, 0}, table.perm)
	assert.Equal(t, 5, table.Len())

	_, err = newCategoryTable([]float32{1.5, -2, 1.5})
	assert.Error(t, err)
}

func TestMappedValues(t *testing.T) {
	perm := []int{2, 0, 1}
	assert.Equal(t, []int64{0, 1, 2}, mappedValues(perm, nil))
	assert.Equal(t, []int64{30, 10, 20}, mappedValues(perm, []int64{10, 20, 30}))
}

func TestLabelEncoderIntegerKeys(t *testing.T) {
	g := load(t, testutil.IntLabelEncoder(0, 1, 2, 4, 5))
	prog, err := lowerGraph(t, g, Options{})
	require.NoError(t, err)

	out, err := run(t, prog, testutil.Tensor(t, []int64{1, 4, 5, 2, 0, 2}, 6))
	require.NoError(t, err)
	assert.Equal(t, tensor.Int64, out.DType())
	assert.Equal(t, []int64{1, 3, 4, 2, 0, 2}, tensor.Values[int64](out))
}

func TestLabelEncoderUnsortedKeysMapToSortedIndex(t *testing.T) {
	keys := []int64{40, -3, 7, 12, 0}
	query := []int64{7, 40, -3, 0, 12, 12}
	g := load(t, testutil.IntLabelEncoder(keys...))
	prog, err := lowerGraph(t, g, Options{})
	require.NoError(t, err)

	out, err := run(t, prog, testutil.Tensor(t, query, len(query)))
	require.NoError(t, err)
	assert.Equal(t, testutil.SortedIndex(keys, query, -1), tensor.Values[int64](out))
}

func TestLabelEncoderExplicitValues(t *testing.T) {
	model := testutil.NewModel("values").
		Input("x", testutil.Vector(tensor.Int32)).
		Output("y", testutil.Vector(tensor.Int64)).
		Node(testutil.LabelEncoder("x", "y",
			testutil.Ints("keys_int64s", 30, 10, 20),
			testutil.Ints("values_int64s", 300, 100, 200),
			testutil.Int("default_int64", -7))).
		Build()
	prog, err := lowerGraph(t, load(t, model), Options{Policy: UnknownDefault})
	require.NoError(t, err)

	out, err := run(t, prog, testutil.Tensor(t, []int32{10, 20, 30, 25}, 4))
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 200, 300, -7}, tensor.Values[int64](out))
}

func TestLabelEncoderFloatKeys(t *testing.T) {
	model := testutil.NewModel("floats").
		Input("x", testutil.Vector(tensor.Float64)).
		Output("y", testutil.Vector(tensor.Int64)).
		Node(testutil.LabelEncoder("x", "y", testutil.Floats("keys_floats", 2.5, -1, 0.25))).
		Build()
	prog, err := lowerGraph(t, load(t, model), Options{Policy: UnknownDefault})
	require.NoError(t, err)

	out, err := run(t, prog, testutil.Tensor(t, []float64{0.25, 2.5, -1, 3}, 4))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 0, -1}, tensor.Values[int64](out))
}

func TestLabelEncoderUnknownPolicy(t *testing.T) {
	g := load(t, testutil.IntLabelEncoder(0, 1, 2, 4, 5))
	query := testutil.Tensor(t, []int64{0, 3, 9}, 3)

	t.Run("error", func(t *testing.T) {
		prog, err := lowerGraph(t, g, Options{Policy: UnknownError})
		require.NoError(t, err)
		assert.Equal(t, 1, prog.OpCounts()[program.OpAssertAll])

		_, err = run(t, prog, query)
		assert.ErrorIs(t, err, runtime.ErrUnmatchedCategory)
	})

	t.Run("default", func(t *testing.T) {
		prog, err := lowerGraph(t, g, Options{Policy: UnknownDefault})
		require.NoError(t, err)
		assert.Zero(t, prog.OpCounts()[program.OpAssertAll])

		out, err := run(t, prog, query)
		require.NoError(t, err)
		assert.Equal(t, []int64{0, -1, -1}, tensor.Values[int64](out))
	})
}

func TestLabelEncoderStrings(t *testing.T) {
	g := load(t, testutil.StringLabelEncoder("paris", "milan", "amsterdam", "tokyo"))
	prog, err := lowerGraph(t, g, Options{})
	require.NoError(t, err)

	in, ok := prog.Input("x")
	require.True(t, ok)
	assert.Equal(t, tensor.Spec{DType: tensor.Int32, Dims: []int{tensor.Unknown, 3}}, in.Spec)

	query := []string{"paris", "milan", "amsterdam", "tokyo"}
	codes, err := encode(query, 3)
	require.NoError(t, err)
	out, err := run(t, prog, codes)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1, 0, 3}, tensor.Values[int64](out))
}

func TestLabelEncoderClassesStrings(t *testing.T) {
	model := testutil.NewModel("classes").
		Input("x", tensor.Spec{DType: tensor.String, Dims: []int{2, 2}}).
		Output("y", tensor.Spec{DType: tensor.Int64, Dims: []int{2, 2}}).
		Node(testutil.LabelEncoder("x", "y",
			testutil.Strings("classes_strings", "b", "a", "c"),
			testutil.Int("default_int64", -1))).
		Build()
	g := load(t, model)
	prog, err := lowerGraph(t, g, Options{Policy: UnknownDefault})
	require.NoError(t, err)
	assert.Equal(t, 2, prog.OpCounts()[program.OpReshape])

	codes, err := encode([]string{"c", "a", "z", "b"}, 1)
	require.NoError(t, err)
	codes, err = codes.View(tensor.Shape{2, 2, 1})
	require.NoError(t, err)

	out, err := run(t, prog, codes)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 2}, out.Shape())
	assert.Equal(t, []int64{2, 0, -1, 1}, tensor.Values[int64](out))
}

func TestLabelEncoderStringNeedsNonZero(t *testing.T) {
	g := load(t, testutil.StringLabelEncoder("a", "b"))
	target, err := capability.ParseTarget("onnx@v1.7.0")
	require.NoError(t, err)

	_, err = lowerGraph(t, g, Options{Target: target})
	var verr *capability.UnsupportedTargetVersionError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "NonZero", verr.Primitive)
	assert.Equal(t, "v1.8.0", verr.Min)

	target, err = capability.ParseTarget("onnx@v1.8.0")
	require.NoError(t, err)
	_, err = lowerGraph(t, g, Options{Target: target})
	assert.NoError(t, err)
}

func TestLabelEncoderNarrowCodes(t *testing.T) {
	model := testutil.NewModel("narrow").
		Input("x", tensor.Spec{DType: tensor.Int32, Dims: []int{tensor.Unknown, 1}}).
		Output("y", testutil.Vector(tensor.Int64)).
		Node(testutil.LabelEncoder("x", "y", testutil.Strings("keys_strings", "amsterdam"))).
		Build()
	_, err := lowerGraph(t, load(t, model), Options{})
	var serr *runtime.InputShapeMismatchError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "x", serr.Input)
}

func TestLabelEncoderInt64Codes(t *testing.T) {
	model := testutil.NewModel("wide").
		Input("x", tensor.Spec{DType: tensor.Int64, Dims: []int{tensor.Unknown, 2}}).
		Output("y", testutil.Vector(tensor.Int64)).
		Node(testutil.LabelEncoder("x", "y", testutil.Strings("keys_strings", "b", "a"))).
		Build()
	prog, err := lowerGraph(t, load(t, model), Options{})
	require.NoError(t, err)

	codes, err := encode([]string{"a", "b"}, 2)
	require.NoError(t, err)
	wide := make([]int64, codes.NumElements())
	for i, c := range tensor.Values[int32](codes) {
		wide[i] = int64(c)
	}
	out, err := run(t, prog, testutil.Tensor(t, wide, 2, 2))
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1}, tensor.Values[int64](out))
}

func TestLabelEncoderRejectsNonIntegerValues(t *testing.T) {
	model := testutil.NewModel("strings_out").
		Input("x", testutil.Vector(tensor.Int64)).
		Output("y", testutil.Vector(tensor.String)).
		Node(testutil.LabelEncoder("x", "y",
			testutil.Ints("keys_int64s", 1, 2),
			testutil.Strings("values_strings", "one", "two"))).
		Build()
	_, err := lowerGraph(t, load(t, model), Options{})
	var uerr *UnsupportedOperatorError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "LabelEncoder", uerr.OpType)
	assert.Contains(t, uerr.Error(), "integer values")
}

func TestLabelEncoderTableIsInitializer(t *testing.T) {
	g := load(t, testutil.IntLabelEncoder(5, 0, 4))
	sg, err := Default().Lower(NewContext(g, g.Nodes[0], Options{Target: tensorTarget()}))
	require.NoError(t, err)

	require.NotEmpty(t, sg.Initializers)
	keys := sg.Initializers[0]
	assert.Equal(t, "n0/keys_0", keys.Name)
	assert.Equal(t, []int64{0, 4, 5}, tensor.Values[int64](keys.Tensor))
	assert.Equal(t, []string{"y"}, sg.Outputs)
	assert.Equal(t, "y", sg.Nodes[len(sg.Nodes)-1].Output)
}

func TestLoweringIsDeterministic(t *testing.T) {
	g := load(t, testutil.StringLabelEncoder("x1", "x2", "x3"))
	first, err := lowerGraph(t, g, Options{})
	require.NoError(t, err)
	second, err := lowerGraph(t, g, Options{})
	require.NoError(t, err)

	require.Len(t, second.Nodes, len(first.Nodes))
	for i := range first.Nodes {
		assert.Equal(t, first.Nodes[i].Name, second.Nodes[i].Name)
		assert.Equal(t, first.Nodes[i].Op, second.Nodes[i].Op)
	}
}

func TestScaler(t *testing.T) {
	model := testutil.NewModel("scaler").
		Input("x", tensor.Spec{DType: tensor.Float64, Dims: []int{tensor.Unknown, 2}}).
		Output("y", tensor.Spec{DType: tensor.Float32, Dims: []int{tensor.Unknown, 2}}).
		Node(testutil.Node("Scaler", onnx.DomainML, []string{"x"}, []string{"y"},
			testutil.Floats("offset", 1, 10),
			testutil.Floats("scale", 2, 0.5))).
		Build()
	prog, err := lowerGraph(t, load(t, model), Options{})
	require.NoError(t, err)

	out, err := run(t, prog, testutil.Tensor(t, []float64{1, 10, 3, 14}, 2, 2))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0, 0, 4, 2}, tensor.Values[float32](out), 1e-6)
}

func TestScalerWithoutParameters(t *testing.T) {
	model := testutil.NewModel("scaler").
		Input("x", testutil.Vector(tensor.Float32)).
		Output("y", testutil.Vector(tensor.Float32)).
		Node(testutil.Node("Scaler", onnx.DomainML, []string{"x"}, []string{"y"})).
		Build()
	prog, err := lowerGraph(t, load(t, model), Options{})
	require.NoError(t, err)
	assert.Equal(t, map[program.OpType]int{program.OpIdentity: 1}, prog.OpCounts())
}

func TestBinarizer(t *testing.T) {
	model := testutil.NewModel("binarizer").
		Input("x", testutil.Vector(tensor.Int64)).
		Output("y", testutil.Vector(tensor.Int64)).
		Node(testutil.Node("Binarizer", onnx.DomainML, []string{"x"}, []string{"y"},
			testutil.Float("threshold", 2))).
		Build()
	prog, err := lowerGraph(t, load(t, model), Options{})
	require.NoError(t, err)

	out, err := run(t, prog, testutil.Tensor(t, []int64{1, 2, 3, -4}, 4))
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 0, 1, 0}, tensor.Values[int64](out))
}

func TestCastAndIdentity(t *testing.T) {
	model := testutil.NewModel("chain").
		Input("x", testutil.Vector(tensor.Int64)).
		Output("z", testutil.Vector(tensor.Float32)).
		Node(testutil.Node("Identity", "", []string{"x"}, []string{"y"})).
		Node(testutil.Node("Cast", "", []string{"y"}, []string{"z"},
			testutil.Int("to", onnx.TensorProtoFloat))).
		Build()
	prog, err := lowerGraph(t, load(t, model), Options{})
	require.NoError(t, err)

	out, err := run(t, prog, testutil.Tensor(t, []int64{1, -2}, 2))
	require.NoError(t, err)
	assert.Equal(t, []float32{1, -2}, tensor.Values[float32](out))
}

func TestCastToStringIsUnsupported(t *testing.T) {
	model := testutil.NewModel("cast").
		Input("x", testutil.Vector(tensor.Int64)).
		Output("y", testutil.Vector(tensor.String)).
		Node(testutil.Node("Cast", "", []string{"x"}, []string{"y"},
			testutil.Int("to", onnx.TensorProtoString))).
		Build()
	_, err := lowerGraph(t, load(t, model), Options{})
	var uerr *UnsupportedOperatorError
	assert.ErrorAs(t, err, &uerr)
}

func TestRegistryUnknownOperator(t *testing.T) {
	model := testutil.NewModel("unknown").
		Input("x", testutil.Vector(tensor.Int64)).
		Output("y", testutil.Vector(tensor.Int64)).
		Node(testutil.Node("OneHotEncoder", onnx.DomainML, []string{"x"}, []string{"y"})).
		Build()
	g := load(t, model)

	_, err := Default().Lower(NewContext(g, g.Nodes[0], Options{Target: tensorTarget()}))
	var uerr *UnsupportedOperatorError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "OneHotEncoder", uerr.OpType)
	assert.Equal(t, onnx.DomainML, uerr.Domain)
	assert.Len(t, Default().Unsupported(g), 1)
}

func TestRegistryCustomStrategy(t *testing.T) {
	model := testutil.NewModel("custom").
		Input("x", testutil.Vector(tensor.Int64)).
		Output("y", testutil.Vector(tensor.Int64)).
		Node(testutil.Node("Negate", "", []string{"x"}, []string{"y"})).
		Build()
	g := load(t, model)

	negate := StrategyFunc(func(c *Context) error {
		n := c.Node()
		zero := c.Constant("zero", tensor.Scalar(int64(0)))
		return c.EmitTo(n.Outputs[0], program.OpSub, program.Attrs{}, zero, n.Inputs[0])
	})
	r := NewRegistry(map[string]Strategy{"Negate": negate})
	assert.Contains(t, r.SupportedOps(), "Negate")
	assert.Contains(t, r.SupportedOps(), "LabelEncoder")

	sg, err := r.Lower(NewContext(g, g.Nodes[0], Options{Target: tensorTarget()}))
	require.NoError(t, err)
	require.Len(t, sg.Nodes, 1)
	assert.Equal(t, program.OpSub, sg.Nodes[0].Op)
}

func TestRegistryStrategyErrorPropagates(t *testing.T) {
	g := load(t, testutil.IntLabelEncoder(1))
	boom := errors.New("boom")
	r := NewRegistry(map[string]Strategy{
		"LabelEncoder": StrategyFunc(func(*Context) error { return boom }),
	})
	_, err := r.Lower(NewContext(g, g.Nodes[0], Options{Target: tensorTarget()}))
	assert.ErrorIs(t, err, boom)
}

func TestSupportedOpsSorted(t *testing.T) {
	assert.Equal(t, []string{"Binarizer", "Cast", "Identity", "LabelEncoder", "Scaler"}, Default().SupportedOps())
	assert.Same(t, Default(), Default())
}

func TestContextFreshNamesAreScoped(t *testing.T) {
	g := load(t, testutil.IntLabelEncoder(1, 2))
	n := *g.Nodes[0]
	n.Index = 7
	c := NewContext(g, &n, Options{Target: tensorTarget()})
	assert.Equal(t, "n7/a_0", c.Fresh("a"))
	assert.Equal(t, "n7/a_1", c.Fresh("a"))
}

func TestParseUnknownPolicy(t *testing.T) {
	p, err := ParseUnknownPolicy("Default")
	require.NoError(t, err)
	assert.Equal(t, UnknownDefault, p)

	p, err = ParseUnknownPolicy("")
	require.NoError(t, err)
	assert.Equal(t, UnknownError, p)
	assert.Equal(t, "error", p.String())

	_, err = ParseUnknownPolicy("skip")
	assert.Error(t, err)
}

func encode(values []string, width int) (*tensor.RawTensor, error) {
	return strcode.Encode(values, width)
}
