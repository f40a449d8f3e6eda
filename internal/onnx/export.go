package onnx

import (
	"fmt"

	"github.com/born-ml/mlconvert/internal/program"
	"github.com/born-ml/mlconvert/internal/tensor"
)

// Export settings.
const (
	// ExportOpset is the default-domain opset exported programs import.
	ExportOpset = 13

	// DomainRuntime holds primitives with no standard operator (AssertAll).
	DomainRuntime = "ai.mlconvert"
)

// ExportProgram renders a tensor program as an ONNX model using default-domain
// operators at opset 13. Axes and shapes that opset 13 takes as inputs are
// written as initializers named after the consuming node.
func ExportProgram(prog *program.Program) (*ModelProto, error) {
	g := &GraphProto{Name: "mlconvert"}
	for _, v := range prog.Inputs {
		g.Inputs = append(g.Inputs, ValueInfo(v.Name, v.Spec))
	}
	for _, v := range prog.Outputs {
		g.Outputs = append(g.Outputs, ValueInfo(v.Name, v.Spec))
	}
	for _, init := range prog.Initializers {
		g.Initializers = append(g.Initializers, TensorToProto(init.Name, init.Tensor))
	}

	for _, n := range prog.Nodes {
		node, consts, err := exportNode(n)
		if err != nil {
			return nil, err
		}
		g.Nodes = append(g.Nodes, node)
		g.Initializers = append(g.Initializers, consts...)
		g.ValueInfo = append(g.ValueInfo, ValueInfoProto{
			Name: n.Output,
			Type: &TypeProto{TensorType: &TensorTypeProto{ElemType: DataTypeToProto(n.OutputType)}},
		})
	}

	return &ModelProto{
		IRVersion:       8,
		ProducerName:    "mlconvert",
		ProducerVersion: "1",
		OpsetImport: []OperatorSetID{
			{Domain: "", Version: ExportOpset},
			{Domain: DomainRuntime, Version: 1},
		},
		Graph: g,
	}, nil
}

func exportNode(n *program.Node) (NodeProto, []TensorProto, error) {
	node := NodeProto{
		Name:    n.Name,
		OpType:  string(n.Op),
		Inputs:  append([]string(nil), n.Inputs...),
		Outputs: []string{n.Output},
	}
	var consts []TensorProto
	addInput := func(suffix string, values []int64) error {
		t, err := tensor.FromSlice(values, tensor.Shape{len(values)})
		if err != nil {
			return err
		}
		name := n.Name + "/" + suffix
		consts = append(consts, TensorToProto(name, t))
		node.Inputs = append(node.Inputs, name)
		return nil
	}
	keepDims := intAttr("keepdims", 0)
	if n.Attrs.KeepDims {
		keepDims.I = 1
	}

	var err error
	switch n.Op {
	case program.OpIdentity, program.OpEqual, program.OpLess, program.OpGreater,
		program.OpAdd, program.OpSub, program.OpMul, program.OpMin,
		program.OpWhere, program.OpNonZero:
	case program.OpCast:
		node.Attributes = []AttributeProto{intAttr("to", int64(DataTypeToProto(n.Attrs.To)))}
	case program.OpReshape:
		shape := make([]int64, len(n.Attrs.Shape))
		for i, d := range n.Attrs.Shape {
			shape[i] = int64(d)
		}
		err = addInput("shape", shape)
	case program.OpUnsqueeze, program.OpSqueeze:
		err = addInput("axes", []int64{int64(n.Attrs.Axis)})
	case program.OpReduceSum:
		err = addInput("axes", []int64{int64(n.Attrs.Axis)})
		node.Attributes = []AttributeProto{keepDims}
	case program.OpReduceMin, program.OpReduceMax:
		node.Attributes = []AttributeProto{
			{Name: "axes", Type: AttributeProtoInts, Ints: []int64{int64(n.Attrs.Axis)}},
			keepDims,
		}
	case program.OpArgMax, program.OpGather, program.OpConcat:
		node.Attributes = []AttributeProto{intAttr("axis", int64(n.Attrs.Axis))}
		if n.Op == program.OpArgMax {
			node.Attributes = append(node.Attributes, keepDims)
		}
	case program.OpAssertAll:
		node.Domain = DomainRuntime
		node.Attributes = []AttributeProto{{Name: "message", Type: AttributeProtoString, S: []byte(n.Attrs.Message)}}
	default:
		return NodeProto{}, nil, fmt.Errorf("export: no ONNX form for %s", n.Op)
	}
	if err != nil {
		return NodeProto{}, nil, fmt.Errorf("export %s: %w", n, err)
	}
	return node, consts, nil
}

func intAttr(name string, v int64) AttributeProto {
	return AttributeProto{Name: name, Type: AttributeProtoInt, I: v}
}
