package graph

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/born-ml/mlconvert/internal/onnx"
	"github.com/born-ml/mlconvert/internal/tensor"
)

// LoadBytes parses an ONNX model and loads its graph.
// Undecodable bytes are reported as a *MalformedGraphError.
func LoadBytes(data []byte) (*Graph, error) {
	model, err := onnx.Parse(data)
	if err != nil {
		return nil, &MalformedGraphError{Problems: []error{err}}
	}
	return Load(model)
}

// Load builds and validates the graph of a parsed model.
//
// Validation is staged: per-node and per-value problems are collected first,
// then name resolution, then ordering, then dtype inference. Every problem
// found by a stage is reported together in one *MalformedGraphError; later
// stages only run on a graph that passed the earlier ones. The model is not
// modified.
func Load(model *onnx.ModelProto) (*Graph, error) {
	if model == nil || model.Graph == nil {
		return nil, &MalformedGraphError{Problems: []error{ErrNoGraph}}
	}
	gp := model.Graph

	g := &Graph{
		Name:   gp.Name,
		Opsets: make(map[string]int64, len(model.OpsetImport)),
		dtypes: make(map[string]tensor.DataType),
	}
	for _, opset := range model.OpsetImport {
		domain := opset.Domain
		if domain == onnx.DomainDefault {
			domain = ""
		}
		g.Opsets[domain] = opset.Version
	}

	problems := g.loadValues(gp)
	nodes, nodeProblems := loadNodes(gp.Nodes)
	problems = multierr.Append(problems, nodeProblems)
	if err := malformed(g.Name, problems); err != nil {
		return nil, err
	}

	if err := malformed(g.Name, g.resolve(nodes)); err != nil {
		return nil, err
	}

	sorted, err := topologicalSort(nodes)
	if err != nil {
		return nil, malformed(g.Name, err)
	}
	for i, n := range sorted {
		n.Index = i
	}
	g.Nodes = sorted

	if err := malformed(g.Name, g.inferDTypes(gp.ValueInfo)); err != nil {
		return nil, err
	}
	return g, nil
}

// loadValues converts initializers and declared inputs/outputs.
func (g *Graph) loadValues(gp *onnx.GraphProto) error {
	var problems error

	initNames := make(map[string]bool, len(gp.Initializers))
	for i := range gp.Initializers {
		init := &gp.Initializers[i]
		t, err := onnx.TensorFromProto(init)
		if err != nil {
			problems = multierr.Append(problems, fmt.Errorf("initializer %q: %w: %w", init.Name, ErrInvalidValue, err))
			continue
		}
		initNames[init.Name] = true
		g.Initializers = append(g.Initializers, Initializer{Name: init.Name, Tensor: t})
		g.dtypes[init.Name] = t.DType()
	}

	// Inputs are graph inputs minus initializers
	for i := range gp.Inputs {
		vi := &gp.Inputs[i]
		if initNames[vi.Name] {
			continue
		}
		spec, err := onnx.SpecFromValueInfo(vi)
		if err != nil {
			problems = multierr.Append(problems, fmt.Errorf("input: %w: %w", ErrInvalidValue, err))
			continue
		}
		g.Inputs = append(g.Inputs, Value{Name: vi.Name, Spec: spec})
		g.dtypes[vi.Name] = spec.DType
	}

	for i := range gp.Outputs {
		vi := &gp.Outputs[i]
		spec, err := onnx.SpecFromValueInfo(vi)
		if err != nil {
			problems = multierr.Append(problems, fmt.Errorf("output: %w: %w", ErrInvalidValue, err))
			continue
		}
		g.Outputs = append(g.Outputs, Value{Name: vi.Name, Spec: spec})
	}
	if len(g.Outputs) == 0 && problems == nil {
		problems = fmt.Errorf("%w: graph declares no outputs", ErrInvalidValue)
	}

	return problems
}

// loadNodes converts nodes and checks their attributes.
func loadNodes(protos []onnx.NodeProto) ([]*Node, error) {
	var problems error
	nodes := make([]*Node, len(protos))

	for i := range protos {
		np := &protos[i]
		n := &Node{
			Index:      i,
			Name:       np.Name,
			OpType:     np.OpType,
			Domain:     np.Domain,
			Inputs:     append([]string(nil), np.Inputs...),
			Outputs:    append([]string(nil), np.Outputs...),
			Attributes: make(map[string]Attribute, len(np.Attributes)),
		}
		nodes[i] = n

		if n.OpType == "" {
			problems = multierr.Append(problems, nodeProblem(n, ErrEmptyOpType, "operator type must be set"))
		}

		attrOK := true
		for j := range np.Attributes {
			attr, err := attributeFromProto(&np.Attributes[j])
			switch {
			case attr.Name == "":
				problems = multierr.Append(problems, nodeProblem(n, ErrAttributeName, "attribute %d has an empty name", j))
				attrOK = false
				continue
			case err != nil:
				problems = multierr.Append(problems, nodeProblem(n, ErrAttributeType, "%q: %v", attr.Name, err))
				attrOK = false
				continue
			}
			if _, dup := n.Attributes[attr.Name]; dup {
				problems = multierr.Append(problems, nodeProblem(n, ErrAttributeName, "attribute %q appears more than once", attr.Name))
				attrOK = false
				continue
			}
			n.Attributes[attr.Name] = attr
		}

		// Schema checks would misreport a node whose attributes are already broken.
		if !attrOK {
			continue
		}
		if schema, ok := LookupSchema(n.OpType, n.Domain); ok {
			problems = multierr.Append(problems, schema.validate(n))
		}
	}

	return nodes, problems
}

func attributeFromProto(ap *onnx.AttributeProto) (Attribute, error) {
	a := Attribute{Name: ap.Name}
	switch ap.Type {
	case onnx.AttributeProtoFloat:
		a.Kind, a.F = AttrFloat, ap.F
	case onnx.AttributeProtoInt:
		a.Kind, a.I = AttrInt, ap.I
	case onnx.AttributeProtoString:
		a.Kind, a.S = AttrString, string(ap.S)
	case onnx.AttributeProtoTensor:
		a.Kind = AttrTensor
		if ap.T == nil {
			return a, fmt.Errorf("tensor attribute has no value")
		}
		t, err := onnx.TensorFromProto(ap.T)
		if err != nil {
			return a, err
		}
		a.T = t
	case onnx.AttributeProtoFloats:
		a.Kind, a.Floats = AttrFloats, append([]float32(nil), ap.Floats...)
	case onnx.AttributeProtoInts:
		a.Kind, a.Ints = AttrInts, append([]int64(nil), ap.Ints...)
	case onnx.AttributeProtoStrings:
		a.Kind = AttrStrings
		a.Strings = make([]string, len(ap.Strings))
		for i, s := range ap.Strings {
			a.Strings[i] = string(s)
		}
	case onnx.AttributeProtoUndefined:
		return a, fmt.Errorf("attribute type is undefined")
	default:
		a.Kind = AttrOther
	}
	return a, nil
}

// resolve checks that every consumed name is produced exactly once.
func (g *Graph) resolve(nodes []*Node) error {
	var problems error

	available := make(map[string]bool, len(g.Inputs)+len(g.Initializers))
	for _, v := range g.Inputs {
		available[v.Name] = true
	}
	for _, init := range g.Initializers {
		available[init.Name] = true
	}

	producers := make(map[string]*Node)
	for _, n := range nodes {
		for _, out := range n.Outputs {
			if out == "" {
				continue
			}
			if prev, dup := producers[out]; dup || available[out] {
				by := "a graph input or initializer"
				if dup {
					by = prev.String()
				}
				problems = multierr.Append(problems, nodeProblem(n, ErrDuplicateOutput, "%q is also produced by %s", out, by))
				continue
			}
			producers[out] = n
		}
	}

	for _, n := range nodes {
		for _, in := range n.Inputs {
			// An empty name marks an omitted optional input.
			if in == "" || available[in] || producers[in] != nil {
				continue
			}
			problems = multierr.Append(problems, nodeProblem(n, ErrUnresolvedInput, "%q is not declared", in))
		}
	}

	for _, out := range g.Outputs {
		if !available[out.Name] && producers[out.Name] == nil {
			problems = multierr.Append(problems, fmt.Errorf("graph output %q: %w", out.Name, ErrUnresolvedInput))
		}
	}

	return problems
}

// topologicalSort sorts nodes in execution order.
// Ensures dependencies are executed before dependents; independent nodes keep
// their original relative order.
func topologicalSort(nodes []*Node) ([]*Node, error) {
	// Build output-to-node map
	outputToNode := make(map[string]int)
	for i, n := range nodes {
		for _, output := range n.Outputs {
			outputToNode[output] = i
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(nodes))
	result := make([]*Node, 0, len(nodes))

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w: through node %s", ErrCycle, nodes[i])
		}
		state[i] = visiting

		// Visit dependencies first
		for _, input := range nodes[i].Inputs {
			if depIdx, ok := outputToNode[input]; ok {
				if err := visit(depIdx); err != nil {
					return err
				}
			}
		}

		state[i] = done
		result = append(result, nodes[i])
		return nil
	}

	// Visit all nodes
	for i := range nodes {
		if err := visit(i); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// inferDTypes propagates element types through the ordered nodes and checks
// them against declared graph outputs.
func (g *Graph) inferDTypes(valueInfo []onnx.ValueInfoProto) error {
	var problems error

	declared := make(map[string]tensor.DataType, len(valueInfo))
	for i := range valueInfo {
		if spec, err := onnx.SpecFromValueInfo(&valueInfo[i]); err == nil {
			declared[valueInfo[i].Name] = spec.DType
		}
	}

	for _, n := range g.Nodes {
		schema, known := LookupSchema(n.OpType, n.Domain)
		if !known {
			// Unknown operators only contribute what value_info declares.
			for _, out := range n.Outputs {
				if dt, ok := declared[out]; ok {
					g.dtypes[out] = dt
				}
			}
			continue
		}

		in, ok := g.dtypes[n.Inputs[0]]
		if !ok {
			continue
		}
		out, err := schema.Infer(n, in)
		if err != nil {
			problems = multierr.Append(problems, nodeProblem(n, ErrDTypeConflict, "%v", err))
			continue
		}
		g.dtypes[n.Outputs[0]] = out
	}

	for _, v := range g.Outputs {
		if dt, ok := g.dtypes[v.Name]; ok && dt != v.Spec.DType {
			problems = multierr.Append(problems, fmt.Errorf("graph output %q: %w: declared %s, produced %s",
				v.Name, ErrDTypeConflict, v.Spec.DType, dt))
		}
	}

	return problems
}
