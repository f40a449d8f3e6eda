package onnx

import "golang.org/x/exp/slices"

// ModelInfo contains basic information about an ONNX model without lowering it.
type ModelInfo struct {
	IRVersion       int64
	OpsetVersion    int64 // default domain
	MLOpsetVersion  int64 // ai.onnx.ml domain
	ProducerName    string
	ProducerVersion string
	InputNames      []string
	OutputNames     []string
	OpTypes         []string // distinct, sorted
	NodeCount       int
	WeightCount     int
}

// Inspect extracts basic info from a parsed model.
func Inspect(proto *ModelProto) *ModelInfo {
	info := &ModelInfo{
		IRVersion:       proto.IRVersion,
		OpsetVersion:    proto.OpsetVersion(""),
		MLOpsetVersion:  proto.OpsetVersion(DomainML),
		ProducerName:    proto.ProducerName,
		ProducerVersion: proto.ProducerVersion,
	}

	if proto.Graph == nil {
		return info
	}

	// Get inputs (excluding initializers)
	initNames := make(map[string]bool)
	for i := range proto.Graph.Initializers {
		initNames[proto.Graph.Initializers[i].Name] = true
	}
	for i := range proto.Graph.Inputs {
		if !initNames[proto.Graph.Inputs[i].Name] {
			info.InputNames = append(info.InputNames, proto.Graph.Inputs[i].Name)
		}
	}

	for i := range proto.Graph.Outputs {
		info.OutputNames = append(info.OutputNames, proto.Graph.Outputs[i].Name)
	}

	seen := make(map[string]bool)
	for i := range proto.Graph.Nodes {
		op := proto.Graph.Nodes[i].OpType
		if !seen[op] {
			seen[op] = true
			info.OpTypes = append(info.OpTypes, op)
		}
	}
	slices.Sort(info.OpTypes)

	info.NodeCount = len(proto.Graph.Nodes)
	info.WeightCount = len(proto.Graph.Initializers)
	return info
}
