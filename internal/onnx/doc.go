// Package onnx reads and writes ONNX models.
//
// The message types are hand-written and decoded with the protobuf wire
// primitives of google.golang.org/protobuf/encoding/protowire, so no generated
// code is needed. Only the parts of the format that classical-ML graphs use
// are modelled:
//   - ModelProto: opset imports, producer metadata and the graph
//   - GraphProto: nodes, declared inputs/outputs and initializers
//   - NodeProto: one operator, including its domain (e.g. "ai.onnx.ml")
//   - AttributeProto: scalar, list and tensor attributes
//   - TensorProto: initializer data (raw_data or the typed legacy fields)
//
// Example usage:
//
//	model, err := onnx.ParseFile("encoder.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	info := onnx.Inspect(model)
//	fmt.Printf("ops: %v (ml opset %d)\n", info.OpTypes, info.MLOpsetVersion)
package onnx
