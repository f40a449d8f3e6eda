// Package onnx reads and writes ONNX models for mlconvert.
//
// Models are decoded with a hand-written protobuf wire reader covering the
// parts of the format classical-ML graphs use, including the ai.onnx.ml
// domain. Converted programs can be written back with Marshal.
//
// # Example Usage
//
//	model, err := onnx.ReadFile("encoder.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	info := onnx.Inspect(model)
//	fmt.Println(info.OpTypes)
package onnx

import (
	internalonnx "github.com/born-ml/mlconvert/internal/onnx"
)

// ModelProto is a decoded ONNX model.
type ModelProto = internalonnx.ModelProto

// ModelInfo summarises a model without converting it.
type ModelInfo = internalonnx.ModelInfo

// ErrInvalidWire is returned for bytes that are not a well-formed model.
var ErrInvalidWire = internalonnx.ErrInvalidWire

// Parse decodes a model from its serialized form.
func Parse(data []byte) (*ModelProto, error) {
	return internalonnx.Parse(data)
}

// ReadFile decodes the model stored at path.
func ReadFile(path string) (*ModelProto, error) {
	return internalonnx.ParseFile(path)
}

// Marshal serializes a model.
func Marshal(m *ModelProto) []byte {
	return internalonnx.Marshal(m)
}

// WriteFile serializes a model to path.
func WriteFile(path string, m *ModelProto) error {
	return internalonnx.WriteFile(path, m)
}

// Inspect summarises a model: opsets, producer, inputs, outputs and the
// operator types it uses.
//
// Example:
//
//	info := onnx.Inspect(model)
//	fmt.Printf("Opset: %d (ml %d)\n", info.OpsetVersion, info.MLOpsetVersion)
//	fmt.Printf("Operators: %v\n", info.OpTypes)
func Inspect(m *ModelProto) *ModelInfo {
	return internalonnx.Inspect(m)
}
