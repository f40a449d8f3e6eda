// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package convert

import (
	"github.com/born-ml/mlconvert/internal/converter"
	internalonnx "github.com/born-ml/mlconvert/internal/onnx"
	"github.com/born-ml/mlconvert/onnx"
	"github.com/born-ml/mlconvert/tensor"
)

// Transform is a converted model ready to run.
//
// A Transform is safe for concurrent use; it never modifies its inputs.
type Transform interface {
	// Transform runs a model with one input and one output.
	Transform(input *tensor.RawTensor) (*tensor.RawTensor, error)

	// TransformNamed runs the model on named inputs and returns every output
	// by name.
	TransformNamed(inputs map[string]*tensor.RawTensor) (map[string]*tensor.RawTensor, error)

	// Inputs returns the runtime spec of each input, in declaration order.
	// String inputs appear as their int32 code form.
	Inputs() []Value

	// Outputs returns the spec of each output.
	Outputs() []Value

	// Primitives returns how often each tensor primitive occurs in the program.
	Primitives() map[string]int

	// ExportONNX renders the tensor program as a default-domain ONNX model.
	ExportONNX() (*onnx.ModelProto, error)
}

// Value is a named program input or output.
type Value struct {
	Name string
	Spec tensor.Spec
}

type transform struct {
	res *converter.Result
}

func (t *transform) Transform(input *tensor.RawTensor) (*tensor.RawTensor, error) {
	return t.res.Transform.Transform(input)
}

func (t *transform) TransformNamed(inputs map[string]*tensor.RawTensor) (map[string]*tensor.RawTensor, error) {
	return t.res.Transform.TransformNamed(inputs)
}

func (t *transform) Inputs() []Value {
	out := make([]Value, len(t.res.Program.Inputs))
	for i, v := range t.res.Program.Inputs {
		out[i] = Value{Name: v.Name, Spec: v.Spec.Clone()}
	}
	return out
}

func (t *transform) Outputs() []Value {
	out := make([]Value, len(t.res.Program.Outputs))
	for i, v := range t.res.Program.Outputs {
		out[i] = Value{Name: v.Name, Spec: v.Spec.Clone()}
	}
	return out
}

func (t *transform) Primitives() map[string]int {
	counts := make(map[string]int)
	for op, n := range t.res.Program.OpCounts() {
		counts[string(op)] = n
	}
	return counts
}

func (t *transform) ExportONNX() (*onnx.ModelProto, error) {
	return internalonnx.ExportProgram(t.res.Program)
}
