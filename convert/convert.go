// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package convert

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/born-ml/mlconvert/internal/capability"
	"github.com/born-ml/mlconvert/internal/converter"
	"github.com/born-ml/mlconvert/internal/lowering"
	internalonnx "github.com/born-ml/mlconvert/internal/onnx"
	"github.com/born-ml/mlconvert/onnx"
	"github.com/born-ml/mlconvert/tensor"
)

// Convert converts model for a target of the given kind.
//
// The optional sample is a representative input. For numeric inputs it is
// checked against the declared input; for string inputs it gives the chunk
// width of the int32 codes the transform will accept.
func Convert(model *onnx.ModelProto, kind Kind, sample *tensor.RawTensor, opts ...Option) (Transform, error) {
	o := options{logger: logr.Discard()}
	for _, opt := range opts {
		opt(&o)
	}

	version := o.version
	if version == "" {
		version = kind.DefaultVersion()
	}
	target, err := capability.NewTarget(kind, version)
	if err != nil {
		return nil, err
	}

	var registry *lowering.Registry
	if len(o.strategies) > 0 {
		registry = lowering.NewRegistry(o.strategies)
	}

	res, err := converter.Convert(context.Background(), model, sample, converter.Options{
		Target:   target,
		Policy:   o.policy,
		Workers:  o.workers,
		Logger:   o.logger,
		Registry: registry,
		Backend:  o.backend,
	})
	if err != nil {
		return nil, err
	}
	return &transform{res: res}, nil
}

// ConvertBytes parses a serialized model and converts it.
func ConvertBytes(data []byte, kind Kind, sample *tensor.RawTensor, opts ...Option) (Transform, error) {
	model, err := internalonnx.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	return Convert(model, kind, sample, opts...)
}

// ConvertFile reads the model at path and converts it.
func ConvertFile(path string, kind Kind, sample *tensor.RawTensor, opts ...Option) (Transform, error) {
	model, err := internalonnx.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return Convert(model, kind, sample, opts...)
}

// SupportedOps returns the operator types the built-in strategies lower.
func SupportedOps() []string {
	return lowering.Default().SupportedOps()
}
