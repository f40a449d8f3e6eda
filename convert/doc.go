// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package convert lowers classical machine-learning graphs into tensor
// programs.
//
// # Overview
//
// A model in the ONNX interchange format (including the ai.onnx.ml domain)
// is validated, each node is lowered to tensor primitives by a registered
// strategy, and the assembled program is wrapped in a Transform that runs on
// a tensor backend.
//
// Supported operators:
//
//   - LabelEncoder (integer, float and string categories)
//   - Scaler, Binarizer
//   - Cast, Identity
//
// # Example Usage
//
//	model, err := onnx.ReadFile("encoder.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	tr, err := convert.Convert(model, convert.KindTensor, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	x, _ := tensor.FromSlice([]int64{1, 4, 5}, tensor.Shape{3})
//	y, err := tr.Transform(x)
//
// # String Categories
//
// String values are fed as int32 chunk codes (see tensor.EncodeStrings).
// Pass a sample of the codes to Convert to fix their width:
//
//	sample, _ := tensor.EncodeStrings([]string{"paris"}, 4)
//	tr, err := convert.Convert(model, convert.KindTensor, sample)
//
// # Targets
//
// The target kind and version decide which primitives a program may use.
// Converting for a version that lacks a required primitive fails with an
// *UnsupportedTargetVersionError naming it.
package convert
