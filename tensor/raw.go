// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/mlconvert/internal/strcode"
	"github.com/born-ml/mlconvert/internal/tensor"
)

// RawTensor is a dense row-major tensor.
//
// Tensors passed to a transform are never modified; results are freshly
// allocated or read-only views.
type RawTensor = tensor.RawTensor

// Shape represents the dimensions of a tensor.
type Shape = tensor.Shape

// DataType identifies the element type of a tensor.
type DataType = tensor.DataType

// Spec describes a tensor value without data. A dimension of Unknown is
// symbolic.
type Spec = tensor.Spec

// Device identifies the compute device of a tensor.
type Device = tensor.Device

// Element types.
const (
	Float32 = tensor.Float32
	Float64 = tensor.Float64
	Int32   = tensor.Int32
	Int64   = tensor.Int64
	Uint8   = tensor.Uint8
	Bool    = tensor.Bool
	String  = tensor.String
)

// Unknown marks a symbolic dimension.
const Unknown = tensor.Unknown

// CPU is the host device.
const CPU = tensor.CPU

// DType constrains the Go element types a tensor can hold.
type DType = tensor.DType

// FromSlice creates a tensor from a copy of data.
func FromSlice[T DType](data []T, shape Shape) (*RawTensor, error) {
	return tensor.FromSlice(data, shape)
}

// Scalar creates a rank-0 tensor.
func Scalar[T DType](v T) *RawTensor {
	return tensor.Scalar(v)
}

// Values returns the typed elements of r. It panics if T does not match
// r's dtype.
func Values[T DType](r *RawTensor) []T {
	return tensor.Values[T](r)
}

// EncodeStrings converts strings to int32 chunk codes of shape
// [len(values), width], four bytes per chunk. A width of 0 fits the longest
// value.
//
// Example:
//
//	codes, _ := tensor.EncodeStrings([]string{"paris", "milan"}, 0)
//	codes.Shape() // [2 2]
func EncodeStrings(values []string, width int) (*RawTensor, error) {
	return strcode.Encode(values, max(width, strcode.Width(values)))
}
