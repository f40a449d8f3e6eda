// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor exposes the tensor types used to feed and read converted
// programs.
//
// # Basic Usage
//
//	import "github.com/born-ml/mlconvert/tensor"
//
//	x, err := tensor.FromSlice([]int64{1, 4, 5}, tensor.Shape{3})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	y, err := transform.Transform(x)
//	fmt.Println(tensor.Values[int64](y))
//
// String inputs are fed as fixed-width int32 codes built with EncodeStrings.
package tensor
