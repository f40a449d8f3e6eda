// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/born-ml/mlconvert/internal/tensor"

// Backend defines the kernels a converted program runs on.
//
// Implementations:
//   - backend/cpu: Pure Go
//
// Kernels never modify their inputs and report misuse by panicking; a
// transform turns such panics into an error for the call.
type Backend = tensor.Backend
