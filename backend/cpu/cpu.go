// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go CPU backend.
package cpu

import (
	internalcpu "github.com/born-ml/mlconvert/internal/backend/cpu"
	"github.com/born-ml/mlconvert/tensor"
)

// Backend is the CPU implementation of tensor.Backend. It holds no mutable
// state and is safe for concurrent use.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend.
func New() *Backend {
	return internalcpu.New()
}
