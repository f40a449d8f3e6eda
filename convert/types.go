// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package convert

import (
	"github.com/born-ml/mlconvert/internal/capability"
	"github.com/born-ml/mlconvert/internal/graph"
	"github.com/born-ml/mlconvert/internal/lowering"
	"github.com/born-ml/mlconvert/internal/program"
	"github.com/born-ml/mlconvert/internal/runtime"
)

// Kind is a family of target runtimes.
type Kind = capability.Kind

// Target kinds.
const (
	KindTensor      = capability.KindTensor
	KindONNX        = capability.KindONNX
	KindTorchScript = capability.KindTorchScript
)

// ParseKind parses a target kind name.
func ParseKind(s string) (Kind, error) {
	return capability.ParseKind(s)
}

// UnknownPolicy selects what a categorical lowering does with values outside
// its category table.
type UnknownPolicy = lowering.UnknownPolicy

// Unknown-category policies.
const (
	// UnknownError fails the call with ErrUnmatchedCategory.
	UnknownError = lowering.UnknownError

	// UnknownDefault returns the operator's default value (-1 unless set).
	UnknownDefault = lowering.UnknownDefault
)

// Strategy lowers one operator type. Custom strategies are registered with
// WithStrategies.
type Strategy = lowering.Strategy

// StrategyFunc adapts a function to Strategy.
type StrategyFunc = lowering.StrategyFunc

// LoweringContext is handed to a Strategy: it exposes the node being lowered
// and collects the primitives the strategy emits.
type LoweringContext = lowering.Context

// Primitive is a tensor primitive a strategy can emit.
type Primitive = program.OpType

// Attrs holds the static parameters of an emitted primitive.
type Attrs = program.Attrs

// Error types. All are matched with errors.As.
type (
	// MalformedGraphError reports a graph that failed validation. It wraps
	// every problem found.
	MalformedGraphError = graph.MalformedGraphError

	// UnsupportedOperatorError reports a node no strategy can lower.
	UnsupportedOperatorError = lowering.UnsupportedOperatorError

	// UnsupportedTargetVersionError reports a primitive the target version
	// lacks, with the minimum version providing it.
	UnsupportedTargetVersionError = capability.UnsupportedTargetVersionError

	// ProgramAssemblyError reports a lowering that broke a program invariant.
	ProgramAssemblyError = program.ProgramAssemblyError

	// InputShapeMismatchError reports an input whose dtype or shape does not
	// match the program input.
	InputShapeMismatchError = runtime.InputShapeMismatchError
)

// ErrUnmatchedCategory is returned by a call that meets a value outside a
// category table under UnknownError.
var ErrUnmatchedCategory = runtime.ErrUnmatchedCategory
