// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package convert

import (
	"github.com/go-logr/logr"

	"github.com/born-ml/mlconvert/internal/lowering"
	"github.com/born-ml/mlconvert/tensor"
)

// Option configures a conversion.
type Option func(*options)

type options struct {
	version    string
	policy     lowering.UnknownPolicy
	workers    int
	logger     logr.Logger
	strategies map[string]Strategy
	backend    tensor.Backend
}

// WithTargetVersion sets the target runtime version, e.g. "v1.7.0". The
// default is the kind's default version.
func WithTargetVersion(version string) Option {
	return func(o *options) {
		o.version = version
	}
}

// WithUnknownPolicy selects what happens to values outside a category table.
// The default is UnknownError.
func WithUnknownPolicy(p UnknownPolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithWorkers bounds how many nodes are lowered in parallel. The default is
// one per CPU.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(l logr.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithStrategies adds lowering strategies by operator type, replacing
// built-ins of the same type.
func WithStrategies(s map[string]Strategy) Option {
	return func(o *options) {
		o.strategies = s
	}
}

// WithBackend sets the backend transforms run on. The default is the CPU
// backend.
func WithBackend(b tensor.Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}
