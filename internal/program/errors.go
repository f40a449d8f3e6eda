package program

import (
	"errors"
	"fmt"
)

// Assembly failures. A *ProgramAssemblyError wraps one of these.
var (
	// ErrNameCollision indicates a name that is produced twice and cannot be renamed.
	ErrNameCollision = errors.New("name collision")

	// ErrUnresolvedName indicates a consumed name nothing produced earlier.
	ErrUnresolvedName = errors.New("unresolved name")

	// ErrTypeMismatch indicates a declared dtype that contradicts the type rules.
	ErrTypeMismatch = errors.New("dtype mismatch")

	// ErrBindingConflict indicates two incompatible re-bindings of one input.
	ErrBindingConflict = errors.New("conflicting input binding")
)

// ProgramAssemblyError reports a lowered subgraph that violates a program
// invariant. It indicates a bug in a lowering strategy.
type ProgramAssemblyError struct {
	Source string // lowered graph node, empty for program-level checks
	Err    error
}

// Error implements the error interface.
func (e *ProgramAssemblyError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("program assembly: %v", e.Err)
	}
	return fmt.Sprintf("program assembly: lowering of %s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying failure.
func (e *ProgramAssemblyError) Unwrap() error {
	return e.Err
}
