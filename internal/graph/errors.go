package graph

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// Common validation problems. Each problem reported by a MalformedGraphError
// wraps one of these.
var (
	// ErrNoGraph indicates the model carries no graph.
	ErrNoGraph = errors.New("model has no graph")

	// ErrEmptyOpType indicates a node without an operator type.
	ErrEmptyOpType = errors.New("empty operator type")

	// ErrAttributeName indicates an empty or duplicated attribute name.
	ErrAttributeName = errors.New("invalid attribute name")

	// ErrArity indicates a known operator with the wrong number of inputs or outputs.
	ErrArity = errors.New("wrong number of inputs or outputs")

	// ErrMissingAttribute indicates a required attribute is absent.
	ErrMissingAttribute = errors.New("missing required attribute")

	// ErrAttributeType indicates an attribute of the wrong kind.
	ErrAttributeType = errors.New("attribute has wrong type")

	// ErrEmptyAttribute indicates an empty list where values are required.
	ErrEmptyAttribute = errors.New("attribute must not be empty")

	// ErrInvalidAttribute indicates attribute values that are inconsistent.
	ErrInvalidAttribute = errors.New("invalid attribute value")

	// ErrInvalidValue indicates an initializer or declared value that cannot be read.
	ErrInvalidValue = errors.New("invalid value declaration")

	// ErrUnresolvedInput indicates an input name nothing produces.
	ErrUnresolvedInput = errors.New("unresolved input")

	// ErrDuplicateOutput indicates two producers of the same name.
	ErrDuplicateOutput = errors.New("duplicate output name")

	// ErrCycle indicates the graph is not acyclic.
	ErrCycle = errors.New("graph contains a cycle")

	// ErrDTypeConflict indicates an inferred dtype that contradicts a declaration.
	ErrDTypeConflict = errors.New("dtype conflict")
)

// MalformedGraphError reports every structural or attribute problem found
// while loading a graph. It unwraps to each problem, so errors.Is matches the
// sentinel of any of them.
type MalformedGraphError struct {
	Graph    string
	Problems []error
}

// Error implements the error interface.
func (e *MalformedGraphError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	name := e.Graph
	if name == "" {
		name = "<unnamed>"
	}
	return fmt.Sprintf("malformed graph %s: %s", name, strings.Join(msgs, "; "))
}

// Unwrap returns the individual problems.
func (e *MalformedGraphError) Unwrap() []error {
	return e.Problems
}

// malformed returns a *MalformedGraphError for the accumulated problems, or nil.
func malformed(graph string, problems error) error {
	if problems == nil {
		return nil
	}
	return &MalformedGraphError{Graph: graph, Problems: multierr.Errors(problems)}
}

// nodeProblem wraps a sentinel with the node it concerns.
func nodeProblem(n *Node, sentinel error, format string, args ...any) error {
	return fmt.Errorf("node %s: %w: %s", n, sentinel, fmt.Sprintf(format, args...))
}
