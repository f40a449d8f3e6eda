package lowering

import "fmt"

// UnsupportedOperatorError reports a node no registered strategy can lower.
type UnsupportedOperatorError struct {
	OpType string
	Domain string
	Reason string // set when a strategy exists but rejects this use
}

// Error implements the error interface.
func (e *UnsupportedOperatorError) Error() string {
	op := e.OpType
	if e.Domain != "" {
		op = e.Domain + "." + e.OpType
	}
	if e.Reason == "" {
		return fmt.Sprintf("unsupported operator %s: no lowering registered", op)
	}
	return fmt.Sprintf("unsupported operator %s: %s", op, e.Reason)
}
