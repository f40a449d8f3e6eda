package lowering

import (
	"fmt"
	"strings"
)

// UnknownPolicy selects what a categorical lowering does with a value that is
// not in its category table.
type UnknownPolicy int

const (
	// UnknownError fails the transform call with runtime.ErrUnmatchedCategory.
	UnknownError UnknownPolicy = iota

	// UnknownDefault maps the value to the node's default_int64 (-1 unless set).
	UnknownDefault
)

// String returns the policy name used in configuration.
func (p UnknownPolicy) String() string {
	if p == UnknownDefault {
		return "default"
	}
	return "error"
}

// ParseUnknownPolicy parses "error" or "default".
func ParseUnknownPolicy(s string) (UnknownPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "error":
		return UnknownError, nil
	case "default":
		return UnknownDefault, nil
	default:
		return 0, fmt.Errorf("unknown category policy %q (want \"error\" or \"default\")", s)
	}
}
