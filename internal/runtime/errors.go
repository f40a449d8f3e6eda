package runtime

import (
	"errors"
	"fmt"

	"github.com/born-ml/mlconvert/internal/tensor"
)

// ErrUnmatchedCategory is returned by a call whose input holds a value absent
// from a categorical lowering's table while the error policy is in force.
var ErrUnmatchedCategory = errors.New("value not in category table")

// InputShapeMismatchError reports an input whose dtype or shape does not
// satisfy the declared program input.
type InputShapeMismatchError struct {
	Input string
	Want  tensor.Spec
	Got   tensor.Spec
}

// Error implements the error interface.
func (e *InputShapeMismatchError) Error() string {
	return fmt.Sprintf("input %q: expected %s, got %s", e.Input, e.Want, e.Got)
}
