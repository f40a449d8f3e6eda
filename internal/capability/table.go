package capability

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// UnsupportedTargetVersionError reports a primitive the target cannot provide.
type UnsupportedTargetVersionError struct {
	Primitive string
	Target    Target
	Min       string // empty when no version of the kind provides it
}

// Error implements the error interface.
func (e *UnsupportedTargetVersionError) Error() string {
	if e.Min == "" {
		return fmt.Sprintf("primitive %s is not available for target kind %s", e.Primitive, e.Target.Kind)
	}
	return fmt.Sprintf("primitive %s requires %s >= %s, target is %s",
		e.Primitive, e.Target.Kind, e.Min, e.Target.Version)
}

// Table maps primitive -> kind -> minimum version.
type Table struct {
	min map[string]map[Kind]string
}

// baseline is the first version of each kind every primitive is assumed at.
var baseline = map[Kind]string{
	KindTensor:      "v0.1.0",
	KindONNX:        "v1.0.0",
	KindTorchScript: "v1.0.0",
}

// gated lists primitives whose availability differs from the baseline.
var gated = map[string]map[Kind]string{
	// Exporters could not emit a data-dependent index collection before 1.8.
	"NonZero": {
		KindTensor:      "v0.1.0",
		KindONNX:        "v1.8.0",
		KindTorchScript: "v1.8.0",
	},
}

// NewTable builds a capability table for the given primitives.
func NewTable(primitives []string) *Table {
	t := &Table{min: make(map[string]map[Kind]string, len(primitives))}
	for _, p := range primitives {
		if g, ok := gated[p]; ok {
			t.min[p] = g
			continue
		}
		t.min[p] = baseline
	}
	return t
}

// MinVersion returns the first version of kind that provides primitive.
func (t *Table) MinVersion(primitive string, kind Kind) (string, bool) {
	v, ok := t.min[primitive][kind]
	return v, ok
}

// Require fails with *UnsupportedTargetVersionError when target lacks primitive.
func (t *Table) Require(target Target, primitive string) error {
	minVersion, ok := t.MinVersion(primitive, target.Kind)
	if !ok {
		return &UnsupportedTargetVersionError{Primitive: primitive, Target: target}
	}
	if !target.AtLeast(minVersion) {
		return &UnsupportedTargetVersionError{Primitive: primitive, Target: target, Min: minVersion}
	}
	return nil
}

// Primitives returns the primitives known to the table, sorted.
func (t *Table) Primitives() []string {
	out := make([]string, 0, len(t.min))
	for p := range t.min {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}
