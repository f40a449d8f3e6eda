package strcode

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/born-ml/mlconvert/internal/tensor"
)

// Table is an ascending table of fixed-width categories. It is sorted once
// when built and never modified.
type Table struct {
	width   int
	entries []FixedString
	perm    []int // perm[s] is the original position of sorted entry s
}

// NewTable sorts categories into a table at least width chunks wide; the
// width grows to fit the longest category.
func NewTable(categories []string, width int) (*Table, error) {
	width = max(width, Width(categories))

	encoded := make([]FixedString, len(categories))
	for i, s := range categories {
		f, err := New(s, width)
		if err != nil {
			return nil, err
		}
		encoded[i] = f
	}

	perm := make([]int, len(categories))
	for i := range perm {
		perm[i] = i
	}
	slices.SortStableFunc(perm, func(a, b int) bool {
		return encoded[a].Compare(encoded[b]) < 0
	})

	t := &Table{width: width, entries: make([]FixedString, len(perm)), perm: perm}
	for s, orig := range perm {
		t.entries[s] = encoded[orig]
		if s > 0 && t.entries[s].Equal(t.entries[s-1]) {
			return nil, fmt.Errorf("%w: %q", ErrDuplicate, categories[orig])
		}
	}
	return t, nil
}

// Len returns the number of categories.
func (t *Table) Len() int { return len(t.entries) }

// Width returns the chunk count of every entry.
func (t *Table) Width() int { return t.width }

// Perm returns, for each sorted position, the category's original position.
func (t *Table) Perm() []int { return slices.Clone(t.perm) }

// Tensor returns the sorted table as an int32 tensor of shape [Len, Width].
func (t *Table) Tensor() *tensor.RawTensor {
	codes := make([]int32, 0, len(t.entries)*t.width)
	for _, f := range t.entries {
		codes = append(codes, f.Codes()...)
	}
	raw, err := tensor.FromSlice(codes, tensor.Shape{len(t.entries), t.width})
	if err != nil {
		panic(fmt.Sprintf("strcode: table tensor: %v", err))
	}
	return raw
}
