package lowering

import (
	"fmt"

	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"

	"github.com/born-ml/mlconvert/internal/graph"
	"github.com/born-ml/mlconvert/internal/program"
	"github.com/born-ml/mlconvert/internal/runtime"
	"github.com/born-ml/mlconvert/internal/strcode"
	"github.com/born-ml/mlconvert/internal/tensor"
)

// categoryTable is the ascending copy of a node's keys together with the
// permutation back to their original positions.
type categoryTable[T constraints.Ordered] struct {
	keys []T
	perm []int // perm[s] is the original position of sorted key s
}

func newCategoryTable[T constraints.Ordered](keys []T) (*categoryTable[T], error) {
	perm := make([]int, len(keys))
	for i := range perm {
		perm[i] = i
	}
	slices.SortStableFunc(perm, func(a, b int) bool {
		return keys[a] < keys[b]
	})

	sorted := make([]T, len(keys))
	for s, orig := range perm {
		sorted[s] = keys[orig]
		if s > 0 && sorted[s] == sorted[s-1] {
			return nil, fmt.Errorf("category %v appears more than once", sorted[s])
		}
	}
	return &categoryTable[T]{keys: sorted, perm: perm}, nil
}

func (t *categoryTable[T]) Len() int { return len(t.keys) }

// mappedValues returns the output for every sorted position: values[perm[s]]
// when values are given, else s itself.
func mappedValues(perm []int, values []int64) []int64 {
	out := make([]int64, len(perm))
	for s, orig := range perm {
		if values != nil {
			out[s] = values[orig]
			continue
		}
		out[s] = int64(s)
	}
	return out
}

// chain emits a sequence of primitives, keeping the first error.
type chain struct {
	c   *Context
	err error
}

func (ch *chain) emit(op program.OpType, attrs program.Attrs, hint string, inputs ...string) string {
	if ch.err != nil {
		return ""
	}
	name, err := ch.c.Emit(op, attrs, hint, inputs...)
	ch.err = err
	return name
}

func (ch *chain) emitTo(out string, op program.OpType, attrs program.Attrs, inputs ...string) {
	if ch.err != nil {
		return
	}
	ch.err = ch.c.EmitTo(out, op, attrs, inputs...)
}

func (ch *chain) constant(hint string, t *tensor.RawTensor, err error) string {
	if ch.err != nil {
		return ""
	}
	if err != nil {
		ch.err = fmt.Errorf("lowering %s: %s: %w", ch.c.Node(), hint, err)
		return ""
	}
	return ch.c.Constant(hint, t)
}

// lowerLabelEncoder maps each input value to the output of its category, or
// to default_int64 when the value is not a category.
func lowerLabelEncoder(c *Context) error {
	n := c.Node()
	if n.Has(graph.AttrValuesStrings) || n.Has(graph.AttrValuesFloats) {
		return c.Unsupported("only integer values are supported")
	}
	values := n.Ints(graph.AttrValuesInt64s)
	def := n.Int(graph.AttrDefaultInt64, -1)

	switch {
	case n.Has(graph.AttrKeysInt64s):
		return lowerIntKeys(c, n.Ints(graph.AttrKeysInt64s), values, def)
	case n.Has(graph.AttrKeysFloats):
		return lowerFloatKeys(c, n.Floats(graph.AttrKeysFloats), values, def)
	case n.Has(graph.AttrKeysStrings):
		return lowerStringKeys(c, n.Strings(graph.AttrKeysStrings), values, def)
	case n.Has(graph.AttrClassesStrings):
		return lowerStringKeys(c, n.Strings(graph.AttrClassesStrings), nil, def)
	default:
		return c.Unsupported("no category attribute")
	}
}

func lowerIntKeys(c *Context, keys, values []int64, def int64) error {
	table, err := newCategoryTable(keys)
	if err != nil {
		return c.Unsupported("%v", err)
	}

	x := c.Node().Inputs[0]
	dt, ok := c.DType(x)
	if !ok || !dt.IsInteger() {
		return c.Unsupported("integer keys need an integer input, got %s", dt)
	}

	ch := &chain{c: c}
	if dt != tensor.Int64 {
		x = ch.emit(program.OpCast, program.Attrs{To: tensor.Int64}, "x", x)
	}
	sorted, err := tensor.FromSlice(table.keys, tensor.Shape{table.Len()})
	keysName := ch.constant("keys", sorted, err)
	emitSearchSorted(ch, x, keysName, table.Len(), mappedValues(table.perm, values), def)
	return ch.err
}

func lowerFloatKeys(c *Context, keys []float32, values []int64, def int64) error {
	table, err := newCategoryTable(keys)
	if err != nil {
		return c.Unsupported("%v", err)
	}

	x := c.Node().Inputs[0]
	dt, _ := c.DType(x)

	var sorted *tensor.RawTensor
	switch dt {
	case tensor.Float32:
		sorted, err = tensor.FromSlice(table.keys, tensor.Shape{table.Len()})
	case tensor.Float64:
		wide := make([]float64, table.Len())
		for i, k := range table.keys {
			wide[i] = float64(k)
		}
		sorted, err = tensor.FromSlice(wide, tensor.Shape{table.Len()})
	default:
		return c.Unsupported("float keys need a float input, got %s", dt)
	}

	ch := &chain{c: c}
	keysName := ch.constant("keys", sorted, err)
	emitSearchSorted(ch, x, keysName, table.Len(), mappedValues(table.perm, values), def)
	return ch.err
}

// emitSearchSorted looks x up in the ascending keys. The position of x is the
// number of keys below it; the key at that position equals x exactly when x
// is a category.
func emitSearchSorted(ch *chain, x, keys string, k int, mapped []int64, def int64) {
	col := ch.emit(program.OpUnsqueeze, program.Attrs{Axis: -1}, "col", x)
	below := ch.emit(program.OpLess, program.Attrs{}, "below", keys, col)
	count := ch.emit(program.OpCast, program.Attrs{To: tensor.Int64}, "below_count", below)
	pos := ch.emit(program.OpReduceSum, program.Attrs{Axis: -1}, "pos", count)
	last := ch.constant("last", tensor.Scalar(int64(k-1)), nil)
	pos = ch.emit(program.OpMin, program.Attrs{}, "pos_clamped", pos, last)

	hit := ch.emit(program.OpGather, program.Attrs{Axis: 0}, "hit", keys, pos)
	found := ch.emit(program.OpEqual, program.Attrs{}, "found", hit, x)

	vals, err := tensor.FromSlice(mapped, tensor.Shape{len(mapped)})
	valuesName := ch.constant("values", vals, err)
	out := ch.emit(program.OpGather, program.Attrs{Axis: 0}, "mapped", valuesName, pos)

	emitSelect(ch, ch.c.Node().Outputs[0], found, out, def)
}

// emitSelect writes mapped where found holds and def elsewhere. Under the
// error policy a value that is not found fails the call instead.
func emitSelect(ch *chain, out, found, mapped string, def int64) {
	cond := found
	if ch.c.Policy() == UnknownError {
		msg := ch.c.Node().String()
		cond = ch.emit(program.OpAssertAll, program.Attrs{Message: msg}, "known", found)
	}
	dflt := ch.constant("default", tensor.Scalar(def), nil)
	ch.emitTo(out, program.OpWhere, program.Attrs{}, cond, mapped, dflt)
}

// lowerStringKeys matches fixed-width int32 codes against the category table
// chunk by chunk. Row-wise equality plus a trailing "miss" column has exactly
// one non-zero per row, so NonZero recovers each row's position.
func lowerStringKeys(c *Context, categories []string, values []int64, def int64) error {
	if err := c.Require(program.OpNonZero); err != nil {
		return err
	}

	x := c.Node().Inputs[0]
	spec, ok := c.InputSpec(x)
	if !ok {
		return c.Unsupported("string input %q must be a graph input", x)
	}

	need := strcode.Width(categories)
	width := need
	var lead []int
	switch spec.DType {
	case tensor.String:
		lead = spec.Dims
		c.Bind(x, tensor.Spec{DType: tensor.Int32, Dims: append(slices.Clone(lead), need)})
	case tensor.Int32, tensor.Int64:
		if spec.Rank() == 0 {
			return c.Unsupported("code input %q has no chunk axis", x)
		}
		lead = spec.Dims[:spec.Rank()-1]
		got := spec.Dims[spec.Rank()-1]
		if got == tensor.Unknown {
			return c.Unsupported("code input %q has a symbolic chunk axis", x)
		}
		if got < need {
			return &runtime.InputShapeMismatchError{
				Input: x,
				Want:  tensor.Spec{DType: spec.DType, Dims: append(slices.Clone(lead), need)},
				Got:   spec,
			}
		}
		width = got
	default:
		return c.Unsupported("input %q of type %s cannot hold strings", x, spec.DType)
	}

	symbolic := 0
	for _, d := range lead {
		if d == tensor.Unknown {
			symbolic++
		}
	}
	if symbolic > 1 {
		return c.Unsupported("input %q has more than one symbolic dimension", x)
	}

	table, err := strcode.NewTable(categories, width)
	if err != nil {
		return c.Unsupported("categories: %v", err)
	}
	c.Logger().V(2).Info("string category table", "node", c.Node().String(), "categories", table.Len(), "chunks", table.Width())

	ch := &chain{c: c}
	codes := x
	if spec.DType == tensor.Int64 {
		codes = ch.emit(program.OpCast, program.Attrs{To: tensor.Int32}, "codes", codes)
	}
	flat := len(lead) != 1
	if flat {
		codes = ch.emit(program.OpReshape, program.Attrs{Shape: []int{tensor.Unknown, width}}, "rows", codes)
	}

	k := table.Len()
	keys := ch.constant("categories", table.Tensor(), nil)
	probe := ch.emit(program.OpUnsqueeze, program.Attrs{Axis: -2}, "probe", codes)
	eq := ch.emit(program.OpEqual, program.Attrs{}, "chunk_eq", probe, keys)
	eqCodes := ch.emit(program.OpCast, program.Attrs{To: tensor.Int32}, "chunk_eq_i32", eq)
	rowEq := ch.emit(program.OpReduceMin, program.Attrs{Axis: -1}, "row_eq", eqCodes)
	matched := ch.emit(program.OpReduceMax, program.Attrs{Axis: -1, KeepDims: true}, "matched", rowEq)
	one := ch.constant("one", tensor.Scalar(int32(1)), nil)
	miss := ch.emit(program.OpSub, program.Attrs{}, "miss", one, matched)
	hits := ch.emit(program.OpConcat, program.Attrs{Axis: -1}, "hits", rowEq, miss)
	nz := ch.emit(program.OpNonZero, program.Attrs{}, "nonzero", hits)
	column := ch.constant("column", tensor.Scalar(int64(1)), nil)
	pos := ch.emit(program.OpGather, program.Attrs{Axis: 0}, "pos", nz, column)

	ext := append(mappedValues(table.Perm(), values), def)
	vals, err := tensor.FromSlice(ext, tensor.Shape{len(ext)})
	valuesName := ch.constant("values", vals, err)
	mapped := ch.emit(program.OpGather, program.Attrs{Axis: 0}, "mapped", valuesName, pos)
	count := ch.constant("count", tensor.Scalar(int64(k)), nil)
	found := ch.emit(program.OpLess, program.Attrs{}, "found", pos, count)

	out := c.Node().Outputs[0]
	if !flat {
		emitSelect(ch, out, found, mapped, def)
		return ch.err
	}
	rows := c.Fresh("encoded")
	emitSelect(ch, rows, found, mapped, def)
	ch.emitTo(out, program.OpReshape, program.Attrs{Shape: slices.Clone(lead)}, rows)
	return ch.err
}
