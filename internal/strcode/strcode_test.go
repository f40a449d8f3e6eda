package strcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/mlconvert/internal/tensor"
)

func TestNewPadsToWidth(t *testing.T) {
	f, err := New("paris", 3)
	require.NoError(t, err)

	require.Len(t, f, 3)
	assert.Equal(t, Chunk{'p', 'a', 'r', 'i'}, f[0])
	assert.Equal(t, Chunk{'s', 0, 0, 0}, f[1])
	assert.Equal(t, Chunk{}, f[2])
	assert.Equal(t, "paris", f.String())
}

func TestChunkCodeIsLittleEndian(t *testing.T) {
	c := Chunk{'a', 0, 0, 0}
	assert.Equal(t, int32('a'), c.Code())

	c = Chunk{0, 0, 0, 1}
	assert.Equal(t, int32(1<<24), c.Code())
}

func TestNewRejects(t *testing.T) {
	_, err := New("amsterdam", 2)
	assert.ErrorIs(t, err, ErrTooLong)

	_, err = New("a\x00b", 2)
	assert.ErrorIs(t, err, ErrNulByte)
}

func TestChunksFor(t *testing.T) {
	assert.Equal(t, 1, ChunksFor(""))
	assert.Equal(t, 1, ChunksFor("abcd"))
	assert.Equal(t, 2, ChunksFor("abcde"))
	assert.Equal(t, 3, ChunksFor("amsterdam"))
	assert.Equal(t, 3, Width([]string{"paris", "milan", "amsterdam", "tokyo"}))
}

func TestEqualAndCompare(t *testing.T) {
	a, _ := New("milan", 3)
	b, _ := New("milan", 3)
	c, _ := New("mila", 3)
	d, _ := New("milan", 2)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(d))
	assert.Positive(t, a.Compare(c))
	assert.Negative(t, c.Compare(a))
	assert.Zero(t, a.Compare(b))
}

func TestEncode(t *testing.T) {
	raw, err := Encode([]string{"ab", "abcde"}, 2)
	require.NoError(t, err)

	assert.Equal(t, tensor.Int32, raw.DType())
	assert.Equal(t, tensor.Shape{2, 2}, raw.Shape())
	ab, _ := New("ab", 2)
	abcde, _ := New("abcde", 2)
	assert.Equal(t, append(ab.Codes(), abcde.Codes()...), raw.AsInt32())

	_, err = Encode([]string{"abcdefghi"}, 2)
	assert.ErrorIs(t, err, ErrTooLong)
}

func TestTableSortsOnce(t *testing.T) {
	table, err := NewTable([]string{"paris", "milan", "amsterdam", "tokyo"}, 1)
	require.NoError(t, err)

	assert.Equal(t, 4, table.Len())
	assert.Equal(t, 3, table.Width())
	assert.Equal(t, []int{2, 1, 0, 3}, table.Perm())

	want, err := Encode([]string{"amsterdam", "milan", "paris", "tokyo"}, 3)
	require.NoError(t, err)
	assert.Equal(t, want.AsInt32(), table.Tensor().AsInt32())
}

func TestTableWidthGrowsToRequested(t *testing.T) {
	table, err := NewTable([]string{"b", "a"}, 4)
	require.NoError(t, err)

	raw := table.Tensor()
	assert.Equal(t, tensor.Shape{2, 4}, raw.Shape())
	a, _ := New("a", 4)
	assert.Equal(t, a.Codes(), raw.AsInt32()[0:4])
}

func TestTableRejectsDuplicates(t *testing.T) {
	_, err := NewTable([]string{"x", "y", "x"}, 1)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestTablePermIsACopy(t *testing.T) {
	table, err := NewTable([]string{"b", "a"}, 1)
	require.NoError(t, err)

	perm := table.Perm()
	perm[0] = 99
	assert.Equal(t, []int{1, 0}, table.Perm())
}
