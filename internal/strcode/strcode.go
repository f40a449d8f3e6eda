// Package strcode represents strings as fixed-width rows of int32 chunk codes
// so they can be compared by tensor kernels that have no string type.
//
// A string is split into ChunkSize-byte chunks, zero padded to a fixed chunk
// count, and each chunk is read as a little-endian int32. Two strings of the
// same width are equal exactly when all their chunk codes are equal, and the
// byte order of the padded chunks matches Go string order.
package strcode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/born-ml/mlconvert/internal/tensor"
)

// ChunkSize is the number of bytes per chunk code.
const ChunkSize = 4

var (
	// ErrTooLong indicates a string that does not fit the requested width.
	ErrTooLong = errors.New("string exceeds fixed width")

	// ErrNulByte indicates a string containing a zero byte, which padding
	// could not be told apart from.
	ErrNulByte = errors.New("string contains a NUL byte")

	// ErrDuplicate indicates a category that appears more than once.
	ErrDuplicate = errors.New("duplicate category")
)

// Chunk is one fixed-size slice of a string's bytes.
type Chunk [ChunkSize]byte

// Code returns the chunk read as a little-endian int32.
func (c Chunk) Code() int32 {
	return int32(binary.LittleEndian.Uint32(c[:])) //nolint:gosec // G115: bit reinterpretation.
}

// FixedString is a string zero padded to a whole number of chunks.
type FixedString []Chunk

// ChunksFor returns the number of chunks needed to hold s (at least one).
func ChunksFor(s string) int {
	return max(1, (len(s)+ChunkSize-1)/ChunkSize)
}

// New pads s to width chunks. It never truncates.
func New(s string, width int) (FixedString, error) {
	if strings.IndexByte(s, 0) >= 0 {
		return nil, fmt.Errorf("%w: %q", ErrNulByte, s)
	}
	if len(s) > width*ChunkSize {
		return nil, fmt.Errorf("%w: %q needs %d chunks, width is %d", ErrTooLong, s, ChunksFor(s), width)
	}
	f := make(FixedString, width)
	for i := range f {
		lo := i * ChunkSize
		if lo >= len(s) {
			break
		}
		copy(f[i][:], s[lo:min(lo+ChunkSize, len(s))])
	}
	return f, nil
}

// Equal reports chunk-wise equality. Strings of different widths are never equal.
func (f FixedString) Equal(other FixedString) bool {
	if len(f) != len(other) {
		return false
	}
	for i := range f {
		if f[i] != other[i] {
			return false
		}
	}
	return true
}

// Compare orders two fixed strings of the same width bytewise.
func (f FixedString) Compare(other FixedString) int {
	for i := 0; i < len(f) && i < len(other); i++ {
		if c := bytes.Compare(f[i][:], other[i][:]); c != 0 {
			return c
		}
	}
	return len(f) - len(other)
}

// Codes returns the chunk codes.
func (f FixedString) Codes() []int32 {
	codes := make([]int32, len(f))
	for i, c := range f {
		codes[i] = c.Code()
	}
	return codes
}

// String returns the original string without padding.
func (f FixedString) String() string {
	var b strings.Builder
	for _, c := range f {
		b.Write(c[:])
	}
	return strings.TrimRight(b.String(), "\x00")
}

// Encode converts strings to an int32 tensor of shape [len(values), width].
func Encode(values []string, width int) (*tensor.RawTensor, error) {
	codes := make([]int32, 0, len(values)*width)
	for _, s := range values {
		f, err := New(s, width)
		if err != nil {
			return nil, err
		}
		codes = append(codes, f.Codes()...)
	}
	return tensor.FromSlice(codes, tensor.Shape{len(values), width})
}

// Width returns the chunk count needed by the longest string.
func Width(values []string) int {
	width := 1
	for _, s := range values {
		width = max(width, ChunksFor(s))
	}
	return width
}
