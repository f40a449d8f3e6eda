// Package cpu implements the tensor runtime kernels in pure Go.
package cpu

import (
	"fmt"

	"github.com/born-ml/mlconvert/internal/tensor"
)

// CPUBackend implements tensor.Backend on the host CPU.
// It holds no mutable state and is safe for concurrent use.
type CPUBackend struct {
	device tensor.Device
}

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// newResult allocates an output tensor or panics with the op name.
func (cpu *CPUBackend) newResult(op string, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	result, err := tensor.NewRaw(shape, dtype, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}
	return result
}

// Reshape returns a read-only view of t with a new shape.
// A single Unknown (-1) dimension is inferred from the element count.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	shape := newShape.Clone()
	infer := -1
	known := 1
	for i, d := range shape {
		if d == tensor.Unknown {
			if infer >= 0 {
				panic("reshape: more than one inferred dimension")
			}
			infer = i
			continue
		}
		known *= d
	}
	if infer >= 0 {
		if known == 0 || t.NumElements()%known != 0 {
			panic(fmt.Sprintf("reshape: cannot infer dimension of %v for %d elements", newShape, t.NumElements()))
		}
		shape[infer] = t.NumElements() / known
	}

	view, err := t.View(shape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return view
}

// Unsqueeze adds a dimension of size 1 at the specified position.
//
// Supports negative dim indexing: -1 appends a trailing axis.
//
// Example:
//
//	x with shape [6]
//	y := backend.Unsqueeze(x, -1)  // Shape: [6, 1]
func (cpu *CPUBackend) Unsqueeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)

	// Normalize negative dimension (for unsqueeze, valid range is [0, ndim])
	if dim < 0 {
		dim = ndim + 1 + dim
	}
	if dim < 0 || dim > ndim {
		panic(fmt.Sprintf("unsqueeze: dimension %d out of range for %dD tensor (valid: [0, %d])", dim, ndim, ndim))
	}

	newShape := make(tensor.Shape, 0, ndim+1)
	newShape = append(newShape, shape[:dim]...)
	newShape = append(newShape, 1)
	newShape = append(newShape, shape[dim:]...)

	return cpu.Reshape(x, newShape)
}

// Squeeze removes a dimension of size 1 at the specified position.
//
// Panics if the dimension size is not 1.
func (cpu *CPUBackend) Squeeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	dim, err := tensor.NormalizeAxis(dim, len(shape))
	if err != nil {
		panic(fmt.Sprintf("squeeze: %v", err))
	}
	if shape[dim] != 1 {
		panic(fmt.Sprintf("squeeze: dimension %d has size %d, must be 1", dim, shape[dim]))
	}

	newShape := make(tensor.Shape, 0, len(shape)-1)
	newShape = append(newShape, shape[:dim]...)
	newShape = append(newShape, shape[dim+1:]...)

	return cpu.Reshape(x, newShape)
}
