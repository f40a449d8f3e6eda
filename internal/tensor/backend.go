package tensor

// Backend defines the kernels a tensor program needs from a compute runtime.
//
// Kernels never write into their inputs and report misuse (dtype or shape
// errors) by panicking; the runtime executor converts those panics into
// per-call errors.
type Backend interface {
	// Element-wise arithmetic with NumPy-style broadcasting (same dtype).
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Min(a, b *RawTensor) *RawTensor

	// Comparison operations (element-wise, return bool tensor)
	Equal(a, b *RawTensor) *RawTensor   // a == b
	Less(a, b *RawTensor) *RawTensor    // a < b
	Greater(a, b *RawTensor) *RawTensor // a > b

	// Boolean operations (element-wise on bool tensors)
	And(a, b *RawTensor) *RawTensor
	Or(a, b *RawTensor) *RawTensor
	Not(x *RawTensor) *RawTensor

	// Reductions along one axis
	ReduceSum(x *RawTensor, axis int, keepDim bool) *RawTensor
	ReduceMin(x *RawTensor, axis int, keepDim bool) *RawTensor
	ReduceMax(x *RawTensor, axis int, keepDim bool) *RawTensor
	Argmax(x *RawTensor, axis int, keepDim bool) *RawTensor // int64 indices

	// Indexing operations
	Gather(x *RawTensor, axis int, index *RawTensor) *RawTensor
	Where(condition, x, y *RawTensor) *RawTensor
	NonZero(x *RawTensor) *RawTensor // int64 [rank, count]

	// Shape operations
	Concat(tensors []*RawTensor, axis int) *RawTensor
	Reshape(x *RawTensor, shape Shape) *RawTensor
	Unsqueeze(x *RawTensor, axis int) *RawTensor
	Squeeze(x *RawTensor, axis int) *RawTensor

	// Type conversion
	Cast(x *RawTensor, dtype DataType) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
