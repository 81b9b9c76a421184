package tensor

// Backend defines the interface that compute backends implement.
// Backends handle the actual computation for tensor operations and panic on
// shape violations; callers validate shapes at configuration time.
//
// Implementations:
//   - cpu.CPUBackend: pure Go kernels
//   - autodiff.AutodiffBackend: decorator recording operations for backward passes
type Backend interface {
	// Element-wise binary operations with NumPy-style broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor

	// Matrix operations (2D).
	MatMul(a, b *RawTensor) *RawTensor

	// Shape operations.
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor

	// Activations.
	ReLU(x *RawTensor) *RawTensor

	// Reductions.
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor

	// Convolutional operations.
	Conv2D(input, kernel *RawTensor, stride, padding int) *RawTensor
	MaxPool2D(input *RawTensor, kernelSize, stride int) *RawTensor

	// Backward kernels used by autodiff operations.
	Conv2DInputBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor
	Conv2DKernelBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor
	MaxPool2DBackward(input, grad *RawTensor, maxIndices []int, kernelSize, stride int) *RawTensor

	// Metadata
	Name() string
}
