// Package ops defines the differentiable operations recorded on a gradient tape.
//
// Each operation keeps the tensors it needs for its backward pass and
// computes input gradients from the output gradient:
//   - AddOp: element-wise addition (d(a+b)/da = 1, d(a+b)/db = 1)
//   - MulOp: element-wise multiplication (d(a*b)/da = b, d(a*b)/db = a)
//   - MatMulOp: matrix multiplication (d(A@B)/dA = grad@B^T, d(A@B)/dB = A^T@grad)
//   - TransposeOp, ReshapeOp: layout changes, inverted on the way back
//   - ReLUOp: d(ReLU(x))/dx = 1 if x > 0, else 0
//   - Conv2DOp, MaxPool2DOp: spatial layers, delegated to backend kernels
package ops

import "github.com/born-ml/gradcam/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
// Each operation records its inputs and output during the forward pass,
// and computes input gradients during the backward pass.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// Returns a slice of gradients corresponding to each input tensor.
	//
	// Example for AddOp:
	//   inputs: [a, b]
	//   outputGrad: dL/d(a+b)
	//   returns: [dL/d(a+b), dL/d(a+b)] (gradient flows equally to both inputs)
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}
