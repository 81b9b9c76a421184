package ops

import "github.com/born-ml/gradcam/internal/tensor"

// TransposeOp represents a 2D transpose.
//
// Swapping two axes is its own inverse, so the backward pass transposes the
// output gradient again.
type TransposeOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewTransposeOp creates a new TransposeOp.
func NewTransposeOp(input, output *tensor.RawTensor) *TransposeOp {
	return &TransposeOp{
		input:  input,
		output: output,
	}
}

// Backward computes input gradient for transpose.
func (op *TransposeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Transpose(outputGrad, 1, 0)}
}

// Inputs returns the input tensors.
func (op *TransposeOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *TransposeOp) Output() *tensor.RawTensor {
	return op.output
}
