package ops

import "github.com/born-ml/gradcam/internal/tensor"

// ReLUOp represents a ReLU activation: output = max(0, x).
//
// The gradient is the output gradient multiplied by a mask that is 1 where
// the input was positive and 0 elsewhere.
type ReLUOp struct {
	input  *tensor.RawTensor // x
	output *tensor.RawTensor // max(0, x)
}

// NewReLUOp creates a new ReLUOp.
func NewReLUOp(input, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{
		input:  input,
		output: output,
	}
}

// Backward computes input gradient for ReLU.
func (op *ReLUOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	mask := tensor.MustRaw(op.input.Shape())
	maskData := mask.Data()
	for i, v := range op.input.Data() {
		if v > 0 {
			maskData[i] = 1
		}
	}

	return []*tensor.RawTensor{backend.Mul(outputGrad, mask)}
}

// Inputs returns the input tensor [x].
func (op *ReLUOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor max(0, x).
func (op *ReLUOp) Output() *tensor.RawTensor {
	return op.output
}
