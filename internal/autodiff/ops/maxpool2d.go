package ops

import "github.com/born-ml/gradcam/internal/tensor"

// MaxPool2DOp records a max pooling operation for autodiff.
//
// Gradients flow only to the position that held the max in each pooling
// window. Ties resolve to the first position in row-major order, matching
// the forward kernel.
//
// Example (2x2 pool, stride=2):
//
//	Input:  [[1, 2],  Output: [4]  Input Grad: [[0, 0],
//	         [3, 4]]                             [0, grad]]
type MaxPool2DOp struct {
	input      *tensor.RawTensor
	output     *tensor.RawTensor
	maxIndices []int // flat input index of the max for each output element
	kernelSize int
	stride     int
}

// NewMaxPool2DOp creates a new MaxPool2D operation.
// Max positions are computed here, while the input is known to be intact.
func NewMaxPool2DOp(input, output *tensor.RawTensor, kernelSize, stride int) *MaxPool2DOp {
	return &MaxPool2DOp{
		input:      input,
		output:     output,
		maxIndices: computeMaxIndices(input, output, kernelSize, stride),
		kernelSize: kernelSize,
		stride:     stride,
	}
}

// computeMaxIndices finds which input position had max value for each output position.
func computeMaxIndices(input, output *tensor.RawTensor, kernelSize, stride int) []int {
	inputShape := input.Shape()
	outputShape := output.Shape()

	N, C, H, W := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	HOut, WOut := outputShape[2], outputShape[3]

	maxIndices := make([]int, N*C*HOut*WOut)
	inputData := input.Data()

	outIdx := 0
	for plane := 0; plane < N*C; plane++ {
		base := plane * H * W
		for outH := 0; outH < HOut; outH++ {
			for outW := 0; outW < WOut; outW++ {
				hStart, wStart := outH*stride, outW*stride

				maxPos := base + hStart*W + wStart
				maxVal := inputData[maxPos]
				for kh := 0; kh < kernelSize; kh++ {
					for kw := 0; kw < kernelSize; kw++ {
						idx := base + (hStart+kh)*W + wStart + kw
						if inputData[idx] > maxVal {
							maxVal = inputData[idx]
							maxPos = idx
						}
					}
				}

				maxIndices[outIdx] = maxPos
				outIdx++
			}
		}
	}

	return maxIndices
}

// Inputs returns the input tensors.
func (op *MaxPool2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *MaxPool2DOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward routes the output gradient to the recorded max positions.
func (op *MaxPool2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inputGrad := backend.MaxPool2DBackward(op.input, outputGrad, op.maxIndices, op.kernelSize, op.stride)
	return []*tensor.RawTensor{inputGrad}
}
