package cpu

import (
	"fmt"

	"github.com/born-ml/gradcam/internal/tensor"
)

// MaxPool2D performs 2D max pooling.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
//
// where out_height = (height - kernelSize)/stride + 1 (same for width).
//
// Example (2x2 pool, stride=2):
//
//	Input: [[1,2,3,4],    Output: [[6,8],
//	        [5,6,7,8],             [14,16]]
//	        [9,10,11,12],
//	        [13,14,15,16]]
func (cpu *CPUBackend) MaxPool2D(input *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("maxpool2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}

	N, C, H, W := inputShape[0], inputShape[1], inputShape[2], inputShape[3]

	if kernelSize <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid stride %d", stride))
	}
	if kernelSize > H || kernelSize > W {
		panic(fmt.Sprintf("maxpool2d: kernel size %d too large for input %dx%d", kernelSize, H, W))
	}

	HOut := (H-kernelSize)/stride + 1
	WOut := (W-kernelSize)/stride + 1

	output := tensor.MustRaw(tensor.Shape{N, C, HOut, WOut})
	src, dst := input.Data(), output.Data()

	outIdx := 0
	for plane := 0; plane < N*C; plane++ {
		base := plane * H * W
		for outH := 0; outH < HOut; outH++ {
			for outW := 0; outW < WOut; outW++ {
				hStart, wStart := outH*stride, outW*stride
				maxVal := src[base+hStart*W+wStart]
				for kh := 0; kh < kernelSize; kh++ {
					for kw := 0; kw < kernelSize; kw++ {
						if v := src[base+(hStart+kh)*W+wStart+kw]; v > maxVal {
							maxVal = v
						}
					}
				}
				dst[outIdx] = maxVal
				outIdx++
			}
		}
	}

	return output
}

// MaxPool2DBackward routes gradients to the max positions recorded during
// the forward pass. Every other position in a pooling window receives zero.
//
// maxIndices holds, for each output element, the flat input index of its max.
func (cpu *CPUBackend) MaxPool2DBackward(input, grad *tensor.RawTensor, maxIndices []int, kernelSize, stride int) *tensor.RawTensor {
	gradData := grad.Data()
	if len(maxIndices) != len(gradData) {
		panic(fmt.Sprintf("MaxPool2DBackward: maxIndices length %d != expected %d", len(maxIndices), len(gradData)))
	}

	inputGrad := tensor.MustRaw(input.Shape())
	inputGradData := inputGrad.Data()
	for i, g := range gradData {
		inputGradData[maxIndices[i]] += g
	}
	return inputGrad
}
