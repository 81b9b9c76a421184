package cpu

import (
	"github.com/born-ml/gradcam/internal/parallel"
	"github.com/born-ml/gradcam/internal/tensor"
)

// Conv2DInputBackward computes the gradient w.r.t. the convolution input
// (transposed convolution).
//
// For each output gradient position (n, c_out, h_out, w_out), the value is
// distributed to every input position of its receptive field weighted by the
// matching kernel entry. Work is split over input channels so each worker
// owns a disjoint slice of the result.
//
// References:
//   - "A guide to convolution arithmetic for deep learning" (Dumoulin & Visin, 2016)
func (cpu *CPUBackend) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()
	gradShape := grad.Shape()

	N, CIn, H, W := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	COut, KH, KW := kernelShape[0], kernelShape[2], kernelShape[3]
	HOut, WOut := gradShape[2], gradShape[3]

	inputGrad := tensor.MustRaw(inputShape)
	inputGradData := inputGrad.Data()
	gradData := grad.Data()
	kernelData := kernel.Data()

	parallel.For(CIn, func(cIn int) {
		for n := 0; n < N; n++ {
			dst := inputGradData[(n*CIn+cIn)*H*W : (n*CIn+cIn+1)*H*W]
			for cOut := 0; cOut < COut; cOut++ {
				gradPlane := gradData[(n*COut+cOut)*HOut*WOut : (n*COut+cOut+1)*HOut*WOut]
				kOffset := (cOut*CIn + cIn) * KH * KW
				kPlane := kernelData[kOffset : kOffset+KH*KW]

				for outH := 0; outH < HOut; outH++ {
					for outW := 0; outW < WOut; outW++ {
						gradVal := gradPlane[outH*WOut+outW]
						if gradVal == 0 {
							continue
						}
						for kh := 0; kh < KH; kh++ {
							h := outH*stride - padding + kh
							if h < 0 || h >= H {
								continue
							}
							for kw := 0; kw < KW; kw++ {
								w := outW*stride - padding + kw
								if w < 0 || w >= W {
									continue
								}
								dst[h*W+w] += gradVal * kPlane[kh*KW+kw]
							}
						}
					}
				}
			}
		}
	}, cpu.parallel)

	return inputGrad
}

// Conv2DKernelBackward computes the gradient w.r.t. the kernel.
//
// Each kernel weight (c_out, c_in, kh, kw) accumulates
// input[n, c_in, h, w] * grad[n, c_out, h_out, w_out] over all batch samples
// and output positions, where h = h_out*stride - padding + kh.
func (cpu *CPUBackend) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()
	gradShape := grad.Shape()

	N, CIn, H, W := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	COut, KH, KW := kernelShape[0], kernelShape[2], kernelShape[3]
	HOut, WOut := gradShape[2], gradShape[3]

	kernelGrad := tensor.MustRaw(kernelShape)
	kernelGradData := kernelGrad.Data()
	gradData := grad.Data()
	inputData := input.Data()

	parallel.For(COut, func(cOut int) {
		for cIn := 0; cIn < CIn; cIn++ {
			for kh := 0; kh < KH; kh++ {
				for kw := 0; kw < KW; kw++ {
					var sum float32
					for n := 0; n < N; n++ {
						gradPlane := gradData[(n*COut+cOut)*HOut*WOut:]
						inPlane := inputData[(n*CIn+cIn)*H*W:]
						for outH := 0; outH < HOut; outH++ {
							h := outH*stride - padding + kh
							if h < 0 || h >= H {
								continue
							}
							for outW := 0; outW < WOut; outW++ {
								w := outW*stride - padding + kw
								if w < 0 || w >= W {
									continue
								}
								sum += inPlane[h*W+w] * gradPlane[outH*WOut+outW]
							}
						}
					}
					kernelGradData[((cOut*CIn+cIn)*KH+kh)*KW+kw] = sum
				}
			}
		}
	}, cpu.parallel)

	return kernelGrad
}
