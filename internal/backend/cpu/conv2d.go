package cpu

import (
	"fmt"

	"github.com/born-ml/gradcam/internal/parallel"
	"github.com/born-ml/gradcam/internal/tensor"
)

// Conv2D performs 2D convolution using the im2col algorithm.
//
// Input shape:  [N, C_in, H, W]
// Kernel shape: [C_out, C_in, K_h, K_w]
// Output shape: [N, C_out, H_out, W_out]
//
// where H_out = (H + 2*padding - K_h)/stride + 1 (same for W).
//
// Algorithm:
//  1. Im2col: transform input patches into rows of a column matrix
//  2. Multiply each kernel row with every patch row, one output channel
//     per parallel work item
//  3. Write results directly in [N, C_out, H_out, W_out] order
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()

	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,C,H,W], got %dD", len(inputShape)))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [C_out,C_in,K_h,K_w], got %dD", len(kernelShape)))
	}

	N, CIn, H, W := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	COut, CInK, KH, KW := kernelShape[0], kernelShape[1], kernelShape[2], kernelShape[3]

	if CIn != CInK {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d", CIn, CInK))
	}
	if stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid stride=%d padding=%d", stride, padding))
	}

	HOut := (H+2*padding-KH)/stride + 1
	WOut := (W+2*padding-KW)/stride + 1
	if HOut <= 0 || WOut <= 0 {
		panic(fmt.Sprintf("conv2d: invalid output dimensions: out_h=%d, out_w=%d (check stride/padding)", HOut, WOut))
	}

	output := tensor.MustRaw(tensor.Shape{N, COut, HOut, WOut})

	colWidth := CIn * KH * KW
	spatial := HOut * WOut
	colBuf := make([]float32, N*spatial*colWidth)
	im2col(colBuf, input.Data(), N, CIn, H, W, KH, KW, HOut, WOut, stride, padding)

	kernelData := kernel.Data()
	outputData := output.Data()

	parallel.For(COut, func(c int) {
		kRow := kernelData[c*colWidth : (c+1)*colWidth]
		for n := 0; n < N; n++ {
			dst := outputData[(n*COut+c)*spatial : (n*COut+c+1)*spatial]
			cols := colBuf[n*spatial*colWidth : (n+1)*spatial*colWidth]
			for j := range dst {
				patch := cols[j*colWidth : (j+1)*colWidth]
				var sum float32
				for k, kv := range kRow {
					sum += kv * patch[k]
				}
				dst[j] = sum
			}
		}
	}, cpu.parallel)

	return output
}

// im2col transforms the input tensor into a column matrix.
//
// Input:  [N, C, H, W]
// Output: colBuf [N * H_out * W_out, C * K_h * K_w]
//
// Each row of colBuf holds the flattened receptive field of one output
// position; out-of-bounds (padding) positions are zero.
func im2col(colBuf, inputData []float32, N, C, H, W, KH, KW, HOut, WOut, stride, padding int) {
	colWidth := C * KH * KW
	colIdx := 0

	for n := 0; n < N; n++ {
		for outH := 0; outH < HOut; outH++ {
			for outW := 0; outW < WOut; outW++ {
				hStart := outH*stride - padding
				wStart := outW*stride - padding
				bufIdx := colIdx * colWidth

				for c := 0; c < C; c++ {
					for kh := 0; kh < KH; kh++ {
						h := hStart + kh
						for kw := 0; kw < KW; kw++ {
							w := wStart + kw
							if h >= 0 && h < H && w >= 0 && w < W {
								colBuf[bufIdx] = inputData[((n*C+c)*H+h)*W+w]
							} else {
								colBuf[bufIdx] = 0
							}
							bufIdx++
						}
					}
				}
				colIdx++
			}
		}
	}
}
