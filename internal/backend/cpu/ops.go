package cpu

import (
	"fmt"

	"github.com/born-ml/gradcam/internal/tensor"
)

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return binaryBroadcast("add", a, b, func(x, y float32) float32 { return x + y })
}

// Mul performs element-wise multiplication with NumPy-style broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return binaryBroadcast("mul", a, b, func(x, y float32) float32 { return x * y })
}

// binaryBroadcast applies f over the broadcast shape of a and b.
func binaryBroadcast(name string, a, b *tensor.RawTensor, f func(x, y float32) float32) *tensor.RawTensor {
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	result := tensor.MustRaw(outShape)
	out := result.Data()
	aData, bData := a.Data(), b.Data()

	// Fast path: same shape, no index mapping needed
	if !needsBroadcast {
		for i := range out {
			out[i] = f(aData[i], bData[i])
		}
		return result
	}

	aStrides := broadcastStrides(a.Shape(), outShape)
	bStrides := broadcastStrides(b.Shape(), outShape)
	outStrides := outShape.ComputeStrides()

	for i := range out {
		aIdx, bIdx, rem := 0, 0, i
		for d, stride := range outStrides {
			coord := rem / stride
			rem %= stride
			aIdx += coord * aStrides[d]
			bIdx += coord * bStrides[d]
		}
		out[i] = f(aData[aIdx], bData[bIdx])
	}
	return result
}

// broadcastStrides returns strides of shape aligned to outShape, with zero
// stride on broadcast dimensions.
func broadcastStrides(shape, outShape tensor.Shape) []int {
	strides := make([]int, len(outShape))
	own := shape.ComputeStrides()
	offset := len(outShape) - len(shape)
	for d := range outShape {
		src := d - offset
		if src < 0 || shape[src] == 1 {
			continue
		}
		strides[d] = own[src]
	}
	return strides
}

// MatMul performs matrix multiplication.
// For 2D tensors: (M, K) @ (K, N) -> (M, N)
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()

	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: only 2D tensors supported, got %dD and %dD", len(aShape), len(bShape)))
	}

	m, k := aShape[0], aShape[1]
	kAlt, n := bShape[0], bShape[1]
	if k != kAlt {
		panic(fmt.Sprintf("matmul: shape mismatch [%d,%d] @ [%d,%d]", m, k, kAlt, n))
	}

	result := tensor.MustRaw(tensor.Shape{m, n})
	c, aData, bData := result.Data(), a.Data(), b.Data()

	// i-k-j loop order keeps the inner loop on contiguous rows of b and c
	for i := 0; i < m; i++ {
		cRow := c[i*n : (i+1)*n]
		for p := 0; p < k; p++ {
			av := aData[i*k+p]
			if av == 0 {
				continue
			}
			bRow := bData[p*n : (p+1)*n]
			for j := range cRow {
				cRow[j] += av * bRow[j]
			}
		}
	}
	return result
}

// Transpose swaps the two axes of a 2D tensor. Axes default to (1, 0).
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("transpose: only 2D tensors supported, got %dD", len(shape)))
	}
	if len(axes) != 0 && !(len(axes) == 2 && axes[0] == 1 && axes[1] == 0) {
		panic(fmt.Sprintf("transpose: unsupported axes %v for 2D tensor", axes))
	}

	rows, cols := shape[0], shape[1]
	result := tensor.MustRaw(tensor.Shape{cols, rows})
	src, dst := t.Data(), result.Data()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			dst[c*rows+r] = src[r*cols+c]
		}
	}
	return result
}

// Reshape returns a view of t with a new shape. The buffer is shared, which
// is safe because no backend operation writes into its inputs.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	view, err := t.View(newShape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return view
}

// ReLU computes max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	result := tensor.MustRaw(x.Shape())
	out := result.Data()
	for i, v := range x.Data() {
		if v > 0 {
			out[i] = v
		}
	}
	return result
}

// SumDim sums x along dim.
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	shape := x.Shape()
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("sumdim: invalid dimension %d for shape %v", dim, shape))
	}

	outer := 1
	for _, d := range shape[:dim] {
		outer *= d
	}
	inner := 1
	for _, d := range shape[dim+1:] {
		inner *= d
	}
	size := shape[dim]

	var outShape tensor.Shape
	if keepDim {
		outShape = shape.Clone()
		outShape[dim] = 1
	} else {
		outShape = append(shape[:dim:dim], shape[dim+1:]...)
	}
	if len(outShape) == 0 {
		outShape = tensor.Shape{1}
	}

	result := tensor.MustRaw(outShape)
	src, dst := x.Data(), result.Data()
	for o := 0; o < outer; o++ {
		for s := 0; s < size; s++ {
			base := (o*size + s) * inner
			for i := 0; i < inner; i++ {
				dst[o*inner+i] += src[base+i]
			}
		}
	}
	return result
}
