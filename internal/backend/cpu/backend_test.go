package cpu

import (
	"testing"

	"github.com/born-ml/gradcam/internal/parallel"
	"github.com/born-ml/gradcam/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw(t *testing.T, data []float32, shape ...int) *tensor.RawTensor {
	t.Helper()
	x, err := tensor.FromSlice(data, tensor.Shape(shape))
	require.NoError(t, err)
	return x
}

func TestAdd_SameShape(t *testing.T) {
	backend := New()
	a := raw(t, []float32{1, 2, 3}, 3)
	b := raw(t, []float32{10, 20, 30}, 3)

	out := backend.Add(a, b)

	assert.Equal(t, []float32{11, 22, 33}, out.Data())
	assert.Equal(t, []float32{1, 2, 3}, a.Data(), "inputs must not be modified")
}

func TestAdd_BiasBroadcast(t *testing.T) {
	backend := New()
	// [1, 2, 2, 2] + [1, 2, 1, 1]
	x := raw(t, []float32{1, 1, 1, 1, 2, 2, 2, 2}, 1, 2, 2, 2)
	bias := raw(t, []float32{10, 100}, 1, 2, 1, 1)

	out := backend.Add(x, bias)

	assert.True(t, out.Shape().Equal(tensor.Shape{1, 2, 2, 2}))
	assert.Equal(t, []float32{11, 11, 11, 11, 102, 102, 102, 102}, out.Data())
}

func TestMul_Broadcast(t *testing.T) {
	backend := New()
	x := raw(t, []float32{1, 2, 3, 4}, 2, 2)
	s := raw(t, []float32{2, 3}, 2)

	out := backend.Mul(x, s)

	assert.Equal(t, []float32{2, 6, 6, 12}, out.Data())
}

func TestMatMul(t *testing.T) {
	backend := New()
	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b := raw(t, []float32{7, 8, 9, 10, 11, 12}, 3, 2)

	out := backend.MatMul(a, b)

	assert.True(t, out.Shape().Equal(tensor.Shape{2, 2}))
	assert.Equal(t, []float32{58, 64, 139, 154}, out.Data())
	assert.Panics(t, func() { backend.MatMul(a, a) })
}

func TestTranspose(t *testing.T) {
	backend := New()
	x := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)

	out := backend.Transpose(x)

	assert.True(t, out.Shape().Equal(tensor.Shape{3, 2}))
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, out.Data())
}

func TestReLU(t *testing.T) {
	backend := New()
	x := raw(t, []float32{-2, -0.5, 0, 0.5, 3}, 5)

	assert.Equal(t, []float32{0, 0, 0, 0.5, 3}, backend.ReLU(x).Data())
}

func TestSumDim(t *testing.T) {
	backend := New()
	x := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)

	keep := backend.SumDim(x, 0, true)
	assert.True(t, keep.Shape().Equal(tensor.Shape{1, 3}))
	assert.Equal(t, []float32{5, 7, 9}, keep.Data())

	drop := backend.SumDim(x, 1, false)
	assert.True(t, drop.Shape().Equal(tensor.Shape{2}))
	assert.Equal(t, []float32{6, 15}, drop.Data())
}

func TestReshape_SharesBuffer(t *testing.T) {
	backend := New()
	x := raw(t, []float32{1, 2, 3, 4}, 1, 1, 2, 2)

	out := backend.Reshape(x, tensor.Shape{1, 4})

	assert.True(t, out.Shape().Equal(tensor.Shape{1, 4}))
	assert.Equal(t, x.Data(), out.Data())
	assert.Panics(t, func() { backend.Reshape(x, tensor.Shape{3}) })
}

func TestMaxPool2D(t *testing.T) {
	backend := New()
	data := make([]float32, 16)
	for i := range data {
		data[i] = float32(i + 1)
	}
	x := raw(t, data, 1, 1, 4, 4)

	out := backend.MaxPool2D(x, 2, 2)

	assert.True(t, out.Shape().Equal(tensor.Shape{1, 1, 2, 2}))
	assert.Equal(t, []float32{6, 8, 14, 16}, out.Data())
}

func TestMaxPool2DBackward_RoutesToMax(t *testing.T) {
	backend := New()
	x := raw(t, []float32{1, 2, 3, 4}, 1, 1, 2, 2)
	grad := raw(t, []float32{5}, 1, 1, 1, 1)

	inputGrad := backend.MaxPool2DBackward(x, grad, []int{3}, 2, 2)

	assert.Equal(t, []float32{0, 0, 0, 5}, inputGrad.Data())
}

func TestParallelMatchesSequential(t *testing.T) {
	seq := NewWithConfig(parallel.Config{Enabled: false})
	par := NewWithConfig(parallel.DefaultConfig().WithWorkers(4))

	input := tensor.MustRaw(tensor.Shape{1, 3, 9, 9})
	for i := range input.Data() {
		input.Data()[i] = float32(i%7) - 3
	}
	kernel := tensor.MustRaw(tensor.Shape{8, 3, 3, 3})
	for i := range kernel.Data() {
		kernel.Data()[i] = float32(i%5) * 0.1
	}

	assert.Equal(t, seq.Conv2D(input, kernel, 1, 1).Data(), par.Conv2D(input, kernel, 1, 1).Data())

	grad := tensor.MustRaw(tensor.Shape{1, 8, 9, 9})
	for i := range grad.Data() {
		grad.Data()[i] = float32(i%3) - 1
	}
	assert.Equal(t,
		seq.Conv2DInputBackward(input, kernel, grad, 1, 1).Data(),
		par.Conv2DInputBackward(input, kernel, grad, 1, 1).Data())
	assert.Equal(t,
		seq.Conv2DKernelBackward(input, kernel, grad, 1, 1).Data(),
		par.Conv2DKernelBackward(input, kernel, grad, 1, 1).Data())
}
