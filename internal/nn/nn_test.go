package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/born-ml/gradcam/internal/autodiff"
	"github.com/born-ml/gradcam/internal/backend/cpu"
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

type recorder struct {
	forward  map[string]*tensor.RawTensor
	backward map[string]*tensor.RawTensor
}

func newRecorder() *recorder {
	return &recorder{
		forward:  make(map[string]*tensor.RawTensor),
		backward: make(map[string]*tensor.RawTensor),
	}
}

func (r *recorder) OnForward(layer string, out *tensor.RawTensor) { r.forward[layer] = out.Clone() }
func (r *recorder) OnBackward(layer string, g *tensor.RawTensor)  { r.backward[layer] = g.Clone() }

func TestConv2D_ForwardValues(t *testing.T) {
	backend := cpu.New()
	weight := raw(t, []float32{1, 0, 0, 1}, 1, 1, 2, 2)
	bias := raw(t, []float32{0.5}, 1)
	conv := NewConv2D(weight, bias, 1, 0, backend)

	input := raw(t, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, 1, 1, 3, 3)
	output := conv.Forward(input)

	assert.Equal(t, []float32{6.5, 8.5, 12.5, 14.5}, output.Data())
	assert.Len(t, conv.Parameters(), 2)
}

func TestConv2D_InvalidInputPanics(t *testing.T) {
	backend := cpu.New()
	conv := NewConv2D(tensor.MustRaw(tensor.Shape{4, 3, 3, 3}), nil, 1, 1, backend)

	assert.Panics(t, func() { conv.Forward(tensor.MustRaw(tensor.Shape{1, 2, 8, 8})) })
	assert.Panics(t, func() { conv.Forward(tensor.MustRaw(tensor.Shape{2, 8, 8})) })
	assert.Panics(t, func() { NewConv2D(tensor.MustRaw(tensor.Shape{4, 3}), nil, 1, 1, backend) })
	assert.Panics(t, func() {
		NewConv2D(tensor.MustRaw(tensor.Shape{4, 3, 3, 3}), tensor.MustRaw(tensor.Shape{3}), 1, 1, backend)
	})
}

func TestConv2D_OutputSize(t *testing.T) {
	conv := NewConv2D(tensor.MustRaw(tensor.Shape{4, 3, 3, 3}), nil, 1, 1, cpu.New())
	assert.Equal(t, [2]int{128, 128}, conv.ComputeOutputSize(128, 128))
	assert.Equal(t, 3, conv.InChannels())
	assert.Equal(t, 4, conv.OutChannels())
}

func TestLinear_Forward(t *testing.T) {
	backend := cpu.New()
	weight := raw(t, []float32{1, 0, 0, 1, 1, 1}, 3, 2)
	bias := raw(t, []float32{10, 20, 30}, 3)
	layer := NewLinear(weight, bias, backend)

	output := layer.Forward(raw(t, []float32{1, 2}, 1, 2))

	assert.True(t, output.Shape().Equal(tensor.Shape{1, 3}))
	assert.Equal(t, []float32{11, 22, 33}, output.Data())
	assert.Equal(t, 2, layer.InFeatures())
	assert.Equal(t, 3, layer.OutFeatures())
	assert.Panics(t, func() { layer.Forward(raw(t, []float32{1, 2, 3}, 1, 3)) })
}

func TestFlattenAndDropout(t *testing.T) {
	backend := cpu.New()
	x := tensor.MustRaw(tensor.Shape{2, 4, 3, 3})

	flat := NewFlatten(backend).Forward(x)
	assert.True(t, flat.Shape().Equal(tensor.Shape{2, 36}))

	drop := NewDropout[*cpu.CPUBackend](0.5)
	assert.Same(t, x, drop.Forward(x))
	assert.Equal(t, "Dropout(p=0.5)", drop.String())
	assert.Panics(t, func() { NewDropout[*cpu.CPUBackend](1) })
}

func TestXavier_Bounds(t *testing.T) {
	w := Xavier(27, 144, tensor.Shape{16, 3, 3, 3}, rand.New(rand.NewSource(1)))
	bound := float32(math.Sqrt(6.0 / 171.0))
	for _, v := range w.Data() {
		assert.LessOrEqual(t, v, bound)
		assert.GreaterOrEqual(t, v, -bound)
	}

	again := Xavier(27, 144, tensor.Shape{16, 3, 3, 3}, rand.New(rand.NewSource(1)))
	assert.Equal(t, w.Data(), again.Data(), "same seed, same weights")
}

func buildStack[B tensor.Backend](t *testing.T, backend B) *Sequential[B] {
	t.Helper()
	rng := rand.New(rand.NewSource(3))

	stage := NewSequential(backend)
	stage.Add("conv", NewConv2D(Xavier(18, 36, tensor.Shape{4, 2, 3, 3}, rng), Zeros(tensor.Shape{4}), 1, 1, backend))
	stage.Add("relu", NewReLU(backend))
	stage.Add("pool", NewMaxPool2D(2, 2, backend))

	net := NewSequential(backend)
	net.Add("stage1", stage)
	net.Add("flatten", NewFlatten(backend))
	net.Add("fc", NewLinear(Xavier(16, 2, tensor.Shape{2, 16}, rng), Zeros(tensor.Shape{2}), backend))
	return net
}

func TestSequential_ForwardAndParameters(t *testing.T) {
	net := buildStack(t, cpu.New())

	out := net.Forward(tensor.MustRaw(tensor.Shape{1, 2, 4, 4}))

	assert.True(t, out.Shape().Equal(tensor.Shape{1, 2}))
	assert.Len(t, net.Parameters(), 4)
	assert.Equal(t, []string{"stage1", "flatten", "fc"}, net.Names())
	assert.Equal(t, 3, net.Len())
	assert.NotNil(t, net.Module("fc"))
	assert.Nil(t, net.Module("missing"))
}

func TestSequential_AddRejectsBadNames(t *testing.T) {
	net := NewSequential(cpu.New())
	net.Add("a", NewReLU(cpu.New()))

	assert.Panics(t, func() { net.Add("a", NewReLU(cpu.New())) })
	assert.Panics(t, func() { net.Add("", NewReLU(cpu.New())) })
	assert.Panics(t, func() { net.Add("x.y", NewReLU(cpu.New())) })
}

func TestSequential_AttachUnknownLayer(t *testing.T) {
	net := buildStack(t, cpu.New())

	_, err := net.Attach("stage9", newRecorder())
	require.ErrorIs(t, err, ErrUnknownLayer)

	_, err = net.Attach("fc.weight", newRecorder())
	require.ErrorIs(t, err, ErrUnknownLayer)

	_, err = net.Attach("stage1.missing", newRecorder())
	require.ErrorIs(t, err, ErrUnknownLayer)
}

func TestSequential_ObserverForwardOnlyOnPlainBackend(t *testing.T) {
	net := buildStack(t, cpu.New())
	rec := newRecorder()
	_, err := net.Attach("stage1", rec)
	require.NoError(t, err)

	net.Forward(tensor.MustRaw(tensor.Shape{1, 2, 4, 4}))

	require.Contains(t, rec.forward, "stage1")
	assert.True(t, rec.forward["stage1"].Shape().Equal(tensor.Shape{1, 4, 2, 2}))
	assert.Empty(t, rec.backward)
}

func TestSequential_ObserverReceivesGradient(t *testing.T) {
	backend := autodiff.New(cpu.New())
	net := buildStack(t, backend)
	rec := newRecorder()
	_, err := net.Attach("stage1", rec)
	require.NoError(t, err)
	_, err = net.Attach("stage1.conv", rec)
	require.NoError(t, err)

	input := tensor.MustRaw(tensor.Shape{1, 2, 4, 4})
	for i := range input.Data() {
		input.Data()[i] = float32(i%5) - 2
	}

	backend.Tape().StartRecording()
	out := net.Forward(input)
	seed := raw(t, []float32{1, 0}, 1, 2)
	backend.Backward(out, seed)

	require.Contains(t, rec.backward, "stage1")
	require.Contains(t, rec.backward, "conv")
	assert.True(t, rec.backward["stage1"].Shape().Equal(tensor.Shape{1, 4, 2, 2}))
	assert.True(t, rec.backward["conv"].Shape().Equal(tensor.Shape{1, 4, 4, 4}))
}

func TestSequential_Detach(t *testing.T) {
	net := buildStack(t, cpu.New())
	rec := newRecorder()
	detach, err := net.Attach("fc", rec)
	require.NoError(t, err)

	detach()
	detach()
	net.Forward(tensor.MustRaw(tensor.Shape{1, 2, 4, 4}))

	assert.Empty(t, rec.forward)
}
