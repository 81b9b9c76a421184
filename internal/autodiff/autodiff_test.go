package autodiff

import (
	"testing"

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

func ones(shape ...int) *tensor.RawTensor {
	x, _ := tensor.Full(tensor.Shape(shape), 1)
	return x
}

func TestAutodiffBackend_Name(t *testing.T) {
	backend := New(cpu.New())
	assert.Equal(t, "Autodiff(CPU)", backend.Name())
}

func TestAutodiffBackend_RecordsOnlyWhenRecording(t *testing.T) {
	backend := New(cpu.New())
	x := raw(t, []float32{1, 2}, 2)

	backend.Add(x, x)
	assert.Equal(t, 0, backend.Tape().NumOps())

	backend.Tape().StartRecording()
	backend.Add(x, x)
	backend.ReLU(x)
	assert.Equal(t, 2, backend.Tape().NumOps())

	backend.Tape().Clear()
	assert.Equal(t, 0, backend.Tape().NumOps())
	assert.True(t, backend.Tape().IsRecording(), "Clear keeps recording state")
}

// y = x * x, dy/dx = 2x
func TestBackward_Square(t *testing.T) {
	backend := New(cpu.New())
	backend.Tape().StartRecording()

	x := raw(t, []float32{3, -2}, 2)
	y := backend.Mul(x, x)

	grads := backend.Backward(y, ones(2))

	require.Contains(t, grads, x)
	assert.Equal(t, []float32{6, -4}, grads[x].Data())
}

func TestBackward_LinearChain(t *testing.T) {
	backend := New(cpu.New())
	backend.Tape().StartRecording()

	// [1,2] @ W^T with W [3,2]
	x := raw(t, []float32{1, 2}, 1, 2)
	w := raw(t, []float32{1, 0, 0, 1, 1, 1}, 3, 2)
	bias := raw(t, []float32{0, 0, 0}, 1, 3)
	y := backend.Add(backend.MatMul(x, backend.Transpose(w)), bias)

	assert.Equal(t, []float32{1, 2, 3}, y.Data())

	grads := backend.Backward(y, raw(t, []float32{1, 0, 0}, 1, 3))

	// Only output 0 seeded: dL/dx = W[0], dL/dW[0] = x
	assert.Equal(t, []float32{1, 0}, grads[x].Data())
	assert.Equal(t, []float32{1, 2, 0, 0, 0, 0}, grads[w].Data())
	assert.Equal(t, []float32{1, 0, 0}, grads[bias].Data())
}

// z = relu(x); y = z*z + z, so dy/dz = 2z + 1 with two consumers of z.
func TestWatch_IntermediateReceivesAccumulatedGradient(t *testing.T) {
	backend := New(cpu.New())
	backend.Tape().StartRecording()

	x := raw(t, []float32{1, 2, -3}, 3)
	z := backend.ReLU(x)
	y := backend.Add(backend.Mul(z, z), z)

	var got []float32
	calls := 0
	backend.WatchGradient(z, func(g *tensor.RawTensor) {
		calls++
		got = append([]float32(nil), g.Data()...)
	})

	grads := backend.Backward(y, ones(3))

	assert.Equal(t, 1, calls)
	assert.Equal(t, []float32{3, 5, 1}, got)
	assert.Equal(t, []float32{3, 5, 0}, grads[x].Data())
}

func TestWatch_LeafFiresAfterWalk(t *testing.T) {
	backend := New(cpu.New())
	backend.Tape().StartRecording()

	x := raw(t, []float32{2}, 1)
	y := backend.Add(backend.Mul(x, x), x)

	var got float32
	backend.WatchGradient(x, func(g *tensor.RawTensor) { got = g.Data()[0] })
	backend.Backward(y, ones(1))

	assert.Equal(t, float32(5), got)
}

func TestWatch_UnreachedDoesNotFire(t *testing.T) {
	backend := New(cpu.New())
	backend.Tape().StartRecording()

	x := raw(t, []float32{1}, 1)
	unused := backend.ReLU(raw(t, []float32{4}, 1))
	y := backend.Mul(x, x)

	fired := false
	backend.WatchGradient(unused, func(*tensor.RawTensor) { fired = true })
	backend.Backward(y, ones(1))

	assert.False(t, fired)
}

func TestWatch_ClearDropsHooks(t *testing.T) {
	backend := New(cpu.New())
	backend.Tape().StartRecording()

	x := raw(t, []float32{1}, 1)
	fired := false
	backend.WatchGradient(x, func(*tensor.RawTensor) { fired = true })
	backend.Tape().Clear()

	y := backend.Mul(x, x)
	backend.Backward(y, ones(1))

	assert.False(t, fired)
}

func TestBackward_DoesNotRecord(t *testing.T) {
	backend := New(cpu.New())
	backend.Tape().StartRecording()

	x := raw(t, []float32{1, 2}, 2)
	y := backend.Mul(x, x)
	before := backend.Tape().NumOps()

	backend.Backward(y, ones(2))

	assert.Equal(t, before, backend.Tape().NumOps())
	assert.True(t, backend.Tape().IsRecording())
}
