package model

import (
	"path/filepath"
	"testing"

	"github.com/born-ml/gradcam/internal/autodiff"
	"github.com/born-ml/gradcam/internal/backend/cpu"
	"github.com/born-ml/gradcam/internal/errs"
	"github.com/born-ml/gradcam/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// smallArch keeps the tests that run many passes quick.
func smallArch() Architecture {
	return Architecture{ImageSize: 16, Channels: [4]int{3, 4, 4, 8}, Hidden: 8, Classes: 2}
}

func TestArchitecture_Default(t *testing.T) {
	arch := DefaultArchitecture()

	require.NoError(t, arch.Validate())
	assert.Equal(t, 16, arch.FeatureSize())
	assert.Equal(t, 16384, arch.FlattenSize())
	assert.True(t, arch.InputShape().Equal(tensor.Shape{1, 3, 128, 128}))

	shapes := arch.ParameterShapes()
	assert.Len(t, shapes, 10)
	assert.True(t, shapes["conv3.weight"].Equal(tensor.Shape{64, 32, 3, 3}))
	assert.True(t, shapes["fc1.weight"].Equal(tensor.Shape{128, 16384}))
	assert.True(t, shapes["fc2.bias"].Equal(tensor.Shape{2}))
}

func TestArchitecture_Validate(t *testing.T) {
	tests := []struct {
		name string
		arch Architecture
	}{
		{"not multiple of 8", DefaultArchitecture().WithImageSize(100)},
		{"zero size", DefaultArchitecture().WithImageSize(0)},
		{"zero channels", Architecture{ImageSize: 16, Channels: [4]int{3, 0, 4, 4}, Hidden: 1, Classes: 2}},
		{"no classes", Architecture{ImageSize: 16, Channels: [4]int{3, 4, 4, 4}, Hidden: 1}},
		{"dropout 1", Architecture{ImageSize: 16, Channels: [4]int{3, 4, 4, 4}, Hidden: 1, Classes: 2, Dropout: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.arch.Validate())
		})
	}

	assert.Equal(t, 64*32*32, DefaultArchitecture().WithImageSize(256).FlattenSize())
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "ai", AI.String())
	assert.Equal(t, "human", Human.String())
	assert.Equal(t, "unknown", Label(7).String())
	assert.False(t, Label(-1).Valid())

	l, err := ParseLabel("human")
	require.NoError(t, err)
	assert.Equal(t, Human, l)
	l, err = ParseLabel("0")
	require.NoError(t, err)
	assert.Equal(t, AI, l)
	_, err = ParseLabel("cat")
	assert.Error(t, err)

	text, err := Human.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "human", string(text))
	assert.NoError(t, l.UnmarshalText([]byte("ai")))
	assert.Equal(t, AI, l)
}

func TestArgmax(t *testing.T) {
	assert.Equal(t, Human, Argmax([]float32{-1, 2}))
	assert.Equal(t, AI, Argmax([]float32{3, 2}))
	assert.Equal(t, AI, Argmax([]float32{1, 1}), "ties resolve to the lower index")
}

func TestRandomWeights_Deterministic(t *testing.T) {
	a, err := RandomWeights(smallArch(), 42)
	require.NoError(t, err)
	b, err := RandomWeights(smallArch(), 42)
	require.NoError(t, err)
	c, err := RandomWeights(smallArch(), 43)
	require.NoError(t, err)

	assert.Equal(t, a.Tensor("conv1.weight").Data(), b.Tensor("conv1.weight").Data())
	assert.NotEqual(t, a.Tensor("conv1.weight").Data(), c.Tensor("conv1.weight").Data())
	assert.Equal(t, "random-42", a.Version())
}

func TestNewWeights_Mismatch(t *testing.T) {
	base, err := RandomWeights(smallArch(), 1)
	require.NoError(t, err)

	missing := base.StateDict()
	delete(missing, "fc2.bias")
	_, err = NewWeights(smallArch(), missing, "")
	assert.ErrorIs(t, err, errs.ErrConfiguration)
	assert.ErrorContains(t, err, "missing fc2.bias")

	wrong := base.StateDict()
	wrong["fc1.weight"] = tensor.MustRaw(tensor.Shape{8, 10})
	_, err = NewWeights(smallArch(), wrong, "")
	assert.ErrorIs(t, err, errs.ErrConfiguration)
	assert.ErrorContains(t, err, "fc1.weight has shape")

	extra := base.StateDict()
	extra["fc3.weight"] = tensor.MustRaw(tensor.Shape{1})
	_, err = NewWeights(smallArch(), extra, "")
	assert.ErrorContains(t, err, "unexpected fc3.weight")

	// Weights for 16x16 do not fit a 32x32 network
	_, err = NewWeights(smallArch().WithImageSize(32), base.StateDict(), "")
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestNewWeights_CopiesInput(t *testing.T) {
	base, err := RandomWeights(smallArch(), 1)
	require.NoError(t, err)
	dict := base.StateDict()

	w, err := NewWeights(smallArch(), dict, "")
	require.NoError(t, err)
	before := w.Tensor("fc2.bias").Data()[0]
	dict["fc2.bias"].Data()[0] = 99

	assert.Equal(t, before, w.Tensor("fc2.bias").Data()[0])
	assert.Equal(t, Unversioned, w.Version())
}

func TestSaveLoadWeights(t *testing.T) {
	w, err := RandomWeights(smallArch(), 5)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "weights.safetensors")
	require.NoError(t, SaveWeights(path, w))

	loaded, err := LoadWeights(path, smallArch())
	require.NoError(t, err)
	assert.Equal(t, "random-5", loaded.Version())
	for name := range smallArch().ParameterShapes() {
		assert.Equal(t, w.Tensor(name).Data(), loaded.Tensor(name).Data(), name)
	}

	_, err = LoadWeights(path, DefaultArchitecture())
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestLoadWeights_Missing(t *testing.T) {
	_, err := LoadWeights(filepath.Join(t.TempDir(), "nope.safetensors"), smallArch())
	assert.ErrorIs(t, err, errs.ErrConfiguration)
	assert.ErrorContains(t, err, "does not exist")
}

type shapeRecorder struct {
	forward, backward tensor.Shape
}

func (r *shapeRecorder) OnForward(_ string, out *tensor.RawTensor) { r.forward = out.Shape().Clone() }
func (r *shapeRecorder) OnBackward(_ string, g *tensor.RawTensor)  { r.backward = g.Shape().Clone() }

func TestClassifier_Forward(t *testing.T) {
	w, err := RandomWeights(DefaultArchitecture(), 1)
	require.NoError(t, err)
	clf := NewClassifier(w, cpu.New())

	logits, err := clf.Forward(tensor.MustRaw(tensor.Shape{1, 3, 128, 128}))
	require.NoError(t, err)
	assert.True(t, logits.Shape().Equal(tensor.Shape{1, 2}))

	_, err = clf.Forward(tensor.MustRaw(tensor.Shape{1, 3, 64, 64}))
	assert.ErrorIs(t, err, errs.ErrConfiguration)

	assert.Equal(t, []string{"stage1", "stage2", "stage3", "flatten", "fc1", "relu", "dropout", "fc2"}, clf.Layers())
}

func TestClassifier_TargetLayerCapture(t *testing.T) {
	w, err := RandomWeights(smallArch(), 1)
	require.NoError(t, err)
	backend := autodiff.New(cpu.New())
	clf := NewClassifier(w, backend)

	rec := &shapeRecorder{}
	detach, err := clf.Attach(TargetLayer, rec)
	require.NoError(t, err)
	defer detach()

	input := tensor.MustRaw(smallArch().InputShape())
	for i := range input.Data() {
		input.Data()[i] = float32(i%11)/5 - 1
	}

	backend.Tape().StartRecording()
	logits, err := clf.Forward(input)
	require.NoError(t, err)
	seed := tensor.MustRaw(tensor.Shape{1, 2})
	seed.Data()[1] = 1
	backend.Backward(logits, seed)

	assert.True(t, rec.forward.Equal(tensor.Shape{1, 8, 2, 2}))
	assert.True(t, rec.backward.Equal(tensor.Shape{1, 8, 2, 2}))

	_, err = clf.Attach("stage4", rec)
	assert.Error(t, err)
}

func TestClassifier_SharedWeightsUnchanged(t *testing.T) {
	w, err := RandomWeights(smallArch(), 9)
	require.NoError(t, err)
	before := w.StateDict()

	backend := autodiff.New(cpu.New())
	clf := NewClassifier(w, backend)
	backend.Tape().StartRecording()
	logits, err := clf.Forward(tensor.MustRaw(smallArch().InputShape()))
	require.NoError(t, err)
	seed, _ := tensor.Full(tensor.Shape{1, 2}, 1)
	backend.Backward(logits, seed)

	for name, t0 := range before {
		assert.Equal(t, t0.Data(), w.Tensor(name).Data(), name)
	}
}
