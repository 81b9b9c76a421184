package overlay

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/gradcam/internal/gradcam"
)

func constantMap(w, h int, v float32) *gradcam.Map {
	values := make([]float32, w*h)
	for i := range values {
		values[i] = v
	}
	return gradcam.NewMap(w, h, values)
}

func TestRender_PreservesDimensions(t *testing.T) {
	r, err := NewRenderer(DefaultAlpha)
	require.NoError(t, err)
	m := gradcam.NewMap(2, 2, []float32{0, 0.25, 0.75, 1})

	sizes := []image.Rectangle{
		image.Rect(0, 0, 128, 128),
		image.Rect(0, 0, 640, 480),
		image.Rect(0, 0, 1, 1),
		image.Rect(0, 0, 37, 201),
		image.Rect(10, 20, 50, 45), // non-zero origin
	}
	for _, b := range sizes {
		out := r.Render(m, image.NewRGBA(b))
		assert.Equal(t, b.Dx(), out.Bounds().Dx(), "%v", b)
		assert.Equal(t, b.Dy(), out.Bounds().Dy(), "%v", b)
	}
}

func TestResample_ConstantRoundTrip(t *testing.T) {
	for _, v := range []float32{0, 0.3, 0.5, 1} {
		small := constantMap(16, 16, v)
		up := Resample(small, 128, 128)
		down := Resample(up, 16, 16)

		for _, got := range up.Values() {
			require.InDelta(t, v, got, 1e-4)
		}
		assert.Equal(t, Resample(small, 16, 16).Values(), down.Values(), "value %v", v)
	}
}

func TestResample_Monotone(t *testing.T) {
	// Left column cold, right column hot: the upsampled row must not decrease.
	m := gradcam.NewMap(2, 1, []float32{0, 1})
	up := Resample(m, 16, 1)

	for x := 1; x < 16; x++ {
		assert.GreaterOrEqual(t, up.At(x, 0), up.At(x-1, 0))
	}
	assert.Less(t, up.At(0, 0), float32(0.2))
	assert.Greater(t, up.At(15, 0), float32(0.8))
}

func TestJet(t *testing.T) {
	assert.Equal(t, color.RGBA{0, 0, 128, 255}, Jet(0))
	assert.Equal(t, color.RGBA{128, 255, 128, 255}, Jet(0.5))
	assert.Equal(t, color.RGBA{128, 0, 0, 255}, Jet(1))
	assert.Equal(t, Jet(1), Jet(2), "clamped")
}

func TestRender_Blend(t *testing.T) {
	r, err := NewRenderer(0.4)
	require.NoError(t, err)

	original := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range original.Pix {
		original.Pix[i] = 200
		if i%4 == 3 {
			original.Pix[i] = 0xff
		}
	}
	out := r.Render(constantMap(1, 1, 1), original)

	// jet(1) = (128, 0, 0); 0.4*heat + 0.6*200
	assert.Equal(t, color.RGBA{171, 120, 120, 255}, out.RGBAAt(2, 2))
}

func TestRender_DropsSourceAlpha(t *testing.T) {
	r, err := NewRenderer(0.4)
	require.NoError(t, err)

	original := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			original.SetNRGBA(x, y, color.NRGBA{200, 200, 200, 100})
		}
	}
	out := r.Render(constantMap(1, 1, 1), original)

	// Stored colour is blended as is and the result is opaque.
	assert.Equal(t, color.RGBA{171, 120, 120, 255}, out.RGBAAt(1, 3))
}

func TestNewRenderer_Invalid(t *testing.T) {
	for _, alpha := range []float64{0, 1, -0.1, 1.5} {
		_, err := NewRenderer(alpha)
		assert.Error(t, err, "alpha %v", alpha)
	}
}
