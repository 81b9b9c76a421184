package gradcam

import (
	"math"

	"github.com/born-ml/gradcam/internal/errs"
	"github.com/born-ml/gradcam/internal/model"
	"github.com/born-ml/gradcam/internal/tensor"
)

// Epsilon keeps normalization finite for a constant map.
const Epsilon = 1e-8

// Map is a single-channel importance map with values in [0, 1].
type Map struct {
	width, height int
	values        []float32 // row-major
}

// NewMap wraps values as a width x height map. Values are not checked.
func NewMap(width, height int, values []float32) *Map {
	return &Map{width: width, height: height, values: values}
}

// Width returns the map width.
func (m *Map) Width() int { return m.width }

// Height returns the map height.
func (m *Map) Height() int { return m.height }

// At returns the value at column x, row y.
func (m *Map) At(x, y int) float32 {
	return m.values[y*m.width+x]
}

// Values returns the row-major values. Callers must not modify them.
func (m *Map) Values() []float32 {
	return m.values
}

// Tensor returns the map as a [1, 1, h, w] tensor.
func (m *Map) Tensor() *tensor.RawTensor {
	t, _ := tensor.FromSlice(m.values, tensor.Shape{1, 1, m.height, m.width})
	return t
}

// BuildMap computes the Grad-CAM map for activation A and gradient G,
// both [1, C, h, w]:
//
//	w_c      = mean over (y, x) of G[c, y, x]
//	raw[y,x] = max(0, sum_c w_c * A[c, y, x])
//	M        = (raw - min) / (max - min + Epsilon)
//
// A map with no positive evidence is all zeros. Accumulation is in
// float64, so the same inputs always give the same map.
func BuildMap(activation, gradient *tensor.RawTensor) (*Map, error) {
	const op = "gradcam.BuildMap"

	shape := activation.Shape()
	if len(shape) != 4 || shape[0] != 1 {
		return nil, errs.Errorf(errs.Computation, op, "activation shape %v, want [1, C, h, w]", shape)
	}
	if !gradient.Shape().Equal(shape) {
		return nil, errs.Errorf(errs.Computation, op, "gradient shape %v does not match activation %v",
			gradient.Shape(), shape)
	}

	channels, h, w := shape[1], shape[2], shape[3]
	plane := h * w
	a, g := activation.Data(), gradient.Data()

	raw := make([]float64, plane)
	for c := 0; c < channels; c++ {
		base := c * plane

		var weight float64
		for _, v := range g[base : base+plane] {
			weight += float64(v)
		}
		weight /= float64(plane)
		if weight == 0 {
			continue
		}

		for i, v := range a[base : base+plane] {
			raw[i] += weight * float64(v)
		}
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for i, v := range raw {
		if v < 0 {
			v = 0
			raw[i] = 0
		}
		lo = min(lo, v)
		hi = max(hi, v)
	}

	values := make([]float32, plane)
	scale := hi - lo + Epsilon
	for i, v := range raw {
		values[i] = float32((v - lo) / scale)
	}

	return &Map{width: w, height: h, values: values}, nil
}

// OneHot returns the [1, classes] backward seed selecting target.
func OneHot(target model.Label, classes int) *tensor.RawTensor {
	seed := tensor.MustRaw(tensor.Shape{1, classes})
	seed.Data()[target] = 1
	return seed
}

// SelectTarget returns requested if set, otherwise the top-1 class of
// logits. A requested class outside the logits is an Input error.
func SelectTarget(logits []float32, requested *model.Label) (model.Label, error) {
	if requested == nil {
		return model.Argmax(logits), nil
	}
	if *requested < 0 || int(*requested) >= len(logits) {
		return 0, errs.Errorf(errs.Input, "gradcam.SelectTarget",
			"target class %d out of range [0, %d)", int(*requested), len(logits))
	}
	return *requested, nil
}
