// Package model defines the fixed-topology image classifier: its
// architecture, its immutable weights and the per-request network binding.
//
// The network is three convolution stages followed by two dense layers:
//
//	stage{1,2,3}: conv3x3(pad 1) -> ReLU -> maxpool 2x2     3 -> 16 -> 32 -> 64 channels
//	flatten:      [1, 64 * S/8 * S/8]
//	fc1:          dense(128) -> ReLU -> dropout (identity at inference)
//	fc2:          dense(2), raw logits
package model

import (
	"fmt"

	"github.com/born-ml/gradcam/internal/tensor"
)

// Architecture describes the classifier topology.
type Architecture struct {
	ImageSize int    // square input resolution, divisible by 8
	Channels  [4]int // input channels then the three stage widths
	Hidden    int    // fc1 units
	Classes   int    // fc2 units
	Dropout   float64
}

// DefaultArchitecture is the 128x128 configuration.
func DefaultArchitecture() Architecture {
	return Architecture{
		ImageSize: 128,
		Channels:  [4]int{3, 16, 32, 64},
		Hidden:    128,
		Classes:   2,
		Dropout:   0.5,
	}
}

// WithImageSize returns a copy of a using size; the flatten size follows.
func (a Architecture) WithImageSize(size int) Architecture {
	a.ImageSize = size
	return a
}

// FeatureSize returns the spatial size of the last stage output (S/8).
func (a Architecture) FeatureSize() int {
	return a.ImageSize / 8
}

// FlattenSize returns the fc1 input width: 64 * S/8 * S/8 for the default.
func (a Architecture) FlattenSize() int {
	f := a.FeatureSize()
	return a.Channels[3] * f * f
}

// Validate checks that the topology is well formed.
func (a Architecture) Validate() error {
	if a.ImageSize < 8 || a.ImageSize%8 != 0 {
		return fmt.Errorf("image size %d must be a positive multiple of 8", a.ImageSize)
	}
	for i, c := range a.Channels {
		if c <= 0 {
			return fmt.Errorf("channel count %d at position %d must be positive", c, i)
		}
	}
	if a.Hidden <= 0 || a.Classes <= 0 {
		return fmt.Errorf("hidden %d and classes %d must be positive", a.Hidden, a.Classes)
	}
	if a.Dropout < 0 || a.Dropout >= 1 {
		return fmt.Errorf("dropout %v must be in [0, 1)", a.Dropout)
	}
	return nil
}

// InputShape returns [1, channels, S, S].
func (a Architecture) InputShape() tensor.Shape {
	return tensor.Shape{1, a.Channels[0], a.ImageSize, a.ImageSize}
}

// ParameterShapes returns the expected shape of every named weight tensor.
func (a Architecture) ParameterShapes() map[string]tensor.Shape {
	shapes := make(map[string]tensor.Shape, 10)
	for i := 1; i <= 3; i++ {
		shapes[fmt.Sprintf("conv%d.weight", i)] = tensor.Shape{a.Channels[i], a.Channels[i-1], 3, 3}
		shapes[fmt.Sprintf("conv%d.bias", i)] = tensor.Shape{a.Channels[i]}
	}
	shapes["fc1.weight"] = tensor.Shape{a.Hidden, a.FlattenSize()}
	shapes["fc1.bias"] = tensor.Shape{a.Hidden}
	shapes["fc2.weight"] = tensor.Shape{a.Classes, a.Hidden}
	shapes["fc2.bias"] = tensor.Shape{a.Classes}
	return shapes
}
