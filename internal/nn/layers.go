package nn

import (
	"fmt"

	"github.com/born-ml/gradcam/internal/tensor"
)

// MaxPool2D is a 2D max pooling layer.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, (height-k)/stride+1, (width-k)/stride+1]
type MaxPool2D[B tensor.Backend] struct {
	kernelSize int
	stride     int
	backend    B
}

// NewMaxPool2D creates a new 2D max pooling layer.
func NewMaxPool2D[B tensor.Backend](kernelSize, stride int, backend B) *MaxPool2D[B] {
	if kernelSize <= 0 || stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel size %d or stride %d", kernelSize, stride))
	}
	return &MaxPool2D[B]{kernelSize: kernelSize, stride: stride, backend: backend}
}

// Forward applies max pooling.
func (m *MaxPool2D[B]) Forward(input *tensor.RawTensor) *tensor.RawTensor {
	return m.backend.MaxPool2D(input, m.kernelSize, m.stride)
}

// Parameters returns an empty slice.
func (m *MaxPool2D[B]) Parameters() []*Parameter {
	return []*Parameter{}
}

// ReLU applies max(0, x) element-wise.
type ReLU[B tensor.Backend] struct {
	backend B
}

// NewReLU creates a new ReLU activation layer.
func NewReLU[B tensor.Backend](backend B) *ReLU[B] {
	return &ReLU[B]{backend: backend}
}

// Forward applies ReLU.
func (r *ReLU[B]) Forward(input *tensor.RawTensor) *tensor.RawTensor {
	return r.backend.ReLU(input)
}

// Parameters returns an empty slice.
func (r *ReLU[B]) Parameters() []*Parameter {
	return []*Parameter{}
}

// Flatten reshapes [batch, d1, d2, ...] to [batch, d1*d2*...].
type Flatten[B tensor.Backend] struct {
	backend B
}

// NewFlatten creates a new Flatten layer.
func NewFlatten[B tensor.Backend](backend B) *Flatten[B] {
	return &Flatten[B]{backend: backend}
}

// Forward flattens all dimensions after the first.
func (f *Flatten[B]) Forward(input *tensor.RawTensor) *tensor.RawTensor {
	shape := input.Shape()
	if len(shape) < 2 {
		panic(fmt.Sprintf("flatten: expected at least 2D input, got %v", shape))
	}
	return f.backend.Reshape(input, tensor.Shape{shape[0], shape.NumElements() / shape[0]})
}

// Parameters returns an empty slice.
func (f *Flatten[B]) Parameters() []*Parameter {
	return []*Parameter{}
}

// Dropout is an inference-mode dropout layer: it passes its input through
// unchanged. The probability is kept for String only.
type Dropout[B tensor.Backend] struct {
	p float64
}

// NewDropout creates a new Dropout layer.
func NewDropout[B tensor.Backend](p float64) *Dropout[B] {
	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("dropout: invalid probability %v", p))
	}
	return &Dropout[B]{p: p}
}

// Forward returns input.
func (d *Dropout[B]) Forward(input *tensor.RawTensor) *tensor.RawTensor {
	return input
}

// Parameters returns an empty slice.
func (d *Dropout[B]) Parameters() []*Parameter {
	return []*Parameter{}
}

// String returns a string representation of the layer.
func (d *Dropout[B]) String() string {
	return fmt.Sprintf("Dropout(p=%g)", d.p)
}
