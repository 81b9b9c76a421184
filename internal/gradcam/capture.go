// Package gradcam computes Gradient-weighted Class Activation Maps.
//
// A Capture is attached to one layer of the network as an observer. The
// forward pass records the layer output A and the backward pass, seeded
// with a one-hot vector for the target class, records dScore/dA. BuildMap
// turns the pair into a [0, 1] importance map at the layer's resolution.
package gradcam

import (
	"github.com/born-ml/gradcam/internal/errs"
	"github.com/born-ml/gradcam/internal/tensor"
)

// Capture holds the most recent activation and gradient of one layer.
//
// Use one Capture per request. It is not safe for concurrent use.
type Capture struct {
	layer      string
	activation *tensor.RawTensor
	gradient   *tensor.RawTensor
}

// NewCapture returns an empty capture for layer.
func NewCapture(layer string) *Capture {
	return &Capture{layer: layer}
}

// OnForward records a copy of the layer output. A new forward pass
// invalidates any gradient from the previous one.
func (c *Capture) OnForward(_ string, output *tensor.RawTensor) {
	c.activation = output.Clone()
	c.gradient = nil
}

// OnBackward records a copy of the gradient with respect to the layer output.
func (c *Capture) OnBackward(_ string, grad *tensor.RawTensor) {
	c.gradient = grad.Clone()
}

// Reset drops both tensors.
func (c *Capture) Reset() {
	c.activation = nil
	c.gradient = nil
}

// Layer returns the name of the observed layer.
func (c *Capture) Layer() string {
	return c.layer
}

// Activation returns the captured activation, or nil.
func (c *Capture) Activation() *tensor.RawTensor {
	return c.activation
}

// Gradient returns the captured gradient, or nil.
func (c *Capture) Gradient() *tensor.RawTensor {
	return c.gradient
}

// Build computes the map from the captured pair.
//
// A missing activation or gradient is a Computation error: the layer was
// not on the path between input and target score.
func (c *Capture) Build() (*Map, error) {
	const op = "gradcam.Build"
	if c.activation == nil {
		return nil, errs.Errorf(errs.Computation, op, "no activation captured at layer %q", c.layer)
	}
	if c.gradient == nil {
		return nil, errs.Errorf(errs.Computation, op, "no gradient reached layer %q", c.layer)
	}
	return BuildMap(c.activation, c.gradient)
}
