package model

import (
	"fmt"

	"github.com/born-ml/gradcam/internal/errs"
	"github.com/born-ml/gradcam/internal/nn"
	"github.com/born-ml/gradcam/internal/tensor"
)

// TargetLayer is the last convolution stage, the Grad-CAM capture point.
// Its output is [1, 64, S/8, S/8].
const TargetLayer = "stage3"

// Classifier is the network bound to one backend.
//
// Binding is cheap: layers reference the shared Weights tensors. Create one
// Classifier per request, with that request's backend, and drop it
// afterwards; a Classifier is not safe for concurrent use.
type Classifier[B tensor.Backend] struct {
	arch Architecture
	net  *nn.Sequential[B]
}

// NewClassifier builds the network over w for backend.
func NewClassifier[B tensor.Backend](w *Weights, backend B) *Classifier[B] {
	arch := w.Architecture()
	net := nn.NewSequential(backend)

	for i := 1; i <= 3; i++ {
		stage := nn.NewSequential(backend)
		stage.Add("conv", nn.NewConv2D(
			w.Tensor(fmt.Sprintf("conv%d.weight", i)),
			w.Tensor(fmt.Sprintf("conv%d.bias", i)),
			1, 1, backend))
		stage.Add("relu", nn.NewReLU(backend))
		stage.Add("pool", nn.NewMaxPool2D(2, 2, backend))
		net.Add(fmt.Sprintf("stage%d", i), stage)
	}

	net.Add("flatten", nn.NewFlatten(backend))
	net.Add("fc1", nn.NewLinear(w.Tensor("fc1.weight"), w.Tensor("fc1.bias"), backend))
	net.Add("relu", nn.NewReLU(backend))
	net.Add("dropout", nn.NewDropout[B](arch.Dropout))
	net.Add("fc2", nn.NewLinear(w.Tensor("fc2.weight"), w.Tensor("fc2.bias"), backend))

	return &Classifier[B]{arch: arch, net: net}
}

// Forward computes [1, classes] logits for a [1, 3, S, S] input.
//
// An input of any other shape is a Configuration error: the preprocessor
// and the architecture disagree on the resolution.
func (c *Classifier[B]) Forward(input *tensor.RawTensor) (*tensor.RawTensor, error) {
	if want := c.arch.InputShape(); !input.Shape().Equal(want) {
		return nil, errs.Errorf(errs.Configuration, "model.Forward",
			"input shape %v does not match network input %v", input.Shape(), want)
	}
	return c.net.Forward(input), nil
}

// Attach registers obs on a named layer, e.g. TargetLayer or "stage3.conv".
func (c *Classifier[B]) Attach(layer string, obs nn.LayerObserver) (detach func(), err error) {
	return c.net.Attach(layer, obs)
}

// Layers returns the top-level layer names in execution order.
func (c *Classifier[B]) Layers() []string {
	return c.net.Names()
}

// Architecture returns the network topology.
func (c *Classifier[B]) Architecture() Architecture {
	return c.arch
}
