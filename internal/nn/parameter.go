package nn

import (
	"github.com/born-ml/gradcam/internal/tensor"
)

// Parameter is a named weight tensor of a layer.
type Parameter struct {
	name   string
	tensor *tensor.RawTensor
}

// NewParameter creates a new parameter.
func NewParameter(name string, t *tensor.RawTensor) *Parameter {
	return &Parameter{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.RawTensor {
	return p.tensor
}
