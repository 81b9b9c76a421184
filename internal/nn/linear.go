package nn

import (
	"fmt"

	"github.com/born-ml/gradcam/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input tensor with shape [batch_size, in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//   - y is the output tensor with shape [batch_size, out_features]
type Linear[B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter // [out_features, in_features]
	bias        *Parameter // [out_features] or nil
	backend     B
}

// NewLinear creates a Linear layer over existing weights. bias may be nil.
func NewLinear[B tensor.Backend](weight, bias *tensor.RawTensor, backend B) *Linear[B] {
	ws := weight.Shape()
	if len(ws) != 2 {
		panic(fmt.Sprintf("linear: expected 2D weight [out,in], got %v", ws))
	}

	l := &Linear[B]{
		inFeatures:  ws[1],
		outFeatures: ws[0],
		weight:      NewParameter("weight", weight),
		backend:     backend,
	}
	if bias != nil {
		if !bias.Shape().Equal(tensor.Shape{ws[0]}) {
			panic(fmt.Sprintf("linear: bias shape %v != [%d]", bias.Shape(), ws[0]))
		}
		l.bias = NewParameter("bias", bias)
	}
	return l
}

// Forward computes y = x @ W.T + b.
//
// Input shape: [batch_size, in_features]
// Output shape: [batch_size, out_features]
func (l *Linear[B]) Forward(input *tensor.RawTensor) *tensor.RawTensor {
	inputShape := input.Shape()
	if len(inputShape) != 2 {
		panic(fmt.Sprintf("Linear.Forward: expected 2D input [batch, features], got shape %v", inputShape))
	}
	if inputShape[1] != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected input with %d features, got %d", l.inFeatures, inputShape[1]))
	}

	wT := l.backend.Transpose(l.weight.Tensor()) // [in_features, out_features]
	output := l.backend.MatMul(input, wT)

	if l.bias != nil {
		b := l.backend.Reshape(l.bias.Tensor(), tensor.Shape{1, l.outFeatures})
		output = l.backend.Add(output, b)
	}

	return output
}

// Parameters returns [weight, bias], or [weight] without bias.
func (l *Linear[B]) Parameters() []*Parameter {
	if l.bias != nil {
		return []*Parameter{l.weight, l.bias}
	}
	return []*Parameter{l.weight}
}

// InFeatures returns the number of input features.
func (l *Linear[B]) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear[B]) OutFeatures() int {
	return l.outFeatures
}
