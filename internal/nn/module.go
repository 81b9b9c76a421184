// Package nn implements the neural network layers the classifier is built from.
//
// This package provides:
//   - Module interface: Base interface for all NN components
//   - Parameter: Named weight tensors
//   - Conv2D, Linear: Layers with parameters
//   - MaxPool2D, ReLU, Flatten, Dropout: Parameter-free layers
//   - Sequential: Named container with per-layer observers
//
// Layers hold references to their weight tensors and never modify them,
// so one set of weights can back many layer instances, each bound to its
// own backend.
package nn

import (
	"github.com/born-ml/gradcam/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Every NN module must implement:
//   - Forward: Compute output from input
//   - Parameters: Return all parameters
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	// Shape violations panic.
	Forward(input *tensor.RawTensor) *tensor.RawTensor

	// Parameters returns all parameters of this module, including nested
	// modules. Activation layers return an empty slice.
	Parameters() []*Parameter
}
