package nn

import "github.com/born-ml/gradcam/internal/tensor"

// LayerObserver is notified of a layer's output on the forward pass and of
// the gradient with respect to that output on the backward pass.
//
// Implementations must not modify the tensors they receive. Copy them with
// Clone to keep them past the call.
type LayerObserver interface {
	OnForward(layer string, output *tensor.RawTensor)
	OnBackward(layer string, grad *tensor.RawTensor)
}

// GradientWatcher is implemented by backends that can report the gradient
// of a tensor during a backward pass. Sequential uses it to deliver
// OnBackward; on other backends observers only see the forward pass.
type GradientWatcher interface {
	WatchGradient(x *tensor.RawTensor, hook func(grad *tensor.RawTensor))
}
