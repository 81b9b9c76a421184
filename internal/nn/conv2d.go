package nn

import (
	"fmt"

	"github.com/born-ml/gradcam/internal/tensor"
)

// Conv2D is a 2D convolutional layer.
//
// Performs convolution: output = Conv2D(input, weight) + bias
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [out_channels, in_channels, kernel_h, kernel_w]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Where:
//
//	out_h = (height + 2*padding - kernel_h) / stride + 1
//	out_w = (width + 2*padding - kernel_w) / stride + 1
type Conv2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  [2]int
	stride      int
	padding     int

	weight *Parameter // [out_channels, in_channels, kernel_h, kernel_w]
	bias   *Parameter // [out_channels] or nil

	backend B
}

// NewConv2D creates a 2D convolutional layer over existing weights.
// bias may be nil.
//
// Panics if the weight is not 4D, the bias does not match out_channels,
// stride is not positive or padding is negative.
func NewConv2D[B tensor.Backend](weight, bias *tensor.RawTensor, stride, padding int, backend B) *Conv2D[B] {
	ws := weight.Shape()
	if len(ws) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D weight [C_out,C_in,K_h,K_w], got %v", ws))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d", stride))
	}
	if padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid padding %d", padding))
	}

	c := &Conv2D[B]{
		inChannels:  ws[1],
		outChannels: ws[0],
		kernelSize:  [2]int{ws[2], ws[3]},
		stride:      stride,
		padding:     padding,
		weight:      NewParameter("weight", weight),
		backend:     backend,
	}
	if bias != nil {
		if !bias.Shape().Equal(tensor.Shape{ws[0]}) {
			panic(fmt.Sprintf("conv2d: bias shape %v != [%d]", bias.Shape(), ws[0]))
		}
		c.bias = NewParameter("bias", bias)
	}
	return c
}

// Forward performs the forward pass.
//
// Input: [batch, in_channels, height, width]
// Output: [batch, out_channels, out_h, out_w].
func (c *Conv2D[B]) Forward(input *tensor.RawTensor) *tensor.RawTensor {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	if inputShape[1] != c.inChannels {
		panic(fmt.Sprintf("conv2d: input channels %d != expected %d", inputShape[1], c.inChannels))
	}

	output := c.backend.Conv2D(input, c.weight.Tensor(), c.stride, c.padding)

	if c.bias != nil {
		// [out_channels] -> [1, out_channels, 1, 1] for broadcasting
		bias := c.backend.Reshape(c.bias.Tensor(), tensor.Shape{1, c.outChannels, 1, 1})
		output = c.backend.Add(output, bias)
	}

	return output
}

// Parameters returns all parameters.
func (c *Conv2D[B]) Parameters() []*Parameter {
	if c.bias != nil {
		return []*Parameter{c.weight, c.bias}
	}
	return []*Parameter{c.weight}
}

// String returns a string representation of the layer.
func (c *Conv2D[B]) String() string {
	return fmt.Sprintf("Conv2D(in_channels=%d, out_channels=%d, kernel_size=(%d, %d), stride=%d, padding=%d, bias=%v)",
		c.inChannels, c.outChannels,
		c.kernelSize[0], c.kernelSize[1],
		c.stride, c.padding, c.bias != nil)
}

// OutChannels returns the number of output channels.
func (c *Conv2D[B]) OutChannels() int {
	return c.outChannels
}

// InChannels returns the number of input channels.
func (c *Conv2D[B]) InChannels() int {
	return c.inChannels
}

// ComputeOutputSize computes output spatial dimensions for given input size.
//
// Returns: [out_height, out_width].
func (c *Conv2D[B]) ComputeOutputSize(inputH, inputW int) [2]int {
	outH := (inputH+2*c.padding-c.kernelSize[0])/c.stride + 1
	outW := (inputW+2*c.padding-c.kernelSize[1])/c.stride + 1
	return [2]int{outH, outW}
}
