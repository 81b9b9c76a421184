package tensor

import "fmt"

// RawTensor is the low-level float32 tensor representation: a contiguous
// row-major buffer plus its shape.
type RawTensor struct {
	data   []float32
	shape  Shape
	stride []int
}

// NewRaw creates a zero-filled RawTensor with the given shape.
func NewRaw(shape Shape) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	return &RawTensor{
		data:   make([]float32, shape.NumElements()),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
	}, nil
}

// MustRaw is NewRaw for shapes the caller has already validated.
// Backends use it for results whose shape is derived from their inputs.
func MustRaw(shape Shape) *RawTensor {
	t, err := NewRaw(shape)
	if err != nil {
		panic(err)
	}
	return t
}

// FromSlice creates a tensor holding a copy of data.
func FromSlice(data []float32, shape Shape) (*RawTensor, error) {
	t, err := NewRaw(shape)
	if err != nil {
		return nil, err
	}
	if len(data) != len(t.data) {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)",
			len(data), shape, len(t.data))
	}
	copy(t.data, data)
	return t, nil
}

// Full creates a tensor with every element set to value.
func Full(shape Shape, value float32) (*RawTensor, error) {
	t, err := NewRaw(shape)
	if err != nil {
		return nil, err
	}
	for i := range t.data {
		t.data[i] = value
	}
	return t, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the tensor's memory strides.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return len(r.data)
}

// Data returns the underlying buffer.
// WARNING: Direct access to underlying memory. Writers must own the tensor.
func (r *RawTensor) Data() []float32 {
	return r.data
}

// At returns the element at the given multi-dimensional index.
func (r *RawTensor) At(index ...int) float32 {
	if len(index) != len(r.shape) {
		panic(fmt.Sprintf("tensor: index rank %d != tensor rank %d", len(index), len(r.shape)))
	}
	offset := 0
	for i, idx := range index {
		if idx < 0 || idx >= r.shape[i] {
			panic(fmt.Sprintf("tensor: index %v out of range for shape %v", index, r.shape))
		}
		offset += idx * r.stride[i]
	}
	return r.data[offset]
}

// Clone returns a deep copy that shares nothing with r.
func (r *RawTensor) Clone() *RawTensor {
	data := make([]float32, len(r.data))
	copy(data, r.data)
	return &RawTensor{
		data:   data,
		shape:  r.shape.Clone(),
		stride: append([]int(nil), r.stride...),
	}
}

// View returns a tensor with a new shape over the same buffer.
// The element count must not change.
func (r *RawTensor) View(shape Shape) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if shape.NumElements() != len(r.data) {
		return nil, fmt.Errorf("cannot view %v (%d elements) as %v (%d elements)",
			r.shape, len(r.data), shape, shape.NumElements())
	}
	return &RawTensor{
		data:   r.data,
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
	}, nil
}

// String returns a short description of the tensor.
func (r *RawTensor) String() string {
	return fmt.Sprintf("RawTensor(shape=%v)", r.shape)
}
