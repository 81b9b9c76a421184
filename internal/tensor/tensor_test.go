package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape_NumElements(t *testing.T) {
	tests := []struct {
		shape Shape
		want  int
	}{
		{Shape{}, 1},
		{Shape{2}, 2},
		{Shape{1, 3, 128, 128}, 49152},
		{Shape{1, 64, 16, 16}, 16384},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.shape.NumElements(), "shape %v", tt.shape)
	}
}

func TestShape_Validate(t *testing.T) {
	require.NoError(t, Shape{1, 2, 3}.Validate())
	require.Error(t, Shape{1, 0, 3}.Validate())
	require.Error(t, Shape{-1}.Validate())
}

func TestShape_ComputeStrides(t *testing.T) {
	assert.Equal(t, []int{12, 4, 1}, Shape{2, 3, 4}.ComputeStrides())
	assert.Empty(t, Shape{}.ComputeStrides())
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Shape
		want      Shape
		broadcast bool
		wantErr   bool
	}{
		{"same", Shape{1, 2}, Shape{1, 2}, Shape{1, 2}, false, false},
		{"conv bias", Shape{1, 16, 8, 8}, Shape{1, 16, 1, 1}, Shape{1, 16, 8, 8}, true, false},
		{"rank extend", Shape{4, 3}, Shape{3}, Shape{4, 3}, true, false},
		{"incompatible", Shape{3, 4}, Shape{3, 5}, nil, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, broadcast, err := BroadcastShapes(tt.a, tt.b)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.broadcast, broadcast)
		})
	}
}

func TestFromSlice(t *testing.T) {
	src := []float32{1, 2, 3, 4, 5, 6}
	x, err := FromSlice(src, Shape{2, 3})
	require.NoError(t, err)

	src[0] = 100
	assert.Equal(t, float32(1), x.At(0, 0), "FromSlice must copy its input")
	assert.Equal(t, float32(6), x.At(1, 2))

	_, err = FromSlice(src, Shape{4, 4})
	require.Error(t, err)
}

func TestRawTensor_CloneIsDeep(t *testing.T) {
	x, err := Full(Shape{2, 2}, 3)
	require.NoError(t, err)

	c := x.Clone()
	c.Data()[0] = -1

	assert.Equal(t, float32(3), x.Data()[0])
	assert.True(t, c.Shape().Equal(x.Shape()))
}

func TestRawTensor_View(t *testing.T) {
	x, err := FromSlice([]float32{1, 2, 3, 4}, Shape{1, 1, 2, 2})
	require.NoError(t, err)

	v, err := x.View(Shape{1, 4})
	require.NoError(t, err)
	assert.Equal(t, float32(4), v.At(0, 3))

	_, err = x.View(Shape{3})
	require.Error(t, err)
}

func TestRawTensor_AtPanicsOutOfRange(t *testing.T) {
	x := MustRaw(Shape{2, 2})
	assert.Panics(t, func() { x.At(2, 0) })
	assert.Panics(t, func() { x.At(0) })
}
