package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/gradcam/internal/tensor"
)

// Xavier (Glorot) initialization for weights.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
//
// rng makes the result reproducible for a given seed.
func Xavier(fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand) *tensor.RawTensor {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))

	t := tensor.MustRaw(shape)
	data := t.Data()
	for i := range data {
		//nolint:gosec // Using math/rand for weight initialization (not security-critical)
		data[i] = float32((rng.Float64()*2.0 - 1.0) * bound)
	}
	return t
}

// Zeros creates a tensor filled with zeros.
// This is commonly used for bias initialization.
func Zeros(shape tensor.Shape) *tensor.RawTensor {
	return tensor.MustRaw(shape)
}
