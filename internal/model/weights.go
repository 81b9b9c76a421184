package model

import (
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"sort"
	"strings"

	"github.com/born-ml/gradcam/internal/errs"
	"github.com/born-ml/gradcam/internal/loader"
	"github.com/born-ml/gradcam/internal/nn"
	"github.com/born-ml/gradcam/internal/tensor"
)

// VersionKey is the SafeTensors metadata key holding the weights version.
const VersionKey = "version"

// Unversioned is reported for weight files without a version entry.
const Unversioned = "unversioned"

// Weights is an immutable parameter set for one Architecture.
//
// Weights are safe for concurrent use: nothing writes to the tensors after
// construction. Tensor returns the shared tensor and callers must treat it
// as read-only; StateDict returns copies.
type Weights struct {
	arch    Architecture
	version string
	tensors map[string]*tensor.RawTensor
}

// NewWeights validates tensors against arch and takes a private copy.
//
// Returns a Configuration error for missing, unexpected or mis-shaped tensors.
func NewWeights(arch Architecture, tensors map[string]*tensor.RawTensor, version string) (*Weights, error) {
	const op = "model.NewWeights"

	if err := arch.Validate(); err != nil {
		return nil, errs.E(errs.Configuration, op, err)
	}

	expected := arch.ParameterShapes()
	var problems []string
	for name, shape := range expected {
		t, ok := tensors[name]
		if !ok {
			problems = append(problems, fmt.Sprintf("missing %s", name))
			continue
		}
		if !t.Shape().Equal(shape) {
			problems = append(problems, fmt.Sprintf("%s has shape %v, want %v", name, t.Shape(), shape))
		}
	}
	for name := range tensors {
		if _, ok := expected[name]; !ok {
			problems = append(problems, fmt.Sprintf("unexpected %s", name))
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, errs.Errorf(errs.Configuration, op, "weights do not match architecture: %s",
			strings.Join(problems, "; "))
	}

	if version == "" {
		version = Unversioned
	}
	owned := make(map[string]*tensor.RawTensor, len(tensors))
	for name, t := range tensors {
		owned[name] = t.Clone()
	}
	return &Weights{arch: arch, version: version, tensors: owned}, nil
}

// LoadWeights reads a SafeTensors file and validates it against arch.
//
// Every failure is a Configuration error: a process must not serve
// requests without a matching weights file.
func LoadWeights(path string, arch Architecture) (*Weights, error) {
	const op = "model.LoadWeights"

	tensors, metadata, err := loader.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.Errorf(errs.Configuration, op, "weights file %s does not exist: %w", path, err)
		}
		return nil, errs.Errorf(errs.Configuration, op, "read %s: %w", path, err)
	}

	return NewWeights(arch, tensors, metadata[VersionKey])
}

// SaveWeights writes w to path with its version in the metadata.
func SaveWeights(path string, w *Weights) error {
	if err := loader.WriteFile(path, w.tensors, map[string]string{VersionKey: w.version}); err != nil {
		return errs.Errorf(errs.Storage, "model.SaveWeights", "write %s: %w", path, err)
	}
	return nil
}

// RandomWeights returns Xavier-initialized weights with zero biases.
// The same seed always yields the same weights.
func RandomWeights(arch Architecture, seed int64) (*Weights, error) {
	if err := arch.Validate(); err != nil {
		return nil, errs.E(errs.Configuration, "model.RandomWeights", err)
	}

	//nolint:gosec // Using math/rand for weight initialization (not security-critical)
	rng := rand.New(rand.NewSource(seed))
	tensors := make(map[string]*tensor.RawTensor, 10)

	// Initialize in a fixed order so the seed fully determines the result
	for i := 1; i <= 3; i++ {
		in, out := arch.Channels[i-1], arch.Channels[i]
		tensors[fmt.Sprintf("conv%d.weight", i)] = nn.Xavier(in*9, out*9, tensor.Shape{out, in, 3, 3}, rng)
		tensors[fmt.Sprintf("conv%d.bias", i)] = nn.Zeros(tensor.Shape{out})
	}
	tensors["fc1.weight"] = nn.Xavier(arch.FlattenSize(), arch.Hidden, tensor.Shape{arch.Hidden, arch.FlattenSize()}, rng)
	tensors["fc1.bias"] = nn.Zeros(tensor.Shape{arch.Hidden})
	tensors["fc2.weight"] = nn.Xavier(arch.Hidden, arch.Classes, tensor.Shape{arch.Classes, arch.Hidden}, rng)
	tensors["fc2.bias"] = nn.Zeros(tensor.Shape{arch.Classes})

	return NewWeights(arch, tensors, fmt.Sprintf("random-%d", seed))
}

// Architecture returns the topology the weights were validated against.
func (w *Weights) Architecture() Architecture {
	return w.arch
}

// Version returns the weights version.
func (w *Weights) Version() string {
	return w.version
}

// Tensor returns the named tensor, or nil. The tensor is shared and must
// not be modified.
func (w *Weights) Tensor(name string) *tensor.RawTensor {
	return w.tensors[name]
}

// StateDict returns a copy of every tensor.
func (w *Weights) StateDict() map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor, len(w.tensors))
	for name, t := range w.tensors {
		out[name] = t.Clone()
	}
	return out
}

// WithTensors returns new weights with the named tensors replaced.
func (w *Weights) WithTensors(replace map[string]*tensor.RawTensor, version string) (*Weights, error) {
	merged := w.StateDict()
	for name, t := range replace {
		merged[name] = t
	}
	return NewWeights(w.arch, merged, version)
}
