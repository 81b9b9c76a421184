// Package cpu implements the pure Go CPU backend.
package cpu

import (
	"github.com/born-ml/gradcam/internal/parallel"
)

// CPUBackend implements tensor operations on CPU. It holds no per-call
// state, so one instance may be shared by any number of concurrent passes.
type CPUBackend struct {
	parallel parallel.Config
}

// New creates a new CPU backend using every available core for the
// convolution kernels.
func New() *CPUBackend {
	return &CPUBackend{parallel: parallel.DefaultConfig()}
}

// NewWithConfig creates a CPU backend with an explicit parallel config.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{parallel: cfg}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}
