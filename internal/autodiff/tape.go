package autodiff

import (
	"github.com/born-ml/gradcam/internal/autodiff/ops"
	"github.com/born-ml/gradcam/internal/tensor"
)

// GradientHook receives the fully accumulated gradient of a watched tensor.
type GradientHook func(grad *tensor.RawTensor)

// GradientTape records operations during the forward pass and computes
// gradients during the backward pass using reverse-mode automatic differentiation.
//
// Usage:
//
//	tape := NewGradientTape()
//	tape.StartRecording()
//	// ... perform operations ...
//	gradients := tape.Backward(output, outputGrad, backend)
//
// A tape is not safe for concurrent use. Give each goroutine its own.
type GradientTape struct {
	operations []ops.Operation // Recorded operations (in execution order)
	recording  bool            // Whether tape is currently recording
	hooks      map[*tensor.RawTensor][]GradientHook
}

// NewGradientTape creates a new gradient tape.
func NewGradientTape() *GradientTape {
	return &GradientTape{
		operations: make([]ops.Operation, 0, 64), // Pre-allocate for common case
		hooks:      make(map[*tensor.RawTensor][]GradientHook),
	}
}

// StartRecording enables operation recording.
func (t *GradientTape) StartRecording() {
	t.recording = true
}

// StopRecording disables operation recording.
func (t *GradientTape) StopRecording() {
	t.recording = false
}

// IsRecording returns true if the tape is currently recording operations.
func (t *GradientTape) IsRecording() bool {
	return t.recording
}

// Record adds an operation to the tape.
// Only records if the tape is currently recording.
func (t *GradientTape) Record(op ops.Operation) {
	if t.recording {
		t.operations = append(t.operations, op)
	}
}

// Watch registers hook to run with the gradient of x during the next Backward.
//
// If x is produced by a recorded operation, the hook runs when the backward
// walk reaches that operation, at which point every consumer of x has
// already contributed. Otherwise it runs once the walk completes. Hooks on
// tensors the gradient never reaches do not run.
func (t *GradientTape) Watch(x *tensor.RawTensor, hook GradientHook) {
	t.hooks[x] = append(t.hooks[x], hook)
}

// Clear resets the tape, removing all recorded operations and hooks.
// Recording state is preserved.
func (t *GradientTape) Clear() {
	t.operations = t.operations[:0]
	clear(t.hooks)
}

// Backward computes gradients by walking the tape in reverse, starting from
// outputGrad as the gradient of output.
//
// Algorithm:
//  1. Seed the gradient map with outputGrad
//  2. Walk operations in reverse order
//  3. For each operation, compute input gradients using chain rule
//  4. Accumulate gradients when the same tensor is used multiple times
//
// Returns a map from RawTensor to its accumulated gradient.
func (t *GradientTape) Backward(output, outputGrad *tensor.RawTensor, backend tensor.Backend) map[*tensor.RawTensor]*tensor.RawTensor {
	grads := make(map[*tensor.RawTensor]*tensor.RawTensor)
	grads[output] = outputGrad

	// Stop recording during backward pass to prevent recording gradient operations
	wasRecording := t.recording
	t.recording = false
	defer func() {
		t.recording = wasRecording
	}()

	fired := make(map[*tensor.RawTensor]bool, len(t.hooks))

	// Walk tape backwards
	for i := len(t.operations) - 1; i >= 0; i-- {
		op := t.operations[i]
		opOutput := op.Output()
		opOutputGrad, hasGrad := grads[opOutput]
		if !hasGrad {
			continue
		}
		t.fire(opOutput, opOutputGrad, fired)

		inputGrads := op.Backward(opOutputGrad, backend)
		t.accumulateGrads(op, inputGrads, grads, backend)
	}

	// Leaves and anything not produced on this tape
	for x := range t.hooks {
		if grad, ok := grads[x]; ok {
			t.fire(x, grad, fired)
		}
	}

	return grads
}

// fire runs the hooks registered on x at most once per backward pass.
func (t *GradientTape) fire(x, grad *tensor.RawTensor, fired map[*tensor.RawTensor]bool) {
	hooks, ok := t.hooks[x]
	if !ok || fired[x] {
		return
	}
	fired[x] = true
	for _, hook := range hooks {
		hook(grad)
	}
}

// accumulateGrads accumulates gradients for each input tensor.
func (t *GradientTape) accumulateGrads(
	op ops.Operation,
	inputGrads []*tensor.RawTensor,
	grads map[*tensor.RawTensor]*tensor.RawTensor,
	backend tensor.Backend,
) {
	inputs := op.Inputs()
	for j, input := range inputs {
		if j >= len(inputGrads) {
			break
		}
		inputGrad := inputGrads[j]
		if inputGrad == nil {
			continue
		}
		if existing, ok := grads[input]; ok {
			grads[input] = backend.Add(existing, inputGrad)
		} else {
			grads[input] = inputGrad
		}
	}
}

// NumOps returns the number of recorded operations.
func (t *GradientTape) NumOps() int {
	return len(t.operations)
}
