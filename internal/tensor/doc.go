// Package tensor provides the float32 tensor type and the Backend contract
// shared by the CPU kernels, the autodiff decorator and the nn layers.
//
// Tensors are never modified in place by backend operations: every
// operation returns a freshly owned result. Callers that borrow a tensor may
// therefore read it without copying, and anything that must outlive the
// producing pass (for example captured activations) takes a Clone.
package tensor
