// Package loader reads and writes model weights in the SafeTensors format.
//
// SafeTensors layout:
//
//	[8 bytes: header_size (uint64 LE)]
//	[header_size bytes: JSON header]
//	[tensor data: raw little-endian bytes]
//
// Only float32 tensors are materialized. F64 tensors are narrowed to
// float32 on load; every other dtype is rejected with ErrUnsupportedDType.
package loader
