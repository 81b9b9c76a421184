package loader

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/born-ml/gradcam/internal/tensor"
)

// Errors returned by the reader.
var (
	ErrTensorNotFound   = errors.New("tensor not found")
	ErrUnsupportedDType = errors.New("unsupported dtype")
	ErrInvalidHeader    = errors.New("invalid safetensors header")
)

// maxHeaderSize bounds the JSON header (100MB).
const maxHeaderSize = 100 * 1024 * 1024

// SafeTensorsDType represents SafeTensors data types.
type SafeTensorsDType string

// SafeTensors dtypes the reader recognizes.
const (
	SafeTensorsF16  SafeTensorsDType = "F16"
	SafeTensorsF32  SafeTensorsDType = "F32"
	SafeTensorsF64  SafeTensorsDType = "F64"
	SafeTensorsBF16 SafeTensorsDType = "BF16"
)

// SafeTensorInfo describes a tensor in SafeTensors format.
type SafeTensorInfo struct {
	DType       SafeTensorsDType `json:"dtype"`
	Shape       []int            `json:"shape"`
	DataOffsets [2]int64         `json:"data_offsets"` // [start, end]
}

// SafeTensorsHeader is the JSON header in SafeTensors format.
type SafeTensorsHeader struct {
	Metadata map[string]string
	Tensors  map[string]SafeTensorInfo
}

// UnmarshalJSON splits __metadata__ from the tensor entries.
func (h *SafeTensorsHeader) UnmarshalJSON(data []byte) error {
	var rawMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawMap); err != nil {
		return err
	}

	if metadataRaw, ok := rawMap["__metadata__"]; ok {
		if err := json.Unmarshal(metadataRaw, &h.Metadata); err != nil {
			return fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	h.Tensors = make(map[string]SafeTensorInfo, len(rawMap))
	for key, value := range rawMap {
		if key == "__metadata__" {
			continue
		}
		var info SafeTensorInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return fmt.Errorf("failed to unmarshal tensor %s: %w", key, err)
		}
		h.Tensors[key] = info
	}

	return nil
}

// SafeTensorsReader reads SafeTensors format files.
type SafeTensorsReader struct {
	file       *os.File
	header     SafeTensorsHeader
	dataOffset int64 // Offset where tensor data starts
	dataSize   int64
}

// NewSafeTensorsReader opens path and parses its header.
func NewSafeTensorsReader(path string) (*SafeTensorsReader, error) {
	//nolint:gosec // G304: File path comes from configuration, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	r, err := newReader(file)
	if err != nil {
		_ = file.Close() // Best effort close on error
		return nil, err
	}
	return r, nil
}

func newReader(file *os.File) (*SafeTensorsReader, error) {
	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	var headerSize uint64
	if err := binary.Read(file, binary.LittleEndian, &headerSize); err != nil {
		return nil, fmt.Errorf("%w: failed to read header size: %w", ErrInvalidHeader, err)
	}
	if headerSize > maxHeaderSize || int64(headerSize)+8 > stat.Size() { //nolint:gosec // bounded above
		return nil, fmt.Errorf("%w: header size %d out of range", ErrInvalidHeader, headerSize)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(file, headerBytes); err != nil {
		return nil, fmt.Errorf("%w: failed to read header: %w", ErrInvalidHeader, err)
	}

	var header SafeTensorsHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("%w: failed to parse header JSON: %w", ErrInvalidHeader, err)
	}

	dataOffset := int64(8 + headerSize) //nolint:gosec // G115: bounded by file size
	return &SafeTensorsReader{
		file:       file,
		header:     header,
		dataOffset: dataOffset,
		dataSize:   stat.Size() - dataOffset,
	}, nil
}

// Close closes the SafeTensors file.
func (r *SafeTensorsReader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// Metadata returns the metadata map from the header.
func (r *SafeTensorsReader) Metadata() map[string]string {
	return r.header.Metadata
}

// TensorNames returns the names of all tensors in the file, sorted.
func (r *SafeTensorsReader) TensorNames() []string {
	names := make([]string, 0, len(r.header.Tensors))
	for name := range r.header.Tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TensorInfo returns information about a specific tensor.
func (r *SafeTensorsReader) TensorInfo(name string) (*SafeTensorInfo, error) {
	info, ok := r.header.Tensors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
	}
	return &info, nil
}

// ReadTensorData reads raw tensor bytes for a given tensor name.
func (r *SafeTensorsReader) ReadTensorData(name string) ([]byte, error) {
	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	start, end := info.DataOffsets[0], info.DataOffsets[1]
	if start < 0 || end < start || end > r.dataSize {
		return nil, fmt.Errorf("%w: data offsets for tensor %s: [%d, %d]",
			ErrInvalidHeader, name, start, end)
	}

	data := make([]byte, end-start)
	if _, err := r.file.ReadAt(data, r.dataOffset+start); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	return data, nil
}

// LoadTensor loads a tensor as float32.
func (r *SafeTensorsReader) LoadTensor(name string) (*tensor.RawTensor, error) {
	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	shape := tensor.Shape(info.Shape)
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape for tensor %s: %w", name, err)
	}

	var elemSize int
	switch info.DType {
	case SafeTensorsF32:
		elemSize = 4
	case SafeTensorsF64:
		elemSize = 8
	default:
		return nil, fmt.Errorf("%w: tensor %s has dtype %s", ErrUnsupportedDType, name, info.DType)
	}

	data, err := r.ReadTensorData(name)
	if err != nil {
		return nil, err
	}
	if len(data) != shape.NumElements()*elemSize {
		return nil, fmt.Errorf("%w: tensor %s has %d bytes, shape %v needs %d",
			ErrInvalidHeader, name, len(data), shape, shape.NumElements()*elemSize)
	}

	raw, err := tensor.NewRaw(shape)
	if err != nil {
		return nil, fmt.Errorf("failed to create tensor: %w", err)
	}
	out := raw.Data()
	for i := range out {
		if elemSize == 4 {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		} else {
			out[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:])))
		}
	}
	return raw, nil
}

// ReadFile loads every tensor in path along with the header metadata,
// verifying the data checksum when the file records one.
func ReadFile(path string) (map[string]*tensor.RawTensor, map[string]string, error) {
	r, err := NewSafeTensorsReader(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = r.Close()
	}()

	if err := r.VerifyChecksum(); err != nil {
		return nil, nil, err
	}

	tensors := make(map[string]*tensor.RawTensor, len(r.header.Tensors))
	for _, name := range r.TensorNames() {
		t, err := r.LoadTensor(name)
		if err != nil {
			return nil, nil, err
		}
		tensors[name] = t
	}
	return tensors, r.Metadata(), nil
}
