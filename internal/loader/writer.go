package loader

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/born-ml/gradcam/internal/tensor"
)

type headerEntry struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// WriteSafeTensors writes tensors as F32 to w.
//
// Tensors are written in alphabetical order by name. The metadata is
// written with ChecksumKey set to the hash of the data section; a caller
// value for that key is replaced.
func WriteSafeTensors(w io.Writer, tensors map[string]*tensor.RawTensor, metadata map[string]string) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	sum := sha256.New()
	if err := writeData(sum, names, tensors); err != nil {
		return err
	}
	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta[ChecksumKey] = hex.EncodeToString(sum.Sum(nil))

	header := make(map[string]any, len(names)+1)
	header["__metadata__"] = meta

	var offset int64
	for _, name := range names {
		raw := tensors[name]
		size := int64(raw.NumElements() * 4)

		shape := make([]int64, len(raw.Shape()))
		for i, dim := range raw.Shape() {
			shape[i] = int64(dim)
		}

		header[name] = headerEntry{
			DType:       string(SafeTensorsF32),
			Shape:       shape,
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := bw.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	if err := writeData(bw, names, tensors); err != nil {
		return err
	}
	return bw.Flush()
}

// writeData writes the named tensors back to back as little-endian F32.
func writeData(w io.Writer, names []string, tensors map[string]*tensor.RawTensor) error {
	var buf [4]byte
	for _, name := range names {
		for _, v := range tensors[name].Data() {
			binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
			if _, err := w.Write(buf[:]); err != nil {
				return fmt.Errorf("failed to write tensor %s: %w", name, err)
			}
		}
	}
	return nil
}

// WriteFile writes tensors to path. The file is written under a temporary
// name in the same directory and renamed into place, so readers never see
// a partial file.
func WriteFile(path string, tensors map[string]*tensor.RawTensor, metadata map[string]string) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".weights-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = WriteSafeTensors(tmp, tensors, metadata); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
