package loader

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// ChecksumKey is the metadata key holding the hex SHA-256 of the data
// section. Files written by WriteSafeTensors always carry it; files without
// it are read unverified.
const ChecksumKey = "sha256"

// ErrChecksumMismatch is returned when the data section does not hash to
// the recorded checksum.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// ComputeChecksumReader returns the hex SHA-256 of everything read from r.
func ComputeChecksumReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyChecksum hashes the data section and compares it with the
// recorded checksum, if any.
func (r *SafeTensorsReader) VerifyChecksum() error {
	want, ok := r.header.Metadata[ChecksumKey]
	if !ok {
		return nil
	}
	got, err := ComputeChecksumReader(io.NewSectionReader(r.file, r.dataOffset, r.dataSize))
	if err != nil {
		return fmt.Errorf("failed to hash tensor data: %w", err)
	}
	if got != want {
		return fmt.Errorf("%w: data hashes to %s, header records %s", ErrChecksumMismatch, got, want)
	}
	return nil
}
