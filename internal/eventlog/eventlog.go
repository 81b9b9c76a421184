// Package eventlog appends device events to a JSON-lines file.
package eventlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/born-ml/gradcam/internal/errs"
)

// Log is an append-only JSON-lines file. Each Append writes one complete
// line; concurrent appends never interleave.
type Log struct {
	mu   sync.Mutex
	path string
}

// Open returns a Log writing to path. The file is created on first append.
func Open(path string) (*Log, error) {
	if path == "" {
		return nil, errs.Errorf(errs.Configuration, "eventlog.Open", "empty path")
	}
	return &Log{path: path}, nil
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.path
}

// Append validates raw as a JSON value, compacts it to one line and appends
// it. Invalid JSON is an Input error, write failures are Storage errors.
func (l *Log) Append(raw []byte) error {
	const op = "eventlog.Append"

	if len(bytes.TrimSpace(raw)) == 0 {
		return errs.Errorf(errs.Input, op, "no data provided")
	}
	var line bytes.Buffer
	if err := json.Compact(&line, raw); err != nil {
		return errs.Errorf(errs.Input, op, "invalid JSON: %w", err)
	}
	line.WriteByte('\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // log directory
			return errs.Errorf(errs.Storage, op, "create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // operator-configured path
	if err != nil {
		return errs.Errorf(errs.Storage, op, "open %s: %w", l.path, err)
	}
	if _, err := f.Write(line.Bytes()); err != nil {
		_ = f.Close()
		return errs.Errorf(errs.Storage, op, "write %s: %w", l.path, err)
	}
	if err := f.Close(); err != nil {
		return errs.Errorf(errs.Storage, op, "close %s: %w", l.path, err)
	}
	return nil
}

// AppendValue marshals v and appends it.
func (l *Log) AppendValue(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return l.Append(raw)
}
