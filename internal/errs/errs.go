// Package errs defines the error taxonomy of the explanation service.
//
// Every error that crosses a package boundary toward a caller is an *Error
// carrying a Kind. Callers branch with errors.Is against the sentinels:
//
//	if errors.Is(err, errs.ErrNotFound) { ... }
//
// NotFound and Decode are refinements of Input, so errors.Is(err, ErrInput)
// holds for both.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind int

// Error kinds.
const (
	Other         Kind = iota
	Input              // missing or invalid request input
	NotFound           // image reference cannot be resolved
	Decode             // image cannot be decoded
	Configuration      // weights or settings do not match the network
	Computation        // structural defect during the forward/backward pass
	Storage            // output could not be written
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Input:
		return "input"
	case NotFound:
		return "not_found"
	case Decode:
		return "decode"
	case Configuration:
		return "configuration"
	case Computation:
		return "computation"
	case Storage:
		return "storage"
	default:
		return "other"
	}
}

// Sentinels for errors.Is.
var (
	ErrInput         = errors.New("input error")
	ErrNotFound      = errors.New("not found")
	ErrDecode        = errors.New("decode error")
	ErrConfiguration = errors.New("configuration error")
	ErrComputation   = errors.New("computation error")
	ErrStorage       = errors.New("storage error")
)

// Error is a classified error.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "preprocess.Load"
	Err  error
}

// E constructs an *Error. err may be nil, in which case the kind name is
// used as the message.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf constructs an *Error with a formatted message. %w is supported.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInput:
		return e.Kind == Input || e.Kind == NotFound || e.Kind == Decode
	case ErrNotFound:
		return e.Kind == NotFound
	case ErrDecode:
		return e.Kind == Decode
	case ErrConfiguration:
		return e.Kind == Configuration
	case ErrComputation:
		return e.Kind == Computation
	case ErrStorage:
		return e.Kind == Storage
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain, or Other.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Other
}
