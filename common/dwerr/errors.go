// Package dwerr provides DICOMweb-specific error classification for the
// gateway. Every failure crossing a component boundary carries a Kind so
// that handlers can map it to the right transport status.
package dwerr

import (
	"errors"
	"fmt"
)

// Kind classifies a gateway failure.
type Kind int

const (
	// BadFileFormat marks a malformed request body or selector. The
	// request is rejected before any per-item work.
	BadFileFormat Kind = iota
	// UnsupportedMediaType marks a wrong top-level or part media type.
	UnsupportedMediaType
	// UnknownResource marks a resolution that matched no entity.
	UnknownResource
	// NetworkProtocol marks a remote peer violating the expected
	// response contract.
	NetworkProtocol
	// InternalError marks an invariant violation in locally-controlled
	// data.
	InternalError
	// NotEnoughMemory marks resource exhaustion during identifier
	// generation.
	NotEnoughMemory
)

func (k Kind) String() string {
	switch k {
	case BadFileFormat:
		return "bad-file-format"
	case UnsupportedMediaType:
		return "unsupported-media-type"
	case UnknownResource:
		return "unknown-resource"
	case NetworkProtocol:
		return "network-protocol"
	case InternalError:
		return "internal-error"
	case NotEnoughMemory:
		return "not-enough-memory"
	default:
		return "unknown"
	}
}

// Error is a classified gateway error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates a classified error around an underlying cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the Kind of err, or InternalError when err carries no
// classification.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return InternalError
}

// Is reports whether err is classified with the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
