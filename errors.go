package offscreen

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyInitialized is returned by Init while another session is
	// live in the process.
	ErrAlreadyInitialized = errors.New("offscreen: already initialized")
	// ErrNotInitialized is returned by calls on a session that was torn
	// down.
	ErrNotInitialized = errors.New("offscreen: not initialized")
	// ErrBufferTooSmall means a host buffer cannot hold width*height*4
	// bytes.
	ErrBufferTooSmall = errors.New("offscreen: buffer too small for viewport")
	// ErrInvalidViewport means a non-positive width or height.
	ErrInvalidViewport = errors.New("offscreen: invalid viewport size")
)

// InitErrorKind classifies an Init failure.
type InitErrorKind int

const (
	EngineBootstrapFailed InitErrorKind = iota
	AlreadyInitialized
	InvalidArgument
)

func (k InitErrorKind) String() string {
	switch k {
	case EngineBootstrapFailed:
		return "engine bootstrap failed"
	case AlreadyInitialized:
		return "already initialized"
	case InvalidArgument:
		return "invalid argument"
	default:
		return "unknown"
	}
}

// InitError reports why Init failed. Nothing is retained after one.
type InitError struct {
	Kind InitErrorKind
	Err  error
}

func (e *InitError) Error() string {
	if e.Err == nil {
		return "offscreen init: " + e.Kind.String()
	}
	return fmt.Sprintf("offscreen init: %s: %v", e.Kind, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrAlreadyInitialized) match by kind.
func (e *InitError) Is(target error) bool {
	return target == ErrAlreadyInitialized && e.Kind == AlreadyInitialized
}

// LifecycleError is returned by an operation on a session in the wrong
// lifecycle state.
type LifecycleError struct {
	Op  string
	Err error
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("offscreen %s: %v", e.Op, e.Err)
}

func (e *LifecycleError) Unwrap() error { return e.Err }
