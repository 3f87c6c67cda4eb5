package driver

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfDate means the swapchain no longer matches the surface and
	// must be recreated before it can be used again.
	ErrOutOfDate = errors.New("swapchain out of date")
	// ErrSuboptimal means the operation succeeded but the swapchain should
	// be recreated.
	ErrSuboptimal = errors.New("swapchain suboptimal")
	// ErrExtentUnsupported means the surface currently rejects the
	// requested extent (typically zero-sized while minimized).
	ErrExtentUnsupported = errors.New("swapchain extent not supported")
	ErrDeviceLost        = errors.New("device lost")
	ErrNoDevice          = errors.New("no suitable device")
	ErrTimeout           = errors.New("wait timed out")
)

// ResourceError reports a resource used in a way that conflicts with its
// state, for example a destroyed buffer referenced by a submitted command
// buffer. It is a recording defect and never retried.
type ResourceError struct {
	Resource string
	Op       string
	Err      error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource %s: %s: %v", e.Resource, e.Op, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// Transient reports whether err is one of the swapchain conditions that are
// handled by recreating the presentation target.
func Transient(err error) bool {
	return errors.Is(err, ErrOutOfDate) || errors.Is(err, ErrSuboptimal)
}
