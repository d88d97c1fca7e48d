package plot

import (
	"errors"
	"fmt"
)

var (
	// ErrToolMissing indicates the plotting executable was not found on PATH.
	ErrToolMissing = errors.New("plot tool not found")
	// ErrToolFailed indicates the plotting tool exited non-zero or could not be started.
	ErrToolFailed = errors.New("plot tool failed")
	// ErrOutputDir indicates the image directory could not be created.
	ErrOutputDir = errors.New("plot output directory unavailable")
)

// ErrorKind classifies a build failure.
type ErrorKind string

const (
	KindToolMissing ErrorKind = "tool_missing"
	KindToolFailed  ErrorKind = "tool_failed"
	KindOutputDir   ErrorKind = "output_dir"
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindToolMissing:
		return ErrToolMissing
	case KindOutputDir:
		return ErrOutputDir
	default:
		return ErrToolFailed
	}
}

// Error is returned by Builder.Build. Output carries whatever the tool wrote
// to stderr (or stdout when stderr was empty).
type Error struct {
	Kind   ErrorKind
	Tool   string
	Image  string
	Output string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%v: %s -> %s", e.Kind.sentinel(), e.Tool, e.Image)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == e.Kind.sentinel() }
