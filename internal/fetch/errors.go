package fetch

import (
	"errors"
	"fmt"

	"git.home.luguber.info/inful/ductgallery/internal/source"
)

// Sentinel errors for fetch failure classification. They are matched with
// errors.Is against *Error values.
var (
	// ErrNotFound indicates a local manifest or sibling artifact does not exist.
	ErrNotFound = errors.New("artifact not found")
	// ErrTransport indicates a download failed: non-success status, network error or timeout.
	ErrTransport = errors.New("transport error")
	// ErrInvalidManifest indicates the manifest could not be decoded.
	ErrInvalidManifest = errors.New("invalid manifest")
	// ErrCache indicates the cache directory or a cache file could not be written.
	ErrCache = errors.New("cache write failed")
)

// ErrorKind classifies a fetch failure.
type ErrorKind string

const (
	KindNotFound        ErrorKind = "not_found"
	KindTransport       ErrorKind = "transport"
	KindInvalidManifest ErrorKind = "invalid_manifest"
	KindCache           ErrorKind = "cache"
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindTransport:
		return ErrTransport
	case KindInvalidManifest:
		return ErrInvalidManifest
	default:
		return ErrCache
	}
}

// Error is returned by Fetch. It names the example and, when known, the
// artifact kind and location that failed.
type Error struct {
	Title    string
	Kind     ErrorKind
	Artifact source.ArtifactKind
	Location string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("fetch %q: %v", e.Title, e.Kind.sentinel())
	if e.Artifact != "" {
		msg += fmt.Sprintf(" (%s", e.Artifact)
		if e.Location != "" {
			msg += " " + e.Location
		}
		msg += ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool { return target == e.Kind.sentinel() }
