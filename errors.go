package bgcut

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNoSubject is returned by Crop when no pixel passes the alpha threshold.
var ErrNoSubject = errors.New("no subject detected in image")

// DecodeError reports that a source could not be read as an image.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode image: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// FetchError reports that a remote source could not be retrieved. It is kept
// apart from DecodeError so callers can retry through another access path.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return "fetch " + e.URL + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error { return e.Err }

// ProcessingError reports a violated invariant inside the pipeline, or a
// cancelled run.
type ProcessingError struct {
	Stage string
	Err   error
}

func (e *ProcessingError) Error() string { return e.Stage + ": " + e.Err.Error() }
func (e *ProcessingError) Unwrap() error { return e.Err }

// EncodeError reports a serialization failure of the finished buffer.
type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string { return "encode image: " + e.Err.Error() }
func (e *EncodeError) Unwrap() error { return e.Err }

func processingErrorf(stage, format string, args ...any) error {
	return &ProcessingError{Stage: stage, Err: errors.Errorf(format, args...)}
}
