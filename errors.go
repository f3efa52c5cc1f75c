package nativeload

import (
	"github.com/pkg/errors"
)

// Error kinds returned by the extractor and reported in loader results.
// Match them with errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("resource not found")
	ErrIO              = errors.New("i/o failure")
	ErrLoad            = errors.New("dynamic load failed")
	ErrClosed          = errors.New("extractor is closed")
)

var kinds = []error{ErrInvalidArgument, ErrNotFound, ErrIO, ErrLoad, ErrClosed}

// Kind returns the sentinel error kind err belongs to, or nil if err is nil or unclassified.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// kindError attaches a kind to an underlying cause so that both errors.Is(err, kind)
// and errors.Is(err, cause) hold.
type kindError struct {
	kind  error
	cause error
}

func (e *kindError) Error() string {
	if e.cause == nil {
		return e.kind.Error()
	}
	return e.kind.Error() + ": " + e.cause.Error()
}

func (e *kindError) Is(target error) bool { return target == e.kind }

func (e *kindError) Unwrap() error { return e.cause }

func withKind(kind, cause error, format string, args ...interface{}) error {
	return errors.Wrapf(&kindError{kind: kind, cause: cause}, format, args...)
}
