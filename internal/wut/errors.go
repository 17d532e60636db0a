package wut

import (
	"errors"
	"fmt"
)

// LoadError is the single error type returned by Client. Transport failures,
// rejected credentials and malformed payloads all surface as "failed to load X".
type LoadError struct {
	Resource string
	Status   int // HTTP status, 0 when no response was received
	Err      error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("failed to load %s", e.Resource)
	}
	return fmt.Sprintf("failed to load %s: %v", e.Resource, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Message is the user-facing text, without internal detail.
func (e *LoadError) Message() string {
	return "failed to load " + e.Resource
}

// AsLoadError returns the LoadError wrapped in err, if any.
func AsLoadError(err error) (*LoadError, bool) {
	var le *LoadError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}
