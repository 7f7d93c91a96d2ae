// Package reference looks up portraits and career statistics for footballers
// from public reference sources. Every lookup is best effort.
package reference

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a source has no answer for a name.
var ErrNotFound = errors.New("not found")

// UnavailableError reports a source that could not be reached or answered garbage.
type UnavailableError struct {
	Source string
	Cause  error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Source, e.Cause)
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}
