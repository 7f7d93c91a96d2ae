package ai

import (
	"errors"
	"fmt"
)

// FailureKind classifies why an oracle call produced no usable match.
type FailureKind string

const (
	FailureTransport     FailureKind = "transport"      // call failed, timed out or returned non-2xx
	FailureEmpty         FailureKind = "empty"          // response carried no content
	FailureExplicitError FailureKind = "explicit_error" // payload contained an "error" field
	FailureMalformed     FailureKind = "malformed"      // payload was not valid JSON
	FailureSchema        FailureKind = "schema"         // JSON did not satisfy the match schema
)

// OracleResponseError is returned by every Classifier failure.
type OracleResponseError struct {
	Provider string
	Kind     FailureKind
	Cause    error
}

func (e *OracleResponseError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s oracle: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s oracle: %s: %v", e.Provider, e.Kind, e.Cause)
}

func (e *OracleResponseError) Unwrap() error {
	return e.Cause
}

func oracleError(provider string, kind FailureKind, cause error) *OracleResponseError {
	return &OracleResponseError{Provider: provider, Kind: kind, Cause: cause}
}

// KindOf returns the failure kind of an OracleResponseError anywhere in err's
// chain, and false for any other error.
func KindOf(err error) (FailureKind, bool) {
	var oe *OracleResponseError
	if !errors.As(err, &oe) {
		return "", false
	}
	return oe.Kind, true
}
