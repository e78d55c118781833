package fetch

import (
	"errors"
	"fmt"
)

// Failure kinds reported by the client. Use errors.Is to test for them.
var (
	// ErrRequestFailed is returned when the transport fails or no HTTP
	// response is received.
	ErrRequestFailed = errors.New("request failed")

	// ErrResponseUnsuccessful is returned when the status code is not 200.
	ErrResponseUnsuccessful = errors.New("response unsuccessful")

	// ErrInvalidData is returned when a 200 response carries no body.
	ErrInvalidData = errors.New("invalid data")

	// ErrJSONConversionFailure is returned when the body is not a JSON object.
	ErrJSONConversionFailure = errors.New("json conversion failure")

	// ErrJSONParsingFailure is returned when the JSON object cannot be decoded
	// into the requested entity.
	ErrJSONParsingFailure = errors.New("json parsing failure")
)

// Error carries the failure kind together with the HTTP status code (when a
// response was received) and the underlying cause.
type Error struct {
	Kind       error // One of the Err* kinds above
	StatusCode int   // Zero when no response was received
	Err        error // Original error, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%v (status %d): %v", e.Kind, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%v (status %d)", e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	default:
		return e.Kind.Error()
	}
}

// Is reports whether target is the failure kind of e.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Unwrap returns the underlying cause to support errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind error, statusCode int, err error) *Error {
	return &Error{Kind: kind, StatusCode: statusCode, Err: err}
}

var kinds = []error{
	ErrRequestFailed,
	ErrResponseUnsuccessful,
	ErrInvalidData,
	ErrJSONConversionFailure,
	ErrJSONParsingFailure,
}

// KindOf returns the failure kind carried by err, or nil if err was not
// produced by this package.
func KindOf(err error) error {
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
