package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure for the HTTP surface.
type Kind string

const (
	KindSchemaViolation Kind = "schema_violation"
	KindUpstreamFailure Kind = "upstream_failure"
	KindStorageFailure  Kind = "storage_failure"
	KindNotFound        Kind = "not_found"
	KindInternal        Kind = "internal"
)

type Error struct {
	Status int
	Kind   Kind
	Err    error
	// Details is rendered verbatim into the response body (field violations etc).
	Details any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Kind != "" {
		return string(e.Kind)
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, kind Kind, err error) *Error {
	return &Error{Status: status, Kind: kind, Err: err}
}

func SchemaViolation(err error, details any) *Error {
	return &Error{Status: http.StatusUnprocessableEntity, Kind: KindSchemaViolation, Err: err, Details: details}
}

func Upstream(err error) *Error {
	return New(http.StatusInternalServerError, KindUpstreamFailure, err)
}

func Storage(err error) *Error {
	return New(http.StatusInternalServerError, KindStorageFailure, err)
}

func NotFound(err error) *Error {
	return New(http.StatusNotFound, KindNotFound, err)
}

// From returns the *Error in err's chain, or wraps err as an internal failure.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return New(http.StatusInternalServerError, KindInternal, err)
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}
