package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidQuery      = errors.New("invalid query")
	ErrMissingCredential = errors.New("missing service key")

	ErrTransport         = errors.New("transport failure")
	ErrMalformedResponse = errors.New("malformed response")
	ErrAPIRejected       = errors.New("api rejected request")

	ErrMissingField    = errors.New("missing field")
	ErrBadNumericValue = errors.New("bad numeric value")
)

// ValidationError reports a malformed query value.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidQuery
}

// FetchErrorKind tags the failure classes of a fetch.
type FetchErrorKind int

const (
	FetchTransport FetchErrorKind = iota + 1
	FetchMalformed
	FetchRejected
)

func (k FetchErrorKind) String() string {
	switch k {
	case FetchTransport:
		return "transport"
	case FetchMalformed:
		return "malformed_response"
	case FetchRejected:
		return "api_rejected"
	default:
		return "unknown"
	}
}

// FetchError is returned by fetchers. Code and Message are set for rejected
// requests; Body holds the raw response for malformed ones.
type FetchError struct {
	Kind       FetchErrorKind
	Code       string
	Message    string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchRejected:
		return fmt.Sprintf("api rejected request: %s (code %s)", e.Message, e.Code)
	case FetchMalformed:
		if e.Err != nil {
			return fmt.Sprintf("malformed response: %v", e.Err)
		}
		return "malformed response"
	default:
		if e.StatusCode != 0 {
			return fmt.Sprintf("transport failure: unexpected status %d", e.StatusCode)
		}
		if e.Err != nil {
			return fmt.Sprintf("transport failure: %v", e.Err)
		}
		return "transport failure"
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == FetchTransport
	case ErrMalformedResponse:
		return e.Kind == FetchMalformed
	case ErrAPIRejected:
		return e.Kind == FetchRejected
	}
	return false
}

// SchemaErrorKind tags normalization failures.
type SchemaErrorKind int

const (
	MissingField SchemaErrorKind = iota + 1
	BadNumericValue
)

func (k SchemaErrorKind) String() string {
	switch k {
	case MissingField:
		return "missing_field"
	case BadNumericValue:
		return "bad_numeric_value"
	default:
		return "unknown"
	}
}

// SchemaError fails a whole normalization batch. Row is the zero-based item index.
type SchemaError struct {
	Kind  SchemaErrorKind
	Field string
	Row   int
	Value string
}

func (e *SchemaError) Error() string {
	if e.Kind == BadNumericValue {
		return fmt.Sprintf("row %d: field %s has non-numeric value %q", e.Row, e.Field, e.Value)
	}
	return fmt.Sprintf("row %d: missing required field %s", e.Row, e.Field)
}

func (e *SchemaError) Is(target error) bool {
	switch target {
	case ErrMissingField:
		return e.Kind == MissingField
	case ErrBadNumericValue:
		return e.Kind == BadNumericValue
	}
	return false
}

// ErrorKind returns a stable tag for err suitable for logs and JSON payloads.
func ErrorKind(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind.String()
	}
	var se *SchemaError
	if errors.As(err, &se) {
		return se.Kind.String()
	}
	if errors.Is(err, ErrInvalidQuery) {
		return "invalid_query"
	}
	if errors.Is(err, ErrMissingCredential) {
		return "missing_credential"
	}
	return "internal"
}
