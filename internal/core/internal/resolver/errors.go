package resolver

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrEarlyResponse means the workflow responded before the result was ready.
var ErrEarlyResponse = errors.New("workflow responded before the result was ready")

// Kind classifies resolution failures.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindHTTP
	KindTimeout
	KindConfiguration
	KindMalformedResponse
	KindUnexpectedFormat
	KindTransport
)

var kindNames = map[Kind]string{
	KindValidation:        "validation",
	KindHTTP:              "http",
	KindTimeout:           "timeout",
	KindConfiguration:     "configuration",
	KindMalformedResponse: "malformed_response",
	KindUnexpectedFormat:  "unexpected_format",
	KindTransport:         "transport",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return "ok"
}

// Error is returned for every failed resolution.
type Error struct {
	Kind       Kind
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindHTTP:
		return fmt.Sprintf("webhook call failed with status: %d", e.StatusCode)
	case e.Err != nil:
		return e.Kind.String() + ": " + e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: errors.Errorf(format, args...)}
}

// Validation creates an error for a submission rejected before any request is made.
func Validation(message string) error {
	return &Error{Kind: KindValidation, Err: errors.New(message)}
}

// KindOf returns the Kind of err.
// Errors not produced by this package are classified as transport errors.
func KindOf(err error) Kind {
	if err == nil {
		return 0
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindTransport
}
