// Package errs provides structured error types and helpers for the simulator.
package errs

import (
	"errors"
	"strconv"
	"strings"
)

// Code identifies an error category within the simulator taxonomy.
type Code string

const (
	// CodeInvalidConfig indicates invalid run configuration supplied by the caller.
	CodeInvalidConfig Code = "invalid_config"
	// CodeMissingData indicates absent or empty reference data collections.
	CodeMissingData Code = "missing_data"
	// CodeNetwork indicates a network transport failure while posting events.
	CodeNetwork Code = "network"
	// CodeEndpoint indicates an error response from the ingestion endpoint.
	CodeEndpoint Code = "endpoint_error"
	// CodeUnavailable indicates a component is closed or temporarily unavailable.
	CodeUnavailable Code = "unavailable"
	// CodeInternal captures uncategorized internal failures.
	CodeInternal Code = "internal"
)

// E captures structured error information produced across the simulator stack.
type E struct {
	Component string
	Code      Code
	HTTP      int
	Message   string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the component and error code.
func New(component string, code Code, opts ...Option) *E {
	e := &E{
		Component: strings.TrimSpace(component),
		Code:      code,
		HTTP:      0,
		Message:   "",
		cause:     nil,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithHTTP records the associated HTTP status code.
func WithHTTP(status int) Option {
	return func(e *E) {
		e.HTTP = status
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	component := strings.TrimSpace(e.Component)
	if component == "" {
		component = "unknown"
	}
	parts = append(parts, "component="+component)

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = "unknown"
	}
	parts = append(parts, "code="+code)

	if e.HTTP > 0 {
		parts = append(parts, "http="+strconv.Itoa(e.HTTP))
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// HasCode reports whether err carries the given simulator error code.
func HasCode(err error, code Code) bool {
	var e *E
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// MissingData returns a standardized error for absent or empty reference collections.
func MissingData(component, msg string) *E {
	return New(component, CodeMissingData, WithMessage(strings.TrimSpace(msg)))
}
