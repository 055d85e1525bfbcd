// Package errors provides typed domain errors shared by the pricing, quota and
// analysis packages.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Type identifies the category of error
type Type string

const (
	// TypeConfig indicates structurally invalid input or configuration
	TypeConfig Type = "CONFIG_ERROR"

	// TypeNetwork indicates a failed HTTP exchange (transport error or status >= 400)
	TypeNetwork Type = "NETWORK_ERROR"

	// TypeTimeout indicates an HTTP call exceeded its configured timeout
	TypeTimeout Type = "TIMEOUT_ERROR"

	// TypeParsing indicates a malformed response body or input file
	TypeParsing Type = "PARSING_ERROR"

	// TypePricing indicates no usable price could be resolved
	TypePricing Type = "PRICING_ERROR"

	// TypeAuth indicates a credential could not produce a token
	TypeAuth Type = "AUTH_ERROR"

	// TypeInternal indicates an internal error
	TypeInternal Type = "INTERNAL_ERROR"
)

// Error represents a domain error with context
type Error struct {
	Type    Type                   `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new error
func New(errType Type, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// Newf creates a new formatted error
func Newf(errType Type, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with context
func Wrap(errType Type, message string, cause error) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an error with formatted context
func Wrapf(errType Type, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsType checks if any error in err's chain is of a specific type
func IsType(err error, t Type) bool {
	for err != nil {
		e, ok := As(err)
		if !ok {
			return false
		}
		if e.Type == t {
			return true
		}
		err = e.Cause
	}
	return false
}

// Config creates a configuration error
func Config(message string) *Error {
	return New(TypeConfig, message)
}

// HTTPStatus creates a network error for a non-success response.
func HTTPStatus(status int, path string) *Error {
	return Newf(TypeNetwork, "request to %s failed with status %d", path, status).
		WithContext("status", status).
		WithContext("path", path)
}

// Timeout creates a timeout error carrying the configured limit.
func Timeout(path string, limit interface{}, cause error) *Error {
	return Wrapf(TypeTimeout, cause, "request to %s timed out after %v", path, limit).
		WithContext("timeout", limit).
		WithContext("path", path)
}
