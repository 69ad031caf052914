// Package errors carries machine-readable codes through metalroute.
//
// Every error that crosses a package boundary is an [*Error] with a [Code].
// The CLI prints the code next to the message, the HTTP API returns it in
// the JSON body, and the router copies it into each unrouted marker of a
// resolution. Codes fall into three groups:
//
//   - INVALID_* and *_NOT_FOUND: the job, its technology or the options are
//     unusable and nothing was routed
//   - UNROUTABLE_ENDPOINT, SEARCH_*, DESIGN_RULE_CONFLICT: one request
//     failed and the batch continued
//   - ALREADY_ROUTED: a request whose terminals were already connected
//
// [Retryable] selects the failures that get the relaxed retry pass and
// [IsFailure] separates real failures from ALREADY_ROUTED.
//
//	err := errors.New(errors.ErrCodeInvalidLayer, "unknown layer %q", name)
//	if errors.Is(err, errors.ErrCodeInvalidLayer) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Code is a stable identifier for a class of failure.
type Code string

const (
	// Job, technology and option validation
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidLayer    Code = "INVALID_LAYER"
	ErrCodeInvalidGeometry Code = "INVALID_GEOMETRY"
	ErrCodeInvalidConfig   Code = "INVALID_CONFIG"
	ErrCodeInvalidFormat   Code = "INVALID_FORMAT"

	// Missing inputs
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"

	// Per-request routing outcomes
	ErrCodeUnroutableEndpoint Code = "UNROUTABLE_ENDPOINT"
	ErrCodeSearchExhausted    Code = "SEARCH_EXHAUSTED"
	ErrCodeSearchLimited      Code = "SEARCH_LIMITED"
	ErrCodeSearchAborted      Code = "SEARCH_ABORTED"
	ErrCodeDesignRule         Code = "DESIGN_RULE_CONFLICT"
	ErrCodeAlreadyRouted      Code = "ALREADY_ROUTED"

	// Cache and server backends
	ErrCodeTimeout Code = "TIMEOUT"

	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error pairs a Code with a message and an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New returns an error with code and a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap is like New but keeps cause in the chain.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether the first *Error in err's chain has code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode returns the code of the first *Error in err's chain, or "".
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns the message without the code prefix. Errors without
// a code are returned as err.Error().
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// Retryable reports whether a routing failure with the given code may succeed
// when resubmitted with a relaxed step budget. Exhausted and limited searches
// qualify; aborted searches and invalid endpoints do not.
func Retryable(code Code) bool {
	switch code {
	case ErrCodeSearchExhausted, ErrCodeSearchLimited:
		return true
	}
	return false
}

// IsFailure reports whether err represents a real routing failure. Nil errors
// and AlreadyRouted outcomes are not failures.
func IsFailure(err error) bool {
	return err != nil && !Is(err, ErrCodeAlreadyRouted)
}
