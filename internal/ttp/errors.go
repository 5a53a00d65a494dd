package ttp

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes control-plane errors.
type ErrorCode string

const (
	// ErrCodeAlreadyArmed indicates Arm was called while recording.
	ErrCodeAlreadyArmed ErrorCode = "ALREADY_ARMED"

	// ErrCodeBusy indicates an operation that requires the disarmed state
	// (SetClock, export) ran while armed.
	ErrCodeBusy ErrorCode = "BUSY"

	// ErrCodeInvalidWhileArmed indicates Reset was called while armed.
	ErrCodeInvalidWhileArmed ErrorCode = "INVALID_WHILE_ARMED"

	// ErrCodeInvalidCommand indicates an unrecognized control token.
	ErrCodeInvalidCommand ErrorCode = "INVALID_COMMAND"

	// ErrCodeOutOfMemory indicates the stores could not be allocated.
	ErrCodeOutOfMemory ErrorCode = "OUT_OF_MEMORY"

	// ErrCodeOutputTooSmall indicates an export buffer shorter than MaxLineLen.
	ErrCodeOutputTooSmall ErrorCode = "OUTPUT_TOO_SMALL"

	// ErrCodeNoSuchContext indicates a context index outside 0..N-1.
	ErrCodeNoSuchContext ErrorCode = "NO_SUCH_CONTEXT"

	// ErrCodeInvalidConfig indicates unusable construction options.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"

	// ErrCodeClosed indicates the tracer has been torn down.
	ErrCodeClosed ErrorCode = "CLOSED"
)

// Error is returned by every control-plane operation.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the operation that failed ("arm", "reset", "export", ...).
	Op string

	// Message is a human-readable description.
	Message string
}

// Sentinels for errors.Is. Only Code is compared.
var (
	ErrAlreadyArmed      = &Error{Code: ErrCodeAlreadyArmed, Message: "recording already armed"}
	ErrBusy              = &Error{Code: ErrCodeBusy, Message: "recording is armed"}
	ErrInvalidWhileArmed = &Error{Code: ErrCodeInvalidWhileArmed, Message: "not allowed while armed"}
	ErrInvalidCommand    = &Error{Code: ErrCodeInvalidCommand, Message: "unrecognized command"}
	ErrOutOfMemory       = &Error{Code: ErrCodeOutOfMemory, Message: "cannot allocate event storage"}
	ErrOutputTooSmall    = &Error{Code: ErrCodeOutputTooSmall, Message: "output buffer too small"}
	ErrNoSuchContext     = &Error{Code: ErrCodeNoSuchContext, Message: "no such context"}
	ErrInvalidConfig     = &Error{Code: ErrCodeInvalidConfig, Message: "invalid configuration"}
	ErrClosed            = &Error{Code: ErrCodeClosed, Message: "tracer closed"}
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newError(code ErrorCode, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the error code from err, or "" if err is not an *Error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsBusy returns true if err means "recording is armed, try again after
// Disarm": ALREADY_ARMED, BUSY or INVALID_WHILE_ARMED.
func IsBusy(err error) bool {
	switch CodeOf(err) {
	case ErrCodeAlreadyArmed, ErrCodeBusy, ErrCodeInvalidWhileArmed:
		return true
	}
	return false
}
