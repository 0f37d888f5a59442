// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-rpc.

package api

import (
	"fmt"

	"code.hybscloud.com/iox"
)

// Common errors used across the library.
var (
	ErrTransportClosed   = fmt.Errorf("transport is closed")
	ErrInvalidArgument   = fmt.Errorf("invalid argument")
	ErrResourceExhausted = fmt.Errorf("resource exhausted")
	ErrNotSupported      = fmt.Errorf("operation not supported")
	ErrAlreadyExists     = fmt.Errorf("resource already exists")
	ErrNotFound          = fmt.Errorf("resource not found")
)

// Datapath errors. They are allocated once so that failing submissions stay
// allocation-free; compare with errors.Is or by identity.
var (
	ErrInvalidSessionArg = &Error{
		Code:    ErrCodeInvalidSessionArg,
		Message: "invalid session argument",
		shared:  true,
	}
	ErrInvalidMsgBufferArg = &Error{
		Code:    ErrCodeInvalidMsgBufferArg,
		Message: "invalid message buffer argument",
		shared:  true,
	}
	ErrNoSessionMsgSlots = &Error{
		Code:    ErrCodeNoSessionMsgSlots,
		Message: "no free session message slots",
		cause:   iox.ErrWouldBlock,
		shared:  true,
	}
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeResourceExhausted
	ErrCodeTimeout
	ErrCodeNotSupported
	ErrCodeAlreadyExists
	ErrCodeNotFound
	ErrCodeInternal
	ErrCodeInvalidSessionArg
	ErrCodeInvalidMsgBufferArg
	ErrCodeNoSessionMsgSlots
)

var errorCodeNames = [...]string{
	ErrCodeOK:                  "ok",
	ErrCodeInvalidArgument:     "invalid_argument",
	ErrCodeResourceExhausted:   "resource_exhausted",
	ErrCodeTimeout:             "timeout",
	ErrCodeNotSupported:        "not_supported",
	ErrCodeAlreadyExists:       "already_exists",
	ErrCodeNotFound:            "not_found",
	ErrCodeInternal:            "internal",
	ErrCodeInvalidSessionArg:   "invalid_session_arg",
	ErrCodeInvalidMsgBufferArg: "invalid_msgbuffer_arg",
	ErrCodeNoSessionMsgSlots:   "no_session_msg_slots",
}

func (c ErrorCode) String() string {
	if c >= 0 && int(c) < len(errorCodeNames) {
		return errorCodeNames[c]
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Errno returns the wire/ABI form of the code: 0 for success, negative otherwise.
func (c ErrorCode) Errno() int {
	return -int(c)
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	cause   error
	shared  bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// Unwrap exposes the underlying condition, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// Is matches a preallocated error by code, so copies made by WithContext
// still satisfy errors.Is against the original value.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.shared && t.Code == e.Code
}

// WithContext adds context information to the error. The preallocated
// datapath errors are never modified; a copy carrying the context is
// returned instead.
func (e *Error) WithContext(key string, value any) *Error {
	if e.shared {
		c := *e
		c.shared = false
		c.Context = nil
		e = &c
	}
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CodeOf extracts the ErrorCode carried by err. Nil maps to ErrCodeOK and
// errors without a code map to ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return ErrCodeInternal
}
