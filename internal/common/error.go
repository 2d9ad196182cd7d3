// Package common defines shared constants and errors used across the
// tokenkeeper server and its admin tooling. Callers should use errors.Is
// or CodeOf to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")
)

// Code classifies a domain failure. Transports map each code to a fixed
// response status.
type Code int

const (
	CodeInternal Code = iota
	CodeConflict
	CodeInvalidCredentials
	CodeForbidden
	CodeInvalidToken
	CodeExpired
	CodeNotFound
	CodeInvalidInput
)

func (c Code) String() string {
	switch c {
	case CodeConflict:
		return "conflict"
	case CodeInvalidCredentials:
		return "invalid_credentials"
	case CodeForbidden:
		return "forbidden"
	case CodeInvalidToken:
		return "invalid_token"
	case CodeExpired:
		return "expired"
	case CodeNotFound:
		return "not_found"
	case CodeInvalidInput:
		return "invalid_input"
	default:
		return "internal"
	}
}

// Error is a coded domain error. Message is safe to show to clients,
// Err keeps the underlying cause for logs.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func NewError(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf returns the code carried by err. Errors that are not *Error are
// reported as CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Is reports whether err is a coded error with the given code.
func Is(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// MessageOf returns the client-facing message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
