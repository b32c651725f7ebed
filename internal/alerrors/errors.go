// Package alerrors wraps pkg/errors and adds the error codes reported by the
// access layer: context, backend and lowlevel failures.
package alerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code classifies an error. Use Is to check an error against a Code.
type Code string

const (
	// ContextErr reports a malformed or inconsistent access request.
	ContextErr Code = "CONTEXT_ERR"
	// BackendErr reports a failure while resolving or executing I/O.
	BackendErr Code = "BACKEND_ERR"
	// LowlevelErr reports a failure of the context handle store.
	LowlevelErr Code = "LOWLEVEL_ERR"
	// UnknownErr is used for errors carrying no code.
	UnknownErr Code = "UNKNOWN_ERR"
)

// Status codes of the C-style API, indexed by Code.
const (
	StatusOK       = 0
	StatusUnknown  = -1
	StatusContext  = -2
	StatusBackend  = -3
	StatusLowlevel = -4
)

func New(code Code, message string) error {
	return errors.WithStack(codedError{Code: code, Message: message})
}

func Errorf(code Code, format string, args ...interface{}) error {
	return New(code, fmt.Sprintf(format, args...))
}

func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

func Cause(err error) error {
	return errors.Cause(err)
}

func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is reports whether err, or any error it wraps, carries the given code.
func Is(err error, target Code) bool {
	return errors.Is(err, codedError{Code: target})
}

// CodeOf returns the code of err, or UnknownErr when it has none.
func CodeOf(err error) Code {
	var ce codedError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return UnknownErr
}

// StatusCode maps err to the integer status of the C-style API.
func StatusCode(err error) int {
	if err == nil {
		return StatusOK
	}
	switch CodeOf(err) {
	case ContextErr:
		return StatusContext
	case BackendErr:
		return StatusBackend
	case LowlevelErr:
		return StatusLowlevel
	}
	return StatusUnknown
}

type codedError struct {
	Code    Code
	Message string
}

func (ce codedError) Error() string {
	return ce.Message
}

func (ce codedError) Is(err error) bool {
	if e, ok := err.(codedError); ok && ce.Code == e.Code {
		return true
	}
	return false
}
