package errors

import (
	"errors"
	"fmt"
)

var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)

// codedError is immutable. The With methods return modified copies.
type codedError struct {
	code  ErrorCode
	msg   string
	cause error
	data  any
}

func (e *codedError) Error() string {
	text := e.msg
	if text == "" {
		text = GetErrorMessage(e.code)
	}

	switch {
	case e.data != nil:
		return fmt.Sprintf("%s: %v", text, e.data)
	case e.cause != nil:
		return text + ": " + e.cause.Error()
	default:
		return text
	}
}

func (e *codedError) Code() ErrorCode { return e.code }

func (e *codedError) GetData() any { return e.data }

func (e *codedError) Unwrap() error { return e.cause }

// Is matches any Error carrying the same code
func (e *codedError) Is(target error) bool {
	t, ok := target.(Error)
	return ok && t.Code() == e.code
}

func (e *codedError) WithMessage(msg string) Error {
	c := *e
	c.msg = msg

	return &c
}

func (e *codedError) WithData(data any) Error {
	c := *e
	c.data = data

	return &c
}

type factory struct{}

// New returns the error factory
func New() Factory {
	return factory{}
}

func (factory) New(code ErrorCode) Error {
	return &codedError{code: code}
}

func (factory) Wrap(code ErrorCode, err error) Error {
	return &codedError{code: code, cause: err}
}

func (factory) WithMessage(code ErrorCode, msg string) Error {
	return &codedError{code: code, msg: msg}
}

func (factory) WithData(code ErrorCode, data any) Error {
	return &codedError{code: code, data: data}
}

// HasCode reports whether err, or any error it wraps, carries code
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var coded Error
		if !errors.As(err, &coded) {
			return false
		}
		if coded.Code() == code {
			return true
		}
		err = coded.Unwrap()
	}

	return false
}
