package apperrors

import (
	"errors"
	"strings"
)

type appError struct {
	msg    string
	base   error
	causes []error
}

func (e *appError) Error() string {
	return e.msg
}

// ErrorAll returns the message followed by the messages of attached causes.
// Causes repeating the message are skipped.
func (e *appError) ErrorAll() string {
	var b strings.Builder
	b.WriteString(e.msg)
	for _, err := range e.causes {
		if err.Error() == e.msg {
			continue
		}
		b.WriteString(": ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e *appError) Unwrap() error {
	return e.base
}

func (e *appError) UnwrapAll() []error {
	return e.causes
}

func (e *appError) New(msg string) Error {
	return &appError{
		msg:  msg,
		base: e,
	}
}

func (e *appError) Msg(msg string) Error {
	return &appError{
		msg:    msg,
		base:   e,
		causes: append([]error{e}, e.causes...),
	}
}

func (e *appError) MsgErr(msg string, errs ...error) Error {
	return &appError{
		msg:    msg,
		base:   e,
		causes: append([]error{e}, nonNil(errs)...),
	}
}

func (e *appError) Err(errs ...error) Error {
	return &appError{
		msg:    e.msg,
		base:   e,
		causes: append([]error{e}, nonNil(errs)...),
	}
}

// Is reports whether target is the base error or any attached cause.
func (e *appError) Is(target error) bool {
	if target == nil {
		return false
	}
	if errors.Is(e.base, target) {
		return true
	}
	for _, err := range e.causes {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// New creates a root error with the given message.
func New(msg string) Error {
	return &appError{msg: msg}
}

func nonNil(errs []error) []error {
	out := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}
