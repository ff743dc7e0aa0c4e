package apperrs

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindConfig    Kind = "config"
	KindInvalid   Kind = "invalid"
	KindSignature Kind = "signature"
	KindProvider  Kind = "provider"
	KindInternal  Kind = "internal"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error // wrapped error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Config(msg string) *Error {
	return &Error{Kind: KindConfig, Msg: msg}
}

func Invalid(msg string) *Error {
	return &Error{Kind: KindInvalid, Msg: msg}
}

func Signature(msg string, err error) *Error {
	return &Error{Kind: KindSignature, Msg: msg, Err: err}
}

func Provider(msg string, err error) *Error {
	return &Error{Kind: KindProvider, Msg: msg, Err: err}
}

func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// HTTPStatus maps an error to the status code returned to the caller.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalid, KindSignature, KindProvider:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text safe to show to the caller. Internal failures are masked.
func PublicMessage(err error) string {
	var appErr *Error
	if !errors.As(err, &appErr) || appErr.Kind == KindInternal {
		return "internal error"
	}
	return appErr.Msg
}
