// Package apperr carries an intended HTTP status (and an optional
// machine-readable code) from handlers and services to the single error
// middleware that writes responses.
package apperr

import (
	"errors"
	"net/http"
	"strconv"
	"time"
)

const (
	CodeInvalidRequest = "invalid_request"
	CodeUnauthorized   = "unauthorized"
	CodeTokenExpired   = "token_expired"
	CodeForbidden      = "forbidden"
	CodeNotFound       = "not_found"
	CodeConflict       = "conflict"
	CodeRateLimited    = "rate_limited"
	CodeInternal       = "internal_error"
)

// ExpiredTokenChallenge is the WWW-Authenticate value sent only when an access
// token failed verification because its validity window has passed.
const ExpiredTokenChallenge = `Bearer error="token_expired", error_description="the access token expired"`

type Error struct {
	Status  int
	Code    string
	Message string
	Details any
	Header  http.Header
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap returns a copy of e that records cause for logs. The cause is never
// written to the client.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

func BadRequest(message string, details any) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeInvalidRequest, Message: message, Details: details}
}

func Unauthorized(code, message string) *Error {
	if code == "" {
		code = CodeUnauthorized
	}
	return New(http.StatusUnauthorized, code, message)
}

// TokenExpired is the only 401 that carries the expiry challenge header.
func TokenExpired() *Error {
	h := http.Header{}
	h.Set("WWW-Authenticate", ExpiredTokenChallenge)

	return &Error{
		Status:  http.StatusUnauthorized,
		Code:    CodeTokenExpired,
		Message: "access token expired",
		Header:  h,
	}
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, CodeForbidden, message)
}

func NotFound(message string) *Error {
	return New(http.StatusNotFound, CodeNotFound, message)
}

func Conflict(message string) *Error {
	return New(http.StatusConflict, CodeConflict, message)
}

func TooManyRequests(retryAfter time.Duration) *Error {
	secs := int(retryAfter.Seconds())
	if secs < 0 {
		secs = 0
	}

	h := http.Header{}
	h.Set("Retry-After", strconv.Itoa(secs))

	return &Error{
		Status:  http.StatusTooManyRequests,
		Code:    CodeRateLimited,
		Message: "Too many requests. Please try again shortly.",
		Header:  h,
	}
}

func Internal(cause error) *Error {
	return &Error{
		Status:  http.StatusInternalServerError,
		Code:    CodeInternal,
		Message: "internal server error",
		Err:     cause,
	}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
