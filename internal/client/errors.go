package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

type ErrorCode string

const (
	ErrorInvalidInput         ErrorCode = "INVALID_INPUT"
	ErrorAuthenticationFailed ErrorCode = "AUTHENTICATION_FAILED"
	ErrorUnauthenticated      ErrorCode = "UNAUTHENTICATED"
	ErrorSessionExpired       ErrorCode = "SESSION_EXPIRED"
	ErrorBackend              ErrorCode = "BACKEND_ERROR"
	ErrorNetwork              ErrorCode = "NETWORK_FAILURE"
	ErrorStorage              ErrorCode = "STORAGE_FAILURE"
)

// Error is the classified failure surfaced to the presentation layer.
// StatusCode is set when the backend answered with a non-success status.
type Error struct {
	Code       ErrorCode
	Reason     string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("client: %s (%s)", e.Code, e.Reason)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("client: %s (%s, status %d)", e.Code, e.Reason, e.StatusCode)
	}
	if e.Err == nil {
		return msg
	}
	return msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// CodeOf returns the classification of err, or "" if err is not an *Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err is an *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

func statusCodeOf(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

// isNetworkFailure reports transport-level failures: the request never got
// an HTTP response.
func isNetworkFailure(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
