// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package http1

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrMalformedRequestLine = errors.New("malformed request line")
	ErrUnsupportedVersion   = errors.New("unsupported protocol version")
	ErrMalformedHeader      = errors.New("malformed header line")
	ErrUnterminatedHead     = errors.New("unterminated request head")
	ErrHeaderTooLarge       = errors.New("request head too large")
	ErrInvalidContentLength = errors.New("invalid content length")
	ErrAmbiguousLength      = errors.New("both content length and transfer encoding were provided")
	ErrUnsupportedEncoding  = errors.New("unsupported transfer encoding")
	ErrLengthRequired       = errors.New("request body length required")
	ErrInvalidChunk         = errors.New("invalid chunked encoding")
	ErrTruncatedBody        = errors.New("request body shorter than declared")
)

// StatusError is an error which declares the HTTP status it should be
// answered with. Handlers return it to control the response status of
// a failure and the reader returns it for protocol errors.
type StatusError struct {
	Code  int
	Cause error
}

// Errorf returns a [StatusError] with the given code and a formatted cause.
// The format supports %w.
func Errorf(code int, format string, args ...any) error {
	return StatusError{
		Code:  code,
		Cause: fmt.Errorf(format, args...),
	}
}

// Error implements the [builtin.error] interface.
func (e StatusError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("%d %s: %s", e.Code, http.StatusText(e.Code), e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e StatusError) Unwrap() error {
	return e.Cause
}

// StatusCode returns the code declared by the first [StatusError] in
// err's chain, or def if there is none.
func StatusCode(err error, def int) int {
	var serr StatusError
	if errors.As(err, &serr) && serr.Code >= 100 && serr.Code <= 999 {
		return serr.Code
	}
	return def
}
