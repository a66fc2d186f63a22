// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package http1

import (
	"errors"
	"io"
	"mime"
	"strings"
	"sync"
)

// Line is the request line of a [Request].
type Line struct {
	Method string
	Target string
	Proto  string
}

// IsZero reports whether l is the zero Line, which is the case for
// requests that are parts of a multipart body.
func (l Line) IsZero() bool {
	return l == Line{}
}

// String returns the line as it appears on the wire, without CRLF.
func (l Line) String() string {
	return l.Method + " " + l.Target + " " + l.Proto
}

// Request is a raw HTTP/1.x request. It's built once and not modified
// afterwards, except for the resources registered with [Request.OnClose].
type Request struct {
	Line   Line
	Header Header

	// Body closes the whole Request, see [Request.Close].
	Body io.ReadCloser

	body     io.ReadCloser
	mu       sync.Mutex
	closed   bool
	closeErr error
	closers  []io.Closer
}

// NewRequest returns a Request reading its body from body. A nil body
// is an empty body. If body implements [io.Closer] it's closed when the
// Request or its Body is closed.
func NewRequest(line Line, header Header, body io.Reader) *Request {
	var rc io.ReadCloser
	switch x := body.(type) {
	case nil:
		rc = NoBody
	case io.ReadCloser:
		rc = x
	default:
		rc = io.NopCloser(x)
	}
	r := &Request{
		Line:   line,
		Header: header,
		body:   rc,
	}
	r.Body = requestBody{ReadCloser: rc, r: r}
	return r
}

type requestBody struct {
	io.ReadCloser
	r *Request
}

func (b requestBody) Close() error {
	return b.r.Close()
}

// Head returns the request line followed by every header line, in
// wire order and without CRLF. Parts have no request line.
func (r *Request) Head() []string {
	ls := make([]string, 0, len(r.Header)+1)
	if !r.Line.IsZero() {
		ls = append(ls, r.Line.String())
	}
	return append(ls, r.Header.Lines()...)
}

// MediaType parses the Content-Type header.
func (r *Request) MediaType() (string, map[string]string, error) {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return "", nil, nil
	}
	return mime.ParseMediaType(ct)
}

// OnClose registers c to be closed when the request is closed. If the
// request is already closed, c is closed immediately.
func (r *Request) OnClose(c io.Closer) {
	r.mu.Lock()
	if !r.closed {
		r.closers = append(r.closers, c)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	c.Close()
}

// Close closes the body and then every registered closer in reverse
// registration order, e.g. the parts of a multipart form. Closing
// Body does the same. Only the first call has any effect.
func (r *Request) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return r.closeErr
	}
	r.closed = true

	errs := make([]error, 0, len(r.closers)+1)
	if r.body != nil {
		errs = append(errs, r.body.Close())
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i].Close())
	}
	r.closers = nil
	r.closeErr = errors.Join(errs...)
	return r.closeErr
}

// KeepAlive reports whether the client asked for the connection to
// stay open after this request.
func (r *Request) KeepAlive() bool {
	if r.Header.HasToken("Connection", "close") {
		return false
	}
	if strings.EqualFold(r.Line.Proto, "HTTP/1.0") {
		return r.Header.HasToken("Connection", "keep-alive")
	}
	return true
}

// NoBody is an empty request body.
var NoBody = noBody{}

type noBody struct{}

func (noBody) Read([]byte) (int, error) { return 0, io.EOF }
func (noBody) Close() error             { return nil }
