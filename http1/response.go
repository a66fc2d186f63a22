// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package http1

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/z5labs/takes/internal/try"

	"github.com/valyala/bytebufferpool"
)

// ErrShortBody is returned by [Response.Write] when the body ends
// before the declared Content-Length.
var ErrShortBody = errors.New("response body shorter than declared content length")

// Response is what a [Handler] produces for a [Request].
type Response struct {
	Status int

	// Reason overrides the standard reason phrase for Status.
	Reason string
	Header Header

	// Body is closed after it's written if it implements [io.Closer].
	Body io.Reader
}

// Text returns a text/plain response.
func Text(status int, body string) *Response {
	return &Response{
		Status: status,
		Header: Header{{Name: "Content-Type", Value: "text/plain; charset=utf-8"}},
		Body:   strings.NewReader(body),
	}
}

// ErrorResponse returns the response a failed request is answered with.
// The status is taken from the first [StatusError] in err's chain and
// defaults to 500. Client errors always describe the failure; server
// errors only do so when verbose is set, in which case a recovered
// panic also includes its stack.
func ErrorResponse(err error, verbose bool) *Response {
	code := StatusCode(err, http.StatusInternalServerError)

	var sb strings.Builder
	sb.WriteString(strconv.Itoa(code))
	sb.WriteByte(' ')
	sb.WriteString(http.StatusText(code))
	sb.WriteByte('\n')
	if code < 500 || verbose {
		sb.WriteByte('\n')
		sb.WriteString(err.Error())
		sb.WriteByte('\n')
	}

	var perr try.PanicError
	if verbose && errors.As(err, &perr) {
		sb.WriteByte('\n')
		sb.Write(perr.Stack)
	}
	return Text(code, sb.String())
}

type writeOptions struct {
	omitBody  bool
	keepAlive *bool
	now       func() time.Time
}

// WriteOption configures [Response.Write].
type WriteOption func(*writeOptions)

// OmitBody writes the head only, e.g. for a HEAD request. The
// Content-Length is still computed from the body.
func OmitBody() WriteOption {
	return func(wo *writeOptions) {
		wo.omitBody = true
	}
}

// KeepAlive sets the Connection header of the written response,
// replacing any value set by the handler.
func KeepAlive(keep bool) WriteOption {
	return func(wo *writeOptions) {
		wo.keepAlive = &keep
	}
}

// Write serializes resp onto w as an HTTP/1.1 response and flushes it.
//
// A body without a declared Content-Length is buffered to compute one,
// unless the handler set Transfer-Encoding: chunked in which case it's
// chunk encoded while it's copied.
func (resp *Response) Write(w io.Writer, opts ...WriteOption) (err error) {
	wo := &writeOptions{
		now: time.Now,
	}
	for _, opt := range opts {
		opt(wo)
	}
	defer try.Close(&err, resp.Body)

	bw, ok := w.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriter(w)
	}

	header := resp.Header
	if wo.keepAlive != nil {
		header = header.Without("Connection")
		if *wo.keepAlive {
			header = header.With("Connection", "keep-alive")
		} else {
			header = header.With("Connection", "close")
		}
	}
	if !header.Has("Date") {
		header = header.With("Date", wo.now().UTC().Format(http.TimeFormat))
	}

	body := resp.Body
	if body == nil || !allowsBody(resp.Status) {
		body = NoBody
	}

	switch {
	case !allowsBody(resp.Status):
		err = writeHead(bw, resp, header)
	case header.HasToken("Transfer-Encoding", "chunked"):
		err = writeChunked(bw, resp, header, body, wo.omitBody)
	case header.Has("Content-Length"):
		err = writeDeclared(bw, resp, header, body, wo.omitBody)
	default:
		err = writeBuffered(bw, resp, header, body, wo.omitBody)
	}
	if err != nil {
		return err
	}
	return bw.Flush()
}

func allowsBody(status int) bool {
	return status >= 200 && status != http.StatusNoContent && status != http.StatusNotModified
}

func writeHead(bw *bufio.Writer, resp *Response, header Header) error {
	reason := resp.Reason
	if reason == "" {
		reason = http.StatusText(resp.Status)
	}
	_, err := fmt.Fprintf(bw, "HTTP/1.1 %d %s\r\n", resp.Status, reason)
	if err != nil {
		return err
	}
	for _, f := range header {
		_, err = bw.WriteString(f.Name + ": " + f.Value + "\r\n")
		if err != nil {
			return err
		}
	}
	_, err = bw.WriteString("\r\n")
	return err
}

func writeDeclared(bw *bufio.Writer, resp *Response, header Header, body io.Reader, omitBody bool) error {
	n, err := strconv.ParseInt(header.Get("Content-Length"), 10, 64)
	if err != nil || n < 0 {
		return fmt.Errorf("invalid response content length: %q", header.Get("Content-Length"))
	}
	err = writeHead(bw, resp, header)
	if err != nil || omitBody {
		return err
	}
	written, err := io.CopyN(bw, body, n)
	if errors.Is(err, io.EOF) || written < n {
		return ErrShortBody
	}
	return err
}

func writeBuffered(bw *bufio.Writer, resp *Response, header Header, body io.Reader, omitBody bool) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	_, err := buf.ReadFrom(body)
	if err != nil {
		return err
	}
	header = header.With("Content-Length", strconv.Itoa(buf.Len()))
	err = writeHead(bw, resp, header)
	if err != nil || omitBody {
		return err
	}
	_, err = bw.Write(buf.B)
	return err
}

func writeChunked(bw *bufio.Writer, resp *Response, header Header, body io.Reader, omitBody bool) error {
	err := writeHead(bw, resp, header)
	if err != nil || omitBody {
		return err
	}

	buf := make([]byte, 32*1024)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			_, err = fmt.Fprintf(bw, "%x\r\n", n)
			if err != nil {
				return err
			}
			_, err = bw.Write(buf[:n])
			if err != nil {
				return err
			}
			_, err = bw.WriteString("\r\n")
			if err != nil {
				return err
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return rerr
		}
	}
	_, err = bw.WriteString("0\r\n\r\n")
	return err
}
