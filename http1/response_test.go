// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package http1

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/z5labs/takes/internal/try"

	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time {
	return time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC)
}

func withFixedNow() WriteOption {
	return func(wo *writeOptions) {
		wo.now = fixedNow
	}
}

const fixedDate = "Date: Fri, 02 Jan 2026 03:04:05 GMT\r\n"

func TestResponse_Write(t *testing.T) {
	testCases := []struct {
		name   string
		resp   *Response
		opts   []WriteOption
		expect string
	}{
		{
			name:   "buffers a body to compute its length",
			resp:   Text(200, "hello"),
			expect: "HTTP/1.1 200 OK\r\nContent-Type: text/plain; charset=utf-8\r\n" + fixedDate + "Content-Length: 5\r\n\r\nhello",
		},
		{
			name: "copies a body with declared length",
			resp: &Response{
				Status: 201,
				Header: Header{{Name: "Content-Length", Value: "3"}},
				Body:   strings.NewReader("abcdef"),
			},
			expect: "HTTP/1.1 201 Created\r\nContent-Length: 3\r\n" + fixedDate + "\r\nabc",
		},
		{
			name: "chunk encodes when asked to",
			resp: &Response{
				Status: 200,
				Header: Header{{Name: "Transfer-Encoding", Value: "chunked"}},
				Body:   strings.NewReader("abc"),
			},
			expect: "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n" + fixedDate + "\r\n3\r\nabc\r\n0\r\n\r\n",
		},
		{
			name:   "omits the body of a no content response",
			resp:   &Response{Status: 204, Body: strings.NewReader("ignored")},
			expect: "HTTP/1.1 204 No Content\r\n" + fixedDate + "\r\n",
		},
		{
			name:   "omits the body when asked to",
			resp:   Text(200, "hello"),
			opts:   []WriteOption{OmitBody()},
			expect: "HTTP/1.1 200 OK\r\nContent-Type: text/plain; charset=utf-8\r\n" + fixedDate + "Content-Length: 5\r\n\r\n",
		},
		{
			name: "replaces the connection header",
			resp: &Response{
				Status: 200,
				Header: Header{{Name: "Connection", Value: "keep-alive"}},
			},
			opts:   []WriteOption{KeepAlive(false)},
			expect: "HTTP/1.1 200 OK\r\nConnection: close\r\n" + fixedDate + "Content-Length: 0\r\n\r\n",
		},
		{
			name:   "uses a custom reason",
			resp:   &Response{Status: 299, Reason: "Fine", Header: Header{{Name: "Date", Value: "x"}}},
			expect: "HTTP/1.1 299 Fine\r\nDate: x\r\nContent-Length: 0\r\n\r\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			opts := append([]WriteOption{withFixedNow()}, tc.opts...)

			err := tc.resp.Write(&buf, opts...)
			require.NoError(t, err)
			require.Equal(t, tc.expect, buf.String())
		})
	}
}

type trackedBody struct {
	io.Reader
	closed bool
}

func (b *trackedBody) Close() error {
	b.closed = true
	return nil
}

func TestResponse_Write_Failures(t *testing.T) {
	t.Run("fails if the body is shorter than declared", func(t *testing.T) {
		resp := &Response{
			Status: 200,
			Header: Header{{Name: "Content-Length", Value: "10"}},
			Body:   strings.NewReader("abc"),
		}

		err := resp.Write(io.Discard)
		require.ErrorIs(t, err, ErrShortBody)
	})

	t.Run("closes the body even on failure", func(t *testing.T) {
		body := &trackedBody{Reader: strings.NewReader("abc")}
		resp := &Response{
			Status: 200,
			Header: Header{{Name: "Content-Length", Value: "nope"}},
			Body:   body,
		}

		err := resp.Write(io.Discard)
		require.Error(t, err)
		require.True(t, body.closed)
	})
}

func TestErrorResponse(t *testing.T) {
	render := func(t *testing.T, resp *Response) string {
		t.Helper()
		b, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(b)
	}

	t.Run("uses the declared status and describes client errors", func(t *testing.T) {
		resp := ErrorResponse(Errorf(404, "no such thing: %s", "/x"), false)

		require.Equal(t, 404, resp.Status)
		body := render(t, resp)
		require.Contains(t, body, "404 Not Found")
		require.Contains(t, body, "no such thing: /x")
	})

	t.Run("hides server error details unless verbose", func(t *testing.T) {
		err := errors.New("database password is hunter2")

		resp := ErrorResponse(err, false)
		require.Equal(t, 500, resp.Status)
		require.NotContains(t, render(t, resp), "hunter2")

		resp = ErrorResponse(err, true)
		require.Contains(t, render(t, resp), "hunter2")
	})

	t.Run("includes the panic stack when verbose", func(t *testing.T) {
		f := func() (err error) {
			defer try.Recover(&err)
			panic("boom")
		}

		resp := ErrorResponse(f(), true)
		body := render(t, resp)
		require.Contains(t, body, "boom")
		require.Contains(t, body, "goroutine")
	})

	t.Run("unwraps wrapped status errors", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", StatusError{Code: 413, Cause: errors.New("too big")})

		require.Equal(t, 413, ErrorResponse(err, false).Status)
	})
}
