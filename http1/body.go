// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package http1

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
)

// ErrBodyClosed is returned when reading a body after it was closed.
var ErrBodyClosed = errors.New("read on closed body")

// ErrBodyTooLarge is returned by [Request.Discard] when more than the
// allowed number of unread bytes remain in the body.
var ErrBodyTooLarge = errors.New("unread body exceeds discard limit")

// maxChunkLine bounds a chunk size line, extensions included.
const maxChunkLine = 4096

// framedBody is a body whose framing is known, so what remains of it
// can be discarded even after the handler closed it.
type framedBody interface {
	io.ReadCloser
	discard(limit int64) error
}

// Discard reads and drops what remains of a framed body, so the
// connection is positioned at the next request. It fails with
// [ErrBodyTooLarge] if more than limit bytes remain.
func (r *Request) Discard(limit int64) error {
	fb, ok := r.body.(framedBody)
	if !ok {
		return nil
	}
	return fb.discard(limit)
}

type lengthReader struct {
	r      io.Reader
	n      int64
	err    error
	closed bool
}

func newLengthReader(r io.Reader, n int64) *lengthReader {
	return &lengthReader{r: r, n: n}
}

func (lr *lengthReader) Read(p []byte) (int, error) {
	if lr.closed {
		return 0, ErrBodyClosed
	}
	return lr.read(p)
}

func (lr *lengthReader) read(p []byte) (int, error) {
	if lr.err != nil {
		return 0, lr.err
	}
	if lr.n <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > lr.n {
		p = p[:lr.n]
	}
	n, err := lr.r.Read(p)
	lr.n -= int64(n)
	if errors.Is(err, io.EOF) && lr.n > 0 {
		err = StatusError{Code: 400, Cause: ErrTruncatedBody}
	}
	if err != nil && !errors.Is(err, io.EOF) {
		lr.err = err
	}
	return n, err
}

func (lr *lengthReader) Close() error {
	lr.closed = true
	return nil
}

func (lr *lengthReader) discard(limit int64) error {
	if lr.err != nil {
		return lr.err
	}
	if lr.n > limit {
		return ErrBodyTooLarge
	}
	_, err := io.Copy(io.Discard, readerFunc(lr.read))
	return err
}

// chunkedReader decodes a chunked transfer coded body. Chunk
// extensions are ignored and trailer fields are read and dropped.
type chunkedReader struct {
	br        *bufio.Reader
	remaining int64
	eof       bool
	err       error
	closed    bool
	consumed  int64
}

func newChunkedReader(br *bufio.Reader) *chunkedReader {
	return &chunkedReader{br: br}
}

func (cr *chunkedReader) Read(p []byte) (int, error) {
	if cr.closed {
		return 0, ErrBodyClosed
	}
	return cr.read(p)
}

func (cr *chunkedReader) read(p []byte) (int, error) {
	if cr.err != nil {
		return 0, cr.err
	}
	if cr.eof {
		return 0, io.EOF
	}
	if cr.remaining == 0 {
		size, err := cr.readSize()
		if err != nil {
			cr.err = err
			return 0, err
		}
		if size == 0 {
			err = cr.readTrailers()
			if err != nil {
				cr.err = err
				return 0, err
			}
			cr.eof = true
			return 0, io.EOF
		}
		cr.remaining = size
	}
	if len(p) == 0 {
		return 0, nil
	}

	if int64(len(p)) > cr.remaining {
		p = p[:cr.remaining]
	}
	n, err := cr.br.Read(p)
	cr.remaining -= int64(n)
	cr.consumed += int64(n)
	if errors.Is(err, io.EOF) {
		err = StatusError{Code: 400, Cause: ErrInvalidChunk}
	}
	if err != nil {
		cr.err = err
		return n, err
	}
	if cr.remaining == 0 {
		err = cr.readCRLF()
		if err != nil {
			cr.err = err
			return n, err
		}
	}
	return n, nil
}

func (cr *chunkedReader) readSize() (int64, error) {
	line, err := cr.readLine()
	if err != nil {
		return 0, err
	}
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" || len(line) > 16 {
		return 0, StatusError{Code: 400, Cause: ErrInvalidChunk}
	}
	size, err := strconv.ParseInt(line, 16, 64)
	if err != nil || size < 0 {
		return 0, StatusError{Code: 400, Cause: ErrInvalidChunk}
	}
	return size, nil
}

func (cr *chunkedReader) readTrailers() error {
	for {
		line, err := cr.readLine()
		if err != nil {
			return err
		}
		if line == "" {
			return nil
		}
	}
}

func (cr *chunkedReader) readCRLF() error {
	line, err := cr.readLine()
	if err != nil {
		return err
	}
	if line != "" {
		return StatusError{Code: 400, Cause: ErrInvalidChunk}
	}
	return nil
}

func (cr *chunkedReader) readLine() (string, error) {
	var buf []byte
	for {
		frag, err := cr.br.ReadSlice('\n')
		buf = append(buf, frag...)
		if len(buf) > maxChunkLine {
			return "", StatusError{Code: 400, Cause: ErrInvalidChunk}
		}
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return "", StatusError{Code: 400, Cause: ErrInvalidChunk}
		}
		return "", err
	}
	s := strings.TrimSuffix(string(buf), "\n")
	if !strings.HasSuffix(s, "\r") {
		return "", StatusError{Code: 400, Cause: ErrInvalidChunk}
	}
	return strings.TrimSuffix(s, "\r"), nil
}

func (cr *chunkedReader) Close() error {
	cr.closed = true
	return nil
}

func (cr *chunkedReader) discard(limit int64) error {
	start := cr.consumed
	buf := make([]byte, 4096)
	for {
		_, err := cr.read(buf)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if cr.consumed-start > limit {
			return ErrBodyTooLarge
		}
	}
}

type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) {
	return f(p)
}
