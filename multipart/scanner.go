// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package multipart

import (
	"errors"
	"io"
)

// DefaultBufferSize is the capacity of a [ScanState] created by [Split].
const DefaultBufferSize = 8 * 1024

var (
	// ErrBoundaryNotFound is returned by [Copy] when the source ends
	// before a full boundary was read.
	ErrBoundaryNotFound = errors.New("boundary not found before end of stream")

	// ErrBoundaryTooLong is returned by [Copy] when the boundary doesn't
	// fit in the scan buffer.
	ErrBoundaryTooLong = errors.New("boundary is longer than the scan buffer")

	// ErrEmptyBoundary is returned by [Copy] for a zero length boundary.
	ErrEmptyBoundary = errors.New("empty boundary")
)

// ScanState is the state of a boundary scan over one source. It holds a
// fixed capacity buffer and the window of bytes which were read from the
// source but not consumed yet. Those bytes logically precede the rest of
// the source, so after a [Copy] the source is positioned right after the
// boundary even though more bytes may have been read from it.
//
// A ScanState must only ever be used with a single source.
type ScanState struct {
	buf   []byte
	start int
	end   int
}

// NewScanState returns a ScanState with a buffer of the given capacity.
func NewScanState(size int) *ScanState {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &ScanState{buf: make([]byte, size)}
}

// Buffered returns the number of bytes read from the source but not
// consumed yet.
func (st *ScanState) Buffered() int {
	return st.end - st.start
}

// Peek returns the next byte of the source without consuming it.
func (st *ScanState) Peek(src io.Reader) (byte, error) {
	if st.start == st.end {
		n, err := io.ReadAtLeast(src, st.buf, 1)
		if n == 0 {
			return 0, err
		}
		st.start, st.end = 0, n
	}
	return st.buf[st.start], nil
}

// Reader returns a reader over the rest of the source, i.e. the
// buffered bytes followed by src. Reading from it consumes the state.
func (st *ScanState) Reader(src io.Reader) io.Reader {
	return readerFunc(func(p []byte) (int, error) {
		if st.start < st.end {
			n := copy(p, st.buf[st.start:st.end])
			st.start += n
			return n, nil
		}
		return src.Read(p)
	})
}

type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) {
	return f(p)
}

// Copy writes to dst every byte of src up to the next occurrence of
// boundary and consumes the boundary itself. It returns the number of
// bytes written to dst.
//
// If src ends first, everything read is written to dst and
// [ErrBoundaryNotFound] is returned.
func Copy(dst io.Writer, src io.Reader, boundary []byte, st *ScanState) (int64, error) {
	if len(boundary) == 0 {
		return 0, ErrEmptyBoundary
	}
	if len(boundary) > len(st.buf) {
		return 0, ErrBoundaryTooLong
	}

	fail := prefixTable(boundary)

	var written int64
	flush := func(b []byte) error {
		if len(b) == 0 {
			return nil
		}
		n, err := dst.Write(b)
		written += int64(n)
		if err == nil && n < len(b) {
			err = io.ErrShortWrite
		}
		return err
	}

	match := 0
	pending := st.start
	for {
		if st.start == st.end {
			// Only boundary[:match] is carried across a refill. Those
			// bytes are still pending since they may turn out to be data.
			copy(st.buf, boundary[:match])
			pending = 0
			st.start, st.end = match, match

			n, err := io.ReadAtLeast(src, st.buf[match:], 1)
			if n == 0 {
				if ferr := flush(st.buf[:match]); ferr != nil {
					return written, ferr
				}
				st.start, st.end = 0, 0
				if errors.Is(err, io.EOF) {
					return written, ErrBoundaryNotFound
				}
				return written, err
			}
			st.end = match + n
		}

		for i := st.start; i < st.end; i++ {
			c := st.buf[i]
			for match > 0 && c != boundary[match] {
				match = fail[match-1]
			}
			if c == boundary[match] {
				match++
			}
			if match < len(boundary) {
				continue
			}

			st.start = i + 1
			err := flush(st.buf[pending : st.start-len(boundary)])
			return written, err
		}

		err := flush(st.buf[pending : st.end-match])
		if err != nil {
			return written, err
		}
		st.start = st.end
	}
}

// prefixTable returns, for every prefix boundary[:i+1], the length of
// its longest proper prefix which is also a suffix.
func prefixTable(boundary []byte) []int {
	fail := make([]int, len(boundary))
	k := 0
	for i := 1; i < len(boundary); i++ {
		for k > 0 && boundary[i] != boundary[k] {
			k = fail[k-1]
		}
		if boundary[i] == boundary[k] {
			k++
		}
		fail[i] = k
	}
	return fail
}
