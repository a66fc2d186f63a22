// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package multipart

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

type zeroWriteGuard struct {
	bytes.Buffer
}

func (w *zeroWriteGuard) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, errors.New("zero length write")
	}
	return w.Buffer.Write(p)
}

func rest(t *testing.T, st *ScanState, src io.Reader) string {
	b, err := io.ReadAll(st.Reader(src))
	require.Nil(t, err)
	return string(b)
}

func TestCopy(t *testing.T) {
	testCases := []struct {
		name       string
		input      string
		boundary   string
		size       int
		expectData string
		expectRest string
	}{
		{
			name:       "finds the boundary in the middle",
			input:      "hello\r\n--X\r\nworld",
			boundary:   "\r\n--X",
			size:       8,
			expectData: "hello",
			expectRest: "\r\nworld",
		},
		{
			name:       "finds the boundary at the very start",
			input:      "--X--",
			boundary:   "--X",
			size:       3,
			expectData: "",
			expectRest: "--",
		},
		{
			name:       "finds the boundary at the very end",
			input:      "abc--X",
			boundary:   "--X",
			size:       4,
			expectData: "abc",
			expectRest: "",
		},
		{
			name:       "finds a boundary spanning a refill",
			input:      "abcd\r\n--X",
			boundary:   "\r\n--X",
			size:       6,
			expectData: "abcd",
			expectRest: "",
		},
		{
			name:       "keeps bytes of a broken partial match",
			input:      "aaab",
			boundary:   "aab",
			size:       3,
			expectData: "a",
			expectRest: "",
		},
		{
			name:       "keeps a partial match carried across a refill",
			input:      "\r\n-\r\n--Xtail",
			boundary:   "\r\n--X",
			size:       5,
			expectData: "\r\n-",
			expectRest: "tail",
		},
		{
			name:       "uses a boundary as long as the buffer",
			input:      "0123456789",
			boundary:   "345",
			size:       3,
			expectData: "012",
			expectRest: "6789",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			src := strings.NewReader(testCase.input)
			st := NewScanState(testCase.size)

			var dst zeroWriteGuard
			n, err := Copy(&dst, src, []byte(testCase.boundary), st)
			require.Nil(t, err)
			require.Equal(t, int64(len(testCase.expectData)), n)
			require.Equal(t, testCase.expectData, dst.String())
			require.Equal(t, testCase.expectRest, rest(t, st, src))
		})
	}

	t.Run("will return ErrBoundaryNotFound", func(t *testing.T) {
		t.Run("if the source ends first and still write every byte", func(t *testing.T) {
			src := strings.NewReader("abc\r\n--")
			st := NewScanState(5)

			var dst bytes.Buffer
			n, err := Copy(&dst, src, []byte("\r\n--X"), st)
			require.ErrorIs(t, err, ErrBoundaryNotFound)
			require.Equal(t, int64(7), n)
			require.Equal(t, "abc\r\n--", dst.String())
		})
	})

	t.Run("will return ErrBoundaryTooLong", func(t *testing.T) {
		t.Run("if the boundary does not fit in the buffer", func(t *testing.T) {
			_, err := Copy(io.Discard, strings.NewReader("x"), []byte("abcd"), NewScanState(3))
			require.ErrorIs(t, err, ErrBoundaryTooLong)
		})
	})

	t.Run("will return ErrEmptyBoundary", func(t *testing.T) {
		t.Run("if the boundary is empty", func(t *testing.T) {
			_, err := Copy(io.Discard, strings.NewReader("x"), nil, NewScanState(3))
			require.ErrorIs(t, err, ErrEmptyBoundary)
		})
	})

	t.Run("will return the write error", func(t *testing.T) {
		t.Run("if the destination fails", func(t *testing.T) {
			werr := errors.New("disk full")
			dst := writerFunc(func(p []byte) (int, error) {
				return 0, werr
			})

			_, err := Copy(dst, strings.NewReader("abc--X"), []byte("--X"), NewScanState(8))
			require.ErrorIs(t, err, werr)
		})
	})

	t.Run("will continue from the buffered bytes", func(t *testing.T) {
		t.Run("if called again with the same state", func(t *testing.T) {
			src := strings.NewReader("one|two|three|")
			st := NewScanState(64)

			var got []string
			for i := 0; i < 3; i++ {
				var dst bytes.Buffer
				_, err := Copy(&dst, src, []byte("|"), st)
				require.Nil(t, err)
				got = append(got, dst.String())
			}
			require.Equal(t, []string{"one", "two", "three"}, got)
			require.Equal(t, 0, st.Buffered())
		})
	})
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) {
	return f(p)
}

func randomBytes(r *rand.Rand, alphabet string, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[r.Intn(len(alphabet))]
	}
	return b
}

func TestCopy_Properties(t *testing.T) {
	t.Run("will locate the boundary at the same offset", func(t *testing.T) {
		t.Run("for every buffer capacity from the boundary length up", func(t *testing.T) {
			r := rand.New(rand.NewSource(7))
			boundary := []byte("\r\n--AaB03x")

			for trial := 0; trial < 20; trial++ {
				body := randomBytes(r, "ab\r\n-AaB03x", 1+r.Intn(200))
				if bytes.Contains(body, boundary) {
					continue
				}
				tail := randomBytes(r, "xyz", r.Intn(40))
				input := append(append(append([]byte{}, body...), boundary...), tail...)
				idx := bytes.Index(input, boundary)

				for size := len(boundary); size <= len(input); size++ {
					src := bytes.NewReader(input)
					st := NewScanState(size)

					var dst bytes.Buffer
					n, err := Copy(&dst, src, boundary, st)
					require.Nil(t, err, "size %d", size)
					require.Equal(t, int64(idx), n, "size %d", size)
					require.Equal(t, input[:idx], dst.Bytes(), "size %d", size)
					require.Equal(t, string(input[idx+len(boundary):]), rest(t, st, src), "size %d", size)
				}
			}
		})
	})

	t.Run("will not drop bytes across refills", func(t *testing.T) {
		t.Run("for boundaries with repeated bytes", func(t *testing.T) {
			r := rand.New(rand.NewSource(11))
			boundaries := []string{"aab", "abab", "aaaa", "abaab"}

			for _, b := range boundaries {
				boundary := []byte(b)
				for trial := 0; trial < 30; trial++ {
					input := append(randomBytes(r, "ab", r.Intn(60)), boundary...)
					input = append(input, randomBytes(r, "abc", r.Intn(10))...)
					idx := bytes.Index(input, boundary)

					for size := len(boundary); size <= len(input); size++ {
						src := iotest.HalfReader(bytes.NewReader(input))
						st := NewScanState(size)

						var dst zeroWriteGuard
						_, err := Copy(&dst, src, boundary, st)
						require.Nil(t, err, "boundary %q size %d", b, size)
						require.Equal(t, string(input[:idx]), dst.String(), "boundary %q size %d", b, size)
						require.Equal(t, string(input[idx+len(boundary):]), rest(t, st, src), "boundary %q size %d", b, size)
					}
				}
			}
		})
	})
}

func TestScanState_Peek(t *testing.T) {
	t.Run("will not consume the byte", func(t *testing.T) {
		src := strings.NewReader("--")
		st := NewScanState(4)

		c, err := st.Peek(src)
		require.Nil(t, err)
		require.Equal(t, byte('-'), c)
		require.Equal(t, "--", rest(t, st, src))
	})

	t.Run("will return io.EOF", func(t *testing.T) {
		t.Run("if the source is empty", func(t *testing.T) {
			_, err := NewScanState(4).Peek(strings.NewReader(""))
			require.ErrorIs(t, err, io.EOF)
		})
	})
}
