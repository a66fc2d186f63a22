// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package http1

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
)

// DefaultMaxHeaderBytes bounds the request line plus header lines.
const DefaultMaxHeaderBytes = 1 << 20

// Introspection headers added to every request read from a connection.
const (
	HeaderLocalAddress  = "X-Takes-LocalAddress"
	HeaderLocalPort     = "X-Takes-LocalPort"
	HeaderRemoteAddress = "X-Takes-RemoteAddress"
	HeaderRemotePort    = "X-Takes-RemotePort"
)

const introspectionPrefix = "X-Takes-"

type readOptions struct {
	maxHeaderBytes int
	local          net.Addr
	remote         net.Addr
}

// ReadOption configures [ReadRequest].
type ReadOption func(*readOptions)

// MaxHeaderBytes bounds the number of bytes of the request line and
// header lines, including line terminators.
func MaxHeaderBytes(n int) ReadOption {
	return func(ro *readOptions) {
		if n <= 0 {
			return
		}
		ro.maxHeaderBytes = n
	}
}

// Introspect adds the X-Takes-* address headers for the given
// connection endpoints. Any X-Takes-* field sent by the client is
// dropped so it can't be spoofed.
func Introspect(local, remote net.Addr) ReadOption {
	return func(ro *readOptions) {
		ro.local = local
		ro.remote = remote
	}
}

// ReadRequest reads one request head from br and frames its body.
//
// If br is at end of stream before the first byte of a request, the
// returned error is [io.EOF]. Malformed input is reported as a
// [StatusError]. The body reads directly from br so it must be fully
// consumed, or abandoned along with the connection, before the next
// request is read.
func ReadRequest(br *bufio.Reader, opts ...ReadOption) (*Request, error) {
	ro := &readOptions{
		maxHeaderBytes: DefaultMaxHeaderBytes,
	}
	for _, opt := range opts {
		opt(ro)
	}

	hr := headReader{br: br, remaining: ro.maxHeaderBytes}

	var first string
	for {
		line, err := hr.readLine()
		if err != nil {
			return nil, err
		}
		// Clients may send a stray CRLF after a previous request body.
		if len(line) > 0 {
			first = line
			break
		}
		hr.started = false
	}

	line, err := parseLine(first)
	if err != nil {
		return nil, err
	}

	var header Header
	for {
		l, err := hr.readLine()
		if errors.Is(err, io.EOF) {
			return nil, StatusError{Code: 400, Cause: ErrUnterminatedHead}
		}
		if err != nil {
			return nil, err
		}
		if len(l) == 0 {
			break
		}
		if l[0] == ' ' || l[0] == '\t' {
			return nil, StatusError{Code: 400, Cause: ErrMalformedHeader}
		}
		f, err := ParseField(l)
		if err != nil {
			return nil, err
		}
		if ro.local != nil && hasPrefixFold(f.Name, introspectionPrefix) {
			continue
		}
		header = append(header, f)
	}

	if ro.local != nil {
		header = appendAddr(header, HeaderLocalAddress, HeaderLocalPort, ro.local)
		header = appendAddr(header, HeaderRemoteAddress, HeaderRemotePort, ro.remote)
	}

	body, err := frameBody(line, header, br)
	if err != nil {
		return nil, err
	}
	return NewRequest(line, header, body), nil
}

type headReader struct {
	br        *bufio.Reader
	remaining int
	started   bool
}

// readLine returns the next line without its terminator. io.EOF is
// only returned when no byte of the request was read yet; otherwise
// an early end of stream is an unterminated head.
func (hr *headReader) readLine() (string, error) {
	var buf []byte
	for {
		frag, err := hr.br.ReadSlice('\n')
		hr.remaining -= len(frag)
		if hr.remaining < 0 {
			return "", StatusError{Code: 431, Cause: ErrHeaderTooLarge}
		}
		if len(frag) > 0 {
			hr.started = true
		}
		buf = append(buf, frag...)
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) {
			if !hr.started {
				return "", io.EOF
			}
			return "", StatusError{Code: 400, Cause: ErrUnterminatedHead}
		}
		return "", err
	}
	buf = bytes.TrimSuffix(buf, []byte("\n"))
	buf = bytes.TrimSuffix(buf, []byte("\r"))
	return string(buf), nil
}

func parseLine(s string) (Line, error) {
	parts := strings.Split(s, " ")
	if len(parts) != 3 || !isToken(parts[0]) || parts[1] == "" {
		return Line{}, StatusError{Code: 400, Cause: ErrMalformedRequestLine}
	}
	l := Line{Method: parts[0], Target: parts[1], Proto: parts[2]}

	major, minor, ok := parseProto(l.Proto)
	if !ok {
		return Line{}, StatusError{Code: 400, Cause: ErrMalformedRequestLine}
	}
	if major != 1 || minor > 1 {
		return Line{}, StatusError{Code: 505, Cause: ErrUnsupportedVersion}
	}
	return l, nil
}

func parseProto(p string) (major, minor int, ok bool) {
	v, found := strings.CutPrefix(p, "HTTP/")
	if !found {
		return 0, 0, false
	}
	maj, min, found := strings.Cut(v, ".")
	if !found || len(maj) != 1 || len(min) != 1 {
		return 0, 0, false
	}
	if maj[0] < '0' || maj[0] > '9' || min[0] < '0' || min[0] > '9' {
		return 0, 0, false
	}
	return int(maj[0] - '0'), int(min[0] - '0'), true
}

// bodyless lists the methods which are not defined to carry a body.
var bodyless = map[string]bool{
	"GET":     true,
	"HEAD":    true,
	"DELETE":  true,
	"OPTIONS": true,
	"TRACE":   true,
	"CONNECT": true,
}

func frameBody(line Line, header Header, br *bufio.Reader) (io.ReadCloser, error) {
	te := header.Values("Transfer-Encoding")
	cl := header.Values("Content-Length")
	if len(te) > 0 && len(cl) > 0 {
		return nil, StatusError{Code: 400, Cause: ErrAmbiguousLength}
	}

	if len(te) > 0 {
		codings := strings.Split(strings.Join(te, ","), ",")
		last := strings.TrimSpace(codings[len(codings)-1])
		if !strings.EqualFold(last, "chunked") {
			return nil, StatusError{Code: 501, Cause: ErrUnsupportedEncoding}
		}
		return newChunkedReader(br), nil
	}

	if len(cl) > 0 {
		n, err := parseContentLength(cl)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return NoBody, nil
		}
		return newLengthReader(br, n), nil
	}

	if bodyless[line.Method] {
		return NoBody, nil
	}
	return nil, StatusError{Code: 411, Cause: ErrLengthRequired}
}

func parseContentLength(vs []string) (int64, error) {
	var n int64 = -1
	for _, v := range vs {
		for _, elem := range strings.Split(v, ",") {
			elem = strings.TrimSpace(elem)
			m, err := strconv.ParseInt(elem, 10, 64)
			if err != nil || m < 0 {
				return 0, StatusError{Code: 400, Cause: ErrInvalidContentLength}
			}
			if n >= 0 && m != n {
				return 0, StatusError{Code: 400, Cause: ErrInvalidContentLength}
			}
			n = m
		}
	}
	return n, nil
}

func appendAddr(h Header, addrName, portName string, addr net.Addr) Header {
	if addr == nil {
		return h
	}
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return append(h, Field{Name: addrName, Value: addr.String()})
	}
	return append(h,
		Field{Name: addrName, Value: host},
		Field{Name: portName, Value: port},
	)
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
