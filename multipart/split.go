// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package multipart

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"sync"

	"github.com/z5labs/takes/http1"
	"github.com/z5labs/takes/internal/otelslog"
	"github.com/z5labs/takes/internal/slogfield"
	"github.com/z5labs/takes/internal/try"

	"github.com/valyala/bytebufferpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultMaxParts is the default limit on the number of parts in a form.
const DefaultMaxParts = 1000

// maxPartHeaderBytes bounds the header block of a single part.
const maxPartHeaderBytes = 16 * 1024

var (
	ErrNotMultipart      = errors.New("content type is not multipart/form-data")
	ErrMissingBoundary   = errors.New("multipart boundary is missing")
	ErrMissingName       = errors.New("part has no content disposition name")
	ErrTooManyParts      = errors.New("too many parts")
	ErrPartHeaderTooLong = errors.New("part header block too large")
	ErrUnterminatedForm  = errors.New("multipart body ended before the closing delimiter")
)

type splitOptions struct {
	logHandler slog.Handler
	bufferSize int
	store      Store
	maxParts   int
}

// Option configures [Split].
type Option func(*splitOptions)

// LogHandler sets the [slog.Handler] used by [Split].
func LogHandler(h slog.Handler) Option {
	return func(so *splitOptions) {
		so.logHandler = otelslog.NewHandler(h)
	}
}

// BufferSize sets the capacity of the scan buffer. The boundary must
// fit in it.
func BufferSize(n int) Option {
	return func(so *splitOptions) {
		if n <= 0 {
			return
		}
		so.bufferSize = n
	}
}

// WithStore sets the [Store] part bodies are written to. The default
// is a [FileStore] in the default temporary directory.
func WithStore(s Store) Option {
	return func(so *splitOptions) {
		if s == nil {
			return
		}
		so.store = s
	}
}

// MaxParts limits the number of parts in a form. Zero or less means
// no limit.
func MaxParts(n int) Option {
	return func(so *splitOptions) {
		so.maxParts = n
	}
}

// Form is a decoded multipart/form-data body. Every part is an
// [http1.Request] without a request line.
type Form struct {
	names []string
	parts map[string][]*http1.Request
	all   []*http1.Request

	once sync.Once
	err  error
}

// Names returns the distinct part names in the order they first
// appeared on the wire.
func (f *Form) Names() []string {
	return f.names
}

// Parts returns every part with the given name, in wire order.
func (f *Form) Parts(name string) []*http1.Request {
	return f.parts[name]
}

// Part returns the first part with the given name.
func (f *Form) Part(name string) (*http1.Request, bool) {
	ps := f.parts[name]
	if len(ps) == 0 {
		return nil, false
	}
	return ps[0], true
}

// Len returns the total number of parts.
func (f *Form) Len() int {
	return len(f.all)
}

// Close closes every part, which releases their backing storage.
// Only the first call has any effect.
func (f *Form) Close() error {
	f.once.Do(func() {
		f.err = try.CloseAll(f.all...)
	})
	return f.err
}

func (f *Form) add(name string, part *http1.Request) {
	if _, ok := f.parts[name]; !ok {
		f.names = append(f.names, name)
	}
	f.parts[name] = append(f.parts[name], part)
	f.all = append(f.all, part)
}

// Split decodes the multipart/form-data body of req into parts.
//
// The returned [Form] is registered with req, so closing req closes every
// part even if they are never read. Failures are [http1.StatusError]s:
// 400 for malformed forms, 413 for too many parts and 500 when a part
// can't be stored.
func Split(ctx context.Context, req *http1.Request, opts ...Option) (_ *Form, err error) {
	so := &splitOptions{
		logHandler: otelslog.NewHandler(nil),
		bufferSize: DefaultBufferSize,
		store:      FileStore{},
		maxParts:   DefaultMaxParts,
	}
	for _, opt := range opts {
		opt(so)
	}
	log := slog.New(so.logHandler)

	spanCtx, span := otel.Tracer("multipart").Start(ctx, "Split")
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	token, err := boundaryToken(req)
	if err != nil {
		return nil, err
	}
	if len(token)+4 > so.bufferSize {
		return nil, http1.Errorf(http.StatusBadRequest, "%w", ErrBoundaryTooLong)
	}

	form := &Form{
		parts: make(map[string][]*http1.Request),
	}
	defer func() {
		if err != nil {
			form.Close()
		}
	}()

	st := NewScanState(so.bufferSize)
	src := req.Body

	_, err = Copy(io.Discard, src, []byte("--"+token), st)
	if errors.Is(err, ErrBoundaryNotFound) {
		return nil, http1.Errorf(http.StatusBadRequest, "%w", ErrMissingBoundary)
	}
	if err != nil {
		return nil, err
	}

	delim := []byte("\r\n--" + token)
	for {
		if err := spanCtx.Err(); err != nil {
			return nil, err
		}

		c, err := st.Peek(src)
		if errors.Is(err, io.EOF) {
			return nil, http1.Errorf(http.StatusBadRequest, "%w", ErrUnterminatedForm)
		}
		if err != nil {
			return nil, err
		}
		if c == '-' {
			break
		}

		if so.maxParts > 0 && form.Len() >= so.maxParts {
			return nil, http1.Errorf(http.StatusRequestEntityTooLarge, "%w: limit is %d", ErrTooManyParts, so.maxParts)
		}

		header, err := readPartHeader(src, st)
		if err != nil {
			return nil, err
		}
		name, err := dispositionName(header)
		if err != nil {
			return nil, err
		}

		part, size, err := readPartBody(so.store, src, delim, st, header)
		if err != nil {
			return nil, err
		}
		form.add(name, part)

		log.DebugContext(
			spanCtx,
			"decoded part",
			slogfield.String("name", name),
			slogfield.Int64("size", size),
		)
	}

	req.OnClose(form)
	span.SetAttributes(attribute.Int("multipart.parts", form.Len()))
	return form, nil
}

func boundaryToken(req *http1.Request) (string, error) {
	mt, params, err := req.MediaType()
	if err != nil {
		return "", http1.Errorf(http.StatusBadRequest, "%w: %w", ErrNotMultipart, err)
	}
	if mt != "multipart/form-data" {
		return "", http1.Errorf(http.StatusBadRequest, "%w: %q", ErrNotMultipart, mt)
	}
	token := params["boundary"]
	if token == "" {
		return "", http1.Errorf(http.StatusBadRequest, "%w", ErrMissingBoundary)
	}
	return token, nil
}

var headerEnd = []byte("\r\n\r\n")

func readPartHeader(src io.Reader, st *ScanState) (http1.Header, error) {
	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	lw := &limitedWriter{w: bb, n: maxPartHeaderBytes}
	_, err := Copy(lw, src, headerEnd, st)
	if lw.exceeded {
		return nil, http1.Errorf(http.StatusBadRequest, "%w", ErrPartHeaderTooLong)
	}
	if errors.Is(err, ErrBoundaryNotFound) {
		return nil, http1.Errorf(http.StatusBadRequest, "%w", ErrUnterminatedForm)
	}
	if err != nil {
		return nil, err
	}

	// The block starts with the rest of the delimiter line, i.e.
	// optional transport padding and its CRLF.
	block := bytes.TrimLeft(bb.B, " \t")
	block = bytes.TrimPrefix(block, []byte("\r\n"))
	if len(block) == 0 {
		return nil, nil
	}

	lines := strings.Split(string(block), "\r\n")
	header := make(http1.Header, 0, len(lines))
	for _, line := range lines {
		f, err := http1.ParseField(line)
		if err != nil {
			return nil, err
		}
		header = append(header, f)
	}
	return header, nil
}

func dispositionName(header http1.Header) (string, error) {
	cd := header.Get("Content-Disposition")
	if cd == "" {
		return "", http1.Errorf(http.StatusBadRequest, "%w", ErrMissingName)
	}
	_, params, err := mime.ParseMediaType(cd)
	if err != nil {
		return "", http1.Errorf(http.StatusBadRequest, "%w: %w", ErrMissingName, err)
	}
	name := params["name"]
	if name == "" {
		return "", http1.Errorf(http.StatusBadRequest, "%w", ErrMissingName)
	}
	return name, nil
}

func readPartBody(store Store, src io.Reader, delim []byte, st *ScanState, header http1.Header) (*http1.Request, int64, error) {
	buf, err := store.Create()
	if err != nil {
		return nil, 0, http1.Errorf(http.StatusInternalServerError, "failed to create part storage: %w", err)
	}

	sw := &storeWriter{w: buf}
	n, err := Copy(sw, src, delim, st)
	if err != nil {
		err = errors.Join(err, buf.Discard())
		if sw.err != nil {
			return nil, n, http1.Errorf(http.StatusInternalServerError, "failed to store part: %w", err)
		}
		if errors.Is(err, ErrBoundaryNotFound) {
			return nil, n, http1.Errorf(http.StatusBadRequest, "%w", ErrUnterminatedForm)
		}
		return nil, n, err
	}

	body, err := buf.Body()
	if err != nil {
		return nil, n, http1.Errorf(http.StatusInternalServerError, "failed to store part: %w", err)
	}
	return http1.NewRequest(http1.Line{}, header, body), n, nil
}

// storeWriter remembers write failures so they can be told apart from
// read failures of the source.
type storeWriter struct {
	w   io.Writer
	err error
}

func (sw *storeWriter) Write(p []byte) (int, error) {
	n, err := sw.w.Write(p)
	if err != nil {
		sw.err = err
	}
	return n, err
}

type limitedWriter struct {
	w        io.Writer
	n        int
	exceeded bool
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if len(p) > lw.n {
		lw.exceeded = true
		return 0, ErrPartHeaderTooLong
	}
	lw.n -= len(p)
	return lw.w.Write(p)
}
