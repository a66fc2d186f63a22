// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package multipart

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/valyala/bytebufferpool"
)

// Store creates the temporary backing storage of part bodies.
type Store interface {
	Create() (Buffer, error)
}

// Buffer is the backing storage of a single part body. It's written
// once while the part is decoded and then turned into the part body.
// Closing the returned body releases the storage.
type Buffer interface {
	io.Writer

	// Body returns the stored bytes. After Body is called the
	// Buffer must not be written to anymore.
	Body() (io.ReadCloser, error)

	// Discard releases the storage without producing a body.
	Discard() error
}

// FileStore keeps part bodies in temporary files which are removed
// once the part body is closed.
type FileStore struct {
	// Dir is the directory temporary files are created in. The
	// default directory for temporary files is used if empty.
	Dir string
}

// Create implements the [Store] interface.
func (s FileStore) Create() (Buffer, error) {
	f, err := os.CreateTemp(s.Dir, "takes-part-*")
	if err != nil {
		return nil, err
	}
	return &fileBuffer{f: f}, nil
}

type fileBuffer struct {
	f *os.File
}

func (b *fileBuffer) Write(p []byte) (int, error) {
	return b.f.Write(p)
}

func (b *fileBuffer) Body() (io.ReadCloser, error) {
	_, err := b.f.Seek(0, io.SeekStart)
	if err != nil {
		return nil, errors.Join(err, b.Discard())
	}
	return &tempFile{f: b.f}, nil
}

func (b *fileBuffer) Discard() error {
	return errors.Join(b.f.Close(), os.Remove(b.f.Name()))
}

// tempFile is a part body backed by a temporary file, which is deleted
// on the first Close.
type tempFile struct {
	f    *os.File
	once sync.Once
	err  error
}

func (t *tempFile) Read(p []byte) (int, error) {
	return t.f.Read(p)
}

func (t *tempFile) Close() error {
	t.once.Do(func() {
		t.err = errors.Join(t.f.Close(), os.Remove(t.f.Name()))
	})
	return t.err
}

// MemoryStore keeps part bodies in pooled in-memory buffers which are
// returned to the pool once the part body is closed.
type MemoryStore struct{}

// Create implements the [Store] interface.
func (MemoryStore) Create() (Buffer, error) {
	return &memoryBuffer{bb: bytebufferpool.Get()}, nil
}

type memoryBuffer struct {
	bb *bytebufferpool.ByteBuffer
}

func (b *memoryBuffer) Write(p []byte) (int, error) {
	return b.bb.Write(p)
}

func (b *memoryBuffer) Body() (io.ReadCloser, error) {
	return &pooledBody{bb: b.bb, r: bytes.NewReader(b.bb.B)}, nil
}

func (b *memoryBuffer) Discard() error {
	bytebufferpool.Put(b.bb)
	return nil
}

type pooledBody struct {
	mu sync.Mutex
	bb *bytebufferpool.ByteBuffer
	r  *bytes.Reader
}

func (p *pooledBody) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bb == nil {
		return 0, os.ErrClosed
	}
	return p.r.Read(b)
}

func (p *pooledBody) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bb == nil {
		return nil
	}
	bytebufferpool.Put(p.bb)
	p.bb = nil
	p.r = nil
	return nil
}
