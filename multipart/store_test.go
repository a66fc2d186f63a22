// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package multipart

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	t.Run("will remove the file", func(t *testing.T) {
		t.Run("if the body is closed", func(t *testing.T) {
			dir := t.TempDir()
			buf, err := FileStore{Dir: dir}.Create()
			require.Nil(t, err)

			_, err = io.WriteString(buf, "hello")
			require.Nil(t, err)

			body, err := buf.Body()
			require.Nil(t, err)

			b, err := io.ReadAll(body)
			require.Nil(t, err)
			require.Equal(t, "hello", string(b))
			require.Equal(t, 1, tempFiles(t, dir))

			require.Nil(t, body.Close())
			require.Nil(t, body.Close())
			require.Equal(t, 0, tempFiles(t, dir))
		})

		t.Run("if the buffer is discarded", func(t *testing.T) {
			dir := t.TempDir()
			buf, err := FileStore{Dir: dir}.Create()
			require.Nil(t, err)

			require.Nil(t, buf.Discard())
			require.Equal(t, 0, tempFiles(t, dir))
		})
	})

	t.Run("will fail", func(t *testing.T) {
		t.Run("if the directory does not exist", func(t *testing.T) {
			_, err := FileStore{Dir: t.TempDir() + "/missing"}.Create()
			require.ErrorIs(t, err, os.ErrNotExist)
		})
	})
}

func TestMemoryStore(t *testing.T) {
	t.Run("will serve the written bytes", func(t *testing.T) {
		buf, err := MemoryStore{}.Create()
		require.Nil(t, err)

		_, err = io.WriteString(buf, "hello ")
		require.Nil(t, err)
		_, err = io.WriteString(buf, "world")
		require.Nil(t, err)

		body, err := buf.Body()
		require.Nil(t, err)
		defer body.Close()

		b, err := io.ReadAll(body)
		require.Nil(t, err)
		require.Equal(t, "hello world", string(b))
	})

	t.Run("will fail to read", func(t *testing.T) {
		t.Run("if the body is closed", func(t *testing.T) {
			buf, err := MemoryStore{}.Create()
			require.Nil(t, err)

			body, err := buf.Body()
			require.Nil(t, err)
			require.Nil(t, body.Close())
			require.Nil(t, body.Close())

			_, err = body.Read(make([]byte, 1))
			require.ErrorIs(t, err, os.ErrClosed)
		})
	})
}
