// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package ports

import (
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_Allocate(t *testing.T) {
	t.Run("will hand out distinct ports", func(t *testing.T) {
		var r Registry

		seen := make(map[int]bool)
		for i := 0; i < 10; i++ {
			port, err := r.Allocate()
			require.Nil(t, err)
			require.False(t, seen[port], "port %d handed out twice", port)
			seen[port] = true
		}
		require.Equal(t, 10, r.Len())
	})

	t.Run("will hand out a port which can be listened on", func(t *testing.T) {
		var r Registry

		port, err := r.Allocate()
		require.Nil(t, err)
		defer r.Release(port)

		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		require.Nil(t, err)
		require.Nil(t, ln.Close())
	})
}

func TestRegistry_Release(t *testing.T) {
	t.Run("will forget the port", func(t *testing.T) {
		var r Registry

		port, err := r.Allocate()
		require.Nil(t, err)
		require.Equal(t, 1, r.Len())

		r.Release(port)
		require.Equal(t, 0, r.Len())
	})
}
