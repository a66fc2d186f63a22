// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package ports hands out free local TCP ports.
package ports

import (
	"errors"
	"net"
	"sync"
)

// ErrExhausted is returned when no unused port could be found.
var ErrExhausted = errors.New("no free port found")

// maxAttempts bounds how many ports the OS is asked for before giving up
// on finding one this registry didn't hand out already.
const maxAttempts = 64

// Registry hands out ports that are free on the loopback interface and
// remembers them until they are released, so concurrent users of the
// same registry never get the same port.
//
// The zero value is ready to use.
type Registry struct {
	mu    sync.Mutex
	taken map[int]struct{}
}

// Allocate returns a port which is currently free and not held by
// anyone else using r.
func (r *Registry) Allocate() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.taken == nil {
		r.taken = make(map[int]struct{})
	}

	for i := 0; i < maxAttempts; i++ {
		port, err := freePort()
		if err != nil {
			return 0, err
		}
		if _, ok := r.taken[port]; ok {
			continue
		}
		r.taken[port] = struct{}{}
		return port, nil
	}
	return 0, ErrExhausted
}

// Release gives port back to r.
func (r *Registry) Release(port int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.taken, port)
}

// Len returns the number of ports currently held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.taken)
}

func freePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}
