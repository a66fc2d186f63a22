// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package http1

import "context"

// Handler produces a response for a request. It's called at most once
// per request. Returning a [StatusError] answers with its code; any
// other error is answered with 500.
type Handler interface {
	Handle(context.Context, *Request) (*Response, error)
}

// HandlerFunc is a func variant of the [Handler] interface.
type HandlerFunc func(context.Context, *Request) (*Response, error)

// Handle implements the [Handler] interface.
func (f HandlerFunc) Handle(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}
