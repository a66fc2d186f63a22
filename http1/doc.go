// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package http1 provides the HTTP/1.x wire types used by takes.
//
// A [Request] is the raw request: its request line, its header fields in
// the order they appeared on the wire and a body stream framed by either
// Content-Length or chunked transfer coding. A [Response] is what a
// [Handler] produces; [Response.Write] frames and serializes it.
//
// # Errors
//
// Handlers declare a status by returning a [StatusError], usually built
// with [Errorf]. Malformed input detected while reading a request is also
// reported as a [StatusError] wrapping one of the sentinel errors in this
// package, e.g. [ErrMalformedRequestLine], so callers can distinguish a
// protocol error from an I/O failure with [errors.As].
package http1
