// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package back handles accepted connections.
//
// [Basic] serves a single HTTP/1.x request on a connection by calling an
// [http1.Handler]. Everything else in this package decorates a [Back] to
// change how connections are handled:
//
//   - [Reuse] keeps a connection open for further requests
//   - [Timeout] answers requests which take too long with a 500 and abandons them
//   - [Parallel] serves connections on a fixed number of workers
//   - [Safe] logs and swallows failures so they never reach the accept loop
//
// Decorators are composed with [Chain], e.g.
//
//	b := back.Chain(
//	    back.Basic(h),
//	    func(b back.Back) back.Back { return back.Safe(b) },
//	    func(b back.Back) back.Back { return back.Parallel(b, 8) },
//	    func(b back.Back) back.Back { return back.Reuse(b) },
//	    func(b back.Back) back.Back { return back.Timeout(b, 30*time.Second) },
//	)
package back
