// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package multipart decodes multipart/form-data request bodies.
//
// [Copy] is the streaming boundary scanner everything else is built on:
// it copies a source up to a delimiter through the fixed size buffer of
// a [ScanState], which carries the bytes read past the delimiter over to
// the next scan. [Split] uses it to turn a request body into a [Form] of
// parts, each of them stored in a temporary file or a pooled buffer.
package multipart
