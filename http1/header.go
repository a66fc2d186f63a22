// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package http1

import (
	"strings"
)

// Field is a single header field.
type Field struct {
	Name  string
	Value string
}

// String returns the field as it appears on the wire, without CRLF.
func (f Field) String() string {
	return f.Name + ": " + f.Value
}

// Header is an ordered list of header fields. Names are matched
// case-insensitively and repeated names are preserved.
type Header []Field

// Get returns the value of the first field named name.
func (h Header) Get(name string) string {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// Values returns the values of every field named name in wire order.
func (h Header) Values(name string) []string {
	var vs []string
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			vs = append(vs, f.Value)
		}
	}
	return vs
}

// Has reports whether at least one field is named name.
func (h Header) Has(name string) bool {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return true
		}
	}
	return false
}

// HasToken reports whether any comma separated element of the
// fields named name equals token, ignoring case. It's meant for
// list valued fields like Connection and Transfer-Encoding.
func (h Header) HasToken(name, token string) bool {
	for _, v := range h.Values(name) {
		for _, elem := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(elem), token) {
				return true
			}
		}
	}
	return false
}

// With returns a copy of h with the given field appended.
func (h Header) With(name, value string) Header {
	c := make(Header, len(h), len(h)+1)
	copy(c, h)
	return append(c, Field{Name: name, Value: value})
}

// Without returns a copy of h without any field named name.
func (h Header) Without(name string) Header {
	c := make(Header, 0, len(h))
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			continue
		}
		c = append(c, f)
	}
	return c
}

// Lines returns every field formatted as a wire line, without CRLF.
func (h Header) Lines() []string {
	ls := make([]string, len(h))
	for i, f := range h {
		ls[i] = f.String()
	}
	return ls
}

// ParseField parses a single "Name: value" header line. The line
// must not contain the terminating CRLF.
func ParseField(line string) (Field, error) {
	name, value, ok := strings.Cut(line, ":")
	if !ok || !isToken(name) {
		return Field{}, StatusError{Code: 400, Cause: ErrMalformedHeader}
	}
	return Field{
		Name:  name,
		Value: strings.Trim(value, " \t"),
	}, nil
}

func isToken(s string) bool {
	if len(s) == 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isTokenChar(s[i]) {
			return false
		}
	}
	return true
}

func isTokenChar(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0
}
