// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"fmt"
	"strings"
)

// Map is an ordinary map[string]any but implements the [Source] interface.
type Map map[string]any

// Apply implements the [Source] interface. It recursively walks the underlying
// map to find key value pairs to set on the given store.
func (m Map) Apply(store Store) error {
	return walkMap(m, store, nil)
}

func walkMap(m map[string]any, store Store, prefix Key) error {
	for k, v := range m {
		// copy so sibling keys never share a backing array
		key := append(append(Key{}, prefix...), k)

		switch x := v.(type) {
		case map[string]any:
			err := walkMap(x, store, key)
			if err != nil {
				return err
			}
		case Map:
			err := walkMap(x, store, key)
			if err != nil {
				return err
			}
		default:
			err := store.Set(key, x)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// EmptyKeyError occurs when a [Source] sets a value with an empty [Key].
type EmptyKeyError struct {
	Value any
}

// Error implements the [builtin.error] interface.
func (e EmptyKeyError) Error() string {
	return fmt.Sprintf("attempted to set value to an empty key: %v", e.Value)
}

// UnexpectedKeyValueTypeError represents the situation when
// a source tries setting a key to a different type than it
// had previously been set to.
type UnexpectedKeyValueTypeError struct {
	Key          string
	ExpectedType string
}

// Error implements the [builtin.error] interface.
func (e UnexpectedKeyValueTypeError) Error() string {
	return fmt.Sprintf("expected key value to be a %s: %s", e.ExpectedType, e.Key)
}

// tree is the [Store] used by [Read]. Keys are case insensitive.
type tree map[string]any

func (t tree) Set(key Key, v any) error {
	if len(key) == 0 {
		return EmptyKeyError{Value: v}
	}

	m := map[string]any(t)
	for i, name := range key[:len(key)-1] {
		name = strings.ToLower(name)

		old, ok := m[name]
		if !ok {
			old = make(map[string]any)
			m[name] = old
		}

		sub, ok := old.(map[string]any)
		if !ok {
			return UnexpectedKeyValueTypeError{
				Key:          key[:i+1].String(),
				ExpectedType: "map[string]any",
			}
		}
		m = sub
	}

	last := strings.ToLower(key[len(key)-1])
	if _, ok := m[last].(map[string]any); ok {
		return UnexpectedKeyValueTypeError{
			Key:          key.String(),
			ExpectedType: "map[string]any",
		}
	}
	m[last] = v
	return nil
}
