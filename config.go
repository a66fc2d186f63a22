// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package takes

import (
	"context"
	"fmt"

	"github.com/z5labs/takes/config"
)

// ConfigReadError occurs when a [config.Source] fails to apply.
type ConfigReadError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ConfigReadError) Error() string {
	return fmt.Sprintf("failed to read config source(s): %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ConfigReadError) Unwrap() error {
	return e.Cause
}

// ConfigUnmarshalError occurs when the merged config can't be decoded into T.
type ConfigUnmarshalError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ConfigUnmarshalError) Error() string {
	return fmt.Sprintf("failed to unmarshal read config source(s) into custom type: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ConfigUnmarshalError) Unwrap() error {
	return e.Cause
}

// ConfigBuilder returns a [Builder] which reads the given sources, in order,
// and unmarshals the result into a T.
func ConfigBuilder[T any](srcs ...config.Source) Builder[T] {
	return BuilderFunc[T](func(ctx context.Context) (T, error) {
		var cfg T
		m, err := config.Read(srcs...)
		if err != nil {
			return cfg, ConfigReadError{Cause: err}
		}

		err = m.Unmarshal(&cfg)
		if err != nil {
			return cfg, ConfigUnmarshalError{Cause: err}
		}
		return cfg, nil
	})
}
