// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJson_Apply(t *testing.T) {
	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the underlying io.Reader fails", func(t *testing.T) {
			readErr := errors.New("failed to read")
			r := readFunc(func(b []byte) (int, error) {
				return 0, readErr
			})

			err := FromJson(r).Apply(make(tree))
			assert.ErrorIs(t, err, readErr)
		})

		t.Run("if the io.Reader contains invalid JSON", func(t *testing.T) {
			testCases := []struct {
				Name string
				Body string
			}{
				{Name: "syntax", Body: `{"hello": }`},
				{Name: "truncated", Body: `{"hello": "world"`},
				{Name: "not an object", Body: `[1, 2]`},
			}

			for _, testCase := range testCases {
				t.Run(testCase.Name, func(t *testing.T) {
					err := FromJson(strings.NewReader(testCase.Body)).Apply(make(tree))

					var ierr InvalidJsonError
					if !assert.ErrorAs(t, err, &ierr) {
						return
					}
					if !assert.NotEmpty(t, ierr.Error()) {
						return
					}
					assert.NotNil(t, ierr.Unwrap())
				})
			}
		})
	})

	t.Run("will decode numbers into ints", func(t *testing.T) {
		t.Run("if the target field is an int", func(t *testing.T) {
			m, err := Read(FromJson(strings.NewReader(`{"server": {"threads": 8, "timeout": "2s"}}`)))
			if !assert.Nil(t, err) {
				return
			}

			var cfg struct {
				Server struct {
					Threads int    `config:"threads"`
					Timeout string `config:"timeout"`
				} `config:"server"`
			}
			err = m.Unmarshal(&cfg)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, 8, cfg.Server.Threads) {
				return
			}
			assert.Equal(t, "2s", cfg.Server.Timeout)
		})
	})

	t.Run("will apply nothing", func(t *testing.T) {
		t.Run("if the io.Reader is empty", func(t *testing.T) {
			err := FromJson(strings.NewReader("")).Apply(storeFunc(func(Key, any) error {
				return errors.New("unexpected set")
			}))
			assert.Nil(t, err)
		})
	})
}
