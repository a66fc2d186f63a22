// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type storeFunc func(Key, any) error

func (f storeFunc) Set(k Key, v any) error {
	return f(k, v)
}

func TestRead(t *testing.T) {
	t.Run("will return an error", func(t *testing.T) {
		t.Run("if a source fails to apply", func(t *testing.T) {
			applyErr := errors.New("failed to apply")
			src := SourceFunc(func(Store) error {
				return applyErr
			})

			_, err := Read(Map{"a": 1}, src)
			if !assert.ErrorIs(t, err, applyErr) {
				return
			}
		})
	})

	t.Run("will override previous values", func(t *testing.T) {
		t.Run("if a later source sets the same key", func(t *testing.T) {
			m, err := Read(
				Map{"server": map[string]any{"addr": ":8080", "threads": 4}},
				Map{"server": map[string]any{"addr": ":9090"}},
			)
			if !assert.Nil(t, err) {
				return
			}

			var cfg struct {
				Server struct {
					Addr    string `config:"addr"`
					Threads int    `config:"threads"`
				} `config:"server"`
			}
			err = m.Unmarshal(&cfg)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, ":9090", cfg.Server.Addr) {
				return
			}
			assert.Equal(t, 4, cfg.Server.Threads)
		})

		t.Run("if the keys only differ by case", func(t *testing.T) {
			m, err := Read(
				Map{"Server": map[string]any{"Addr": ":8080"}},
				Map{"server": map[string]any{"addr": ":9090"}},
			)
			if !assert.Nil(t, err) {
				return
			}

			var cfg struct {
				Server struct {
					Addr string `config:"addr"`
				} `config:"server"`
			}
			err = m.Unmarshal(&cfg)
			if !assert.Nil(t, err) {
				return
			}
			assert.Equal(t, ":9090", cfg.Server.Addr)
		})
	})

	t.Run("will return an empty manager", func(t *testing.T) {
		t.Run("if no sources are given", func(t *testing.T) {
			m, err := Read()
			if !assert.Nil(t, err) {
				return
			}

			var cfg struct {
				Addr string `config:"addr"`
			}
			err = m.Unmarshal(&cfg)
			if !assert.Nil(t, err) {
				return
			}
			assert.Empty(t, cfg.Addr)
		})
	})
}

func TestManager_Unmarshal(t *testing.T) {
	t.Run("will decode a time.Duration", func(t *testing.T) {
		testCases := []struct {
			Name  string
			Value any
			Want  time.Duration
		}{
			{Name: "from a string", Value: "1500ms", Want: 1500 * time.Millisecond},
			{Name: "from an int", Value: 10, Want: 10},
			{Name: "from a time.Duration", Value: 2 * time.Second, Want: 2 * time.Second},
		}

		for _, testCase := range testCases {
			t.Run(testCase.Name, func(t *testing.T) {
				m, err := Read(Map{"timeout": testCase.Value})
				if !assert.Nil(t, err) {
					return
				}

				var cfg struct {
					Timeout time.Duration `config:"timeout"`
				}
				err = m.Unmarshal(&cfg)
				if !assert.Nil(t, err) {
					return
				}
				assert.Equal(t, testCase.Want, cfg.Timeout)
			})
		}
	})

	t.Run("will decode an encoding.TextUnmarshaler", func(t *testing.T) {
		t.Run("if the value is a string", func(t *testing.T) {
			m, err := Read(Map{"level": "warn"})
			if !assert.Nil(t, err) {
				return
			}

			var cfg struct {
				Level slog.Level `config:"level"`
			}
			err = m.Unmarshal(&cfg)
			if !assert.Nil(t, err) {
				return
			}
			assert.Equal(t, slog.LevelWarn, cfg.Level)
		})
	})

	t.Run("will return a TypeCoercionError", func(t *testing.T) {
		t.Run("if the duration string is invalid", func(t *testing.T) {
			m, err := Read(Map{"timeout": "forever"})
			if !assert.Nil(t, err) {
				return
			}

			var cfg struct {
				Timeout time.Duration `config:"timeout"`
			}
			err = m.Unmarshal(&cfg)

			var cerr TypeCoercionError
			if !assert.ErrorAs(t, err, &cerr) {
				return
			}
			if !assert.NotEmpty(t, cerr.Error()) {
				return
			}
			assert.Error(t, cerr.Unwrap())
		})

		t.Run("if the text can not be unmarshaled", func(t *testing.T) {
			m, err := Read(Map{"level": "loud"})
			if !assert.Nil(t, err) {
				return
			}

			var cfg struct {
				Level slog.Level `config:"level"`
			}
			err = m.Unmarshal(&cfg)

			var cerr TypeCoercionError
			if !assert.ErrorAs(t, err, &cerr) {
				return
			}
			assert.True(t, strings.Contains(cerr.Error(), "slog.Level"))
		})
	})
}
