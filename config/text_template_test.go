// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTextTemplateRenderer_Read(t *testing.T) {
	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the underlying io.Reader fails", func(t *testing.T) {
			readErr := errors.New("failed to read")
			r := readFunc(func(b []byte) (int, error) {
				return 0, readErr
			})

			ttr := RenderTextTemplate(r)
			_, err := io.ReadAll(ttr)
			if !assert.ErrorIs(t, err, readErr) {
				return
			}
		})

		t.Run("if the underlying io.Reader contains an invalid text/template", func(t *testing.T) {
			r := strings.NewReader(`{{ hello`)

			ttr := RenderTextTemplate(r)
			_, err := io.ReadAll(ttr)

			var ierr TextTemplateParseError
			if !assert.ErrorAs(t, err, &ierr) {
				return
			}
			if !assert.NotEmpty(t, ierr.Error()) {
				return
			}
			if !assert.Error(t, ierr.Unwrap()) {
				return
			}
		})

		t.Run("if the parsed text/template fails to execute", func(t *testing.T) {
			r := strings.NewReader(`{{ hello }}`)

			ttr := RenderTextTemplate(
				r,
				TemplateFunc("hello", func() string {
					panic("ahhhh")
				}),
			)
			_, err := io.ReadAll(ttr)

			var ierr TextTemplateExecError
			if !assert.ErrorAs(t, err, &ierr) {
				return
			}
			if !assert.NotEmpty(t, ierr.Error()) {
				return
			}
			if !assert.Error(t, ierr.Unwrap()) {
				return
			}
		})
	})
}

func TestTextTemplateRenderer_env(t *testing.T) {
	t.Run("will render environment variables", func(t *testing.T) {
		t.Run("if the variable is set", func(t *testing.T) {
			t.Setenv("TAKES_TEST_ADDR", ":9090")

			ttr := RenderTextTemplate(strings.NewReader(`addr: "{{ env "TAKES_TEST_ADDR" | default ":8080" }}"`))
			b, err := io.ReadAll(ttr)
			if !assert.Nil(t, err) {
				return
			}
			assert.Equal(t, `addr: ":9090"`, string(b))
		})

		t.Run("with a default if the variable is unset", func(t *testing.T) {
			ttr := RenderTextTemplate(strings.NewReader(`addr: "{{ env "TAKES_TEST_UNSET" | default ":8080" }}"`))
			b, err := io.ReadAll(ttr)
			if !assert.Nil(t, err) {
				return
			}
			assert.Equal(t, `addr: ":8080"`, string(b))
		})
	})

	t.Run("will feed a yaml source", func(t *testing.T) {
		t.Run("if the template renders valid yaml", func(t *testing.T) {
			t.Setenv("TAKES_TEST_TIMEOUT", "45s")

			ttr := RenderTextTemplate(
				strings.NewReader("server:\n  timeout: <% env \"TAKES_TEST_TIMEOUT\" %>\n"),
				TemplateDelims("<%", "%>"),
			)
			m, err := Read(FromYaml(ttr))
			if !assert.Nil(t, err) {
				return
			}

			var cfg struct {
				Server struct {
					Timeout time.Duration `config:"timeout"`
				} `config:"server"`
			}
			err = m.Unmarshal(&cfg)
			if !assert.Nil(t, err) {
				return
			}
			assert.Equal(t, 45*time.Second, cfg.Server.Timeout)
		})
	})
}
