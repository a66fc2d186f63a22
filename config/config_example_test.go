// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"fmt"
	"strings"
	"time"
)

func Example() {
	type Config struct {
		Server struct {
			Addr    string        `config:"addr"`
			Timeout time.Duration `config:"timeout"`
		} `config:"server"`
	}

	defaults := strings.NewReader(`
server:
  addr: ":8080"
  timeout: 30s
`)

	m, err := Read(
		FromYaml(defaults),
		Map{"server": map[string]any{"addr": ":9090"}},
	)
	if err != nil {
		fmt.Println(err)
		return
	}

	var cfg Config
	err = m.Unmarshal(&cfg)
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Println(cfg.Server.Addr)
	fmt.Println(cfg.Server.Timeout)
	// Output:
	// :9090
	// 30s
}
