// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package config merges layered configuration sources and decodes them into Go structs.
//
// A [Source] writes key value pairs into a [Store]. [Read] applies sources in
// order, so later sources override earlier ones, and the resulting [Manager]
// decodes everything with [Manager.Unmarshal].
//
//	m, err := config.Read(
//	    config.FromYaml(bytes.NewReader(defaults)),
//	    config.FromYaml(config.RenderTextTemplate(config.NewFileReader(os.DirFS("."), "takes.yaml"))),
//	    config.Map{"server": map[string]any{"addr": ":9090"}},
//	)
//	if err != nil {
//	    return err
//	}
//
//	var cfg Config
//	err = m.Unmarshal(&cfg)
//
// Struct fields are matched with the "config" tag. Strings decode into
// [time.Duration] values and into any type implementing [encoding.TextUnmarshaler].
package config
