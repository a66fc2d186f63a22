// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/z5labs/takes"
	"github.com/z5labs/takes/config"
	"github.com/z5labs/takes/internal/app"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// binding ties a config key to the flag which sets it. Every key can
// also be set with its TAKES_ prefixed environment variable, e.g.
// TAKES_SERVER_ADDR for server.addr.
type binding struct {
	key  string
	flag string
}

var bindings = []binding{
	{key: "server.addr", flag: "addr"},
	{key: "server.poll_interval", flag: "poll-interval"},
	{key: "server.threads", flag: "threads"},
	{key: "server.timeout", flag: "timeout"},
	{key: "server.keep_alive", flag: "keep-alive"},
	{key: "server.read_header_timeout", flag: "read-header-timeout"},
	{key: "server.read_timeout", flag: "read-timeout"},
	{key: "server.write_timeout", flag: "write-timeout"},
	{key: "server.idle_timeout", flag: "idle-timeout"},
	{key: "server.max_header_bytes", flag: "max-header-bytes"},
	{key: "server.max_connections", flag: "max-connections"},
	{key: "server.verbose", flag: "verbose"},
	{key: "multipart.dir", flag: "multipart-dir"},
	{key: "multipart.memory", flag: "multipart-memory"},
	{key: "multipart.buffer_size", flag: "multipart-buffer-size"},
	{key: "multipart.max_parts", flag: "multipart-max-parts"},
	{key: "logging.level", flag: "log-level"},
	{key: "otel.service_name", flag: "service-name"},
	{key: "otel.exporter", flag: "otel-exporter"},
	{key: "otel.otlp_endpoint", flag: "otlp-endpoint"},
}

func newServeCmd() *cobra.Command {
	var (
		cfgPath string
		v       *viper.Viper
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the echo handler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srcs := []config.Source{app.DefaultConfig()}
			if cfgPath != "" {
				srcs = append(srcs, fileSource(cfgPath))
			}
			srcs = append(srcs, settings(v, cmd.Flags()))

			rt := takes.Bind(
				takes.ConfigBuilder[app.Config](srcs...),
				func(cfg app.Config) takes.Builder[takes.Runtime] {
					logHandler := slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
						Level: cfg.Logging.Level,
					})
					return app.Builder(cfg, app.LogHandler(logHandler))
				},
			)

			runner := takes.NotifyOnSignal(
				takes.RecoverPanics(
					takes.DefaultRunner[takes.Runtime](),
				),
				os.Interrupt,
				syscall.SIGTERM,
			)
			return runner.Run(cmd.Context(), rt)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&cfgPath, "config", "c", "", "YAML or JSON config file, rendered as a text/template first")
	defineFlags(fs)
	v = bindFlags(fs)
	return cmd
}

func defineFlags(fs *pflag.FlagSet) {
	fs.String("addr", ":8080", "address to listen on")
	fs.Duration("poll-interval", 0, "how long a single accept may block")
	fs.Int("threads", 0, "number of connection workers, 0 serves connections on the accept loop")
	fs.Duration("timeout", 0, "abandon requests running longer than this, 0 disables it")
	fs.Bool("keep-alive", true, "serve more than one request per connection")
	fs.Duration("read-header-timeout", 0, "bound on reading a request head")
	fs.Duration("read-timeout", 0, "bound on reading a whole request")
	fs.Duration("write-timeout", 0, "bound on writing a response")
	fs.Duration("idle-timeout", 0, "bound on waiting for the next request on a connection")
	fs.Int("max-header-bytes", 0, "maximum size of a request head")
	fs.Int64("max-connections", 0, "stop after accepting this many connections, 0 means never")
	fs.Bool("verbose", false, "describe server errors in responses")
	fs.String("multipart-dir", "", "directory for form part files")
	fs.Bool("multipart-memory", false, "keep form parts in memory")
	fs.Int("multipart-buffer-size", 0, "boundary scan buffer size")
	fs.Int("multipart-max-parts", 0, "maximum number of parts in a form")
	fs.String("log-level", "info", "minimum log level")
	fs.String("service-name", "takes", "service name attached to spans")
	fs.String("otel-exporter", "none", "span exporter: none, stdout or otlp")
	fs.String("otlp-endpoint", "localhost:4317", "OTLP collector gRPC endpoint")
}

func bindFlags(fs *pflag.FlagSet) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("takes")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, b := range bindings {
		// only fails for a nil flag
		_ = v.BindPFlag(b.key, fs.Lookup(b.flag))
	}
	return v
}

// fileSource reads the config file at path. Files ending in .json are
// parsed as JSON, everything else as YAML.
func fileSource(path string) config.Source {
	r := config.RenderTextTemplate(
		config.NewFileReader(os.DirFS(filepath.Dir(path)), filepath.Base(path)),
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return config.FromJson(r)
	}
	return config.FromYaml(r)
}

// settings returns every key explicitly set by a flag or an environment
// variable. Flag defaults are left out so they never override the
// config file.
func settings(v *viper.Viper, fs *pflag.FlagSet) config.Map {
	m := make(config.Map)
	for _, b := range bindings {
		if !v.IsSet(b.key) {
			continue
		}

		var val any
		switch fs.Lookup(b.flag).Value.Type() {
		case "int":
			val = v.GetInt(b.key)
		case "int64":
			val = v.GetInt64(b.key)
		case "bool":
			val = v.GetBool(b.key)
		case "duration":
			val = v.GetDuration(b.key)
		default:
			val = v.GetString(b.key)
		}

		section, name, _ := strings.Cut(b.key, ".")
		sub, ok := m[section].(map[string]any)
		if !ok {
			sub = make(map[string]any)
			m[section] = sub
		}
		sub[name] = val
	}
	return m
}
