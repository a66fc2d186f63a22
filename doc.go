// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package takes provides the runtime plumbing for embedding an HTTP/1.x
// server built from the [github.com/z5labs/takes/front] and
// [github.com/z5labs/takes/back] packages.
//
// Applications are described by three small abstractions:
//
//   - Builder[T]: constructs a component, e.g. a config struct or a [Runtime]
//   - Runtime: something which runs until its context is cancelled
//   - Runner[T]: builds and runs a [Runtime]
//
// Builders compose with [Map] and [Bind]:
//
//	cfg := takes.ConfigBuilder[app.Config](
//	    config.FromYaml(config.NewFileReader(os.DirFS("."), "takes.yaml")),
//	)
//
//	rt := takes.Bind(cfg, func(cfg app.Config) takes.Builder[takes.Runtime] {
//	    return app.Builder(cfg)
//	})
//
// and are run with signal handling and panic recovery:
//
//	runner := takes.NotifyOnSignal(
//	    takes.RecoverPanics(
//	        takes.DefaultRunner[takes.Runtime](),
//	    ),
//	    os.Interrupt,
//	)
//	if err := runner.Run(context.Background(), rt); err != nil {
//	    log.Fatal(err)
//	}
//
// Builders may register cleanup, e.g. closing worker pools or flushing
// traces, with [OnPostRun]. [DefaultRunner] runs those hooks once the
// [Runtime] returns, no matter how it returns.
package takes
