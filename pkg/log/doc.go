// Package log provides the structured logging facade used across Commanded
// components.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// simple Field type for structured context. Internally it is backed by Go's
// standard library slog via a custom handler that routes records through the
// formatter/output pipeline, so libraries speaking slog and code speaking this
// facade produce identical output.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("eventstore"), log.Str("stream", "orders"))
//	l.Info("read forward", log.Int("count", 128))
//
// # Interop
//
// To integrate with libraries expecting the standard library's log package,
// use RedirectStdLog, which routes global std log output through a Logger at
// info level.
package log
