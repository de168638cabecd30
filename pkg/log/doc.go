// Package log is the structured logging port used by tictoc packages.
//
// Library code depends only on the [Logger] interface. The CLI wires in the
// zerolog adapter; tests and embedders that want silence use [NoopLogger].
//
//	logger, err := log.New(os.Stderr, log.FormatConsole, "info")
//	loop, err := session.New(cfg, binder, session.WithLogger(logger))
package log
