// Package log provides the structured logging system shared by strand
// components.
//
// Loggers are constructed explicitly and passed by dependency injection;
// there is no ambient global logger. Typical setup:
//
//	logger := log.NewLogger(
//	    log.WithLevel(log.DebugLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	logger = logger.With(log.Component("dispatch"))
//	logger.Info("subscriber attached", log.Str("topic", topic))
//
// RedirectStdLog captures standard library log output (notably Pebble's)
// into the same pipeline.
package log
